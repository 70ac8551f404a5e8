// Command fair builds, calculates and stores FAIR risk models.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-fair/pkg/config"
	"github.com/dd0wney/cluso-fair/pkg/fair"
	"github.com/dd0wney/cluso-fair/pkg/logging"
	"github.com/dd0wney/cluso-fair/pkg/metamodel"
	"github.com/dd0wney/cluso-fair/pkg/metrics"
	"github.com/dd0wney/cluso-fair/pkg/report"
	"github.com/dd0wney/cluso-fair/pkg/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// app carries the state shared by every subcommand.
type app struct {
	cfg     config.Config
	logger  logging.Logger
	metrics *metrics.Registry

	// persistent flags, applied over cfg when set
	simulations int
	seed        int64
	logLevel    string
	storeDriver string
	storeDSN    string
	metricsFile string
	workers     int
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "fair",
		Short: "Quantify information risk with FAIR Monte Carlo models",
		Long: `Build FAIR models from scenario files, calculate their Risk
distribution, and keep them in a model store.

Settings are read from FAIR_* environment variables and may be
overridden with flags:
  FAIR_SIMULATIONS   --simulations
  FAIR_SEED          --seed
  FAIR_LOG_LEVEL     --log-level
  FAIR_STORE_DRIVER  --store-driver   (sqlite, postgres, file)
  FAIR_STORE_DSN     --store-dsn
  FAIR_METRICS_FILE  --metrics-file`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.flushMetrics()
		},
	}

	flags := root.PersistentFlags()
	flags.IntVar(&a.simulations, "simulations", fair.DefaultSimulations,
		"Trials per model when a scenario does not set them")
	flags.Int64Var(&a.seed, "seed", fair.DefaultSeed,
		"Random seed when a scenario does not set one")
	flags.StringVar(&a.logLevel, "log-level", "info",
		"Log level: debug, info, warn, error")
	flags.StringVar(&a.storeDriver, "store-driver", store.DriverSQLite,
		"Model store driver")
	flags.StringVar(&a.storeDSN, "store-dsn", "fair.sqlite3",
		"Model store location: file path, connection URL or directory")
	flags.StringVar(&a.metricsFile, "metrics-file", "",
		"Write Prometheus metrics to this file on exit")
	flags.IntVar(&a.workers, "workers", runtime.NumCPU(),
		"Models built concurrently per scenario")

	root.AddCommand(
		newRunCmd(a),
		newMetaCmd(a),
		newLoadCmd(a),
		newListCmd(a),
	)
	return root
}

// setup loads the environment, applies explicit flags and validates the result.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	var cfg config.Config
	if err := config.ParseEnv(&cfg); err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("simulations") {
		cfg.Simulations = a.simulations
	}
	if flags.Changed("seed") {
		cfg.Seed = a.seed
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("store-driver") {
		cfg.StoreDriver = a.storeDriver
	}
	if flags.Changed("store-dsn") {
		cfg.StoreDSN = a.storeDSN
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile = a.metricsFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logging.NewJSONLogger(cmd.ErrOrStderr(), cfg.Level()).With(logging.Component("cli"))
	a.metrics = metrics.NewRegistry()
	return nil
}

func (a *app) flushMetrics() error {
	if a.cfg.MetricsFile == "" || a.metrics == nil {
		return nil
	}
	if err := a.metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	a.logger.Debug("metrics written", logging.Path(a.cfg.MetricsFile))
	return nil
}

func (a *app) openStore(ctx context.Context) (*store.Repository, error) {
	return store.Open(ctx, a.cfg.StoreDriver, a.cfg.StoreDSN,
		store.WithLogger(a.logger),
		store.WithMetrics(a.metrics),
	)
}

func printModel(w io.Writer, m *fair.Model) {
	fmt.Fprintln(w, report.RenderStatuses(m.Name(), m.Statuses()))
	fmt.Fprintln(w, report.RenderSummary("", report.SummarizeResults(m.ExportResults())))
}

func printMeta(w io.Writer, mm *metamodel.MetaModel) {
	fmt.Fprintln(w, report.RenderSummary(mm.Name(), report.SummarizeResults(mm.ExportResults(), mm.Columns()...)))
}

func printJSON(w io.Writer, data []byte) error {
	_, err := fmt.Fprintln(w, string(data))
	return err
}
