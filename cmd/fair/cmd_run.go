package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-fair/pkg/scenario"
	"github.com/dd0wney/cluso-fair/pkg/store"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		save    bool
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Build and calculate the models in a scenario file",
		Long: `Build every model defined in a YAML or JSON scenario file and
calculate it. A scenario with several models also yields a meta model
summing their Risk.

Examples:
  fair run phishing.yaml            # statuses and Risk summary
  fair run phishing.yaml --json     # parameter document
  fair run plant.yaml --save        # keep the models in the store`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.buildScenario(args[0])
			if err != nil {
				return err
			}
			if save {
				if err := a.saveResult(cmd.Context(), res); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				data, err := res.ToJSON()
				if err != nil {
					return err
				}
				return printJSON(out, data)
			}
			for _, m := range res.Models {
				printModel(out, m)
			}
			if res.Meta != nil {
				printMeta(out, res.Meta)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Save the calculated models to the store")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the parameter document instead of a summary")
	return cmd
}

func (a *app) buildScenario(path string) (*scenario.Result, error) {
	f, err := scenario.Load(path)
	if err != nil {
		return nil, err
	}
	res, err := f.Build(scenario.Options{
		Simulations: a.cfg.Simulations,
		Seed:        a.cfg.Seed,
		Workers:     a.workers,
		Logger:      a.logger,
		Metrics:     a.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

func (a *app) saveResult(ctx context.Context, res *scenario.Result) error {
	repo, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	var items []store.Storable
	for _, m := range res.Models {
		items = append(items, m)
	}
	if res.Meta != nil {
		items = append(items, res.Meta)
	}
	for _, s := range items {
		if err := repo.Save(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
