package main

import (
	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-fair/pkg/metamodel"
	"github.com/dd0wney/cluso-fair/pkg/scenario"
)

func newMetaCmd(a *app) *cobra.Command {
	var (
		name    string
		save    bool
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "meta <scenario>...",
		Short: "Sum the Risk of the models in several scenario files",
		Long: `Build each scenario and combine the results into one meta model.
A scenario that already yields a meta model contributes all of its
component models. Component names must be unique and every component
must run the same number of trials.

Examples:
  fair meta --name Enterprise phishing.yaml insider.yaml
  fair meta --name Enterprise plant.yaml office.yaml --save`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			members := make([]metamodel.Member, 0, len(args))
			results := make([]*scenario.Result, 0, len(args))
			for _, path := range args {
				res, err := a.buildScenario(path)
				if err != nil {
					return err
				}
				results = append(results, res)
				if res.Meta != nil {
					members = append(members, metamodel.MetaMember{Meta: res.Meta})
				} else {
					members = append(members, metamodel.ModelMember{Model: res.Models[0]})
				}
			}

			mm, err := metamodel.New(name, members,
				metamodel.WithLogger(a.logger),
				metamodel.WithMetrics(a.metrics),
			)
			if err != nil {
				return err
			}
			if err := mm.CalculateAll(); err != nil {
				return err
			}

			if save {
				combined := &scenario.Result{Meta: mm}
				for _, res := range results {
					combined.Models = append(combined.Models, res.Models...)
				}
				if err := a.saveResult(cmd.Context(), combined); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				data, err := mm.ToJSON()
				if err != nil {
					return err
				}
				return printJSON(out, data)
			}
			printMeta(out, mm)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "Meta Model", "Name of the meta model")
	cmd.Flags().BoolVar(&save, "save", false, "Save the meta model and its components to the store")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the meta model document instead of a summary")
	return cmd
}
