package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-fair/pkg/report"
)

func newLoadCmd(a *app) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "load <name|uuid>",
		Short: "Load a stored model and show its results",
		Long: `Load a model or meta model from the store by UUID, or by name when
the argument is not a UUID. The oldest model with that name wins.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Close()

			loaded, err := repo.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				var data []byte
				if loaded.Meta != nil {
					data, err = loaded.Meta.ToJSON()
				} else {
					data, err = loaded.Model.ToJSON()
				}
				if err != nil {
					return err
				}
				return printJSON(out, data)
			}
			if loaded.Meta != nil {
				printMeta(out, loaded.Meta)
				return nil
			}
			printModel(out, loaded.Model)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the parameter document instead of a summary")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Close()

			entries, err := repo.List(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), report.RenderEntries(entries))
			return err
		},
	}
}
