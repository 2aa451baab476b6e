package cmd

import (
	"fmt"

	"github.com/photoli93/Projet-7/internal/classifier"
	"github.com/photoli93/Projet-7/internal/config"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Load the model and feature table and print a summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := initLogger(cfg.Log)

		store, err := loadArtifacts(cmd.Context(), cfg, log)
		if err != nil {
			return fmt.Errorf("load artifacts: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "model:    %s (%s, %d bytes)\n", cfg.Model.Path, store.ModelFormat, store.ModelBytes)
		if gbm, ok := store.Classifier.(*classifier.LightGBM); ok {
			fmt.Fprintf(out, "trees:    %d\n", gbm.NumTrees())
		}
		fmt.Fprintf(out, "features: %d declared by the model\n", len(store.Classifier.FeatureNames()))
		fmt.Fprintf(out, "table:    %d clients, %d columns (id column %s)\n",
			store.Features.Len(), len(store.Features.Columns()), store.Features.IDColumn())

		// every declared model feature must exist in the table
		if names := store.Classifier.FeatureNames(); len(names) > 0 && store.Features.Len() > 0 {
			if _, err := store.Features.Project(store.Features.Row(0), names); err != nil {
				return fmt.Errorf("schema check: %w", err)
			}
		}
		fmt.Fprintln(out, "schema:   ok")
		return nil
	},
}
