package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/photoli93/Projet-7/internal/config"
	"github.com/photoli93/Projet-7/internal/db"
	"github.com/photoli93/Projet-7/internal/features"
	"github.com/photoli93/Projet-7/internal/repository"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var importCSV string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load the feature CSV into the SQL feature table (DROP & CREATE)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := initLogger(cfg.Log)

		if cfg.Features.DSN == "" {
			return errors.New("features.dsn must be set")
		}
		src := importCSV
		if src == "" {
			src = cfg.Features.Path
		}

		f, err := os.Open(src)
		if err != nil {
			return fmt.Errorf("open %s: %w", src, err)
		}
		defer f.Close()

		tbl, err := features.ReadCSV(f, cfg.Features.IDColumn)
		if err != nil {
			return fmt.Errorf("parse %s: %w", src, err)
		}

		conn, err := db.NewFeatureStoreConnection(cfg.Features.Driver, cfg.Features.DSN, featureStoreOpts(cfg.Features))
		if err != nil {
			return fmt.Errorf("feature store connect: %w", err)
		}
		defer conn.Close()

		log.Info("importing features",
			zap.String("source", src),
			zap.String("table", cfg.Features.Table),
			zap.Int("rows", tbl.Len()),
		)
		if err := repository.NewFeaturesRepository(conn).Replace(cmd.Context(), cfg.Features.Table, tbl); err != nil {
			return fmt.Errorf("import: %w", err)
		}

		fmt.Printf(">> Imported %d clients into %s\n", tbl.Len(), cfg.Features.Table)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importCSV, "csv", "", "CSV file to import (default: features.path)")
}
