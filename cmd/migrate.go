package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/photoli93/Projet-7/internal/config"
	"github.com/photoli93/Projet-7/internal/db"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the ClickHouse prediction log tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := initLogger(cfg.Log)

		chDB, err := db.NewClickHouseConnection(cfg.ClickHouse.DSN, clickHouseOpts(cfg.ClickHouse))
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		defer chDB.Close()

		files, err := filepath.Glob(filepath.Join(cfg.Migrations.Dir, "*.sql"))
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("no migrations found in %s", cfg.Migrations.Dir)
		}
		sort.Strings(files)

		for _, f := range files {
			body, err := os.ReadFile(f)
			if err != nil {
				return fmt.Errorf("read migration file %s: %w", f, err)
			}
			// ClickHouse runs one statement per query
			for _, stmt := range splitStatements(string(body)) {
				if _, err := chDB.ExecContext(cmd.Context(), stmt); err != nil {
					return fmt.Errorf("exec %s: %w", f, err)
				}
			}
			log.Info("migration applied", zap.String("file", f))
		}

		fmt.Println(">> Migration complete")
		return nil
	},
}

func splitStatements(sql string) []string {
	var out []string
	for _, part := range strings.Split(sql, ";") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
