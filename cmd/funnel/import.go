package main

import (
	"fmt"

	"github.com/aretw0/funnel/internal/cli"
	"github.com/aretw0/funnel/internal/config"
	"github.com/aretw0/funnel/pkg/adapters/file"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Copy funnel files into the SQL catalog",
	Long: `Reads every funnel file in dir and stores it in the sqlite or postgres
database of the configuration, replacing funnels with the same ID. Serve with
definitions.source set to sql to read them from there.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Storage.Backend != config.StorageSQLite && cfg.Storage.Backend != config.StoragePostgres {
			return fmt.Errorf("import needs the sqlite or postgres storage backend, got %s", cfg.Storage.Backend)
		}
		cfg.Definitions = config.DefinitionsConfig{Source: config.DefinitionsSQL}

		st, err := cli.OpenStack(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		loader, err := file.NewLoader(args[0])
		if err != nil {
			return err
		}
		ids, err := cli.ImportDefinitions(cmd.Context(), loader, st.SQL)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s\n", id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
