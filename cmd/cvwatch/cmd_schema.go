package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/cvwatch/store"
)

var schemaFlags struct {
	db string
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create the store's collections and indexes",
	RunE:  runSchema,
}

func init() {
	schemaCmd.Flags().StringVar(&schemaFlags.db, "db", "", "override store.path")
}

func runSchema(cmd *cobra.Command, _ []string) error {
	cfg, logger, closer, err := setup()
	if err != nil {
		return err
	}
	defer closer.Close()
	if schemaFlags.db != "" {
		cfg.Store.Path = schemaFlags.db
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Init(); err != nil {
		return fmt.Errorf("cvwatch: schema: %w", err)
	}
	for _, c := range store.Collections {
		fmt.Fprintln(cmd.OutOrStdout(), c)
	}
	logger.Info("cvwatch: schema ready", "db", cfg.Store.Path, "collections", len(store.Collections))
	return nil
}
