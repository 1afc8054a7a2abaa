package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/cvwatch/store"
)

var importFlags struct {
	db         string
	group      string
	collection string
	control    bool
	events     bool
}

var importCmd = &cobra.Command{
	Use:   "import <file|dir>",
	Short: "Import artifacts into the store as crawl instances",
	Long: `Upserts one crawl instance per artifact, keyed by crawl group, URL, file
name and control flag. With --events the artifact's events are inserted into
--collection once per instance.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	f := importCmd.Flags()
	f.StringVar(&importFlags.db, "db", "", "override store.path")
	f.StringVar(&importFlags.group, "group", "", "override store.crawl_group")
	f.StringVar(&importFlags.collection, "collection", "", "override store.collection")
	f.BoolVar(&importFlags.control, "control", false, "mark the instances as control runs")
	f.BoolVar(&importFlags.events, "events", false, "also insert the events")
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, logger, closer, err := setup()
	if err != nil {
		return err
	}
	defer closer.Close()

	if importFlags.db != "" {
		cfg.Store.Path = importFlags.db
	}
	if importFlags.group != "" {
		cfg.Store.CrawlGroup = importFlags.group
	}
	if importFlags.collection != "" {
		cfg.Store.Collection = importFlags.collection
	}
	if cmd.Flags().Changed("control") {
		cfg.Store.Control = importFlags.control
	}
	if cmd.Flags().Changed("events") {
		cfg.Store.WithEvents = importFlags.events
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.Import(cmd.Context(), args[0], importOptions(cfg), logger)
	if err != nil {
		return err
	}
	return json.NewEncoder(cmd.OutOrStdout()).Encode(stats)
}
