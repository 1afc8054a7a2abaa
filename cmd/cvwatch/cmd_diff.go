package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/cvwatch/store"
)

var diffFlags struct {
	db      string
	group   string
	control string
	variant string
	save    bool
}

var diffCmd = &cobra.Command{
	Use:   "diff <url>",
	Short: "Compare the control and variant DOM mutations recorded for a page",
	Long: `Loads every control and variant crawl instance of the page in the crawl
group and prints the events only one side recorded. Blocked-element and
blocked-snippet events of the variant are listed apart. With --save both
sides are also stored in control_only and variant_only.`,
	Args: cobra.ExactArgs(1),
	RunE: runDiff,
}

func init() {
	f := diffCmd.Flags()
	f.StringVar(&diffFlags.db, "db", "", "override store.path")
	f.StringVar(&diffFlags.group, "group", "", "override store.crawl_group")
	f.StringVar(&diffFlags.control, "control-collection", store.VanillaDOMMutation, "events of the control instances")
	f.StringVar(&diffFlags.variant, "variant-collection", store.AdBlockDOMMutation, "events of the variant instances")
	f.BoolVar(&diffFlags.save, "save", false, "store the result")
}

func runDiff(cmd *cobra.Command, args []string) error {
	cfg, _, closer, err := setup()
	if err != nil {
		return err
	}
	defer closer.Close()

	if diffFlags.db != "" {
		cfg.Store.Path = diffFlags.db
	}
	if diffFlags.group != "" {
		cfg.Store.CrawlGroup = diffFlags.group
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	d, err := st.DiffDOM(cmd.Context(), store.DiffOptions{
		CrawlGroup:        cfg.Store.CrawlGroup,
		URL:               args[0],
		ControlCollection: diffFlags.control,
		VariantCollection: diffFlags.variant,
		Save:              diffFlags.save,
	})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}
