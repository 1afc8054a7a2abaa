package main

import (
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/cvwatch/filterlist"
)

var matchFlags struct {
	lists  []string
	input  string
	output string
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Keep the request records blocked by ad-block filter lists",
	Long: `Reads records "crawlURL;;mainDomain;;targetURL;;resourceType", one per line,
and appends those a network rule of the lists blocks to --output. Without
--input records are read from stdin; without --output they go to stdout.
The counts are printed as JSON on stderr.`,
	RunE: runMatch,
}

func init() {
	f := matchCmd.Flags()
	f.StringSliceVar(&matchFlags.lists, "lists", nil, "filter list files, comma separated; replaces filterlist.lists")
	f.StringVarP(&matchFlags.input, "input", "i", "", "records file (default stdin)")
	f.StringVarP(&matchFlags.output, "output", "o", "", "file the blocked records are appended to (default stdout)")
}

func runMatch(cmd *cobra.Command, _ []string) error {
	cfg, logger, closer, err := setup()
	if err != nil {
		return err
	}
	defer closer.Close()

	paths := cfg.FilterList.Lists
	if len(matchFlags.lists) > 0 {
		paths = matchFlags.lists
	}
	if len(paths) == 0 {
		return errors.New("cvwatch: match: no filter lists (set filterlist.lists or --lists)")
	}
	list, err := filterlist.LoadFiles(logger, paths...)
	if err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	if matchFlags.input != "" {
		f, err := os.Open(matchFlags.input)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	var out io.Writer = cmd.OutOrStdout()
	if matchFlags.output != "" {
		f, err := os.OpenFile(matchFlags.output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	stats, err := list.Classify(in, out)
	if err != nil {
		return err
	}
	logger.Info("cvwatch: match done", "rules", list.Len(), "records", stats.Records, "blocked", stats.Blocked)
	return json.NewEncoder(cmd.ErrOrStderr()).Encode(stats)
}
