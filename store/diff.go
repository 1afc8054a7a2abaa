package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/cvwatch/dbopen"
	"github.com/hazyhaar/cvwatch/domdiff"
)

// DiffOptions selects the crawls of one page to compare.
type DiffOptions struct {
	CrawlGroup        string
	URL               string
	ControlCollection string // default vanilla_dommutation
	VariantCollection string // default adb_dommutation
	Save              bool   // also store both sides in control_only/variant_only
}

// DOMDiff is the result of DiffDOM. The row ids are set when the sides
// were saved.
type DOMDiff struct {
	CrawlGroup   string        `json:"crawl_group_name"`
	URL          string        `json:"url"`
	ControlOnly  *domdiff.Side `json:"control_only"`
	VariantOnly  *domdiff.Side `json:"variant_only"`
	ControlRowID string        `json:"control_only_id,omitempty"`
	VariantRowID string        `json:"variant_only_id,omitempty"`
}

func (o *DiffOptions) validate() error {
	if o.CrawlGroup == "" {
		return errors.New("store: crawl group is required")
	}
	if o.URL == "" {
		return errors.New("store: url is required")
	}
	if o.ControlCollection == "" {
		o.ControlCollection = VanillaDOMMutation
	}
	if o.VariantCollection == "" {
		o.VariantCollection = AdBlockDOMMutation
	}
	for _, c := range []string{o.ControlCollection, o.VariantCollection} {
		if !IsEventCollection(c) {
			return fmt.Errorf("store: %q is not an event collection", c)
		}
	}
	return nil
}

// DiffDOM compares the control and variant instances recorded for one URL
// of a crawl group. Control instances read their events from the control
// collection, variant instances from the variant collection.
func (s *Store) DiffDOM(ctx context.Context, opts DiffOptions) (*DOMDiff, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	url := NormalizeURL(opts.URL)
	instances, err := s.CrawlInstances(ctx, opts.CrawlGroup)
	if err != nil {
		return nil, fmt.Errorf("store: diff: %w", err)
	}

	var control, variant []domdiff.Trial
	for _, ci := range instances {
		if ci.URL != url {
			continue
		}
		collection := opts.VariantCollection
		if ci.IsControl {
			collection = opts.ControlCollection
		}
		msgs, err := s.Events(ctx, collection, ci.ID)
		if err != nil {
			return nil, fmt.Errorf("store: diff %s: %w", ci.FileName, err)
		}
		trial := domdiff.Trial{InstanceID: ci.ID, Messages: msgs}
		if ci.IsControl {
			control = append(control, trial)
		} else {
			variant = append(variant, trial)
		}
	}
	if len(control) == 0 || len(variant) == 0 {
		return nil, fmt.Errorf("store: diff %s: need control and variant instances, have %d and %d",
			url, len(control), len(variant))
	}

	d := &DOMDiff{CrawlGroup: opts.CrawlGroup, URL: url}
	d.ControlOnly, d.VariantOnly = domdiff.Compare(control, variant)
	if !opts.Save {
		return d, nil
	}

	err = dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		if d.ControlRowID, err = s.insertDocument(ctx, tx, ControlOnly, d.CrawlGroup, d.URL, d.ControlOnly); err != nil {
			return err
		}
		d.VariantRowID, err = s.insertDocument(ctx, tx, VariantOnly, d.CrawlGroup, d.URL, d.VariantOnly)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("store: save diff %s: %w", url, err)
	}
	return d, nil
}

func (s *Store) insertDocument(ctx context.Context, tx *sql.Tx, collection, group, url string, side *domdiff.Side) (string, error) {
	body, err := json.Marshal(struct {
		CrawlGroup string `json:"crawl_group_name"`
		URL        string `json:"url"`
		*domdiff.Side
	}{group, url, side})
	if err != nil {
		return "", err
	}
	id := s.newID()
	_, err = tx.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, crawl_group_name, body, created_at) VALUES (?,?,?,?)`, collection),
		id, group, string(body), time.Now().UnixMilli())
	return id, err
}
