package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hazyhaar/cvwatch/dbopen"
	"github.com/hazyhaar/cvwatch/domwatch/mutation"
	"github.com/hazyhaar/cvwatch/idgen"
)

// specialURLMarker cuts rewritten URLs of some CDNs back to the page URL.
const specialURLMarker = "g00"

// CrawlInstance is one visited page of a crawl group.
type CrawlInstance struct {
	ID         string `json:"id"`
	CrawlGroup string `json:"crawl_group_name"`
	FileName   string `json:"file_name"`
	FilePath   string `json:"file_path,omitempty"`
	URL        string `json:"url"`
	IsControl  bool   `json:"is_control"`
	StartTime  *int64 `json:"start_time,omitempty"`
	EndTime    int64  `json:"end_time"`
	CreatedAt  int64  `json:"created_at"`
}

// ImportOptions describes where artifacts land.
type ImportOptions struct {
	CrawlGroup string
	Collection string // event collection, e.g. vanilla_dommutation
	Control    bool   // control run rather than variant
	WithEvents bool   // also insert the artifact's events
}

func (o ImportOptions) validate() error {
	if o.CrawlGroup == "" {
		return errors.New("store: crawl group is required")
	}
	if o.WithEvents && !IsEventCollection(o.Collection) {
		return fmt.Errorf("store: %q is not an event collection", o.Collection)
	}
	return nil
}

// NormalizeURL trims URLs rewritten with the special CDN marker.
func NormalizeURL(u string) string {
	if i := strings.Index(u, specialURLMarker); i >= 0 {
		return u[:i]
	}
	return u
}

// SaveArtifact stores a as the crawl instance fileName of opts.CrawlGroup.
// It returns the instance and the number of events inserted. Saving the
// same artifact twice neither duplicates the instance nor its events.
func (s *Store) SaveArtifact(ctx context.Context, fileName, filePath string, a mutation.Artifact, opts ImportOptions) (*CrawlInstance, int, error) {
	if err := opts.validate(); err != nil {
		return nil, 0, err
	}
	ci := &CrawlInstance{
		CrawlGroup: opts.CrawlGroup,
		FileName:   fileName,
		FilePath:   filePath,
		URL:        NormalizeURL(a.URL),
		IsControl:  opts.Control,
		StartTime:  a.StartTime,
		EndTime:    a.EndTime,
	}

	var inserted int
	err := dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		if err := s.upsertInstance(ctx, tx, ci); err != nil {
			return err
		}
		if !opts.WithEvents {
			return nil
		}
		n, err := s.insertEvents(ctx, tx, opts.Collection, ci, a.DOMMutation)
		inserted = n
		return err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("store: save artifact %s: %w", fileName, err)
	}
	return ci, inserted, nil
}

// upsertInstance inserts ci unless an instance with the same group, URL,
// file name and control flag exists, in which case ci takes its identity.
func (s *Store) upsertInstance(ctx context.Context, tx *sql.Tx, ci *CrawlInstance) error {
	err := tx.QueryRowContext(ctx, `
		SELECT id, created_at FROM crawl_instance
		WHERE crawl_group_name = ? AND url = ? AND file_name = ? AND is_control = ?`,
		ci.CrawlGroup, ci.URL, ci.FileName, boolInt(ci.IsControl),
	).Scan(&ci.ID, &ci.CreatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	ci.ID = s.newID()
	ci.CreatedAt = time.Now().UnixMilli()
	var start sql.NullInt64
	if ci.StartTime != nil {
		start = sql.NullInt64{Int64: *ci.StartTime, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO crawl_instance
			(id, crawl_group_name, file_name, file_path, url, is_control, start_time, end_time, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		ci.ID, ci.CrawlGroup, ci.FileName, ci.FilePath, ci.URL, boolInt(ci.IsControl), start, ci.EndTime, ci.CreatedAt,
	)
	return err
}

// insertEvents adds msgs to collection once per instance: when the
// instance already has events there, nothing is inserted.
func (s *Store) insertEvents(ctx context.Context, tx *sql.Tx, collection string, ci *CrawlInstance, msgs []mutation.Message) (int, error) {
	var exists int
	err := tx.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT COUNT(*) FROM (SELECT 1 FROM %s WHERE crawl_group_name = ? AND crawl_instance_id = ? LIMIT 1)`, collection),
		ci.CrawlGroup, ci.ID,
	).Scan(&exists)
	if err != nil {
		return 0, err
	}
	if exists > 0 {
		return 0, nil
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, crawl_group_name, crawl_instance_id, seq, type, time, body)
		VALUES (?,?,?,?,?,?,?)`, collection))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, m := range msgs {
		body, err := mutation.MarshalMessage(&m)
		if err != nil {
			return 0, fmt.Errorf("event %d: %w", i, err)
		}
		var at sql.NullInt64
		if m.Event != nil || m.Time != 0 {
			at = sql.NullInt64{Int64: m.Time, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, s.newID(), ci.CrawlGroup, ci.ID, i, m.Type, at, string(body)); err != nil {
			return 0, err
		}
	}
	return len(msgs), nil
}

// CrawlInstances lists the instances of a crawl group by file name.
func (s *Store) CrawlInstances(ctx context.Context, group string) ([]CrawlInstance, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, crawl_group_name, file_name, file_path, url, is_control, start_time, end_time, created_at
		FROM crawl_instance WHERE crawl_group_name = ? ORDER BY file_name, id`, group)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CrawlInstance
	for rows.Next() {
		var ci CrawlInstance
		var control int
		var start, end sql.NullInt64
		if err := rows.Scan(&ci.ID, &ci.CrawlGroup, &ci.FileName, &ci.FilePath, &ci.URL,
			&control, &start, &end, &ci.CreatedAt); err != nil {
			return nil, err
		}
		ci.IsControl = control != 0
		if start.Valid {
			ci.StartTime = &start.Int64
		}
		ci.EndTime = end.Int64
		out = append(out, ci)
	}
	return out, rows.Err()
}

// Events returns the stored messages of an instance in recorded order.
func (s *Store) Events(ctx context.Context, collection, instanceID string) ([]mutation.Message, error) {
	if !IsEventCollection(collection) {
		return nil, fmt.Errorf("store: %q is not an event collection", collection)
	}
	instanceID, err := idgen.Parse(instanceID)
	if err != nil {
		return nil, fmt.Errorf("store: events: %w", err)
	}
	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(
		`SELECT body FROM %s WHERE crawl_instance_id = ? ORDER BY seq`, collection), instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []mutation.Message
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		m, err := mutation.UnmarshalMessage([]byte(body))
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}
