package filterlist

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// RecordSep separates the fields of a classification record:
// crawlURL;;mainDomain;;targetURL;;resourceType.
const RecordSep = ";;"

// Record is one classification input line.
type Record struct {
	CrawlURL     string
	MainDomain   string
	TargetURL    string
	ResourceType string
}

// ParseRecord splits line into a record. It reports false unless the line
// has exactly four fields.
func ParseRecord(line string) (Record, bool) {
	f := strings.Split(line, RecordSep)
	if len(f) != 4 {
		return Record{}, false
	}
	return Record{CrawlURL: f[0], MainDomain: f[1], TargetURL: f[2], ResourceType: f[3]}, true
}

// Request converts the record for matching.
func (r Record) Request() Request {
	return Request{URL: r.TargetURL, Domain: r.MainDomain, Type: ParseResourceType(r.ResourceType)}
}

// ClassifyStats summarises a Classify run.
type ClassifyStats struct {
	Records   int `json:"records"`
	Malformed int `json:"malformed"`
	Blocked   int `json:"blocked"`
}

// Classify reads records from r and writes every line whose target URL the
// list blocks to w, unchanged and newline-terminated. Malformed lines are
// counted and skipped.
func (l *List) Classify(r io.Reader, w io.Writer) (ClassifyStats, error) {
	var st ClassifyStats
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	bw := bufio.NewWriter(w)
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if line == "" {
			continue
		}
		rec, ok := ParseRecord(line)
		if !ok {
			st.Malformed++
			continue
		}
		st.Records++
		if !l.Blocked(rec.Request()) {
			continue
		}
		st.Blocked++
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return st, fmt.Errorf("filterlist: classify: write: %w", err)
		}
	}
	if err := sc.Err(); err != nil {
		return st, fmt.Errorf("filterlist: classify: read: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return st, fmt.Errorf("filterlist: classify: flush: %w", err)
	}
	l.log().Info("filterlist: classified", "records", st.Records, "blocked", st.Blocked, "malformed", st.Malformed)
	return st, nil
}
