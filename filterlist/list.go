package filterlist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// List is a set of blocking rules and exceptions.
type List struct {
	important  []*Rule
	blocks     []*Rule
	exceptions []*Rule

	// Skipped counts network filters Load could not parse.
	Skipped int

	logger *slog.Logger
}

// NewList returns an empty list. A nil logger falls back to slog.Default.
func NewList(logger *slog.Logger) *List {
	if logger == nil {
		logger = slog.Default()
	}
	return &List{logger: logger}
}

func (l *List) log() *slog.Logger {
	if l.logger == nil {
		return slog.Default()
	}
	return l.logger
}

// Add parses line and adds it. Lines that are not network filters are
// ignored.
func (l *List) Add(line string) error {
	r, err := Parse(line)
	if err != nil || r == nil {
		return err
	}
	switch {
	case r.Exception:
		l.exceptions = append(l.exceptions, r)
	case r.Important:
		l.important = append(l.important, r)
	default:
		l.blocks = append(l.blocks, r)
	}
	return nil
}

// Load adds every filter read from r. Unparseable filters are counted in
// Skipped; only read errors are returned.
func (l *List) Load(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		if err := l.Add(sc.Text()); err != nil {
			l.Skipped++
			if !errors.Is(err, ErrUnsupported) {
				l.log().Debug("filterlist: skip filter", "error", err)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("filterlist: load: %w", err)
	}
	return nil
}

// LoadFile adds the filters of the list at path.
func (l *List) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("filterlist: open: %w", err)
	}
	defer f.Close()
	if err := l.Load(f); err != nil {
		return fmt.Errorf("%w (%s)", err, path)
	}
	l.log().Info("filterlist: loaded", "path", path, "rules", l.Len(), "skipped", l.Skipped)
	return nil
}

// LoadFiles builds a list from several files. Empty paths are ignored.
func LoadFiles(logger *slog.Logger, paths ...string) (*List, error) {
	l := NewList(logger)
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := l.LoadFile(p); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Len returns the number of rules, exceptions included.
func (l *List) Len() int { return len(l.important) + len(l.blocks) + len(l.exceptions) }

// Match reports whether req is blocked. The returned rule is the blocking
// rule, or the exception that unblocked the request; nil when nothing
// matched. An important block is only lifted by an important exception.
func (l *List) Match(req Request) (bool, *Rule) {
	p := prepare(req)
	hit := first(l.important, p)
	if hit == nil {
		hit = first(l.blocks, p)
	}
	if hit == nil {
		return false, nil
	}
	for _, r := range l.exceptions {
		if (r.Important || !hit.Important) && r.matches(p) {
			return false, r
		}
	}
	return true, hit
}

func first(rules []*Rule, p *prepared) *Rule {
	for _, r := range rules {
		if r.matches(p) {
			return r
		}
	}
	return nil
}

// Blocked is Match without the rule.
func (l *List) Blocked(req Request) bool {
	b, _ := l.Match(req)
	return b
}
