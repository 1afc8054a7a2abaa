package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/hazyhaar/cvwatch/domwatch/mutation"
)

const (
	// maxNameBytes is the usual file name limit of local filesystems.
	maxNameBytes = 255
	// maxCopies bounds the " (n)" names tried for one artifact.
	maxCopies = 10_000
)

// File writes artifacts as JSON files into a directory. An existing file
// is never replaced: the artifact gets the first free "name (n).ext", the
// way browsers name repeated downloads.
type File struct {
	Dir string
}

// NewFile returns a File exporter writing into dir, created on demand.
func NewFile(dir string) *File {
	return &File{Dir: dir}
}

func (f *File) Export(_ context.Context, name string, a mutation.Artifact) error {
	data, err := mutation.MarshalArtifact(&a)
	if err != nil {
		return fmt.Errorf("export: marshal %s: %w", name, err)
	}
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return fmt.Errorf("export: mkdir: %w", err)
	}
	out, err := create(f.Dir, SafeName(name))
	if err != nil {
		return fmt.Errorf("export: %s: %w", name, err)
	}
	if _, err := out.Write(data); err != nil {
		out.Close()
		os.Remove(out.Name())
		return fmt.Errorf("export: write %s: %w", out.Name(), err)
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return fmt.Errorf("export: close %s: %w", out.Name(), err)
	}
	return nil
}

// create opens a new file named base in dir, or the first free numbered
// variant of it.
func create(dir, base string) (*os.File, error) {
	for n := 0; n < maxCopies; n++ {
		path := filepath.Join(dir, numbered(base, n))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		return f, err
	}
	return nil, fmt.Errorf("no free name after %d copies of %s", maxCopies, base)
}

// numbered returns base for n == 0, else base with " (n)" before its
// extension, cut to fit maxNameBytes.
func numbered(base string, n int) string {
	if n == 0 {
		return base
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	tag := fmt.Sprintf(" (%d)", n)
	if over := len(stem) + len(tag) + len(ext) - maxNameBytes; over > 0 {
		cut := max(len(stem)-over, 0)
		for cut > 0 && !utf8.RuneStart(stem[cut]) {
			cut--
		}
		stem = stem[:cut]
	}
	return stem + tag + ext
}

// SafeName turns an artifact name, usually a URL, into a single path
// element the way browsers name downloads: path separators and characters
// reserved on common filesystems become '_', leading dots are dropped and
// the result is capped at 255 bytes keeping the extension.
func SafeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20 || r == 0x7f:
			b.WriteByte('_')
		case strings.ContainsRune(`/\:*?"<>|~`, r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.TrimLeft(strings.TrimSpace(b.String()), ".")
	if out == "" {
		out = "download"
	}
	if len(out) > maxNameBytes {
		ext := filepath.Ext(out)
		if len(ext) >= maxNameBytes {
			ext = ""
		}
		cut := maxNameBytes - len(ext)
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = out[:cut] + ext
	}
	return out
}
