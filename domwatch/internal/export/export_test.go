package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/cvwatch/dbopen"
	"github.com/hazyhaar/cvwatch/domwatch/mutation"
	"github.com/hazyhaar/cvwatch/store"
)

func TestSafeName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"http://example.com--cvdommutationvanilla.json", "http___example.com--cvdommutationvanilla.json"},
		{"my-file--x.json", "my-file--x.json"},
		{"../../etc/passwd", "_.._etc_passwd"},
		{"...", "download"},
		{"a?b*c.json", "a_b_c.json"},
	}
	for _, tt := range tests {
		if got := SafeName(tt.in); got != tt.want {
			t.Errorf("SafeName(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSafeNameLong(t *testing.T) {
	name := "http://a.test/" + strings.Repeat("é", 300) + ".json"
	got := SafeName(name)
	if len(got) > maxNameBytes {
		t.Errorf("length: got %d, want <= %d", len(got), maxNameBytes)
	}
	if !strings.HasSuffix(got, ".json") {
		t.Errorf("extension lost: %q", got[len(got)-10:])
	}
}

func TestFileExport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	f := NewFile(dir)
	a := mutation.NewArtifact("http://a.test/", nil, 5)
	name := mutation.ArtifactName(a.URL, "", mutation.DefaultFileSuffix)
	if err := f.Export(context.Background(), name, a); err != nil {
		t.Fatalf("Export: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, SafeName(name)))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"url":"http://a.test/","dommutation":[],"startTime":"","endTime":5}`
	if string(data) != want {
		t.Errorf("file: got %s, want %s", data, want)
	}
}

func TestFileExportKeepsEarlierArtifacts(t *testing.T) {
	dir := t.TempDir()
	f := NewFile(dir)
	ctx := context.Background()
	// "/x?y" and "/x_y" share a safe name; the first is then revisited.
	for i, u := range []string{"http://a.test/x?y", "http://a.test/x_y", "http://a.test/x?y"} {
		a := mutation.NewArtifact(u, nil, int64(i))
		if err := f.Export(ctx, mutation.ArtifactName(u, "", ".v"), a); err != nil {
			t.Fatalf("Export %d: %v", i, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	want := []string{"http___a.test_x_y.v (1).json", "http___a.test_x_y.v (2).json", "http___a.test_x_y.v.json"}
	if strings.Join(names, "|") != strings.Join(want, "|") {
		t.Errorf("files:\ngot  %q\nwant %q", names, want)
	}
}

func TestNumberedFitsNameLimit(t *testing.T) {
	base := strings.Repeat("é", 125) + ".json"
	got := numbered(base, 12)
	if len(got) > maxNameBytes {
		t.Errorf("length: got %d, want <= %d", len(got), maxNameBytes)
	}
	if !strings.HasSuffix(got, " (12).json") {
		t.Errorf("suffix: got %q", got[len(got)-12:])
	}
	if numbered("a.json", 0) != "a.json" {
		t.Error("n == 0: want the name unchanged")
	}
}

func TestMultiFirstError(t *testing.T) {
	boom := errors.New("boom")
	var calls int
	ok := Func(func(context.Context, string, mutation.Artifact) error { calls++; return nil })
	bad := Func(func(context.Context, string, mutation.Artifact) error { return boom })
	m := NewMulti(nil, bad, ok)
	if err := m.Export(context.Background(), "n", mutation.Artifact{}); !errors.Is(err, boom) {
		t.Errorf("Export: got %v, want boom", err)
	}
	if calls != 1 {
		t.Errorf("healthy exporter: got %d calls, want 1", calls)
	}
}

func TestStoreExport(t *testing.T) {
	s := store.New(dbopen.OpenMemory(t))
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	e := NewStore(s, store.ImportOptions{CrawlGroup: "live", Collection: store.VanillaDOMMutation, WithEvents: true})
	msgs := []mutation.Message{mutation.NewEventMessage(mutation.Event{Type: mutation.KindDOMContentLoaded}, 7)}
	if err := e.Export(context.Background(), "a.json", mutation.NewArtifact("http://a.test/", msgs, 9)); err != nil {
		t.Fatalf("Export: %v", err)
	}
	list, err := s.CrawlInstances(context.Background(), "live")
	if err != nil || len(list) != 1 {
		t.Fatalf("instances: got %v, %v", list, err)
	}
	if list[0].FileName != "a.json" {
		t.Errorf("file name: got %q", list[0].FileName)
	}
}
