package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hazyhaar/cvwatch/dbopen"
	"github.com/hazyhaar/cvwatch/domwatch/mutation"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s := New(dbopen.OpenMemory(t))
	if err := s.Init(); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return s
}

func testArtifact(url string, n int) mutation.Artifact {
	var msgs []mutation.Message
	for i := 0; i < n; i++ {
		msgs = append(msgs, mutation.NewEventMessage(mutation.Event{Type: mutation.KindTextChanged}, int64(100+i)))
	}
	return mutation.NewArtifact(url, msgs, 999)
}

func TestInitCreatesCollections(t *testing.T) {
	s := testStore(t)
	if err := s.Init(); err != nil {
		t.Fatalf("second Init: %v", err)
	}
	for _, name := range Collections {
		var got string
		err := s.DB.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&got)
		if err != nil {
			t.Errorf("table %s: %v", name, err)
		}
	}
	for _, idx := range []string{
		"idx_crawl_instance_group_file",
		"idx_vanilla_dommutation_group_instance",
		"idx_adb_webrequests_group_instance",
	} {
		var got string
		if err := s.DB.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'index' AND name = ?`, idx).Scan(&got); err != nil {
			t.Errorf("index %s: %v", idx, err)
		}
	}
}

func TestSaveArtifactIdempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	opts := ImportOptions{CrawlGroup: "g1", Collection: VanillaDOMMutation, WithEvents: true}

	ci, n, err := s.SaveArtifact(ctx, "a.json", "", testArtifact("http://a.test/", 3), opts)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if n != 3 {
		t.Errorf("events: got %d, want 3", n)
	}
	again, n2, err := s.SaveArtifact(ctx, "a.json", "", testArtifact("http://a.test/", 3), opts)
	if err != nil {
		t.Fatalf("save again: %v", err)
	}
	if again.ID != ci.ID {
		t.Errorf("instance id: got %q, want %q", again.ID, ci.ID)
	}
	if n2 != 0 {
		t.Errorf("events on second save: got %d, want 0", n2)
	}

	list, err := s.CrawlInstances(ctx, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("instances: got %d, want 1", len(list))
	}
	if list[0].StartTime == nil || *list[0].StartTime != 100 || list[0].EndTime != 999 {
		t.Errorf("times: got %v, %d", list[0].StartTime, list[0].EndTime)
	}

	msgs, err := s.Events(ctx, VanillaDOMMutation, ci.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 || msgs[2].Time != 102 {
		t.Errorf("stored events: got %+v", msgs)
	}
	if _, err := s.Events(ctx, VanillaDOMMutation, "a.json"); err == nil {
		t.Error("Events with a file name as id: expected error")
	}
}

func TestControlFlagSeparatesInstances(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	a := testArtifact("http://a.test/", 0)
	c, _, err := s.SaveArtifact(ctx, "a.json", "", a, ImportOptions{CrawlGroup: "g", Control: true})
	if err != nil {
		t.Fatal(err)
	}
	v, _, err := s.SaveArtifact(ctx, "a.json", "", a, ImportOptions{CrawlGroup: "g"})
	if err != nil {
		t.Fatal(err)
	}
	if c.ID == v.ID {
		t.Error("control and variant share an instance")
	}
	list, _ := s.CrawlInstances(ctx, "g")
	for _, ci := range list {
		if ci.StartTime != nil {
			t.Errorf("empty artifact: want nil start time, got %d", *ci.StartTime)
		}
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"http://a.test/page", "http://a.test/page"},
		{"http://a.test/g00/abc", "http://a.test/"},
	}
	for _, tt := range tests {
		if got := NormalizeURL(tt.in); got != tt.want {
			t.Errorf("NormalizeURL(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestImportOptionsValidation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	if _, _, err := s.SaveArtifact(ctx, "a", "", testArtifact("u", 1), ImportOptions{}); err == nil {
		t.Error("missing crawl group: want error")
	}
	_, _, err := s.SaveArtifact(ctx, "a", "", testArtifact("u", 1),
		ImportOptions{CrawlGroup: "g", Collection: CrawlInstances, WithEvents: true})
	if err == nil {
		t.Error("non-event collection: want error")
	}
}

func TestImportDir(t *testing.T) {
	s := testStore(t)
	dir := t.TempDir()
	for name, a := range map[string]mutation.Artifact{
		"a--cvdommutationvanilla.json": testArtifact("http://a.test/", 2),
		"b--cvdommutationvanilla.json": testArtifact("http://b.test/g00/x", 1),
	} {
		data, err := mutation.MarshalArtifact(&a)
		if err != nil {
			t.Fatal(err)
		}
		os.WriteFile(filepath.Join(dir, name), data, 0o644)
	}
	os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644)
	os.WriteFile(filepath.Join(dir, ".DS_Store"), []byte("x"), 0o644)
	os.Mkdir(filepath.Join(dir, "sub.json"), 0o755)

	opts := ImportOptions{CrawlGroup: "g", Collection: AdBlockDOMMutation, WithEvents: true}
	stats, err := s.Import(context.Background(), dir, opts, nil)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	want := ImportStats{Files: 3, Instances: 2, Events: 3, Skipped: 1}
	if stats != want {
		t.Errorf("stats: got %+v, want %+v", stats, want)
	}

	list, _ := s.CrawlInstances(context.Background(), "g")
	if len(list) != 2 || list[1].URL != "http://b.test/" {
		t.Errorf("instances: got %+v", list)
	}
}
