package autosearch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileWantedProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wanted.json")
	content := []byte(`[
		{"mediaType": "movie", "mediaId": 1, "title": "Some Movie", "year": 2023},
		{"mediaType": "episode", "mediaId": 2, "title": "Some Show", "season": 1, "episode": 3}
	]`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write wanted file: %v", err)
	}

	items, err := NewFileWantedProvider(path).ListWanted(context.Background())
	if err != nil {
		t.Fatalf("ListWanted: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].MediaType != "movie" || items[0].Year != 2023 {
		t.Errorf("unexpected first item: %+v", items[0])
	}
	if items[1].Season != 1 || items[1].Episode != 3 {
		t.Errorf("unexpected second item: %+v", items[1])
	}
}

func TestFileWantedProvider_MissingFile(t *testing.T) {
	items, err := NewFileWantedProvider(filepath.Join(t.TempDir(), "nope.json")).ListWanted(context.Background())
	if err != nil {
		t.Fatalf("missing file should not error, got %v", err)
	}
	if len(items) != 0 {
		t.Errorf("items = %d, want 0", len(items))
	}
}

func TestFileWantedProvider_Malformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wanted.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write wanted file: %v", err)
	}
	if _, err := NewFileWantedProvider(path).ListWanted(context.Background()); err == nil {
		t.Fatal("expected error for malformed file")
	}
}
