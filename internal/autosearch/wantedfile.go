package autosearch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// FileWantedProvider reads the wanted list from a JSON file on every
// run, so edits take effect without a restart. A missing file is an
// empty list, not an error.
type FileWantedProvider struct {
	path string
}

func NewFileWantedProvider(path string) *FileWantedProvider {
	return &FileWantedProvider{path: path}
}

func (p *FileWantedProvider) ListWanted(_ context.Context) ([]WantedItem, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read wanted file: %w", err)
	}

	var items []WantedItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse wanted file %s: %w", p.path, err)
	}
	return items, nil
}
