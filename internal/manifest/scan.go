package manifest

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"sodareplay/internal/assetref"
)

// ScanAssets rebuilds the asset index from files already present under
// layout. Unrecognized file names are ignored and a missing directory counts
// as empty.
func ScanAssets(layout assetref.Layout) (Assets, error) {
	assets := NewAssets()
	for _, c := range assetref.Categories {
		names, err := listFiles(layout.Dir(c))
		if err != nil {
			return assets, err
		}
		for _, name := range names {
			key, ok := assetref.ParseFilename(name)
			if !ok {
				continue
			}
			if kc, _ := key.Category(); kc != c {
				continue
			}
			assets.add(key, filepath.Join(layout.Dir(c), name))
		}
	}

	entries, err := os.ReadDir(layout.CharactersRoot())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return assets, err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(layout.CharactersRoot(), entry.Name())
		names, err := listFiles(dir)
		if err != nil {
			return assets, err
		}
		parts := make([]string, 0, len(names))
		for _, name := range names {
			if _, ok := assetref.ParseFilename(name); ok {
				parts = append(parts, filepath.Join(dir, name))
			}
		}
		assets.Characters[entry.Name()] = parts
	}
	return assets, nil
}

func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
