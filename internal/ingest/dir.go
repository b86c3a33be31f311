package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"storm-decay-lab/internal/domain"
)

// DefaultLoadConcurrency bounds concurrently open files in LoadElementFiles.
const DefaultLoadConcurrency = 8

// ElementFiles lists the element files (*.csv, *.json) in dir, sorted by name.
func ElementFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".csv", ".json":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadElementFile reads one element file, choosing the parser by extension.
func LoadElementFile(path string) ([]*domain.ElementSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var elems []*domain.ElementSample
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		elems, err = ReadGPHistoryJSON(f)
	default:
		elems, err = ReadElementCSV(f)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return elems, nil
}

// LoadElementFiles reads files concurrently, at most limit at a time, and
// groups the element sets by catalog number. The first error cancels the
// remaining reads.
func LoadElementFiles(ctx context.Context, paths []string, limit int) (map[int][]*domain.ElementSample, error) {
	if limit <= 0 {
		limit = DefaultLoadConcurrency
	}

	var (
		mu     sync.Mutex
		groups = make(map[int][]*domain.ElementSample)
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			elems, err := LoadElementFile(path)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			for _, e := range elems {
				groups[e.CatalogID] = append(groups[e.CatalogID], e)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return groups, nil
}
