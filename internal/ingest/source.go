package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"

	"hometracker/server/internal/models"
)

// Source supplies scraped listing batches. The scrape stages themselves
// (fetching, parsing) live outside this process; the engine only needs a
// stream of already-extracted records with stable identities.
type Source interface {
	Next() ([]*models.Listing, error)
}

// DirSource reads batch files dropped by the scrape stages into a
// directory. Each file is a JSON array of listings with nested
// communities; processed files are moved to a done/ subdirectory so a
// crash mid-pass never loses or double-counts a batch file.
type DirSource struct {
	dir    string
	logger *logrus.Logger
}

func NewDirSource(dir string, logger *logrus.Logger) (*DirSource, error) {
	if err := os.MkdirAll(filepath.Join(dir, "done"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create batch directory: %w", err)
	}
	return &DirSource{dir: dir, logger: logger}, nil
}

// Next returns the oldest unprocessed batch, or nil when the directory is
// empty.
func (s *DirSource) Next() ([]*models.Listing, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		names = append(names, entry.Name())
	}
	if len(names) == 0 {
		return nil, nil
	}
	sort.Strings(names)

	name := names[0]
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file %s: %w", name, err)
	}

	var batch []*models.Listing
	if err := json.Unmarshal(data, &batch); err != nil {
		// A malformed file would block the queue forever; park it and
		// move on.
		s.logger.WithError(err).WithField("file", name).Error("Malformed batch file, moving to done/")
		if moveErr := s.markDone(name); moveErr != nil {
			return nil, moveErr
		}
		return nil, fmt.Errorf("malformed batch file %s: %w", name, err)
	}

	if err := s.markDone(name); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"file":     name,
		"listings": len(batch),
	}).Info("Loaded scrape batch")
	return batch, nil
}

func (s *DirSource) markDone(name string) error {
	src := filepath.Join(s.dir, name)
	dst := filepath.Join(s.dir, "done", name)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("failed to move processed batch %s: %w", name, err)
	}
	return nil
}
