package cache

import (
	"os"
	"path/filepath"
	"time"

	"github.com/dagrunner/dagrunner-go/internal/graph"
)

// FileStore is the default Store: one artifact file per TaskID under a
// configured directory.
type FileStore struct {
	Dir string
}

// Stat reports the artifact's mtime if present under Dir.
func (s FileStore) Stat(taskID graph.TaskID) (time.Time, bool, error) {
	info, err := os.Stat(s.artifactPath(taskID))
	if os.IsNotExist(err) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return info.ModTime(), true, nil
}

// Touch writes (or updates the mtime of) the artifact for taskID, used by
// callers finishing a real task execution to record a fresh cache entry.
func (s FileStore) Touch(taskID graph.TaskID) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	path := s.artifactPath(taskID)
	now := time.Now()
	if f, err := os.OpenFile(path, os.O_RDONLY, 0); err == nil {
		f.Close()
		return os.Chtimes(path, now, now)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	return f.Close()
}

func (s FileStore) artifactPath(taskID graph.TaskID) string {
	return filepath.Join(s.Dir, taskID.String())
}
