package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RetentionConfig bounds how many artifacts are kept on disk.
type RetentionConfig struct {
	// MaxAgeDays removes artifacts older than this many days (0 = no age limit).
	MaxAgeDays int

	// MaxArtifacts caps the number of retained artifacts; oldest are
	// removed first (0 = no count limit).
	MaxArtifacts int
}

// IsEnabled reports whether any retention limit applies.
func (r RetentionConfig) IsEnabled() bool {
	return r.MaxAgeDays > 0 || r.MaxArtifacts > 0
}

// GCResult contains the results of a garbage collection pass.
type GCResult struct {
	// Removed is the number of artifacts deleted.
	Removed int

	// BytesFreed is the total size of deleted artifacts.
	BytesFreed int64

	// Errors contains per-file deletion failures; GC continues past them.
	Errors []error
}

// GarbageCollect removes artifacts that violate the retention policy.
// Dry-run is not supported; call with a disabled policy to do nothing.
func (s *Store) GarbageCollect(ctx context.Context, retention RetentionConfig) (*GCResult, error) {
	result := &GCResult{}
	if !retention.IsEnabled() {
		return result, nil
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return result, fmt.Errorf("read output directory: %w", err)
	}

	type candidate struct {
		path    string
		modTime time.Time
		size    int64
	}

	var artifacts []candidate
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jpg") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, candidate{
			path:    filepath.Join(s.root, entry.Name()),
			modTime: info.ModTime(),
			size:    info.Size(),
		})
	}

	// Oldest first so count-based eviction drops from the front.
	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].modTime.Before(artifacts[j].modTime)
	})

	doomed := make(map[string]candidate)

	if retention.MaxAgeDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -retention.MaxAgeDays)
		for _, a := range artifacts {
			if a.modTime.Before(cutoff) {
				doomed[a.path] = a
			}
		}
	}

	if retention.MaxArtifacts > 0 && len(artifacts) > retention.MaxArtifacts {
		for _, a := range artifacts[:len(artifacts)-retention.MaxArtifacts] {
			doomed[a.path] = a
		}
	}

	for _, a := range doomed {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := os.Remove(a.path); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("remove %s: %w", a.path, err))
			continue
		}
		_ = os.Remove(a.path + ".lock")
		result.Removed++
		result.BytesFreed += a.size
	}

	return result, nil
}
