package plugin

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// cacheVersion gates the on-disk snapshot format; bump when Descriptor
// changes shape so stale caches are rejected rather than misread.
const cacheVersion = "1"

// FileStamp captures the (path, mtime, size) tuple used to decide whether
// the on-disk snapshot is still fresh (spec §4.1 "Caching").
type FileStamp struct {
	Path    string    `json:"path"`
	ModTime time.Time `json:"mod_time"`
	Size    int64     `json:"size"`
}

// Snapshot is the JSON sidecar format persisted by Cache.Save.
type Snapshot struct {
	Version     string       `json:"version"`
	Stamps      []FileStamp  `json:"stamps"`
	Descriptors []*Descriptor `json:"descriptors"`
}

// Cache persists a Registry snapshot keyed by the scanned files' modification
// times and sizes. The cache is advisory: any mismatch — a missing stamp, a
// changed size, a touched mtime, a version bump — forces a full rescan,
// never a partial or stale result (spec §4.1 "Caching").
type Cache struct {
	Path string
}

// NewCache builds a Cache rooted at the given sidecar file path.
func NewCache(path string) *Cache {
	return &Cache{Path: path}
}

// Stamp computes the FileStamp for every candidate file under the given
// search paths, used both to write a fresh snapshot and to check staleness.
func Stamp(searchPaths []string, scanner *Scanner) []FileStamp {
	if scanner == nil {
		scanner = NewScanner()
	}

	var stamps []FileStamp
	for _, dir := range searchPaths {
		candidates, err := scanner.listCandidates(dir)
		if err != nil {
			continue
		}
		for _, c := range candidates {
			info, err := os.Stat(c.path)
			if err != nil {
				continue
			}
			stamps = append(stamps, FileStamp{Path: c.path, ModTime: info.ModTime(), Size: info.Size()})
		}
	}
	return stamps
}

// Fresh reports whether the persisted snapshot's stamps match the current
// filesystem state exactly (same set of files, same mtimes and sizes).
func (c *Cache) Fresh(current []FileStamp) (*Snapshot, bool) {
	snap, err := c.load()
	if err != nil {
		return nil, false
	}
	if snap.Version != cacheVersion {
		return nil, false
	}
	if len(snap.Stamps) != len(current) {
		return nil, false
	}

	byPath := make(map[string]FileStamp, len(snap.Stamps))
	for _, s := range snap.Stamps {
		byPath[s.Path] = s
	}
	for _, c2 := range current {
		prev, ok := byPath[c2.Path]
		if !ok || !prev.ModTime.Equal(c2.ModTime) || prev.Size != c2.Size {
			return nil, false
		}
	}

	return snap, true
}

func (c *Cache) load() (*Snapshot, error) {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Save persists the registry's descriptors and the file stamps they were
// derived from, atomically (write-temp-then-rename, mirroring the
// orchestrator's own pipeline registry persistence idiom).
func (c *Cache) Save(stamps []FileStamp, descriptors []*Descriptor) error {
	if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
		return err
	}

	snap := Snapshot{Version: cacheVersion, Stamps: stamps, Descriptors: descriptors}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	tmp := c.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, c.Path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// BuildCached wraps Build with the snapshot cache: if the current
// filesystem state matches the persisted stamps exactly, the cached
// descriptors are used verbatim instead of rescanning.
func BuildCached(ctx context.Context, searchPaths []string, scanner *Scanner, cache *Cache) (*Registry, []Advisory) {
	if scanner == nil {
		scanner = NewScanner()
	}
	current := Stamp(searchPaths, scanner)

	if cache != nil {
		if snap, fresh := cache.Fresh(current); fresh {
			return registryFromDescriptors(snap.Descriptors), nil
		}
	}

	reg, advisories := Build(ctx, searchPaths, scanner)
	if cache != nil {
		_ = cache.Save(current, reg.All())
	}
	return reg, advisories
}

func registryFromDescriptors(descs []*Descriptor) *Registry {
	return NewRegistry(descs)
}
