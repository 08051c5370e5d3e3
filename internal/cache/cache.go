// Package cache owns the on-disk snapshot of the game catalog and the
// freshness policy that decides when it must be rebuilt.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	constants "github.com/kingBirds/games-website/internal/constants"
	models "github.com/kingBirds/games-website/internal/models"
	util "github.com/kingBirds/games-website/internal/util"
)

// Store persists the Snapshot and its CacheMetadata as two whole-document
// JSON files. Writes replace the document atomically, so concurrent readers
// only ever observe a fully committed pair.
type Store struct {
	Dir string
}

func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

func (s *Store) snapshotPath() string {
	return filepath.Join(s.Dir, constants.SnapshotFileName)
}

func (s *Store) metadataPath() string {
	return filepath.Join(s.Dir, constants.MetadataFileName)
}

func (s *Store) ensureDir() error {
	return os.MkdirAll(s.Dir, 0o755)
}

// WriteSnapshot replaces the snapshot document. It must be called before
// WriteMetadata so readers never see fresh metadata describing a missing
// snapshot.
func (s *Store) WriteSnapshot(snap *models.Snapshot) error {
	if err := s.ensureDir(); err != nil {
		return err
	}
	return writeJSONAtomic(s.snapshotPath(), snap)
}

// ReadSnapshot returns the current snapshot, or nil when there is none or it
// cannot be parsed. Corrupt data is treated the same as absent data.
func (s *Store) ReadSnapshot() *models.Snapshot {
	data, err := os.ReadFile(s.snapshotPath())
	if err != nil {
		if !os.IsNotExist(err) {
			util.LogWarn("Failed to read snapshot: %v", err)
		}
		return nil
	}
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		util.LogWarn("Corrupt snapshot file, treating as absent: %v", err)
		return nil
	}
	return &snap
}

func (s *Store) WriteMetadata(meta *models.CacheMetadata) error {
	if err := s.ensureDir(); err != nil {
		return err
	}
	return writeJSONAtomic(s.metadataPath(), meta)
}

// ReadMetadata returns the current metadata, or nil when absent or corrupt.
func (s *Store) ReadMetadata() *models.CacheMetadata {
	data, err := os.ReadFile(s.metadataPath())
	if err != nil {
		return nil
	}
	var meta models.CacheMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		util.LogWarn("Corrupt metadata file, treating as absent: %v", err)
		return nil
	}
	return &meta
}

// SnapshotSize reports the snapshot file size in bytes, 0 when absent.
func (s *Store) SnapshotSize() int64 {
	info, err := os.Stat(s.snapshotPath())
	if err != nil {
		return 0
	}
	return info.Size()
}

// writeJSONAtomic marshals v to a temp file in the target directory and
// renames it into place. Rename within one filesystem is atomic, so a reader
// sees either the old document or the new one, never a torn write.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// IsValid is the whole freshness policy: absent metadata is invalid, and a
// snapshot is usable strictly less than the TTL after its last update.
// Exactly TTL old counts as invalid.
func IsValid(meta *models.CacheMetadata, now time.Time, ttl time.Duration) bool {
	if meta == nil {
		return false
	}
	return now.Sub(meta.LastUpdated) < ttl
}

// StatusLabel derives the display status: fresh inside the TTL, stale up to
// twice the TTL, expired beyond that.
func StatusLabel(meta *models.CacheMetadata, now time.Time, ttl time.Duration) string {
	if meta == nil {
		return constants.CacheStatusExpired
	}
	age := now.Sub(meta.LastUpdated)
	switch {
	case age < ttl:
		return constants.CacheStatusFresh
	case age < 2*ttl:
		return constants.CacheStatusStale
	default:
		return constants.CacheStatusExpired
	}
}
