// Package storage owns the per-job artifact directory layout. Every stage
// reads and writes named files here; paths stored on the job record are
// relative to the storage root so they can be returned verbatim.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type Store struct {
	root string
}

func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) Root() string { return s.root }

// UploadsDir holds the submitted source files for one job.
func (s *Store) UploadsDir(jobID string) string {
	return filepath.Join(s.root, "uploads", jobID)
}

// OutputsDir holds every artifact the pipeline produces for one job.
// It is exclusively owned by that job.
func (s *Store) OutputsDir(jobID string) string {
	return filepath.Join(s.root, "outputs", jobID)
}

// JobsDir holds the persisted job records.
func (s *Store) JobsDir() string {
	return filepath.Join(s.root, "jobs")
}

// Rel converts an absolute artifact path into its storage-root-relative
// form. Paths outside the root are returned unchanged.
func (s *Store) Rel(abs string) string {
	rel, err := filepath.Rel(s.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return abs
	}
	return filepath.ToSlash(rel)
}

// Abs resolves a storage-root-relative path back to an absolute one.
func (s *Store) Abs(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

// FileExists reports whether path is a non-empty regular file. Stage resume
// predicates use this so a half-written artifact never counts as complete;
// writers pair it with WriteFileAtomic.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// WriteFileAtomic writes data to a sibling temp file and renames it into
// place, so readers never observe a partially written artifact.
func WriteFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
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
	return os.Rename(tmpName, path)
}

// WriteJSON persists v as indented JSON at path, atomically.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return WriteFileAtomic(path, data)
}

// ReadJSON loads JSON from path into v.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
