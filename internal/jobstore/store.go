// Package jobstore persists job records. The orchestrator only depends on
// the Store interface, so the flat-file engine can be swapped without
// touching pipeline code.
package jobstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"papervid/internal/storage"
	"papervid/internal/types"
)

var ErrNotFound = errors.New("job not found")

// ConfigPatch updates individual job config fields. Nil fields keep the
// current value.
type ConfigPatch struct {
	Model          *string
	EnableVideo    *bool
	VoiceClone     *bool
	TTSSpeed       *float64
	VoiceID        *string
	OutputLanguage *string
}

// Patch is an atomic merge patch: Paths and Config merge field-by-field into
// the existing record, everything else replaces the current value when set.
type Patch struct {
	Status     *types.JobStatus
	Paths      types.JobPaths
	Config     *ConfigPatch
	Error      *string
	ErrorStage *string
}

type Store interface {
	Get(id string) (*types.Job, error)
	Create(job *types.Job) error
	Update(id string, patch Patch) (*types.Job, error)
}

// FileStore keeps one JSON file per job under <dir>/<id>.json.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create jobs dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *FileStore) Get(id string) (*types.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(id)
}

func (s *FileStore) read(id string) (*types.Job, error) {
	var job types.Job
	if err := storage.ReadJSON(s.path(id), &job); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read job %s: %w", id, err)
	}
	return &job, nil
}

func (s *FileStore) Create(job *types.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path(job.ID)); err == nil {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.Paths == nil {
		job.Paths = types.JobPaths{}
	}
	return storage.WriteJSON(s.path(job.ID), job)
}

func (s *FileStore) Update(id string, patch Patch) (*types.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.read(id)
	if err != nil {
		return nil, err
	}

	if patch.Status != nil {
		job.Status = *patch.Status
	}
	if patch.Error != nil {
		job.Error = *patch.Error
	}
	if patch.ErrorStage != nil {
		job.ErrorStage = *patch.ErrorStage
	}
	if job.Paths == nil {
		job.Paths = types.JobPaths{}
	}
	for kind, path := range patch.Paths {
		job.Paths[kind] = path
	}
	if cp := patch.Config; cp != nil {
		if cp.Model != nil {
			job.Config.Model = *cp.Model
		}
		if cp.EnableVideo != nil {
			job.Config.EnableVideo = *cp.EnableVideo
		}
		if cp.VoiceClone != nil {
			job.Config.VoiceClone = *cp.VoiceClone
		}
		if cp.TTSSpeed != nil {
			job.Config.TTSSpeed = *cp.TTSSpeed
		}
		if cp.VoiceID != nil {
			job.Config.VoiceID = *cp.VoiceID
		}
		if cp.OutputLanguage != nil {
			job.Config.OutputLanguage = *cp.OutputLanguage
		}
	}
	job.UpdatedAt = time.Now().UTC()

	if err := storage.WriteJSON(s.path(id), job); err != nil {
		return nil, fmt.Errorf("write job %s: %w", id, err)
	}
	return job, nil
}

// Helpers for building patches without local temporaries at call sites.

func StatusPatch(status types.JobStatus) Patch {
	return Patch{Status: &status}
}

func FailurePatch(stage string, cause error) Patch {
	status := types.StatusFailed
	msg := cause.Error()
	return Patch{Status: &status, Error: &msg, ErrorStage: &stage}
}

func String(v string) *string { return &v }
