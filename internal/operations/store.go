package operations

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"reportexport/internal/exporter"
)

// JobStore persists job records and finished artifacts.
type JobStore interface {
	CreateJob(job *Job) error
	GetJob(id string) (*Job, error)
	UpdateJob(job *Job) error
	ListJobs(filter JobFilter) ([]*Job, error)
	DeleteJob(id string) error

	SaveArtifact(id string, artifact *exporter.Artifact) error
	GetArtifact(id string) (*exporter.Artifact, error)

	// DeleteExpired removes terminal jobs whose ExpiresAt is before now and
	// returns how many were removed.
	DeleteExpired(now time.Time) (int, error)
}

// MemoryJobStore is an in-memory implementation of JobStore
type MemoryJobStore struct {
	mu        sync.RWMutex
	jobs      map[string]*Job
	artifacts map[string]*exporter.Artifact
}

// NewMemoryJobStore creates a new in-memory job store
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs:      make(map[string]*Job),
		artifacts: make(map[string]*exporter.Artifact),
	}
}

// CreateJob creates a new job
func (s *MemoryJobStore) CreateJob(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	jobCopy := *job
	s.jobs[job.ID] = &jobCopy
	return nil
}

// GetJob retrieves a copy of a job by ID
func (s *MemoryJobStore) GetJob(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return nil, fmt.Errorf("job %s: %w", id, ErrJobNotFound)
	}
	jobCopy := *job
	return &jobCopy, nil
}

// UpdateJob replaces an existing job
func (s *MemoryJobStore) UpdateJob(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; !exists {
		return fmt.Errorf("job %s: %w", job.ID, ErrJobNotFound)
	}
	jobCopy := *job
	s.jobs[job.ID] = &jobCopy
	return nil
}

// ListJobs returns matching jobs, newest first
func (s *MemoryJobStore) ListJobs(filter JobFilter) ([]*Job, error) {
	s.mu.RLock()
	result := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if !filter.matches(job) {
			continue
		}
		jobCopy := *job
		result = append(result, &jobCopy)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// DeleteJob removes a job and its artifact
func (s *MemoryJobStore) DeleteJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; !exists {
		return fmt.Errorf("job %s: %w", id, ErrJobNotFound)
	}
	delete(s.jobs, id)
	delete(s.artifacts, id)
	return nil
}

// SaveArtifact stores the finished file for a job
func (s *MemoryJobStore) SaveArtifact(id string, artifact *exporter.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; !exists {
		return fmt.Errorf("job %s: %w", id, ErrJobNotFound)
	}
	s.artifacts[id] = artifact
	return nil
}

// GetArtifact returns the stored file for a job
func (s *MemoryJobStore) GetArtifact(id string) (*exporter.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	artifact, exists := s.artifacts[id]
	if !exists {
		return nil, fmt.Errorf("artifact %s: %w", id, ErrJobNotFound)
	}
	return artifact, nil
}

// DeleteExpired removes terminal jobs past their expiry
func (s *MemoryJobStore) DeleteExpired(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, job := range s.jobs {
		if job.Status.Terminal() && job.ExpiresAt != nil && job.ExpiresAt.Before(now) {
			delete(s.jobs, id)
			delete(s.artifacts, id)
			deleted++
		}
	}
	return deleted, nil
}

// Stats counts jobs per status.
func (s *MemoryJobStore) Stats() map[JobStatus]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[JobStatus]int{
		JobStatusPending:   0,
		JobStatusRunning:   0,
		JobStatusCompleted: 0,
		JobStatusFailed:    0,
	}
	for _, job := range s.jobs {
		stats[job.Status]++
	}
	return stats
}
