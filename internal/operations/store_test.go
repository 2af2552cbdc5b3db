package operations

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportexport/internal/exporter"
	"reportexport/internal/report"
)

func TestMemoryJobStore(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("create get update", func(t *testing.T) {
		s := NewMemoryJobStore()
		job := &Job{ID: "a", Owner: "alice", Status: JobStatusPending, CreatedAt: base}
		require.NoError(t, s.CreateJob(job))
		require.Error(t, s.CreateJob(job))

		got, err := s.GetJob("a")
		require.NoError(t, err)
		got.Status = JobStatusRunning

		// callers hold copies
		again, _ := s.GetJob("a")
		assert.Equal(t, JobStatusPending, again.Status)

		require.NoError(t, s.UpdateJob(got))
		again, _ = s.GetJob("a")
		assert.Equal(t, JobStatusRunning, again.Status)
	})

	t.Run("unknown ids", func(t *testing.T) {
		s := NewMemoryJobStore()
		_, err := s.GetJob("missing")
		assert.ErrorIs(t, err, ErrJobNotFound)
		assert.ErrorIs(t, s.UpdateJob(&Job{ID: "missing"}), ErrJobNotFound)
		assert.ErrorIs(t, s.DeleteJob("missing"), ErrJobNotFound)
		assert.ErrorIs(t, s.SaveArtifact("missing", &exporter.Artifact{}), ErrJobNotFound)
		_, err = s.GetArtifact("missing")
		assert.ErrorIs(t, err, ErrJobNotFound)
	})

	t.Run("list filters and orders newest first", func(t *testing.T) {
		s := NewMemoryJobStore()
		for i, owner := range []string{"alice", "bob", "alice"} {
			require.NoError(t, s.CreateJob(&Job{
				ID:        string(rune('a' + i)),
				Owner:     owner,
				Format:    report.FormatCSV,
				Status:    JobStatusPending,
				CreatedAt: base.Add(time.Duration(i) * time.Minute),
			}))
		}

		jobs, err := s.ListJobs(JobFilter{Owner: "alice"})
		require.NoError(t, err)
		require.Len(t, jobs, 2)
		assert.Equal(t, "c", jobs[0].ID)
		assert.Equal(t, "a", jobs[1].ID)

		jobs, _ = s.ListJobs(JobFilter{Limit: 1})
		require.Len(t, jobs, 1)
		assert.Equal(t, "c", jobs[0].ID)

		jobs, _ = s.ListJobs(JobFilter{Status: JobStatusCompleted})
		assert.Empty(t, jobs)
	})

	t.Run("delete expired keeps live and unexpired jobs", func(t *testing.T) {
		s := NewMemoryJobStore()
		past := base.Add(-time.Minute)
		future := base.Add(time.Minute)

		require.NoError(t, s.CreateJob(&Job{ID: "old", Status: JobStatusCompleted, ExpiresAt: &past}))
		require.NoError(t, s.SaveArtifact("old", &exporter.Artifact{Data: []byte("x")}))
		require.NoError(t, s.CreateJob(&Job{ID: "fresh", Status: JobStatusFailed, ExpiresAt: &future}))
		require.NoError(t, s.CreateJob(&Job{ID: "running", Status: JobStatusRunning}))

		n, err := s.DeleteExpired(base)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		_, err = s.GetArtifact("old")
		assert.ErrorIs(t, err, ErrJobNotFound)
		stats := s.Stats()
		assert.Equal(t, 1, stats[JobStatusFailed])
		assert.Equal(t, 1, stats[JobStatusRunning])
		assert.Equal(t, 0, stats[JobStatusCompleted])
	})
}
