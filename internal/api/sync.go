package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/david/opportunity-radar/internal/scheduler"
)

// handleSync syncs ?source= or every active source. With ?async=true the
// run happens in the background and the response carries a job id to poll.
func (s *Server) handleSync(c echo.Context) error {
	source := strings.TrimSpace(c.QueryParam("source"))
	async, _ := strconv.ParseBool(c.QueryParam("async"))

	if !async {
		result := s.sync.Sync(c.Request().Context(), source)
		return c.JSON(http.StatusOK, result)
	}

	job := s.startJob(source)
	ctx := context.WithoutCancel(c.Request().Context())
	go func() {
		result := s.sync.Sync(ctx, source)
		s.finishJob(job.ID, result, result.Success)
	}()

	return c.JSON(http.StatusAccepted, map[string]any{
		"message": "Sync job started",
		"job_id":  job.ID,
		"poll":    "/api/v1/sync/jobs/" + job.ID,
	})
}

func (s *Server) handleSyncNext(c echo.Context) error {
	return c.JSON(http.StatusOK, s.sync.SyncNext(c.Request().Context()))
}

func (s *Server) handleSyncStatus(c echo.Context) error {
	st, err := s.sync.Status(c.Request().Context())
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) handleSyncRanking(c echo.Context) error {
	ranked, err := s.sync.Ranking(c.Request().Context())
	if err != nil {
		return s.writeError(c, err)
	}
	if ranked == nil {
		ranked = []scheduler.Ranked{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"ranking": ranked,
		"next":    scheduler.NextByPriority(ranked),
	})
}

func (s *Server) startJob(source string) *backgroundJob {
	job := &backgroundJob{ID: uuid.NewString(), Status: "running", Source: source, StartedAt: time.Now()}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)
	for len(s.order) > maxJobs {
		delete(s.jobs, s.order[0])
		s.order = s.order[1:]
	}
	return job
}

func (s *Server) finishJob(id string, result any, ok bool) {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	job, found := s.jobs[id]
	if !found {
		return
	}
	job.EndedAt = time.Now()
	job.Result = result
	job.Status = "completed"
	if !ok {
		job.Status = "failed"
	}
	s.logger.Info("sync job finished", "job_id", id, "status", job.Status, "duration_ms", job.EndedAt.Sub(job.StartedAt).Milliseconds())
}

func (s *Server) handleJobStatus(c echo.Context) error {
	s.jobMu.Lock()
	job, ok := s.jobs[c.Param("id")]
	var snapshot backgroundJob
	if ok {
		snapshot = *job
	}
	s.jobMu.Unlock()

	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}
	return c.JSON(http.StatusOK, snapshot)
}
