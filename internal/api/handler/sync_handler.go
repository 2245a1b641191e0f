package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campuslink/portal-sync/internal/api/dto"
	"github.com/campuslink/portal-sync/internal/api/storage"
	"github.com/campuslink/portal-sync/internal/domain"
)

// CreateSync handles POST /api/v1/sync
// Creates a new sync job and dispatches it to the worker fleet
func (h *SyncHandler) CreateSync(c *gin.Context) {
	var req dto.CreateSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	kind := domain.JobKind(req.Kind)
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "kind must be INITIAL_SYNC or REFRESH_SYNC",
		})
		return
	}

	job, err := h.enqueuer.Enqueue(c.Request.Context(), req.UserID, kind)
	if err != nil {
		h.logger.Error("Failed to enqueue sync job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to enqueue sync job",
		})
		return
	}

	c.JSON(http.StatusAccepted, jobToDTO(job))
}

// GetJob handles GET /api/v1/sync/jobs/:job_id
// Retrieves the status of a single sync job
func (h *SyncHandler) GetJob(c *gin.Context) {
	jobID, err := strconv.ParseInt(c.Param("job_id"), 10, 64)
	if err != nil || jobID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a positive integer",
		})
		return
	}

	job, err := h.queries.GetJobByID(c.Request.Context(), jobID)
	if errors.Is(err, domain.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Job not found",
		})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	c.JSON(http.StatusOK, jobToDTO(job))
}

// ListJobs handles GET /api/v1/sync/jobs
// Lists sync jobs with optional filtering and cursor pagination
func (h *SyncHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := storage.JobFilter{
		UserID:   req.UserID,
		Kind:     req.Kind,
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	}

	jobs, err := h.queries.ListJobs(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs",
		})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	jobResponse := make([]dto.JobDTO, len(jobs))
	for i := range jobs {
		jobResponse[i] = jobToDTO(&jobs[i])
	}

	var nextCursor string
	if hasMore {
		lastJob := jobs[len(jobs)-1]
		nextCursor, err = EncodeJobCursor(&storage.JobCursor{
			CreatedAt: lastJob.CreatedAt,
			ID:        lastJob.ID,
		})
		if err != nil {
			h.logger.Error("Failed to encode next cursor", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to encode next cursor",
			})
			return
		}
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}

func jobToDTO(job *domain.Job) dto.JobDTO {
	return dto.JobDTO{
		JobID:        job.ID,
		UserID:       job.UserID,
		Kind:         string(job.Kind),
		Status:       string(job.Status),
		Phase:        string(job.Phase),
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    job.UpdatedAt.Format(time.RFC3339),
	}
}
