package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/asaadkhaja99/rabbit-hole/internal/api/dto"
	"github.com/asaadkhaja99/rabbit-hole/internal/domain"
	"github.com/asaadkhaja99/rabbit-hole/internal/job"
	"github.com/gin-gonic/gin"
)

var learningPlanMessages = map[string]string{
	"Title":    "title is required",
	"Abstract": "abstract is required",
}

// JobHandler handles learning-plan job requests
type JobHandler struct {
	logger *slog.Logger
	jobs   JobService
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger,
		jobs:   deps.Jobs,
	}
}

// GenerateLearningPlan handles POST /api/learning-plan/generate.
// The job runs in the background; the response only carries its id.
func (h *JobHandler) GenerateLearningPlan(c *gin.Context) {
	var req dto.LearningPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err, invalidBody, learningPlanMessages)
		return
	}

	jobID, err := h.jobs.Enqueue(c.Request.Context(), job.Request{
		Title:    req.Title,
		Abstract: req.Abstract,
		FullText: req.FullText,
		Sections: req.Sections,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.LearningPlanResponse{
		JobID:   jobID,
		Status:  string(job.StatusProcessing),
		Message: fmt.Sprintf("Learning plan generation started. Poll /api/learning-plan/status/%s", jobID),
	})
}

// GetLearningPlanStatus handles GET /api/learning-plan/status/:job_id
func (h *JobHandler) GetLearningPlanStatus(c *gin.Context) {
	jobID := c.Param("job_id")

	view, err := h.jobs.GetStatus(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job ID not found"})
			return
		}
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, view)
}
