package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orrn/printdesk/internal/core"
	"github.com/orrn/printdesk/internal/model"
)

type SubmitJobRequest struct {
	File        model.FileMeta `json:"file"`
	Pages       int            `json:"pages" binding:"required"`
	PaperSize   string         `json:"paper_size"`
	ColorOption string         `json:"color_option" binding:"required"`
	Copies      *int           `json:"copies"`
	Notes       string         `json:"notes"`
}

type RecentJobsQuery struct {
	Limit int `form:"limit" binding:"min=0,max=100"`
}

type ListJobsQuery struct {
	UserID int64  `form:"user_id"`
	Status string `form:"status"`
	Limit  int    `form:"limit" binding:"min=0,max=100"`
	Offset int    `form:"offset" binding:"min=0"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type JobHandler struct {
	jobs        *core.JobManager
	history     *core.HistoryService
	recentLimit int
	logger      *slog.Logger
}

func NewJobHandler(jobs *core.JobManager, history *core.HistoryService, recentLimit int, logger *slog.Logger) *JobHandler {
	return &JobHandler{
		jobs:        jobs,
		history:     history,
		recentLimit: recentLimit,
		logger:      logger,
	}
}

func (h *JobHandler) SubmitJob(c *gin.Context) {
	var req SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	// One copy when the field is absent. An explicit value is validated as sent.
	copies := 1
	if req.Copies != nil {
		copies = *req.Copies
	}

	jobID, err := h.jobs.Submit(c.Request.Context(), core.SubmitRequest{
		UserID:      currentUser(c).UserID,
		File:        req.File,
		Pages:       req.Pages,
		PaperSize:   model.PaperSize(req.PaperSize),
		ColorOption: model.ColorOption(req.ColorOption),
		Copies:      copies,
		Notes:       req.Notes,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"job_id":  jobID,
		"status":  model.JobStatusPending,
		"message": "print request submitted",
	})
}

func (h *JobHandler) RecentJobs(c *gin.Context) {
	var query RecentJobsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, err.Error())
		return
	}
	if query.Limit == 0 {
		query.Limit = h.recentLimit
	}

	jobs, err := h.jobs.ListRecent(c.Request.Context(), currentUser(c).UserID, query.Limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// GetJob returns a job to its owner or to an administrator. Other users get
// a not-found response.
func (h *JobHandler) GetJob(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	job, err := h.jobs.GetJob(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	user := currentUser(c)
	if job.UserID != user.UserID && !user.Admin {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: fmt.Sprintf("job %d not found", id)})
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) History(c *gin.Context) {
	entries, err := h.history.HistoryFor(c.Request.Context(), currentUser(c).UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

func (h *JobHandler) ListJobs(c *gin.Context) {
	var query ListJobsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, err.Error())
		return
	}

	jobs, err := h.jobs.ListJobs(c.Request.Context(), model.JobFilter{
		UserID: query.UserID,
		Status: model.JobStatus(query.Status),
		Limit:  query.Limit,
		Offset: query.Offset,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (h *JobHandler) Stats(c *gin.Context) {
	stats, err := h.jobs.Stats(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *JobHandler) UpdateStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	actor := fmt.Sprintf("admin:%s", currentUser(c).Username)
	job, err := h.jobs.UpdateStatus(c.Request.Context(), id, model.JobStatus(req.Status), actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) AuditTrail(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	logs, err := h.jobs.AuditTrail(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audit": logs})
}
