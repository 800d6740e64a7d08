package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/nexusgraph-backend/internal/domain"
	"github.com/yungbote/nexusgraph-backend/internal/http/response"
	"github.com/yungbote/nexusgraph-backend/internal/jobs"
	"github.com/yungbote/nexusgraph-backend/internal/platform/apierr"
	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
	"github.com/yungbote/nexusgraph-backend/internal/realtime"
)

const MaxBulkFiles = 10

type IngestService interface {
	Submit(ctx context.Context, filename string, size int64, r io.Reader) (types.IngestionJob, error)
	Documents(ctx context.Context, limit int) ([]*types.Document, error)
}

type JobRegistry interface {
	Get(ctx context.Context, jobID string) (types.IngestionJob, error)
	List(status types.JobStatus, limit int) []types.IngestionJob
	Cancel(ctx context.Context, jobID string) error
}

type IngestHandler struct {
	log    *logger.Logger
	ingest IngestService
	jobs   JobRegistry
	hub    *realtime.Hub
}

func NewIngestHandler(log *logger.Logger, ingest IngestService, registry JobRegistry, hub *realtime.Hub) *IngestHandler {
	return &IngestHandler{log: log.With("handler", "IngestHandler"), ingest: ingest, jobs: registry, hub: hub}
}

// POST /api/v1/ingest/upload (multipart "file")
func (h *IngestHandler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_file", err)
		return
	}
	job, err := h.submit(c.Request.Context(), fh)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, accepted(job))
}

// POST /api/v1/ingest/upload/bulk (multipart "files")
func (h *IngestHandler) BulkUpload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_multipart", err)
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		response.RespondError(c, http.StatusBadRequest, "missing_file", errors.New("no files provided"))
		return
	}
	if len(files) > MaxBulkFiles {
		response.RespondError(c, http.StatusBadRequest, "too_many_files",
			fmt.Errorf("at most %d files per request", MaxBulkFiles))
		return
	}

	out := types.BulkIngestionResponse{Jobs: make([]types.IngestionResponse, 0, len(files)), TotalFiles: len(files)}
	for _, fh := range files {
		job, err := h.submit(c.Request.Context(), fh)
		if err != nil {
			h.log.Warn("bulk upload file rejected", "filename", fh.Filename, "error", err)
			out.Jobs = append(out.Jobs, types.IngestionResponse{
				Status:  types.JobFailed,
				Message: fh.Filename + ": " + err.Error(),
			})
			continue
		}
		out.Jobs = append(out.Jobs, accepted(job))
	}
	response.RespondOK(c, out)
}

// GET /api/v1/ingest/status/:job_id
func (h *IngestHandler) Status(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		response.RespondErr(c, jobError(err))
		return
	}
	response.RespondOK(c, job)
}

// GET /api/v1/ingest/status?status=processing&limit=50
func (h *IngestHandler) List(c *gin.Context) {
	status := types.JobStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		response.RespondError(c, http.StatusBadRequest, "invalid_status", fmt.Errorf("unknown job status %q", status))
		return
	}
	response.RespondOK(c, h.jobs.List(status, queryInt(c, "limit", jobs.DefaultListLimit)))
}

// DELETE /api/v1/ingest/job/:job_id
func (h *IngestHandler) Cancel(c *gin.Context) {
	jobID := c.Param("job_id")
	if err := h.jobs.Cancel(c.Request.Context(), jobID); err != nil {
		response.RespondErr(c, jobError(err))
		return
	}
	response.RespondOK(c, gin.H{"job_id": jobID, "status": "cancelled", "message": "Job cancelled"})
}

// GET /api/v1/ingest/events/:job_id
//
// Streams JobCreated/JobProgress/JobDone/JobFailed/JobCancelled frames. The first frame is
// the current snapshot; the stream ends after a terminal frame.
func (h *IngestHandler) Events(c *gin.Context) {
	jobID := c.Param("job_id")
	sub := h.hub.NewSubscriber()
	defer h.hub.CloseSubscriber(sub)
	// subscribe before the snapshot so no transition falls in between
	h.hub.AddChannel(sub, realtime.JobChannel(jobID))

	job, err := h.jobs.Get(c.Request.Context(), jobID)
	if err != nil {
		response.RespondErr(c, jobError(err))
		return
	}
	h.hub.ServeHTTP(c.Writer, c.Request, sub, realtime.PushMessage{
		Channel: realtime.JobChannel(jobID),
		Event:   jobs.EventFor(job),
		Data:    job,
	})
}

// GET /api/v1/ingest/documents?limit=50
func (h *IngestHandler) Documents(c *gin.Context) {
	docs, err := h.ingest.Documents(c.Request.Context(), queryInt(c, "limit", 50))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"documents": docs, "count": len(docs)})
}

func (h *IngestHandler) submit(ctx context.Context, fh *multipart.FileHeader) (types.IngestionJob, error) {
	f, err := fh.Open()
	if err != nil {
		return types.IngestionJob{}, apierr.BadRequest("unreadable_file", err)
	}
	defer f.Close()
	return h.ingest.Submit(ctx, fh.Filename, fh.Size, f)
}

func accepted(job types.IngestionJob) types.IngestionResponse {
	return types.IngestionResponse{
		JobID:   job.JobID,
		Status:  job.Status,
		Message: "File uploaded successfully. Processing started.",
	}
}

func jobError(err error) error {
	switch {
	case errors.Is(err, jobs.ErrJobNotFound):
		return apierr.NotFound("job_not_found", err)
	case errors.Is(err, jobs.ErrInvalidTransition):
		return apierr.Conflict("invalid_job_transition", err)
	default:
		return err
	}
}
