package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/trade-ledger/internal/api/middleware"
	bq "github.com/dvloznov/trade-ledger/internal/bigquery"
	"github.com/dvloznov/trade-ledger/internal/gcs"
	"github.com/dvloznov/trade-ledger/internal/jobs"
	"github.com/dvloznov/trade-ledger/internal/logger"
)

// maxSlipBytes bounds uploaded slip images and PDFs.
const maxSlipBytes = 20 << 20

// ImportsHandler accepts weighbridge slips and queues them for parsing.
type ImportsHandler struct {
	repo      bq.ImportRepository
	publisher jobs.Publisher
	storage   gcs.StorageService
	bucket    string
}

// NewImportsHandler creates a new imports handler. storage may be nil, in
// which case only slips already in GCS can be imported.
func NewImportsHandler(repo bq.ImportRepository, publisher jobs.Publisher, storage gcs.StorageService, bucket string) *ImportsHandler {
	return &ImportsHandler{
		repo:      repo,
		publisher: publisher,
		storage:   storage,
		bucket:    bucket,
	}
}

// ListImports handles GET /api/imports
func (h *ImportsHandler) ListImports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	imports, err := h.repo.ListImports(ctx, middleware.OwnerFromContext(ctx))
	if err != nil {
		writeServiceError(w, r, err, "Failed to list imports")
		return
	}
	if imports == nil {
		imports = []*bq.ImportRow{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"imports": imports,
		"count":   len(imports),
	})
}

// EnqueueImport handles POST /api/imports with {"gcs_uri": "gs://..."}
func (h *ImportsHandler) EnqueueImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GCSURI string `json:"gcs_uri"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if _, _, err := gcs.ParseURI(req.GCSURI); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "gcs_uri must be gs://bucket/object")
		return
	}

	h.enqueue(w, r, req.GCSURI)
}

// UploadSlip handles POST /api/imports/upload?filename=. The raw body is
// stored in the configured bucket and then queued like EnqueueImport.
func (h *ImportsHandler) UploadSlip(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.storage == nil || h.bucket == "" {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Slip upload is not configured")
		return
	}

	filename := filepath.Base(r.URL.Query().Get("filename"))
	if filename == "." || filename == "/" {
		filename = "slip"
	}
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	data, ok := readLimited(w, r, maxSlipBytes)
	if !ok {
		return
	}
	if len(data) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Empty slip")
		return
	}

	owner := middleware.OwnerFromContext(ctx)
	object := fmt.Sprintf("slips/%s/%s/%s-%s", owner, time.Now().Format("2006/01/02"), uuid.New().String(), filename)
	uri, err := h.storage.UploadBytes(ctx, h.bucket, object, contentType, data)
	if err != nil {
		writeServiceError(w, r, err, "Failed to upload slip")
		return
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("gcs_uri", uri).
		Int("bytes", len(data)).
		Msg("Slip uploaded")

	h.enqueue(w, r, uri)
}

func (h *ImportsHandler) enqueue(w http.ResponseWriter, r *http.Request, gcsURI string) {
	ctx := r.Context()

	job := &jobs.ImportSlipJob{
		OwnerID: middleware.OwnerFromContext(ctx),
		GCSURI:  gcsURI,
	}
	if err := h.publisher.PublishImportSlip(ctx, job); err != nil {
		writeServiceError(w, r, err, "Failed to enqueue import job")
		return
	}

	log := logger.FromContext(ctx)
	log.Info().Str("job_id", job.JobID).Str("gcs_uri", gcsURI).Msg("Import job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  job.JobID,
		"gcs_uri": gcsURI,
		"status":  string(job.Status),
	})
}

// DeleteImport handles DELETE /api/imports/{id}. The transactions the import
// produced are deleted with it.
func (h *ImportsHandler) DeleteImport(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()

	if err := h.repo.DeleteImport(ctx, middleware.OwnerFromContext(ctx), id); err != nil {
		writeServiceError(w, r, err, "Failed to delete import")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// JobsHandler reports on background jobs.
type JobsHandler struct {
	store jobs.JobStore
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore) *JobsHandler {
	return &JobsHandler{store: store}
}

// GetJob handles GET /api/jobs/{id}. Jobs of other owners are reported as
// not found.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err == nil && job.OwnerID != middleware.OwnerFromContext(ctx) {
		err = jobs.ErrJobNotFound
	}
	if err != nil {
		writeServiceError(w, r, err, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs?status=&limit=&offset=
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	filter := jobs.JobFilter{
		OwnerID: middleware.OwnerFromContext(ctx),
		Status:  jobs.JobStatus(strings.ToLower(query.Get("status"))),
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	list, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		writeServiceError(w, r, err, "Failed to list jobs")
		return
	}
	if list == nil {
		list = []*jobs.ImportSlipJob{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}
