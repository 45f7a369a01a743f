package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/eerriikk-pro/sius-parse/internal/adapters/ingest"
	service "github.com/eerriikk-pro/sius-parse/internal/app"
	"github.com/eerriikk-pro/sius-parse/internal/domain/model"
)

const uploadField = "file"

// ImportHandler accepts export uploads.
type ImportHandler struct {
	deps   Importer
	limits Limits
}

// NewImportHandler creates a new import handler.
func NewImportHandler(deps Importer, limits Limits) *ImportHandler {
	return &ImportHandler{deps: deps, limits: limits}
}

type uploadResponse struct {
	Jobs []model.ImportJob `json:"jobs"`
}

// backpressureResponse lists the jobs queued before the queue filled up.
type backpressureResponse struct {
	errorResponse
	Jobs []model.ImportJob `json:"jobs"`
}

// HandleUpload handles POST /api/v1/import/csv with one or more "file" parts.
// Every file name is checked before any file is queued. When the queue fills
// part way, files already accepted stay queued and are listed in the 429 body.
func (h *ImportHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	const op = "api.import_csv"
	if r.ContentLength > h.limits.MaxUploadBytes {
		writeFailure(w, NewKind(op, ErrTooLarge))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.limits.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.limits.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeFailure(w, WrapKind(op, ErrTooLarge, err))
			return
		}
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File[uploadField]
	if len(files) == 0 {
		writeFailure(w, WrapKind(op, ErrBadRequest, fmt.Errorf("no %q parts in upload", uploadField)))
		return
	}
	for _, fh := range files {
		if _, err := ingest.FileDate(fh.Filename); err != nil {
			writeFailure(w, Wrap(op, err))
			return
		}
	}

	resp := uploadResponse{Jobs: make([]model.ImportJob, 0, len(files))}
	for _, fh := range files {
		content, err := readPart(fh)
		if err != nil {
			writeFailure(w, WrapKind(op, ErrBadRequest, err))
			return
		}
		job, err := h.deps.SubmitImport(r.Context(), fh.Filename, content)
		if errors.Is(err, service.ErrBackpressure) {
			writeJSON(w, http.StatusTooManyRequests, backpressureResponse{
				errorResponse: errorResponse{Code: "backpressure", Message: Wrap(op, err).Error()},
				Jobs:          resp.Jobs,
			})
			return
		}
		if err != nil {
			writeFailure(w, Wrap(op, err))
			return
		}
		resp.Jobs = append(resp.Jobs, job)
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return content, nil
}

// HandleGetJob handles GET /api/v1/import/jobs/{id}.
func (h *ImportHandler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	const op = "api.import_job"
	job, err := h.deps.Job(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, job)
}
