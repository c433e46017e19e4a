package files

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"cityinfo-api/internal/httpx"
)

const (
	maxUploadSizeBytes = 20 << 20
	pdfContentType     = "application/pdf"
)

type Handler struct {
	store Store
}

// NewHandler accepts a nil store; every request then fails with 500.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// Upload stores a PDF sent as the multipart field "file" under a fresh id.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		httpx.WriteError(w, http.StatusInternalServerError, "file storage is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSizeBytes+(1<<20))
	if err := r.ParseMultipartForm(maxUploadSizeBytes); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSizeBytes+1))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "failed to read file")
		return
	}
	if len(data) == 0 {
		httpx.WriteError(w, http.StatusBadRequest, "file is empty")
		return
	}
	if len(data) > maxUploadSizeBytes {
		httpx.WriteError(w, http.StatusBadRequest, "file is too large")
		return
	}

	if !mimetype.Detect(data).Is(pdfContentType) {
		httpx.WriteError(w, http.StatusUnsupportedMediaType, "only pdf files are accepted")
		return
	}

	key := uuid.NewString()
	if err := h.store.Put(r.Context(), key, bytes.NewReader(data), int64(len(data)), pdfContentType); err != nil {
		sentry.CaptureException(err)
		httpx.WriteError(w, http.StatusBadGateway, "failed to store file")
		return
	}

	w.Header().Set("Location", "/api/files/"+key)
	httpx.WriteJSON(w, http.StatusCreated, map[string]string{"file_id": key})
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		httpx.WriteError(w, http.StatusInternalServerError, "file storage is not configured")
		return
	}

	id, err := uuid.Parse(r.PathValue("fileId"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid file id")
		return
	}

	obj, err := h.store.Get(r.Context(), id.String())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "file not found")
			return
		}
		sentry.CaptureException(err)
		httpx.WriteError(w, http.StatusBadGateway, "failed to load file")
		return
	}
	defer obj.Body.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	extension := ""
	if mtype := mimetype.Lookup(contentType); mtype != nil {
		extension = mtype.Extension()
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s%s"`, id, extension))
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, obj.Body)
}
