package upload

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vozurbana/voz-urbana-api/internal/api"
)

const maxUploadBytes = 10 << 20 // 10 MiB

// Handler exposes the report-photo pass-through. It holds no business logic:
// bytes in, key out, and back again.
type Handler struct {
	store  ObjectStore
	logger *slog.Logger
}

func NewHandler(store ObjectStore, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

type SaveResponse struct {
	Filename string `json:"filename"`
}

// SaveImage stores the multipart "image" field and returns the generated key.
func (h *Handler) SaveImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "could not parse multipart form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "image field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to read upload", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "could not read upload")
		return
	}

	key, err := h.store.Store(r.Context(), data, header.Header.Get("Content-Type"), header.Filename)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to store upload", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "could not store upload")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, SaveResponse{Filename: key})
}

// GetImage streams a stored object back with its content type.
func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if filename == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "filename is required")
		return
	}

	data, contentType, err := h.store.Fetch(r.Context(), filename)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "upload not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "Failed to fetch upload",
			slog.String("filename", filename), slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "could not retrieve upload")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to write upload body", slog.Any("error", err))
	}
}
