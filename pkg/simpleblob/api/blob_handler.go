package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/simple-blob/pkg/simpleblob"
)

// BlobHandler exposes a Provider over HTTP. Blobs are addressed by
// "{uuid}{extension}", e.g. /3fa85f64-5717-4562-b3fc-2c963f66afa6.png.
type BlobHandler struct {
	provider simpleblob.Provider
}

func NewBlobHandler(provider simpleblob.Provider) *BlobHandler {
	return &BlobHandler{provider: provider}
}

// Routes returns the router for blob endpoints
func (h *BlobHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Put("/{file}", h.Upload)
	r.Get("/{file}", h.Download)
	r.Head("/{file}", h.Exists)
	r.Delete("/{file}", h.Delete)
	r.Get("/{file}/url", h.GetURL)
	r.Get("/{file}/properties", h.GetProperties)
	r.Put("/{file}/properties", h.SetProperties)
	r.Post("/{file}/copy", h.Copy)
	r.Post("/{file}/move", h.Move)
	return r
}

// UploadResponse is returned after a successful upload
type UploadResponse struct {
	File  string `json:"file"`
	Bytes int64  `json:"bytes"`
}

// URLResponse carries the public URL of a blob
type URLResponse struct {
	File string `json:"file"`
	URL  string `json:"url"`
}

// TransferRequest names the destination of a copy or move
type TransferRequest struct {
	Destination string `json:"destination"`
}

// ParseFile splits "{uuid}{extension}" into a blob identity
func ParseFile(file string) (simpleblob.BlobIdentity, error) {
	const uuidLength = 36
	if len(file) <= uuidLength {
		return simpleblob.BlobIdentity{}, fmt.Errorf("%w: %q is not {uuid}{extension}", simpleblob.ErrInvalidIdentity, file)
	}
	id, err := uuid.Parse(file[:uuidLength])
	if err != nil {
		return simpleblob.BlobIdentity{}, fmt.Errorf("%w: %v", simpleblob.ErrInvalidIdentity, err)
	}
	extension := file[uuidLength:]
	if !strings.HasPrefix(extension, ".") || len(extension) == 1 {
		return simpleblob.BlobIdentity{}, fmt.Errorf("%w: extension of %q must start with '.'", simpleblob.ErrInvalidIdentity, file)
	}
	return simpleblob.BlobIdentity{ID: id, Extension: extension}, nil
}

// location builds the blob location from a file name. The optional "path"
// query parameter is the host's file path; it defaults to "/{file}".
func location(r *http.Request, file string) (simpleblob.Location, error) {
	identity, err := ParseFile(file)
	if err != nil {
		return simpleblob.Location{}, err
	}
	filePath := r.URL.Query().Get("path")
	if filePath == "" {
		filePath = "/" + file
	}
	return simpleblob.Location{BlobIdentity: identity, FilePath: filePath}, nil
}

func (h *BlobHandler) requestLocation(w http.ResponseWriter, r *http.Request) (simpleblob.Location, bool) {
	file := chi.URLParam(r, "file")
	loc, err := location(r, file)
	if err != nil {
		slog.Error("Invalid blob file name", "file", file, "err", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return simpleblob.Location{}, false
	}
	return loc, true
}

// Upload stores the request body as the blob
func (h *BlobHandler) Upload(w http.ResponseWriter, r *http.Request) {
	loc, ok := h.requestLocation(w, r)
	if !ok {
		return
	}

	n, err := h.provider.Upload(r.Context(), loc, r.Body)
	if err != nil {
		slog.Error("Failed to upload blob", "file", chi.URLParam(r, "file"), "err", err)
		writeError(w, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, UploadResponse{File: chi.URLParam(r, "file"), Bytes: n})
}

// Download streams the blob
func (h *BlobHandler) Download(w http.ResponseWriter, r *http.Request) {
	loc, ok := h.requestLocation(w, r)
	if !ok {
		return
	}

	reader, found := h.provider.GetDownloadStream(r.Context(), loc)
	if !found {
		http.Error(w, "Blob not found", http.StatusNotFound)
		return
	}
	defer reader.Close()

	contentType := mime.TypeByExtension(strings.ToLower(loc.Extension))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, reader); err != nil {
		slog.Error("Failed to stream blob", "file", chi.URLParam(r, "file"), "err", err)
	}
}

// Exists answers HEAD with 200 or 404
func (h *BlobHandler) Exists(w http.ResponseWriter, r *http.Request) {
	loc, ok := h.requestLocation(w, r)
	if !ok {
		return
	}

	if !h.provider.Exists(r.Context(), loc) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Delete removes the blob; deleting a missing blob succeeds
func (h *BlobHandler) Delete(w http.ResponseWriter, r *http.Request) {
	loc, ok := h.requestLocation(w, r)
	if !ok {
		return
	}

	if err := h.provider.Delete(r.Context(), loc); err != nil {
		slog.Error("Failed to delete blob", "file", chi.URLParam(r, "file"), "err", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetURL returns the CDN URL of the blob
func (h *BlobHandler) GetURL(w http.ResponseWriter, r *http.Request) {
	loc, ok := h.requestLocation(w, r)
	if !ok {
		return
	}

	url, err := h.provider.GetURL(r.Context(), loc)
	if err != nil {
		writeError(w, err)
		return
	}
	render.JSON(w, r, URLResponse{File: chi.URLParam(r, "file"), URL: url})
}

// GetProperties returns the blob's properties
func (h *BlobHandler) GetProperties(w http.ResponseWriter, r *http.Request) {
	loc, ok := h.requestLocation(w, r)
	if !ok {
		return
	}

	props, err := h.provider.GetProperties(r.Context(), loc)
	if err != nil {
		writeError(w, err)
		return
	}
	render.JSON(w, r, props)
}

// SetProperties accepts the properties; the store keeps none
func (h *BlobHandler) SetProperties(w http.ResponseWriter, r *http.Request) {
	loc, ok := h.requestLocation(w, r)
	if !ok {
		return
	}

	var props simpleblob.BlobProperties
	if err := json.NewDecoder(r.Body).Decode(&props); err != nil {
		slog.Error("Failed to decode request", "err", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.provider.SetProperties(r.Context(), loc, props); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Copy copies the blob to the destination named in the body
func (h *BlobHandler) Copy(w http.ResponseWriter, r *http.Request) {
	h.transfer(w, r, h.provider.Copy)
}

// Move moves the blob to the destination named in the body
func (h *BlobHandler) Move(w http.ResponseWriter, r *http.Request) {
	h.transfer(w, r, h.provider.Move)
}

func (h *BlobHandler) transfer(w http.ResponseWriter, r *http.Request, op func(context.Context, simpleblob.Location, simpleblob.Location) error) {
	src, ok := h.requestLocation(w, r)
	if !ok {
		return
	}

	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request", "err", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	identity, err := ParseFile(req.Destination)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	dst := simpleblob.Location{BlobIdentity: identity, FilePath: "/" + req.Destination}

	if err := op(r.Context(), src, dst); err != nil {
		slog.Error("Failed to transfer blob", "source", chi.URLParam(r, "file"), "destination", req.Destination, "err", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps provider errors onto HTTP status codes
func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFor(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, simpleblob.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, simpleblob.ErrInvalidIdentity):
		return http.StatusBadRequest
	case errors.Is(err, simpleblob.ErrUnsupportedOperation):
		return http.StatusNotImplemented
	case errors.Is(err, simpleblob.ErrNotInitialized),
		errors.Is(err, simpleblob.ErrMissingConfigField),
		errors.Is(err, simpleblob.ErrContainerNotFound),
		errors.Is(err, simpleblob.ErrCDNNotEnabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
