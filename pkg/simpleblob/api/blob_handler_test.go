package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-blob/pkg/simpleblob"
	"github.com/tendant/simple-blob/pkg/simpleblob/remote/memory"
)

// setupBlobHandlerTest creates a router over an initialized in-memory provider
func setupBlobHandlerTest(t *testing.T, opts ...simpleblob.Option) (http.Handler, *memory.Container) {
	t.Helper()

	driver := memory.New(memory.WithContainer("media", true))
	options := append([]simpleblob.Option{
		simpleblob.WithDriver(driver),
		simpleblob.WithFailureSink(simpleblob.NewNoopFailureSink()),
		simpleblob.WithMissingURLPolicy(simpleblob.MissingURLFail),
	}, opts...)
	provider, err := simpleblob.New(options...)
	require.NoError(t, err)
	require.NoError(t, provider.Initialize(context.Background(), map[string]string{
		simpleblob.SettingUsername:  "user",
		simpleblob.SettingAPIKey:    "key",
		simpleblob.SettingContainer: "media",
	}))

	container, ok := driver.Bucket("media")
	require.True(t, ok)

	router := chi.NewRouter()
	router.Mount("/blobs", NewBlobHandler(provider).Routes())
	return router, container
}

func doRequest(h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestParseFile(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		wantExt   string
		wantError bool
	}{
		{"png", "3fa85f64-5717-4562-b3fc-2c963f66afa6.png", ".png", false},
		{"upper case", "3FA85F64-5717-4562-B3FC-2C963F66AFA6.PNG", ".PNG", false},
		{"double extension", "3fa85f64-5717-4562-b3fc-2c963f66afa6.tar.gz", ".tar.gz", false},
		{"no extension", "3fa85f64-5717-4562-b3fc-2c963f66afa6", "", true},
		{"dot only", "3fa85f64-5717-4562-b3fc-2c963f66afa6.", "", true},
		{"missing separator", "3fa85f64-5717-4562-b3fc-2c963f66afa6png", "", true},
		{"bad uuid", "not-a-uuid-not-a-uuid-not-a-uuid-xxxx.png", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity, err := ParseFile(tt.file)
			if tt.wantError {
				assert.ErrorIs(t, err, simpleblob.ErrInvalidIdentity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantExt, identity.Extension)
			assert.Equal(t, "3fa85f64-5717-4562-b3fc-2c963f66afa6", identity.ID.String())
		})
	}
}

func TestBlobHandler_Lifecycle(t *testing.T) {
	router, container := setupBlobHandlerTest(t)
	file := uuid.New().String() + ".png"

	w := doRequest(router, http.MethodHead, "/blobs/"+file, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, http.MethodPut, "/blobs/"+file, []byte("png data"))
	require.Equal(t, http.StatusCreated, w.Code)
	var upload UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &upload))
	assert.Equal(t, int64(8), upload.Bytes)
	assert.True(t, container.Has(file))

	w = doRequest(router, http.MethodHead, "/blobs/"+file, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/blobs/"+file, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "png data", w.Body.String())

	w = doRequest(router, http.MethodGet, "/blobs/"+file+"/url", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var url URLResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &url))
	assert.Equal(t, "https://cdn.memory.local/media/"+file, url.URL)

	w = doRequest(router, http.MethodGet, "/blobs/"+file+"/properties", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var props simpleblob.BlobProperties
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &props))
	assert.Equal(t, "image/png", props.ContentType)

	w = doRequest(router, http.MethodPut, "/blobs/"+file+"/properties", []byte(`{"content_type":"text/plain"}`))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(router, http.MethodDelete, "/blobs/"+file, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, container.Has(file))

	w = doRequest(router, http.MethodDelete, "/blobs/"+file, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestBlobHandler_NotFound(t *testing.T) {
	router, _ := setupBlobHandlerTest(t)
	file := uuid.New().String() + ".png"

	w := doRequest(router, http.MethodGet, "/blobs/"+file, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, http.MethodGet, "/blobs/"+file+"/url", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, http.MethodGet, "/blobs/"+file+"/properties", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBlobHandler_PlaceholderURL(t *testing.T) {
	router, _ := setupBlobHandlerTest(t, simpleblob.WithMissingURLPolicy(simpleblob.MissingURLPlaceholder))
	file := uuid.New().String() + ".png"

	w := doRequest(router, http.MethodGet, "/blobs/"+file+"/url?path=/images/cat.png", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var url URLResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &url))
	assert.Equal(t, "http://127.0.0.1/images/cat.png", url.URL)
}

func TestBlobHandler_InvalidFile(t *testing.T) {
	router, _ := setupBlobHandlerTest(t)

	w := doRequest(router, http.MethodPut, "/blobs/photo.png", []byte("data"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBlobHandler_CopyMove(t *testing.T) {
	router, container := setupBlobHandlerTest(t)
	src := uuid.New().String() + ".png"
	copyDst := uuid.New().String() + ".png"
	moveDst := uuid.New().String() + ".png"

	w := doRequest(router, http.MethodPut, "/blobs/"+src, []byte("data"))
	require.Equal(t, http.StatusCreated, w.Code)

	body, _ := json.Marshal(TransferRequest{Destination: copyDst})
	w = doRequest(router, http.MethodPost, "/blobs/"+src+"/copy", body)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, container.Has(src))
	assert.True(t, container.Has(copyDst))

	body, _ = json.Marshal(TransferRequest{Destination: moveDst})
	w = doRequest(router, http.MethodPost, "/blobs/"+src+"/move", body)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, container.Has(src))
	assert.True(t, container.Has(moveDst))

	w = doRequest(router, http.MethodPost, "/blobs/"+src+"/move", []byte(`{"destination":"bad"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodPost, "/blobs/"+src+"/copy", body)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBlobHandler_UploadFailure(t *testing.T) {
	router, container := setupBlobHandlerTest(t)
	container.FailOperation(memory.OpWrite, errors.New("disk full"))

	w := doRequest(router, http.MethodPut, "/blobs/"+uuid.New().String()+".png", []byte("data"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "disk full"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{simpleblob.ErrObjectNotFound, http.StatusNotFound},
		{simpleblob.ErrInvalidIdentity, http.StatusBadRequest},
		{simpleblob.ErrUnsupportedOperation, http.StatusNotImplemented},
		{simpleblob.ErrNotInitialized, http.StatusServiceUnavailable},
		{&simpleblob.ContainerError{Name: "media", Err: simpleblob.ErrCDNNotEnabled}, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.code, statusFor(tt.err), tt.err.Error())
	}
}
