package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockObjectStore is a mock implementation of the ObjectStore interface
type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) Store(ctx context.Context, data []byte, contentType, originalName string) (string, error) {
	args := m.Called(ctx, data, contentType, originalName)
	return args.String(0), args.Error(1)
}

func (m *MockObjectStore) Fetch(ctx context.Context, key string) ([]byte, string, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).([]byte), args.String(1), args.Error(2)
}

func multipartImage(t *testing.T, fieldName, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(fieldName, filename)
	assert.NoError(t, err)
	_, err = part.Write(content)
	assert.NoError(t, err)
	assert.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func TestHandlerSaveImage(t *testing.T) {
	t.Run("Created", func(t *testing.T) {
		mockStore := new(MockObjectStore)
		handler := NewHandler(mockStore, slog.Default())

		mockStore.On("Store", mock.Anything, []byte("image-bytes"), mock.AnythingOfType("string"), "pothole.png").
			Return("abc_pothole.png", nil).Once()

		body, contentType := multipartImage(t, "image", "pothole.png", []byte("image-bytes"))
		req := httptest.NewRequest(http.MethodPost, "/api/upload/file", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		handler.SaveImage(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		var resp SaveResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "abc_pothole.png", resp.Filename)
		mockStore.AssertExpectations(t)
	})

	t.Run("MissingImageField", func(t *testing.T) {
		mockStore := new(MockObjectStore)
		handler := NewHandler(mockStore, slog.Default())

		body, contentType := multipartImage(t, "document", "pothole.png", []byte("image-bytes"))
		req := httptest.NewRequest(http.MethodPost, "/api/upload/file", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		handler.SaveImage(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		mockStore.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestHandlerGetImage(t *testing.T) {
	router := func(handler *Handler) http.Handler {
		r := chi.NewRouter()
		r.Get("/api/upload/{filename}", handler.GetImage)
		return r
	}

	t.Run("StreamsObject", func(t *testing.T) {
		mockStore := new(MockObjectStore)
		handler := NewHandler(mockStore, slog.Default())

		mockStore.On("Fetch", mock.Anything, "abc_pothole.png").
			Return([]byte("image-bytes"), "image/png", nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/upload/abc_pothole.png", nil)
		rec := httptest.NewRecorder()
		router(handler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.Equal(t, []byte("image-bytes"), rec.Body.Bytes())
		mockStore.AssertExpectations(t)
	})

	t.Run("NotFound", func(t *testing.T) {
		mockStore := new(MockObjectStore)
		handler := NewHandler(mockStore, slog.Default())

		mockStore.On("Fetch", mock.Anything, "missing.png").
			Return(nil, "", ErrObjectNotFound).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/upload/missing.png", nil)
		rec := httptest.NewRecorder()
		router(handler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		mockStore.AssertExpectations(t)
	})
}
