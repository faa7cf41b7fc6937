package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uploadRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestUploadStoresFileAndReturnsURL(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()

	router := gin.New()
	router.POST("/upload", Upload(dir, 1024))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "file", "notes.txt", []byte("hello")))

	require.Equal(t, http.StatusOK, w.Code)

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "notes.txt", resp.FileName)
	assert.True(t, strings.HasPrefix(resp.FileURL, "/uploads/"))
	assert.True(t, strings.HasSuffix(resp.FileURL, ".txt"))

	// stored under the uuid name, not the original one
	stored := filepath.Join(dir, strings.TrimPrefix(resp.FileURL, "/uploads/"))
	data, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestUploadRejectsOversizeFile(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.POST("/upload", Upload(t.TempDir(), 8))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "file", "big.bin", bytes.Repeat([]byte("x"), 64)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestUploadRequiresFileField(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.POST("/upload", Upload(t.TempDir(), 1024))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "wrong-field", "notes.txt", []byte("hello")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
