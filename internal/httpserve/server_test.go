package httpserve

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/parcel/internal/config"
	"github.com/bnema/parcel/internal/ingest"
	"github.com/bnema/parcel/internal/metrics"
	"github.com/bnema/parcel/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{Port: 8080, LogLevel: "error"},
		Ingest: config.IngestConfig{
			MaxUploadBytes: 64 * 1024 * 1024,
			PublishRate:    1000,
			PublishBurst:   1000,
		},
	}
	registry := prometheus.NewRegistry()
	svc := ingest.New(store.NewMemory(), metrics.NewIngest(registry), log.New(io.Discard))
	return New(cfg, svc, registry, log.New(io.Discard))
}

func makeArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, contents := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(contents)),
		}))
		_, err := tw.Write([]byte(contents))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func multipartBody(t *testing.T, archive []byte, metadata string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if archive != nil {
		fw, err := w.CreateFormFile(archivePartName, "upload.tar.gz")
		require.NoError(t, err)
		_, err = fw.Write(archive)
		require.NoError(t, err)
	}
	if metadata != "" {
		require.NoError(t, w.WriteField(metadataPartName, metadata))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func publish(t *testing.T, s *Server, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPut, path, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func validArchive(t *testing.T) []byte {
	return makeArchive(t, map[string]string{
		"Package.swift": "// swift-tools-version:5.3\nimport PackageDescription\n",
	})
}

func TestPublishCreated(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartBody(t, validArchive(t),
		`{"repositoryURL":"https://example.com/acme/widgets","commitHash":"0123abcd"}`)
	rec := publish(t, s, "/Acme/Widgets/2.0.0", body, contentType)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/Acme/Widgets/2.0.0", rec.Header().Get("Location"))

	var resp struct {
		Status        string `json:"status"`
		Scope         string `json:"scope"`
		Name          string `json:"name"`
		Version       string `json:"version"`
		Checksum      string `json:"checksum"`
		RepositoryURL string `json:"repositoryURL"`
		CommitHash    string `json:"commitHash"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "created", resp.Status)
	assert.Equal(t, "Acme", resp.Scope)
	assert.Equal(t, "Widgets", resp.Name)
	assert.Equal(t, "2.0.0", resp.Version)
	assert.Len(t, resp.Checksum, 64)
	assert.Equal(t, "https://example.com/acme/widgets", resp.RepositoryURL)
	assert.Equal(t, "0123abcd", resp.CommitHash)
}

func TestPublishThenConflict(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartBody(t, validArchive(t), "")
	rec := publish(t, s, "/Acme/Widgets/2.0.0", body, contentType)
	require.Equal(t, http.StatusCreated, rec.Code)

	body, contentType = multipartBody(t, validArchive(t), "")
	rec = publish(t, s, "/Acme/Widgets/2.0.0", body, contentType)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Acme/Widgets/2.0.0")
}

func TestPublishBadVersion(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartBody(t, validArchive(t), "")
	rec := publish(t, s, "/Acme/Widgets/latest", body, contentType)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPublishMissingArchivePart(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartBody(t, nil, "")
	rec := publish(t, s, "/Acme/Widgets/2.0.0", body, contentType)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPublishNonMultipartBody(t *testing.T) {
	s := newTestServer(t)

	rec := publish(t, s, "/Acme/Widgets/2.0.0",
		bytes.NewBufferString("not multipart"), "application/octet-stream")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPublishArchiveWithoutCanonicalDescriptor(t *testing.T) {
	s := newTestServer(t)

	archive := makeArchive(t, map[string]string{
		"Package@swift-5.5.swift": "// swift-tools-version:5.5\n",
	})
	body, contentType := multipartBody(t, archive, "")
	rec := publish(t, s, "/Acme/Widgets/2.0.0", body, contentType)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPublishInvalidMetadataPart(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartBody(t, validArchive(t), "{not json")
	rec := publish(t, s, "/Acme/Widgets/2.0.0", body, contentType)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetRelease(t *testing.T) {
	s := newTestServer(t)

	archive := makeArchive(t, map[string]string{
		"Package.swift":           "// swift-tools-version:5.3\n",
		"Package@swift-5.5.swift": "// swift-tools-version:5.5\n",
	})
	body, contentType := multipartBody(t, archive, "")
	rec := publish(t, s, "/Acme/Widgets/2.0.0", body, contentType)
	require.Equal(t, http.StatusCreated, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/acme/widgets/2.0.0", nil)
	getRec := httptest.NewRecorder()
	s.echo.ServeHTTP(getRec, req)

	require.Equal(t, http.StatusOK, getRec.Code)
	var resp releaseResponse
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &resp))
	assert.Equal(t, "Acme", resp.Scope)
	assert.Equal(t, "2.0.0", resp.Version)
	require.Len(t, resp.Manifests, 2)
}

func TestGetUnknownRelease(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/Acme/Widgets/9.9.9", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartBody(t, validArchive(t), "")
	rec := publish(t, s, "/Acme/Widgets/2.0.0", body, contentType)
	require.Equal(t, http.StatusCreated, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	metricsRec := httptest.NewRecorder()
	s.echo.ServeHTTP(metricsRec, req)

	require.Equal(t, http.StatusOK, metricsRec.Code)
	assert.Contains(t, metricsRec.Body.String(), "parcel_ingest_releases_created_total")
}

func TestPublishRateLimit(t *testing.T) {
	s := newTestServer(t)
	s.limiter.SetLimit(0)
	s.limiter.SetBurst(1)

	body, contentType := multipartBody(t, validArchive(t), "")
	rec := publish(t, s, "/Acme/Widgets/2.0.0", body, contentType)
	require.Equal(t, http.StatusCreated, rec.Code)

	body, contentType = multipartBody(t, validArchive(t), "")
	rec = publish(t, s, "/Acme/Widgets/2.0.1", body, contentType)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
