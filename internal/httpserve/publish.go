package httpserve

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bnema/parcel/internal/ingest"
)

const (
	archivePartName  = "source-archive"
	metadataPartName = "metadata"
)

// releaseMetadata is the optional JSON part a publisher may attach
// alongside the archive.
type releaseMetadata struct {
	RepositoryURL string `json:"repositoryURL"`
	CommitHash    string `json:"commitHash"`
}

type createdResponse struct {
	Status string `json:"status"`
	ingest.PublishResult
}

// handlePublish decodes the multipart upload and runs the ingestion flow.
func (s *Server) handlePublish(c echo.Context) error {
	req := ingest.PublishRequest{
		Scope:   c.Param("scope"),
		Name:    c.Param("name"),
		Version: c.Param("version"),
	}

	c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, s.cfg.Ingest.MaxUploadBytes)
	form, err := c.MultipartForm()
	if err != nil {
		return sendErrorStatus(c, http.StatusUnprocessableEntity, "request body is not valid multipart form data")
	}
	defer form.RemoveAll()

	if files := form.File[archivePartName]; len(files) > 0 {
		f, err := files[0].Open()
		if err != nil {
			return sendErrorStatus(c, http.StatusUnprocessableEntity, "source archive part could not be opened")
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return sendErrorStatus(c, http.StatusUnprocessableEntity, "source archive part could not be read")
		}
		req.Archive = data
	}

	if values := form.Value[metadataPartName]; len(values) > 0 && values[0] != "" {
		var meta releaseMetadata
		if err := json.Unmarshal([]byte(values[0]), &meta); err != nil {
			return sendErrorStatus(c, http.StatusUnprocessableEntity, "metadata part is not valid JSON")
		}
		req.RepositoryURL = meta.RepositoryURL
		req.CommitHash = meta.CommitHash
	}

	result, err := s.svc.Publish(c.Request().Context(), req)
	if err != nil {
		return s.sendError(c, err)
	}

	c.Response().Header().Set(echo.HeaderLocation, "/"+result.Location)
	return c.JSON(http.StatusCreated, createdResponse{Status: "created", PublishResult: *result})
}
