package httpserve

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type releaseResponse struct {
	Scope         string            `json:"scope"`
	Name          string            `json:"name"`
	Version       string            `json:"version"`
	Checksum      string            `json:"checksum"`
	RepositoryURL string            `json:"repositoryURL,omitempty"`
	CommitHash    string            `json:"commitHash,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	Manifests     []manifestSummary `json:"manifests"`
}

type manifestSummary struct {
	Filename         string `json:"filename"`
	ToolchainVersion string `json:"toolchainVersion,omitempty"`
	ToolsVersion     string `json:"toolsVersion"`
}

// handleGetRelease returns the metadata of a published release. The
// archive bytes themselves are not included here.
func (s *Server) handleGetRelease(c echo.Context) error {
	release, err := s.svc.Get(c.Request().Context(),
		c.Param("scope"), c.Param("name"), c.Param("version"))
	if err != nil {
		return s.sendError(c, err)
	}

	resp := releaseResponse{
		Scope:         string(release.Identity.Scope),
		Name:          string(release.Identity.Name),
		Version:       release.Version.String(),
		Checksum:      release.Checksum,
		RepositoryURL: release.RepositoryURL,
		CommitHash:    release.CommitHash,
		CreatedAt:     release.CreatedAt,
		Manifests:     make([]manifestSummary, 0, len(release.Manifests)),
	}
	for _, record := range release.Manifests {
		resp.Manifests = append(resp.Manifests, manifestSummary{
			Filename:         record.Filename,
			ToolchainVersion: record.ToolchainVersion,
			ToolsVersion:     record.ToolsVersion,
		})
	}
	return c.JSON(http.StatusOK, resp)
}
