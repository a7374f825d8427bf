package httpserve

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bnema/parcel/internal/ingest"
)

type errorResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// sendError maps a classified ingestion error to its response class. Each
// error kind maps to exactly one status; anything unclassified is a
// server fault.
func (s *Server) sendError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch ingest.KindOf(err) {
	case ingest.KindInvalid:
		status = http.StatusBadRequest
	case ingest.KindConflict:
		status = http.StatusConflict
	case ingest.KindUnprocessable:
		status = http.StatusUnprocessableEntity
	case ingest.KindNotFound:
		status = http.StatusNotFound
	case ingest.KindUnavailable:
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	return sendErrorStatus(c, status, err.Error())
}

func sendErrorStatus(c echo.Context, status int, detail string) error {
	return c.JSON(status, errorResponse{Status: http.StatusText(status), Detail: detail})
}
