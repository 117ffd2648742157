package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"eon-server/internal/healthdata"
	"eon-server/internal/recommendation"
	"eon-server/internal/risk"
	"eon-server/internal/utility"
)

/* ====================================================================
                   		Device sync & reads
==================================================================== */

func (s *Server) syncHandler(c echo.Context) error {
	return s.ingest(c, s.HealthData.Sync)
}

func (s *Server) onboardHandler(c echo.Context) error {
	return s.ingest(c, s.HealthData.Onboard)
}

type ingestFunc func(ctx context.Context, payload healthdata.SyncPayload) (healthdata.SyncResult, error)

func (s *Server) ingest(c echo.Context, fn ingestFunc) error {
	var payload healthdata.SyncPayload
	if err := bindAndValidate(c, &payload); err != nil {
		return respondError(c, err)
	}

	result, err := fn(c.Request().Context(), payload)
	if err != nil {
		return respondError(c, err)
	}

	s.Hub.Notify(result.ExternalID)
	return c.JSON(http.StatusOK, result)
}

func (s *Server) latestHandler(c echo.Context) error {
	out, err := s.HealthData.Latest(c.Request().Context(), c.Param("device_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) metricsHandler(c echo.Context) error {
	out, err := s.HealthData.Metrics(c.Request().Context(), c.Param("device_id"), c.QueryParam("start_date"), c.QueryParam("end_date"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) summaryHandler(c echo.Context) error {
	deviceID := c.Param("device_id")
	out, err := s.HealthData.Summary(c.Request().Context(), deviceID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"device_id": deviceID,
		"summary":   out,
		"text":      out.Text(),
	})
}

func (s *Server) syncStatusHandler(c echo.Context) error {
	deviceID := c.Param("device_id")
	rows, err := s.HealthData.SyncStatus(c.Request().Context(), deviceID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"device_id": deviceID, "sync_status": rows})
}

/* ====================================================================
                   		Notes
==================================================================== */

type noteRequest struct {
	DeviceID string `json:"device_id"`
	Note     string `json:"note" validate:"required"`
}

// deviceParam prefers the path parameter, then the fallback (body or query).
func deviceParam(c echo.Context, fallback string) (string, error) {
	id := c.Param("device_id")
	if id == "" {
		id = strings.TrimSpace(fallback)
	}
	if id == "" {
		return "", fmt.Errorf("%w: device_id is required", utility.ErrValidation)
	}
	return id, nil
}

func (s *Server) createNoteHandler(c echo.Context) error {
	var req noteRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}
	deviceID, err := deviceParam(c, req.DeviceID)
	if err != nil {
		return respondError(c, err)
	}

	note, err := s.HealthData.CreateNote(c.Request().Context(), deviceID, req.Note)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"message":    "Note created",
		"device_id":  deviceID,
		"note":       note.Note,
		"id":         note.ID,
		"created_at": utility.TimeValue(note.CreatedAt),
	})
}

func (s *Server) listNotesHandler(c echo.Context) error {
	deviceID, err := deviceParam(c, c.QueryParam("device_id"))
	if err != nil {
		return respondError(c, err)
	}
	notes, err := s.HealthData.ListNotes(c.Request().Context(), deviceID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"device_id": deviceID, "notes": notes})
}

/* ====================================================================
                   		Risk analysis
==================================================================== */

func (s *Server) riskAnalysisHandler(c echo.Context) error {
	var req risk.Request
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	out, err := s.Risk.Analyze(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}

	if out.UserID != "" {
		s.Hub.Notify(out.UserID)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) storedRiskHandler(c echo.Context) error {
	out, err := s.Risk.Stored(c.Request().Context(), c.Param("device_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

/* ====================================================================
                   		Recommendations
==================================================================== */

func (s *Server) generateRecommendationsHandler(c echo.Context) error {
	var req recommendation.Request
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	out, err := s.Recommendations.Generate(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}

	if out.UserID != "" {
		s.Hub.Notify(out.UserID)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) listRecommendationsHandler(c echo.Context) error {
	out, err := s.Recommendations.ForDevice(c.Request().Context(), c.Param("device_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

type acceptanceRequest struct {
	Accepted *bool `json:"accepted" validate:"required"`
}

func (s *Server) acceptanceHandler(c echo.Context) error {
	id, err := utility.ParseIntParam(c, "id")
	if err != nil {
		return respondError(c, fmt.Errorf("%w: %v", utility.ErrValidation, err))
	}
	var req acceptanceRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	rec, err := s.Recommendations.SetAcceptance(c.Request().Context(), id, *req.Accepted)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}
