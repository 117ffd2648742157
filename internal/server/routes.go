package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"eon-server/internal/classifier"
	"eon-server/internal/utility"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.Validator = newRequestValidator()
	e.HTTPErrorHandler = httpErrorHandler

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"https://*", "http://*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:       300,
	}))
	e.Use(LoggerMiddleware)

	e.GET("/health", s.healthHandler)

	api := e.Group("/api")

	// Device uploads and reads
	health := api.Group("/health")
	health.POST("/sync", s.syncHandler)
	health.POST("/onboard", s.onboardHandler)
	health.GET("/devices/:device_id/latest", s.latestHandler)
	health.GET("/devices/:device_id/metrics", s.metricsHandler)
	health.GET("/devices/:device_id/summary", s.summaryHandler)
	health.GET("/devices/:device_id/sync-status", s.syncStatusHandler)

	// Notes
	api.POST("/notes", s.createNoteHandler)
	api.GET("/notes", s.listNotesHandler)
	api.POST("/notes/devices/:device_id/notes", s.createNoteHandler)
	api.GET("/notes/devices/:device_id/notes", s.listNotesHandler)

	// Risk analysis and recommendations
	api.POST("/risk-analysis", s.riskAnalysisHandler)
	api.GET("/risk-analysis/:device_id", s.storedRiskHandler)
	api.POST("/recommendations", s.generateRecommendationsHandler)
	api.GET("/recommendations/:device_id", s.listRecommendationsHandler)
	api.PUT("/recommendations/:id/acceptance", s.acceptanceHandler)

	// Refresh notifications for the companion app
	api.GET("/ws/:device_id", s.deviceSocketHandler)

	return e
}

// LoggerMiddleware tags each request with an X-Request-ID and a child logger carrying it.
func LoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Response().Header().Set("X-Request-ID", requestID)

		logger := log.With().
			Str("request_id", requestID).
			Str("remote_ip", utility.GetRealIP(c)).
			Logger()

		c.Set("logger", &logger)
		c.SetRequest(c.Request().WithContext(logger.WithContext(c.Request().Context())))

		return next(c)
	}
}

func loggerFrom(c echo.Context) *zerolog.Logger {
	if l, ok := c.Get("logger").(*zerolog.Logger); ok {
		return l
	}
	return &log.Logger
}

type requestValidator struct {
	v *validator.Validate
}

func newRequestValidator() *requestValidator {
	return &requestValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (rv *requestValidator) Validate(i any) error {
	if err := rv.v.Struct(i); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s is %s", utility.ErrValidation, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", utility.ErrValidation, err)
	}
	return nil
}

// bindAndValidate decodes the body into req and runs the struct validator.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return fmt.Errorf("%w: invalid request body: %v", utility.ErrValidation, he.Message)
		}
		return fmt.Errorf("%w: invalid request body", utility.ErrValidation)
	}
	return c.Validate(req)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, utility.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, utility.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, classifier.ErrNotReady):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError writes {"error": ...} with the status matching err's class.
func respondError(c echo.Context, err error) error {
	status := statusFor(err)
	logger := loggerFrom(c)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("path", c.Path()).Int("status", status).Msg("Request failed")
	} else {
		logger.Warn().Err(err).Str("path", c.Path()).Int("status", status).Msg("Request rejected")
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}

// httpErrorHandler keeps the {"error": ...} shape for router-level errors such as 404 and 405.
func httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		msg = fmt.Sprint(he.Message)
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	if werr := c.JSON(status, map[string]string{"error": msg}); werr != nil {
		log.Error().Err(werr).Msg("Failed to write error response")
	}
}
