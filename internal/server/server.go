/*
Package server implements the application's network transport layer.
It builds the echo router, configures timeouts, and wires the health-data,
risk and recommendation services to their routes.
*/
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"eon-server/internal/classifier"
	"eon-server/internal/database"
	"eon-server/internal/healthdata"
	"eon-server/internal/metrics"
	"eon-server/internal/recommendation"
	"eon-server/internal/risk"
	"eon-server/internal/utility"
)

// HealthData is the ingestion and read side of the metric store.
type HealthData interface {
	Sync(ctx context.Context, payload healthdata.SyncPayload) (healthdata.SyncResult, error)
	Onboard(ctx context.Context, payload healthdata.SyncPayload) (healthdata.SyncResult, error)
	Latest(ctx context.Context, externalID string) (healthdata.LatestMetrics, error)
	Metrics(ctx context.Context, externalID, startDate, endDate string) (healthdata.RawMetrics, error)
	Summary(ctx context.Context, externalID string) (metrics.Overview, error)
	SyncStatus(ctx context.Context, externalID string) ([]database.SyncStatus, error)
	CreateNote(ctx context.Context, externalID, note string) (database.UserNote, error)
	ListNotes(ctx context.Context, externalID string) ([]database.UserNote, error)
}

type RiskAnalyzer interface {
	Analyze(ctx context.Context, req risk.Request) (risk.Analysis, error)
	Stored(ctx context.Context, externalID string) (risk.Stored, error)
}

type Recommender interface {
	Generate(ctx context.Context, req recommendation.Request) (recommendation.Response, error)
	ForDevice(ctx context.Context, externalID string) (recommendation.Grouped, error)
	SetAcceptance(ctx context.Context, id int64, accepted bool) (database.Recommendation, error)
}

type ClassifierStatus interface {
	State() classifier.State
	Ready() error
}

// DBHealth reports connection-pool health; database.Service satisfies it.
type DBHealth interface {
	Health() map[string]string
}

var (
	_ HealthData       = (*healthdata.Service)(nil)
	_ RiskAnalyzer     = (*risk.Service)(nil)
	_ Recommender      = (*recommendation.Service)(nil)
	_ ClassifierStatus = (*classifier.Service)(nil)
)

// Deps carries the services the routes call into.
type Deps struct {
	DB              DBHealth
	HealthData      HealthData
	Risk            RiskAnalyzer
	Recommendations Recommender
	Classifier      ClassifierStatus
	Hub             *utility.Hub
}

// Server defines the configuration and dependencies for the HTTP service.
type Server struct {
	port int
	Deps
}

func New(port int, deps Deps) *Server {
	if deps.Hub == nil {
		deps.Hub = utility.NewHub()
	}
	return &Server{port: port, Deps: deps}
}

// NewServer returns a configured *http.Server for port.
func NewServer(port int, deps Deps) *http.Server {
	app := New(port, deps)

	return &http.Server{
		Addr:        fmt.Sprintf(":%d", app.port),
		Handler:     app.RegisterRoutes(),
		IdleTimeout: time.Minute,
		ReadTimeout: 30 * time.Second,
		// Risk analysis chains two model calls and a classifier pass.
		WriteTimeout: 3 * time.Minute,
	}
}
