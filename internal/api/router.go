// Package api exposes the funnel dashboard, the editor sessions and the quiz
// player over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"quiz-funnels/internal/common/logger"
	"quiz-funnels/internal/common/observability"
	"quiz-funnels/internal/editor"
	"quiz-funnels/internal/models"
	"quiz-funnels/internal/player"
)

// FunnelRepository is the funnel CRUD surface used by the dashboard routes.
type FunnelRepository interface {
	List(ctx context.Context) ([]models.Funnel, error)
	Get(ctx context.Context, id string) (*models.Funnel, error)
	Create(ctx context.Context, name string) (*models.Funnel, error)
	Update(ctx context.Context, id string, data models.FunnelData) error
	Delete(ctx context.Context, id string) error
}

type Deps struct {
	Funnels       FunnelRepository
	Editors       *editor.Manager
	Players       *player.Manager
	Events        http.Handler
	Metrics       http.Handler
	Observability *observability.Observability
	PublicBaseURL string
	Log           logger.Logger
}

func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()
	log := d.Log.WithFields(map[string]interface{}{"component": "api"})

	funnelHandler := NewFunnelHandler(d.Funnels, d.PublicBaseURL, log)
	editorHandler := NewEditorHandler(d.Editors, log)
	playerHandler := NewPlayerHandler(d.Players, log)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	metricsHandler := d.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	mux.Handle("GET /metrics", metricsHandler)

	// Dashboard
	mux.HandleFunc("GET /v1/funnels", WithLogging(log, funnelHandler.List))
	mux.HandleFunc("POST /v1/funnels", WithLogging(log, funnelHandler.Create))
	mux.HandleFunc("GET /v1/funnels/{id}", WithLogging(log, funnelHandler.Get))
	mux.HandleFunc("PUT /v1/funnels/{id}/data", WithLogging(log, funnelHandler.UpdateData))
	mux.HandleFunc("DELETE /v1/funnels/{id}", WithLogging(log, funnelHandler.Delete))
	mux.HandleFunc("GET /v1/funnels/{id}/share", WithLogging(log, funnelHandler.Share))

	// Editor sessions
	mux.HandleFunc("POST /v1/funnels/{id}/editor", WithLogging(log, editorHandler.Open))
	mux.HandleFunc("GET /v1/editor/{sid}", WithLogging(log, editorHandler.Get))
	mux.HandleFunc("DELETE /v1/editor/{sid}", WithLogging(log, editorHandler.Close))
	mux.HandleFunc("POST /v1/editor/{sid}/navigate", WithLogging(log, editorHandler.Navigate))
	mux.HandleFunc("POST /v1/editor/{sid}/questions", WithLogging(log, editorHandler.AddQuestion))
	mux.HandleFunc("POST /v1/editor/{sid}/questions/{index}/edit", WithLogging(log, editorHandler.EditQuestion))
	mux.HandleFunc("PUT /v1/editor/{sid}/questions/current", WithLogging(log, editorHandler.SaveQuestion))
	mux.HandleFunc("DELETE /v1/editor/{sid}/questions/current", WithLogging(log, editorHandler.DeleteQuestion))
	mux.HandleFunc("POST /v1/editor/{sid}/questions/cancel", WithLogging(log, editorHandler.CancelQuestion))
	mux.HandleFunc("POST /v1/editor/{sid}/questions/import", WithLogging(log, editorHandler.ImportQuestions))
	mux.HandleFunc("PATCH /v1/editor/{sid}/links", WithLogging(log, editorHandler.UpdateLinks))
	mux.HandleFunc("PATCH /v1/editor/{sid}/colors", WithLogging(log, editorHandler.UpdateColors))
	mux.HandleFunc("POST /v1/editor/{sid}/flush", WithLogging(log, editorHandler.Flush))

	// Quiz player
	mux.HandleFunc("POST /v1/play/{funnelId}", WithLogging(log, playerHandler.Start))
	mux.HandleFunc("GET /v1/play/sessions/{sid}", WithLogging(log, playerHandler.Get))
	mux.HandleFunc("POST /v1/play/sessions/{sid}/answers", WithLogging(log, playerHandler.Answer))
	mux.HandleFunc("GET /v1/play/sessions/{sid}/redirect", WithLogging(log, playerHandler.Redirect))

	// Change events
	if d.Events != nil {
		mux.HandleFunc("GET /v1/ws/funnels", WithLogging(log, d.Events.ServeHTTP))
	}

	var handler http.Handler = mux
	if d.Observability != nil {
		handler = d.Observability.Middleware(handler)
	}
	return CORS(handler)
}
