// Package httptransport exposes the reconciled table view over HTTP: JSON
// account listings plus a server-sent settlement stream.
package httptransport

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"chain-roulette/internal/bets"
	"chain-roulette/internal/config"
	"chain-roulette/internal/events"
	"chain-roulette/internal/rounds"
)

const (
	apiPrefix        = "/api"
	settlementsRoute = "/events/settlements"
)

func NewRouter(rec *rounds.Reconciler, betsCol *bets.Collection, buf *events.Buffer, cfg config.ServerConfig) *chi.Mux {
	handlers := NewAccountHandlers(rec, betsCol)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", handlers.Health())

	r.Route(apiPrefix, func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Get("/view", handlers.View())
		r.Get("/accounts/table", handlers.Table())
		r.Get("/accounts/rounds", handlers.Rounds())
		r.Get("/accounts/bets", handlers.Bets())
		r.Get(settlementsRoute, SettlementsSSEHandler(buf, time.Duration(cfg.SSEPingSecs)*time.Second))

		r.Route("/debug", func(r chi.Router) {
			r.Use(BodyCaptureMiddleware(4096))
			r.Get("/vars", expvar.Handler().ServeHTTP)
		})
	})

	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 16)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
