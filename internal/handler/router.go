package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	localehandler "github.com/zhouzirui/dietbot/internal/handler/locale"
	sessionhandler "github.com/zhouzirui/dietbot/internal/handler/session"
	"github.com/zhouzirui/dietbot/internal/handler/webchat"
	middlewarePkg "github.com/zhouzirui/dietbot/internal/middleware"
	localeModel "github.com/zhouzirui/dietbot/internal/model/locale"
	sessionService "github.com/zhouzirui/dietbot/internal/service/session"
	"github.com/zhouzirui/dietbot/pkg/utils"
)

// Deps are the services exposed over HTTP. WebChat is optional and session
// inspection is mounted only when InspectSessions is set.
type Deps struct {
	Locales         localeModel.Store
	Sessions        *sessionService.Store
	InspectSessions bool
	WebChat         *webchat.Handler
	Logger          *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": deps.Sessions.Count(),
		})
	})

	r.Route("/api", func(api chi.Router) {
		localehandler.New(deps.Locales).RegisterRoutes(api)
		if deps.InspectSessions {
			sessionhandler.New(deps.Sessions).RegisterRoutes(api)
		}

		if deps.WebChat != nil {
			deps.WebChat.RegisterRoutes(api)
		} else {
			api.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
				utils.RespondError(w, r, http.StatusServiceUnavailable, "web chat disabled")
			})
		}
	})

	return r
}
