package locale

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/dietbot/internal/model/locale"
	"github.com/zhouzirui/dietbot/pkg/utils"
)

// Handler serves the bundled locales.
type Handler struct {
	locales locale.Store
}

// New creates a locale handler.
func New(locales locale.Store) *Handler {
	return &Handler{
		locales: locales,
	}
}

// RegisterRoutes mounts the locale routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/locales", h.handleListLocales)
	r.Get("/locales/{localeID}", h.handleGetLocale)
}

func (h *Handler) handleListLocales(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.locales.List())
}

func (h *Handler) handleGetLocale(w http.ResponseWriter, r *http.Request) {
	item, ok := h.locales.FindByID(chi.URLParam(r, "localeID"))
	if !ok {
		utils.RespondError(w, r, http.StatusNotFound, "locale not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, item)
}
