package session

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/dietbot/internal/model/intake"
	"github.com/zhouzirui/dietbot/pkg/utils"
)

// Reader is the read side of the session store.
type Reader interface {
	Get(ctx context.Context, userID intake.UserID) (intake.Session, bool)
}

// Handler exposes questionnaire sessions for inspection.
type Handler struct {
	sessions Reader
}

// New creates a session handler.
func New(sessions Reader) *Handler {
	return &Handler{
		sessions: sessions,
	}
}

// RegisterRoutes mounts the session routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions/{userID}", h.handleGetSession)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	userID := intake.UserID(chi.URLParam(r, "userID"))

	s, ok := h.sessions.Get(r.Context(), userID)
	if !ok {
		utils.RespondError(w, r, http.StatusNotFound, "session not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, s)
}
