package handler

import (
	"context"
	"net/http"

	"github.com/empirewand/wandcore/internal/command"
	"github.com/empirewand/wandcore/internal/domain"
	"github.com/go-chi/chi/v5"
)

// Dispatcher runs one intent.
type Dispatcher interface {
	Dispatch(ctx context.Context, in command.Intent) command.Result
}

// CommandHandler exposes the command surface over HTTP.
type CommandHandler struct {
	dispatcher Dispatcher
}

// NewCommandHandler creates a new CommandHandler.
func NewCommandHandler(d Dispatcher) *CommandHandler {
	return &CommandHandler{dispatcher: d}
}

type commandRequest struct {
	ID       string          `json:"id"`
	PlayerID domain.PlayerID `json:"player_id"`
	Args     []string        `json:"args"`
}

// Execute handles POST /v1/{namespace}/{subcommand}.
func (h *CommandHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	id := req.ID
	if id == "" {
		id = r.Header.Get("Idempotency-Key")
	}

	res := h.dispatcher.Dispatch(r.Context(), command.Intent{
		ID:         id,
		Namespace:  chi.URLParam(r, "namespace"),
		PlayerID:   req.PlayerID,
		Subcommand: chi.URLParam(r, "subcommand"),
		Args:       req.Args,
	})
	status := res.Status
	if status == 0 {
		status = http.StatusOK
	}
	RespondJSON(w, status, res)
}
