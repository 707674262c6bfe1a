// Package command turns player intents into façade calls. It resolves the
// subcommand, checks permission nodes and shapes the result.
package command

import (
	"errors"
	"net/http"

	"github.com/empirewand/wandcore/internal/domain"
)

// Intent is one command issued by a player.
type Intent struct {
	ID         string          `json:"id,omitempty"`
	Namespace  string          `json:"namespace"`
	PlayerID   domain.PlayerID `json:"player_id"`
	Subcommand string          `json:"subcommand"`
	Args       []string        `json:"args"`
}

// Result is the outcome reported back to the player. Stale is set on read
// results served while the migration gate is closed.
type Result struct {
	IntentID string      `json:"intent_id,omitempty"`
	PlayerID string      `json:"player_id"`
	OK       bool        `json:"ok"`
	Code     string      `json:"code,omitempty"`
	Message  string      `json:"message,omitempty"`
	Data     interface{} `json:"data,omitempty"`
	Stale    bool        `json:"stale,omitempty"`

	// Status is the HTTP status matching the outcome.
	Status int `json:"-"`
}

// Failure builds a failed result from err.
func Failure(in Intent, err error) Result {
	res := Result{IntentID: in.ID, PlayerID: string(in.PlayerID)}
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		res.Code = appErr.Code
		res.Message = appErr.Message
		res.Status = appErr.Status
		return res
	}
	res.Code = domain.CodeInternal
	res.Message = "internal error"
	res.Status = http.StatusInternalServerError
	return res
}

func success(in Intent, msg string, data interface{}) Result {
	return Result{IntentID: in.ID, PlayerID: string(in.PlayerID), OK: true, Message: msg, Data: data, Status: http.StatusOK}
}
