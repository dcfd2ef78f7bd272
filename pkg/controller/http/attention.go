package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/seabird-lab/beacon/pkg/domain/model"
	"github.com/seabird-lab/beacon/pkg/domain/types"
	"github.com/seabird-lab/beacon/pkg/usecase"
	"github.com/seabird-lab/beacon/pkg/utils/errutil"
)

type attentionEntry struct {
	ID         string `json:"id"`
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Message    string `json:"message,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func newAttentionEntry(ev model.AttentionEvent) attentionEntry {
	return attentionEntry{
		ID:         string(ev.ID),
		SenderID:   string(ev.SenderID),
		ReceiverID: string(ev.ReceiverID),
		Message:    ev.Message,
		CreatedAt:  ev.CreatedAt.Format(time.RFC3339),
	}
}

// attentionSendHandler creates and dispatches an attention event.
func attentionSendHandler(uc *usecase.AttentionUseCase) http.HandlerFunc {
	type request struct {
		SenderID   string `json:"sender_id"`
		ReceiverID string `json:"receiver_id"`
		Message    string `json:"message"`
	}
	type response struct {
		Event attentionEntry `json:"event"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to decode attention request"), http.StatusBadRequest)
			return
		}

		ev, err := uc.Send(r.Context(), types.UserID(req.SenderID), types.UserID(req.ReceiverID), req.Message)
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, statusForError(err))
			return
		}

		writeJSON(r.Context(), w, http.StatusCreated, response{Event: newAttentionEntry(*ev)})
	}
}

// statusForError maps domain errors onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrReceiverOffline):
		return http.StatusConflict
	case errors.Is(err, types.ErrRemote), errors.Is(err, types.ErrSubscriptionLost):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		_ = errutil.Handle(ctx, err, "failed to encode response")
	}
}
