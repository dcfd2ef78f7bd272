package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/seabird-lab/beacon/pkg/domain/model"
	"github.com/seabird-lab/beacon/pkg/domain/types"
	"github.com/seabird-lab/beacon/pkg/usecase"
	"github.com/seabird-lab/beacon/pkg/utils/errutil"
)

type presenceEntry struct {
	UserID   string `json:"user_id"`
	Status   string `json:"status"`
	LastSeen string `json:"last_seen,omitempty"`
	Online   bool   `json:"online"`
}

func newPresenceEntry(uc *usecase.PresenceUseCase, rec model.PresenceRecord) presenceEntry {
	entry := presenceEntry{
		UserID: string(rec.UserID),
		Status: string(rec.Status),
		Online: uc.IsOnline(rec),
	}
	if !rec.LastSeen.IsZero() {
		entry.LastSeen = rec.LastSeen.Format(time.RFC3339)
	}
	return entry
}

// presenceReportHandler accepts a one-shot presence report. Browser
// clients on a heartbeat cadence post here every interval.
func presenceReportHandler(uc *usecase.PresenceUseCase) http.HandlerFunc {
	type request struct {
		UserID string `json:"user_id"`
		Status string `json:"status"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to decode presence report"), http.StatusBadRequest)
			return
		}

		status := types.PresenceStatus(req.Status)
		if status == "" {
			status = types.StatusOnline
		}
		if status != types.StatusOnline && status != types.StatusOffline {
			errutil.HandleHTTP(r.Context(), w,
				goerr.Wrap(types.ErrInvalidArgument, "unknown presence status", goerr.V("status", req.Status)),
				http.StatusBadRequest)
			return
		}

		if err := uc.Report(r.Context(), types.UserID(req.UserID), status); err != nil {
			errutil.HandleHTTP(r.Context(), w, err, statusForError(err))
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// presenceSnapshotHandler serves a point-in-time bulk read for the
// comma-separated ids query parameter.
func presenceSnapshotHandler(uc *usecase.PresenceUseCase) http.HandlerFunc {
	type response struct {
		Presence []presenceEntry `json:"presence"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ids := parseUserIDs(r.URL.Query().Get("ids"))
		if len(ids) == 0 {
			errutil.HandleHTTP(r.Context(), w,
				goerr.Wrap(types.ErrInvalidArgument, "ids query parameter is required"),
				http.StatusBadRequest)
			return
		}

		records, err := uc.Snapshot(r.Context(), ids)
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, statusForError(err))
			return
		}

		resp := response{Presence: make([]presenceEntry, 0, len(records))}
		for _, id := range ids {
			resp.Presence = append(resp.Presence, newPresenceEntry(uc, records[id]))
		}

		writeJSON(r.Context(), w, http.StatusOK, resp)
	}
}

func parseUserIDs(raw string) []types.UserID {
	var ids []types.UserID
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		ids = append(ids, types.UserID(part))
	}
	return ids
}
