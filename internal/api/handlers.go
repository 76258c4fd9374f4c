// internal/api/handlers.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	gwebsocket "github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ProfDian/water-qual-sub000/internal/auth"
	"github.com/ProfDian/water-qual-sub000/internal/buffer"
	"github.com/ProfDian/water-qual-sub000/internal/data"
	"github.com/ProfDian/water-qual-sub000/internal/reconciler"
	"github.com/ProfDian/water-qual-sub000/internal/storage"
	"github.com/ProfDian/water-qual-sub000/internal/websocket"
)

var upgrader = gwebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler exposes the pipeline's three core operations plus the read-only
// dashboard feeds over HTTP.
type Handler struct {
	Buffer     *buffer.IngestBuffer
	Reconciler *reconciler.Reconciler
	Janitor    *buffer.Janitor
	Store      storage.Store
	Hub        *websocket.Hub
	Auth       *auth.Manager
}

func NewHandler(buf *buffer.IngestBuffer, rec *reconciler.Reconciler, jan *buffer.Janitor, store storage.Store, hub *websocket.Hub, authMgr *auth.Manager) *Handler {
	return &Handler{
		Buffer:     buf,
		Reconciler: rec,
		Janitor:    jan,
		Store:      store,
		Hub:        hub,
		Auth:       authMgr,
	}
}

// SubmitResponse is the body returned for every accepted submission.
type SubmitResponse struct {
	Merged          bool                  `json:"merged"`
	ReadingID       string                `json:"reading_id,omitempty"`
	QualityAnalysis *data.QualityAnalysis `json:"quality_analysis,omitempty"`
	WaitingFor      data.Side             `json:"waiting_for,omitempty"`
	EntryID         string                `json:"entry_id,omitempty"`
}

// HandleSubmitReading ingests one half-reading and immediately attempts the
// merge for its facility. Every accepted submission is either reflected in
// a complete reading or left waiting in the buffer; it is never dropped.
func (h *Handler) HandleSubmitReading(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	req, err := data.ParseSubmitRequest(r.Body)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	entry, err := h.Buffer.Store(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.Reconciler.TryMerge(ctx, req.FacilityID)
	if err != nil {
		writeError(w, err)
		return
	}

	if res.Reading == nil {
		writeJSON(w, http.StatusOK, SubmitResponse{
			Merged:     false,
			WaitingFor: res.WaitingFor,
			EntryID:    entry.ID,
		})
		return
	}

	if h.Hub != nil {
		h.Hub.BroadcastReading(res.Reading)
	}
	writeJSON(w, http.StatusOK, SubmitResponse{
		Merged:          true,
		ReadingID:       res.Reading.ID,
		QualityAnalysis: &res.Reading.Quality,
	})
}

// HandleSweep triggers the janitor manually. Idempotent.
func (h *Handler) HandleSweep(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.Janitor.Sweep(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

// HandleBufferStatus reports the diagnostic buffer snapshot.
func (h *Handler) HandleBufferStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Buffer.Status(r.Context(), r.URL.Query().Get("facility_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleRecentReadings serves the dashboard's recent complete readings.
func (h *Handler) HandleRecentReadings(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50)
	readings, err := h.Store.RecentReadings(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if readings == nil {
		readings = []data.CompleteReading{}
	}
	writeJSON(w, http.StatusOK, readings)
}

// HandleAlerts lists persisted alerts, newest first.
func (h *Handler) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 100)
	alerts, err := h.Store.AlertsByFacility(r.Context(), r.URL.Query().Get("facility_id"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if alerts == nil {
		alerts = []data.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleToken exchanges operator credentials for a JWT.
func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	role, err := h.Auth.AuthenticateOperator(req.Username, req.Password)
	if err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := h.Auth.GenerateJWT(req.Username, role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token, "role": role})
}

// HandleHealthz is the liveness probe.
func (h *Handler) HandleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleWebSocket upgrades connections and registers clients with the hub.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Debug("websocket upgrade failed")
		return
	}

	client := &websocket.Client{Hub: h.Hub, Conn: conn, Send: make(chan []byte, 256)}
	client.Hub.RegisterClient(client)

	go client.WritePump()
	go client.ReadPump()
}

func queryLimit(r *http.Request, fallback int64) int64 {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.WithError(err).Error("failed to encode response body")
	}
}

// writeError maps the pipeline's error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, data.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, reconciler.ErrMergeRetryExhausted):
		// The submission is safely buffered; the caller may re-trigger.
		status = http.StatusConflict
	case errors.Is(err, reconciler.ErrDownstreamWrite):
		// Entries were released; the caller must retry the submission.
		status = http.StatusServiceUnavailable
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	}

	if status >= http.StatusInternalServerError {
		logrus.WithError(err).Error("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
