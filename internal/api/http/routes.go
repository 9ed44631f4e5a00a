package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sensor-proxy/internal/application/inspector"
	"sensor-proxy/internal/domain"
	"sensor-proxy/internal/logging"
)

const (
	paramName = "name"
	queryFrom = "from"
	queryTo   = "to"

	defaultHistoryWindow = time.Hour
)

// handler contains the HTTP handlers and shared dependencies for the REST API.
type handler struct {
	service   domain.SensorInspector
	readiness func() error
	logger    *logging.Logger
}

func registerRoutes(router chi.Router, h *handler) {
	router.Get("/health", h.handleHealth)
	router.Get("/healthz", h.handleReady)

	router.Route("/sensors", func(r chi.Router) {
		r.Get("/", h.handleListSensors)
		r.Get("/{name}", h.handleGetSensor)
		r.Get("/{name}/history", h.handleHistory)
	})
	router.Route("/orig-sensors", func(r chi.Router) {
		r.Get("/", h.handleListOrigSensors)
		r.Get("/{name}", h.handleGetOrigSensor)
	})
}

type sensorResponse struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Units       string `json:"units,omitempty"`
	Type        string `json:"type"`
	Value       string `json:"value"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
}

type readingResponse struct {
	Value     string   `json:"value"`
	Numeric   *float64 `json:"numeric,omitempty"`
	Status    string   `json:"status"`
	Timestamp string   `json:"timestamp"`
}

type historyResponse struct {
	Name     string            `json:"name"`
	From     string            `json:"from"`
	To       string            `json:"to"`
	Readings []readingResponse `json:"readings"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) handleReady(w http.ResponseWriter, _ *http.Request) {
	if h.readiness != nil {
		if err := h.readiness(); err != nil {
			h.writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *handler) handleListSensors(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, toSensorResponses(h.service.ListSensors(r.Context())))
}

func (h *handler) handleGetSensor(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.GetSensor(r.Context(), chi.URLParam(r, paramName))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toSensorResponse(snapshot))
}

func (h *handler) handleListOrigSensors(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, toSensorResponses(h.service.ListOrigSensors(r.Context())))
}

func (h *handler) handleGetOrigSensor(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.GetOrigSensor(r.Context(), chi.URLParam(r, paramName))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toSensorResponse(snapshot))
}

func (h *handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, paramName)
	params := r.URL.Query()

	to := time.Now().UTC()
	if raw := params.Get(queryTo); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid to timestamp")
			return
		}
		to = parsed
	}

	from := to.Add(-defaultHistoryWindow)
	if raw := params.Get(queryFrom); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid from timestamp")
			return
		}
		from = parsed
	}

	records, err := h.service.History(r.Context(), name, from, to)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	response := historyResponse{
		Name:     name,
		From:     from.UTC().Format(time.RFC3339Nano),
		To:       to.UTC().Format(time.RFC3339Nano),
		Readings: make([]readingResponse, 0, len(records)),
	}
	for _, record := range records {
		response.Readings = append(response.Readings, readingResponse{
			Value:     record.Value,
			Numeric:   record.Numeric,
			Status:    record.Status.String(),
			Timestamp: record.Timestamp.UTC().Format(time.RFC3339Nano),
		})
	}
	h.writeJSON(w, http.StatusOK, response)
}

func toSensorResponses(snapshots []domain.SensorSnapshot) []sensorResponse {
	out := make([]sensorResponse, 0, len(snapshots))
	for _, snapshot := range snapshots {
		out = append(out, toSensorResponse(snapshot))
	}
	return out
}

func toSensorResponse(snapshot domain.SensorSnapshot) sensorResponse {
	return sensorResponse{
		Name:        snapshot.Name,
		Description: snapshot.Description,
		Units:       snapshot.Units,
		Type:        snapshot.Type,
		Value:       snapshot.Value,
		Status:      snapshot.Status.String(),
		Timestamp:   snapshot.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

func (h *handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSensorNotFound):
		h.writeError(w, http.StatusNotFound, "sensor not found")
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "no readings found")
	case errors.Is(err, inspector.ErrInvalidRange):
		h.writeError(w, http.StatusBadRequest, "from must be before to")
	default:
		h.logger.Error("http: request failed", logging.AttachError(err)...)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Error: message, Code: status})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
