package events

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"medication-adherence/internal/domain/patients"
	"medication-adherence/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service, patientsSvc *patients.Service) {
	r.Route("/patients/{patientID}/events", func(er chi.Router) {
		er.Get("/", listEventsHandler(svc, patientsSvc))
		er.Get("/{eventID}", getEventHandler(svc, patientsSvc))
	})
}

// eventResponse representa una entrada del log de auditoría.
type eventResponse struct {
	ID         string    `json:"id"`
	PatientID  string    `json:"patient_id"`
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	RecordedAt time.Time `json:"recorded_at"`
	Subject    string    `json:"subject"`
	Notes      string    `json:"notes"`
	ActorType  ActorType `json:"actor_type"`
	ActorID    string    `json:"actor_id"`
	Source     Source    `json:"source"`
}

// listEventsHandler godoc
// @Summary Listar auditoría de un paciente
// @Description Lista confirmaciones, snoozes, reposiciones, vitales, escalamientos y reconocimientos. Owner o cuidador.
// @Tags events
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param patientID path string true "ID del paciente"
// @Param limit query int false "Máximo de eventos a devolver (1-200). Por defecto 50"
// @Param types query string false "Lista CSV de tipos (ej: DOSE_CONFIRMED,DOSE_ESCALATED)"
// @Param from query string false "occurred_at mínimo (RFC3339)"
// @Param to query string false "occurred_at máximo (RFC3339)"
// @Param q query string false "Texto libre en subject/notas"
// @Success 200 {array} eventResponse
// @Failure 400 {string} string "Parámetros de filtro inválidos"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "patient not found"
// @Router /patients/{patientID}/events [get]
func listEventsHandler(svc *Service, patientsSvc *patients.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, ok := authorize(w, r, patientsSvc)
		if !ok {
			return
		}

		filter, err := parseListFilter(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		items, err := svc.ListByPatient(r.Context(), patientID, filter)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]eventResponse, 0, len(items))
		for _, e := range items {
			out = append(out, toEventResponse(e))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// getEventHandler godoc
// @Summary Obtener evento de auditoría
// @Tags events
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param patientID path string true "ID del paciente"
// @Param eventID path string true "ID del evento"
// @Success 200 {object} eventResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "event not found"
// @Router /patients/{patientID}/events/{eventID} [get]
func getEventHandler(svc *Service, patientsSvc *patients.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, ok := authorize(w, r, patientsSvc)
		if !ok {
			return
		}

		ev, err := svc.GetByID(r.Context(), chi.URLParam(r, "eventID"))
		if err != nil || ev.PatientID != patientID {
			http.Error(w, "event not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, toEventResponse(ev))
	}
}

func authorize(w http.ResponseWriter, r *http.Request, patientsSvc *patients.Service) (string, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", false
	}

	patientID := chi.URLParam(r, "patientID")
	if _, _, err := patientsSvc.Authorize(r.Context(), patientID, claims.UserID); err != nil {
		if errors.Is(err, patients.ErrForbidden) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return "", false
		}
		http.Error(w, "patient not found", http.StatusNotFound)
		return "", false
	}
	return patientID, true
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	filter := ListFilter{Limit: limit}

	// types=DOSE_CONFIRMED,DOSE_ESCALATED
	if v := strings.TrimSpace(r.URL.Query().Get("types")); v != "" {
		parts := strings.Split(v, ",")
		out := make([]EventType, 0, len(parts))
		for _, p := range parts {
			t := EventType(strings.TrimSpace(p))
			if t == "" {
				continue
			}
			out = append(out, t)
		}
		if len(out) > 0 {
			filter.Types = out
		}
	}

	// from/to RFC3339
	if v := strings.TrimSpace(r.URL.Query().Get("from")); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return ListFilter{}, errors.New("from must be RFC3339")
		}
		filter.From = &t
	}
	if v := strings.TrimSpace(r.URL.Query().Get("to")); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return ListFilter{}, errors.New("to must be RFC3339")
		}
		filter.To = &t
	}

	if v := strings.TrimSpace(r.URL.Query().Get("q")); v != "" {
		filter.Query = v
	}

	return filter, nil
}

func toEventResponse(e Event) eventResponse {
	return eventResponse{
		ID:         e.ID,
		PatientID:  e.PatientID,
		Type:       e.Type,
		OccurredAt: e.OccurredAt,
		RecordedAt: e.RecordedAt,
		Subject:    e.Subject,
		Notes:      e.Notes,
		ActorType:  e.Actor.Type,
		ActorID:    e.Actor.ID,
		Source:     e.Source,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
