package adherence

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"medication-adherence/internal/domain/events"
	"medication-adherence/internal/domain/patients"
	"medication-adherence/internal/domain/vitals"
	"medication-adherence/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// Ticker corre el tick de un paciente. El agent lo implementa entregando las
// acciones al dispatcher; sin agent se usa el Service directo.
type Ticker interface {
	RunTick(ctx context.Context, patientID string) (TickResult, error)
}

// RegisterRoutes cuelga las rutas del engine bajo /patients/{patientID}.
// Se registran con path completo para no montar un subrouter que tape
// GET /patients/{patientID} del módulo patients.
func RegisterRoutes(r chi.Router, svc *Service, patientsSvc *patients.Service, ticker Ticker) {
	const p = "/patients/{patientID}"
	if ticker == nil {
		ticker = svc
	}

	// Plan (solo owner)
	r.Put(p+"/plan", setupPlanHandler(svc, patientsSvc))
	r.Post(p+"/medications", upsertMedicationHandler(svc, patientsSvc))
	r.Delete(p+"/medications/{name}", removeMedicationHandler(svc, patientsSvc))

	// Engine
	r.Get(p+"/observation", observationHandler(svc, patientsSvc))
	r.Post(p+"/tick", tickHandler(ticker, patientsSvc))

	// Dosis
	r.Post(p+"/doses/confirm", confirmDoseHandler(svc, patientsSvc))
	r.Post(p+"/doses/{doseKey}/snooze", snoozeDoseHandler(svc, patientsSvc))

	// Vitales y stock
	r.Post(p+"/vitals", recordVitalHandler(svc, patientsSvc))
	r.Post(p+"/inventory/{name}/restock", restockHandler(svc, patientsSvc))

	// Alertas
	r.Get(p+"/alerts", listAlertsHandler(svc, patientsSvc))
	r.Post(p+"/alerts/{alertID}/ack", ackAlertHandler(svc, patientsSvc))
	r.Get(p+"/summary", summaryHandler(svc, patientsSvc))
	r.Get(p+"/report", reportHandler(svc, patientsSvc))
}

type setupPlanRequest struct {
	Medications []PlanItem `json:"medications"`
}

type confirmDoseRequest struct {
	Medication string     `json:"medication"`
	At         *time.Time `json:"at"`   // opcional, default ahora
	Slot       string     `json:"slot"` // opcional, "HH:MM"
}

type confirmDoseResponse struct {
	ConfirmResult
	AlreadyResolved bool `json:"already_resolved"`
}

type snoozeDoseRequest struct {
	Minutes int `json:"minutes"`
}

type recordVitalRequest struct {
	Type string `json:"type"`
	// Value numérico, o "120/80" para blood-pressure.
	Value      json.RawMessage `json:"value"`
	Secondary  *float64        `json:"secondary"`
	Text       string          `json:"text"`
	RecordedAt *time.Time      `json:"recorded_at"`
}

type restockRequest struct {
	Units int `json:"units"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// setupPlanHandler godoc
// @Summary Reemplazar plan de medicación
// @Description Define el plan completo. Las medicaciones que no vienen se quitan (quedan como tombstone si tienen dosis). Solo owner.
// @Tags plan
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param patientID path string true "ID del paciente"
// @Param payload body setupPlanRequest true "Plan"
// @Success 200 {array} medications.Medication
// @Failure 400 {string} string "plan inválido"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "patient not found"
// @Router /patients/{patientID}/plan [put]
func setupPlanHandler(svc *Service, patientsSvc *patients.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, patientID, ok := authorize(w, r, patientsSvc, true)
		if !ok {
			return
		}

		var req setupPlanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		meds, err := svc.SetupPlan(ctx, patientID, req.Medications)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, meds)
	}
}

// upsertMedicationHandler godoc
// @Summary Agregar o editar una medicación
// @Tags plan
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param patientID path string true "ID del paciente"
// @Param payload body PlanItem true "Medicación"
// @Success 200 {object} medications.Medication
// @Failure 400 {string} string "medicación inválida"
// @Failure 403 {string} string "forbidden"
// @Router /patients/{patientID}/medications [post]
func upsertMedicationHandler(svc *Service, patientsSvc *patients.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, patientID, ok := authorize(w, r, patientsSvc, true)
		if !ok {
			return
		}

		var req PlanItem
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		m, err := svc.UpsertMedication(ctx, patientID, req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

// removeMedicationHandler godoc
// @Summary Quitar una medicación
// @Tags plan
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param patientID path string true "ID del paciente"
// @Param name path string true "Nombre de la medicación"
// @Success 204 {string} string "no content"
// @Failure 404 {string} string "medication not found"
// @Router /patients/{patientID}/medications/{name} [delete]
func removeMedicationHandler(svc *Service, patientsSvc *patients.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, patientID, ok := authorize(w, r, patientsSvc, true)
		if !ok {
			return
		}

		if _, err := svc.RemoveMedication(ctx, patientID, pathParam(r, "name")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// observationHandler godoc
// @Summary Observación actual
// @Description Medicaciones activas, stock, vitales recientes y dosis abiertas. No modifica el estado.
// @Tags engine
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param patientID path string true "ID del paciente"
// @Success 200 {object} Observation
// @Router /patients/{patientID}/observation [get]
func observationHandler(svc *Service, patientsSvc *patients.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, patientID, ok := authorize(w, r, patientsSvc, false)
		if !ok {
			return
		}

		obs, err := svc.Observe(ctx, patientID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, obs)
	}
}

// tickHandler godoc
// @Summary Ejecutar un tick
// @Description Corre el engine para el paciente con la hora actual, entrega las acciones al dispatcher y devuelve transiciones, alertas y acciones.
// @Tags engine
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param patientID path string true "ID del paciente"
// @Success 200 {object} TickResult
// @Router /patients/{patientID}/tick [post]
func tickHandler(ticker Ticker, patientsSvc *patients.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, patientID, ok := authorize(w, r, patientsSvc, false)
		if !ok {
			return
		}

		res, err := ticker.RunTick(ctx, patientID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// confirmDoseHandler godoc
// @Summary Confirmar toma
// @Description Resuelve la dosis cuya ventana contiene el instante. Repetir la confirmación devuelve already_resolved sin descontar stock.
// @Tags doses
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param patientID path string true "ID del paciente"
// @Param payload body confirmDoseRequest true "Confirmación"
// @Success 200 {object} confirmDoseResponse
// @Failure 404 {string} string "no hay ventana abierta"
// @Failure 409 {object} errorResponse "insufficient_stock"
// @Router /patients/{patientID}/doses/confirm [post]
func confirmDoseHandler(svc *Service, patientsSvc *patients.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, patientID, ok := authorize(w, r, patientsSvc, false)
		if !ok {
			return
		}

		var req confirmDoseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		in := ConfirmInput{Medication: req.Medication, Slot: req.Slot}
		if req.At != nil {
			in.At = *req.At
		}

		res, err := svc.ConfirmDose(ctx, patientID, in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, confirmDoseResponse{
			ConfirmResult:   res,
			AlreadyResolved: res.Outcome == OutcomeAlreadyResolved,
		})
	}
}

// snoozeDoseHandler godoc
// @Summary Posponer recordatorio
// @Description Suprime notificaciones de la dosis durante N minutos. El escalamiento no se pospone.
// @Tags doses
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param patientID path string true "ID del paciente"
// @Param doseKey path string true "Clave de dosis (medicación|YYYY-MM-DD|HH:MM)"
// @Param payload body snoozeDoseRequest true "Minutos"
// @Success 200 {object} SnoozeResult
// @Failure 400 {string} string "minutes inválido"
// @Failure 404 {string} string "dose not found"
// @Router /patients/{patientID}/doses/{doseKey}/snooze [post]
func snoozeDoseHandler(svc *Service, patientsSvc *patients.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, patientID, ok := authorize(w, r, patientsSvc, false)
		if !ok {
			return
		}

		var req snoozeDoseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		res, err := svc.SnoozeDose(ctx, patientID, pathParam(r, "doseKey"), req.Minutes)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// recordVitalHandler godoc
// @Summary Registrar signo vital
// @Description Guarda la lectura y la compara con la línea base del paciente.
// @Tags vitals
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param patientID path string true "ID del paciente"
// @Param payload body recordVitalRequest true "Lectura"
// @Success 201 {object} VitalResult
// @Failure 400 {string} string "lectura inválida"
// @Router /patients/{patientID}/vitals [post]
func recordVitalHandler(svc *Service, patientsSvc *patients.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, patientID, ok := authorize(w, r, patientsSvc, false)
		if !ok {
			return
		}

		var req recordVitalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		reading, err := req.toReading()
		if err != nil {
			writeError(w, err)
			return
		}

		res, err := svc.RecordVital(ctx, patientID, reading)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

func (req recordVitalRequest) toReading() (vitals.Reading, error) {
	t, err := vitals.ParseType(req.Type)
	if err != nil {
		return vitals.Reading{}, err
	}
	out := vitals.Reading{Type: t, Secondary: req.Secondary, Text: req.Text}
	if req.RecordedAt != nil {
		out.RecordedAt = *req.RecordedAt
	}

	raw := strings.TrimSpace(string(req.Value))
	switch {
	case raw == "" || raw == "null":
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(req.Value, &s); err != nil {
			return vitals.Reading{}, ErrInvalidInput
		}
		if t == vitals.BloodPressure && strings.Contains(s, "/") {
			sys, dia, err := vitals.ParseBloodPressure(s)
			if err != nil {
				return vitals.Reading{}, err
			}
			out.Value, out.Secondary = sys, &dia
			break
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return vitals.Reading{}, ErrInvalidInput
		}
		out.Value = v
	default:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return vitals.Reading{}, ErrInvalidInput
		}
		out.Value = v
	}
	return out, nil
}

// restockHandler godoc
// @Summary Reponer stock
// @Tags inventory
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param patientID path string true "ID del paciente"
// @Param name path string true "Nombre de la medicación"
// @Param payload body restockRequest true "Unidades"
// @Success 200 {object} RestockResult
// @Failure 400 {string} string "units inválido"
// @Failure 404 {string} string "medication not found"
// @Router /patients/{patientID}/inventory/{name}/restock [post]
func restockHandler(svc *Service, patientsSvc *patients.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, patientID, ok := authorize(w, r, patientsSvc, false)
		if !ok {
			return
		}

		var req restockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		res, err := svc.Restock(ctx, patientID, pathParam(r, "name"), req.Units)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// listAlertsHandler godoc
// @Summary Listar alertas
// @Description Alertas ordenadas por severidad y fecha, con la severidad general del paciente.
// @Tags alerts
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param patientID path string true "ID del paciente"
// @Param active query bool false "Solo no reconocidas (default true)"
// @Success 200 {object} AlertList
// @Router /patients/{patientID}/alerts [get]
func listAlertsHandler(svc *Service, patientsSvc *patients.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, patientID, ok := authorize(w, r, patientsSvc, false)
		if !ok {
			return
		}

		activeOnly := true
		if v := r.URL.Query().Get("active"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				http.Error(w, "invalid active", http.StatusBadRequest)
				return
			}
			activeOnly = b
		}

		list, err := svc.ListAlerts(ctx, patientID, activeOnly)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// ackAlertHandler godoc
// @Summary Reconocer alerta
// @Tags alerts
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param patientID path string true "ID del paciente"
// @Param alertID path string true "ID de la alerta"
// @Success 200 {object} alerts.Alert
// @Failure 404 {string} string "alert not found"
// @Router /patients/{patientID}/alerts/{alertID}/ack [post]
func ackAlertHandler(svc *Service, patientsSvc *patients.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, patientID, ok := authorize(w, r, patientsSvc, false)
		if !ok {
			return
		}

		actor := events.ActorFrom(ctx)
		a, err := svc.AcknowledgeAlert(ctx, patientID, chi.URLParam(r, "alertID"), actor.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// summaryHandler godoc
// @Summary Resumen en prosa
// @Description Explica las alertas activas. Si el proveedor LLM no está configurado o falla, devuelve un resumen fijo.
// @Tags alerts
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param patientID path string true "ID del paciente"
// @Success 200 {object} Summary
// @Router /patients/{patientID}/summary [get]
func summaryHandler(svc *Service, patientsSvc *patients.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, patientID, ok := authorize(w, r, patientsSvc, false)
		if !ok {
			return
		}

		sum, err := svc.Summary(ctx, patientID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}

// reportHandler godoc
// @Summary Informe de adherencia
// @Description Tasa de adherencia por medicamento, vitales contra el período anterior y reportes de bienestar. days por defecto 7, máximo la retención del archivo.
// @Tags reports
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param patientID path string true "ID del paciente"
// @Param days query int false "Días del período"
// @Success 200 {object} Report
// @Failure 400 {string} string "days inválido"
// @Router /patients/{patientID}/report [get]
func reportHandler(svc *Service, patientsSvc *patients.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := 0
		if raw := strings.TrimSpace(r.URL.Query().Get("days")); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				http.Error(w, "invalid days", http.StatusBadRequest)
				return
			}
			days = v
		}

		ctx, patientID, ok := authorize(w, r, patientsSvc, false)
		if !ok {
			return
		}

		rep, err := svc.Report(ctx, patientID, days)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

// authorize valida acceso al paciente y deja el actor en el contexto.
func authorize(w http.ResponseWriter, r *http.Request, patientsSvc *patients.Service, ownerOnly bool) (context.Context, string, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, "", false
	}

	patientID := chi.URLParam(r, "patientID")
	_, role, err := patientsSvc.Authorize(r.Context(), patientID, claims.UserID)
	if err != nil {
		if errors.Is(err, patients.ErrForbidden) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return nil, "", false
		}
		http.Error(w, "patient not found", http.StatusNotFound)
		return nil, "", false
	}
	if ownerOnly && role != patients.RoleOwner {
		http.Error(w, "forbidden", http.StatusForbidden)
		return nil, "", false
	}

	actor := events.Actor{Type: events.ActorTypePatientUser, ID: claims.UserID}
	if role == patients.RoleCaregiver {
		actor.Type = events.ActorTypeCaregiverUser
	}
	return events.WithActor(r.Context(), actor), patientID, true
}

// pathParam decodifica el parámetro; chi lo entrega crudo si el path vino con RawPath.
func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		writeJSON(w, http.StatusConflict, errorResponse{Code: "insufficient_stock", Message: err.Error()})
	case IsNotFound(err):
		http.Error(w, err.Error(), http.StatusNotFound)
	case IsInvalid(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
