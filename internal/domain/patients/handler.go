package patients

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"medication-adherence/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/patients", func(pr chi.Router) {
		pr.Post("/", createPatientHandler(svc))
		pr.Get("/", listPatientsHandler(svc))

		// Perfil (owner o cuidador)
		pr.Get("/{patientID}", getPatientHandler(svc))

		// Editar perfil / cuidadores (solo owner)
		pr.Patch("/{patientID}", updatePatientHandler(svc))
	})

	// Pacientes que cuido
	r.Get("/me/patients", listSharedPatientsHandler(svc))
}

type createPatientRequest struct {
	ID               string   `json:"id"` // opcional
	Name             string   `json:"name"`
	Timezone         string   `json:"timezone"` // IANA, default UTC
	CaregiverUserIDs []string `json:"caregiver_user_ids"`
	Notes            string   `json:"notes"`
}

type updatePatientRequest struct {
	// Punteros: nil = no tocar.
	Name             *string   `json:"name"`
	Timezone         *string   `json:"timezone"`
	CaregiverUserIDs *[]string `json:"caregiver_user_ids"`
	Notes            *string   `json:"notes"`
}

type patientResponse struct {
	ID               string    `json:"id"`
	OwnerUserID      string    `json:"owner_user_id"`
	Name             string    `json:"name"`
	Timezone         string    `json:"timezone"`
	CaregiverUserIDs []string  `json:"caregiver_user_ids"`
	Notes            string    `json:"notes"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// createPatientHandler godoc
// @Summary Crear paciente
// @Description Registra un paciente; el usuario autenticado queda como owner. Inicializa el estado de adherencia vacío.
// @Tags patients
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body createPatientRequest true "Datos del paciente"
// @Success 201 {object} patientResponse
// @Failure 400 {string} string "invalid json / timezone inválida"
// @Failure 401 {string} string "unauthorized"
// @Router /patients [post]
func createPatientHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req createPatientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		p, err := svc.Create(r.Context(), claims.UserID, CreateInput{
			ID:               req.ID,
			Name:             req.Name,
			Timezone:         req.Timezone,
			CaregiverUserIDs: req.CaregiverUserIDs,
			Notes:            req.Notes,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		writeJSON(w, http.StatusCreated, toPatientResponse(p))
	}
}

// listPatientsHandler godoc
// @Summary Listar mis pacientes
// @Tags patients
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Success 200 {array} patientResponse
// @Failure 401 {string} string "unauthorized"
// @Router /patients [get]
func listPatientsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListByOwner(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toPatientResponses(items))
	}
}

// listSharedPatientsHandler godoc
// @Summary Listar pacientes que cuido
// @Tags patients
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Success 200 {array} patientResponse
// @Failure 401 {string} string "unauthorized"
// @Router /me/patients [get]
func listSharedPatientsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListShared(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toPatientResponses(items))
	}
}

// getPatientHandler godoc
// @Summary Obtener paciente
// @Tags patients
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param patientID path string true "ID del paciente"
// @Success 200 {object} patientResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "patient not found"
// @Router /patients/{patientID} [get]
func getPatientHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		p, _, err := svc.Authorize(r.Context(), chi.URLParam(r, "patientID"), claims.UserID)
		if err != nil {
			writeAccessError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPatientResponse(p))
	}
}

// updatePatientHandler godoc
// @Summary Actualizar paciente
// @Description Solo el owner puede cambiar nombre, zona horaria o la lista de cuidadores.
// @Tags patients
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param patientID path string true "ID del paciente"
// @Param payload body updatePatientRequest true "Campos a modificar"
// @Success 200 {object} patientResponse
// @Failure 400 {string} string "invalid json / reglas de negocio"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "patient not found"
// @Router /patients/{patientID} [patch]
func updatePatientHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		patientID := chi.URLParam(r, "patientID")
		_, role, err := svc.Authorize(r.Context(), patientID, claims.UserID)
		if err != nil {
			writeAccessError(w, err)
			return
		}
		if role != RoleOwner {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		var req updatePatientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		p, err := svc.Update(r.Context(), patientID, UpdateInput{
			Name:             req.Name,
			Timezone:         req.Timezone,
			CaregiverUserIDs: req.CaregiverUserIDs,
			Notes:            req.Notes,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, toPatientResponse(p))
	}
}

func writeAccessError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	default:
		http.Error(w, "patient not found", http.StatusNotFound)
	}
}

func toPatientResponse(p Patient) patientResponse {
	cg := p.CaregiverUserIDs
	if cg == nil {
		cg = []string{}
	}
	return patientResponse{
		ID:               p.ID,
		OwnerUserID:      p.OwnerUserID,
		Name:             p.Name,
		Timezone:         p.Timezone,
		CaregiverUserIDs: cg,
		Notes:            p.Notes,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func toPatientResponses(items []Patient) []patientResponse {
	out := make([]patientResponse, 0, len(items))
	for _, p := range items {
		out = append(out, toPatientResponse(p))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
