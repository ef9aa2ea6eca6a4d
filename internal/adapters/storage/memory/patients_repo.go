package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"medication-adherence/internal/domain/patients"
)

var (
	ErrNotFound = errors.New("not found")
)

type patientRepo struct {
	mu   sync.RWMutex
	byID map[string]patients.Patient
}

func NewPatientRepo() patients.Repository {
	return &patientRepo{
		byID: make(map[string]patients.Patient),
	}
}

func (r *patientRepo) Create(ctx context.Context, p patients.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(p.ID) == "" {
		return errors.New("patient id required")
	}
	if _, exists := r.byID[p.ID]; exists {
		return errors.New("patient already exists")
	}
	r.byID[p.ID] = clonePatient(p)
	return nil
}

func (r *patientRepo) Update(ctx context.Context, p patients.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[p.ID]; !exists {
		return ErrNotFound
	}
	r.byID[p.ID] = clonePatient(p)
	return nil
}

func (r *patientRepo) GetByID(ctx context.Context, id string) (patients.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return patients.Patient{}, ErrNotFound
	}
	return clonePatient(p), nil
}

func (r *patientRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]patients.Patient, error) {
	return r.list(func(p patients.Patient) bool { return p.OwnerUserID == ownerUserID }), nil
}

func (r *patientRepo) ListByCaregiver(ctx context.Context, caregiverUserID string) ([]patients.Patient, error) {
	return r.list(func(p patients.Patient) bool { return p.IsCaregiver(caregiverUserID) }), nil
}

func (r *patientRepo) list(match func(patients.Patient) bool) []patients.Patient {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]patients.Patient, 0)
	for _, p := range r.byID {
		if match(p) {
			out = append(out, clonePatient(p))
		}
	}

	// Orden estable por created_at asc
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func clonePatient(p patients.Patient) patients.Patient {
	p.CaregiverUserIDs = append([]string(nil), p.CaregiverUserIDs...)
	return p
}
