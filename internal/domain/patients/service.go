package patients

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("patient not found")
	ErrForbidden    = errors.New("forbidden")
)

// Hook corre después de persistir un paciente (p.ej. sincronizar estado del engine).
type Hook func(ctx context.Context, p Patient) error

type Service struct {
	repo     Repository
	now      func() time.Time
	onCreate []Hook
	onUpdate []Hook
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

func (s *Service) OnCreate(h Hook) {
	s.onCreate = append(s.onCreate, h)
}

func (s *Service) OnUpdate(h Hook) {
	s.onUpdate = append(s.onUpdate, h)
}

type CreateInput struct {
	ID               string // opcional; si viene vacío se genera
	Name             string
	Timezone         string
	CaregiverUserIDs []string
	Notes            string
}

func (s *Service) Create(ctx context.Context, ownerUserID string, in CreateInput) (Patient, error) {
	if strings.TrimSpace(ownerUserID) == "" {
		return Patient{}, ErrInvalidInput
	}
	if strings.TrimSpace(in.Name) == "" {
		return Patient{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	tz, err := normalizeTimezone(in.Timezone)
	if err != nil {
		return Patient{}, err
	}

	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	}

	now := s.now()
	p := Patient{
		ID:               id,
		OwnerUserID:      ownerUserID,
		Name:             strings.TrimSpace(in.Name),
		Timezone:         tz,
		CaregiverUserIDs: cleanIDs(in.CaregiverUserIDs, ownerUserID),
		Notes:            strings.TrimSpace(in.Notes),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return Patient{}, err
	}
	for _, h := range s.onCreate {
		if err := h(ctx, p); err != nil {
			return Patient{}, err
		}
	}
	return p, nil
}

type UpdateInput struct {
	Name             *string
	Timezone         *string
	CaregiverUserIDs *[]string
	Notes            *string
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Patient, error) {
	p, err := s.GetByID(ctx, id)
	if err != nil {
		return Patient{}, err
	}

	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return Patient{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
		}
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Timezone != nil {
		tz, err := normalizeTimezone(*in.Timezone)
		if err != nil {
			return Patient{}, err
		}
		p.Timezone = tz
	}
	if in.CaregiverUserIDs != nil {
		p.CaregiverUserIDs = cleanIDs(*in.CaregiverUserIDs, p.OwnerUserID)
	}
	if in.Notes != nil {
		p.Notes = strings.TrimSpace(*in.Notes)
	}
	p.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, p); err != nil {
		return Patient{}, err
	}
	for _, h := range s.onUpdate {
		if err := h(ctx, p); err != nil {
			return Patient{}, err
		}
	}
	return p, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Patient, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Patient{}, ErrInvalidInput
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Patient{}, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return p, nil
}

func (s *Service) ListByOwner(ctx context.Context, ownerUserID string) ([]Patient, error) {
	return s.repo.ListByOwner(ctx, ownerUserID)
}

// ListShared: pacientes donde el usuario figura como cuidador.
func (s *Service) ListShared(ctx context.Context, userID string) ([]Patient, error) {
	return s.repo.ListByCaregiver(ctx, userID)
}

// Authorize resuelve el rol del usuario sobre el paciente.
func (s *Service) Authorize(ctx context.Context, patientID, userID string) (Patient, Role, error) {
	p, err := s.GetByID(ctx, patientID)
	if err != nil {
		return Patient{}, "", err
	}
	switch {
	case p.OwnerUserID == userID:
		return p, RoleOwner, nil
	case p.IsCaregiver(userID):
		return p, RoleCaregiver, nil
	default:
		return Patient{}, "", ErrForbidden
	}
}

func normalizeTimezone(tz string) (string, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return "UTC", nil
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return "", fmt.Errorf("%w: unknown timezone %q", ErrInvalidInput, tz)
	}
	return tz, nil
}

func cleanIDs(ids []string, owner string) []string {
	out := make([]string, 0, len(ids))
	seen := map[string]bool{}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || id == owner || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
