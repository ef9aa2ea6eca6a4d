package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"medication-adherence/internal/domain/adherence"
)

// StateStore guarda el estado de adherencia serializado en JSON. Cada Load y
// cada Update trabajan sobre una copia independiente.
type StateStore struct {
	mu   sync.Mutex
	byID map[string][]byte
}

func NewStateStore() *StateStore {
	return &StateStore{byID: make(map[string][]byte)}
}

func (s *StateStore) Create(ctx context.Context, st adherence.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(st.PatientID) == "" {
		return adherence.ErrInvalidInput
	}
	if _, exists := s.byID[st.PatientID]; exists {
		return adherence.ErrAlreadyExists
	}
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	s.byID[st.PatientID] = b
	return nil
}

func (s *StateStore) Load(ctx context.Context, patientID string) (adherence.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(patientID)
}

func (s *StateStore) load(patientID string) (adherence.State, error) {
	b, ok := s.byID[patientID]
	if !ok {
		return adherence.State{}, adherence.ErrNotFound
	}
	var st adherence.State
	if err := json.Unmarshal(b, &st); err != nil {
		return adherence.State{}, err
	}
	return st, nil
}

// Update serializa los read-modify-write con el mutex; fn corre una sola vez.
func (s *StateStore) Update(ctx context.Context, patientID string, fn func(st *adherence.State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(patientID)
	if err != nil {
		return err
	}
	if err := fn(&st); err != nil {
		return err
	}
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	s.byID[patientID] = b
	return nil
}

func (s *StateStore) ListPatients(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.byID))
	for id := range s.byID {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
