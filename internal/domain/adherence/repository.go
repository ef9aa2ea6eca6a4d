package adherence

import "context"

// Store persiste un State por paciente.
//
// Update es un read-modify-write atómico: fn recibe una copia del estado
// vigente; si fn devuelve error no se escribe nada. Devuelve ErrNotFound si el
// paciente no existe. fn puede ejecutarse más de una vez (reintentos
// optimistas), así que no debe tener efectos fuera del State.
type Store interface {
	Create(ctx context.Context, st State) error
	Load(ctx context.Context, patientID string) (State, error)
	Update(ctx context.Context, patientID string, fn func(st *State) error) error
	ListPatients(ctx context.Context) ([]string, error)
}
