package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"medication-adherence/internal/domain/adherence"
)

// StateStore guarda el estado de adherencia como JSONB, una fila por paciente.
// Update toma la fila con SELECT ... FOR UPDATE dentro de una transacción.
type StateStore struct {
	db *sql.DB
}

func NewStateStore(db *sql.DB) *StateStore {
	return &StateStore{db: db}
}

func (s *StateStore) Create(ctx context.Context, st adherence.State) error {
	if strings.TrimSpace(st.PatientID) == "" {
		return adherence.ErrInvalidInput
	}
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO patient_states (patient_id, version, state, updated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (patient_id) DO NOTHING
	`, st.PatientID, st.Version, string(b), st.UpdatedAt)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return adherence.ErrAlreadyExists
	}
	return nil
}

func (s *StateStore) Load(ctx context.Context, patientID string) (adherence.State, error) {
	row := s.db.QueryRowContext(ctx, `SELECT state FROM patient_states WHERE patient_id = $1`, patientID)
	return scanState(row)
}

func (s *StateStore) Update(ctx context.Context, patientID string, fn func(st *adherence.State) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT state FROM patient_states WHERE patient_id = $1 FOR UPDATE`, patientID)
	st, err := scanState(row)
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
	if _, err := tx.ExecContext(ctx, `
		UPDATE patient_states
		SET version = $2, state = $3, updated_at = $4
		WHERE patient_id = $1
	`, patientID, st.Version, string(b), st.UpdatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *StateStore) ListPatients(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT patient_id FROM patient_states ORDER BY patient_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func scanState(row *sql.Row) (adherence.State, error) {
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return adherence.State{}, adherence.ErrNotFound
		}
		return adherence.State{}, err
	}
	var st adherence.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return adherence.State{}, err
	}
	return st, nil
}
