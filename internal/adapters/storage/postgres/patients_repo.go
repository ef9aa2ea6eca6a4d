package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"medication-adherence/internal/domain/patients"
)

type PatientsRepo struct {
	db *sql.DB
}

func NewPatientsRepo(db *sql.DB) *PatientsRepo {
	return &PatientsRepo{db: db}
}

const patientColumns = `
	id, owner_user_id,
	name, timezone,
	caregiver_user_ids, notes,
	created_at, updated_at
`

func (r *PatientsRepo) Create(ctx context.Context, p patients.Patient) error {
	caregivers, err := marshalIDs(p.CaregiverUserIDs)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO patients (`+patientColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		p.ID,
		p.OwnerUserID,
		p.Name,
		p.Timezone,
		caregivers,
		p.Notes,
		p.CreatedAt,
		p.UpdatedAt,
	)
	return err
}

func (r *PatientsRepo) Update(ctx context.Context, p patients.Patient) error {
	caregivers, err := marshalIDs(p.CaregiverUserIDs)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE patients
		SET
			name = $2,
			timezone = $3,
			caregiver_user_ids = $4,
			notes = $5,
			updated_at = $6
		WHERE id = $1
	`,
		p.ID,
		p.Name,
		p.Timezone,
		caregivers,
		p.Notes,
		p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PatientsRepo) GetByID(ctx context.Context, id string) (patients.Patient, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return patients.Patient{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id)
	p, err := scanPatient(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return patients.Patient{}, ErrNotFound
		}
		return patients.Patient{}, err
	}
	return p, nil
}

func (r *PatientsRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]patients.Patient, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return nil, nil
	}
	return r.list(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE owner_user_id = $1
		ORDER BY created_at ASC
	`, ownerUserID)
}

func (r *PatientsRepo) ListByCaregiver(ctx context.Context, caregiverUserID string) ([]patients.Patient, error) {
	caregiverUserID = strings.TrimSpace(caregiverUserID)
	if caregiverUserID == "" {
		return nil, nil
	}
	// jsonb ? text: el array contiene el id
	return r.list(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE caregiver_user_ids ? $1
		ORDER BY created_at ASC
	`, caregiverUserID)
}

func (r *PatientsRepo) list(ctx context.Context, query string, args ...any) ([]patients.Patient, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]patients.Patient, 0)
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPatient(s scanner) (patients.Patient, error) {
	var (
		p          patients.Patient
		caregivers []byte
	)
	if err := s.Scan(
		&p.ID,
		&p.OwnerUserID,
		&p.Name,
		&p.Timezone,
		&caregivers,
		&p.Notes,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return patients.Patient{}, err
	}
	if len(caregivers) > 0 {
		if err := json.Unmarshal(caregivers, &p.CaregiverUserIDs); err != nil {
			return patients.Patient{}, err
		}
	}
	return p, nil
}

func marshalIDs(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	return string(b), err
}
