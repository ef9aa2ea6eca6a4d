package patients

import "time"

// Patient es el perfil mínimo que necesita el engine: dueño, zona horaria y
// cuidadores que reciben escalamientos.
type Patient struct {
	ID          string
	OwnerUserID string

	Name     string
	Timezone string // IANA, p.ej. "Asia/Kolkata"

	CaregiverUserIDs []string

	Notes string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Location resuelve Timezone; si es inválida cae a UTC.
func (p Patient) Location() *time.Location {
	if loc, err := time.LoadLocation(p.Timezone); err == nil {
		return loc
	}
	return time.UTC
}

func (p Patient) IsCaregiver(userID string) bool {
	for _, id := range p.CaregiverUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Role del usuario respecto del paciente.
type Role string

const (
	RoleOwner     Role = "owner"
	RoleCaregiver Role = "caregiver"
)
