package auth

import "time"

// Claims: identidad del usuario autenticado. El rol (paciente o cuidador)
// no viaja en el token; se deriva del paciente consultado.
type Claims struct {
	UserID    string
	Email     string
	Name      string
	ExpiresAt time.Time
}
