package inventory

import (
	"errors"
	"time"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
)

// DefaultCoverageDays: umbral por defecto = 3 días de consumo.
const DefaultCoverageDays = 3

type Status string

const (
	OutOfStock  Status = "out_of_stock"
	LowStock    Status = "low_stock"
	Adequate    Status = "adequate"
	WellStocked Status = "well_stocked"
)

type Record struct {
	Medication        string     `json:"medication"`
	Remaining         int        `json:"remaining"`
	LowStockThreshold int        `json:"low_stock_threshold"`
	PredictedRunOut   *time.Time `json:"predicted_run_out,omitempty"`
	LastRestockedAt   *time.Time `json:"last_restocked_at,omitempty"`

	// Día local (YYYY-MM-DD) del último aviso de stock bajo.
	LastLowStockDay string `json:"last_low_stock_day,omitempty"`
	// Nivel avisado ese día; pasar de low_stock a out_of_stock vuelve a avisar.
	LastLowStockStatus Status `json:"last_low_stock_status,omitempty"`
	// ReorderAlertID: alerta de stock levantada fuera del tick cuya sugerencia
	// de reposición todavía no salió.
	ReorderAlertID string    `json:"reorder_alert_id,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Movement es una entrada del historial de stock.
type Movement struct {
	Medication string    `json:"medication"`
	Delta      int       `json:"delta"`
	Remaining  int       `json:"remaining"`
	Reason     string    `json:"reason"`
	At         time.Time `json:"at"`
}
