// Package persistence archives emitted alerts for later inspection. The
// archive is optional and never gating: a write failure is logged and the
// notification proceeds.
package persistence

import (
	"context"
	"time"
)

// AlertRecord is one emitted notification line item.
type AlertRecord struct {
	ID         int64     `json:"id" db:"id"`
	Timestamp  time.Time `json:"ts" db:"ts"`
	Symbol     string    `json:"symbol" db:"symbol"`
	InstID     string    `json:"inst" db:"inst"`
	Mode       string    `json:"mode" db:"mode"`
	Bias       string    `json:"bias" db:"bias"`
	ExecReason string    `json:"exec_reason" db:"exec_reason"`
	Grade      string    `json:"grade" db:"grade"`
	Price      float64   `json:"price" db:"price"`
	Hi1h       float64   `json:"hi_1h" db:"hi_1h"`
	Lo1h       float64   `json:"lo_1h" db:"lo_1h"`
	Forced     bool      `json:"forced" db:"forced"`
	Message    string    `json:"message" db:"message"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// AlertsRepo stores emitted alerts.
type AlertsRepo interface {
	Insert(ctx context.Context, rec AlertRecord) error

	// Recent returns the newest alerts, most recent first.
	Recent(ctx context.Context, limit int) ([]AlertRecord, error)
}
