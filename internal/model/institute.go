package model

import (
	"time"

	"github.com/google/uuid"
)

// Institute is the tenant boundary. Every engine record carries an institute reference.
type Institute struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
