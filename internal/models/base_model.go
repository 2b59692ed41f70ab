package models

import (
	"time"
)

// BaseModel provides shared fields for all persistent models. Identifiers are
// database assigned sequences so clients can address rows with small integers.
type BaseModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
