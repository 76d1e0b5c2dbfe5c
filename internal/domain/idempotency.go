package domain

import "time"

// Idempotency records a completed compare request keyed by
// (client_id, key), so a retried request with the same Idempotency-Key is
// answered from the stored comparison instead of calling the generator again.
type Idempotency struct {
	ID            string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	ClientID      string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_client_key,priority:1"`
	Key           string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_client_key,priority:2"`
	ComparisonKey string    `gorm:"type:TEXT NOT NULL"`
	Status        int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt     time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt     time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
