package model

import "time"

// SchemaVersion records one applied schema-evolution step. The highest
// version is the store's current schema version; no rows means an
// uninitialized (floor) schema.
type SchemaVersion struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Version   uint      `json:"version" gorm:"uniqueIndex;not null"`
	Name      string    `json:"name" gorm:"size:255"`
	AppliedAt time.Time `json:"applied_at" gorm:"autoCreateTime"`
}

// InstructionMigration maps a document-mode source row to the normalized
// Instruction it was migrated into. Its presence makes forward migration
// idempotent per source record.
type InstructionMigration struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	SourceID      uint      `json:"source_id" gorm:"uniqueIndex;not null"`
	InstructionID uint      `json:"instruction_id" gorm:"index;not null"`
	CreatedAt     time.Time `json:"created_at"`
}
