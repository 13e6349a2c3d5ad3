package repository

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/architect3d/storage/internal/model"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db error: %v", err)
	}
	err = db.AutoMigrate(
		&model.GeneratedInstruction{},
		&model.GenerationRequest{},
		&model.UserFeedback{},
		&model.RefinementHistory{},
		&model.SystemStats{},
		&model.Instruction{},
		&model.Component{},
		&model.Modifier{},
		&model.Material{},
		&model.Style{},
		&model.InstructionStyle{},
		&model.SchemaVersion{},
		&model.InstructionMigration{},
	)
	if err != nil {
		t.Fatalf("migrate error: %v", err)
	}
	return db
}
