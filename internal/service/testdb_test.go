package service

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/architect3d/storage/config"
	"github.com/architect3d/storage/internal/model"
	"github.com/architect3d/storage/internal/repository"
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

func newTestStore(t *testing.T, db *gorm.DB, mode config.StoreMode) *Store {
	t.Helper()
	cfg := &config.Config{
		Store: config.StoreConfig{Mode: mode},
		Generation: config.GenerationConfig{
			ModelName:   "gemma:2b",
			Temperature: 0.7,
			MaxTokens:   2048,
		},
	}
	return NewStore(cfg, repository.NewInstructionRepository(db), repository.NewNormalizedRepository(db))
}
