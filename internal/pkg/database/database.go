package database

import (
	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/architect3d/storage/internal/model"
)

// InitDB opens the configured database and creates the schema for both
// storage modes plus the migration bookkeeping tables.
func InitDB(dbType, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch dbType {
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		// pure-Go sqlite driver, no cgo
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&model.GeneratedInstruction{},
		&model.GenerationRequest{},
		&model.UserFeedback{},
		&model.RefinementHistory{},
		&model.SystemStats{},
	); err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&model.Instruction{},
		&model.Component{},
		&model.Modifier{},
		&model.Material{},
		&model.Style{},
		&model.InstructionStyle{},
	); err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.SchemaVersion{}, &model.InstructionMigration{}); err != nil {
		return nil, err
	}
	return db, nil
}
