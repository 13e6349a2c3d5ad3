package migrate

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"
	"k8s.io/klog/v2"

	"github.com/architect3d/storage/internal/model"
	"github.com/architect3d/storage/internal/storerr"
)

// Step is one schema-evolution change. Versions are assigned once and
// never reused; Down must undo exactly what Up did.
type Step struct {
	Version uint
	Name    string
	Up      func(tx *gorm.DB) error
	Down    func(tx *gorm.DB) error
}

// SchemaManager applies registered steps in version order and rolls them
// back one at a time in strict reverse order. Applied versions are
// recorded in the schema_versions table; no rows means the floor.
type SchemaManager struct {
	db    *gorm.DB
	steps []Step
}

func NewSchemaManager(db *gorm.DB, steps []Step) (*SchemaManager, error) {
	sorted := make([]Step, len(steps))
	copy(sorted, steps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Version == sorted[i-1].Version {
			return nil, fmt.Errorf("%w: duplicate step version %d", storerr.ErrSchemaVersion, sorted[i].Version)
		}
	}
	return &SchemaManager{db: db, steps: sorted}, nil
}

// CurrentVersion returns the highest applied version, 0 when none.
func (s *SchemaManager) CurrentVersion(ctx context.Context) (uint, error) {
	var top model.SchemaVersion
	err := s.db.WithContext(ctx).Order("version desc").First(&top).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, storerr.FromDB(err)
	}
	return top.Version, nil
}

// Apply runs every unapplied step in ascending version order. Already
// applied versions are no-ops. Returns the number of steps applied.
func (s *SchemaManager) Apply(ctx context.Context) (int, error) {
	var rows []model.SchemaVersion
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return 0, storerr.FromDB(err)
	}
	applied := map[uint]bool{}
	for _, row := range rows {
		applied[row.Version] = true
	}

	count := 0
	for _, step := range s.steps {
		if applied[step.Version] {
			continue
		}
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := step.Up(tx); err != nil {
				return err
			}
			return tx.Create(&model.SchemaVersion{Version: step.Version, Name: step.Name}).Error
		})
		if err != nil {
			return count, fmt.Errorf("apply schema version %d (%s): %w", step.Version, step.Name, storerr.FromDB(err))
		}
		klog.Infof("applied schema version %d: %s", step.Version, step.Name)
		count++
	}
	return count, nil
}

// Rollback undoes exactly the highest applied version. Rolling back past
// the lowest recorded version fails with ErrSchemaVersion.
func (s *SchemaManager) Rollback(ctx context.Context) (uint, error) {
	var top model.SchemaVersion
	err := s.db.WithContext(ctx).Order("version desc").First(&top).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("%w: no applied versions to roll back", storerr.ErrSchemaVersion)
	}
	if err != nil {
		return 0, storerr.FromDB(err)
	}

	var step *Step
	for i := range s.steps {
		if s.steps[i].Version == top.Version {
			step = &s.steps[i]
			break
		}
	}
	if step == nil {
		return 0, fmt.Errorf("%w: no registered step for applied version %d", storerr.ErrSchemaVersion, top.Version)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := step.Down(tx); err != nil {
			return err
		}
		return tx.Where("version = ?", step.Version).Delete(&model.SchemaVersion{}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("rollback schema version %d (%s): %w", step.Version, step.Name, storerr.FromDB(err))
	}
	klog.Infof("rolled back schema version %d: %s", step.Version, step.Name)
	return step.Version, nil
}

// DefaultSteps is the evolution history of the document-mode table beyond
// its initial shape. Up functions are guarded with HasColumn so applying
// against a database already auto-migrated to the full model is a no-op
// at the DDL level.
func DefaultSteps() []Step {
	return []Step{
		{
			Version: 1,
			Name:    "instruction favorites and tags",
			Up: func(tx *gorm.DB) error {
				for _, col := range []string{"is_favorite", "tags"} {
					if tx.Migrator().HasColumn(&model.GeneratedInstruction{}, col) {
						continue
					}
					if err := tx.Migrator().AddColumn(&model.GeneratedInstruction{}, col); err != nil {
						return err
					}
				}
				return nil
			},
			Down: func(tx *gorm.DB) error {
				for _, col := range []string{"tags", "is_favorite"} {
					if !tx.Migrator().HasColumn(&model.GeneratedInstruction{}, col) {
						continue
					}
					if err := tx.Migrator().DropColumn(&model.GeneratedInstruction{}, col); err != nil {
						return err
					}
				}
				return nil
			},
		},
		{
			Version: 2,
			Name:    "generation request link",
			Up: func(tx *gorm.DB) error {
				if tx.Migrator().HasColumn(&model.GeneratedInstruction{}, "request_id") {
					return nil
				}
				return tx.Migrator().AddColumn(&model.GeneratedInstruction{}, "request_id")
			},
			Down: func(tx *gorm.DB) error {
				if !tx.Migrator().HasColumn(&model.GeneratedInstruction{}, "request_id") {
					return nil
				}
				return tx.Migrator().DropColumn(&model.GeneratedInstruction{}, "request_id")
			},
		},
	}
}
