// Package migrate converts data between the document-mode and
// normalized-mode schemas and manages versioned schema evolution within
// a mode. Migration runs assume a single maintenance actor; rows written
// concurrently are picked up by the next run, never lost.
package migrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"k8s.io/klog/v2"

	"github.com/architect3d/storage/internal/doctree"
	"github.com/architect3d/storage/internal/model"
	"github.com/architect3d/storage/internal/repository"
	"github.com/architect3d/storage/internal/storerr"
)

// Failure is one record the migrator could not convert.
type Failure struct {
	SourceID uint   `json:"source_id"`
	Reason   string `json:"reason"`
}

// Report summarizes one migration run. Failures never abort the run;
// the affected records are skipped and reported.
type Report struct {
	RunID    string    `json:"run_id"`
	Migrated int       `json:"migrated"`
	Skipped  int       `json:"skipped"`
	Failures []Failure `json:"failures,omitempty"`
}

type Migrator struct {
	db *gorm.DB
}

func NewMigrator(db *gorm.DB) *Migrator {
	return &Migrator{db: db}
}

// ToNormalized walks document-mode records in created_at ascending order
// and fans each out into an Instruction tree. Records already present in
// the instruction_migrations mapping are skipped, which makes re-runs
// idempotent. Each record converts in its own transaction together with
// its mapping row.
func (m *Migrator) ToNormalized(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.NewString()}
	source := repository.NewInstructionRepository(m.db)

	if err := m.pruneOrphanedMappings(ctx, "instruction_id", &model.Instruction{}); err != nil {
		return nil, err
	}
	records, err := source.ListAllAscending(ctx)
	if err != nil {
		return nil, err
	}
	klog.Infof("migration %s: %d document records to consider", report.RunID, len(records))

	for _, rec := range records {
		migrated, err := m.hasMapping(ctx, "source_id", rec.ID)
		if err != nil {
			return nil, err
		}
		if migrated {
			report.Skipped++
			continue
		}

		doc, err := doctree.Parse(rec.Instructions)
		if err != nil {
			report.Failures = append(report.Failures, Failure{SourceID: rec.ID, Reason: err.Error()})
			klog.Warningf("migration %s: record %d skipped: %v", report.RunID, rec.ID, err)
			continue
		}

		modelName, temperature, maxTokens := m.generationParams(ctx, &rec)
		err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			target := repository.NewNormalizedRepository(tx)
			hash := model.ModelParamsFingerprint(modelName, temperature, maxTokens)
			instr, err := target.CreateFromDocument(ctx, rec.Name, rec.InputPrompt, doc, rec.CreatedAt, modelName, hash)
			if err != nil {
				return err
			}
			return tx.Create(&model.InstructionMigration{
				SourceID:      rec.ID,
				InstructionID: instr.ID,
			}).Error
		})
		if err != nil {
			report.Failures = append(report.Failures, Failure{SourceID: rec.ID, Reason: err.Error()})
			klog.Warningf("migration %s: record %d skipped: %v", report.RunID, rec.ID, err)
			continue
		}
		report.Migrated++
	}

	klog.Infof("migration %s done: migrated=%d skipped=%d failed=%d",
		report.RunID, report.Migrated, report.Skipped, len(report.Failures))
	return report, nil
}

// ToDocument reconstructs a document-mode record for each normalized
// Instruction. The first linked style and the component material names are
// written back into their document fields; further styles have no document
// field and are dropped with a warning. The operation is lossy.
func (m *Migrator) ToDocument(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.NewString()}
	target := repository.NewNormalizedRepository(m.db)

	if err := m.pruneOrphanedMappings(ctx, "source_id", &model.GeneratedInstruction{}); err != nil {
		return nil, err
	}
	instrs, err := target.ListAllAscending(ctx)
	if err != nil {
		return nil, err
	}
	klog.Infof("reverse migration %s: %d instructions to consider", report.RunID, len(instrs))

	materials := map[uint]string{}
	for _, instr := range instrs {
		migrated, err := m.hasMapping(ctx, "instruction_id", instr.ID)
		if err != nil {
			return nil, err
		}
		if migrated {
			report.Skipped++
			continue
		}

		doc, err := m.buildDocument(ctx, target, &instr, materials, report.RunID)
		if err != nil {
			report.Failures = append(report.Failures, Failure{SourceID: instr.ID, Reason: err.Error()})
			klog.Warningf("reverse migration %s: instruction %d skipped: %v", report.RunID, instr.ID, err)
			continue
		}
		raw, err := doc.Build()
		if err != nil {
			report.Failures = append(report.Failures, Failure{SourceID: instr.ID, Reason: err.Error()})
			continue
		}

		err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			rec := model.GeneratedInstruction{
				Name:         instr.Name,
				InputPrompt:  instr.InputPrompt,
				Instructions: raw,
				CreatedAt:    instr.CreatedAt,
			}
			if err := tx.Create(&rec).Error; err != nil {
				return err
			}
			return tx.Create(&model.InstructionMigration{
				SourceID:      rec.ID,
				InstructionID: instr.ID,
			}).Error
		})
		if err != nil {
			report.Failures = append(report.Failures, Failure{SourceID: instr.ID, Reason: err.Error()})
			klog.Warningf("reverse migration %s: instruction %d skipped: %v", report.RunID, instr.ID, err)
			continue
		}
		report.Migrated++
	}

	klog.Infof("reverse migration %s done: migrated=%d skipped=%d failed=%d",
		report.RunID, report.Migrated, report.Skipped, len(report.Failures))
	return report, nil
}

// pruneOrphanedMappings drops mapping rows whose referenced side no
// longer exists, so deleted records can migrate again instead of being
// skipped against a dead mapping.
func (m *Migrator) pruneOrphanedMappings(ctx context.Context, column string, sideModel any) error {
	ids := m.db.Model(sideModel).Select("id")
	err := m.db.WithContext(ctx).
		Where(column+" NOT IN (?)", ids).
		Delete(&model.InstructionMigration{}).Error
	if err != nil {
		return storerr.FromDB(err)
	}
	return nil
}

func (m *Migrator) hasMapping(ctx context.Context, column string, id uint) (bool, error) {
	var mapping model.InstructionMigration
	err := m.db.WithContext(ctx).Where(column+" = ?", id).First(&mapping).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, storerr.FromDB(err)
}

func (m *Migrator) buildDocument(ctx context.Context, target repository.NormalizedRepository, instr *model.Instruction, materials map[uint]string, runID string) (*doctree.Document, error) {
	doc := &doctree.Document{}
	if len(instr.Styles) > 0 {
		doc.Style = instr.Styles[0].Name
		for _, extra := range instr.Styles[1:] {
			klog.Warningf("reverse migration %s: instruction %d: style %q has no document field, dropped",
				runID, instr.ID, extra.Name)
		}
	}
	for _, cmp := range instr.Components {
		out := doctree.Component{
			Name:     cmp.Name,
			Type:     cmp.Type,
			Position: [3]float64{cmp.PosX, cmp.PosY, cmp.PosZ},
			Scale:    [3]float64{cmp.ScaleX, cmp.ScaleY, cmp.ScaleZ},
			Rotation: [3]float64{cmp.RotX, cmp.RotY, cmp.RotZ},
		}
		if cmp.MaterialID != nil {
			name, ok := materials[*cmp.MaterialID]
			if !ok {
				mat, err := target.GetMaterial(ctx, *cmp.MaterialID)
				if err != nil {
					return nil, fmt.Errorf("material %d: %w", *cmp.MaterialID, err)
				}
				name = mat.Name
				materials[*cmp.MaterialID] = name
			}
			out.Material = name
		}
		doc.Components = append(doc.Components, out)
		for _, mod := range cmp.Modifiers {
			outMod := doctree.Modifier{Component: cmp.Name, Type: mod.Type}
			if len(mod.Params) > 0 {
				if err := json.Unmarshal(mod.Params, &outMod.Parameters); err != nil {
					return nil, fmt.Errorf("modifier %d params: %w", mod.ID, err)
				}
			}
			doc.Modifiers = append(doc.Modifiers, outMod)
		}
	}
	return doc, nil
}

// generationParams resolves the model parameters for a document record,
// preferring the linked generation request when there is one.
func (m *Migrator) generationParams(ctx context.Context, rec *model.GeneratedInstruction) (string, float64, int) {
	if rec.RequestID != nil {
		var req model.GenerationRequest
		if err := m.db.WithContext(ctx).First(&req, *rec.RequestID).Error; err == nil {
			return req.ModelName, req.Temperature, req.MaxTokens
		}
	}
	return "gemma:2b", 0.7, 2048
}
