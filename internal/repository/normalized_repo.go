package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/architect3d/storage/internal/doctree"
	"github.com/architect3d/storage/internal/model"
	"github.com/architect3d/storage/internal/storerr"
)

type normalizedRepository struct {
	db *gorm.DB
}

func NewNormalizedRepository(db *gorm.DB) NormalizedRepository {
	return &normalizedRepository{db: db}
}

// CreateInstruction persists the instruction, its components with nested
// modifiers, and its style links in one transaction. Material and style
// references are verified inside the same transaction; a dangling one
// fails the whole write with ErrReferential.
func (r *normalizedRepository) CreateInstruction(ctx context.Context, instr *model.Instruction, components []ComponentSpec, styleIDs []uint) error {
	if strings.TrimSpace(instr.InputPrompt) == "" {
		return fmt.Errorf("%w: input_prompt is required", storerr.ErrValidation)
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(instr).Error; err != nil {
			return err
		}
		for i := range components {
			spec := components[i]
			if strings.TrimSpace(spec.Type) == "" {
				return fmt.Errorf("%w: component type is required", storerr.ErrValidation)
			}
			if spec.MaterialID != nil {
				var mat model.Material
				if err := tx.First(&mat, *spec.MaterialID).Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return fmt.Errorf("%w: material %d does not exist", storerr.ErrReferential, *spec.MaterialID)
					}
					return err
				}
			}
			cmp := newComponent(instr.ID, &spec)
			if err := tx.Create(&cmp).Error; err != nil {
				return err
			}
			for j := range spec.Modifiers {
				mod := spec.Modifiers[j]
				if strings.TrimSpace(mod.Type) == "" {
					return fmt.Errorf("%w: modifier type is required", storerr.ErrValidation)
				}
				mod.ComponentID = cmp.ID
				if err := tx.Create(&mod).Error; err != nil {
					return err
				}
				cmp.Modifiers = append(cmp.Modifiers, mod)
			}
			instr.Components = append(instr.Components, cmp)
		}
		for _, styleID := range styleIDs {
			var style model.Style
			if err := tx.First(&style, styleID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: style %d does not exist", storerr.ErrReferential, styleID)
				}
				return err
			}
			link := model.InstructionStyle{InstructionID: instr.ID, StyleID: styleID}
			if err := tx.Create(&link).Error; err != nil {
				return err
			}
			instr.Styles = append(instr.Styles, style)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, storerr.ErrValidation) || errors.Is(err, storerr.ErrReferential) {
			return err
		}
		return storerr.FromDB(err)
	}
	return nil
}

// CreateFromDocument converts a parsed document tree into a normalized
// instruction: material and style names are materialized through the
// upserts, modifiers are attached to their components by name.
func (r *normalizedRepository) CreateFromDocument(ctx context.Context, name, inputPrompt string, doc *doctree.Document, createdAt time.Time, modelName, paramsHash string) (*model.Instruction, error) {
	components := make([]ComponentSpec, 0, len(doc.Components))
	byName := map[string]int{}
	for i, src := range doc.Components {
		pos := Triple(src.Position)
		scale := Triple(src.Scale)
		rot := Triple(src.Rotation)
		spec := ComponentSpec{
			Name:     src.Name,
			Type:     src.Type,
			Position: &pos,
			Scale:    &scale,
			Rotation: &rot,
		}
		if src.Material != "" {
			mat, err := r.EnsureMaterial(ctx, src.Material, "")
			if err != nil {
				return nil, err
			}
			spec.MaterialID = &mat.ID
		}
		byName[src.Name] = i
		components = append(components, spec)
	}
	for _, src := range doc.Modifiers {
		idx, ok := byName[src.Component]
		if !ok {
			return nil, fmt.Errorf("%w: modifier references unknown component %q", storerr.ErrReferential, src.Component)
		}
		params, err := marshalParams(src.Parameters)
		if err != nil {
			return nil, err
		}
		components[idx].Modifiers = append(components[idx].Modifiers, model.Modifier{
			Type:   src.Type,
			Params: params,
		})
	}

	var styleIDs []uint
	if doc.Style != "" {
		style, err := r.EnsureStyle(ctx, doc.Style)
		if err != nil {
			return nil, err
		}
		styleIDs = append(styleIDs, style.ID)
	}

	instr := &model.Instruction{
		Name:            name,
		InputPrompt:     inputPrompt,
		ModelName:       modelName,
		ModelParamsHash: paramsHash,
		CreatedAt:       createdAt,
	}
	if err := r.CreateInstruction(ctx, instr, components, styleIDs); err != nil {
		return nil, err
	}
	return instr, nil
}

func (r *normalizedRepository) GetInstruction(ctx context.Context, id uint) (*model.Instruction, error) {
	var instr model.Instruction
	err := r.db.WithContext(ctx).
		Preload("Components.Modifiers").
		Preload("Styles").
		First(&instr, id).Error
	if err != nil {
		return nil, storerr.FromDB(err)
	}
	return &instr, nil
}

// DeleteInstruction removes the instruction with its components, their
// modifiers and its style links. Shared materials and styles stay.
func (r *normalizedRepository) DeleteInstruction(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var instr model.Instruction
		if err := tx.First(&instr, id).Error; err != nil {
			return err
		}
		var componentIDs []uint
		if err := tx.Model(&model.Component{}).
			Where("instruction_id = ?", id).
			Pluck("id", &componentIDs).Error; err != nil {
			return err
		}
		if len(componentIDs) > 0 {
			if err := tx.Where("component_id IN ?", componentIDs).Delete(&model.Modifier{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("instruction_id = ?", id).Delete(&model.Component{}).Error; err != nil {
			return err
		}
		if err := tx.Where("instruction_id = ?", id).Delete(&model.InstructionStyle{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Instruction{}, id).Error
	})
	return storerr.FromDB(err)
}

// EnsureMaterial upserts by unique name and returns the existing row when
// the name is already present; the stored category is not overwritten.
func (r *normalizedRepository) EnsureMaterial(ctx context.Context, name, category string) (*model.Material, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: material name is required", storerr.ErrValidation)
	}
	mat := model.Material{Name: name, Category: category}
	err := r.db.WithContext(ctx).Where("name = ?", name).FirstOrCreate(&mat).Error
	if err != nil {
		// lost the insert race: the row exists now, fetch it.
		if errors.Is(storerr.FromDB(err), storerr.ErrUniqueness) {
			err = r.db.WithContext(ctx).Where("name = ?", name).First(&mat).Error
		}
		if err != nil {
			return nil, storerr.FromDB(err)
		}
	}
	return &mat, nil
}

// EnsureStyle upserts by unique name, idempotent like EnsureMaterial.
func (r *normalizedRepository) EnsureStyle(ctx context.Context, name string) (*model.Style, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: style name is required", storerr.ErrValidation)
	}
	style := model.Style{Name: name}
	err := r.db.WithContext(ctx).Where("name = ?", name).FirstOrCreate(&style).Error
	if err != nil {
		if errors.Is(storerr.FromDB(err), storerr.ErrUniqueness) {
			err = r.db.WithContext(ctx).Where("name = ?", name).First(&style).Error
		}
		if err != nil {
			return nil, storerr.FromDB(err)
		}
	}
	return &style, nil
}

func (r *normalizedRepository) GetMaterial(ctx context.Context, id uint) (*model.Material, error) {
	var mat model.Material
	if err := r.db.WithContext(ctx).First(&mat, id).Error; err != nil {
		return nil, storerr.FromDB(err)
	}
	return &mat, nil
}

func (r *normalizedRepository) ListRecent(ctx context.Context, limit int) ([]model.Instruction, error) {
	var instrs []model.Instruction
	tx := r.db.WithContext(ctx).Order("created_at desc, id desc")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&instrs).Error; err != nil {
		return nil, storerr.FromDB(err)
	}
	return instrs, nil
}

func (r *normalizedRepository) ListAllAscending(ctx context.Context) ([]model.Instruction, error) {
	var instrs []model.Instruction
	err := r.db.WithContext(ctx).
		Preload("Components.Modifiers").
		Preload("Styles").
		Order("created_at asc, id asc").
		Find(&instrs).Error
	if err != nil {
		return nil, storerr.FromDB(err)
	}
	return instrs, nil
}

// SearchByName mirrors the document-mode search semantics: case folding
// happens in Go since sqlite's LOWER only folds ASCII.
func (r *normalizedRepository) SearchByName(ctx context.Context, pattern string) ([]model.Instruction, error) {
	var instrs []model.Instruction
	err := r.db.WithContext(ctx).
		Where("name <> ''").
		Order("created_at desc, id desc").
		Find(&instrs).Error
	if err != nil {
		return nil, storerr.FromDB(err)
	}
	needle := strings.ToLower(pattern)
	matched := make([]model.Instruction, 0)
	for _, instr := range instrs {
		if strings.Contains(strings.ToLower(instr.Name), needle) {
			matched = append(matched, instr)
		}
	}
	return matched, nil
}

func (r *normalizedRepository) CountByDay(ctx context.Context) ([]DayCount, error) {
	return countByDay(r.db.WithContext(ctx).Model(&model.Instruction{}))
}

func marshalParams(params map[string]any) (datatypes.JSON, error) {
	if len(params) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("%w: modifier parameters: %v", storerr.ErrValidation, err)
	}
	return datatypes.JSON(raw), nil
}

// newComponent materializes a spec into a row, filling unsupplied
// transform triples with their defaults. Supplied triples pass through
// untouched, so an explicit zero scale survives the write.
func newComponent(instructionID uint, spec *ComponentSpec) model.Component {
	pos := tripleOr(spec.Position, Triple{0, 0, 0})
	scale := tripleOr(spec.Scale, Triple{1, 1, 1})
	rot := tripleOr(spec.Rotation, Triple{0, 0, 0})
	return model.Component{
		InstructionID: instructionID,
		Name:          spec.Name,
		Type:          spec.Type,
		MaterialID:    spec.MaterialID,
		PosX:          pos[0],
		PosY:          pos[1],
		PosZ:          pos[2],
		ScaleX:        scale[0],
		ScaleY:        scale[1],
		ScaleZ:        scale[2],
		RotX:          rot[0],
		RotY:          rot[1],
		RotZ:          rot[2],
	}
}

func tripleOr(t *Triple, def Triple) Triple {
	if t == nil {
		return def
	}
	return *t
}
