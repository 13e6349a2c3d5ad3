package repository

import (
	"context"
	"errors"
	"testing"

	"gorm.io/datatypes"

	"github.com/architect3d/storage/internal/model"
	"github.com/architect3d/storage/internal/storerr"
)

func TestEnsureMaterialIdempotent(t *testing.T) {
	db := openTestDB(t)
	repo := NewNormalizedRepository(db)
	ctx := context.Background()

	first, err := repo.EnsureMaterial(ctx, "бетон", "construction")
	if err != nil {
		t.Fatalf("EnsureMaterial error: %v", err)
	}
	second, err := repo.EnsureMaterial(ctx, "бетон", "other")
	if err != nil {
		t.Fatalf("EnsureMaterial error: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same identity, got %d and %d", first.ID, second.ID)
	}
	if second.Category != "construction" {
		t.Fatalf("existing category overwritten: %s", second.Category)
	}

	var count int64
	if err := db.Model(&model.Material{}).Count(&count).Error; err != nil {
		t.Fatalf("count error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 material row, got %d", count)
	}

	if _, err := repo.EnsureMaterial(ctx, "", ""); !errors.Is(err, storerr.ErrValidation) {
		t.Fatalf("expected validation error for empty name, got %v", err)
	}
}

func TestEnsureStyleIdempotent(t *testing.T) {
	db := openTestDB(t)
	repo := NewNormalizedRepository(db)
	ctx := context.Background()

	first, err := repo.EnsureStyle(ctx, "модерн")
	if err != nil {
		t.Fatalf("EnsureStyle error: %v", err)
	}
	second, err := repo.EnsureStyle(ctx, "модерн")
	if err != nil {
		t.Fatalf("EnsureStyle error: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same identity, got %d and %d", first.ID, second.ID)
	}
}

func TestCreateInstructionAtomic(t *testing.T) {
	db := openTestDB(t)
	repo := NewNormalizedRepository(db)
	ctx := context.Background()

	missing := uint(9999)
	instr := &model.Instruction{Name: "дом", InputPrompt: "современный дом"}
	components := []ComponentSpec{
		{Name: "base", Type: "cube"},
		{Name: "wall", Type: "cube", MaterialID: &missing},
	}
	err := repo.CreateInstruction(ctx, instr, components, nil)
	if !errors.Is(err, storerr.ErrReferential) {
		t.Fatalf("expected referential error, got %v", err)
	}

	// nothing from the failed write may be visible
	var instrCount, cmpCount int64
	db.Model(&model.Instruction{}).Count(&instrCount)
	db.Model(&model.Component{}).Count(&cmpCount)
	if instrCount != 0 || cmpCount != 0 {
		t.Fatalf("partial write leaked: instructions=%d components=%d", instrCount, cmpCount)
	}

	err = repo.CreateInstruction(ctx, &model.Instruction{Name: "дом", InputPrompt: "дом"}, nil, []uint{777})
	if !errors.Is(err, storerr.ErrReferential) {
		t.Fatalf("expected referential error for missing style, got %v", err)
	}

	err = repo.CreateInstruction(ctx, &model.Instruction{Name: "дом"}, nil, nil)
	if !errors.Is(err, storerr.ErrValidation) {
		t.Fatalf("expected validation error for empty prompt, got %v", err)
	}
}

func TestCreateInstructionDefaultsAndModifiers(t *testing.T) {
	db := openTestDB(t)
	repo := NewNormalizedRepository(db)
	ctx := context.Background()

	mat, err := repo.EnsureMaterial(ctx, "стекло", "")
	if err != nil {
		t.Fatalf("EnsureMaterial error: %v", err)
	}
	style, err := repo.EnsureStyle(ctx, "хай-тек")
	if err != nil {
		t.Fatalf("EnsureStyle error: %v", err)
	}

	instr := &model.Instruction{Name: "башня", InputPrompt: "стеклянная башня"}
	components := []ComponentSpec{
		{
			Name:       "core",
			Type:       "cylinder",
			MaterialID: &mat.ID,
			Modifiers: []model.Modifier{
				{Type: "array", Params: datatypes.JSON(`{"count":12}`)},
			},
		},
	}
	if err := repo.CreateInstruction(ctx, instr, components, []uint{style.ID}); err != nil {
		t.Fatalf("CreateInstruction error: %v", err)
	}

	got, err := repo.GetInstruction(ctx, instr.ID)
	if err != nil {
		t.Fatalf("GetInstruction error: %v", err)
	}
	if len(got.Components) != 1 {
		t.Fatalf("expected 1 component, got %d", len(got.Components))
	}
	cmp := got.Components[0]
	if cmp.ScaleX != 1 || cmp.ScaleY != 1 || cmp.ScaleZ != 1 {
		t.Fatalf("unsupplied scale not defaulted: %v %v %v", cmp.ScaleX, cmp.ScaleY, cmp.ScaleZ)
	}
	if cmp.PosX != 0 || cmp.RotZ != 0 {
		t.Fatalf("unexpected transform defaults: %+v", cmp)
	}
	if len(cmp.Modifiers) != 1 || cmp.Modifiers[0].Type != "array" {
		t.Fatalf("unexpected modifiers: %+v", cmp.Modifiers)
	}
	if len(got.Styles) != 1 || got.Styles[0].Name != "хай-тек" {
		t.Fatalf("unexpected styles: %+v", got.Styles)
	}
}

func TestCreateInstructionSuppliedTransformsStoredExactly(t *testing.T) {
	db := openTestDB(t)
	repo := NewNormalizedRepository(db)
	ctx := context.Background()

	instr := &model.Instruction{Name: "плоскость", InputPrompt: "плоская заготовка"}
	components := []ComponentSpec{
		{
			Name:     "sheet",
			Type:     "plane",
			Position: &Triple{1, 2, 3},
			Scale:    &Triple{0, 0, 0},
			Rotation: &Triple{0, 90, 0},
		},
	}
	if err := repo.CreateInstruction(ctx, instr, components, nil); err != nil {
		t.Fatalf("CreateInstruction error: %v", err)
	}

	got, err := repo.GetInstruction(ctx, instr.ID)
	if err != nil {
		t.Fatalf("GetInstruction error: %v", err)
	}
	cmp := got.Components[0]
	if cmp.ScaleX != 0 || cmp.ScaleY != 0 || cmp.ScaleZ != 0 {
		t.Fatalf("supplied zero scale rewritten: %v %v %v", cmp.ScaleX, cmp.ScaleY, cmp.ScaleZ)
	}
	if cmp.PosX != 1 || cmp.PosY != 2 || cmp.PosZ != 3 {
		t.Fatalf("supplied position altered: %+v", cmp)
	}
	if cmp.RotY != 90 {
		t.Fatalf("supplied rotation altered: %+v", cmp)
	}
}

func TestDeleteInstructionCascade(t *testing.T) {
	db := openTestDB(t)
	repo := NewNormalizedRepository(db)
	ctx := context.Background()

	mat, err := repo.EnsureMaterial(ctx, "кирпич", "")
	if err != nil {
		t.Fatalf("EnsureMaterial error: %v", err)
	}
	style, err := repo.EnsureStyle(ctx, "классика")
	if err != nil {
		t.Fatalf("EnsureStyle error: %v", err)
	}

	build := func(name string) *model.Instruction {
		instr := &model.Instruction{Name: name, InputPrompt: name}
		components := []ComponentSpec{
			{
				Name:       "base",
				Type:       "cube",
				MaterialID: &mat.ID,
				Modifiers:  []model.Modifier{{Type: "bevel"}},
			},
		}
		if err := repo.CreateInstruction(ctx, instr, components, []uint{style.ID}); err != nil {
			t.Fatalf("CreateInstruction error: %v", err)
		}
		return instr
	}

	first := build("дом 1")
	second := build("дом 2")

	if err := repo.DeleteInstruction(ctx, first.ID); err != nil {
		t.Fatalf("DeleteInstruction error: %v", err)
	}

	var cmpCount, modCount, linkCount int64
	db.Model(&model.Component{}).Where("instruction_id = ?", first.ID).Count(&cmpCount)
	db.Model(&model.InstructionStyle{}).Where("instruction_id = ?", first.ID).Count(&linkCount)
	db.Model(&model.Modifier{}).Count(&modCount)
	if cmpCount != 0 || linkCount != 0 {
		t.Fatalf("cascade incomplete: components=%d links=%d", cmpCount, linkCount)
	}
	if modCount != 1 {
		t.Fatalf("expected the surviving instruction's modifier only, got %d", modCount)
	}

	// shared material and style must survive
	if _, err := repo.GetMaterial(ctx, mat.ID); err != nil {
		t.Fatalf("shared material deleted: %v", err)
	}
	var styleCount int64
	db.Model(&model.Style{}).Count(&styleCount)
	if styleCount != 1 {
		t.Fatalf("shared style deleted")
	}

	got, err := repo.GetInstruction(ctx, second.ID)
	if err != nil {
		t.Fatalf("surviving instruction unreadable: %v", err)
	}
	if len(got.Components) != 1 || got.Components[0].MaterialID == nil {
		t.Fatalf("surviving instruction damaged: %+v", got.Components)
	}

	if err := repo.DeleteInstruction(ctx, 12345); !errors.Is(err, storerr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNormalizedSearchByName(t *testing.T) {
	db := openTestDB(t)
	repo := NewNormalizedRepository(db)
	ctx := context.Background()

	for _, name := range []string{"Современный дом", "Гараж", "дом в лесу"} {
		instr := &model.Instruction{Name: name, InputPrompt: "запрос"}
		if err := repo.CreateInstruction(ctx, instr, nil, nil); err != nil {
			t.Fatalf("CreateInstruction error: %v", err)
		}
	}

	found, err := repo.SearchByName(ctx, "дом")
	if err != nil {
		t.Fatalf("SearchByName error: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(found))
	}
}
