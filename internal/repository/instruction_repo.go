package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/architect3d/storage/internal/model"
	"github.com/architect3d/storage/internal/storerr"
)

type instructionRepository struct {
	db *gorm.DB
}

func NewInstructionRepository(db *gorm.DB) InstructionRepository {
	return &instructionRepository{db: db}
}

func (r *instructionRepository) Insert(ctx context.Context, name, inputPrompt string, instructions datatypes.JSON) (*model.GeneratedInstruction, error) {
	if strings.TrimSpace(inputPrompt) == "" {
		return nil, fmt.Errorf("%w: input_prompt is required", storerr.ErrValidation)
	}
	if emptyJSON(instructions) {
		return nil, fmt.Errorf("%w: instructions payload is required", storerr.ErrValidation)
	}
	rec := &model.GeneratedInstruction{
		Name:         name,
		InputPrompt:  inputPrompt,
		Instructions: instructions,
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, storerr.FromDB(err)
	}
	return rec, nil
}

func (r *instructionRepository) Get(ctx context.Context, id uint) (*model.GeneratedInstruction, error) {
	var rec model.GeneratedInstruction
	if err := r.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, storerr.FromDB(err)
	}
	return &rec, nil
}

func (r *instructionRepository) ListRecent(ctx context.Context, limit int) ([]model.GeneratedInstruction, error) {
	var recs []model.GeneratedInstruction
	tx := r.db.WithContext(ctx).Order("created_at desc, id desc")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&recs).Error; err != nil {
		return nil, storerr.FromDB(err)
	}
	return recs, nil
}

func (r *instructionRepository) ListFavorites(ctx context.Context, limit int) ([]model.GeneratedInstruction, error) {
	var recs []model.GeneratedInstruction
	tx := r.db.WithContext(ctx).Where("is_favorite = ?", true).Order("created_at desc, id desc")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&recs).Error; err != nil {
		return nil, storerr.FromDB(err)
	}
	return recs, nil
}

// ListAllAscending returns every record in migration order: created_at
// ascending, ties broken by id ascending.
func (r *instructionRepository) ListAllAscending(ctx context.Context) ([]model.GeneratedInstruction, error) {
	var recs []model.GeneratedInstruction
	if err := r.db.WithContext(ctx).Order("created_at asc, id asc").Find(&recs).Error; err != nil {
		return nil, storerr.FromDB(err)
	}
	return recs, nil
}

// SearchByName matches case-insensitively. sqlite's LOWER only folds
// ASCII, so folding happens here rather than in SQL.
func (r *instructionRepository) SearchByName(ctx context.Context, pattern string) ([]model.GeneratedInstruction, error) {
	var recs []model.GeneratedInstruction
	err := r.db.WithContext(ctx).
		Where("name <> ''").
		Order("created_at desc, id desc").
		Find(&recs).Error
	if err != nil {
		return nil, storerr.FromDB(err)
	}
	needle := strings.ToLower(pattern)
	matched := make([]model.GeneratedInstruction, 0)
	for _, rec := range recs {
		if strings.Contains(strings.ToLower(rec.Name), needle) {
			matched = append(matched, rec)
		}
	}
	return matched, nil
}

func (r *instructionRepository) CountByDay(ctx context.Context) ([]DayCount, error) {
	return countByDay(r.db.WithContext(ctx).Model(&model.GeneratedInstruction{}))
}

func (r *instructionRepository) ToggleFavorite(ctx context.Context, id uint) (*model.GeneratedInstruction, error) {
	rec, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.IsFavorite = !rec.IsFavorite
	err = r.db.WithContext(ctx).Model(rec).Update("is_favorite", rec.IsFavorite).Error
	if err != nil {
		return nil, storerr.FromDB(err)
	}
	return rec, nil
}

func (r *instructionRepository) SetTags(ctx context.Context, id uint, tags []string) error {
	raw, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("%w: tags: %v", storerr.ErrValidation, err)
	}
	tx := r.db.WithContext(ctx).Model(&model.GeneratedInstruction{}).
		Where("id = ?", id).
		Update("tags", datatypes.JSON(raw))
	if tx.Error != nil {
		return storerr.FromDB(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return storerr.ErrNotFound
	}
	return nil
}

// LinkRequest ties a stored instruction back to the generation request it
// came from. Like the favorite flag and tags this is metadata only; the
// prompt and payload stay immutable.
func (r *instructionRepository) LinkRequest(ctx context.Context, id, requestID uint) error {
	var req model.GenerationRequest
	if err := r.db.WithContext(ctx).First(&req, requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: request %d does not exist", storerr.ErrReferential, requestID)
		}
		return storerr.FromDB(err)
	}
	tx := r.db.WithContext(ctx).Model(&model.GeneratedInstruction{}).
		Where("id = ?", id).
		Update("request_id", requestID)
	if tx.Error != nil {
		return storerr.FromDB(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return storerr.ErrNotFound
	}
	return nil
}

// countByDay groups rows by DATE(created_at), newest date first.
// DATE() is understood by both sqlite and mysql.
func countByDay(tx *gorm.DB) ([]DayCount, error) {
	var rows []DayCount
	err := tx.
		Select("DATE(created_at) as date, COUNT(*) as count").
		Group("DATE(created_at)").
		Order("date desc").
		Scan(&rows).Error
	if err != nil {
		return nil, storerr.FromDB(err)
	}
	return rows, nil
}

func emptyJSON(raw datatypes.JSON) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null" || !json.Valid(raw)
}
