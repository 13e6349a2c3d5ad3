package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/architect3d/storage/internal/model"
	"github.com/architect3d/storage/internal/storerr"
)

type feedbackRepository struct {
	db *gorm.DB
}

func NewFeedbackRepository(db *gorm.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

func (r *feedbackRepository) AddFeedback(ctx context.Context, fb *model.UserFeedback) error {
	if fb.Rating != 0 && (fb.Rating < 1 || fb.Rating > 5) {
		return fmt.Errorf("%w: rating must be between 1 and 5", storerr.ErrValidation)
	}
	if err := r.requestExists(ctx, fb.RequestID); err != nil {
		return err
	}
	return storerr.FromDB(r.db.WithContext(ctx).Create(fb).Error)
}

func (r *feedbackRepository) ListByRequest(ctx context.Context, requestID uint) ([]model.UserFeedback, error) {
	var items []model.UserFeedback
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at desc, id desc").
		Find(&items).Error
	if err != nil {
		return nil, storerr.FromDB(err)
	}
	return items, nil
}

// AddRefinement assigns the next iteration number for the request inside
// the insert transaction.
func (r *feedbackRepository) AddRefinement(ctx context.Context, ref *model.RefinementHistory) error {
	if err := r.requestExists(ctx, ref.RequestID); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last model.RefinementHistory
		err := tx.Where("request_id = ?", ref.RequestID).
			Order("iteration_number desc").
			First(&last).Error
		switch {
		case err == nil:
			ref.IterationNumber = last.IterationNumber + 1
		case errors.Is(err, gorm.ErrRecordNotFound):
			ref.IterationNumber = 1
		default:
			return err
		}
		return tx.Create(ref).Error
	})
	return storerr.FromDB(err)
}

func (r *feedbackRepository) History(ctx context.Context, requestID uint) ([]model.RefinementHistory, error) {
	var items []model.RefinementHistory
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("iteration_number asc").
		Find(&items).Error
	if err != nil {
		return nil, storerr.FromDB(err)
	}
	return items, nil
}

func (r *feedbackRepository) requestExists(ctx context.Context, requestID uint) error {
	var req model.GenerationRequest
	if err := r.db.WithContext(ctx).First(&req, requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: request %d does not exist", storerr.ErrReferential, requestID)
		}
		return storerr.FromDB(err)
	}
	return nil
}
