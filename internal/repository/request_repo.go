package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/architect3d/storage/internal/model"
	"github.com/architect3d/storage/internal/storerr"
)

type requestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, req *model.GenerationRequest) error {
	if strings.TrimSpace(req.InputPrompt) == "" {
		return fmt.Errorf("%w: input_prompt is required", storerr.ErrValidation)
	}
	if req.RequestType == "" {
		req.RequestType = model.RequestTypeTextGeneration
	}
	if req.Status == "" {
		req.Status = model.StatusPending
	}
	if req.ModelName == "" {
		req.ModelName = "gemma:2b"
	}
	if req.Temperature == 0 {
		req.Temperature = 0.7
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = 2048
	}
	if req.UserSessionID == "" {
		req.UserSessionID = uuid.NewString()
	}
	return storerr.FromDB(r.db.WithContext(ctx).Create(req).Error)
}

func (r *requestRepository) Get(ctx context.Context, id uint) (*model.GenerationRequest, error) {
	var req model.GenerationRequest
	if err := r.db.WithContext(ctx).First(&req, id).Error; err != nil {
		return nil, storerr.FromDB(err)
	}
	return &req, nil
}

func (r *requestRepository) UpdateStatus(ctx context.Context, id uint, status string, update StatusUpdate) (*model.GenerationRequest, error) {
	switch status {
	case model.StatusPending, model.StatusProcessing, model.StatusCompleted, model.StatusFailed:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", storerr.ErrValidation, status)
	}
	req, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	req.Status = status
	if update.Instructions != nil {
		req.GeneratedInstructions = update.Instructions
	}
	if update.ErrorMsg != "" {
		req.ErrorMsg = update.ErrorMsg
	}
	if update.ProcessingTime > 0 {
		req.ProcessingTime = update.ProcessingTime
	}
	if err := r.db.WithContext(ctx).Save(req).Error; err != nil {
		return nil, storerr.FromDB(err)
	}
	return req, nil
}

func (r *requestRepository) List(ctx context.Context, filter RequestFilter) ([]model.GenerationRequest, error) {
	var reqs []model.GenerationRequest
	tx := r.db.WithContext(ctx).Model(&model.GenerationRequest{})
	if filter.Status != "" {
		tx = tx.Where("status = ?", filter.Status)
	}
	if filter.UserSessionID != "" {
		tx = tx.Where("user_session_id = ?", filter.UserSessionID)
	}
	tx = tx.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		tx = tx.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		tx = tx.Offset(filter.Offset)
	}
	if err := tx.Find(&reqs).Error; err != nil {
		return nil, storerr.FromDB(err)
	}
	return reqs, nil
}

// Search matches prompt or style, case-insensitively (folding in Go,
// same reasoning as SearchByName).
func (r *requestRepository) Search(ctx context.Context, query string, limit int) ([]model.GenerationRequest, error) {
	var reqs []model.GenerationRequest
	err := r.db.WithContext(ctx).Order("created_at desc, id desc").Find(&reqs).Error
	if err != nil {
		return nil, storerr.FromDB(err)
	}
	needle := strings.ToLower(query)
	matched := make([]model.GenerationRequest, 0)
	for _, req := range reqs {
		if strings.Contains(strings.ToLower(req.InputPrompt), needle) ||
			strings.Contains(strings.ToLower(req.Style), needle) {
			matched = append(matched, req)
			if limit > 0 && len(matched) >= limit {
				break
			}
		}
	}
	return matched, nil
}

func (r *requestRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req model.GenerationRequest
		if err := tx.First(&req, id).Error; err != nil {
			return err
		}
		if err := tx.Where("request_id = ?", id).Delete(&model.UserFeedback{}).Error; err != nil {
			return err
		}
		if err := tx.Where("request_id = ?", id).Delete(&model.RefinementHistory{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.GenerationRequest{}, id).Error
	})
	return storerr.FromDB(err)
}

func (r *requestRepository) Statistics(ctx context.Context, days int) (*RequestStatistics, error) {
	since := time.Now().AddDate(0, 0, -days)
	db := r.db.WithContext(ctx)

	stats := &RequestStatistics{
		PeriodDays:      days,
		StatusBreakdown: map[string]int64{},
		RequestTypes:    map[string]int64{},
	}

	err := db.Model(&model.GenerationRequest{}).
		Where("created_at >= ?", since).
		Count(&stats.TotalRequests).Error
	if err != nil {
		return nil, storerr.FromDB(err)
	}

	var buckets []struct {
		Bucket string
		Count  int64
	}
	err = db.Model(&model.GenerationRequest{}).
		Select("status as bucket, COUNT(*) as count").
		Where("created_at >= ?", since).
		Group("status").
		Scan(&buckets).Error
	if err != nil {
		return nil, storerr.FromDB(err)
	}
	for _, b := range buckets {
		stats.StatusBreakdown[b.Bucket] = b.Count
	}

	buckets = nil
	err = db.Model(&model.GenerationRequest{}).
		Select("request_type as bucket, COUNT(*) as count").
		Where("created_at >= ?", since).
		Group("request_type").
		Scan(&buckets).Error
	if err != nil {
		return nil, storerr.FromDB(err)
	}
	for _, b := range buckets {
		stats.RequestTypes[b.Bucket] = b.Count
	}

	err = db.Model(&model.GenerationRequest{}).
		Select("COALESCE(AVG(processing_time), 0)").
		Where("created_at >= ? AND processing_time > 0", since).
		Scan(&stats.AverageProcessingTime).Error
	if err != nil {
		return nil, storerr.FromDB(err)
	}

	err = db.Model(&model.UserFeedback{}).
		Select("COALESCE(AVG(rating), 0)").
		Where("created_at >= ? AND rating > 0", since).
		Scan(&stats.AverageRating).Error
	if err != nil {
		return nil, storerr.FromDB(err)
	}

	err = db.Model(&model.GenerationRequest{}).
		Select("COUNT(DISTINCT user_session_id)").
		Where("created_at >= ? AND user_session_id <> ''", since).
		Scan(&stats.UniqueSessions).Error
	if err != nil {
		return nil, storerr.FromDB(err)
	}

	if stats.TotalRequests > 0 {
		stats.SuccessRate = float64(stats.StatusBreakdown[model.StatusCompleted]) / float64(stats.TotalRequests) * 100
	}
	return stats, nil
}

// UpdateSystemStats recomputes the current date's usage snapshot from
// today's generation requests and upserts the single system_stats row
// for that date.
func (r *requestRepository) UpdateSystemStats(ctx context.Context) (*model.SystemStats, error) {
	now := time.Now()
	today := now.Format("2006-01-02")
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var snap model.SystemStats
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("DATE(date) = ?", today).First(&snap).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			snap = model.SystemStats{Date: midnight}
		} else if err != nil {
			return err
		}

		requests := func() *gorm.DB {
			return tx.Model(&model.GenerationRequest{}).Where("DATE(created_at) = ?", today)
		}
		if err := requests().Count(&snap.TotalRequests).Error; err != nil {
			return err
		}
		if err := requests().Where("status = ?", model.StatusCompleted).
			Count(&snap.SuccessfulRequests).Error; err != nil {
			return err
		}
		if err := requests().Where("status = ?", model.StatusFailed).
			Count(&snap.FailedRequests).Error; err != nil {
			return err
		}
		err = requests().Where("processing_time > 0").
			Select("COALESCE(AVG(processing_time), 0)").
			Scan(&snap.AverageProcessingTime).Error
		if err != nil {
			return err
		}
		err = requests().Where("processing_time > 0").
			Select("COALESCE(SUM(processing_time), 0)").
			Scan(&snap.TotalProcessingTime).Error
		if err != nil {
			return err
		}
		err = requests().Where("user_session_id <> ''").
			Select("COUNT(DISTINCT user_session_id)").
			Scan(&snap.UniqueSessions).Error
		if err != nil {
			return err
		}
		return tx.Save(&snap).Error
	})
	if err != nil {
		return nil, storerr.FromDB(err)
	}
	return &snap, nil
}

func (r *requestRepository) PopularStyles(ctx context.Context, limit int) ([]StyleCount, error) {
	var styles []StyleCount
	tx := r.db.WithContext(ctx).Model(&model.GenerationRequest{}).
		Select("style, COUNT(*) as count").
		Where("style <> ''").
		Group("style").
		Order("count desc")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Scan(&styles).Error; err != nil {
		return nil, storerr.FromDB(err)
	}
	return styles, nil
}

func (r *requestRepository) RecentActivity(ctx context.Context, since time.Time, limit int) ([]model.GenerationRequest, error) {
	var reqs []model.GenerationRequest
	tx := r.db.WithContext(ctx).
		Where("created_at >= ?", since).
		Order("created_at desc, id desc")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&reqs).Error; err != nil {
		return nil, storerr.FromDB(err)
	}
	return reqs, nil
}
