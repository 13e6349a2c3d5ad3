package service

import (
	"context"
	"time"

	"github.com/architect3d/storage/internal/model"
	"github.com/architect3d/storage/internal/repository"
)

// ActivityItem is one row of the recent-activity report, with the prompt
// trimmed for display.
type ActivityItem struct {
	ID             uint      `json:"id"`
	Type           string    `json:"type"`
	Status         string    `json:"status"`
	PromptPreview  string    `json:"prompt_preview"`
	CreatedAt      time.Time `json:"created_at"`
	ProcessingTime float64   `json:"processing_time"`
}

const promptPreviewLen = 100

// StatsService exposes the reporting operations over generation requests.
type StatsService struct {
	requests repository.RequestRepository
}

func NewStatsService(requests repository.RequestRepository) *StatsService {
	return &StatsService{requests: requests}
}

func (s *StatsService) Overview(ctx context.Context, days int) (*repository.RequestStatistics, error) {
	if days <= 0 {
		days = 30
	}
	return s.requests.Statistics(ctx, days)
}

func (s *StatsService) PopularStyles(ctx context.Context, limit int) ([]repository.StyleCount, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.requests.PopularStyles(ctx, limit)
}

// SnapshotToday recomputes and persists the daily usage snapshot row
// for the current date.
func (s *StatsService) SnapshotToday(ctx context.Context) (*model.SystemStats, error) {
	return s.requests.UpdateSystemStats(ctx)
}

func (s *StatsService) RecentActivity(ctx context.Context, hours int) ([]ActivityItem, error) {
	if hours <= 0 {
		hours = 24
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	reqs, err := s.requests.RecentActivity(ctx, since, 20)
	if err != nil {
		return nil, err
	}
	items := make([]ActivityItem, 0, len(reqs))
	for _, req := range reqs {
		items = append(items, ActivityItem{
			ID:             req.ID,
			Type:           req.RequestType,
			Status:         req.Status,
			PromptPreview:  previewPrompt(req.InputPrompt),
			CreatedAt:      req.CreatedAt,
			ProcessingTime: req.ProcessingTime,
		})
	}
	return items, nil
}

func previewPrompt(prompt string) string {
	runes := []rune(prompt)
	if len(runes) <= promptPreviewLen {
		return prompt
	}
	return string(runes[:promptPreviewLen]) + "..."
}
