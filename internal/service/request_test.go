package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/architect3d/storage/internal/model"
	"github.com/architect3d/storage/internal/repository"
	"github.com/architect3d/storage/internal/storerr"
)

func TestRequestLifecycleToSavedInstruction(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	svc := NewRequestService(
		repository.NewRequestRepository(db),
		repository.NewInstructionRepository(db),
		repository.NewFeedbackRepository(db),
	)

	req := &model.GenerationRequest{InputPrompt: "современный дом"}
	require.NoError(t, svc.CreateRequest(ctx, req))
	assert.Equal(t, model.StatusPending, req.Status)
	assert.NotEmpty(t, req.UserSessionID)

	_, err := svc.MarkProcessing(ctx, req.ID)
	require.NoError(t, err)

	// Saving before completion has no payload to persist.
	_, err = svc.SaveInstruction(ctx, req.ID, "Дом", nil)
	assert.ErrorIs(t, err, storerr.ErrValidation)

	completed, err := svc.Complete(ctx, req.ID, datatypes.JSON(towerDoc), 3.5)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, completed.Status)
	assert.Equal(t, 3.5, completed.ProcessingTime)

	rec, err := svc.SaveInstruction(ctx, req.ID, "Дом", []string{"жилое", "дерево"})
	require.NoError(t, err)
	require.NotNil(t, rec.RequestID)
	assert.Equal(t, req.ID, *rec.RequestID)
	assert.Equal(t, "современный дом", rec.InputPrompt)
	assert.JSONEq(t, `["жилое", "дерево"]`, string(rec.Tags))
}

func TestRequestFailPath(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	svc := NewRequestService(
		repository.NewRequestRepository(db),
		repository.NewInstructionRepository(db),
		repository.NewFeedbackRepository(db),
	)

	req := &model.GenerationRequest{InputPrompt: "мост"}
	require.NoError(t, svc.CreateRequest(ctx, req))

	failed, err := svc.Fail(ctx, req.ID, "model unavailable", 0.4)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, failed.Status)
	assert.Equal(t, "model unavailable", failed.ErrorMsg)
}

func TestFeedbackAndRefinementFlow(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	svc := NewRequestService(
		repository.NewRequestRepository(db),
		repository.NewInstructionRepository(db),
		repository.NewFeedbackRepository(db),
	)

	req := &model.GenerationRequest{InputPrompt: "дом"}
	require.NoError(t, svc.CreateRequest(ctx, req))

	useful := true
	fb, err := svc.AddFeedback(ctx, req.ID, 4, "неплохо", &useful)
	require.NoError(t, err)
	assert.NotZero(t, fb.ID)

	_, err = svc.AddFeedback(ctx, req.ID, 6, "", nil)
	assert.ErrorIs(t, err, storerr.ErrValidation)
	_, err = svc.AddFeedback(ctx, 9999, 3, "", nil)
	assert.ErrorIs(t, err, storerr.ErrReferential)

	first, err := svc.AddRefinement(ctx, req.ID, "сделай крышу выше", datatypes.JSON(`{}`), datatypes.JSON(`{"v":1}`))
	require.NoError(t, err)
	second, err := svc.AddRefinement(ctx, req.ID, "добавь гараж", datatypes.JSON(`{"v":1}`), datatypes.JSON(`{"v":2}`))
	require.NoError(t, err)
	assert.Equal(t, 1, first.IterationNumber)
	assert.Equal(t, 2, second.IterationNumber)

	history, err := svc.RefinementHistory(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "сделай крышу выше", history[0].FeedbackProvided)
}

func TestRecentActivityPromptPreview(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	requests := repository.NewRequestRepository(db)
	stats := NewStatsService(requests)

	long := strings.Repeat("дом ", 40) // 160 runes
	require.NoError(t, requests.Create(ctx, &model.GenerationRequest{InputPrompt: long}))

	items, err := stats.RecentActivity(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	preview := []rune(items[0].PromptPreview)
	assert.Len(t, preview, promptPreviewLen+3)
	assert.True(t, strings.HasSuffix(items[0].PromptPreview, "..."))
}
