package service

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"k8s.io/klog/v2"

	"github.com/architect3d/storage/internal/model"
	"github.com/architect3d/storage/internal/repository"
	"github.com/architect3d/storage/internal/storerr"
)

// RequestService drives a generation request through its lifecycle. The
// generation engine itself is an external collaborator; this service only
// persists what it is handed.
type RequestService struct {
	requests repository.RequestRepository
	docs     repository.InstructionRepository
	feedback repository.FeedbackRepository
}

func NewRequestService(requests repository.RequestRepository, docs repository.InstructionRepository, feedback repository.FeedbackRepository) *RequestService {
	return &RequestService{requests: requests, docs: docs, feedback: feedback}
}

// CreateRequest registers a new pending generation attempt.
func (s *RequestService) CreateRequest(ctx context.Context, req *model.GenerationRequest) error {
	if err := s.requests.Create(ctx, req); err != nil {
		return err
	}
	klog.V(6).Infof("created generation request %d (session %s)", req.ID, req.UserSessionID)
	return nil
}

// MarkProcessing transitions a request to the processing state.
func (s *RequestService) MarkProcessing(ctx context.Context, id uint) (*model.GenerationRequest, error) {
	return s.requests.UpdateStatus(ctx, id, model.StatusProcessing, repository.StatusUpdate{})
}

// Complete stores the generation result and the processing time.
func (s *RequestService) Complete(ctx context.Context, id uint, instructions datatypes.JSON, processingTime float64) (*model.GenerationRequest, error) {
	req, err := s.requests.UpdateStatus(ctx, id, model.StatusCompleted, repository.StatusUpdate{
		Instructions:   instructions,
		ProcessingTime: processingTime,
	})
	if err != nil {
		return nil, err
	}
	klog.Infof("generation request %d completed in %.2fs", id, processingTime)
	return req, nil
}

// Fail records the failure reason and the time spent.
func (s *RequestService) Fail(ctx context.Context, id uint, reason string, processingTime float64) (*model.GenerationRequest, error) {
	req, err := s.requests.UpdateStatus(ctx, id, model.StatusFailed, repository.StatusUpdate{
		ErrorMsg:       reason,
		ProcessingTime: processingTime,
	})
	if err != nil {
		return nil, err
	}
	klog.Warningf("generation request %d failed: %s", id, reason)
	return req, nil
}

// SaveInstruction materializes a completed request's result as a
// document-mode instruction record linked back to the request.
func (s *RequestService) SaveInstruction(ctx context.Context, requestID uint, name string, tags []string) (*model.GeneratedInstruction, error) {
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if len(req.GeneratedInstructions) == 0 {
		return nil, fmt.Errorf("%w: request %d has no generated instructions", storerr.ErrValidation, requestID)
	}
	rec, err := s.docs.Insert(ctx, name, req.InputPrompt, req.GeneratedInstructions)
	if err != nil {
		return nil, err
	}
	if err := s.docs.LinkRequest(ctx, rec.ID, req.ID); err != nil {
		return nil, err
	}
	rec.RequestID = &req.ID
	if len(tags) > 0 {
		if err := s.docs.SetTags(ctx, rec.ID, tags); err != nil {
			return nil, err
		}
		raw, _ := json.Marshal(tags)
		rec.Tags = raw
	}
	return rec, nil
}

// AddFeedback records a user rating for a request.
func (s *RequestService) AddFeedback(ctx context.Context, requestID uint, rating int, comment string, isUseful *bool) (*model.UserFeedback, error) {
	fb := &model.UserFeedback{
		RequestID: requestID,
		Rating:    rating,
		Comment:   comment,
		IsUseful:  isUseful,
	}
	if err := s.feedback.AddFeedback(ctx, fb); err != nil {
		return nil, err
	}
	return fb, nil
}

// AddRefinement appends one refine iteration to the request's history.
func (s *RequestService) AddRefinement(ctx context.Context, requestID uint, feedbackText string, previous, refined datatypes.JSON) (*model.RefinementHistory, error) {
	ref := &model.RefinementHistory{
		RequestID:            requestID,
		FeedbackProvided:     feedbackText,
		PreviousInstructions: previous,
		RefinedInstructions:  refined,
	}
	if err := s.feedback.AddRefinement(ctx, ref); err != nil {
		return nil, err
	}
	return ref, nil
}

func (s *RequestService) RefinementHistory(ctx context.Context, requestID uint) ([]model.RefinementHistory, error) {
	return s.feedback.History(ctx, requestID)
}
