package model

import (
	"time"

	"gorm.io/datatypes"
)

// Generation request processing statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Generation request types.
const (
	RequestTypeTextGeneration = "text_generation"
	RequestTypeImageAnalysis  = "image_analysis"
	RequestTypeRefinement     = "refinement"
)

// GeneratedInstruction is the document-mode record: the generation result
// kept as a single free-form JSON payload. InputPrompt and Instructions are
// immutable after creation; the row is an audit trail of generation attempts.
type GeneratedInstruction struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	Name         string         `json:"name" gorm:"size:255;index"`
	InputPrompt  string         `json:"input_prompt" gorm:"type:text;not null"`
	Instructions datatypes.JSON `json:"instructions" gorm:"not null"`
	RequestID    *uint          `json:"request_id" gorm:"index"`
	IsFavorite   bool           `json:"is_favorite" gorm:"default:false"`
	Tags         datatypes.JSON `json:"tags"`
	CreatedAt    time.Time      `json:"created_at" gorm:"index"`
}

// GenerationRequest tracks one generation attempt through its lifecycle.
type GenerationRequest struct {
	ID                    uint           `json:"id" gorm:"primaryKey"`
	RequestType           string         `json:"request_type" gorm:"size:50;default:text_generation"`
	Status                string         `json:"status" gorm:"size:50;default:pending;index"`
	InputPrompt           string         `json:"input_prompt" gorm:"type:text;not null"`
	Style                 string         `json:"style" gorm:"size:100"`
	Materials             datatypes.JSON `json:"materials"`
	Dimensions            datatypes.JSON `json:"dimensions"`
	ImagePath             string         `json:"image_path" gorm:"size:500"`
	ModelName             string         `json:"model_name" gorm:"size:100;default:gemma:2b"`
	Temperature           float64        `json:"temperature" gorm:"default:0.7"`
	MaxTokens             int            `json:"max_tokens" gorm:"default:2048"`
	GeneratedInstructions datatypes.JSON `json:"generated_instructions"`
	ErrorMsg              string         `json:"error_msg" gorm:"size:2000"`
	ProcessingTime        float64        `json:"processing_time"`
	UserSessionID         string         `json:"user_session_id" gorm:"size:100;index"`
	CreatedAt             time.Time      `json:"created_at" gorm:"index"`
	UpdatedAt             time.Time      `json:"updated_at"`

	FeedbackItems []UserFeedback      `json:"feedback_items,omitempty" gorm:"foreignKey:RequestID"`
	Refinements   []RefinementHistory `json:"refinements,omitempty" gorm:"foreignKey:RequestID"`
}

// UserFeedback is a user's rating of one generation request.
type UserFeedback struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	RequestID uint      `json:"request_id" gorm:"index;not null"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment" gorm:"type:text"`
	IsUseful  *bool     `json:"is_useful"`
	CreatedAt time.Time `json:"created_at"`
}

// RefinementHistory records one refine iteration of a request's
// instructions. IterationNumber is assigned by the store, monotonic
// per request.
type RefinementHistory struct {
	ID                   uint           `json:"id" gorm:"primaryKey"`
	RequestID            uint           `json:"request_id" gorm:"index;not null"`
	IterationNumber      int            `json:"iteration_number" gorm:"default:1"`
	FeedbackProvided     string         `json:"feedback_provided" gorm:"type:text"`
	PreviousInstructions datatypes.JSON `json:"previous_instructions"`
	RefinedInstructions  datatypes.JSON `json:"refined_instructions"`
	CreatedAt            time.Time      `json:"created_at"`
}

// SystemStats is the daily usage snapshot, one row per calendar date.
// The row for the current date is recomputed in place from that day's
// generation requests.
type SystemStats struct {
	ID                    uint      `json:"id" gorm:"primaryKey"`
	Date                  time.Time `json:"date" gorm:"index"`
	TotalRequests         int64     `json:"total_requests" gorm:"default:0"`
	SuccessfulRequests    int64     `json:"successful_requests" gorm:"default:0"`
	FailedRequests        int64     `json:"failed_requests" gorm:"default:0"`
	AverageProcessingTime float64   `json:"average_processing_time"`
	TotalProcessingTime   float64   `json:"total_processing_time"`
	UniqueSessions        int64     `json:"unique_sessions" gorm:"default:0"`
	CreatedAt             time.Time `json:"created_at"`
}
