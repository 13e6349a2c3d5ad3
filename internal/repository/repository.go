package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"

	"github.com/architect3d/storage/internal/doctree"
	"github.com/architect3d/storage/internal/model"
)

// DayCount is one bucket of the count-by-day report. Date is the calendar
// date of created_at as YYYY-MM-DD.
type DayCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// InstructionRepository is the document-mode store. Rows are append-only:
// prompt and payload are never updated, only the favorite flag and tags.
type InstructionRepository interface {
	Insert(ctx context.Context, name, inputPrompt string, instructions datatypes.JSON) (*model.GeneratedInstruction, error)
	Get(ctx context.Context, id uint) (*model.GeneratedInstruction, error)
	ListRecent(ctx context.Context, limit int) ([]model.GeneratedInstruction, error)
	ListFavorites(ctx context.Context, limit int) ([]model.GeneratedInstruction, error)
	ListAllAscending(ctx context.Context) ([]model.GeneratedInstruction, error)
	SearchByName(ctx context.Context, pattern string) ([]model.GeneratedInstruction, error)
	CountByDay(ctx context.Context) ([]DayCount, error)
	ToggleFavorite(ctx context.Context, id uint) (*model.GeneratedInstruction, error)
	SetTags(ctx context.Context, id uint, tags []string) error
	LinkRequest(ctx context.Context, id, requestID uint) error
}

// RequestStatistics is the aggregate report over generation requests.
type RequestStatistics struct {
	PeriodDays            int              `json:"period_days"`
	TotalRequests         int64            `json:"total_requests"`
	StatusBreakdown       map[string]int64 `json:"status_breakdown"`
	AverageProcessingTime float64          `json:"average_processing_time"`
	RequestTypes          map[string]int64 `json:"request_types"`
	AverageRating         float64          `json:"average_rating"`
	UniqueSessions        int64            `json:"unique_sessions"`
	SuccessRate           float64          `json:"success_rate"`
}

// StyleCount is one entry of the popular-styles report.
type StyleCount struct {
	Style string `json:"style"`
	Count int64  `json:"count"`
}

// RequestFilter narrows List results; zero values mean no filtering.
type RequestFilter struct {
	Status        string
	UserSessionID string
	Limit         int
	Offset        int
}

// StatusUpdate carries the optional fields of a status transition.
type StatusUpdate struct {
	Instructions   datatypes.JSON
	ErrorMsg       string
	ProcessingTime float64
}

// RequestRepository tracks generation attempts through their lifecycle.
type RequestRepository interface {
	Create(ctx context.Context, req *model.GenerationRequest) error
	Get(ctx context.Context, id uint) (*model.GenerationRequest, error)
	UpdateStatus(ctx context.Context, id uint, status string, update StatusUpdate) (*model.GenerationRequest, error)
	List(ctx context.Context, filter RequestFilter) ([]model.GenerationRequest, error)
	Search(ctx context.Context, query string, limit int) ([]model.GenerationRequest, error)
	Delete(ctx context.Context, id uint) error
	Statistics(ctx context.Context, days int) (*RequestStatistics, error)
	UpdateSystemStats(ctx context.Context) (*model.SystemStats, error)
	PopularStyles(ctx context.Context, limit int) ([]StyleCount, error)
	RecentActivity(ctx context.Context, since time.Time, limit int) ([]model.GenerationRequest, error)
}

// FeedbackRepository stores user ratings and refinement iterations.
type FeedbackRepository interface {
	AddFeedback(ctx context.Context, fb *model.UserFeedback) error
	ListByRequest(ctx context.Context, requestID uint) ([]model.UserFeedback, error)
	AddRefinement(ctx context.Context, ref *model.RefinementHistory) error
	History(ctx context.Context, requestID uint) ([]model.RefinementHistory, error)
}

// Triple is one component transform triple, in x, y, z order.
type Triple [3]float64

// ComponentSpec describes one component of a new instruction. A nil
// transform triple means not supplied and takes the schema default
// (position 0, scale 1, rotation 0); a supplied triple is stored
// exactly, zeros included.
type ComponentSpec struct {
	Name       string
	Type       string
	Position   *Triple
	Scale      *Triple
	Rotation   *Triple
	MaterialID *uint
	Modifiers  []model.Modifier
}

// NormalizedRepository is the normalized-mode store. CreateInstruction and
// DeleteInstruction are transactional: concurrent readers see the whole
// instruction tree or none of it, never a partial write.
type NormalizedRepository interface {
	CreateInstruction(ctx context.Context, instr *model.Instruction, components []ComponentSpec, styleIDs []uint) error
	CreateFromDocument(ctx context.Context, name, inputPrompt string, doc *doctree.Document, createdAt time.Time, modelName, paramsHash string) (*model.Instruction, error)
	GetInstruction(ctx context.Context, id uint) (*model.Instruction, error)
	DeleteInstruction(ctx context.Context, id uint) error
	EnsureMaterial(ctx context.Context, name, category string) (*model.Material, error)
	EnsureStyle(ctx context.Context, name string) (*model.Style, error)
	GetMaterial(ctx context.Context, id uint) (*model.Material, error)
	ListRecent(ctx context.Context, limit int) ([]model.Instruction, error)
	ListAllAscending(ctx context.Context) ([]model.Instruction, error)
	SearchByName(ctx context.Context, pattern string) ([]model.Instruction, error)
	CountByDay(ctx context.Context) ([]DayCount, error)
}
