package service

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"k8s.io/klog/v2"

	"github.com/architect3d/storage/config"
	"github.com/architect3d/storage/internal/doctree"
	"github.com/architect3d/storage/internal/model"
	"github.com/architect3d/storage/internal/repository"
	"github.com/architect3d/storage/internal/storerr"
)

// Record is the mode-neutral view of a stored generation result.
// Instructions carries the raw payload in document mode; in normalized
// mode the payload lives in the relational tree and is not flattened for
// listing.
type Record struct {
	ID           uint           `json:"id"`
	Name         string         `json:"name"`
	InputPrompt  string         `json:"input_prompt"`
	Instructions datatypes.JSON `json:"instructions,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Store dispatches the access operations to whichever mode is active.
// Semantics are identical across modes: same validation, same ordering,
// same search and grouping rules.
type Store struct {
	mode config.StoreMode
	docs repository.InstructionRepository
	norm repository.NormalizedRepository
	gen  config.GenerationConfig
}

func NewStore(cfg *config.Config, docs repository.InstructionRepository, norm repository.NormalizedRepository) *Store {
	return &Store{
		mode: cfg.Store.Mode,
		docs: docs,
		norm: norm,
		gen:  cfg.Generation,
	}
}

func (s *Store) Mode() config.StoreMode {
	return s.mode
}

func (s *Store) Insert(ctx context.Context, name, inputPrompt string, instructions datatypes.JSON) (*Record, error) {
	if s.mode == config.ModeNormalized {
		doc, err := doctree.Parse(instructions)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", storerr.ErrValidation, err)
		}
		hash := model.ModelParamsFingerprint(s.gen.ModelName, s.gen.Temperature, s.gen.MaxTokens)
		instr, err := s.norm.CreateFromDocument(ctx, name, inputPrompt, doc, time.Time{}, s.gen.ModelName, hash)
		if err != nil {
			return nil, err
		}
		klog.V(6).Infof("stored instruction %d (normalized, %d components)", instr.ID, len(instr.Components))
		return &Record{ID: instr.ID, Name: instr.Name, InputPrompt: instr.InputPrompt, CreatedAt: instr.CreatedAt}, nil
	}

	rec, err := s.docs.Insert(ctx, name, inputPrompt, instructions)
	if err != nil {
		return nil, err
	}
	klog.V(6).Infof("stored instruction %d (document)", rec.ID)
	return documentRecord(rec), nil
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	if s.mode == config.ModeNormalized {
		instrs, err := s.norm.ListRecent(ctx, limit)
		if err != nil {
			return nil, err
		}
		return normalizedRecords(instrs), nil
	}
	recs, err := s.docs.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	return documentRecords(recs), nil
}

func (s *Store) SearchByName(ctx context.Context, pattern string) ([]Record, error) {
	if s.mode == config.ModeNormalized {
		instrs, err := s.norm.SearchByName(ctx, pattern)
		if err != nil {
			return nil, err
		}
		return normalizedRecords(instrs), nil
	}
	recs, err := s.docs.SearchByName(ctx, pattern)
	if err != nil {
		return nil, err
	}
	return documentRecords(recs), nil
}

// CountByDay groups all records by the calendar date of created_at,
// newest date first. date(created_at) survives migration exactly, so both
// modes report the same buckets for the same data.
func (s *Store) CountByDay(ctx context.Context) ([]repository.DayCount, error) {
	if s.mode == config.ModeNormalized {
		return s.norm.CountByDay(ctx)
	}
	return s.docs.CountByDay(ctx)
}

func documentRecord(rec *model.GeneratedInstruction) *Record {
	return &Record{
		ID:           rec.ID,
		Name:         rec.Name,
		InputPrompt:  rec.InputPrompt,
		Instructions: rec.Instructions,
		CreatedAt:    rec.CreatedAt,
	}
}

func documentRecords(recs []model.GeneratedInstruction) []Record {
	out := make([]Record, 0, len(recs))
	for i := range recs {
		out = append(out, *documentRecord(&recs[i]))
	}
	return out
}

func normalizedRecords(instrs []model.Instruction) []Record {
	out := make([]Record, 0, len(instrs))
	for _, instr := range instrs {
		out = append(out, Record{
			ID:          instr.ID,
			Name:        instr.Name,
			InputPrompt: instr.InputPrompt,
			CreatedAt:   instr.CreatedAt,
		})
	}
	return out
}
