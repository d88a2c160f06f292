package catalog

import (
	"context"
	"encoding/hex"

	"github.com/google/uuid"

	"instrument-catalogv1/internal/model"
)

func newSourceID() string {
	u := uuid.New()
	return "src_" + hex.EncodeToString(u[:])
}

// CreateSource registers an upstream instrument feed. Name and type are
// required; an id is assigned here.
func (s *Service) CreateSource(ctx context.Context, src model.Source) (*model.Source, error) {
	if src.Name == "" {
		return nil, Validationf("source name is required")
	}
	if src.Type == "" {
		return nil, Validationf("source type is required")
	}
	src.ID = newSourceID()
	if err := s.store.InsertSource(ctx, &src); err != nil {
		return nil, storagef("create source", err)
	}
	return &src, nil
}

// ListSources returns every registered feed.
func (s *Service) ListSources(ctx context.Context) ([]model.Source, error) {
	out, err := s.store.ListSources(ctx)
	if err != nil {
		return nil, storagef("list sources", err)
	}
	return out, nil
}

// GetSource returns the feed registered under name, or ErrNotFound.
func (s *Service) GetSource(ctx context.Context, name string) (*model.Source, error) {
	src, err := s.store.SourceByName(ctx, name)
	if err != nil {
		return nil, storagef("get source", err)
	}
	if src == nil {
		return nil, ErrNotFound
	}
	return src, nil
}
