package service

import (
	"context"
	"log"

	"github.com/mind-engage/academy/internal/content"
	syncx "github.com/mind-engage/academy/internal/sync"
)

// ContentService applies teacher reorders and records them in the event log.
type ContentService struct {
	store  *content.SQLStore
	events *syncx.EventRepo
}

func NewContentService(store *content.SQLStore, events *syncx.EventRepo) *ContentService {
	return &ContentService{store: store, events: events}
}

func (s *ContentService) List(ctx context.Context, courseID string) ([]content.Item, error) {
	return s.store.List(ctx, courseID)
}

// Reorder replaces the whole course sequence. A rejected request leaves the
// stored order untouched and returns a *content.ValidationError.
func (s *ContentService) Reorder(ctx context.Context, courseID string, req []content.Placement) ([]content.Item, error) {
	if err := s.store.Reorder(ctx, courseID, req); err != nil {
		return nil, err
	}
	items, err := s.store.List(ctx, courseID)
	if err != nil {
		return nil, err
	}
	refs := make([]content.Ref, len(items))
	for i, it := range items {
		refs[i] = it.Ref()
	}
	if err := s.events.Append(ctx, nil, syncx.TypeContentReordered, courseID, refs); err != nil {
		log.Printf("event log: reorder %s: %v", courseID, err)
	}
	return items, nil
}
