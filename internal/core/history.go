package core

import (
	"context"

	"github.com/orrn/printdesk/internal/model"
)

// HistoryService is the read side of a user's submission history.
type HistoryService struct {
	store Store
}

func NewHistoryService(store Store) *HistoryService {
	return &HistoryService{store: store}
}

// HistoryFor lists the user's jobs newest first. Jobs whose file record is
// gone carry model.MissingFileName.
func (s *HistoryService) HistoryFor(ctx context.Context, userID int64) ([]model.HistoryEntry, error) {
	entries, err := s.store.History(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].FileName == "" {
			entries[i].FileName = model.MissingFileName
		}
	}
	return entries, nil
}
