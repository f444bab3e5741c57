package analytics

import (
	"context"

	"clubhouse-bot/internal/storage"
)

// Service aggregates per-guild leaderboards over the store.
type Service struct {
	store *storage.Store
}

func New(store *storage.Store) *Service {
	return &Service{store: store}
}

type Row struct {
	UserID string
	Value  int
}

func (s *Service) TopLevels(ctx context.Context, guildID string, limit int) ([]Row, error) {
	records, err := s.store.LevelLeaderboard(ctx, guildID, limit)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(records))
	for _, record := range records {
		rows = append(rows, Row{UserID: record.UserID, Value: record.Level})
	}
	return rows, nil
}

func (s *Service) TopMessages(ctx context.Context, guildID string, limit int) ([]Row, error) {
	records, err := s.store.MessageLeaderboard(ctx, guildID, limit)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(records))
	for _, record := range records {
		rows = append(rows, Row{UserID: record.UserID, Value: record.MessageCount})
	}
	return rows, nil
}

func (s *Service) TopInviters(ctx context.Context, guildID string, limit int) ([]Row, error) {
	stats, err := s.store.InviteLeaderboard(ctx, guildID, limit)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(stats))
	for _, entry := range stats {
		rows = append(rows, Row{UserID: entry.InviterID, Value: entry.Effective()})
	}
	return rows, nil
}
