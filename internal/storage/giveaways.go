package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type Giveaway struct {
	GuildID     string
	MessageID   string
	ChannelID   string
	Prize       string
	HostID      string
	EndTime     time.Time
	WinnerCount int
	Ended       bool
}

func (s *Store) CreateGiveaway(ctx context.Context, g Giveaway) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO giveaways (guild_id, message_id, channel_id, prize, host_id, end_time, winner_count, ended)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)
	`, g.GuildID, g.MessageID, g.ChannelID, g.Prize, g.HostID, g.EndTime.Unix(), g.WinnerCount)
	return err
}

func (s *Store) GetGiveaway(ctx context.Context, guildID, messageID string) (Giveaway, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT channel_id, prize, host_id, end_time, winner_count, ended
		FROM giveaways WHERE guild_id = ? AND message_id = ?`, guildID, messageID)

	g := Giveaway{GuildID: guildID, MessageID: messageID}
	var endTime int64
	var ended int
	err := row.Scan(&g.ChannelID, &g.Prize, &g.HostID, &endTime, &g.WinnerCount, &ended)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Giveaway{}, false, nil
		}
		return Giveaway{}, false, err
	}
	g.EndTime = time.Unix(endTime, 0)
	g.Ended = ended == 1
	return g, true, nil
}

func (s *Store) AddParticipant(ctx context.Context, guildID, messageID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO giveaway_entries (guild_id, message_id, user_id)
		VALUES (?, ?, ?)`, guildID, messageID, userID)
	return err
}

func (s *Store) RemoveParticipant(ctx context.Context, guildID, messageID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM giveaway_entries
		WHERE guild_id = ? AND message_id = ? AND user_id = ?`, guildID, messageID, userID)
	return err
}

func (s *Store) Participants(ctx context.Context, guildID, messageID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM giveaway_entries
		WHERE guild_id = ? AND message_id = ?`, guildID, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		users = append(users, userID)
	}
	return users, rows.Err()
}

// DueGiveaways lists non-ended giveaways whose end time has passed.
func (s *Store) DueGiveaways(ctx context.Context, now time.Time) ([]Giveaway, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT guild_id, message_id, channel_id, prize, host_id, end_time, winner_count
		FROM giveaways WHERE ended = 0 AND end_time <= ?`, now.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []Giveaway
	for rows.Next() {
		var g Giveaway
		var endTime int64
		if err := rows.Scan(&g.GuildID, &g.MessageID, &g.ChannelID, &g.Prize, &g.HostID, &endTime, &g.WinnerCount); err != nil {
			return nil, err
		}
		g.EndTime = time.Unix(endTime, 0)
		due = append(due, g)
	}
	return due, rows.Err()
}

// ClaimEnded flips the ended flag and reports whether this caller won the
// claim. A second invocation on the same record returns false, which is what
// keeps End from double-announcing.
func (s *Store) ClaimEnded(ctx context.Context, guildID, messageID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE giveaways SET ended = 1
		WHERE guild_id = ? AND message_id = ? AND ended = 0`, guildID, messageID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}
