package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type InviterStats struct {
	GuildID   string
	InviterID string
	Joins     int
	Left      int
	Fake      int
	Rejoins   int
}

// Effective is the inviter's usable invite count. Leavers and suspected
// fake accounts are subtracted; the floor is zero.
func (s InviterStats) Effective() int {
	total := s.Joins - s.Left - s.Fake
	if total < 0 {
		return 0
	}
	return total
}

type Invitee struct {
	GuildID   string
	InviterID string
	UserID    string
	JoinedAt  time.Time
	Fake      bool
	Rejoin    bool
}

// TrackJoin records an attributed join: the inviter's counters and the
// append-only invitee ledger move together in one transaction.
func (s *Store) TrackJoin(ctx context.Context, record Invitee) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO inviter_stats (guild_id, inviter_id, joins, left_count, fake, rejoins)
		VALUES (?, ?, 1, 0, ?, ?)
		ON CONFLICT(guild_id, inviter_id) DO UPDATE SET
			joins = joins + 1,
			fake = fake + excluded.fake,
			rejoins = rejoins + excluded.rejoins
	`, record.GuildID, record.InviterID, boolToInt(record.Fake), boolToInt(record.Rejoin))
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO invitees (guild_id, inviter_id, user_id, joined_at, is_fake, is_rejoin)
		VALUES (?, ?, ?, ?, ?, ?)
	`, record.GuildID, record.InviterID, record.UserID, record.JoinedAt.Unix(), boolToInt(record.Fake), boolToInt(record.Rejoin))
	if err != nil {
		return err
	}

	return tx.Commit()
}

// TrackLeave increments the inviter's left counter for the departing user.
// Returns false when no inviter is on record (vanity joins, pre-tracking
// members).
func (s *Store) TrackLeave(ctx context.Context, guildID, userID string) (bool, error) {
	inviterID, found, err := s.FindInviter(ctx, guildID, userID)
	if err != nil || !found {
		return false, err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE inviter_stats SET left_count = left_count + 1
		WHERE guild_id = ? AND inviter_id = ?`, guildID, inviterID)
	if err != nil {
		return false, err
	}
	return true, nil
}

// FindInviter returns the inviter recorded for the user's most recent join.
func (s *Store) FindInviter(ctx context.Context, guildID, userID string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT inviter_id FROM invitees
		WHERE guild_id = ? AND user_id = ?
		ORDER BY id DESC LIMIT 1`, guildID, userID)

	var inviterID string
	err := row.Scan(&inviterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return inviterID, true, nil
}

func (s *Store) HasJoinedBefore(ctx context.Context, guildID, userID string) (bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM invitees WHERE guild_id = ? AND user_id = ?`, guildID, userID)
	var count int
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) GetInviterStats(ctx context.Context, guildID, inviterID string) (InviterStats, error) {
	result := InviterStats{GuildID: guildID, InviterID: inviterID}
	row := s.db.QueryRowContext(ctx, `
		SELECT joins, left_count, fake, rejoins
		FROM inviter_stats WHERE guild_id = ? AND inviter_id = ?`, guildID, inviterID)
	err := row.Scan(&result.Joins, &result.Left, &result.Fake, &result.Rejoins)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, nil
		}
		return InviterStats{}, err
	}
	return result, nil
}

func (s *Store) InviteLeaderboard(ctx context.Context, guildID string, limit int) ([]InviterStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT inviter_id, joins, left_count, fake, rejoins
		FROM inviter_stats WHERE guild_id = ?
		ORDER BY MAX(joins - left_count - fake, 0) DESC
		LIMIT ?`, guildID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []InviterStats
	for rows.Next() {
		entry := InviterStats{GuildID: guildID}
		if err := rows.Scan(&entry.InviterID, &entry.Joins, &entry.Left, &entry.Fake, &entry.Rejoins); err != nil {
			return nil, err
		}
		stats = append(stats, entry)
	}
	return stats, rows.Err()
}
