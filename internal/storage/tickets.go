package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const (
	TicketOpen   = "open"
	TicketClosed = "closed"
)

type Ticket struct {
	GuildID   string
	ChannelID string
	UserID    string
	CreatedAt time.Time
	Status    string
}

func (s *Store) CreateTicket(ctx context.Context, t Ticket) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tickets (guild_id, channel_id, user_id, created_at, status)
		VALUES (?, ?, ?, ?, ?)
	`, t.GuildID, t.ChannelID, t.UserID, t.CreatedAt.Unix(), TicketOpen)
	return err
}

func (s *Store) GetTicket(ctx context.Context, guildID, channelID string) (Ticket, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, created_at, status
		FROM tickets WHERE guild_id = ? AND channel_id = ?`, guildID, channelID)

	t := Ticket{GuildID: guildID, ChannelID: channelID}
	var createdAt int64
	err := row.Scan(&t.UserID, &createdAt, &t.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Ticket{}, false, nil
		}
		return Ticket{}, false, err
	}
	t.CreatedAt = time.Unix(createdAt, 0)
	return t, true, nil
}

// OpenTicketFor returns the user's currently open ticket in the guild, if any.
func (s *Store) OpenTicketFor(ctx context.Context, guildID, userID string) (Ticket, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT channel_id, created_at
		FROM tickets
		WHERE guild_id = ? AND user_id = ? AND status = ?
		LIMIT 1`, guildID, userID, TicketOpen)

	t := Ticket{GuildID: guildID, UserID: userID, Status: TicketOpen}
	var createdAt int64
	err := row.Scan(&t.ChannelID, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Ticket{}, false, nil
		}
		return Ticket{}, false, err
	}
	t.CreatedAt = time.Unix(createdAt, 0)
	return t, true, nil
}

func (s *Store) CloseTicket(ctx context.Context, guildID, channelID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tickets SET status = ?
		WHERE guild_id = ? AND channel_id = ? AND status = ?`, TicketClosed, guildID, channelID, TicketOpen)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}
