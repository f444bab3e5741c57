package storage

import (
	"context"
	"database/sql"
	"errors"
)

type UserLevel struct {
	GuildID      string
	UserID       string
	XP           int
	Level        int
	MessageCount int
}

type LevelRole struct {
	GuildID string
	Level   int
	RoleID  string
}

// GetUserLevel returns the stored record, or a zeroed record for users who
// have never earned XP.
func (s *Store) GetUserLevel(ctx context.Context, guildID, userID string) (UserLevel, error) {
	result := UserLevel{GuildID: guildID, UserID: userID}
	row := s.db.QueryRowContext(ctx, `
		SELECT xp, level, message_count
		FROM user_levels WHERE guild_id = ? AND user_id = ?`, guildID, userID)
	err := row.Scan(&result.XP, &result.Level, &result.MessageCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, nil
		}
		return UserLevel{}, err
	}
	return result, nil
}

func (s *Store) UpsertUserLevel(ctx context.Context, record UserLevel) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_levels (guild_id, user_id, xp, level, message_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(guild_id, user_id) DO UPDATE SET
			xp = excluded.xp,
			level = excluded.level,
			message_count = excluded.message_count
	`, record.GuildID, record.UserID, record.XP, record.Level, record.MessageCount)
	return err
}

func (s *Store) LevelLeaderboard(ctx context.Context, guildID string, limit int) ([]UserLevel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, xp, level, message_count
		FROM user_levels WHERE guild_id = ?
		ORDER BY level DESC, xp DESC
		LIMIT ?`, guildID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []UserLevel
	for rows.Next() {
		record := UserLevel{GuildID: guildID}
		if err := rows.Scan(&record.UserID, &record.XP, &record.Level, &record.MessageCount); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *Store) MessageLeaderboard(ctx context.Context, guildID string, limit int) ([]UserLevel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, xp, level, message_count
		FROM user_levels WHERE guild_id = ?
		ORDER BY message_count DESC
		LIMIT ?`, guildID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []UserLevel
	for rows.Next() {
		record := UserLevel{GuildID: guildID}
		if err := rows.Scan(&record.UserID, &record.XP, &record.Level, &record.MessageCount); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *Store) SetLevelRole(ctx context.Context, guildID string, level int, roleID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO level_roles (guild_id, level, role_id) VALUES (?, ?, ?)
		ON CONFLICT(guild_id, level) DO UPDATE SET role_id = excluded.role_id
	`, guildID, level, roleID)
	return err
}

func (s *Store) RemoveLevelRole(ctx context.Context, guildID string, level int) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM level_roles WHERE guild_id = ? AND level = ?`, guildID, level)
	return err
}

func (s *Store) ListLevelRoles(ctx context.Context, guildID string) ([]LevelRole, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT level, role_id FROM level_roles WHERE guild_id = ? ORDER BY level`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []LevelRole
	for rows.Next() {
		role := LevelRole{GuildID: guildID}
		if err := rows.Scan(&role.Level, &role.RoleID); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}
