package storage

import (
	"context"
	"database/sql"
	"errors"
)

type RoleMenu struct {
	GuildID   string
	MessageID string
	ChannelID string
	Title     string
}

type RoleMenuOption struct {
	Emoji       string
	RoleID      string
	Label       string
	Description string
	Position    int
}

func (s *Store) CreateRoleMenu(ctx context.Context, menu RoleMenu, options []RoleMenuOption) error {
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
		INSERT INTO role_menus (guild_id, message_id, channel_id, title)
		VALUES (?, ?, ?, ?)
	`, menu.GuildID, menu.MessageID, menu.ChannelID, menu.Title)
	if err != nil {
		return err
	}

	for i, opt := range options {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO role_menu_options (guild_id, message_id, emoji, role_id, label, description, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(guild_id, message_id, emoji) DO UPDATE SET
				role_id = excluded.role_id,
				label = excluded.label,
				description = excluded.description
		`, menu.GuildID, menu.MessageID, opt.Emoji, opt.RoleID, opt.Label, opt.Description, i)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SetMenuOption binds an emoji to a role on an existing menu. Rebinding an
// emoji replaces its role instead of adding a duplicate entry.
func (s *Store) SetMenuOption(ctx context.Context, guildID, messageID string, opt RoleMenuOption) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO role_menu_options (guild_id, message_id, emoji, role_id, label, description, position)
		VALUES (?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(position) + 1, 0) FROM role_menu_options WHERE guild_id = ? AND message_id = ?))
		ON CONFLICT(guild_id, message_id, emoji) DO UPDATE SET
			role_id = excluded.role_id,
			label = excluded.label,
			description = excluded.description
	`, guildID, messageID, opt.Emoji, opt.RoleID, opt.Label, opt.Description, guildID, messageID)
	return err
}

func (s *Store) GetRoleMenu(ctx context.Context, guildID, messageID string) (RoleMenu, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT channel_id, title FROM role_menus
		WHERE guild_id = ? AND message_id = ?`, guildID, messageID)

	menu := RoleMenu{GuildID: guildID, MessageID: messageID}
	err := row.Scan(&menu.ChannelID, &menu.Title)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RoleMenu{}, false, nil
		}
		return RoleMenu{}, false, err
	}
	return menu, true, nil
}

func (s *Store) MenuOptions(ctx context.Context, guildID, messageID string) ([]RoleMenuOption, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT emoji, role_id, label, description, position
		FROM role_menu_options
		WHERE guild_id = ? AND message_id = ?
		ORDER BY position`, guildID, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var options []RoleMenuOption
	for rows.Next() {
		var opt RoleMenuOption
		if err := rows.Scan(&opt.Emoji, &opt.RoleID, &opt.Label, &opt.Description, &opt.Position); err != nil {
			return nil, err
		}
		options = append(options, opt)
	}
	return options, rows.Err()
}

func (s *Store) ListRoleMenus(ctx context.Context, guildID string) ([]RoleMenu, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, channel_id, title FROM role_menus WHERE guild_id = ?`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRoleMenus(rows, guildID)
}

// AllRoleMenus lists every stored menu across guilds, for startup rehydration.
func (s *Store) AllRoleMenus(ctx context.Context) ([]RoleMenu, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT guild_id, message_id, channel_id, title FROM role_menus`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var menus []RoleMenu
	for rows.Next() {
		var menu RoleMenu
		if err := rows.Scan(&menu.GuildID, &menu.MessageID, &menu.ChannelID, &menu.Title); err != nil {
			return nil, err
		}
		menus = append(menus, menu)
	}
	return menus, rows.Err()
}

func (s *Store) DeleteRoleMenu(ctx context.Context, guildID, messageID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM role_menus WHERE guild_id = ? AND message_id = ?`, guildID, messageID)
	if err != nil {
		return false, err
	}
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM role_menu_options WHERE guild_id = ? AND message_id = ?`, guildID, messageID); err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func scanRoleMenus(rows *sql.Rows, guildID string) ([]RoleMenu, error) {
	var menus []RoleMenu
	for rows.Next() {
		menu := RoleMenu{GuildID: guildID}
		if err := rows.Scan(&menu.MessageID, &menu.ChannelID, &menu.Title); err != nil {
			return nil, err
		}
		menus = append(menus, menu)
	}
	return menus, rows.Err()
}
