package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db *sql.DB
}

type GuildSettings struct {
	GuildID         string
	LevelingEnabled bool
	LevelUpChannel  string
	WelcomeEnabled  bool
	WelcomeChannel  string
	WelcomeMessage  string
	LogChannel      string
}

func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Store) Migrate() error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join("migrations", file))
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			if isIgnorableMigrationError(err) {
				continue
			}
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

func (s *Store) GetGuildSettings(ctx context.Context, guildID string, defaults GuildSettings) (GuildSettings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT leveling_enabled, level_up_channel, welcome_enabled,
		welcome_channel, welcome_message, log_channel
		FROM guild_settings WHERE guild_id = ?`, guildID)

	result := defaults
	result.GuildID = guildID

	var leveling, welcome int
	err := row.Scan(
		&leveling,
		&result.LevelUpChannel,
		&welcome,
		&result.WelcomeChannel,
		&result.WelcomeMessage,
		&result.LogChannel,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, nil
		}
		return GuildSettings{}, err
	}
	result.LevelingEnabled = leveling == 1
	result.WelcomeEnabled = welcome == 1
	return result, nil
}

func (s *Store) UpsertGuildSettings(ctx context.Context, settings GuildSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guild_settings (
			guild_id, leveling_enabled, level_up_channel, welcome_enabled,
			welcome_channel, welcome_message, log_channel
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			leveling_enabled = excluded.leveling_enabled,
			level_up_channel = excluded.level_up_channel,
			welcome_enabled = excluded.welcome_enabled,
			welcome_channel = excluded.welcome_channel,
			welcome_message = excluded.welcome_message,
			log_channel = excluded.log_channel
	`,
		settings.GuildID,
		boolToInt(settings.LevelingEnabled),
		settings.LevelUpChannel,
		boolToInt(settings.WelcomeEnabled),
		settings.WelcomeChannel,
		settings.WelcomeMessage,
		settings.LogChannel,
	)
	return err
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "duplicate column name") || strings.Contains(message, "already exists")
}
