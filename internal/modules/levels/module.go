package levels

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"clubhouse-bot/internal/config"
	"clubhouse-bot/internal/storage"
	"clubhouse-bot/internal/utils"
)

// LevelUp is emitted when a member crosses a level boundary. The consumer
// owns notification delivery and any role rewards.
type LevelUp struct {
	GuildID string
	UserID  string
	Level   int
	XP      int
}

type Module struct {
	store    *storage.Store
	cooldown *utils.CooldownGate
	base     int
	bonusMax int

	mu  sync.Mutex
	rng *rand.Rand
}

func New(cfg config.LevelingConfig, store *storage.Store) *Module {
	return &Module{
		store:    store,
		cooldown: utils.NewCooldownGate(time.Duration(cfg.CooldownSeconds) * time.Second),
		base:     cfg.XPBase,
		bonusMax: cfg.XPBonusMax,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// HandleMessage processes one qualifying guild message. The message counter
// always advances; XP is awarded at most once per cooldown window. The
// updated record is persisted before returning.
func (m *Module) HandleMessage(ctx context.Context, guildID, userID string) (*LevelUp, error) {
	record, err := m.store.GetUserLevel(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}
	record.MessageCount++

	var event *LevelUp
	if m.cooldown.Allow(guildID+":"+userID, time.Now()) {
		record.XP += m.rollXP()
		newLevel := LevelFromXP(record.XP)
		if newLevel > record.Level {
			event = &LevelUp{GuildID: guildID, UserID: userID, Level: newLevel, XP: record.XP}
		}
		record.Level = newLevel
	}

	if err := m.store.UpsertUserLevel(ctx, record); err != nil {
		return nil, err
	}
	return event, nil
}

func (m *Module) rollXP() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.base + m.rng.Intn(m.bonusMax+1)
}

// LevelFromXP computes level = floor(sqrt(xp/100)). The loops compensate for
// float rounding at exact square boundaries.
func LevelFromXP(xp int) int {
	if xp <= 0 {
		return 0
	}
	level := int(math.Sqrt(float64(xp) / 100))
	for XPForLevel(level+1) <= xp {
		level++
	}
	for level > 0 && XPForLevel(level) > xp {
		level--
	}
	return level
}

// XPForLevel is the cumulative XP required to reach a level.
func XPForLevel(level int) int {
	return level * level * 100
}
