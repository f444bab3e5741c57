package giveaways

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"clubhouse-bot/internal/apperror"
	"clubhouse-bot/internal/config"
	"clubhouse-bot/internal/storage"
	"clubhouse-bot/internal/utils"

	"go.uber.org/zap"
)

// Messenger is the Discord surface the module needs: posting the giveaway
// message, editing it when the draw happens, and announcing reroll winners.
type Messenger interface {
	Publish(g storage.Giveaway) (messageID string, err error)
	Conclude(g storage.Giveaway, winnerIDs []string) error
	AnnounceReroll(g storage.Giveaway, winnerIDs []string) error
}

// MemberSource reports whether a user is still in the guild. Winners who left
// between entering and the draw are dropped.
type MemberSource interface {
	IsMember(guildID, userID string) bool
}

type Module struct {
	store     *storage.Store
	logger    *zap.Logger
	messenger Messenger
	members   MemberSource
	emoji     string

	mu    sync.Mutex
	rng   *rand.Rand
	botID string
}

func New(cfg config.GiveawayConfig, store *storage.Store, logger *zap.Logger, messenger Messenger, members MemberSource) *Module {
	return &Module{
		store:     store,
		logger:    logger,
		messenger: messenger,
		members:   members,
		emoji:     cfg.ReactionEmoji,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetBotID records the bot's own user ID so its seed reaction on the giveaway
// message is not counted as an entry.
func (m *Module) SetBotID(id string) {
	m.mu.Lock()
	m.botID = id
	m.mu.Unlock()
}

func (m *Module) Emoji() string {
	return m.emoji
}

// Start validates the request, posts the giveaway message and persists the
// record keyed by the posted message ID.
func (m *Module) Start(ctx context.Context, guildID, channelID, hostID, duration, prize string, winnerCount int) (storage.Giveaway, error) {
	if winnerCount < 1 {
		return storage.Giveaway{}, apperror.UserInput("winner count must be at least 1")
	}
	if strings.TrimSpace(prize) == "" {
		return storage.Giveaway{}, apperror.UserInput("the prize cannot be empty")
	}
	d, err := utils.ParseDuration(duration)
	if err != nil {
		if errors.Is(err, utils.ErrBadDuration) {
			return storage.Giveaway{}, apperror.UserInput("invalid duration %q, use forms like 10m, 2h or 1d", duration)
		}
		return storage.Giveaway{}, err
	}

	g := storage.Giveaway{
		GuildID:     guildID,
		ChannelID:   channelID,
		Prize:       strings.TrimSpace(prize),
		HostID:      hostID,
		EndTime:     time.Now().Add(d),
		WinnerCount: winnerCount,
	}
	messageID, err := m.messenger.Publish(g)
	if err != nil {
		return storage.Giveaway{}, apperror.Transient("publish giveaway", err)
	}
	g.MessageID = messageID
	if err := m.store.CreateGiveaway(ctx, g); err != nil {
		return storage.Giveaway{}, apperror.Internal("create giveaway", err)
	}
	return g, nil
}

// HandleReactionAdd records an entry. Reactions on unrelated messages, on
// already ended giveaways, with the wrong emoji, or from the bot itself are
// ignored.
func (m *Module) HandleReactionAdd(ctx context.Context, guildID, messageID, userID, emoji string) error {
	if !m.relevant(userID, emoji) {
		return nil
	}
	g, found, err := m.store.GetGiveaway(ctx, guildID, messageID)
	if err != nil {
		return err
	}
	if !found || g.Ended {
		return nil
	}
	return m.store.AddParticipant(ctx, guildID, messageID, userID)
}

func (m *Module) HandleReactionRemove(ctx context.Context, guildID, messageID, userID, emoji string) error {
	if !m.relevant(userID, emoji) {
		return nil
	}
	g, found, err := m.store.GetGiveaway(ctx, guildID, messageID)
	if err != nil {
		return err
	}
	if !found || g.Ended {
		return nil
	}
	return m.store.RemoveParticipant(ctx, guildID, messageID, userID)
}

func (m *Module) relevant(userID, emoji string) bool {
	if emoji != m.emoji {
		return false
	}
	m.mu.Lock()
	bot := m.botID
	m.mu.Unlock()
	return userID != bot
}

// Sweep ends every giveaway whose deadline has passed. Failures are logged
// and do not stop the rest of the batch.
func (m *Module) Sweep(ctx context.Context) {
	due, err := m.store.DueGiveaways(ctx, time.Now())
	if err != nil {
		m.logger.Error("giveaway sweep query failed", zap.Error(err))
		return
	}
	for _, g := range due {
		if _, err := m.End(ctx, g.GuildID, g.MessageID); err != nil {
			m.logger.Warn("giveaway end failed",
				zap.String("guild_id", g.GuildID),
				zap.String("message_id", g.MessageID),
				zap.Error(err))
		}
	}
}

// End draws the winners and marks the giveaway ended. The ended flag is
// claimed up front so a manual end racing the sweeper draws at most once.
// A giveaway whose message can no longer be updated still counts as ended.
func (m *Module) End(ctx context.Context, guildID, messageID string) ([]string, error) {
	g, found, err := m.store.GetGiveaway(ctx, guildID, messageID)
	if err != nil {
		return nil, apperror.Internal("load giveaway", err)
	}
	if !found {
		return nil, apperror.UserInput("no giveaway found for that message")
	}
	claimed, err := m.store.ClaimEnded(ctx, guildID, messageID)
	if err != nil {
		return nil, apperror.Internal("claim giveaway", err)
	}
	if !claimed {
		return nil, apperror.UserInput("that giveaway has already ended")
	}
	g.Ended = true

	winners, err := m.draw(ctx, g)
	if err != nil {
		return nil, err
	}
	if err := m.messenger.Conclude(g, winners); err != nil {
		m.logger.Warn("giveaway message update failed",
			zap.String("guild_id", guildID),
			zap.String("message_id", messageID),
			zap.Error(err))
	}
	return winners, nil
}

// Reroll draws a fresh winner set from the recorded entrants. It works on
// running and ended giveaways alike and leaves the record untouched.
func (m *Module) Reroll(ctx context.Context, guildID, messageID string) ([]string, error) {
	g, found, err := m.store.GetGiveaway(ctx, guildID, messageID)
	if err != nil {
		return nil, apperror.Internal("load giveaway", err)
	}
	if !found {
		return nil, apperror.UserInput("no giveaway found for that message")
	}
	winners, err := m.draw(ctx, g)
	if err != nil {
		return nil, err
	}
	if len(winners) == 0 {
		return nil, apperror.UserInput("nobody entered that giveaway")
	}
	if err := m.messenger.AnnounceReroll(g, winners); err != nil {
		return winners, apperror.Transient("announce reroll", err)
	}
	return winners, nil
}

func (m *Module) draw(ctx context.Context, g storage.Giveaway) ([]string, error) {
	entrants, err := m.store.Participants(ctx, g.GuildID, g.MessageID)
	if err != nil {
		return nil, apperror.Internal("load participants", err)
	}
	eligible := entrants[:0:0]
	for _, userID := range entrants {
		if m.members.IsMember(g.GuildID, userID) {
			eligible = append(eligible, userID)
		}
	}
	m.mu.Lock()
	winners := utils.Sample(m.rng, eligible, g.WinnerCount)
	m.mu.Unlock()
	return winners, nil
}
