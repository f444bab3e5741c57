package invites

import (
	"context"
	"sync"
	"time"

	"clubhouse-bot/internal/storage"

	"go.uber.org/zap"
)

// Invite is a point-in-time view of one invite code.
type Invite struct {
	Code      string
	Uses      int
	InviterID string
}

// Fetcher is the slice of gateway surface the tracker needs. The bot wires a
// discordgo-backed implementation; tests use a stub.
type Fetcher interface {
	GuildInvites(guildID string) ([]Invite, error)
	// VanityInvite reports the guild's vanity invite, if the guild has one.
	VanityInvite(guildID string) (Invite, bool, error)
}

type Attribution struct {
	Attributed bool
	Code       string
	InviterID  string
	Vanity     bool
	Fake       bool
	Rejoin     bool
}

const youngAccountAge = 7 * 24 * time.Hour

type cachedInvite struct {
	uses      int
	inviterID string
}

type Module struct {
	store   *storage.Store
	logger  *zap.Logger
	fetcher Fetcher

	mu    sync.Mutex
	cache map[string]map[string]cachedInvite
}

func New(store *storage.Store, logger *zap.Logger, fetcher Fetcher) *Module {
	return &Module{
		store:   store,
		logger:  logger,
		fetcher: fetcher,
		cache:   make(map[string]map[string]cachedInvite),
	}
}

// RebuildCache replaces the guild's snapshot from a fresh fetch. Called on
// ready and when joining a guild.
func (m *Module) RebuildCache(guildID string) error {
	current, err := m.fetcher.GuildInvites(guildID)
	if err != nil {
		return err
	}
	snapshot := make(map[string]cachedInvite, len(current))
	for _, invite := range current {
		snapshot[invite.Code] = cachedInvite{uses: invite.Uses, inviterID: invite.InviterID}
	}
	if vanity, ok, err := m.fetcher.VanityInvite(guildID); err == nil && ok {
		snapshot[vanity.Code] = cachedInvite{uses: vanity.Uses}
	}

	m.mu.Lock()
	m.cache[guildID] = snapshot
	m.mu.Unlock()
	m.logger.Info("invite cache rebuilt", zap.String("guild_id", guildID), zap.Int("invites", len(snapshot)))
	return nil
}

func (m *Module) HandleInviteCreate(guildID, code string, uses int, inviterID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := m.cache[guildID]
	if snapshot == nil {
		snapshot = make(map[string]cachedInvite)
		m.cache[guildID] = snapshot
	}
	snapshot[code] = cachedInvite{uses: uses, inviterID: inviterID}
}

func (m *Module) HandleInviteDelete(guildID, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache[guildID], code)
}

func (m *Module) HandleGuildRemove(guildID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, guildID)
}

// HandleMemberJoin attributes a join to an invite by diffing use counts
// against the cached snapshot. A vanity-URL increase wins over ordinary
// invites. When several codes changed in the same scan the first one in
// fetch order is taken; that tie-break is arbitrary, not a guarantee.
// The cache is replaced with the fresh snapshot even when attribution
// fails, so drift never accumulates.
func (m *Module) HandleMemberJoin(ctx context.Context, guildID, userID string, accountCreated, joinedAt time.Time) (Attribution, error) {
	result := Attribution{
		Fake: joinedAt.Sub(accountCreated) < youngAccountAge,
	}
	if rejoin, err := m.store.HasJoinedBefore(ctx, guildID, userID); err == nil {
		result.Rejoin = rejoin
	} else {
		m.logger.Warn("rejoin check failed", zap.String("guild_id", guildID), zap.Error(err))
	}

	current, err := m.fetcher.GuildInvites(guildID)
	if err != nil {
		return Attribution{}, err
	}
	snapshot := make(map[string]cachedInvite, len(current))
	for _, invite := range current {
		snapshot[invite.Code] = cachedInvite{uses: invite.Uses, inviterID: invite.InviterID}
	}

	m.mu.Lock()
	cached := m.cache[guildID]
	m.mu.Unlock()

	if vanity, ok, vanityErr := m.fetcher.VanityInvite(guildID); vanityErr == nil && ok {
		snapshot[vanity.Code] = cachedInvite{uses: vanity.Uses}
		if vanity.Uses > cached[vanity.Code].uses {
			result.Attributed = true
			result.Vanity = true
			result.Code = vanity.Code
		}
	}

	if !result.Attributed {
		for _, invite := range current {
			prev, seen := cached[invite.Code]
			if (!seen && invite.Uses >= 1) || (seen && invite.Uses > prev.uses) {
				result.Attributed = true
				result.Code = invite.Code
				result.InviterID = invite.InviterID
				break
			}
		}
	}

	m.mu.Lock()
	m.cache[guildID] = snapshot
	m.mu.Unlock()

	if result.Attributed && result.InviterID != "" {
		record := storage.Invitee{
			GuildID:   guildID,
			InviterID: result.InviterID,
			UserID:    userID,
			JoinedAt:  joinedAt,
			Fake:      result.Fake,
			Rejoin:    result.Rejoin,
		}
		if err := m.store.TrackJoin(ctx, record); err != nil {
			return result, err
		}
	}
	return result, nil
}

// HandleMemberLeave charges the leave to whichever inviter brought the user
// in. Unknown users (vanity joins, members predating tracking) are a silent
// no-op.
func (m *Module) HandleMemberLeave(ctx context.Context, guildID, userID string) (bool, error) {
	return m.store.TrackLeave(ctx, guildID, userID)
}
