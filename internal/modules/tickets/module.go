package tickets

import (
	"context"
	"sync"
	"time"

	"clubhouse-bot/internal/apperror"
	"clubhouse-bot/internal/config"
	"clubhouse-bot/internal/storage"

	"go.uber.org/zap"
)

// Provisioner creates the private ticket channel, under the configured
// category, visible only to the opener and the staff roles.
type Provisioner interface {
	CreateTicketChannel(guildID, userID string) (channelID string, err error)
	DeleteChannel(guildID, channelID string) error
}

type Module struct {
	store       *storage.Store
	logger      *zap.Logger
	provisioner Provisioner
	deleteDelay time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(cfg config.TicketConfig, store *storage.Store, logger *zap.Logger, provisioner Provisioner) *Module {
	return &Module{
		store:       store,
		logger:      logger,
		provisioner: provisioner,
		deleteDelay: time.Duration(cfg.DeleteDelaySeconds) * time.Second,
		locks:       make(map[string]*sync.Mutex),
	}
}

// userLock serializes Open per (guild, user). Gateway events arrive on
// separate goroutines, so the open-ticket scan and the insert must not
// interleave for the same key.
func (m *Module) userLock(guildID, userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := guildID + ":" + userID
	lock, ok := m.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[key] = lock
	}
	return lock
}

// Open creates a ticket channel for the user. A user with an open ticket in
// the guild is pointed at it instead of getting a second one.
func (m *Module) Open(ctx context.Context, guildID, userID string) (storage.Ticket, error) {
	lock := m.userLock(guildID, userID)
	lock.Lock()
	defer lock.Unlock()

	existing, found, err := m.store.OpenTicketFor(ctx, guildID, userID)
	if err != nil {
		return storage.Ticket{}, apperror.Internal("open ticket lookup", err)
	}
	if found {
		return existing, apperror.UserInput("you already have an open ticket: <#%s>", existing.ChannelID)
	}

	channelID, err := m.provisioner.CreateTicketChannel(guildID, userID)
	if err != nil {
		return storage.Ticket{}, apperror.Transient("create ticket channel", err)
	}
	ticket := storage.Ticket{
		GuildID:   guildID,
		ChannelID: channelID,
		UserID:    userID,
		CreatedAt: time.Now(),
		Status:    storage.TicketOpen,
	}
	if err := m.store.CreateTicket(ctx, ticket); err != nil {
		return storage.Ticket{}, apperror.Internal("persist ticket", err)
	}
	m.logger.Info("ticket opened",
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.String("channel_id", channelID))
	return ticket, nil
}

// Close marks the ticket closed and schedules the channel for deletion after
// the configured grace period. Only the ticket's creator or a caller with
// channel-management rights may close it.
func (m *Module) Close(ctx context.Context, guildID, channelID, callerID string, canManage bool) (storage.Ticket, error) {
	ticket, found, err := m.store.GetTicket(ctx, guildID, channelID)
	if err != nil {
		return storage.Ticket{}, apperror.Internal("ticket lookup", err)
	}
	if !found {
		return storage.Ticket{}, apperror.UserInput("this channel is not a ticket")
	}
	if !canManage && ticket.UserID != callerID {
		return storage.Ticket{}, apperror.Permission("only the ticket's creator or staff can close it")
	}

	closed, err := m.store.CloseTicket(ctx, guildID, channelID)
	if err != nil {
		return storage.Ticket{}, apperror.Internal("close ticket", err)
	}
	if !closed {
		return storage.Ticket{}, apperror.UserInput("this ticket is already closed")
	}
	ticket.Status = storage.TicketClosed

	m.logger.Info("ticket closed",
		zap.String("guild_id", guildID),
		zap.String("channel_id", channelID),
		zap.String("closed_by", callerID))

	time.AfterFunc(m.deleteDelay, func() {
		if err := m.provisioner.DeleteChannel(guildID, channelID); err != nil {
			m.logger.Warn("ticket channel delete failed",
				zap.String("guild_id", guildID),
				zap.String("channel_id", channelID),
				zap.Error(err))
		}
	})
	return ticket, nil
}
