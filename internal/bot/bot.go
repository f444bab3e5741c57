package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"clubhouse-bot/internal/analytics"
	"clubhouse-bot/internal/config"
	"clubhouse-bot/internal/eventlog"
	"clubhouse-bot/internal/modules/giveaways"
	"clubhouse-bot/internal/modules/invites"
	"clubhouse-bot/internal/modules/levels"
	"clubhouse-bot/internal/modules/rolemenu"
	"clubhouse-bot/internal/modules/tickets"
	"clubhouse-bot/internal/storage"
	"clubhouse-bot/internal/wizard"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *storage.Store
	events    *eventlog.Logger
	analytics *analytics.Service
	session   *discordgo.Session
	levels    *levels.Module
	invites   *invites.Module
	giveaways *giveaways.Module
	tickets   *tickets.Module
	menus     *rolemenu.Module
	wizard    *wizard.Manager
	sweepStop chan struct{}
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, events *eventlog.Logger, analyticsService *analytics.Service) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildInvites |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsMessageContent

	b := &Bot{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		events:    events,
		analytics: analyticsService,
		session:   session,
		sweepStop: make(chan struct{}),
	}

	adapter := &discordAdapter{bot: b}
	b.levels = levels.New(cfg.Leveling, store)
	b.invites = invites.New(store, logger, adapter)
	b.giveaways = giveaways.New(cfg.Giveaways, store, logger, adapter, adapter)
	b.tickets = tickets.New(cfg.Tickets, store, logger, adapter)
	b.menus = rolemenu.New(store, logger, adapter, adapter)
	b.wizard = wizard.New(cfg.Wizard, logger)

	if b.events != nil {
		b.events.SetNotifier(func(ctx context.Context, entry eventlog.Entry) {
			b.notifyEvent(ctx, entry)
		})
	}

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onGuildMemberRemove)
	b.session.AddHandler(b.onGuildCreate)
	b.session.AddHandler(b.onGuildDelete)
	b.session.AddHandler(b.onInviteCreate)
	b.session.AddHandler(b.onInviteDelete)
	b.session.AddHandler(b.onMessageReactionAdd)
	b.session.AddHandler(b.onMessageReactionRemove)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	if err := b.registerCommands(); err != nil {
		return err
	}

	b.startGiveawaySweeper()

	return nil
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	close(b.sweepStop)
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username))
	b.giveaways.SetBotID(session.State.User.ID)
	for _, guild := range event.Guilds {
		if guild == nil {
			continue
		}
		if err := b.invites.RebuildCache(guild.ID); err != nil {
			b.logger.Warn("invite cache rebuild failed", zap.String("guild_id", guild.ID), zap.Error(err))
		}
	}
	go b.rehydrateRoleMenus(context.Background())
}

// rehydrateRoleMenus checks the stored menus against Discord and drops
// bindings whose message is gone, so stale rows never route selections.
func (b *Bot) rehydrateRoleMenus(ctx context.Context) {
	menus, err := b.menus.Menus(ctx)
	if err != nil {
		b.logger.Error("role menu rehydration failed", zap.Error(err))
		return
	}
	alive := 0
	for _, menu := range menus {
		if _, err := b.session.ChannelMessage(menu.ChannelID, menu.MessageID); err != nil {
			b.logger.Info("dropping dangling role menu",
				zap.String("guild_id", menu.GuildID),
				zap.String("message_id", menu.MessageID))
			if err := b.menus.Delete(ctx, menu.GuildID, menu.MessageID); err != nil {
				b.logger.Warn("dangling role menu cleanup failed", zap.Error(err))
			}
			continue
		}
		alive++
	}
	b.logger.Info("role menus rehydrated", zap.Int("count", alive))
}

func (b *Bot) onGuildCreate(session *discordgo.Session, event *discordgo.GuildCreate) {
	_ = session
	if event.Guild == nil {
		return
	}
	if err := b.invites.RebuildCache(event.Guild.ID); err != nil {
		b.logger.Warn("invite cache rebuild failed", zap.String("guild_id", event.Guild.ID), zap.Error(err))
	}
}

func (b *Bot) onGuildDelete(session *discordgo.Session, event *discordgo.GuildDelete) {
	_ = session
	if event.Guild == nil {
		return
	}
	b.invites.HandleGuildRemove(event.Guild.ID)
}

func (b *Bot) onInviteCreate(session *discordgo.Session, event *discordgo.InviteCreate) {
	_ = session
	inviterID := ""
	if event.Inviter != nil {
		inviterID = event.Inviter.ID
	}
	b.invites.HandleInviteCreate(event.GuildID, event.Code, event.Uses, inviterID)
}

func (b *Bot) onInviteDelete(session *discordgo.Session, event *discordgo.InviteDelete) {
	_ = session
	b.invites.HandleInviteDelete(event.GuildID, event.Code)
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot {
		return
	}
	if msg.GuildID == "" {
		return
	}

	ctx := context.Background()

	if b.wizard.Active(msg.ChannelID, msg.Author.ID) {
		b.handleWizardMessage(ctx, session, msg)
		return
	}

	if strings.HasPrefix(msg.Content, b.cfg.Prefix) {
		b.handlePrefixCommand(ctx, session, msg)
		return
	}

	settings := b.guildSettings(ctx, msg.GuildID)
	if !settings.LevelingEnabled {
		return
	}
	levelUp, err := b.levels.HandleMessage(ctx, msg.GuildID, msg.Author.ID)
	if err != nil {
		b.logger.Warn("xp update failed", zap.String("guild_id", msg.GuildID), zap.Error(err))
		return
	}
	if levelUp != nil {
		b.announceLevelUp(ctx, settings, msg.ChannelID, levelUp)
	}
}

func (b *Bot) announceLevelUp(ctx context.Context, settings storage.GuildSettings, messageChannelID string, levelUp *levels.LevelUp) {
	channelID := settings.LevelUpChannel
	if channelID == "" {
		channelID = messageChannelID
	}
	if channelID == "" {
		channelID = b.cfg.DefaultLevelUpChannel
	}
	if channelID != "" {
		embed := b.embed("Level up!",
			fmt.Sprintf("<@%s> reached level **%d**", levelUp.UserID, levelUp.Level),
			b.cfg.Colors.Success, nil)
		if _, err := b.session.ChannelMessageSendEmbed(channelID, embed); err != nil {
			b.logger.Warn("level up announcement failed", zap.String("channel_id", channelID), zap.Error(err))
		}
	}

	b.grantLevelRewards(ctx, levelUp)
	b.events.Log(ctx, eventlog.LevelInfo, levelUp.GuildID, levelUp.UserID,
		"level_up", fmt.Sprintf("reached level %d (%d XP)", levelUp.Level, levelUp.XP))
}

// grantLevelRewards hands out every reward role at or below the new level,
// so members who skipped a boundary still catch up.
func (b *Bot) grantLevelRewards(ctx context.Context, levelUp *levels.LevelUp) {
	rewards, err := b.store.ListLevelRoles(ctx, levelUp.GuildID)
	if err != nil {
		b.logger.Warn("level rewards lookup failed", zap.String("guild_id", levelUp.GuildID), zap.Error(err))
		return
	}
	for _, reward := range rewards {
		if reward.Level > levelUp.Level {
			continue
		}
		if err := b.session.GuildMemberRoleAdd(levelUp.GuildID, levelUp.UserID, reward.RoleID); err != nil {
			b.logger.Warn("level reward grant failed",
				zap.String("guild_id", levelUp.GuildID),
				zap.String("role_id", reward.RoleID),
				zap.Error(err))
		}
	}
}

func (b *Bot) onGuildMemberAdd(session *discordgo.Session, event *discordgo.GuildMemberAdd) {
	if event.GuildID == "" || event.User == nil {
		return
	}
	ctx := context.Background()
	settings := b.guildSettings(ctx, event.GuildID)

	if settings.WelcomeEnabled && settings.WelcomeChannel != "" {
		text := renderWelcome(settings.WelcomeMessage, event.User, session, event.GuildID)
		var fields []*discordgo.MessageEmbedField
		if guild, err := session.State.Guild(event.GuildID); err == nil {
			fields = append(fields, &discordgo.MessageEmbedField{
				Name: "Members", Value: fmt.Sprintf("%d", guild.MemberCount), Inline: true,
			})
		}
		embed := b.embed("Welcome!", text, b.cfg.Colors.Success, fields)
		if _, err := session.ChannelMessageSendEmbed(settings.WelcomeChannel, embed); err != nil {
			b.logger.Warn("welcome message failed", zap.String("guild_id", event.GuildID), zap.Error(err))
		}
	}

	accountCreated, err := discordgo.SnowflakeTimestamp(event.User.ID)
	if err != nil {
		accountCreated = time.Now()
	}
	attribution, err := b.invites.HandleMemberJoin(ctx, event.GuildID, event.User.ID, accountCreated, time.Now())
	if err != nil {
		b.logger.Warn("join attribution failed", zap.String("guild_id", event.GuildID), zap.Error(err))
		return
	}
	if attribution.Attributed {
		details := fmt.Sprintf("joined via %s", attribution.Code)
		if attribution.Vanity {
			details = "joined via the vanity URL"
		} else if attribution.InviterID != "" {
			details = fmt.Sprintf("invited by <@%s> (code %s)", attribution.InviterID, attribution.Code)
		}
		if attribution.Fake {
			details += ", account under a week old"
		}
		if attribution.Rejoin {
			details += ", returning member"
		}
		b.events.Log(ctx, eventlog.LevelInfo, event.GuildID, event.User.ID, "member_join", details)
	}
}

func (b *Bot) onGuildMemberRemove(session *discordgo.Session, event *discordgo.GuildMemberRemove) {
	_ = session
	if event.GuildID == "" || event.User == nil {
		return
	}
	ctx := context.Background()
	found, err := b.invites.HandleMemberLeave(ctx, event.GuildID, event.User.ID)
	if err != nil {
		b.logger.Warn("leave tracking failed", zap.String("guild_id", event.GuildID), zap.Error(err))
		return
	}
	if found {
		b.events.Log(ctx, eventlog.LevelInfo, event.GuildID, event.User.ID, "member_leave", "tracked member left")
	}
}

func (b *Bot) onMessageReactionAdd(session *discordgo.Session, event *discordgo.MessageReactionAdd) {
	_ = session
	if event.GuildID == "" {
		return
	}
	ctx := context.Background()
	if err := b.giveaways.HandleReactionAdd(ctx, event.GuildID, event.MessageID, event.UserID, event.Emoji.Name); err != nil {
		b.logger.Warn("giveaway entry failed", zap.String("message_id", event.MessageID), zap.Error(err))
	}
}

func (b *Bot) onMessageReactionRemove(session *discordgo.Session, event *discordgo.MessageReactionRemove) {
	_ = session
	if event.GuildID == "" {
		return
	}
	ctx := context.Background()
	if err := b.giveaways.HandleReactionRemove(ctx, event.GuildID, event.MessageID, event.UserID, event.Emoji.Name); err != nil {
		b.logger.Warn("giveaway withdrawal failed", zap.String("message_id", event.MessageID), zap.Error(err))
	}
}

func (b *Bot) startGiveawaySweeper() {
	interval := time.Duration(b.cfg.Giveaways.SweepIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-b.sweepStop:
				return
			case <-ticker.C:
				b.giveaways.Sweep(context.Background())
			}
		}
	}()
}

func (b *Bot) guildSettings(ctx context.Context, guildID string) storage.GuildSettings {
	defaults := storage.GuildSettings{
		GuildID:         guildID,
		LevelingEnabled: true,
		LevelUpChannel:  "",
		WelcomeMessage:  "Welcome {user} to {server}!",
	}

	settings, err := b.store.GetGuildSettings(ctx, guildID, defaults)
	if err != nil {
		b.logger.Warn("guild settings fallback", zap.Error(err))
		return defaults
	}
	return settings
}

func (b *Bot) notifyEvent(ctx context.Context, entry eventlog.Entry) {
	settings := b.guildSettings(ctx, entry.GuildID)
	if settings.LogChannel == "" {
		return
	}
	color := b.cfg.Colors.Default
	if entry.Level == eventlog.LevelWarn {
		color = b.cfg.Colors.Warning
	}
	fields := []*discordgo.MessageEmbedField{}
	if entry.UserID != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Member", Value: "<@" + entry.UserID + ">", Inline: true})
	}
	embed := b.embed(strings.ReplaceAll(entry.Event, "_", " "), entry.Details, color, fields)
	if _, err := b.session.ChannelMessageSendEmbed(settings.LogChannel, embed); err != nil {
		b.logger.Warn("event log delivery failed", zap.String("channel_id", settings.LogChannel), zap.Error(err))
	}
}

func renderWelcome(template string, user *discordgo.User, session *discordgo.Session, guildID string) string {
	serverName := ""
	if guild, err := session.State.Guild(guildID); err == nil {
		serverName = guild.Name
	}
	text := strings.ReplaceAll(template, "{user}", user.Mention())
	text = strings.ReplaceAll(text, "{username}", user.Username)
	text = strings.ReplaceAll(text, "{server}", serverName)
	return text
}

func (b *Bot) embed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields:      fields,
	}
}
