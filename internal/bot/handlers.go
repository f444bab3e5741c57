package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"clubhouse-bot/internal/analytics"
	"clubhouse-bot/internal/apperror"
	"clubhouse-bot/internal/eventlog"
	"clubhouse-bot/internal/modules/levels"
	"clubhouse-bot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	ticketCreateID   = "ticket_create"
	ticketCloseID    = "ticket_close"
	roleMenuSelectID = "rolemenu_select"
)

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	ctx := context.Background()

	switch interaction.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(ctx, session, interaction)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(ctx, session, interaction)
	}
}

func (b *Bot) handleCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.GuildID == "" {
		b.respondEmbed(session, interaction, b.embed("Clubhouse", "Commands only work inside a server.", b.cfg.Colors.Error, nil), true)
		return
	}

	data := interaction.ApplicationCommandData()
	options := optionMap(data.Options)

	switch data.Name {
	case "rank":
		b.handleRank(ctx, session, interaction, options)
	case "leaderboard":
		b.handleLeaderboard(ctx, session, interaction, options)
	case "invites":
		b.handleInvites(ctx, session, interaction, options)
	case "gstart":
		b.handleGiveawayStart(ctx, session, interaction, options)
	case "gend":
		b.handleGiveawayEnd(ctx, session, interaction, options)
	case "greroll":
		b.handleGiveawayReroll(ctx, session, interaction, options)
	case "ticketpanel":
		b.handleTicketPanel(session, interaction)
	case "close":
		b.handleTicketClose(ctx, session, interaction)
	case "rolemenu":
		b.handleRoleMenu(ctx, session, interaction, options)
	case "welcome":
		b.handleWelcome(ctx, session, interaction, options)
	case "levelup":
		b.handleLevelUpConfig(ctx, session, interaction, options)
	case "levelreward":
		b.handleLevelReward(ctx, session, interaction, options)
	case "logchannel":
		b.handleLogChannel(ctx, session, interaction, options)
	case "serverinfo":
		b.handleServerInfo(session, interaction)
	case "userinfo":
		b.handleUserInfo(session, interaction, options)
	case "ping":
		latency := session.HeartbeatLatency().Round(time.Millisecond)
		b.respondEmbed(session, interaction, b.embed("Pong!", fmt.Sprintf("Gateway latency: %s", latency), b.cfg.Colors.Default, nil), true)
	case "help":
		b.respondEmbed(session, interaction, b.embed("Commands", strings.Join(helpLines(), "\n"), b.cfg.Colors.Default, nil), true)
	}
}

func helpLines() []string {
	definitions := commandDefinitions()
	lines := make([]string, 0, len(definitions))
	for _, cmd := range definitions {
		lines = append(lines, fmt.Sprintf("**/%s** %s", cmd.Name, cmd.Description))
	}
	return lines
}

func (b *Bot) handleComponent(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.GuildID == "" {
		return
	}
	data := interaction.MessageComponentData()

	switch data.CustomID {
	case ticketCreateID:
		b.handleTicketCreate(ctx, session, interaction)
	case ticketCloseID:
		b.handleTicketClose(ctx, session, interaction)
	case roleMenuSelectID:
		b.handleRoleMenuSelect(ctx, session, interaction, data.Values)
	}
}

func (b *Bot) handleRank(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	target := b.targetUser(session, interaction, options)
	if target == nil {
		b.respondError(session, interaction, "Rank", apperror.Internal("resolve user", nil))
		return
	}
	record, err := b.store.GetUserLevel(ctx, interaction.GuildID, target.ID)
	if err != nil {
		b.respondError(session, interaction, "Rank", apperror.Internal("load level", err))
		return
	}
	next := levels.XPForLevel(record.Level + 1)
	fields := []*discordgo.MessageEmbedField{
		{Name: "Level", Value: fmt.Sprintf("%d", record.Level), Inline: true},
		{Name: "XP", Value: fmt.Sprintf("%d / %d", record.XP, next), Inline: true},
		{Name: "Messages", Value: fmt.Sprintf("%d", record.MessageCount), Inline: true},
	}
	b.respondEmbed(session, interaction, b.embed("Rank for "+target.Username, "", b.cfg.Colors.Default, fields), false)
}

func (b *Bot) handleLeaderboard(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	board := "levels"
	if opt, ok := options["board"]; ok {
		board = opt.StringValue()
	}

	var rows []analytics.Row
	var err error
	var title, unit string
	switch board {
	case "messages":
		title, unit = "Most active members", "messages"
		rows, err = b.analytics.TopMessages(ctx, interaction.GuildID, 10)
	case "invites":
		title, unit = "Top inviters", "invites"
		rows, err = b.analytics.TopInviters(ctx, interaction.GuildID, 10)
	default:
		title, unit = "Level leaderboard", "level"
		rows, err = b.analytics.TopLevels(ctx, interaction.GuildID, 10)
	}
	if err != nil {
		b.respondError(session, interaction, "Leaderboard", apperror.Internal("load leaderboard", err))
		return
	}
	if len(rows) == 0 {
		b.respondEmbed(session, interaction, b.embed(title, "Nothing here yet.", b.cfg.Colors.Warning, nil), false)
		return
	}

	lines := leaderboardLines(rows, unit)
	b.respondEmbed(session, interaction, b.embed(title, strings.Join(lines, "\n"), b.cfg.Colors.Default, nil), false)
}

func leaderboardLines(rows []analytics.Row, unit string) []string {
	lines := make([]string, 0, len(rows))
	for i, row := range rows {
		if unit == "level" {
			lines = append(lines, fmt.Sprintf("**%d.** <@%s> at level %d", i+1, row.UserID, row.Value))
			continue
		}
		lines = append(lines, fmt.Sprintf("**%d.** <@%s> with %d %s", i+1, row.UserID, row.Value, unit))
	}
	return lines
}

func (b *Bot) handleInvites(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	target := b.targetUser(session, interaction, options)
	if target == nil {
		b.respondError(session, interaction, "Invites", apperror.Internal("resolve user", nil))
		return
	}
	stats, err := b.store.GetInviterStats(ctx, interaction.GuildID, target.ID)
	if err != nil {
		b.respondError(session, interaction, "Invites", apperror.Internal("load invite stats", err))
		return
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Invites", Value: fmt.Sprintf("%d", stats.Effective()), Inline: true},
		{Name: "Joins", Value: fmt.Sprintf("%d", stats.Joins), Inline: true},
		{Name: "Left", Value: fmt.Sprintf("%d", stats.Left), Inline: true},
		{Name: "Fake", Value: fmt.Sprintf("%d", stats.Fake), Inline: true},
		{Name: "Rejoins", Value: fmt.Sprintf("%d", stats.Rejoins), Inline: true},
	}
	b.respondEmbed(session, interaction, b.embed("Invite stats for "+target.Username, "", b.cfg.Colors.Default, fields), false)
}

func (b *Bot) handleGiveawayStart(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	if !hasPermission(interaction, discordgo.PermissionManageServer) {
		b.respondError(session, interaction, "Giveaway", apperror.Permission("you need Manage Server to run giveaways"))
		return
	}
	duration := options["duration"].StringValue()
	winners := int(options["winners"].IntValue())
	prize := options["prize"].StringValue()
	hostID := interactionUserID(interaction)

	g, err := b.giveaways.Start(ctx, interaction.GuildID, interaction.ChannelID, hostID, duration, prize, winners)
	if err != nil {
		b.respondError(session, interaction, "Giveaway", err)
		return
	}
	b.events.Log(ctx, eventlog.LevelInfo, g.GuildID, hostID, "giveaway_start",
		fmt.Sprintf("%q for %d winner(s), ends <t:%d:R>", g.Prize, g.WinnerCount, g.EndTime.Unix()))
	b.respondEmbed(session, interaction, b.embed("Giveaway started",
		fmt.Sprintf("**%s** ends <t:%d:R>.", g.Prize, g.EndTime.Unix()), b.cfg.Colors.Success, nil), true)
}

func (b *Bot) handleGiveawayEnd(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	if !hasPermission(interaction, discordgo.PermissionManageServer) {
		b.respondError(session, interaction, "Giveaway", apperror.Permission("you need Manage Server to run giveaways"))
		return
	}
	messageID := options["message_id"].StringValue()
	winners, err := b.giveaways.End(ctx, interaction.GuildID, messageID)
	if err != nil {
		b.respondError(session, interaction, "Giveaway", err)
		return
	}
	b.respondEmbed(session, interaction, b.embed("Giveaway ended", winnersSummary(winners), b.cfg.Colors.Success, nil), true)
}

func (b *Bot) handleGiveawayReroll(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	if !hasPermission(interaction, discordgo.PermissionManageServer) {
		b.respondError(session, interaction, "Giveaway", apperror.Permission("you need Manage Server to run giveaways"))
		return
	}
	messageID := options["message_id"].StringValue()
	winners, err := b.giveaways.Reroll(ctx, interaction.GuildID, messageID)
	if err != nil {
		b.respondError(session, interaction, "Giveaway", err)
		return
	}
	b.respondEmbed(session, interaction, b.embed("Giveaway rerolled", winnersSummary(winners), b.cfg.Colors.Success, nil), true)
}

func winnersSummary(winners []string) string {
	if len(winners) == 0 {
		return "Nobody entered, no winners drawn."
	}
	mentions := make([]string, 0, len(winners))
	for _, id := range winners {
		mentions = append(mentions, "<@"+id+">")
	}
	return "Winners: " + strings.Join(mentions, ", ")
}

func (b *Bot) handleTicketPanel(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if !hasPermission(interaction, discordgo.PermissionManageServer) {
		b.respondError(session, interaction, "Tickets", apperror.Permission("you need Manage Server to post the ticket panel"))
		return
	}
	_, err := session.ChannelMessageSendComplex(interaction.ChannelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{
			b.embed("Need help?", "Press the button below to open a private ticket with the staff.", b.cfg.Colors.Default, nil),
		},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "Open ticket",
						Style:    discordgo.PrimaryButton,
						CustomID: ticketCreateID,
						Emoji:    discordgo.ComponentEmoji{Name: "\U0001F4E9"},
					},
				},
			},
		},
	})
	if err != nil {
		b.respondError(session, interaction, "Tickets", apperror.Transient("post ticket panel", err))
		return
	}
	b.respondEmbed(session, interaction, b.embed("Tickets", "Panel posted.", b.cfg.Colors.Success, nil), true)
}

func (b *Bot) handleTicketCreate(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	userID := interactionUserID(interaction)
	ticket, err := b.tickets.Open(ctx, interaction.GuildID, userID)
	if err != nil {
		b.respondError(session, interaction, "Tickets", err)
		return
	}

	_, err = session.ChannelMessageSendComplex(ticket.ChannelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{
			b.embed("Ticket", fmt.Sprintf("<@%s>, describe your issue and the staff will be with you shortly.", userID), b.cfg.Colors.Default, nil),
		},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "Close ticket",
						Style:    discordgo.DangerButton,
						CustomID: ticketCloseID,
						Emoji:    discordgo.ComponentEmoji{Name: "\U0001F512"},
					},
				},
			},
		},
	})
	if err != nil {
		b.logger.Warn("ticket intro message failed", zap.String("channel_id", ticket.ChannelID), zap.Error(err))
	}

	b.events.Log(ctx, eventlog.LevelInfo, interaction.GuildID, userID, "ticket_open", "opened <#"+ticket.ChannelID+">")
	b.respondEmbed(session, interaction, b.embed("Tickets", "Your ticket is ready: <#"+ticket.ChannelID+">", b.cfg.Colors.Success, nil), true)
}

func (b *Bot) handleTicketClose(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	userID := interactionUserID(interaction)
	canManage := hasPermission(interaction, discordgo.PermissionManageChannels)

	ticket, err := b.tickets.Close(ctx, interaction.GuildID, interaction.ChannelID, userID, canManage)
	if err != nil {
		b.respondError(session, interaction, "Tickets", err)
		return
	}
	b.events.Log(ctx, eventlog.LevelInfo, interaction.GuildID, userID, "ticket_close", "closed ticket of <@"+ticket.UserID+">")
	b.respondEmbed(session, interaction, b.embed("Tickets", "Ticket closed, this channel will be removed shortly.", b.cfg.Colors.Success, nil), false)
}

func (b *Bot) handleRoleMenu(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	if !hasPermission(interaction, discordgo.PermissionManageRoles) {
		b.respondError(session, interaction, "Role menu", apperror.Permission("you need Manage Roles to manage role menus"))
		return
	}
	action := options["action"].StringValue()

	switch action {
	case "create":
		prompt, err := b.wizard.Start(interaction.GuildID, interaction.ChannelID, interactionUserID(interaction))
		if err != nil {
			b.respondError(session, interaction, "Role menu", err)
			return
		}
		b.respondEmbed(session, interaction, b.embed("Role menu wizard", prompt, b.cfg.Colors.Default, nil), true)

	case "add":
		messageID, emoji := optionString(options, "message_id"), optionString(options, "emoji")
		if messageID == "" || emoji == "" || options["role"] == nil {
			b.respondError(session, interaction, "Role menu", apperror.UserInput("add needs message_id, emoji and role"))
			return
		}
		role := options["role"].RoleValue(session, interaction.GuildID)
		label := optionString(options, "label")
		if label == "" && role != nil {
			label = role.Name
		}
		opt := storage.RoleMenuOption{Emoji: emoji, RoleID: role.ID, Label: label}
		if err := b.menus.AddOption(ctx, interaction.GuildID, messageID, opt); err != nil {
			b.respondError(session, interaction, "Role menu", err)
			return
		}
		b.respondEmbed(session, interaction, b.embed("Role menu", fmt.Sprintf("Bound %s to <@&%s>.", emoji, role.ID), b.cfg.Colors.Success, nil), true)

	case "delete":
		messageID := optionString(options, "message_id")
		if messageID == "" {
			b.respondError(session, interaction, "Role menu", apperror.UserInput("delete needs message_id"))
			return
		}
		if err := b.menus.Delete(ctx, interaction.GuildID, messageID); err != nil {
			b.respondError(session, interaction, "Role menu", err)
			return
		}
		b.respondEmbed(session, interaction, b.embed("Role menu", "Menu deleted. You can remove the message now.", b.cfg.Colors.Success, nil), true)

	case "list":
		menus, err := b.menus.List(ctx, interaction.GuildID)
		if err != nil {
			b.respondError(session, interaction, "Role menu", apperror.Internal("list role menus", err))
			return
		}
		if len(menus) == 0 {
			b.respondEmbed(session, interaction, b.embed("Role menus", "No menus yet, use `/rolemenu create`.", b.cfg.Colors.Warning, nil), true)
			return
		}
		lines := make([]string, 0, len(menus))
		for _, menu := range menus {
			lines = append(lines, fmt.Sprintf("**%s** in <#%s> (message %s)", menu.Title, menu.ChannelID, menu.MessageID))
		}
		b.respondEmbed(session, interaction, b.embed("Role menus", strings.Join(lines, "\n"), b.cfg.Colors.Default, nil), true)
	}
}

func (b *Bot) handleRoleMenuSelect(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, chosen []string) {
	if interaction.Member == nil || interaction.Message == nil {
		return
	}
	userID := interactionUserID(interaction)
	added, removed, failed, err := b.menus.HandleSelection(ctx, interaction.GuildID, interaction.Message.ID, userID, chosen, interaction.Member.Roles)
	if err != nil {
		b.respondError(session, interaction, "Role menu", err)
		return
	}
	summary := fmt.Sprintf("Roles updated: %d added, %d removed.", len(added), len(removed))
	if len(added) == 0 && len(removed) == 0 {
		summary = "Nothing to change."
	}
	color := b.cfg.Colors.Success
	if len(failed) > 0 {
		summary += fmt.Sprintf(" Could not update %s, the role may have been deleted.", mentionList(failed))
		color = b.cfg.Colors.Warning
	}
	b.respondEmbed(session, interaction, b.embed("Role menu", summary, color, nil), true)
}

func (b *Bot) handleWelcome(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	if !hasPermission(interaction, discordgo.PermissionManageServer) {
		b.respondError(session, interaction, "Welcome", apperror.Permission("you need Manage Server to configure welcomes"))
		return
	}
	settings := b.guildSettings(ctx, interaction.GuildID)
	action := options["action"].StringValue()

	switch action {
	case "enable":
		settings.WelcomeEnabled = true
	case "disable":
		settings.WelcomeEnabled = false
	case "channel":
		opt, ok := options["channel"]
		if !ok {
			b.respondError(session, interaction, "Welcome", apperror.UserInput("pick a channel"))
			return
		}
		channel := opt.ChannelValue(session)
		if channel == nil {
			b.respondError(session, interaction, "Welcome", apperror.UserInput("pick a channel"))
			return
		}
		settings.WelcomeChannel = channel.ID
	case "message":
		text := optionString(options, "text")
		if strings.TrimSpace(text) == "" {
			b.respondError(session, interaction, "Welcome", apperror.UserInput("provide the welcome text"))
			return
		}
		settings.WelcomeMessage = text
	}

	if err := b.store.UpsertGuildSettings(ctx, settings); err != nil {
		b.respondError(session, interaction, "Welcome", apperror.Internal("save settings", err))
		return
	}
	b.respondEmbed(session, interaction, b.embed("Welcome", "Settings updated.", b.cfg.Colors.Success, nil), true)
}

func (b *Bot) handleLevelUpConfig(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	if !hasPermission(interaction, discordgo.PermissionManageServer) {
		b.respondError(session, interaction, "Leveling", apperror.Permission("you need Manage Server to configure leveling"))
		return
	}
	settings := b.guildSettings(ctx, interaction.GuildID)
	action := options["action"].StringValue()

	switch action {
	case "enable":
		settings.LevelingEnabled = true
	case "disable":
		settings.LevelingEnabled = false
	case "channel":
		if opt, ok := options["channel"]; ok {
			if channel := opt.ChannelValue(session); channel != nil {
				settings.LevelUpChannel = channel.ID
			}
		} else {
			// No channel reverts to announcing where the message was sent.
			settings.LevelUpChannel = ""
		}
	}

	if err := b.store.UpsertGuildSettings(ctx, settings); err != nil {
		b.respondError(session, interaction, "Leveling", apperror.Internal("save settings", err))
		return
	}
	b.respondEmbed(session, interaction, b.embed("Leveling", "Settings updated.", b.cfg.Colors.Success, nil), true)
}

func (b *Bot) handleLevelReward(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	if !hasPermission(interaction, discordgo.PermissionManageRoles) {
		b.respondError(session, interaction, "Level rewards", apperror.Permission("you need Manage Roles to configure rewards"))
		return
	}
	action := options["action"].StringValue()

	switch action {
	case "add":
		levelOpt, roleOpt := options["level"], options["role"]
		if levelOpt == nil || roleOpt == nil {
			b.respondError(session, interaction, "Level rewards", apperror.UserInput("add needs a level and a role"))
			return
		}
		level := int(levelOpt.IntValue())
		if level < 1 {
			b.respondError(session, interaction, "Level rewards", apperror.UserInput("the level must be at least 1"))
			return
		}
		role := roleOpt.RoleValue(session, interaction.GuildID)
		if err := b.store.SetLevelRole(ctx, interaction.GuildID, level, role.ID); err != nil {
			b.respondError(session, interaction, "Level rewards", apperror.Internal("save reward", err))
			return
		}
		b.respondEmbed(session, interaction, b.embed("Level rewards", fmt.Sprintf("<@&%s> is now granted at level %d.", role.ID, level), b.cfg.Colors.Success, nil), true)

	case "remove":
		levelOpt := options["level"]
		if levelOpt == nil {
			b.respondError(session, interaction, "Level rewards", apperror.UserInput("remove needs a level"))
			return
		}
		if err := b.store.RemoveLevelRole(ctx, interaction.GuildID, int(levelOpt.IntValue())); err != nil {
			b.respondError(session, interaction, "Level rewards", apperror.Internal("remove reward", err))
			return
		}
		b.respondEmbed(session, interaction, b.embed("Level rewards", "Reward removed.", b.cfg.Colors.Success, nil), true)

	case "list":
		rewards, err := b.store.ListLevelRoles(ctx, interaction.GuildID)
		if err != nil {
			b.respondError(session, interaction, "Level rewards", apperror.Internal("list rewards", err))
			return
		}
		if len(rewards) == 0 {
			b.respondEmbed(session, interaction, b.embed("Level rewards", "No rewards configured.", b.cfg.Colors.Warning, nil), true)
			return
		}
		lines := make([]string, 0, len(rewards))
		for _, reward := range rewards {
			lines = append(lines, fmt.Sprintf("Level %d: <@&%s>", reward.Level, reward.RoleID))
		}
		b.respondEmbed(session, interaction, b.embed("Level rewards", strings.Join(lines, "\n"), b.cfg.Colors.Default, nil), true)
	}
}

func (b *Bot) handleLogChannel(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	if !hasPermission(interaction, discordgo.PermissionManageServer) {
		b.respondError(session, interaction, "Event log", apperror.Permission("you need Manage Server to configure the event log"))
		return
	}
	settings := b.guildSettings(ctx, interaction.GuildID)

	opt, ok := options["channel"]
	if !ok {
		value := "not set"
		if settings.LogChannel != "" {
			value = "<#" + settings.LogChannel + ">"
		}
		b.respondEmbed(session, interaction, b.embed("Event log", "Current channel: "+value, b.cfg.Colors.Default, nil), true)
		return
	}
	channel := opt.ChannelValue(session)
	if channel == nil {
		b.respondError(session, interaction, "Event log", apperror.UserInput("pick a channel"))
		return
	}
	settings.LogChannel = channel.ID
	if err := b.store.UpsertGuildSettings(ctx, settings); err != nil {
		b.respondError(session, interaction, "Event log", apperror.Internal("save settings", err))
		return
	}
	b.respondEmbed(session, interaction, b.embed("Event log", "Events will be posted in <#"+channel.ID+">.", b.cfg.Colors.Success, nil), true)
}

func (b *Bot) handleServerInfo(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	guild, err := session.State.Guild(interaction.GuildID)
	if err != nil {
		b.respondError(session, interaction, "Server info", apperror.Internal("load guild", err))
		return
	}
	created, _ := discordgo.SnowflakeTimestamp(guild.ID)
	fields := []*discordgo.MessageEmbedField{
		{Name: "Members", Value: fmt.Sprintf("%d", guild.MemberCount), Inline: true},
		{Name: "Channels", Value: fmt.Sprintf("%d", len(guild.Channels)), Inline: true},
		{Name: "Roles", Value: fmt.Sprintf("%d", len(guild.Roles)), Inline: true},
		{Name: "Created", Value: fmt.Sprintf("<t:%d:D>", created.Unix()), Inline: true},
		{Name: "Owner", Value: "<@" + guild.OwnerID + ">", Inline: true},
	}
	b.respondEmbed(session, interaction, b.embed(guild.Name, "", b.cfg.Colors.Default, fields), false)
}

func (b *Bot) handleUserInfo(session *discordgo.Session, interaction *discordgo.InteractionCreate, options map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	target := b.targetUser(session, interaction, options)
	if target == nil {
		b.respondError(session, interaction, "User info", apperror.Internal("resolve user", nil))
		return
	}
	created, _ := discordgo.SnowflakeTimestamp(target.ID)
	fields := []*discordgo.MessageEmbedField{
		{Name: "ID", Value: target.ID, Inline: true},
		{Name: "Account created", Value: fmt.Sprintf("<t:%d:D>", created.Unix()), Inline: true},
	}
	if member, err := session.State.Member(interaction.GuildID, target.ID); err == nil && !member.JoinedAt.IsZero() {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Joined", Value: fmt.Sprintf("<t:%d:D>", member.JoinedAt.Unix()), Inline: true,
		})
	}
	b.respondEmbed(session, interaction, b.embed(target.Username, "", b.cfg.Colors.Default, fields), false)
}

func (b *Bot) handleWizardMessage(ctx context.Context, session *discordgo.Session, msg *discordgo.MessageCreate) {
	reply, spec, handled := b.wizard.HandleMessage(msg.ChannelID, msg.Author.ID, msg.Content)
	if !handled {
		return
	}
	if reply != "" {
		if _, err := session.ChannelMessageSend(msg.ChannelID, reply); err != nil {
			b.logger.Warn("wizard reply failed", zap.String("channel_id", msg.ChannelID), zap.Error(err))
		}
		return
	}
	if spec == nil {
		return
	}

	menu, err := b.menus.Create(ctx, spec.GuildID, spec.ChannelID, spec.Title, spec.Options)
	if err != nil {
		_, _ = session.ChannelMessageSend(msg.ChannelID, apperror.UserMessage(err))
		return
	}
	b.events.Log(ctx, eventlog.LevelInfo, spec.GuildID, msg.Author.ID, "rolemenu_create",
		fmt.Sprintf("%q with %d roles", menu.Title, len(spec.Options)))
}

func (b *Bot) handlePrefixCommand(ctx context.Context, session *discordgo.Session, msg *discordgo.MessageCreate) {
	fields := strings.Fields(strings.TrimPrefix(msg.Content, b.cfg.Prefix))
	if len(fields) == 0 {
		return
	}

	switch strings.ToLower(fields[0]) {
	case "rank":
		record, err := b.store.GetUserLevel(ctx, msg.GuildID, msg.Author.ID)
		if err != nil {
			return
		}
		next := levels.XPForLevel(record.Level + 1)
		_, _ = session.ChannelMessageSendEmbed(msg.ChannelID, b.embed("Rank for "+msg.Author.Username,
			fmt.Sprintf("Level **%d** with %d / %d XP over %d messages.", record.Level, record.XP, next, record.MessageCount),
			b.cfg.Colors.Default, nil))
	case "invites":
		stats, err := b.store.GetInviterStats(ctx, msg.GuildID, msg.Author.ID)
		if err != nil {
			return
		}
		_, _ = session.ChannelMessageSendEmbed(msg.ChannelID, b.embed("Invite stats for "+msg.Author.Username,
			fmt.Sprintf("%d invites (%d joins, %d left, %d fake).", stats.Effective(), stats.Joins, stats.Left, stats.Fake),
			b.cfg.Colors.Default, nil))
	case "leaderboard":
		rows, err := b.analytics.TopLevels(ctx, msg.GuildID, 10)
		if err != nil || len(rows) == 0 {
			return
		}
		lines := leaderboardLines(rows, "level")
		_, _ = session.ChannelMessageSendEmbed(msg.ChannelID, b.embed("Level leaderboard", strings.Join(lines, "\n"), b.cfg.Colors.Default, nil))
	case "ping":
		latency := session.HeartbeatLatency().Round(time.Millisecond)
		_, _ = session.ChannelMessageSend(msg.ChannelID, fmt.Sprintf("Pong! %s", latency))
	}
}

func (b *Bot) targetUser(session *discordgo.Session, interaction *discordgo.InteractionCreate, options map[string]*discordgo.ApplicationCommandInteractionDataOption) *discordgo.User {
	if opt, ok := options["user"]; ok {
		if user := opt.UserValue(session); user != nil {
			return user
		}
	}
	if interaction.Member != nil {
		return interaction.Member.User
	}
	return interaction.User
}

func interactionUserID(interaction *discordgo.InteractionCreate) string {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User.ID
	}
	if interaction.User != nil {
		return interaction.User.ID
	}
	return ""
}

func hasPermission(interaction *discordgo.InteractionCreate, permission int64) bool {
	return interaction.Member != nil && interaction.Member.Permissions&permission != 0
}

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	result := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		result[opt.Name] = opt
	}
	return result
}

func optionString(options map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if opt, ok := options[name]; ok {
		return opt.StringValue()
	}
	return ""
}

func (b *Bot) respondError(session *discordgo.Session, interaction *discordgo.InteractionCreate, title string, err error) {
	b.logger.Warn("command failed", zap.String("command", title), zap.Error(err))
	b.respondEmbed(session, interaction, b.embed(title, apperror.UserMessage(err), b.cfg.Colors.Error, nil), true)
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
}
