package bot

import "github.com/bwmarrin/discordgo"

func commandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "rank",
			Description: "Show a member's level and XP",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "member to look up, defaults to you",
					Required:    false,
				},
			},
		},
		{
			Name:        "leaderboard",
			Description: "Show the server leaderboard",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "board",
					Description: "which leaderboard",
					Required:    false,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "levels", Value: "levels"},
						{Name: "messages", Value: "messages"},
						{Name: "invites", Value: "invites"},
					},
				},
			},
		},
		{
			Name:        "invites",
			Description: "Show a member's invite stats",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "member to look up, defaults to you",
					Required:    false,
				},
			},
		},
		{
			Name:        "gstart",
			Description: "Start a giveaway",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "duration",
					Description: "how long it runs, like 10m, 2h or 1d",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "winners",
					Description: "number of winners",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "prize",
					Description: "what is being given away",
					Required:    true,
				},
			},
		},
		{
			Name:        "gend",
			Description: "End a giveaway early",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "message_id",
					Description: "the giveaway message ID",
					Required:    true,
				},
			},
		},
		{
			Name:        "greroll",
			Description: "Reroll winners for an ended giveaway",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "message_id",
					Description: "the giveaway message ID",
					Required:    true,
				},
			},
		},
		{
			Name:        "ticketpanel",
			Description: "Post the ticket panel in this channel",
		},
		{
			Name:        "close",
			Description: "Close this ticket",
		},
		{
			Name:        "rolemenu",
			Description: "Manage self-assign role menus",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "create, add, delete, or list",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "create", Value: "create"},
						{Name: "add", Value: "add"},
						{Name: "delete", Value: "delete"},
						{Name: "list", Value: "list"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "message_id",
					Description: "target menu message, for add and delete",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "emoji",
					Description: "emoji for the new option",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        "role",
					Description: "role for the new option",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "label",
					Description: "label for the new option",
					Required:    false,
				},
			},
		},
		{
			Name:        "welcome",
			Description: "Configure welcome messages",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "enable, disable, channel, or message",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "enable", Value: "enable"},
						{Name: "disable", Value: "disable"},
						{Name: "channel", Value: "channel"},
						{Name: "message", Value: "message"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "welcome channel",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "text",
					Description: "template, supports {user}, {username} and {server}",
					Required:    false,
				},
			},
		},
		{
			Name:        "levelup",
			Description: "Configure leveling",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "enable, disable, or channel",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "enable", Value: "enable"},
						{Name: "disable", Value: "disable"},
						{Name: "channel", Value: "channel"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "where level ups are announced, omit to use the message channel",
					Required:    false,
				},
			},
		},
		{
			Name:        "levelreward",
			Description: "Manage role rewards for levels",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "add, remove, or list",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "add", Value: "add"},
						{Name: "remove", Value: "remove"},
						{Name: "list", Value: "list"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "level",
					Description: "level that earns the role",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionRole,
					Name:        "role",
					Description: "role to grant",
					Required:    false,
				},
			},
		},
		{
			Name:        "logchannel",
			Description: "Set or show the event log channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "where events are posted",
					Required:    false,
				},
			},
		},
		{
			Name:        "serverinfo",
			Description: "Show server information",
		},
		{
			Name:        "userinfo",
			Description: "Show member information",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "member to look up, defaults to you",
					Required:    false,
				},
			},
		},
		{
			Name:        "ping",
			Description: "Check the bot's latency",
		},
		{
			Name:        "help",
			Description: "List the bot's commands",
		},
	}
}

func (b *Bot) registerCommands() error {
	commands := commandDefinitions()

	appID := b.session.State.User.ID
	existing, err := b.session.ApplicationCommands(appID, "")
	if err != nil {
		for _, cmd := range commands {
			if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
				return err
			}
		}
		return nil
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand)
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd
	}

	desired := make(map[string]struct{})
	for _, cmd := range commands {
		desired[cmd.Name] = struct{}{}
		if current, ok := existingByName[cmd.Name]; ok {
			if _, err := b.session.ApplicationCommandEdit(appID, "", current.ID, cmd); err != nil {
				return err
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
			return err
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		_ = b.session.ApplicationCommandDelete(appID, "", cmd.ID)
	}

	return nil
}
