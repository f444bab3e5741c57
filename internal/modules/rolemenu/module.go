package rolemenu

import (
	"context"
	"strings"

	"clubhouse-bot/internal/apperror"
	"clubhouse-bot/internal/storage"

	"go.uber.org/zap"
)

// Discord caps select menus at 25 options.
const maxOptions = 25

// Publisher posts the menu message with its dropdown and keeps it in sync
// when options change.
type Publisher interface {
	PublishMenu(menu storage.RoleMenu, options []storage.RoleMenuOption) (messageID string, err error)
	RefreshMenu(menu storage.RoleMenu, options []storage.RoleMenuOption) error
}

// RoleManager grants and revokes guild roles.
type RoleManager interface {
	AddRole(guildID, userID, roleID string) error
	RemoveRole(guildID, userID, roleID string) error
}

type Module struct {
	store     *storage.Store
	logger    *zap.Logger
	publisher Publisher
	roles     RoleManager
}

func New(store *storage.Store, logger *zap.Logger, publisher Publisher, roles RoleManager) *Module {
	return &Module{store: store, logger: logger, publisher: publisher, roles: roles}
}

// Create posts a new role menu and persists it keyed by the posted message.
func (m *Module) Create(ctx context.Context, guildID, channelID, title string, options []storage.RoleMenuOption) (storage.RoleMenu, error) {
	if strings.TrimSpace(title) == "" {
		return storage.RoleMenu{}, apperror.UserInput("the menu needs a title")
	}
	if len(options) == 0 {
		return storage.RoleMenu{}, apperror.UserInput("the menu needs at least one role")
	}
	if len(options) > maxOptions {
		return storage.RoleMenu{}, apperror.UserInput("a menu can hold at most %d roles", maxOptions)
	}
	for i := range options {
		options[i].Position = i
	}

	menu := storage.RoleMenu{
		GuildID:   guildID,
		ChannelID: channelID,
		Title:     strings.TrimSpace(title),
	}
	messageID, err := m.publisher.PublishMenu(menu, options)
	if err != nil {
		return storage.RoleMenu{}, apperror.Transient("publish role menu", err)
	}
	menu.MessageID = messageID
	if err := m.store.CreateRoleMenu(ctx, menu, options); err != nil {
		return storage.RoleMenu{}, apperror.Internal("persist role menu", err)
	}
	return menu, nil
}

// AddOption binds an emoji to a role on an existing menu and refreshes the
// message. Reusing an emoji rebinds it to the new role.
func (m *Module) AddOption(ctx context.Context, guildID, messageID string, opt storage.RoleMenuOption) error {
	menu, found, err := m.store.GetRoleMenu(ctx, guildID, messageID)
	if err != nil {
		return apperror.Internal("load role menu", err)
	}
	if !found {
		return apperror.UserInput("no role menu found for that message")
	}
	options, err := m.store.MenuOptions(ctx, guildID, messageID)
	if err != nil {
		return apperror.Internal("load menu options", err)
	}
	rebinding := false
	for _, existing := range options {
		if existing.Emoji == opt.Emoji {
			rebinding = true
			break
		}
	}
	if !rebinding && len(options) >= maxOptions {
		return apperror.UserInput("a menu can hold at most %d roles", maxOptions)
	}
	if err := m.store.SetMenuOption(ctx, guildID, messageID, opt); err != nil {
		return apperror.Internal("save menu option", err)
	}
	options, err = m.store.MenuOptions(ctx, guildID, messageID)
	if err != nil {
		return apperror.Internal("reload menu options", err)
	}
	if err := m.publisher.RefreshMenu(menu, options); err != nil {
		return apperror.Transient("refresh role menu", err)
	}
	return nil
}

func (m *Module) Delete(ctx context.Context, guildID, messageID string) error {
	deleted, err := m.store.DeleteRoleMenu(ctx, guildID, messageID)
	if err != nil {
		return apperror.Internal("delete role menu", err)
	}
	if !deleted {
		return apperror.UserInput("no role menu found for that message")
	}
	return nil
}

func (m *Module) List(ctx context.Context, guildID string) ([]storage.RoleMenu, error) {
	return m.store.ListRoleMenus(ctx, guildID)
}

// Menus returns every stored menu, used to re-register component routes on
// startup.
func (m *Module) Menus(ctx context.Context) ([]storage.RoleMenu, error) {
	return m.store.AllRoleMenus(ctx)
}

func (m *Module) Options(ctx context.Context, guildID, messageID string) ([]storage.RoleMenuOption, error) {
	return m.store.MenuOptions(ctx, guildID, messageID)
}

// HandleSelection reconciles the member's roles with the dropdown choice:
// chosen roles they lack are granted, menu roles they hold but did not choose
// are revoked. Roles outside the menu are never touched. A role the API
// refuses, typically one deleted from the guild, is skipped and reported in
// failed so the rest of the selection still applies.
func (m *Module) HandleSelection(ctx context.Context, guildID, messageID, userID string, chosen, held []string) (added, removed, failed []string, err error) {
	options, err := m.store.MenuOptions(ctx, guildID, messageID)
	if err != nil {
		return nil, nil, nil, apperror.Internal("load menu options", err)
	}
	if len(options) == 0 {
		return nil, nil, nil, apperror.UserInput("this menu no longer exists")
	}

	assignable := make(map[string]bool, len(options))
	for _, opt := range options {
		assignable[opt.RoleID] = true
	}
	chosenSet := make(map[string]bool, len(chosen))
	for _, roleID := range chosen {
		if assignable[roleID] {
			chosenSet[roleID] = true
		}
	}
	heldSet := make(map[string]bool, len(held))
	for _, roleID := range held {
		heldSet[roleID] = true
	}

	for _, opt := range options {
		roleID := opt.RoleID
		switch {
		case chosenSet[roleID] && !heldSet[roleID]:
			if err := m.roles.AddRole(guildID, userID, roleID); err != nil {
				m.logger.Warn("role grant failed",
					zap.String("guild_id", guildID),
					zap.String("user_id", userID),
					zap.String("role_id", roleID),
					zap.Error(err))
				failed = append(failed, roleID)
				continue
			}
			added = append(added, roleID)
		case !chosenSet[roleID] && heldSet[roleID]:
			if err := m.roles.RemoveRole(guildID, userID, roleID); err != nil {
				m.logger.Warn("role revoke failed",
					zap.String("guild_id", guildID),
					zap.String("user_id", userID),
					zap.String("role_id", roleID),
					zap.Error(err))
				failed = append(failed, roleID)
				continue
			}
			removed = append(removed, roleID)
		}
	}
	return added, removed, failed, nil
}
