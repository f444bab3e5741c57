package wizard

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"clubhouse-bot/internal/apperror"
	"clubhouse-bot/internal/config"
	"clubhouse-bot/internal/storage"

	"go.uber.org/zap"
)

type step int

const (
	stepTitle step = iota
	stepOptions
)

var roleMentionRe = regexp.MustCompile(`^<@&(\d+)>$`)
var roleIDRe = regexp.MustCompile(`^\d+$`)

// MenuSpec is what a completed wizard run hands back for publishing.
type MenuSpec struct {
	GuildID   string
	ChannelID string
	Title     string
	Options   []storage.RoleMenuOption
}

type session struct {
	guildID string
	step    step
	title   string
	options []storage.RoleMenuOption
	timer   *time.Timer
}

// Manager runs at most one role-menu wizard per user per channel. Sessions
// that go quiet past the timeout are discarded.
type Manager struct {
	logger  *zap.Logger
	timeout time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

func New(cfg config.WizardConfig, logger *zap.Logger) *Manager {
	return &Manager{
		logger:   logger,
		timeout:  time.Duration(cfg.TimeoutSeconds) * time.Second,
		sessions: make(map[string]*session),
	}
}

func sessionKey(channelID, userID string) string {
	return channelID + ":" + userID
}

// Start opens a wizard session and returns the first prompt.
func (m *Manager) Start(guildID, channelID, userID string) (string, error) {
	key := sessionKey(channelID, userID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[key]; exists {
		return "", apperror.UserInput("you already have a menu wizard running in this channel, type `cancel` to abandon it")
	}
	s := &session{guildID: guildID, step: stepTitle}
	s.timer = time.AfterFunc(m.timeout, func() {
		m.expire(key)
	})
	m.sessions[key] = s
	return "Let's build a role menu. First, what should the title be?", nil
}

func (m *Manager) expire(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		delete(m.sessions, key)
		m.logger.Debug("wizard session expired", zap.String("session", key), zap.String("guild_id", s.guildID))
	}
}

// Active reports whether the user has a wizard running in the channel.
func (m *Manager) Active(channelID, userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[sessionKey(channelID, userID)]
	return ok
}

// HandleMessage advances the user's session with one message. It returns the
// next prompt, the finished spec once the user types `done`, and whether the
// message belonged to a session at all.
func (m *Manager) HandleMessage(channelID, userID, content string) (reply string, spec *MenuSpec, handled bool) {
	key := sessionKey(channelID, userID)

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	if !ok {
		return "", nil, false
	}

	content = strings.TrimSpace(content)
	if strings.EqualFold(content, "cancel") {
		s.timer.Stop()
		delete(m.sessions, key)
		return "Wizard cancelled.", nil, true
	}
	s.timer.Reset(m.timeout)

	switch s.step {
	case stepTitle:
		if content == "" {
			return "The title cannot be empty, try again.", nil, true
		}
		s.title = content
		s.step = stepOptions
		return "Now add roles, one per line: `<emoji> <@role> [label]`. Type `done` when finished.", nil, true

	case stepOptions:
		if strings.EqualFold(content, "done") {
			if len(s.options) == 0 {
				return "Add at least one role before finishing.", nil, true
			}
			s.timer.Stop()
			delete(m.sessions, key)
			return "", &MenuSpec{
				GuildID:   s.guildID,
				ChannelID: channelID,
				Title:     s.title,
				Options:   s.options,
			}, true
		}
		opt, err := parseOptionLine(content)
		if err != nil {
			return apperror.UserMessage(err), nil, true
		}
		for i := range s.options {
			if s.options[i].Emoji == opt.Emoji {
				s.options[i] = opt
				return fmt.Sprintf("Rebound %s to <@&%s>. Add more or type `done`.", opt.Emoji, opt.RoleID), nil, true
			}
		}
		s.options = append(s.options, opt)
		return fmt.Sprintf("Added %s for <@&%s> (%d so far). Add more or type `done`.", opt.Emoji, opt.RoleID, len(s.options)), nil, true
	}
	return "", nil, true
}

func parseOptionLine(line string) (storage.RoleMenuOption, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return storage.RoleMenuOption{}, apperror.UserInput("that line doesn't look right, use `<emoji> <@role> [label]`")
	}
	roleID, ok := parseRoleRef(fields[1])
	if !ok {
		return storage.RoleMenuOption{}, apperror.UserInput("%q is not a role mention or role ID", fields[1])
	}
	opt := storage.RoleMenuOption{
		Emoji:  fields[0],
		RoleID: roleID,
	}
	if len(fields) > 2 {
		opt.Label = strings.Join(fields[2:], " ")
	} else {
		opt.Label = roleID
	}
	return opt, nil
}

func parseRoleRef(ref string) (string, bool) {
	if match := roleMentionRe.FindStringSubmatch(ref); match != nil {
		return match[1], true
	}
	if roleIDRe.MatchString(ref) {
		return ref, true
	}
	return "", false
}
