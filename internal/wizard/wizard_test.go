package wizard

import (
	"strings"
	"testing"
	"time"

	"clubhouse-bot/internal/config"

	"go.uber.org/zap"
)

func newManager(timeoutSeconds int) *Manager {
	return New(config.WizardConfig{TimeoutSeconds: timeoutSeconds}, zap.NewNop())
}

func TestFullRun(t *testing.T) {
	m := newManager(120)

	prompt, err := m.Start("g1", "c1", "alice")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !strings.Contains(prompt, "title") {
		t.Fatalf("unexpected first prompt: %q", prompt)
	}

	if _, spec, handled := m.HandleMessage("c1", "alice", "Pick your colors"); !handled || spec != nil {
		t.Fatalf("title step: handled=%v spec=%v", handled, spec)
	}
	if _, spec, _ := m.HandleMessage("c1", "alice", "\U0001F534 <@&111> Red"); spec != nil {
		t.Fatalf("option step finished early")
	}
	if _, spec, _ := m.HandleMessage("c1", "alice", "\U0001F535 222"); spec != nil {
		t.Fatalf("option step finished early")
	}

	_, spec, handled := m.HandleMessage("c1", "alice", "done")
	if !handled || spec == nil {
		t.Fatalf("expected finished spec")
	}
	if spec.GuildID != "g1" || spec.ChannelID != "c1" || spec.Title != "Pick your colors" {
		t.Fatalf("unexpected spec: %+v", spec)
	}
	if len(spec.Options) != 2 || spec.Options[0].RoleID != "111" || spec.Options[1].RoleID != "222" {
		t.Fatalf("unexpected options: %+v", spec.Options)
	}
	if spec.Options[0].Label != "Red" || spec.Options[1].Label != "222" {
		t.Fatalf("label defaulting wrong: %+v", spec.Options)
	}

	if m.Active("c1", "alice") {
		t.Fatalf("session should be gone after done")
	}
}

func TestOnePerUserPerChannel(t *testing.T) {
	m := newManager(120)

	if _, err := m.Start("g1", "c1", "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := m.Start("g1", "c1", "alice"); err == nil {
		t.Fatalf("second start in same channel should be refused")
	}
	// Other channels and other users are independent.
	if _, err := m.Start("g1", "c2", "alice"); err != nil {
		t.Fatalf("start in other channel: %v", err)
	}
	if _, err := m.Start("g1", "c1", "bob"); err != nil {
		t.Fatalf("start for other user: %v", err)
	}
}

func TestCancelAndBadInput(t *testing.T) {
	m := newManager(120)

	if _, err := m.Start("g1", "c1", "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, _, handled := m.HandleMessage("c1", "bob", "hello"); handled {
		t.Fatalf("stranger's message should not be swallowed")
	}

	if reply, _, _ := m.HandleMessage("c1", "alice", "   "); !strings.Contains(reply, "empty") {
		t.Fatalf("blank title accepted: %q", reply)
	}
	m.HandleMessage("c1", "alice", "Colors")

	if reply, _, _ := m.HandleMessage("c1", "alice", "just-one-field"); !strings.Contains(reply, "doesn't look right") {
		t.Fatalf("bad line accepted: %q", reply)
	}
	if reply, _, _ := m.HandleMessage("c1", "alice", "\U0001F534 @not-a-mention"); !strings.Contains(reply, "not a role") {
		t.Fatalf("bad role ref accepted: %q", reply)
	}
	if reply, _, _ := m.HandleMessage("c1", "alice", "done"); !strings.Contains(reply, "at least one") {
		t.Fatalf("empty menu finished: %q", reply)
	}

	if reply, _, _ := m.HandleMessage("c1", "alice", "cancel"); !strings.Contains(reply, "cancelled") {
		t.Fatalf("cancel reply: %q", reply)
	}
	if m.Active("c1", "alice") {
		t.Fatalf("session survived cancel")
	}
}

func TestEmojiRebindWithinSession(t *testing.T) {
	m := newManager(120)

	if _, err := m.Start("g1", "c1", "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	m.HandleMessage("c1", "alice", "Colors")
	m.HandleMessage("c1", "alice", "\U0001F534 <@&111> Red")
	m.HandleMessage("c1", "alice", "\U0001F534 <@&999> Crimson")

	_, spec, _ := m.HandleMessage("c1", "alice", "done")
	if spec == nil || len(spec.Options) != 1 {
		t.Fatalf("rebinding should not duplicate: %+v", spec)
	}
	if spec.Options[0].RoleID != "999" || spec.Options[0].Label != "Crimson" {
		t.Fatalf("emoji kept old binding: %+v", spec.Options[0])
	}
}

func TestTimeout(t *testing.T) {
	m := New(config.WizardConfig{TimeoutSeconds: 0}, zap.NewNop())
	m.timeout = 20 * time.Millisecond

	if _, err := m.Start("g1", "c1", "alice"); err != nil {
		t.Fatalf("start: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for m.Active("c1", "alice") {
		if time.Now().After(deadline) {
			t.Fatalf("session never expired")
		}
		time.Sleep(5 * time.Millisecond)
	}
	// Expired sessions free the slot for a fresh start.
	if _, err := m.Start("g1", "c1", "alice"); err != nil {
		t.Fatalf("restart after expiry: %v", err)
	}
}
