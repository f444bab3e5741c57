package giveaways

import (
	"context"
	"errors"
	"testing"
	"time"

	"clubhouse-bot/internal/apperror"
	"clubhouse-bot/internal/config"
	"clubhouse-bot/internal/storage"

	"go.uber.org/zap"
)

type fakeMessenger struct {
	nextMessageID string
	publishErr    error
	concludeErr   error

	concluded [][]string
	rerolled  [][]string
}

func (f *fakeMessenger) Publish(storage.Giveaway) (string, error) {
	return f.nextMessageID, f.publishErr
}

func (f *fakeMessenger) Conclude(_ storage.Giveaway, winners []string) error {
	f.concluded = append(f.concluded, winners)
	return f.concludeErr
}

func (f *fakeMessenger) AnnounceReroll(_ storage.Giveaway, winners []string) error {
	f.rerolled = append(f.rerolled, winners)
	return nil
}

type fakeMembers struct {
	gone map[string]bool
}

func (f *fakeMembers) IsMember(_, userID string) bool {
	return !f.gone[userID]
}

func newTestModule(t *testing.T) (*Module, *fakeMessenger, *fakeMembers, *storage.Store) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	messenger := &fakeMessenger{nextMessageID: "msg1"}
	members := &fakeMembers{gone: map[string]bool{}}
	cfg := config.GiveawayConfig{SweepIntervalSeconds: 60, ReactionEmoji: "\U0001F389"}
	module := New(cfg, store, zap.NewNop(), messenger, members)
	module.SetBotID("bot")
	return module, messenger, members, store
}

func TestStartValidation(t *testing.T) {
	module, _, _, _ := newTestModule(t)
	ctx := context.Background()

	if _, err := module.Start(ctx, "g1", "c1", "host", "1h", "a prize", 0); !errors.Is(err, apperror.ErrUserInput) {
		t.Fatalf("zero winners: want user input error, got %v", err)
	}
	if _, err := module.Start(ctx, "g1", "c1", "host", "1h", "  ", 1); !errors.Is(err, apperror.ErrUserInput) {
		t.Fatalf("blank prize: want user input error, got %v", err)
	}
	if _, err := module.Start(ctx, "g1", "c1", "host", "soon", "a prize", 1); !errors.Is(err, apperror.ErrUserInput) {
		t.Fatalf("bad duration: want user input error, got %v", err)
	}
}

func TestStartPersistsByMessageID(t *testing.T) {
	module, _, _, store := newTestModule(t)
	ctx := context.Background()

	g, err := module.Start(ctx, "g1", "c1", "host", "2h", "Nitro", 2)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if g.MessageID != "msg1" {
		t.Fatalf("expected published message id, got %q", g.MessageID)
	}
	stored, found, err := store.GetGiveaway(ctx, "g1", "msg1")
	if err != nil || !found {
		t.Fatalf("lookup: found=%v err=%v", found, err)
	}
	if stored.Prize != "Nitro" || stored.WinnerCount != 2 || stored.Ended {
		t.Fatalf("unexpected record: %+v", stored)
	}
	if remaining := time.Until(stored.EndTime); remaining < time.Hour || remaining > 2*time.Hour {
		t.Fatalf("end time off: %v away", remaining)
	}
}

func TestReactionsTrackEntries(t *testing.T) {
	module, _, _, store := newTestModule(t)
	ctx := context.Background()

	if _, err := module.Start(ctx, "g1", "c1", "host", "1h", "Nitro", 1); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := module.HandleReactionAdd(ctx, "g1", "msg1", "alice", module.Emoji()); err != nil {
		t.Fatalf("add: %v", err)
	}
	// Wrong emoji, the bot's own seed reaction, and unrelated messages are
	// all silently dropped.
	if err := module.HandleReactionAdd(ctx, "g1", "msg1", "bob", "\U0001F44D"); err != nil {
		t.Fatalf("wrong emoji: %v", err)
	}
	if err := module.HandleReactionAdd(ctx, "g1", "msg1", "bot", module.Emoji()); err != nil {
		t.Fatalf("bot reaction: %v", err)
	}
	if err := module.HandleReactionAdd(ctx, "g1", "other", "carol", module.Emoji()); err != nil {
		t.Fatalf("unrelated message: %v", err)
	}

	got, err := store.Participants(ctx, "g1", "msg1")
	if err != nil {
		t.Fatalf("participants: %v", err)
	}
	if len(got) != 1 || got[0] != "alice" {
		t.Fatalf("expected only alice, got %v", got)
	}

	if err := module.HandleReactionRemove(ctx, "g1", "msg1", "alice", module.Emoji()); err != nil {
		t.Fatalf("remove: %v", err)
	}
	got, err = store.Participants(ctx, "g1", "msg1")
	if err != nil {
		t.Fatalf("participants: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no entrants after withdrawal, got %v", got)
	}
}

func TestEndDrawsOnceAndDropsLeavers(t *testing.T) {
	module, messenger, members, store := newTestModule(t)
	ctx := context.Background()

	if _, err := module.Start(ctx, "g1", "c1", "host", "1h", "Nitro", 5); err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, user := range []string{"alice", "bob", "carol"} {
		if err := store.AddParticipant(ctx, "g1", "msg1", user); err != nil {
			t.Fatalf("add participant: %v", err)
		}
	}
	members.gone["carol"] = true

	winners, err := module.End(ctx, "g1", "msg1")
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if len(winners) != 2 {
		t.Fatalf("expected 2 eligible winners, got %v", winners)
	}
	for _, w := range winners {
		if w == "carol" {
			t.Fatalf("departed member won: %v", winners)
		}
	}
	if len(messenger.concluded) != 1 {
		t.Fatalf("expected one conclude call, got %d", len(messenger.concluded))
	}

	if _, err := module.End(ctx, "g1", "msg1"); !errors.Is(err, apperror.ErrUserInput) {
		t.Fatalf("second end should be refused, got %v", err)
	}
	if _, err := module.End(ctx, "g1", "nope"); !errors.Is(err, apperror.ErrUserInput) {
		t.Fatalf("unknown giveaway should be refused, got %v", err)
	}
}

func TestEndSurvivesMessageFailure(t *testing.T) {
	module, messenger, _, store := newTestModule(t)
	ctx := context.Background()

	if _, err := module.Start(ctx, "g1", "c1", "host", "1h", "Nitro", 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	messenger.concludeErr = errors.New("message deleted")

	if _, err := module.End(ctx, "g1", "msg1"); err != nil {
		t.Fatalf("end should tolerate a lost message: %v", err)
	}
	g, _, err := store.GetGiveaway(ctx, "g1", "msg1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !g.Ended {
		t.Fatalf("giveaway must be marked ended regardless")
	}
}

func TestSweepEndsDueGiveaways(t *testing.T) {
	module, messenger, _, store := newTestModule(t)
	ctx := context.Background()

	past := storage.Giveaway{
		GuildID: "g1", MessageID: "due", ChannelID: "c1",
		Prize: "Mug", HostID: "host",
		EndTime: time.Now().Add(-time.Minute), WinnerCount: 1,
	}
	future := storage.Giveaway{
		GuildID: "g1", MessageID: "later", ChannelID: "c1",
		Prize: "Mug", HostID: "host",
		EndTime: time.Now().Add(time.Hour), WinnerCount: 1,
	}
	for _, g := range []storage.Giveaway{past, future} {
		if err := store.CreateGiveaway(ctx, g); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	module.Sweep(ctx)

	if len(messenger.concluded) != 1 {
		t.Fatalf("expected one concluded giveaway, got %d", len(messenger.concluded))
	}
	due, _, err := store.GetGiveaway(ctx, "g1", "due")
	if err != nil || !due.Ended {
		t.Fatalf("due giveaway not ended: %+v err=%v", due, err)
	}
	later, _, err := store.GetGiveaway(ctx, "g1", "later")
	if err != nil || later.Ended {
		t.Fatalf("future giveaway ended early: %+v err=%v", later, err)
	}
}

func TestReroll(t *testing.T) {
	module, messenger, _, store := newTestModule(t)
	ctx := context.Background()

	if _, err := module.Start(ctx, "g1", "c1", "host", "1h", "Nitro", 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := module.Reroll(ctx, "g1", "msg1"); !errors.Is(err, apperror.ErrUserInput) {
		t.Fatalf("reroll with no entrants should be refused, got %v", err)
	}

	if err := store.AddParticipant(ctx, "g1", "msg1", "alice"); err != nil {
		t.Fatalf("add participant: %v", err)
	}

	// Rerolling does not require the giveaway to have ended.
	winners, err := module.Reroll(ctx, "g1", "msg1")
	if err != nil {
		t.Fatalf("reroll on running giveaway: %v", err)
	}
	if len(winners) != 1 || winners[0] != "alice" {
		t.Fatalf("unexpected winners on running giveaway: %v", winners)
	}
	if running, _, err := store.GetGiveaway(ctx, "g1", "msg1"); err != nil || running.Ended {
		t.Fatalf("reroll must not end the giveaway: %+v err=%v", running, err)
	}

	if _, err := module.End(ctx, "g1", "msg1"); err != nil {
		t.Fatalf("end: %v", err)
	}

	winners, err = module.Reroll(ctx, "g1", "msg1")
	if err != nil {
		t.Fatalf("reroll: %v", err)
	}
	if len(winners) != 1 || winners[0] != "alice" {
		t.Fatalf("unexpected reroll winners: %v", winners)
	}
	if len(messenger.rerolled) != 2 {
		t.Fatalf("expected an announcement per reroll, got %d", len(messenger.rerolled))
	}

	g, _, err := store.GetGiveaway(ctx, "g1", "msg1")
	if err != nil || !g.Ended {
		t.Fatalf("reroll must not reopen the giveaway: %+v err=%v", g, err)
	}
}
