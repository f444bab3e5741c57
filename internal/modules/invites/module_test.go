package invites

import (
	"context"
	"errors"
	"testing"
	"time"

	"clubhouse-bot/internal/storage"

	"go.uber.org/zap"
)

type stubFetcher struct {
	invites   []Invite
	err       error
	vanity    Invite
	hasVanity bool
}

func (f *stubFetcher) GuildInvites(string) ([]Invite, error) {
	return f.invites, f.err
}

func (f *stubFetcher) VanityInvite(string) (Invite, bool, error) {
	return f.vanity, f.hasVanity, nil
}

func newTestModule(t *testing.T) (*Module, *stubFetcher, *storage.Store) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	fetcher := &stubFetcher{}
	return New(store, zap.NewNop(), fetcher), fetcher, store
}

func oldAccount() time.Time {
	return time.Now().Add(-30 * 24 * time.Hour)
}

func TestAttributionByUseIncrease(t *testing.T) {
	module, fetcher, _ := newTestModule(t)
	ctx := context.Background()

	fetcher.invites = []Invite{{Code: "A", Uses: 5, InviterID: "alice"}, {Code: "B", Uses: 2, InviterID: "bob"}}
	if err := module.RebuildCache("g1"); err != nil {
		t.Fatalf("rebuild cache: %v", err)
	}

	fetcher.invites = []Invite{{Code: "A", Uses: 6, InviterID: "alice"}, {Code: "B", Uses: 2, InviterID: "bob"}}
	got, err := module.HandleMemberJoin(ctx, "g1", "newbie", oldAccount(), time.Now())
	if err != nil {
		t.Fatalf("handle join: %v", err)
	}
	if !got.Attributed || got.Code != "A" || got.InviterID != "alice" {
		t.Fatalf("expected attribution to A/alice, got %+v", got)
	}
	if got.Fake || got.Rejoin {
		t.Fatalf("unexpected heuristics: %+v", got)
	}
}

func TestAttributionByNewCode(t *testing.T) {
	module, fetcher, _ := newTestModule(t)
	ctx := context.Background()

	fetcher.invites = []Invite{{Code: "A", Uses: 5, InviterID: "alice"}, {Code: "B", Uses: 2, InviterID: "bob"}}
	if err := module.RebuildCache("g1"); err != nil {
		t.Fatalf("rebuild cache: %v", err)
	}

	fetcher.invites = []Invite{{Code: "A", Uses: 5, InviterID: "alice"}, {Code: "B", Uses: 2, InviterID: "bob"}, {Code: "C", Uses: 1, InviterID: "carol"}}
	got, err := module.HandleMemberJoin(ctx, "g1", "newbie", oldAccount(), time.Now())
	if err != nil {
		t.Fatalf("handle join: %v", err)
	}
	if !got.Attributed || got.Code != "C" || got.InviterID != "carol" {
		t.Fatalf("expected attribution to new code C, got %+v", got)
	}
}

// Two codes changing in one scan is ambiguous; the implementation takes the
// first in fetch order. This pins the tie-break down, it does not bless it.
func TestAttributionTieBreakFetchOrder(t *testing.T) {
	module, fetcher, _ := newTestModule(t)
	ctx := context.Background()

	fetcher.invites = []Invite{{Code: "abc", Uses: 3, InviterID: "alice"}}
	if err := module.RebuildCache("g1"); err != nil {
		t.Fatalf("rebuild cache: %v", err)
	}

	fetcher.invites = []Invite{{Code: "abc", Uses: 4, InviterID: "alice"}, {Code: "xyz", Uses: 1, InviterID: "bob"}}
	got, err := module.HandleMemberJoin(ctx, "g1", "newbie", oldAccount(), time.Now())
	if err != nil {
		t.Fatalf("handle join: %v", err)
	}
	if got.Code != "abc" {
		t.Fatalf("expected first changed code in fetch order, got %+v", got)
	}
}

func TestVanityTakesPrecedence(t *testing.T) {
	module, fetcher, _ := newTestModule(t)
	ctx := context.Background()

	fetcher.invites = []Invite{{Code: "A", Uses: 5, InviterID: "alice"}}
	fetcher.vanity = Invite{Code: "cool-club", Uses: 10}
	fetcher.hasVanity = true
	if err := module.RebuildCache("g1"); err != nil {
		t.Fatalf("rebuild cache: %v", err)
	}

	fetcher.invites = []Invite{{Code: "A", Uses: 6, InviterID: "alice"}}
	fetcher.vanity = Invite{Code: "cool-club", Uses: 11}
	got, err := module.HandleMemberJoin(ctx, "g1", "newbie", oldAccount(), time.Now())
	if err != nil {
		t.Fatalf("handle join: %v", err)
	}
	if !got.Vanity || got.Code != "cool-club" {
		t.Fatalf("expected vanity attribution, got %+v", got)
	}
	if got.InviterID != "" {
		t.Fatalf("vanity joins have no inviter, got %q", got.InviterID)
	}
}

func TestCacheReplacedOnFailedAttribution(t *testing.T) {
	module, fetcher, _ := newTestModule(t)
	ctx := context.Background()

	fetcher.invites = []Invite{{Code: "A", Uses: 5, InviterID: "alice"}}
	if err := module.RebuildCache("g1"); err != nil {
		t.Fatalf("rebuild cache: %v", err)
	}

	// Nothing changed: attribution fails, but the snapshot must be taken.
	fetcher.invites = []Invite{{Code: "A", Uses: 7, InviterID: "alice"}, {Code: "B", Uses: 0, InviterID: "bob"}}
	first, err := module.HandleMemberJoin(ctx, "g1", "m1", oldAccount(), time.Now())
	if err != nil {
		t.Fatalf("handle join: %v", err)
	}
	if first.Code != "A" {
		t.Fatalf("expected A, got %+v", first)
	}

	// A second join with unchanged counts must not re-attribute A: the cache
	// was replaced by the previous scan.
	second, err := module.HandleMemberJoin(ctx, "g1", "m2", oldAccount(), time.Now())
	if err != nil {
		t.Fatalf("handle join: %v", err)
	}
	if second.Attributed {
		t.Fatalf("stale diff leaked through cache replacement: %+v", second)
	}
}

func TestFetchErrorPropagates(t *testing.T) {
	module, fetcher, _ := newTestModule(t)

	fetcher.err = errors.New("missing manage guild")
	if _, err := module.HandleMemberJoin(context.Background(), "g1", "m1", oldAccount(), time.Now()); err == nil {
		t.Fatalf("expected fetch error to propagate")
	}
}

func TestFakeAndRejoinHeuristics(t *testing.T) {
	module, fetcher, store := newTestModule(t)
	ctx := context.Background()

	fetcher.invites = []Invite{{Code: "A", Uses: 0, InviterID: "alice"}}
	if err := module.RebuildCache("g1"); err != nil {
		t.Fatalf("rebuild cache: %v", err)
	}

	young := time.Now().Add(-24 * time.Hour)
	fetcher.invites = []Invite{{Code: "A", Uses: 1, InviterID: "alice"}}
	got, err := module.HandleMemberJoin(ctx, "g1", "newbie", young, time.Now())
	if err != nil {
		t.Fatalf("handle join: %v", err)
	}
	if !got.Fake {
		t.Fatalf("day-old account should be flagged fake")
	}
	if got.Rejoin {
		t.Fatalf("first join cannot be a rejoin")
	}

	stats, err := store.GetInviterStats(ctx, "g1", "alice")
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	if stats.Joins != 1 || stats.Fake != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	// Leave and come back through a fresh use: now it is a rejoin.
	if _, err := module.HandleMemberLeave(ctx, "g1", "newbie"); err != nil {
		t.Fatalf("handle leave: %v", err)
	}
	fetcher.invites = []Invite{{Code: "A", Uses: 2, InviterID: "alice"}}
	got, err = module.HandleMemberJoin(ctx, "g1", "newbie", young, time.Now())
	if err != nil {
		t.Fatalf("handle rejoin: %v", err)
	}
	if !got.Rejoin {
		t.Fatalf("returning member should be flagged rejoin")
	}
}

func TestInviteCreateAndDeleteMaintainCache(t *testing.T) {
	module, fetcher, _ := newTestModule(t)
	ctx := context.Background()

	fetcher.invites = []Invite{}
	if err := module.RebuildCache("g1"); err != nil {
		t.Fatalf("rebuild cache: %v", err)
	}

	// A code announced through the create event is already cached, so its
	// existing uses must not look like a fresh join.
	module.HandleInviteCreate("g1", "A", 0, "alice")

	fetcher.invites = []Invite{{Code: "A", Uses: 1, InviterID: "alice"}}
	got, err := module.HandleMemberJoin(ctx, "g1", "m1", oldAccount(), time.Now())
	if err != nil {
		t.Fatalf("handle join: %v", err)
	}
	if !got.Attributed || got.Code != "A" {
		t.Fatalf("expected attribution via created invite, got %+v", got)
	}

	module.HandleInviteDelete("g1", "A")
	module.HandleGuildRemove("g1")
}
