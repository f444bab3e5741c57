package bot

import (
	"testing"

	"clubhouse-bot/internal/analytics"
)

func TestLeaderboardLines(t *testing.T) {
	rows := []analytics.Row{
		{UserID: "alice", Value: 3},
		{UserID: "bob", Value: 1},
	}

	lines := leaderboardLines(rows, "level")
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %v", lines)
	}
	if lines[0] != "**1.** <@alice> at level 3" {
		t.Fatalf("level row rendered as %q", lines[0])
	}

	lines = leaderboardLines(rows, "messages")
	if lines[1] != "**2.** <@bob> with 1 messages" {
		t.Fatalf("message row rendered as %q", lines[1])
	}
}

func TestHelpListsEveryCommand(t *testing.T) {
	definitions := commandDefinitions()
	lines := helpLines()
	if len(lines) != len(definitions) {
		t.Fatalf("help lists %d commands, %d registered", len(lines), len(definitions))
	}
	for i, cmd := range definitions {
		want := "**/" + cmd.Name + "** " + cmd.Description
		if lines[i] != want {
			t.Fatalf("line %d: got %q, want %q", i, lines[i], want)
		}
	}
}
