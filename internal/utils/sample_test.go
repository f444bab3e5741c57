package utils

import (
	"math/rand"
	"testing"
)

func TestSampleDistinct(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	items := []string{"a", "b", "c", "d", "e"}

	got := Sample(rng, items, 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 winners, got %d", len(got))
	}
	seen := make(map[string]bool)
	for _, item := range got {
		if seen[item] {
			t.Fatalf("duplicate sample %q", item)
		}
		seen[item] = true
	}
}

func TestSampleMoreThanAvailable(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	got := Sample(rng, []string{"only"}, 3)
	if len(got) != 1 || got[0] != "only" {
		t.Fatalf("expected the single element, got %v", got)
	}
}

func TestSampleEmpty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	if got := Sample(rng, nil, 2); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
}

func TestSampleDoesNotMutateInput(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	items := []string{"a", "b", "c"}
	Sample(rng, items, 2)
	if items[0] != "a" || items[1] != "b" || items[2] != "c" {
		t.Fatalf("input slice was mutated: %v", items)
	}
}
