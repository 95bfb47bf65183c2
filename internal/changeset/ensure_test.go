package changeset

import (
	"testing"
	"time"

	"github.com/critic-scm/critic/internal/models"
)

func TestBackoffDelayGrowsAndCaps(t *testing.T) {
	if got := backoffDelay(1); got != 200*time.Millisecond {
		t.Fatalf("attempt 1: %v", got)
	}
	if got := backoffDelay(10); got != 2*time.Second {
		t.Fatalf("attempt 10: %v", got)
	}
	if got := backoffDelay(1000); got != 60*time.Second {
		t.Fatalf("attempt 1000: %v", got)
	}
}

func TestDelayedErrorMessage(t *testing.T) {
	err := &DelayedError{
		ChangesetID: 9,
		Requested:   models.LevelFull,
		Current:     models.LevelStructure,
	}
	want := `changeset 9 is at completion level "structure", "full" requested`
	if err.Error() != want {
		t.Fatalf("message %q, want %q", err.Error(), want)
	}
}

func TestCompletionLevelRanks(t *testing.T) {
	order := []models.CompletionLevel{
		models.LevelStructure,
		models.LevelChangedLines,
		models.LevelAnalysis,
		models.LevelSyntax,
		models.LevelFull,
	}
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() >= order[i].Rank() {
			t.Fatalf("%q should rank below %q", order[i-1], order[i])
		}
	}
	if models.CompletionLevel("").Rank() != 0 {
		t.Fatal("empty level should rank lowest")
	}
}
