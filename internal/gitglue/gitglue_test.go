package gitglue

import (
	"context"
	"errors"
	"testing"
)

func TestRenameRefRecordsDeleteThenCreate(t *testing.T) {
	recorder := NewRecorder()
	err := RenameRef(context.Background(), recorder, "/repos/1",
		"refs/heads/r/old", "refs/heads/r/new", "abc123")
	if err != nil {
		t.Fatalf("RenameRef: %v", err)
	}
	updates := recorder.Updates()
	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}
	if updates[0].Ref != "refs/heads/r/old" || updates[0].NewValue != ZeroSHA1 {
		t.Fatalf("first update should delete old ref: %+v", updates[0])
	}
	if updates[1].Ref != "refs/heads/r/new" || updates[1].OldValue != ZeroSHA1 {
		t.Fatalf("second update should create new ref: %+v", updates[1])
	}
}

func TestRenameRefRestoresOnCreateFailure(t *testing.T) {
	recorder := NewRecorder()
	recorder.FailRef("refs/heads/r/new", errors.New("ref exists"))

	err := RenameRef(context.Background(), recorder, "/repos/1",
		"refs/heads/r/old", "refs/heads/r/new", "abc123")
	if err == nil {
		t.Fatal("expected rename failure")
	}
	updates := recorder.Updates()
	last := updates[len(updates)-1]
	if last.Ref != "refs/heads/r/old" || last.OldValue != ZeroSHA1 || last.NewValue != "abc123" {
		t.Fatalf("old ref should be restored, last update %+v", last)
	}
}
