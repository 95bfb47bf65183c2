// Package gitglue is the boundary to the git host. The engine never
// touches repositories directly; it records ref updates through a
// RefUpdater, normally as post-commit callbacks so a rolled-back
// transaction leaves the repository untouched.
package gitglue

import (
	"context"
	"fmt"
	"sync"
)

// ZeroSHA1 is the all-zeros object name git uses for "no commit";
// a zero old value creates the ref, a zero new value deletes it.
const ZeroSHA1 = "0000000000000000000000000000000000000000"

// RefUpdater applies one reference update to a repository.
type RefUpdater interface {
	UpdateRef(ctx context.Context, repoPath, ref, oldValue, newValue string) error
}

// CreateRef creates a ref that must not already exist.
func CreateRef(ctx context.Context, updater RefUpdater, repoPath, ref, value string) error {
	return updater.UpdateRef(ctx, repoPath, ref, ZeroSHA1, value)
}

// DeleteRef deletes a ref that currently points at value.
func DeleteRef(ctx context.Context, updater RefUpdater, repoPath, ref, value string) error {
	return updater.UpdateRef(ctx, repoPath, ref, value, ZeroSHA1)
}

// RenameRef moves a ref by deleting the old name and creating the new
// one. If the create fails the old name is restored, so the commit
// the ref protected never becomes unreachable.
func RenameRef(ctx context.Context, updater RefUpdater, repoPath, oldRef, newRef, value string) error {
	if err := DeleteRef(ctx, updater, repoPath, oldRef, value); err != nil {
		return fmt.Errorf("rename %s: %w", oldRef, err)
	}
	if err := CreateRef(ctx, updater, repoPath, newRef, value); err != nil {
		if restoreErr := CreateRef(ctx, updater, repoPath, oldRef, value); restoreErr != nil {
			return fmt.Errorf("rename %s: %w (restore failed: %v)", oldRef, err, restoreErr)
		}
		return fmt.Errorf("rename %s: %w", oldRef, err)
	}
	return nil
}

// RefUpdate is one recorded updater call.
type RefUpdate struct {
	RepoPath string
	Ref      string
	OldValue string
	NewValue string
}

// Recorder is a RefUpdater for tests: it records updates and can fail
// selected refs.
type Recorder struct {
	mu      sync.Mutex
	updates []RefUpdate
	fail    map[string]error
}

func NewRecorder() *Recorder {
	return &Recorder{fail: make(map[string]error)}
}

// FailRef makes subsequent updates of ref return err.
func (r *Recorder) FailRef(ref string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[ref] = err
}

func (r *Recorder) UpdateRef(ctx context.Context, repoPath, ref, oldValue, newValue string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail[ref]; err != nil {
		return err
	}
	r.updates = append(r.updates, RefUpdate{
		RepoPath: repoPath,
		Ref:      ref,
		OldValue: oldValue,
		NewValue: newValue,
	})
	return nil
}

// Updates returns a copy of the recorded calls.
func (r *Recorder) Updates() []RefUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RefUpdate(nil), r.updates...)
}
