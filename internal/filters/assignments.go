package filters

import (
	"sort"

	"github.com/critic-scm/critic/internal/models"
)

// Association is the outcome of evaluating one user's filters against
// one path: whether they review it (and in which scopes) or watch it.
type Association struct {
	Reviewer bool
	Watcher  bool
	Unscoped bool
	Scopes   map[int64]bool
}

// Evaluate applies the user's matching filters in ascending
// specificity order. A matching ignore clears everything accumulated
// so far; watcher and reviewer accumulate.
func Evaluate(sorted []*Filter, subjectID int64, path string) Association {
	assoc := Association{Scopes: make(map[int64]bool)}
	for _, f := range sorted {
		if f.SubjectID != subjectID || !f.Matches(path) {
			continue
		}
		switch f.Type {
		case models.FilterIgnore:
			assoc = Association{Scopes: make(map[int64]bool)}
		case models.FilterWatcher:
			assoc.Watcher = true
		case models.FilterReviewer:
			assoc.Reviewer = true
			for _, scope := range f.ScopeIDs {
				assoc.Scopes[scope] = true
			}
			if f.DefaultScope || len(f.ScopeIDs) == 0 {
				assoc.Unscoped = true
			}
		}
	}
	return assoc
}

// ReviewableFile is one reviewfiles row enriched with the file path
// and the author of the change, as the assignment pass needs them.
type ReviewableFile struct {
	ID          int64
	ChangesetID int64
	FileID      int64
	ScopeID     *int64
	Path        string
	AuthorID    *int64
}

// Assignments maps reviewfiles rows to assigned users, with watcher
// users tracked separately (watchers are not assignable).
type Assignments struct {
	byFile   map[int64]map[int64]bool
	watchers map[int64]bool
}

func NewAssignments() *Assignments {
	return &Assignments{
		byFile:   make(map[int64]map[int64]bool),
		watchers: make(map[int64]bool),
	}
}

func (a *Assignments) Assign(fileID, userID int64) {
	users, ok := a.byFile[fileID]
	if !ok {
		users = make(map[int64]bool)
		a.byFile[fileID] = users
	}
	users[userID] = true
}

func (a *Assignments) Watch(userID int64) { a.watchers[userID] = true }

func (a *Assignments) Assigned(fileID, userID int64) bool {
	return a.byFile[fileID][userID]
}

// Users returns every assigned user, sorted for determinism.
func (a *Assignments) Users() []int64 {
	set := make(map[int64]bool)
	for _, users := range a.byFile {
		for uid := range users {
			set[uid] = true
		}
	}
	return sortedKeys(set)
}

func (a *Assignments) Watchers() []int64 { return sortedKeys(a.watchers) }

// FileUsers returns the users assigned to one reviewfiles row.
func (a *Assignments) FileUsers(fileID int64) []int64 {
	return sortedKeys(a.byFile[fileID])
}

func (a *Assignments) Files() []int64 {
	return sortedKeys2(a.byFile)
}

// Calculate produces deterministic assignments of reviewable file
// changes to reviewers. Subjects whose own change a filter matches are
// replaced by the filter's delegates (repository filters only). A
// scoped reviewfiles row is assigned to reviewers carrying that scope;
// an unscoped row to reviewers with a default-scope match.
func Calculate(all []*Filter, files []ReviewableFile) *Assignments {
	sorted := Normalize(all)
	subjects := make(map[int64]bool)
	for _, f := range sorted {
		subjects[f.SubjectID] = true
	}

	result := NewAssignments()
	for _, file := range files {
		for subject := range subjects {
			assignees := assigneesFor(sorted, subject, file)
			for _, uid := range assignees {
				result.Assign(file.ID, uid)
			}
			assoc := Evaluate(sorted, subject, file.Path)
			if assoc.Watcher && !assoc.Reviewer {
				result.Watch(subject)
			}
		}
	}
	return result
}

// assigneesFor resolves one subject against one file, honoring scope
// matching and self-authored delegation.
func assigneesFor(sorted []*Filter, subject int64, file ReviewableFile) []int64 {
	assoc := Evaluate(sorted, subject, file.Path)
	if !assoc.Reviewer {
		return nil
	}
	if file.ScopeID != nil {
		if !assoc.Scopes[*file.ScopeID] {
			return nil
		}
	} else if !assoc.Unscoped {
		return nil
	}

	selfAuthored := file.AuthorID != nil && *file.AuthorID == subject
	if !selfAuthored {
		return []int64{subject}
	}
	// The author never reviews their own change; repository filters
	// name delegates to stand in.
	var delegates []int64
	for _, f := range sorted {
		if f.SubjectID != subject || f.Source != SourceRepository {
			continue
		}
		if f.Type != models.FilterReviewer || !f.Matches(file.Path) {
			continue
		}
		delegates = append(delegates, f.DelegateIDs...)
	}
	sort.Slice(delegates, func(i, j int) bool { return delegates[i] < delegates[j] })
	return dedupe(delegates)
}

// Change is one insert or delete against reviewuserfiles.
type Change struct {
	FileID   int64
	UserID   int64
	Assigned bool
}

// Diff computes the minimal change set turning current into next.
// Applying the result and recomputing yields no further changes.
func Diff(current, next *Assignments) []Change {
	var changes []Change
	for _, fileID := range next.Files() {
		for _, uid := range next.FileUsers(fileID) {
			if !current.Assigned(fileID, uid) {
				changes = append(changes, Change{FileID: fileID, UserID: uid, Assigned: true})
			}
		}
	}
	for _, fileID := range current.Files() {
		for _, uid := range current.FileUsers(fileID) {
			if !next.Assigned(fileID, uid) {
				changes = append(changes, Change{FileID: fileID, UserID: uid, Assigned: false})
			}
		}
	}
	return changes
}

func sortedKeys(set map[int64]bool) []int64 {
	keys := make([]int64, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedKeys2(m map[int64]map[int64]bool) []int64 {
	keys := make([]int64, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func dedupe(ids []int64) []int64 {
	var out []int64
	for i, id := range ids {
		if i == 0 || ids[i-1] != id {
			out = append(out, id)
		}
	}
	return out
}
