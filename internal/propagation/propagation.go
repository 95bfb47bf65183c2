// Package propagation carries comment anchors forward through commit
// history. A comment anchored to a line range of one file version is
// remapped through every later modification of that file; when the
// range is wholly replaced or deleted, the comment is addressed by the
// commit that did it.
package propagation

import (
	"fmt"
	"sort"

	"github.com/critic-scm/critic/internal/models"
)

// Anchor is where a comment was written: a line range in one version
// (blob sha1) of a file. Lines are one-based and inclusive.
type Anchor struct {
	SHA1      string
	FirstLine int
	LastLine  int
}

// Location is one propagated position of a comment.
type Location struct {
	SHA1      string
	FirstLine int
	LastLine  int
}

// Modification is one commit's change to the tracked file: the blob
// transition plus the filediff change blocks describing it.
// Modifications are supplied in commit topological order; merges
// contribute one modification per parent that changed the file.
type Modification struct {
	CommitID int64
	OldSHA1  string
	NewSHA1  string
	Blocks   []models.ChangeBlock
}

// Result is the outcome of a propagation walk. AddressedBy is set only
// when every path through the history killed the range.
type Result struct {
	Locations   []Location
	AddressedBy *int64
}

// Propagate walks the anchor forward to headSHA1. The produced
// location set is deterministic for identical histories and anchors.
func Propagate(anchor Anchor, mods []Modification, headSHA1 string) Result {
	return advance([]Location{{SHA1: anchor.SHA1, FirstLine: anchor.FirstLine, LastLine: anchor.LastLine}}, mods, headSHA1)
}

// Advance continues propagation from already-known locations, as a
// branch update does for existing comments.
func Advance(existing []Location, mods []Modification, headSHA1 string) Result {
	return advance(existing, mods, headSHA1)
}

func advance(seed []Location, mods []Modification, headSHA1 string) Result {
	live := make(map[string]Location, len(seed))
	order := make([]string, 0, len(seed))
	for _, loc := range seed {
		if _, ok := live[loc.SHA1]; !ok {
			live[loc.SHA1] = loc
			order = append(order, loc.SHA1)
		}
	}

	var killedBy *int64
	for _, mod := range mods {
		from, ok := live[mod.OldSHA1]
		if !ok {
			continue
		}
		first, last, survived := RemapRange(from.FirstLine, from.LastLine, mod.Blocks)
		if !survived {
			if killedBy == nil {
				commit := mod.CommitID
				killedBy = &commit
			}
			continue
		}
		if _, dup := live[mod.NewSHA1]; dup {
			// Two merge parents propagated into the same version;
			// the first (earlier) propagation wins deterministically.
			continue
		}
		live[mod.NewSHA1] = Location{SHA1: mod.NewSHA1, FirstLine: first, LastLine: last}
		order = append(order, mod.NewSHA1)
	}

	result := Result{Locations: make([]Location, 0, len(order))}
	for _, sha1 := range order {
		result.Locations = append(result.Locations, live[sha1])
	}
	// Addressed only if all paths agree: a surviving range in the head
	// version of the file vetoes the addressing commit.
	if _, reachedHead := live[headSHA1]; !reachedHead && killedBy != nil {
		result.AddressedBy = killedBy
	}
	return result
}

// RemapRange maps an inclusive one-based line range through a set of
// change blocks. The third return is false when no line of the range
// survives, i.e. the range sits entirely inside replaced or deleted
// regions.
func RemapRange(first, last int, blocks []models.ChangeBlock) (int, int, bool) {
	sorted := append([]models.ChangeBlock(nil), blocks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].OldOffset < sorted[j].OldOffset })

	// First surviving line, scanning deleted regions upward.
	newFirst := first
	for _, b := range sorted {
		if b.DeleteCount == 0 {
			continue
		}
		if newFirst >= b.OldOffset && newFirst <= b.OldOffset+b.DeleteCount-1 {
			newFirst = b.OldOffset + b.DeleteCount
		}
	}
	// Last surviving line, scanning downward.
	newLast := last
	for i := len(sorted) - 1; i >= 0; i-- {
		b := sorted[i]
		if b.DeleteCount == 0 {
			continue
		}
		if newLast >= b.OldOffset && newLast <= b.OldOffset+b.DeleteCount-1 {
			newLast = b.OldOffset - 1
		}
	}
	if newFirst > last || newLast < first || newFirst > newLast {
		return 0, 0, false
	}
	return shiftLine(newFirst, sorted), shiftLine(newLast, sorted), true
}

// shiftLine converts a surviving old-coordinate line to new
// coordinates by accumulating the size delta of blocks above it.
func shiftLine(line int, sorted []models.ChangeBlock) int {
	delta := 0
	for _, b := range sorted {
		// Pure insertions before the line and deletions wholly above
		// it shift the line by the block's size delta.
		if b.DeleteCount == 0 {
			if b.OldOffset <= line {
				delta += b.InsertCount
			}
		} else if b.OldOffset+b.DeleteCount-1 < line {
			delta += b.InsertCount - b.DeleteCount
		}
	}
	return line + delta
}

// ValidateReopenAnchor rejects reopening an addressed issue at a file
// version the issue already has a location in; reopening requires a
// fresh anchor, from which a new propagation runs.
func ValidateReopenAnchor(existing []Location, anchor Anchor) error {
	for _, loc := range existing {
		if loc.SHA1 == anchor.SHA1 {
			return fmt.Errorf("anchor %s already among the comment's locations", anchor.SHA1)
		}
	}
	return nil
}
