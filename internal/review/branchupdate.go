package review

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/critic-scm/critic/internal/comments"
	"github.com/critic-scm/critic/internal/database"
	"github.com/critic-scm/critic/internal/filters"
	"github.com/critic-scm/critic/internal/models"
)

// BranchUpdate describes one push: the head transition plus the
// commits the update associated with or removed from the branch. A nil
// UpdaterID means the system moved the branch; a nil FromHead means
// the update created it.
type BranchUpdate struct {
	BranchID      int64
	UpdaterID     *int64
	FromHead      *int64
	ToHead        int64
	HookOutput    string
	Associated    []int64
	Disassociated []int64
}

// RecordBranchUpdate appends one branchupdates row, records the commit
// associations, and moves the branch head. Returns the update's id,
// which identifies this state change everywhere else (rebases,
// addressed comments, review changesets).
func RecordBranchUpdate(ctx context.Context, cursor *database.TransactionCursor, update BranchUpdate) (int64, error) {
	updateID, err := cursor.Insert(ctx,
		`INSERT INTO branchupdates (branch, updater, from_head, to_head, hook_output)
		 VALUES ({branch}, {updater}, {from_head}, {to_head}, {hook_output})
		 RETURNING id`,
		database.Params{
			"branch":      update.BranchID,
			"updater":     update.UpdaterID,
			"from_head":   update.FromHead,
			"to_head":     update.ToHead,
			"hook_output": update.HookOutput,
		})
	if err != nil {
		return 0, fmt.Errorf("insert branch update: %w", err)
	}

	var commitRows, branchRows []database.Params
	for _, commitID := range update.Associated {
		commitRows = append(commitRows, database.Params{
			"branchupdate": updateID, "commit": commitID, "associated": true,
		})
		branchRows = append(branchRows, database.Params{
			"branch": update.BranchID, "commit": commitID,
		})
	}
	for _, commitID := range update.Disassociated {
		commitRows = append(commitRows, database.Params{
			"branchupdate": updateID, "commit": commitID, "associated": false,
		})
	}
	if err := cursor.ExecuteMany(ctx,
		`INSERT INTO branchupdatecommits (branchupdate, commit, associated)
		 VALUES ({branchupdate}, {commit}, {associated})`, commitRows); err != nil {
		return 0, fmt.Errorf("record branch update commits: %w", err)
	}
	if err := cursor.ExecuteMany(ctx,
		`INSERT INTO branchcommits (branch, commit) VALUES ({branch}, {commit})
		 ON CONFLICT (branch, commit) DO NOTHING`, branchRows); err != nil {
		return 0, fmt.Errorf("associate branch commits: %w", err)
	}
	if len(update.Disassociated) > 0 {
		if _, err := cursor.Execute(ctx,
			`DELETE FROM branchcommits WHERE branch={branch} AND commit={commits}`,
			database.Params{"branch": update.BranchID, "commits": update.Disassociated}); err != nil {
			return 0, fmt.Errorf("disassociate branch commits: %w", err)
		}
	}

	if _, err := cursor.Execute(ctx,
		`UPDATE branches
		    SET head={head}, size=size+{delta}
		  WHERE id={branch}`,
		database.Params{
			"head":   update.ToHead,
			"delta":  len(update.Associated) - len(update.Disassociated),
			"branch": update.BranchID,
		}); err != nil {
		return 0, fmt.Errorf("move branch head: %w", err)
	}
	return updateID, nil
}

// ScopeFilter is one reviewscopefilters row: a path pattern including
// or excluding files from a named scope.
type ScopeFilter struct {
	ScopeID  int64
	Path     string
	Included bool
}

// MatchScopes returns the scopes containing the path. Within one
// scope the most specific matching filter decides, and it must be an
// including one.
func MatchScopes(scopeFilters []ScopeFilter, path string) ([]int64, error) {
	byScope := make(map[int64][]ScopeFilter)
	for _, f := range scopeFilters {
		byScope[f.ScopeID] = append(byScope[f.ScopeID], f)
	}
	var scopes []int64
	for scopeID, group := range byScope {
		// Ascending specificity; the last match wins.
		sort.SliceStable(group, func(i, j int) bool {
			return filters.MoreSpecific(group[j].Path, group[i].Path)
		})
		matched := false
		included := false
		for _, f := range group {
			re, err := filters.CompilePath(f.Path)
			if err != nil {
				return nil, fmt.Errorf("compile scope filter path %q: %w", f.Path, err)
			}
			if re.MatchString(path) {
				matched = true
				included = f.Included
			}
		}
		if matched && included {
			scopes = append(scopes, scopeID)
		}
	}
	sort.Slice(scopes, func(i, j int) bool { return scopes[i] < scopes[j] })
	return scopes, nil
}

// DeriveReviewFiles links the changeset into the review and turns its
// file changes into reviewfiles rows: one unscoped row per file plus
// one per matching scope, with the line counts summed from the
// filediff's change blocks. Re-derivation of an already linked
// changeset inserts nothing.
func DeriveReviewFiles(ctx context.Context, cursor *database.TransactionCursor, reviewID, changesetID int64, branchUpdateID *int64) error {
	if _, err := cursor.Execute(ctx,
		`INSERT INTO reviewchangesets (review, changeset, branchupdate)
		 VALUES ({review}, {changeset}, {branchupdate})
		 ON CONFLICT (review, changeset) DO NOTHING`,
		database.Params{
			"review":       reviewID,
			"changeset":    changesetID,
			"branchupdate": branchUpdateID,
		}); err != nil {
		return fmt.Errorf("link review changeset: %w", err)
	}

	var scopeFilters []ScopeFilter
	err := cursor.Query(ctx,
		`SELECT reviewscopefilters.scope, reviewscopefilters.path, reviewscopefilters.included
		   FROM reviewscopefilters
		   JOIN reviews ON reviews.repository=reviewscopefilters.repository
		  WHERE reviews.id={review}`,
		database.Params{"review": reviewID},
	).Each(func(scan func(dest ...any) error) error {
		var f ScopeFilter
		if err := scan(&f.ScopeID, &f.Path, &f.Included); err != nil {
			return err
		}
		scopeFilters = append(scopeFilters, f)
		return nil
	})
	if err != nil {
		return fmt.Errorf("load scope filters: %w", err)
	}

	type fileChange struct {
		fileID             int64
		path               string
		inserted, deleted  int
	}
	var changes []fileChange
	err = cursor.Query(ctx,
		`SELECT changesetfiles.file, files.path, changesetfilediffs.blocks
		   FROM changesetfiles
		   JOIN files ON files.id=changesetfiles.file
		   LEFT JOIN changesetfilediffs
		     ON changesetfilediffs.changeset=changesetfiles.changeset
		    AND changesetfilediffs.file=changesetfiles.file
		  WHERE changesetfiles.changeset={changeset}
		  ORDER BY changesetfiles.file`,
		database.Params{"changeset": changesetID},
	).Each(func(scan func(dest ...any) error) error {
		var (
			change fileChange
			raw    []byte
		)
		if err := scan(&change.fileID, &change.path, &raw); err != nil {
			return err
		}
		if len(raw) > 0 {
			var blocks []models.ChangeBlock
			if err := json.Unmarshal(raw, &blocks); err != nil {
				return fmt.Errorf("decode change blocks for file %d: %w", change.fileID, err)
			}
			for _, block := range blocks {
				change.inserted += block.InsertCount
				change.deleted += block.DeleteCount
			}
		}
		changes = append(changes, change)
		return nil
	})
	if err != nil {
		return fmt.Errorf("load changeset files: %w", err)
	}

	var rows []database.Params
	for _, change := range changes {
		row := func(scope *int64) database.Params {
			return database.Params{
				"review":    reviewID,
				"changeset": changesetID,
				"file":      change.fileID,
				"scope":     scope,
				"inserted":  change.inserted,
				"deleted":   change.deleted,
			}
		}
		rows = append(rows, row(nil))
		scopes, err := MatchScopes(scopeFilters, change.path)
		if err != nil {
			return err
		}
		for _, scopeID := range scopes {
			scope := scopeID
			rows = append(rows, row(&scope))
		}
	}
	if err := cursor.ExecuteMany(ctx,
		`INSERT INTO reviewfiles (review, changeset, file, scope, inserted, deleted)
		 SELECT {review}, {changeset}, {file}, {scope}, {inserted}, {deleted}
		  WHERE NOT EXISTS (SELECT 1 FROM reviewfiles
		                     WHERE review={review} AND changeset={changeset}
		                       AND file={file} AND scope IS NOT DISTINCT FROM {scope})`,
		rows); err != nil {
		return fmt.Errorf("insert reviewable file changes: %w", err)
	}
	return nil
}

// IntegrateBranchUpdate runs the review side of a push: the
// branchupdate event, the changeset link with its derived reviewable
// file changes, and the comment propagation pass.
func IntegrateBranchUpdate(ctx context.Context, cursor *database.TransactionCursor, reviewID, branchUpdateID, changesetID int64) error {
	var updater *int64
	err := cursor.Query(ctx,
		`SELECT updater FROM branchupdates WHERE id={id}`,
		database.Params{"id": branchUpdateID}).One(&updater)
	if err != nil {
		return fmt.Errorf("load branch update: %w", err)
	}
	if _, err := cursor.Insert(ctx,
		`INSERT INTO reviewevents (review, uid, type)
		 VALUES ({review}, {uid}, {type}) RETURNING id`,
		database.Params{"review": reviewID, "uid": updater, "type": models.EventBranchUpdate}); err != nil {
		return fmt.Errorf("insert branchupdate event: %w", err)
	}
	if err := DeriveReviewFiles(ctx, cursor, reviewID, changesetID, &branchUpdateID); err != nil {
		return err
	}
	if _, err := comments.ApplyBranchUpdate(ctx, cursor, reviewID, branchUpdateID); err != nil {
		return err
	}
	return nil
}
