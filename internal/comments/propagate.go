package comments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/critic-scm/critic/internal/database"
	"github.com/critic-scm/critic/internal/models"
	"github.com/critic-scm/critic/internal/propagation"
)

// UpdateResult summarizes one branch-update propagation pass.
type UpdateResult struct {
	Advanced  int
	Addressed int
}

// fileHistory is the tracked file's modifications across the commits
// one branch update associated, in changeset order, plus the file's
// blob in the new head.
type fileHistory struct {
	mods []propagation.Modification
	head string
}

// ApplyBranchUpdate advances every open file-anchored comment chain of
// the review across the branch update's changesets: new line rows are
// inserted for every surviving file version, and issues whose range no
// longer exists are marked addressed by the killing commit and this
// branch update.
func ApplyBranchUpdate(ctx context.Context, cursor *database.TransactionCursor, reviewID, branchUpdateID int64) (*UpdateResult, error) {
	histories, err := loadHistories(ctx, cursor, reviewID, branchUpdateID)
	if err != nil {
		return nil, err
	}
	if len(histories) == 0 {
		return &UpdateResult{}, nil
	}
	fileIDs := make([]int64, 0, len(histories))
	for fileID := range histories {
		fileIDs = append(fileIDs, fileID)
	}

	type chain struct {
		id, uid int64
		kind    models.CommentType
		fileID  int64
		draft   bool
	}
	var chains []chain
	err = cursor.Query(ctx,
		`SELECT id, uid, type, file, batch IS NULL FROM commentchains
		  WHERE review={review} AND file={files} AND state='open'
		  ORDER BY id`,
		database.Params{"review": reviewID, "files": fileIDs},
	).Each(func(scan func(dest ...any) error) error {
		var c chain
		if err := scan(&c.id, &c.uid, &c.kind, &c.fileID, &c.draft); err != nil {
			return err
		}
		chains = append(chains, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load open comment chains: %w", err)
	}

	result := &UpdateResult{}
	for _, c := range chains {
		history := histories[c.fileID]
		existing, err := loadLocations(ctx, cursor, c.id)
		if err != nil {
			return nil, err
		}
		known := make(map[string]bool, len(existing))
		for _, loc := range existing {
			known[loc.SHA1] = true
		}

		advanced := propagation.Advance(existing, history.mods, history.head)
		var fresh []propagation.Location
		for _, loc := range advanced.Locations {
			if !known[loc.SHA1] {
				fresh = append(fresh, loc)
			}
		}
		if len(fresh) > 0 {
			state := models.LineCurrent
			if c.draft {
				state = models.LineDraft
			}
			if err := insertLines(ctx, cursor, c.id, c.uid, state, fresh); err != nil {
				return nil, err
			}
			result.Advanced++
		}

		if advanced.AddressedBy != nil && c.kind == models.CommentIssue {
			if _, err := cursor.Execute(ctx,
				`UPDATE commentchains
				    SET state={state}, addressed_by={commit}, addressed_by_update={branchupdate}
				  WHERE id={chain} AND state='open'`,
				database.Params{
					"state":        models.CommentAddressed,
					"commit":       *advanced.AddressedBy,
					"branchupdate": branchUpdateID,
					"chain":        c.id,
				}); err != nil {
				return nil, fmt.Errorf("mark comment %d addressed: %w", c.id, err)
			}
			result.Addressed++
		}
	}
	return result, nil
}

// loadHistories reads the modifications the branch update's changesets
// made, grouped per file and ordered by changeset.
func loadHistories(ctx context.Context, cursor *database.TransactionCursor, reviewID, branchUpdateID int64) (map[int64]fileHistory, error) {
	histories := make(map[int64]fileHistory)
	err := cursor.Query(ctx,
		`SELECT changesets.to_commit, changesetfiles.file,
		        changesetfiles.old_sha1, changesetfiles.new_sha1,
		        changesetfilediffs.blocks
		   FROM reviewchangesets
		   JOIN changesets ON changesets.id=reviewchangesets.changeset
		   JOIN changesetfiles ON changesetfiles.changeset=changesets.id
		   LEFT JOIN changesetfilediffs
		     ON changesetfilediffs.changeset=changesets.id
		    AND changesetfilediffs.file=changesetfiles.file
		  WHERE reviewchangesets.review={review}
		    AND reviewchangesets.branchupdate={branchupdate}
		  ORDER BY changesets.id, changesetfiles.file`,
		database.Params{"review": reviewID, "branchupdate": branchUpdateID},
	).Each(func(scan func(dest ...any) error) error {
		var (
			commitID         int64
			fileID           int64
			oldSHA1, newSHA1 string
			raw              []byte
		)
		if err := scan(&commitID, &fileID, &oldSHA1, &newSHA1, &raw); err != nil {
			return err
		}
		var blocks []models.ChangeBlock
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &blocks); err != nil {
				return fmt.Errorf("decode change blocks for file %d: %w", fileID, err)
			}
		}
		history := histories[fileID]
		history.mods = append(history.mods, propagation.Modification{
			CommitID: commitID,
			OldSHA1:  oldSHA1,
			NewSHA1:  newSHA1,
			Blocks:   blocks,
		})
		history.head = newSHA1
		histories[fileID] = history
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load branch update changes: %w", err)
	}
	return histories, nil
}
