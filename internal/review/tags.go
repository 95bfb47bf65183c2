package review

import (
	"context"
	"fmt"
	"sort"

	"github.com/critic-scm/critic/internal/database"
	"github.com/critic-scm/critic/internal/models"
)

// UserFlag is one reviewuserfiles row: an assignment and whether the
// assignee has marked it reviewed.
type UserFlag struct {
	UserID   int64
	Reviewed bool
}

// FileState is one reviewfiles row plus its assignments. Reviewed is
// the per-file aggregate flag.
type FileState struct {
	FileChangeID int64
	Reviewed     bool
	Assignments  []UserFlag
}

// TagState is everything tag computation reads for one review.
type TagState struct {
	Files        []FileState
	ReviewUsers  []int64
	DraftAuthors []int64
}

// ComputeTags derives the per-user tag sets from the three per-file
// aggregates: assignees, active reviewers, and pending file changes.
// The returned slices are sorted for deterministic inserts.
func ComputeTags(state TagState) map[int64][]models.ReviewUserTag {
	assigned := make(map[int64]bool)
	pending := make(map[int64]bool)
	unseen := make(map[int64]bool)
	single := make(map[int64]bool)
	available := make(map[int64]bool)
	primary := make(map[int64]bool)
	active := make(map[int64]bool)

	for _, file := range state.Files {
		var activeHere []int64
		for _, assignment := range file.Assignments {
			if assignment.Reviewed {
				activeHere = append(activeHere, assignment.UserID)
				active[assignment.UserID] = true
			}
		}
		for _, assignment := range file.Assignments {
			uid := assignment.UserID
			assigned[uid] = true
			if !file.Reviewed {
				pending[uid] = true
			}
			if !assignment.Reviewed {
				unseen[uid] = true
			}
			if len(file.Assignments) == 1 {
				single[uid] = true
			}
			if len(activeHere) == 0 {
				available[uid] = true
			}
			if len(activeHere) == 1 && activeHere[0] == uid {
				primary[uid] = true
			}
		}
	}

	tags := make(map[int64][]models.ReviewUserTag)
	add := func(uid int64, tag models.ReviewUserTag) {
		tags[uid] = append(tags[uid], tag)
	}
	for uid := range assigned {
		add(uid, models.TagAssigned)
	}
	for uid := range pending {
		add(uid, models.TagPending)
	}
	for uid := range unseen {
		add(uid, models.TagUnseen)
	}
	for uid := range single {
		add(uid, models.TagSingle)
	}
	for uid := range available {
		add(uid, models.TagAvailable)
	}
	for uid := range primary {
		add(uid, models.TagPrimary)
	}
	for _, uid := range state.ReviewUsers {
		if !assigned[uid] && !active[uid] {
			add(uid, models.TagWatching)
		}
	}
	for _, uid := range state.DraftAuthors {
		add(uid, models.TagUnpublished)
	}
	for uid := range tags {
		sort.Slice(tags[uid], func(i, j int) bool { return tags[uid][i] < tags[uid][j] })
	}
	return tags
}

// draftAuthorsSQL finds users holding any draft artifact on a review:
// comments, replies, comment changes, or reviewed-state changes.
const draftAuthorsSQL = `
	SELECT DISTINCT uid FROM (
		SELECT uid FROM commentchains
		 WHERE review={review} AND batch IS NULL
		UNION
		SELECT comments.uid FROM comments
		  JOIN commentchains ON commentchains.id=comments.chain
		 WHERE commentchains.review={review} AND comments.batch IS NULL
		UNION
		SELECT commentchainchanges.uid FROM commentchainchanges
		  JOIN commentchains ON commentchains.id=commentchainchanges.chain
		 WHERE commentchains.review={review} AND commentchainchanges.batch IS NULL
		UNION
		SELECT reviewfilechanges.uid FROM reviewfilechanges
		  JOIN reviewfiles ON reviewfiles.id=reviewfilechanges.file
		 WHERE reviewfiles.review={review} AND reviewfilechanges.batch IS NULL
	) AS drafts`

// LoadTagState reads the tag computation inputs through the cursor, so
// savepoint counterfactuals observe their own uncommitted writes.
func LoadTagState(ctx context.Context, cursor *database.TransactionCursor, reviewID int64) (TagState, error) {
	var state TagState
	params := database.Params{"review": reviewID}

	byFile := make(map[int64]int)
	err := cursor.Query(ctx,
		`SELECT id, reviewed FROM reviewfiles WHERE review={review} ORDER BY id`,
		params,
	).Each(func(scan func(dest ...any) error) error {
		var file FileState
		if err := scan(&file.FileChangeID, &file.Reviewed); err != nil {
			return err
		}
		byFile[file.FileChangeID] = len(state.Files)
		state.Files = append(state.Files, file)
		return nil
	})
	if err != nil {
		return TagState{}, fmt.Errorf("load review files: %w", err)
	}

	err = cursor.Query(ctx,
		`SELECT reviewuserfiles.file, reviewuserfiles.uid, reviewuserfiles.reviewed
		   FROM reviewuserfiles
		   JOIN reviewfiles ON reviewfiles.id=reviewuserfiles.file
		  WHERE reviewfiles.review={review}
		  ORDER BY reviewuserfiles.file, reviewuserfiles.uid`,
		params,
	).Each(func(scan func(dest ...any) error) error {
		var (
			fileID int64
			flag   UserFlag
		)
		if err := scan(&fileID, &flag.UserID, &flag.Reviewed); err != nil {
			return err
		}
		if index, ok := byFile[fileID]; ok {
			state.Files[index].Assignments = append(state.Files[index].Assignments, flag)
		}
		return nil
	})
	if err != nil {
		return TagState{}, fmt.Errorf("load assignments: %w", err)
	}

	state.ReviewUsers, err = database.Scalars[int64](cursor.Query(ctx,
		`SELECT uid FROM reviewusers WHERE review={review} ORDER BY uid`, params))
	if err != nil {
		return TagState{}, fmt.Errorf("load review users: %w", err)
	}

	state.DraftAuthors, err = database.Scalars[int64](cursor.Query(ctx, draftAuthorsSQL, params))
	if err != nil {
		return TagState{}, fmt.Errorf("load draft authors: %w", err)
	}
	return state, nil
}

// UpdateReviewTags rewrites reviewusertags for the review wholesale
// from current row state. The would-be tags are owned by
// UpdateWouldBeAcceptedTag and left in place.
func UpdateReviewTags(ctx context.Context, cursor *database.TransactionCursor, reviewID int64) error {
	state, err := LoadTagState(ctx, cursor, reviewID)
	if err != nil {
		return err
	}
	tags := ComputeTags(state)

	if _, err := cursor.Execute(ctx,
		`DELETE FROM reviewusertags
		  WHERE review={review}
		    AND tag NOT IN ('would_be_accepted', 'would_be_unaccepted')`,
		database.Params{"review": reviewID}); err != nil {
		return fmt.Errorf("clear review tags: %w", err)
	}

	uids := make([]int64, 0, len(tags))
	for uid := range tags {
		uids = append(uids, uid)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })

	var rows []database.Params
	for _, uid := range uids {
		for _, tag := range tags[uid] {
			rows = append(rows, database.Params{
				"review": reviewID,
				"uid":    uid,
				"tag":    string(tag),
			})
		}
	}
	if err := cursor.ExecuteMany(ctx,
		`INSERT INTO reviewusertags (review, uid, tag) VALUES ({review}, {uid}, {tag})`,
		rows); err != nil {
		return fmt.Errorf("write review tags: %w", err)
	}
	return nil
}
