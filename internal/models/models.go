package models

import (
	"encoding/json"
	"time"
)

type User struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	FullName     string     `json:"fullname"`
	Status       UserStatus `json:"status"`
	Roles        []string   `json:"roles,omitempty"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
}

// IsSystem reports whether the user carries the system role. System
// requests bypass access-control checks.
func (u *User) IsSystem() bool { return u != nil && u.HasRole("system") }

func (u *User) IsAdministrator() bool { return u != nil && u.HasRole("administrator") }

func (u *User) HasRole(role string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type AccessToken struct {
	ID         int64      `json:"id"`
	AccessType AccessType `json:"access_type"`
	Token      string     `json:"-"`
	Title      string     `json:"title"`
	UserID     *int64     `json:"user_id,omitempty"`
	ProfileID  *int64     `json:"profile_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type AccessControlProfile struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	TokenID        *int64    `json:"token_id,omitempty"`
	HTTPRule       RuleValue `json:"http_rule"`
	RepositoryRule RuleValue `json:"repository_rule"`
	ExtensionRule  RuleValue `json:"extension_rule"`
}

// HTTPException allows or forbids requests matching a method and a
// path regexp. A nil RequestMethod matches every method.
type HTTPException struct {
	ID            int64   `json:"id"`
	ProfileID     int64   `json:"profile_id"`
	RequestMethod *string `json:"request_method,omitempty"`
	PathPattern   *string `json:"path_pattern,omitempty"`
}

type RepositoryException struct {
	ID           int64                `json:"id"`
	ProfileID    int64                `json:"profile_id"`
	AccessType   RepositoryAccessType `json:"access_type"`
	RepositoryID *int64               `json:"repository_id,omitempty"`
}

type ExtensionException struct {
	ID           int64               `json:"id"`
	ProfileID    int64               `json:"profile_id"`
	AccessType   ExtensionAccessType `json:"access_type"`
	ExtensionKey *string             `json:"extension_key,omitempty"`
}

type Repository struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Ready     bool      `json:"ready"`
	CreatedAt time.Time `json:"created_at"`
}

type Branch struct {
	ID           int64      `json:"id"`
	RepositoryID int64      `json:"repository_id"`
	Name         string     `json:"name"`
	Type         BranchType `json:"type"`
	HeadID       int64      `json:"head_id"`
	BaseBranchID *int64     `json:"base_branch_id,omitempty"`
	Size         int        `json:"size"`
	Archived     bool       `json:"archived"`
	Merged       bool       `json:"merged"`
}

// BranchUpdate is one row of the append-only log of a branch's state
// changes. FromHeadID is nil for the creating update; UpdaterID is nil
// when the system moved the branch.
type BranchUpdate struct {
	ID            int64     `json:"id"`
	BranchID      int64     `json:"branch_id"`
	UpdaterID     *int64    `json:"updater_id,omitempty"`
	FromHeadID    *int64    `json:"from_head_id,omitempty"`
	ToHeadID      int64     `json:"to_head_id"`
	Associated    []int64   `json:"associated,omitempty"`
	Disassociated []int64   `json:"disassociated,omitempty"`
	HookOutput    string    `json:"hook_output,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

type Commit struct {
	ID            int64     `json:"id"`
	RepositoryID  int64     `json:"repository_id"`
	SHA1          string    `json:"sha1"`
	ParentIDs     []int64   `json:"parent_ids,omitempty"`
	CommitterTime time.Time `json:"committer_time"`
}

type Changeset struct {
	ID              int64           `json:"id"`
	RepositoryID    int64           `json:"repository_id"`
	FromCommitID    *int64          `json:"from_commit_id,omitempty"`
	ToCommitID      int64           `json:"to_commit_id"`
	IsReplay        bool            `json:"is_replay"`
	ForMergeID      *int64          `json:"for_merge_id,omitempty"`
	CompletionLevel CompletionLevel `json:"completion_level"`
}

type File struct {
	ID   int64  `json:"id"`
	Path string `json:"path"`
}

// FileChange is keyed by (changeset, file), not by a surrogate id.
type FileChange struct {
	ChangesetID int64  `json:"changeset_id"`
	FileID      int64  `json:"file_id"`
	OldSHA1     string `json:"old_sha1,omitempty"`
	OldMode     int    `json:"old_mode,omitempty"`
	NewSHA1     string `json:"new_sha1,omitempty"`
	NewMode     int    `json:"new_mode,omitempty"`
}

// ChangeBlock is one contiguous edit in a filediff: DeleteCount old
// lines starting at OldOffset are replaced by InsertCount new lines at
// NewOffset. Offsets are one-based.
type ChangeBlock struct {
	OldOffset   int `json:"old_offset"`
	DeleteCount int `json:"delete_count"`
	NewOffset   int `json:"new_offset"`
	InsertCount int `json:"insert_count"`
}

type Filediff struct {
	ChangesetID int64         `json:"changeset_id"`
	FileID      int64         `json:"file_id"`
	OldLength   int           `json:"old_length"`
	NewLength   int           `json:"new_length"`
	OldSyntax   string        `json:"old_syntax,omitempty"`
	NewSyntax   string        `json:"new_syntax,omitempty"`
	Blocks      []ChangeBlock `json:"blocks"`
}

type Review struct {
	ID             int64       `json:"id"`
	RepositoryID   int64       `json:"repository_id"`
	State          ReviewState `json:"state"`
	Summary        string      `json:"summary"`
	Description    string      `json:"description,omitempty"`
	BranchID       *int64      `json:"branch_id,omitempty"`
	TargetBranchID *int64      `json:"target_branch_id,omitempty"`
	CommitsBehind  int         `json:"commits_behind"`
	CreatedAt      time.Time   `json:"created_at"`
}

type ReviewEvent struct {
	ID        int64           `json:"id"`
	ReviewID  int64           `json:"review_id"`
	UserID    *int64          `json:"user_id,omitempty"`
	Type      ReviewEventType `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
}

// Comment is a commentchains row: an issue or note on a review. Drafts
// have BatchID == nil. The anchor is at most one of a commit-message
// location or a file-version location; line numbers are one-based.
type Comment struct {
	ID       int64        `json:"id"`
	ReviewID int64        `json:"review_id"`
	AuthorID int64        `json:"author_id"`
	Type     CommentType  `json:"type"`
	State    CommentState `json:"state"`
	Text     string       `json:"text"`
	BatchID  *int64       `json:"batch_id,omitempty"`

	// Commit-message anchor.
	MessageCommitID *int64 `json:"message_commit_id,omitempty"`
	// File-version anchor.
	FileID *int64 `json:"file_id,omitempty"`

	AddressedByID       *int64    `json:"addressed_by_id,omitempty"`
	AddressedByUpdateID *int64    `json:"addressed_by_update_id,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// Anchored reports whether the comment carries any anchor at all.
func (c *Comment) Anchored() bool {
	return c.MessageCommitID != nil || c.FileID != nil
}

// CommentLine is one propagated location of a comment: the line range
// in one version (sha1) of the anchored file.
type CommentLine struct {
	CommentID int64     `json:"comment_id"`
	SHA1      string    `json:"sha1"`
	FirstLine int       `json:"first_line"`
	LastLine  int       `json:"last_line"`
	State     LineState `json:"state"`
	AuthorID  int64     `json:"author_id"`
}

type Reply struct {
	ID        int64     `json:"id"`
	CommentID int64     `json:"comment_id"`
	AuthorID  int64     `json:"author_id"`
	Text      string    `json:"text"`
	BatchID   *int64    `json:"batch_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentChange is a draft change of a published comment's state or
// type, valid only while the recorded "from" value still matches.
type CommentChange struct {
	ID        int64         `json:"id"`
	CommentID int64         `json:"comment_id"`
	AuthorID  int64         `json:"author_id"`
	BatchID   *int64        `json:"batch_id,omitempty"`
	FromState *CommentState `json:"from_state,omitempty"`
	ToState   *CommentState `json:"to_state,omitempty"`
	FromType  *CommentType  `json:"from_type,omitempty"`
	ToType    *CommentType  `json:"to_type,omitempty"`
}

// Batch is one user's atomic publication of draft artifacts.
type Batch struct {
	ID        int64     `json:"id"`
	ReviewID  int64     `json:"review_id"`
	AuthorID  int64     `json:"author_id"`
	EventID   int64     `json:"event_id"`
	CommentID *int64    `json:"comment_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ReviewableFileChange is a reviewfiles row: one file's contribution
// to one changeset of a review, assignable per scope.
type ReviewableFileChange struct {
	ID          int64  `json:"id"`
	ReviewID    int64  `json:"review_id"`
	ChangesetID int64  `json:"changeset_id"`
	FileID      int64  `json:"file_id"`
	ScopeID     *int64 `json:"scope_id,omitempty"`
	Inserted    int    `json:"inserted"`
	Deleted     int    `json:"deleted"`
	Reviewed    bool   `json:"reviewed"`
}

// ReviewUserFile is one reviewer's assignment to a reviewable file
// change, with that reviewer's own reviewed flag.
type ReviewUserFile struct {
	FileChangeID int64  `json:"filechange_id"`
	UserID       int64  `json:"user_id"`
	Reviewed     bool   `json:"reviewed"`
	AssignedBy   *int64 `json:"assigned_by,omitempty"`
}

// ReviewFileChange is a draft reviewed-state change, promoted by
// submit into the reviewuserfiles flag it targets.
type ReviewFileChange struct {
	ID           int64  `json:"id"`
	BatchID      *int64 `json:"batch_id,omitempty"`
	FileChangeID int64  `json:"filechange_id"`
	UserID       int64  `json:"user_id"`
	FromReviewed bool   `json:"from_reviewed"`
	ToReviewed   bool   `json:"to_reviewed"`
}

type RepositoryFilter struct {
	ID           int64      `json:"id"`
	RepositoryID int64      `json:"repository_id"`
	SubjectID    int64      `json:"subject_id"`
	Path         string     `json:"path"`
	Type         FilterType `json:"type"`
	DefaultScope bool       `json:"default_scope"`
	ScopeIDs     []int64    `json:"scope_ids,omitempty"`
	DelegateIDs  []int64    `json:"delegate_ids,omitempty"`
}

type ReviewFilter struct {
	ID           int64      `json:"id"`
	ReviewID     int64      `json:"review_id"`
	SubjectID    int64      `json:"subject_id"`
	CreatorID    int64      `json:"creator_id"`
	Path         string     `json:"path"`
	Type         FilterType `json:"type"`
	DefaultScope bool       `json:"default_scope"`
	ScopeIDs     []int64    `json:"scope_ids,omitempty"`
}

type ReviewScope struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type ReviewScopeFilter struct {
	ID           int64  `json:"id"`
	RepositoryID int64  `json:"repository_id"`
	ScopeID      int64  `json:"scope_id"`
	Path         string `json:"path"`
	Included     bool   `json:"included"`
}

// Rebase records an acknowledged non-fast-forward update of a review
// branch. BranchUpdateID == nil means the rebase is pending; at most
// one pending rebase exists per review.
type Rebase struct {
	ID               int64  `json:"id"`
	ReviewID         int64  `json:"review_id"`
	CreatorID        int64  `json:"creator_id"`
	BranchUpdateID   *int64 `json:"branchupdate_id,omitempty"`
	OldUpstreamID    *int64 `json:"old_upstream_id,omitempty"`
	NewUpstreamID    *int64 `json:"new_upstream_id,omitempty"`
	EquivalentMerge  *int64 `json:"equivalent_merge,omitempty"`
	ReplayedRebaseID *int64 `json:"replayed_rebase_id,omitempty"`
}

// IsMove reports whether the rebase moves the branch to a new
// upstream rather than rewriting history in place.
func (r *Rebase) IsMove() bool { return r.NewUpstreamID != nil }

func (r *Rebase) IsPending() bool { return r.BranchUpdateID == nil }

type TrackedBranch struct {
	ID           int64  `json:"id"`
	RepositoryID int64  `json:"repository_id"`
	LocalName    string `json:"local_name"`
	RemoteURL    string `json:"remote_url"`
	RemoteName   string `json:"remote_name"`
	Forced       bool   `json:"forced"`
	Disabled     bool   `json:"disabled"`
}

// Setting is a JSON-valued configuration row at one of four scopes.
// Privileged settings are only returned to the system user.
type Setting struct {
	ID         int64           `json:"id"`
	Scope      SettingScope    `json:"scope"`
	Name       string          `json:"name"`
	Value      json.RawMessage `json:"value"`
	Privileged bool            `json:"privileged"`
	UserID     *int64          `json:"user_id,omitempty"`
	RepoID     *int64          `json:"repository_id,omitempty"`
	BranchID   *int64          `json:"branch_id,omitempty"`
	ReviewID   *int64          `json:"review_id,omitempty"`
}

type Extension struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	URL    string `json:"url"`
	UserID *int64 `json:"user_id,omitempty"`
}

type ExtensionVersion struct {
	ID          int64  `json:"id"`
	ExtensionID int64  `json:"extension_id"`
	Name        string `json:"name"`
	SHA1        string `json:"sha1"`
}

type ExtensionInstallation struct {
	ID        int64  `json:"id"`
	VersionID int64  `json:"version_id"`
	UserID    *int64 `json:"user_id,omitempty"`
}
