package models

// UserStatus tracks whether an account is usable and assignable.
type UserStatus string

const (
	UserCurrent  UserStatus = "current"
	UserAbsent   UserStatus = "absent"
	UserRetired  UserStatus = "retired"
	UserDisabled UserStatus = "disabled"
)

func (s UserStatus) Valid() bool {
	switch s {
	case UserCurrent, UserAbsent, UserRetired, UserDisabled:
		return true
	}
	return false
}

// AccessType distinguishes what kind of principal an access token or
// access-control exception applies to.
type AccessType string

const (
	AccessUser      AccessType = "user"
	AccessAnonymous AccessType = "anonymous"
	AccessSystem    AccessType = "system"
)

func (t AccessType) Valid() bool {
	switch t {
	case AccessUser, AccessAnonymous, AccessSystem:
		return true
	}
	return false
}

// RepositoryAccessType is the kind of repository operation an
// access-control exception applies to.
type RepositoryAccessType string

const (
	RepositoryRead   RepositoryAccessType = "read"
	RepositoryModify RepositoryAccessType = "modify"
)

func (t RepositoryAccessType) Valid() bool {
	return t == RepositoryRead || t == RepositoryModify
}

// ExtensionAccessType is the kind of extension operation an
// access-control exception applies to.
type ExtensionAccessType string

const (
	ExtensionInstall ExtensionAccessType = "install"
	ExtensionExecute ExtensionAccessType = "execute"
)

func (t ExtensionAccessType) Valid() bool {
	return t == ExtensionInstall || t == ExtensionExecute
}

// RuleValue is the default decision of an access-control category.
type RuleValue string

const (
	RuleAllow RuleValue = "allow"
	RuleDeny  RuleValue = "deny"
)

func (r RuleValue) Valid() bool { return r == RuleAllow || r == RuleDeny }

// BranchType separates plain branches from review branches.
type BranchType string

const (
	BranchNormal BranchType = "normal"
	BranchReview BranchType = "review"
)

// ReviewState is the review lifecycle FSM state.
//
// Legal transitions: draft -> open -> {closed, dropped} -> open.
type ReviewState string

const (
	ReviewDraft   ReviewState = "draft"
	ReviewOpen    ReviewState = "open"
	ReviewClosed  ReviewState = "closed"
	ReviewDropped ReviewState = "dropped"
)

func (s ReviewState) Valid() bool {
	switch s {
	case ReviewDraft, ReviewOpen, ReviewClosed, ReviewDropped:
		return true
	}
	return false
}

// CanTransition reports whether the review FSM allows s -> next.
func (s ReviewState) CanTransition(next ReviewState) bool {
	switch s {
	case ReviewDraft:
		return next == ReviewOpen
	case ReviewOpen:
		return next == ReviewClosed || next == ReviewDropped
	case ReviewClosed, ReviewDropped:
		return next == ReviewOpen
	}
	return false
}

// ReviewEventType tags rows of the append-only review event log.
type ReviewEventType string

const (
	EventCreated      ReviewEventType = "created"
	EventReady        ReviewEventType = "ready"
	EventPublished    ReviewEventType = "published"
	EventClosed       ReviewEventType = "closed"
	EventDropped      ReviewEventType = "dropped"
	EventReopened     ReviewEventType = "reopened"
	EventPinged       ReviewEventType = "pinged"
	EventBranchUpdate ReviewEventType = "branchupdate"
	EventBatch        ReviewEventType = "batch"
	EventAssignments  ReviewEventType = "assignments"
)

// CommentType distinguishes issues (block acceptance while open) from notes.
type CommentType string

const (
	CommentIssue CommentType = "issue"
	CommentNote  CommentType = "note"
)

func (t CommentType) Valid() bool { return t == CommentIssue || t == CommentNote }

// CommentState is the lifecycle of a published issue. Notes are always open.
type CommentState string

const (
	CommentOpen      CommentState = "open"
	CommentAddressed CommentState = "addressed"
	CommentResolved  CommentState = "resolved"
)

func (s CommentState) Valid() bool {
	switch s {
	case CommentOpen, CommentAddressed, CommentResolved:
		return true
	}
	return false
}

// LineState marks comment line rows as draft or published ("current").
type LineState string

const (
	LineDraft   LineState = "draft"
	LineCurrent LineState = "current"
)

// FilterType is the effect of a path filter on its subject user.
type FilterType string

const (
	FilterReviewer FilterType = "reviewer"
	FilterWatcher  FilterType = "watcher"
	FilterIgnore   FilterType = "ignore"
)

func (t FilterType) Valid() bool {
	switch t {
	case FilterReviewer, FilterWatcher, FilterIgnore:
		return true
	}
	return false
}

// CompletionLevel describes how much of a changeset the workers have
// computed so far.
type CompletionLevel string

const (
	LevelStructure    CompletionLevel = "structure"
	LevelChangedLines CompletionLevel = "changedlines"
	LevelAnalysis     CompletionLevel = "analysis"
	LevelSyntax       CompletionLevel = "syntaxhighlight"
	LevelFull         CompletionLevel = "full"
)

// Rank orders completion levels so "have we reached level L" is a
// comparison. Unknown levels rank lowest.
func (l CompletionLevel) Rank() int {
	switch l {
	case LevelStructure:
		return 1
	case LevelChangedLines:
		return 2
	case LevelAnalysis:
		return 3
	case LevelSyntax:
		return 4
	case LevelFull:
		return 5
	}
	return 0
}

// ReviewUserTag names the derived per-user review tags.
type ReviewUserTag string

const (
	TagAssigned          ReviewUserTag = "assigned"
	TagPending           ReviewUserTag = "pending"
	TagUnseen            ReviewUserTag = "unseen"
	TagSingle            ReviewUserTag = "single"
	TagAvailable         ReviewUserTag = "available"
	TagPrimary           ReviewUserTag = "primary"
	TagWatching          ReviewUserTag = "watching"
	TagUnpublished       ReviewUserTag = "unpublished"
	TagWouldBeAccepted   ReviewUserTag = "would_be_accepted"
	TagWouldBeUnaccepted ReviewUserTag = "would_be_unaccepted"
)

// SettingScope is which object a setting row is bound to.
type SettingScope string

const (
	SettingSystem     SettingScope = "system"
	SettingUser       SettingScope = "user"
	SettingRepository SettingScope = "repository"
	SettingBranch     SettingScope = "branch"
)
