package database

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	fullname TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'current',
	password_hash TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS userroles (
	uid BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	PRIMARY KEY (uid, role)
);

CREATE TABLE IF NOT EXISTS accesscontrolprofiles (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	access_token BIGINT,
	http_rule TEXT NOT NULL DEFAULT 'allow',
	repositories_rule TEXT NOT NULL DEFAULT 'allow',
	extensions_rule TEXT NOT NULL DEFAULT 'allow'
);

CREATE TABLE IF NOT EXISTS accesstokens (
	id BIGSERIAL PRIMARY KEY,
	access_type TEXT NOT NULL DEFAULT 'user',
	token TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL DEFAULT '',
	uid BIGINT REFERENCES users(id) ON DELETE CASCADE,
	profile BIGINT REFERENCES accesscontrolprofiles(id) ON DELETE SET NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS accesscontrol_http (
	id BIGSERIAL PRIMARY KEY,
	profile BIGINT NOT NULL REFERENCES accesscontrolprofiles(id) ON DELETE CASCADE,
	request_method TEXT,
	path_pattern TEXT
);

CREATE TABLE IF NOT EXISTS accesscontrol_repositories (
	id BIGSERIAL PRIMARY KEY,
	profile BIGINT NOT NULL REFERENCES accesscontrolprofiles(id) ON DELETE CASCADE,
	access_type TEXT NOT NULL,
	repository BIGINT
);

CREATE TABLE IF NOT EXISTS accesscontrol_extensions (
	id BIGSERIAL PRIMARY KEY,
	profile BIGINT NOT NULL REFERENCES accesscontrolprofiles(id) ON DELETE CASCADE,
	access_type TEXT NOT NULL,
	extension_key TEXT
);

CREATE TABLE IF NOT EXISTS useraccesscontrolprofiles (
	uid BIGINT REFERENCES users(id) ON DELETE CASCADE,
	profile BIGINT NOT NULL REFERENCES accesscontrolprofiles(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS labeledaccesscontrolprofiles (
	labels TEXT NOT NULL,
	profile BIGINT NOT NULL REFERENCES accesscontrolprofiles(id) ON DELETE CASCADE,
	PRIMARY KEY (labels)
);

CREATE TABLE IF NOT EXISTS repositories (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	path TEXT NOT NULL UNIQUE,
	ready BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS commits (
	id BIGSERIAL PRIMARY KEY,
	repository BIGINT NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
	sha1 TEXT NOT NULL,
	committer_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (repository, sha1)
);

CREATE TABLE IF NOT EXISTS edges (
	child BIGINT NOT NULL REFERENCES commits(id) ON DELETE CASCADE,
	parent BIGINT NOT NULL REFERENCES commits(id) ON DELETE CASCADE,
	index INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (child, parent)
);

CREATE TABLE IF NOT EXISTS branches (
	id BIGSERIAL PRIMARY KEY,
	repository BIGINT NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	type TEXT NOT NULL DEFAULT 'normal',
	head BIGINT NOT NULL REFERENCES commits(id),
	base BIGINT REFERENCES branches(id) ON DELETE SET NULL,
	size INTEGER NOT NULL DEFAULT 0,
	archived BOOLEAN NOT NULL DEFAULT FALSE,
	merged BOOLEAN NOT NULL DEFAULT FALSE,
	UNIQUE (repository, name)
);

CREATE TABLE IF NOT EXISTS branchupdates (
	id BIGSERIAL PRIMARY KEY,
	branch BIGINT NOT NULL REFERENCES branches(id) ON DELETE CASCADE,
	updater BIGINT REFERENCES users(id),
	from_head BIGINT REFERENCES commits(id),
	to_head BIGINT NOT NULL REFERENCES commits(id),
	hook_output TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS branchupdatecommits (
	branchupdate BIGINT NOT NULL REFERENCES branchupdates(id) ON DELETE CASCADE,
	commit BIGINT NOT NULL REFERENCES commits(id) ON DELETE CASCADE,
	associated BOOLEAN NOT NULL,
	PRIMARY KEY (branchupdate, commit)
);

CREATE TABLE IF NOT EXISTS branchcommits (
	branch BIGINT NOT NULL REFERENCES branches(id) ON DELETE CASCADE,
	commit BIGINT NOT NULL REFERENCES commits(id) ON DELETE CASCADE,
	PRIMARY KEY (branch, commit)
);

CREATE TABLE IF NOT EXISTS files (
	id BIGSERIAL PRIMARY KEY,
	path TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS changesets (
	id BIGSERIAL PRIMARY KEY,
	repository BIGINT NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
	from_commit BIGINT REFERENCES commits(id),
	to_commit BIGINT NOT NULL REFERENCES commits(id),
	is_replay BOOLEAN NOT NULL DEFAULT FALSE,
	for_merge BIGINT REFERENCES commits(id),
	completion_level TEXT NOT NULL DEFAULT '',
	content_requested TIMESTAMPTZ,
	highlight_requested TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS changesetfiles (
	changeset BIGINT NOT NULL REFERENCES changesets(id) ON DELETE CASCADE,
	file BIGINT NOT NULL REFERENCES files(id),
	old_sha1 TEXT NOT NULL DEFAULT '',
	old_mode INTEGER NOT NULL DEFAULT 0,
	new_sha1 TEXT NOT NULL DEFAULT '',
	new_mode INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (changeset, file)
);

CREATE TABLE IF NOT EXISTS changesetfilediffs (
	changeset BIGINT NOT NULL REFERENCES changesets(id) ON DELETE CASCADE,
	file BIGINT NOT NULL REFERENCES files(id),
	old_length INTEGER NOT NULL DEFAULT 0,
	new_length INTEGER NOT NULL DEFAULT 0,
	old_syntax TEXT NOT NULL DEFAULT '',
	new_syntax TEXT NOT NULL DEFAULT '',
	blocks JSONB NOT NULL DEFAULT '[]',
	PRIMARY KEY (changeset, file)
);

CREATE TABLE IF NOT EXISTS reviews (
	id BIGSERIAL PRIMARY KEY,
	repository BIGINT NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
	state TEXT NOT NULL DEFAULT 'draft',
	summary TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	branch BIGINT REFERENCES branches(id) ON DELETE SET NULL,
	target_branch BIGINT REFERENCES branches(id) ON DELETE SET NULL,
	commits_behind INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS reviewowners (
	review BIGINT NOT NULL REFERENCES reviews(id) ON DELETE CASCADE,
	uid BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	PRIMARY KEY (review, uid)
);

CREATE TABLE IF NOT EXISTS reviewusers (
	review BIGINT NOT NULL REFERENCES reviews(id) ON DELETE CASCADE,
	uid BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	owner BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (review, uid)
);

CREATE TABLE IF NOT EXISTS reviewevents (
	id BIGSERIAL PRIMARY KEY,
	review BIGINT NOT NULL REFERENCES reviews(id) ON DELETE CASCADE,
	uid BIGINT REFERENCES users(id),
	type TEXT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS reviewchangesets (
	review BIGINT NOT NULL REFERENCES reviews(id) ON DELETE CASCADE,
	changeset BIGINT NOT NULL REFERENCES changesets(id) ON DELETE CASCADE,
	branchupdate BIGINT REFERENCES branchupdates(id),
	PRIMARY KEY (review, changeset)
);

CREATE TABLE IF NOT EXISTS reviewscopes (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS reviewscopefilters (
	id BIGSERIAL PRIMARY KEY,
	repository BIGINT NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
	scope BIGINT NOT NULL REFERENCES reviewscopes(id) ON DELETE CASCADE,
	path TEXT NOT NULL,
	included BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS reviewfiles (
	id BIGSERIAL PRIMARY KEY,
	review BIGINT NOT NULL REFERENCES reviews(id) ON DELETE CASCADE,
	changeset BIGINT NOT NULL REFERENCES changesets(id) ON DELETE CASCADE,
	file BIGINT NOT NULL REFERENCES files(id),
	scope BIGINT REFERENCES reviewscopes(id),
	inserted INTEGER NOT NULL DEFAULT 0,
	deleted INTEGER NOT NULL DEFAULT 0,
	reviewed BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS reviewuserfiles (
	file BIGINT NOT NULL REFERENCES reviewfiles(id) ON DELETE CASCADE,
	uid BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	reviewed BOOLEAN NOT NULL DEFAULT FALSE,
	assigned_by BIGINT REFERENCES users(id),
	PRIMARY KEY (file, uid)
);

CREATE TABLE IF NOT EXISTS reviewassignmentstransactions (
	id BIGSERIAL PRIMARY KEY,
	review BIGINT NOT NULL REFERENCES reviews(id) ON DELETE CASCADE,
	event BIGINT NOT NULL REFERENCES reviewevents(id),
	assigner BIGINT REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS reviewassignmentchanges (
	transaction BIGINT NOT NULL REFERENCES reviewassignmentstransactions(id) ON DELETE CASCADE,
	file BIGINT NOT NULL REFERENCES reviewfiles(id) ON DELETE CASCADE,
	uid BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	assigned BOOLEAN NOT NULL,
	PRIMARY KEY (transaction, file, uid)
);

CREATE TABLE IF NOT EXISTS reviewfilechanges (
	id BIGSERIAL PRIMARY KEY,
	batch BIGINT,
	file BIGINT NOT NULL REFERENCES reviewfiles(id) ON DELETE CASCADE,
	uid BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	from_reviewed BOOLEAN NOT NULL,
	to_reviewed BOOLEAN NOT NULL
);

CREATE TABLE IF NOT EXISTS reviewusertags (
	review BIGINT NOT NULL REFERENCES reviews(id) ON DELETE CASCADE,
	uid BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	tag TEXT NOT NULL,
	PRIMARY KEY (review, uid, tag)
);

CREATE TABLE IF NOT EXISTS repositoryfilters (
	id BIGSERIAL PRIMARY KEY,
	repository BIGINT NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
	uid BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	path TEXT NOT NULL,
	type TEXT NOT NULL,
	default_scope BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS repositoryfilterscopes (
	filter BIGINT NOT NULL REFERENCES repositoryfilters(id) ON DELETE CASCADE,
	scope BIGINT NOT NULL REFERENCES reviewscopes(id) ON DELETE CASCADE,
	PRIMARY KEY (filter, scope)
);

CREATE TABLE IF NOT EXISTS repositoryfilterdelegates (
	filter BIGINT NOT NULL REFERENCES repositoryfilters(id) ON DELETE CASCADE,
	uid BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	PRIMARY KEY (filter, uid)
);

CREATE TABLE IF NOT EXISTS reviewfilters (
	id BIGSERIAL PRIMARY KEY,
	review BIGINT NOT NULL REFERENCES reviews(id) ON DELETE CASCADE,
	uid BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	creator BIGINT NOT NULL REFERENCES users(id),
	path TEXT NOT NULL,
	type TEXT NOT NULL,
	default_scope BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS reviewfilterscopes (
	filter BIGINT NOT NULL REFERENCES reviewfilters(id) ON DELETE CASCADE,
	scope BIGINT NOT NULL REFERENCES reviewscopes(id) ON DELETE CASCADE,
	PRIMARY KEY (filter, scope)
);

CREATE TABLE IF NOT EXISTS commentchains (
	id BIGSERIAL PRIMARY KEY,
	review BIGINT NOT NULL REFERENCES reviews(id) ON DELETE CASCADE,
	uid BIGINT NOT NULL REFERENCES users(id),
	type TEXT NOT NULL DEFAULT 'issue',
	state TEXT NOT NULL DEFAULT 'open',
	text TEXT NOT NULL DEFAULT '',
	batch BIGINT,
	message_commit BIGINT REFERENCES commits(id),
	file BIGINT REFERENCES files(id),
	addressed_by BIGINT REFERENCES commits(id),
	addressed_by_update BIGINT REFERENCES branchupdates(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS commentchainlines (
	chain BIGINT NOT NULL REFERENCES commentchains(id) ON DELETE CASCADE,
	sha1 TEXT NOT NULL,
	first_line INTEGER NOT NULL,
	last_line INTEGER NOT NULL,
	state TEXT NOT NULL DEFAULT 'draft',
	uid BIGINT NOT NULL REFERENCES users(id),
	PRIMARY KEY (chain, sha1)
);

CREATE TABLE IF NOT EXISTS commentchainchanges (
	id BIGSERIAL PRIMARY KEY,
	chain BIGINT NOT NULL REFERENCES commentchains(id) ON DELETE CASCADE,
	uid BIGINT NOT NULL REFERENCES users(id),
	batch BIGINT,
	from_state TEXT,
	to_state TEXT,
	from_type TEXT,
	to_type TEXT
);

CREATE TABLE IF NOT EXISTS comments (
	id BIGSERIAL PRIMARY KEY,
	chain BIGINT NOT NULL REFERENCES commentchains(id) ON DELETE CASCADE,
	uid BIGINT NOT NULL REFERENCES users(id),
	text TEXT NOT NULL,
	batch BIGINT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS comments_one_draft_reply
	ON comments (chain, uid) WHERE batch IS NULL;

CREATE TABLE IF NOT EXISTS batches (
	id BIGSERIAL PRIMARY KEY,
	review BIGINT NOT NULL REFERENCES reviews(id) ON DELETE CASCADE,
	uid BIGINT NOT NULL REFERENCES users(id),
	event BIGINT NOT NULL REFERENCES reviewevents(id),
	comment BIGINT REFERENCES commentchains(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS rebases (
	id BIGSERIAL PRIMARY KEY,
	review BIGINT NOT NULL REFERENCES reviews(id) ON DELETE CASCADE,
	creator BIGINT NOT NULL REFERENCES users(id),
	branchupdate BIGINT REFERENCES branchupdates(id),
	old_upstream BIGINT REFERENCES commits(id),
	new_upstream BIGINT REFERENCES commits(id),
	equivalent_merge BIGINT REFERENCES commits(id),
	replayed_rebase BIGINT REFERENCES commits(id)
);

CREATE UNIQUE INDEX IF NOT EXISTS rebases_one_pending
	ON rebases (review) WHERE branchupdate IS NULL;

CREATE TABLE IF NOT EXISTS trackedbranches (
	id BIGSERIAL PRIMARY KEY,
	repository BIGINT NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
	local_name TEXT NOT NULL,
	remote TEXT NOT NULL,
	remote_name TEXT NOT NULL,
	forced BOOLEAN NOT NULL DEFAULT FALSE,
	disabled BOOLEAN NOT NULL DEFAULT FALSE,
	UNIQUE (repository, local_name)
);

CREATE TABLE IF NOT EXISTS systemsettings (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	value JSONB NOT NULL,
	privileged BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS usersettings (
	id BIGSERIAL PRIMARY KEY,
	uid BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	scope TEXT NOT NULL,
	name TEXT NOT NULL,
	value JSONB NOT NULL,
	UNIQUE (uid, scope, name)
);

CREATE TABLE IF NOT EXISTS repositorysettings (
	id BIGSERIAL PRIMARY KEY,
	repository BIGINT NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
	scope TEXT NOT NULL,
	name TEXT NOT NULL,
	value JSONB NOT NULL,
	UNIQUE (repository, scope, name)
);

CREATE TABLE IF NOT EXISTS branchsettings (
	id BIGSERIAL PRIMARY KEY,
	branch BIGINT NOT NULL REFERENCES branches(id) ON DELETE CASCADE,
	scope TEXT NOT NULL,
	name TEXT NOT NULL,
	value JSONB NOT NULL,
	UNIQUE (branch, scope, name)
);

CREATE TABLE IF NOT EXISTS extensions (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	url TEXT NOT NULL,
	uid BIGINT REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS extensionversions (
	id BIGSERIAL PRIMARY KEY,
	extension BIGINT NOT NULL REFERENCES extensions(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	sha1 TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS extensioninstallations (
	id BIGSERIAL PRIMARY KEY,
	version BIGINT NOT NULL REFERENCES extensionversions(id) ON DELETE CASCADE,
	uid BIGINT REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS pubsubreservations (
	id BIGSERIAL PRIMARY KEY,
	channels TEXT NOT NULL,
	payload JSONB NOT NULL,
	delivered BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

const seedSettings = `
INSERT INTO systemsettings (name, value, privileged) VALUES
	('authentication.used_database', '"internal"', TRUE),
	('extensions.enabled', 'false', FALSE),
	('repositories.branch_update_interval', '300', FALSE),
	('repositories.tags_update_interval', '3600', FALSE)
ON CONFLICT (name) DO NOTHING;
`
