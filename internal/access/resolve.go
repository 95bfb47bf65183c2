package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/critic-scm/critic/internal/database"
	"github.com/critic-scm/critic/internal/dbquery"
	"github.com/critic-scm/critic/internal/models"
	"github.com/critic-scm/critic/internal/session"
)

// ResolveProfile finds the effective profile for a session, in order:
// access token's profile, user-pinned profile, label-matched profile,
// anonymous default, implicit allow-all.
func ResolveProfile(ctx context.Context, q dbquery.Queryer, s *session.Session) (*Profile, error) {
	if token := s.AccessToken(); token != nil && token.ProfileID != nil {
		return loadProfile(ctx, q, *token.ProfileID)
	}

	if user := s.User(); user != nil {
		id, ok, err := lookupProfileID(ctx, q,
			`SELECT profile FROM useraccesscontrolprofiles WHERE uid={uid}`,
			database.Params{"uid": user.ID})
		if err != nil {
			return nil, err
		}
		if ok {
			return loadProfile(ctx, q, id)
		}
	}

	if key := s.LabelKey(); key != "" {
		id, ok, err := lookupProfileID(ctx, q,
			`SELECT profile FROM labeledaccesscontrolprofiles WHERE labels={labels}`,
			database.Params{"labels": key})
		if err != nil {
			return nil, err
		}
		if ok {
			return loadProfile(ctx, q, id)
		}
	}

	id, ok, err := lookupProfileID(ctx, q,
		`SELECT profile FROM useraccesscontrolprofiles WHERE uid IS NULL`, nil)
	if err != nil {
		return nil, err
	}
	if ok {
		return loadProfile(ctx, q, id)
	}

	return AllowAll(), nil
}

func lookupProfileID(ctx context.Context, q dbquery.Queryer, sql string, params database.Params) (int64, bool, error) {
	var id int64
	err := q.Query(ctx, sql, params).Scalar(&id)
	if errors.Is(err, database.ErrZeroRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func loadProfile(ctx context.Context, q dbquery.Queryer, id int64) (*Profile, error) {
	profile := &Profile{ID: id}
	err := q.Query(ctx,
		`SELECT title, http_rule, repositories_rule, extensions_rule
		   FROM accesscontrolprofiles WHERE id={id}`,
		database.Params{"id": id},
	).One(&profile.Title, &profile.HTTPRule, &profile.RepositoryRule, &profile.ExtensionRule)
	if errors.Is(err, database.ErrZeroRows) {
		return nil, &dbquery.InvalidIDError{Entity: "accesscontrolprofiles", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("load access control profile: %w", err)
	}

	err = q.Query(ctx,
		`SELECT id, request_method, path_pattern FROM accesscontrol_http WHERE profile={id}`,
		database.Params{"id": id},
	).Each(func(scan func(dest ...any) error) error {
		exc := models.HTTPException{ProfileID: id}
		if err := scan(&exc.ID, &exc.RequestMethod, &exc.PathPattern); err != nil {
			return err
		}
		profile.HTTPExceptions = append(profile.HTTPExceptions, exc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load http exceptions: %w", err)
	}

	err = q.Query(ctx,
		`SELECT id, access_type, repository FROM accesscontrol_repositories WHERE profile={id}`,
		database.Params{"id": id},
	).Each(func(scan func(dest ...any) error) error {
		exc := models.RepositoryException{ProfileID: id}
		if err := scan(&exc.ID, &exc.AccessType, &exc.RepositoryID); err != nil {
			return err
		}
		profile.RepositoryExceptions = append(profile.RepositoryExceptions, exc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load repository exceptions: %w", err)
	}

	err = q.Query(ctx,
		`SELECT id, access_type, extension_key FROM accesscontrol_extensions WHERE profile={id}`,
		database.Params{"id": id},
	).Each(func(scan func(dest ...any) error) error {
		exc := models.ExtensionException{ProfileID: id}
		if err := scan(&exc.ID, &exc.AccessType, &exc.ExtensionKey); err != nil {
			return err
		}
		profile.ExtensionExceptions = append(profile.ExtensionExceptions, exc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load extension exceptions: %w", err)
	}

	return profile, nil
}
