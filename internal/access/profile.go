// Package access implements access-control profiles: three category
// rules (http, repositories, extensions), each a default allow/deny
// plus an exception list, resolved per session.
package access

import (
	"regexp"

	"github.com/critic-scm/critic/internal/models"
	"github.com/critic-scm/critic/internal/session"
)

// Profile is a fully loaded access-control profile: the category rules
// plus their exception lists.
type Profile struct {
	ID             int64
	Title          string
	HTTPRule       models.RuleValue
	RepositoryRule models.RuleValue
	ExtensionRule  models.RuleValue

	HTTPExceptions       []models.HTTPException
	RepositoryExceptions []models.RepositoryException
	ExtensionExceptions  []models.ExtensionException
}

// AllowAll is the implicit profile used when nothing else matches.
func AllowAll() *Profile {
	return &Profile{
		Title:          "allow-all",
		HTTPRule:       models.RuleAllow,
		RepositoryRule: models.RuleAllow,
		ExtensionRule:  models.RuleAllow,
	}
}

// decide applies the category rule: with `allow` the request passes
// unless an exception matches, with `deny` it passes only if one does.
func decide(rule models.RuleValue, exceptionMatched bool) bool {
	if rule == models.RuleAllow {
		return !exceptionMatched
	}
	return exceptionMatched
}

// CheckHTTP decides an HTTP request. Exceptions match on request
// method (nil matches all) and an anchored path regexp.
func (p *Profile) CheckHTTP(s *session.Session, method, path string) error {
	if sessionBypasses(s) {
		return nil
	}
	matched := false
	for _, exc := range p.HTTPExceptions {
		if exc.RequestMethod != nil && *exc.RequestMethod != method {
			continue
		}
		if exc.PathPattern != nil {
			re, err := regexp.Compile("^(?:" + *exc.PathPattern + ")$")
			if err != nil || !re.MatchString(path) {
				continue
			}
		}
		matched = true
		break
	}
	if decide(p.HTTPRule, matched) {
		return nil
	}
	return &session.PermissionDeniedError{Message: method + " " + path}
}

// CheckRepository decides repository access of the given type.
func (p *Profile) CheckRepository(s *session.Session, accessType models.RepositoryAccessType, repositoryID int64) error {
	if sessionBypasses(s) {
		return nil
	}
	matched := false
	for _, exc := range p.RepositoryExceptions {
		if exc.AccessType != accessType {
			continue
		}
		if exc.RepositoryID != nil && *exc.RepositoryID != repositoryID {
			continue
		}
		matched = true
		break
	}
	if decide(p.RepositoryRule, matched) {
		return nil
	}
	return &session.PermissionDeniedError{Message: "repository access"}
}

// CheckExtension decides extension access of the given type.
func (p *Profile) CheckExtension(s *session.Session, accessType models.ExtensionAccessType, extensionKey string) error {
	if sessionBypasses(s) {
		return nil
	}
	matched := false
	for _, exc := range p.ExtensionExceptions {
		if exc.AccessType != accessType {
			continue
		}
		if exc.ExtensionKey != nil && *exc.ExtensionKey != extensionKey {
			continue
		}
		matched = true
		break
	}
	if decide(p.ExtensionRule, matched) {
		return nil
	}
	return &session.PermissionDeniedError{Message: "extension access"}
}

func sessionBypasses(s *session.Session) bool {
	return s.IsSystem() || s.User().IsSystem()
}
