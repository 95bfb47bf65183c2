package access

import (
	"testing"

	"github.com/critic-scm/critic/internal/models"
	"github.com/critic-scm/critic/internal/session"
)

func strptr(s string) *string { return &s }
func idptr(n int64) *int64    { return &n }

func TestCheckHTTPAllowWithDenyException(t *testing.T) {
	profile := &Profile{
		HTTPRule: models.RuleAllow,
		HTTPExceptions: []models.HTTPException{
			{RequestMethod: strptr("DELETE"), PathPattern: strptr("api/v1/repositories/.*")},
		},
	}
	s := session.Anonymous()

	if err := profile.CheckHTTP(s, "GET", "api/v1/reviews/42"); err != nil {
		t.Fatalf("unmatched request must pass: %v", err)
	}
	if err := profile.CheckHTTP(s, "DELETE", "api/v1/repositories/3"); err == nil {
		t.Fatal("matched exception under allow must deny")
	}
}

func TestCheckHTTPDenyWithAllowException(t *testing.T) {
	profile := &Profile{
		HTTPRule: models.RuleDeny,
		HTTPExceptions: []models.HTTPException{
			{PathPattern: strptr("api/v1/sessions")},
		},
	}
	s := session.Anonymous()

	if err := profile.CheckHTTP(s, "POST", "api/v1/sessions"); err != nil {
		t.Fatalf("matched exception under deny must pass: %v", err)
	}
	if err := profile.CheckHTTP(s, "GET", "api/v1/reviews/42"); err == nil {
		t.Fatal("unmatched request under deny must fail")
	}
}

func TestCheckHTTPPathPatternAnchored(t *testing.T) {
	profile := &Profile{
		HTTPRule: models.RuleDeny,
		HTTPExceptions: []models.HTTPException{
			{PathPattern: strptr("api/v1/reviews")},
		},
	}
	s := session.Anonymous()
	if err := profile.CheckHTTP(s, "GET", "api/v1/reviews/42"); err == nil {
		t.Fatal("pattern must be anchored, not a prefix match")
	}
}

func TestCheckHTTPNilMethodMatchesAll(t *testing.T) {
	profile := &Profile{
		HTTPRule: models.RuleAllow,
		HTTPExceptions: []models.HTTPException{
			{PathPattern: strptr("admin/.*")},
		},
	}
	s := session.Anonymous()
	for _, method := range []string{"GET", "POST", "DELETE"} {
		if err := profile.CheckHTTP(s, method, "admin/users"); err == nil {
			t.Fatalf("%s admin/users must deny", method)
		}
	}
}

func TestSystemSessionBypasses(t *testing.T) {
	profile := &Profile{HTTPRule: models.RuleDeny}
	if err := profile.CheckHTTP(session.System("reviewupdater"), "GET", "anything"); err != nil {
		t.Fatalf("system session must bypass: %v", err)
	}

	admin := session.ForUser(&models.User{ID: 1, Roles: []string{"system"}}, nil)
	if err := profile.CheckHTTP(admin, "GET", "anything"); err != nil {
		t.Fatalf("system-role user must bypass: %v", err)
	}
}

func TestCheckRepository(t *testing.T) {
	profile := &Profile{
		RepositoryRule: models.RuleAllow,
		RepositoryExceptions: []models.RepositoryException{
			{AccessType: models.RepositoryModify, RepositoryID: idptr(3)},
		},
	}
	s := session.Anonymous()

	if err := profile.CheckRepository(s, models.RepositoryRead, 3); err != nil {
		t.Fatalf("read access must pass: %v", err)
	}
	if err := profile.CheckRepository(s, models.RepositoryModify, 3); err == nil {
		t.Fatal("modify on repository 3 must deny")
	}
	if err := profile.CheckRepository(s, models.RepositoryModify, 4); err != nil {
		t.Fatalf("modify on another repository must pass: %v", err)
	}
}

func TestCheckRepositoryNilRepositoryMatchesAll(t *testing.T) {
	profile := &Profile{
		RepositoryRule: models.RuleDeny,
		RepositoryExceptions: []models.RepositoryException{
			{AccessType: models.RepositoryRead},
		},
	}
	s := session.Anonymous()
	if err := profile.CheckRepository(s, models.RepositoryRead, 99); err != nil {
		t.Fatalf("read exception without repository must match all: %v", err)
	}
	if err := profile.CheckRepository(s, models.RepositoryModify, 99); err == nil {
		t.Fatal("modify must still deny")
	}
}

func TestCheckExtension(t *testing.T) {
	profile := &Profile{
		ExtensionRule: models.RuleDeny,
		ExtensionExceptions: []models.ExtensionException{
			{AccessType: models.ExtensionExecute, ExtensionKey: strptr("linter")},
		},
	}
	s := session.Anonymous()

	if err := profile.CheckExtension(s, models.ExtensionExecute, "linter"); err != nil {
		t.Fatalf("excepted extension must pass: %v", err)
	}
	if err := profile.CheckExtension(s, models.ExtensionExecute, "other"); err == nil {
		t.Fatal("other extension must deny")
	}
	if err := profile.CheckExtension(s, models.ExtensionInstall, "linter"); err == nil {
		t.Fatal("install must deny")
	}
}

func TestAllowAllProfile(t *testing.T) {
	profile := AllowAll()
	s := session.Anonymous()
	if err := profile.CheckHTTP(s, "GET", "anything"); err != nil {
		t.Fatalf("CheckHTTP: %v", err)
	}
	if err := profile.CheckRepository(s, models.RepositoryModify, 1); err != nil {
		t.Fatalf("CheckRepository: %v", err)
	}
	if err := profile.CheckExtension(s, models.ExtensionInstall, "x"); err != nil {
		t.Fatalf("CheckExtension: %v", err)
	}
}
