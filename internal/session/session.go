package session

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/critic-scm/critic/internal/models"
)

// Type classifies what kind of principal a session runs as.
type Type string

const (
	TypeUser      Type = "user"
	TypeAnonymous Type = "anonymous"
	TypeSystem    Type = "system"
)

// ErrNestedTransaction rejects a second transaction in one session.
var ErrNestedTransaction = errors.New("nested transactions are forbidden")

type Session struct {
	sessionType Type
	user        *models.User
	labels      []string
	accessToken *models.AccessToken
	serviceName string
	cache       *Cache

	mu            sync.Mutex
	inTransaction bool
}

// ForUser opens a session for an authenticated user.
func ForUser(user *models.User, labels []string) *Session {
	sorted := append([]string(nil), labels...)
	sort.Strings(sorted)
	return &Session{
		sessionType: TypeUser,
		user:        user,
		labels:      sorted,
		cache:       NewCache(),
	}
}

// Anonymous opens an unauthenticated session.
func Anonymous() *Session {
	return &Session{sessionType: TypeAnonymous, cache: NewCache()}
}

// System opens the privileged system session used by background
// services. name is the service's registered name, empty for the
// server itself.
func System(name string) *Session {
	return &Session{sessionType: TypeSystem, serviceName: name, cache: NewCache()}
}

func (s *Session) Type() Type                        { return s.sessionType }
func (s *Session) User() *models.User                { return s.user }
func (s *Session) Labels() []string                  { return s.labels }
func (s *Session) AccessToken() *models.AccessToken  { return s.accessToken }
func (s *Session) ServiceName() string               { return s.serviceName }
func (s *Session) Cache() *Cache                     { return s.cache }
func (s *Session) IsSystem() bool                    { return s.sessionType == TypeSystem }
func (s *Session) WithAccessToken(t *models.AccessToken) *Session {
	s.accessToken = t
	return s
}

// LabelKey joins the sorted authentication labels the way labeled
// access-control profiles are keyed.
func (s *Session) LabelKey() string { return strings.Join(s.labels, "|") }

// EnterTransaction claims the session's single transaction slot.
func (s *Session) EnterTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inTransaction {
		return ErrNestedTransaction
	}
	s.inTransaction = true
	return nil
}

func (s *Session) LeaveTransaction() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inTransaction = false
}
