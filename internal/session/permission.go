package session

import (
	"fmt"

	"github.com/critic-scm/critic/internal/models"
)

// PermissionDeniedError is raised synchronously at modifier entry
// points; it aborts the enclosing transaction.
type PermissionDeniedError struct {
	Message string
}

func (e *PermissionDeniedError) Error() string {
	return "permission denied: " + e.Message
}

// RaiseUnlessUser allows the named user themself, administrators, and
// the system.
func (s *Session) RaiseUnlessUser(user *models.User) error {
	if s.IsSystem() {
		return nil
	}
	if s.user != nil && user != nil && s.user.ID == user.ID {
		return nil
	}
	if s.user.IsAdministrator() {
		return nil
	}
	return &PermissionDeniedError{Message: fmt.Sprintf("must be user %q", userName(user))}
}

func (s *Session) RaiseUnlessAdministrator() error {
	if s.IsSystem() || s.user.IsAdministrator() {
		return nil
	}
	return &PermissionDeniedError{Message: "must be an administrator"}
}

func (s *Session) RaiseUnlessSystem() error {
	if s.IsSystem() || s.user.IsSystem() {
		return nil
	}
	return &PermissionDeniedError{Message: "must be the system"}
}

// RaiseUnlessService allows only the named background service.
func (s *Session) RaiseUnlessService(name string) error {
	if s.IsSystem() && s.serviceName == name {
		return nil
	}
	return &PermissionDeniedError{Message: fmt.Sprintf("must be the %q service", name)}
}

func userName(user *models.User) string {
	if user == nil {
		return "<none>"
	}
	return user.Name
}
