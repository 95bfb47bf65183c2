// Package settings reads and writes the JSON-valued configuration rows
// at the four scopes: system, user, repository, and branch. System
// settings are keyed by dotted name alone; the other scopes add a
// free-form scope component and a binding row (user, repository or
// branch id).
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/critic-scm/critic/internal/database"
	"github.com/critic-scm/critic/internal/dbquery"
	"github.com/critic-scm/critic/internal/models"
	"github.com/critic-scm/critic/internal/pubsub"
	"github.com/critic-scm/critic/internal/session"
	"github.com/critic-scm/critic/internal/transaction"
)

type binding struct {
	table  string
	column string
}

var bindings = map[models.SettingScope]binding{
	models.SettingUser:       {table: "usersettings", column: "uid"},
	models.SettingRepository: {table: "repositorysettings", column: "repository"},
	models.SettingBranch:     {table: "branchsettings", column: "branch"},
}

// FetchSystem loads one system setting. Privileged settings are only
// returned to the system.
func FetchSystem(ctx context.Context, q dbquery.Queryer, s *session.Session, name string) (*models.Setting, error) {
	if !models.ValidSettingName(name) {
		return nil, fmt.Errorf("invalid setting name %q", name)
	}
	setting := &models.Setting{Scope: models.SettingSystem, Name: name}
	err := q.Query(ctx,
		`SELECT id, value, privileged FROM systemsettings WHERE name={name}`,
		database.Params{"name": name},
	).One(&setting.ID, &setting.Value, &setting.Privileged)
	if errors.Is(err, database.ErrZeroRows) {
		return nil, &dbquery.NotDefinedError{Entity: "systemsettings", Column: "name", Value: name}
	}
	if err != nil {
		return nil, fmt.Errorf("fetch system setting: %w", err)
	}
	if setting.Privileged {
		if err := s.RaiseUnlessSystem(); err != nil {
			return nil, err
		}
	}
	return setting, nil
}

// AllSystem loads every system setting visible to the session.
func AllSystem(ctx context.Context, q dbquery.Queryer, s *session.Session) ([]*models.Setting, error) {
	includePrivileged := s.RaiseUnlessSystem() == nil
	var settings []*models.Setting
	err := q.Query(ctx,
		`SELECT id, name, value, privileged FROM systemsettings ORDER BY name`, nil,
	).Each(func(scan func(dest ...any) error) error {
		setting := &models.Setting{Scope: models.SettingSystem}
		if err := scan(&setting.ID, &setting.Name, &setting.Value, &setting.Privileged); err != nil {
			return err
		}
		if setting.Privileged && !includePrivileged {
			return nil
		}
		settings = append(settings, setting)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch system settings: %w", err)
	}
	return settings, nil
}

// SetSystem writes one system setting, creating it if absent. Only the
// system may write privileged settings; the publish on the
// "systemsettings" channel carries the setting's key.
func SetSystem(tx *transaction.Transaction, name string, value json.RawMessage) error {
	if !models.ValidSettingName(name) {
		return fmt.Errorf("invalid setting name %q", name)
	}
	tx.Push(transaction.Call{Fn: func(ctx context.Context, tx *transaction.Transaction, cursor *database.TransactionCursor) error {
		var privileged bool
		err := cursor.Query(ctx,
			`SELECT privileged FROM systemsettings WHERE name={name}`,
			database.Params{"name": name}).One(&privileged)
		if err != nil && !errors.Is(err, database.ErrZeroRows) {
			return err
		}
		if privileged {
			if err := tx.Session().RaiseUnlessSystem(); err != nil {
				return err
			}
		}
		tx.TouchTables("systemsettings")
		_, err = cursor.Execute(ctx,
			`INSERT INTO systemsettings (name, value) VALUES ({name}, {value})
			 ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value`,
			database.Params{"name": name, "value": []byte(value)})
		return err
	}})
	tx.PublishTo([]string{"systemsettings"}, pubsub.Payload{
		ResourceName: "systemsettings",
		Action:       pubsub.ActionModified,
		Extras:       map[string]any{"key": name},
	})
	return nil
}

// Fetch loads one scoped setting bound to the given object.
func Fetch(ctx context.Context, q dbquery.Queryer, settingScope models.SettingScope, objectID int64, scope, name string) (*models.Setting, error) {
	b, ok := bindings[settingScope]
	if !ok {
		return nil, fmt.Errorf("unsupported setting scope %q", settingScope)
	}
	if !models.ValidSettingScope(scope) {
		return nil, fmt.Errorf("invalid setting scope %q", scope)
	}
	if !models.ValidSettingName(name) {
		return nil, fmt.Errorf("invalid setting name %q", name)
	}
	setting := &models.Setting{Scope: settingScope, Name: name}
	err := q.Query(ctx,
		fmt.Sprintf(`SELECT id, value FROM %s WHERE %s={object} AND scope={scope} AND name={name}`,
			b.table, b.column),
		database.Params{"object": objectID, "scope": scope, "name": name},
	).One(&setting.ID, &setting.Value)
	if errors.Is(err, database.ErrZeroRows) {
		return nil, &dbquery.InvalidKeyError{Entity: b.table, Key: scope + "/" + name}
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", b.table, err)
	}
	switch settingScope {
	case models.SettingUser:
		setting.UserID = &objectID
	case models.SettingRepository:
		setting.RepoID = &objectID
	case models.SettingBranch:
		setting.BranchID = &objectID
	}
	return setting, nil
}

// Set writes one scoped setting bound to the given object, creating it
// if absent.
func Set(tx *transaction.Transaction, settingScope models.SettingScope, objectID int64, scope, name string, value json.RawMessage) error {
	b, ok := bindings[settingScope]
	if !ok {
		return fmt.Errorf("unsupported setting scope %q", settingScope)
	}
	if !models.ValidSettingScope(scope) {
		return fmt.Errorf("invalid setting scope %q", scope)
	}
	if !models.ValidSettingName(name) {
		return fmt.Errorf("invalid setting name %q", name)
	}
	tx.Push(transaction.RawQuery{
		Table: b.table,
		Statement: fmt.Sprintf(
			`INSERT INTO %s (%s, scope, name, value) VALUES ({object}, {scope}, {name}, {value})
			 ON CONFLICT (%s, scope, name) DO UPDATE SET value = EXCLUDED.value`,
			b.table, b.column, b.column),
		Params: database.Params{
			"object": objectID,
			"scope":  scope,
			"name":   name,
			"value":  []byte(value),
		},
	})
	return nil
}

// Delete removes one scoped setting.
func Delete(tx *transaction.Transaction, settingScope models.SettingScope, objectID int64, scope, name string) error {
	b, ok := bindings[settingScope]
	if !ok {
		return fmt.Errorf("unsupported setting scope %q", settingScope)
	}
	tx.Push(transaction.Delete{
		Table:      b.table,
		Conditions: []string{b.column + "={object}", "scope={scope}", "name={name}"},
		Params:     database.Params{"object": objectID, "scope": scope, "name": name},
	})
	return nil
}
