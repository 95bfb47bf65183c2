package models

import "regexp"

var (
	settingScopeRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	settingNameRe  = regexp.MustCompile(`^[A-Za-z0-9_]+(\.[A-Za-z0-9_]+)*$`)
)

// ValidSettingScope checks a free-form setting scope component.
func ValidSettingScope(scope string) bool { return settingScopeRe.MatchString(scope) }

// ValidSettingName checks a dotted setting name such as
// "repositories.branch_update_interval".
func ValidSettingName(name string) bool { return settingNameRe.MatchString(name) }
