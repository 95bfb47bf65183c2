package database

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Expand rewrites {name} placeholders in text to positional $n
// arguments. A parameter whose value is a slice expands its
// placeholder to ANY($n), so `col = {ids}` matches set membership the
// way the schema expects (array-valued columns are not used).
func Expand(text string, params Params) (string, []any, error) {
	var (
		sb      strings.Builder
		args    []any
		indexes = make(map[string]int)
		used    = make(map[string]bool)
	)
	for {
		open := strings.IndexByte(text, '{')
		if open < 0 {
			sb.WriteString(text)
			break
		}
		closing := strings.IndexByte(text[open:], '}')
		if closing < 0 {
			return "", nil, fmt.Errorf("unterminated placeholder in %q", text)
		}
		name := text[open+1 : open+closing]
		sb.WriteString(text[:open])
		text = text[open+closing+1:]

		value, ok := params[name]
		if !ok {
			return "", nil, fmt.Errorf("unbound parameter %q", name)
		}
		used[name] = true
		index, ok := indexes[name]
		if !ok {
			args = append(args, normalizeArg(value))
			index = len(args)
			indexes[name] = index
		}
		if isSlice(value) {
			sb.WriteString("ANY($")
			sb.WriteString(strconv.Itoa(index))
			sb.WriteString(")")
		} else {
			sb.WriteString("$")
			sb.WriteString(strconv.Itoa(index))
		}
	}
	if len(used) != len(params) {
		var unused []string
		for name := range params {
			if !used[name] {
				unused = append(unused, name)
			}
		}
		sort.Strings(unused)
		return "", nil, fmt.Errorf("unused parameters: %s", strings.Join(unused, ", "))
	}
	return sb.String(), args, nil
}

func isSlice(value any) bool {
	if value == nil {
		return false
	}
	if _, isBytes := value.([]byte); isBytes {
		return false
	}
	return reflect.TypeOf(value).Kind() == reflect.Slice
}

// normalizeArg converts enum-like named string types to plain strings
// so pgx encodes them as text without a registered codec.
func normalizeArg(value any) any {
	if value == nil {
		return nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.String && rv.Type() != reflect.TypeOf("") {
		return rv.String()
	}
	return value
}
