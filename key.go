package kvlite

import (
	"fmt"
	"regexp"
	"strings"
)

// normalizeKey coerces a key to its string form. Strings pass through,
// integers become their decimal representation, everything else is rejected.
func normalizeKey(key any) (string, error) {
	switch k := key.(type) {
	case string:
		return k, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", k), nil
	default:
		return "", fmt.Errorf("%w (got %T)", ErrInvalidKey, key)
	}
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var identReplacer = strings.NewReplacer("-", "_", ".", "_", " ", "_")

// tableName derives a SQL identifier from a free-text store name.
// A leading digit is prefixed with an underscore, and '-', '.' and ' '
// are replaced with underscores. The result must be a plain identifier;
// names that still contain other characters are rejected rather than
// interpolated into statements.
func tableName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("store name must not be empty")
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	name = identReplacer.Replace(name)
	if !identPattern.MatchString(name) {
		return "", fmt.Errorf("store name %q does not sanitize to a valid identifier", name)
	}
	return name, nil
}
