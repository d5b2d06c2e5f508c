// Package gen derives stable identifiers from strings.
package gen

import (
	"strings"

	"github.com/google/uuid"
)

const sep = "|"

// Key joins parts with a separator. Parts are not escaped.
func Key(parts ...string) string {
	return strings.Join(parts, sep)
}

// UUIDv5 returns the URL-namespace UUIDv5 of Key(parts...).
func UUIDv5(parts ...string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(Key(parts...))).String()
}
