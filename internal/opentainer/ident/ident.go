// Package ident validates Docker resource identifiers (container IDs and
// names, image references, volume and network names) before they reach the
// Engine API or, worse, a docker CLI argument.
package ident

import (
	"errors"
	"fmt"
	"strings"
)

// MaxLength is the longest identifier accepted. Engine references are far
// shorter in practice; 256 leaves room for registry/path:tag@digest forms.
const MaxLength = 256

const extraChars = "-_./:@"

// Validate checks that id is a safe Engine reference. The character set
// admits short/long hex IDs, tagged image names, registry paths and
// digest-pinned references while excluding every shell metacharacter,
// since some identifiers are later interpolated into CLI invocations.
func Validate(id string) error {
	if id == "" {
		return errors.New("Identifier cannot be empty")
	}
	if len(id) > MaxLength {
		return errors.New("Identifier too long")
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case strings.ContainsRune(extraChars, c):
		default:
			return fmt.Errorf("Invalid identifier: %s", id)
		}
	}
	return nil
}
