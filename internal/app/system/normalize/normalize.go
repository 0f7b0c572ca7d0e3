// Package normalize canonicalizes user-supplied identifiers before they are
// compared or stored.
package normalize

import (
	"strings"

	"github.com/dalemusser/venturecamp/internal/domain/models"
)

// Email trims and lowercases an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims a display name and collapses inner whitespace runs.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Role maps free text to a known role. Unknown values become participant,
// the least privileged role.
func Role(s string) models.Role {
	r := models.Role(strings.ToLower(strings.TrimSpace(s)))
	if r.Valid() {
		return r
	}
	return models.RoleParticipant
}
