// Package identity resolves the calling consumer from bearer token claims.
package identity

import (
	"slices"
	"strings"
)

// Identity URN prefixes.
const (
	PrefixOrg          = "/org/"
	PrefixUser         = "/user/"
	PrefixSystemUser   = "/systemuser/"
	PrefixOrganisation = "/organisation/"
	PrefixParty        = "/party/"
	PrefixPerson       = "/person/"
)

// ScopeInternal grants access to the internal push, outbound and validate routes.
const ScopeInternal = "events:internal"

// Identity is the resolved caller. An empty Consumer means no identity could be
// resolved and every registry operation is denied.
type Identity struct {
	Consumer string

	// PersonID is the personal number of a /user/ caller, used to check ownership
	// of an alternative subject. Never log it.
	PersonID string

	Scopes []string
}

// IsEmpty reports whether no consumer identity was resolved.
func (i Identity) IsEmpty() bool {
	return i.Consumer == ""
}

// HasScope reports whether the token granted scope.
func (i Identity) HasScope(scope string) bool {
	return slices.Contains(i.Scopes, scope)
}

// IsOrg reports whether the caller is a service owner organisation.
func (i Identity) IsOrg() bool {
	return strings.HasPrefix(i.Consumer, PrefixOrg)
}

// Resolve picks the consumer URN from claims in precedence order:
// /org/ then /user/ then /systemuser/ then /organisation/.
func Resolve(c *Claims) Identity {
	if c == nil {
		return Identity{}
	}

	id := Identity{Scopes: strings.Fields(c.Scope)}
	switch {
	case c.Org != "":
		id.Consumer = PrefixOrg + c.Org
	case c.UserID != "":
		id.Consumer = PrefixUser + c.UserID
		id.PersonID = c.PersonID
	case c.SystemUserID != "":
		id.Consumer = PrefixSystemUser + c.SystemUserID
	case c.OrgNumber != "":
		id.Consumer = PrefixOrganisation + c.OrgNumber
	}
	return id
}
