// Package auth verifies bearer tokens and resolves them to caller identities.
// The token scheme is owned by an external identity service; this package is a
// narrow shim over it.
package auth

import (
	"errors"
	"fmt"
	"strings"
)

// RoleAdmin grants access to corpus administration endpoints.
const RoleAdmin = "admin"

// ErrUnauthorized signals a missing, malformed, or unknown credential.
var ErrUnauthorized = errors.New("invalid or missing credentials")

// Identity is the resolved caller of a request.
type Identity struct {
	UserID string
	Role   string
}

// Verifier resolves a bearer token to an identity.
type Verifier interface {
	Verify(token string) (Identity, error)
}

// StaticVerifier resolves tokens against a fixed table loaded from
// configuration. Entries take the form "token:user_id" or
// "token:user_id:role", comma separated.
type StaticVerifier struct {
	identities map[string]Identity
}

// NewStaticVerifier parses the configured token table.
func NewStaticVerifier(spec string) (*StaticVerifier, error) {
	identities := make(map[string]Identity)
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("malformed auth token entry %q", entry)
		}
		id := Identity{UserID: parts[1], Role: "user"}
		if len(parts) == 3 && parts[2] != "" {
			id.Role = parts[2]
		}
		identities[parts[0]] = id
	}
	return &StaticVerifier{identities: identities}, nil
}

// Verify implements Verifier.
func (v *StaticVerifier) Verify(token string) (Identity, error) {
	id, ok := v.identities[token]
	if !ok {
		return Identity{}, ErrUnauthorized
	}
	return id, nil
}
