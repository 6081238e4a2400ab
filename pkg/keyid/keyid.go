// Package keyid implements the URI key identifiers carried in document
// signatures. A key ID names a registered Ed25519 public key together with
// the role it was registered for and the key rotation counter:
//
//	id.catalyst://<network>/<base64url-key>/<role>/<rotation>
//
// The short form drops role and rotation and is used for collaborator
// matching across document versions.
package keyid

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Scheme is the URI scheme of every key ID.
const Scheme = "id.catalyst"

var (
	ErrInvalidScheme   = errors.New("invalid key id scheme")
	ErrInvalidKey      = errors.New("invalid key id public key")
	ErrInvalidRole     = errors.New("invalid key id role")
	ErrInvalidRotation = errors.New("invalid key id rotation")
)

// Role is a registered signer role.
type Role uint8

// User roles.
const (
	RoleRegistered     Role = 0
	RoleRepresentative Role = 1
	RoleProposer       Role = 3
)

// Admin roles.
const (
	RoleRootAdmin     Role = 100
	RoleBrandAdmin    Role = 101
	RoleCampaignAdmin Role = 102
	RoleCategoryAdmin Role = 103
	RoleModerator     Role = 104
)

func (r Role) String() string {
	switch r {
	case RoleRegistered:
		return "registered"
	case RoleRepresentative:
		return "representative"
	case RoleProposer:
		return "proposer"
	case RoleRootAdmin:
		return "root-admin"
	case RoleBrandAdmin:
		return "brand-admin"
	case RoleCampaignAdmin:
		return "campaign-admin"
	case RoleCategoryAdmin:
		return "category-admin"
	case RoleModerator:
		return "moderator"
	default:
		return fmt.Sprintf("role-%d", uint8(r))
	}
}

// KeyID identifies a registered signing key.
type KeyID struct {
	Network   string
	PublicKey ed25519.PublicKey
	Role      Role
	Rotation  uint16
}

// New returns a key ID for the base role with no rotations.
func New(network string, pk ed25519.PublicKey) KeyID {
	return KeyID{Network: network, PublicKey: pk}
}

// WithRole returns a copy of k with the given role.
func (k KeyID) WithRole(r Role) KeyID {
	k.Role = r
	return k
}

// WithRotation returns a copy of k with the given rotation counter.
func (k KeyID) WithRotation(n uint16) KeyID {
	k.Rotation = n
	return k
}

// String renders the full URI form.
func (k KeyID) String() string {
	return fmt.Sprintf("%s://%s/%s/%d/%d",
		Scheme, k.Network,
		base64.RawURLEncoding.EncodeToString(k.PublicKey),
		k.Role, k.Rotation)
}

// ShortID renders the role-independent form used for collaborator lists.
func (k KeyID) ShortID() string {
	return k.Network + "/" + base64.RawURLEncoding.EncodeToString(k.PublicKey)
}

// Equal reports full equality, including role and rotation.
func (k KeyID) Equal(other KeyID) bool {
	return k.String() == other.String()
}

// Parse decodes the full URI form.
func Parse(s string) (KeyID, error) {
	rest, ok := strings.CutPrefix(s, Scheme+"://")
	if !ok {
		return KeyID{}, fmt.Errorf("%w: %q", ErrInvalidScheme, s)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 4 {
		return KeyID{}, fmt.Errorf("%w: expected network/key/role/rotation in %q", ErrInvalidScheme, s)
	}
	network := parts[0]
	if network == "" {
		return KeyID{}, fmt.Errorf("%w: empty network in %q", ErrInvalidScheme, s)
	}
	key, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return KeyID{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(key) != ed25519.PublicKeySize {
		return KeyID{}, fmt.Errorf("%w: key length %d", ErrInvalidKey, len(key))
	}
	role, err := strconv.ParseUint(parts[2], 10, 8)
	if err != nil {
		return KeyID{}, fmt.Errorf("%w: %v", ErrInvalidRole, err)
	}
	rotation, err := strconv.ParseUint(parts[3], 10, 16)
	if err != nil {
		return KeyID{}, fmt.Errorf("%w: %v", ErrInvalidRotation, err)
	}
	return KeyID{
		Network:   network,
		PublicKey: ed25519.PublicKey(key),
		Role:      Role(role),
		Rotation:  uint16(rotation),
	}, nil
}
