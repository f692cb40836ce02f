// Package idgen produces identifiers for bundle entities.
//
// Most entities get a fresh random identifier on every build. Entities that
// must correlate with objects already present on a gateway (private keys)
// get a deterministic identifier derived from their natural key instead.
package idgen

import (
	"encoding/hex"

	"github.com/google/uuid"
)

const (
	// RootFolderID is the identifier of the gateway root folder.
	RootFolderID = "0000000000000000ffffffffffffec76"
	// DefaultKeystoreID is the identifier of the gateway software keystore.
	DefaultKeystoreID = "00000000000000000000000000000002"
)

// Generator hands out identifiers for entities that do not have a
// deterministic identity.
type Generator interface {
	// Generate returns a new 32 character lowercase hex identifier
	Generate() string
	// GUID returns a new dashed UUID, the form used for policy and
	// encapsulated assertion GUIDs
	GUID() string
}

// RandomGenerator implements Generator on top of random (v4) UUIDs
type RandomGenerator struct{}

// New returns a Generator backed by random UUIDs
func New() *RandomGenerator {
	return &RandomGenerator{}
}

// Generate returns a random identifier
func (g *RandomGenerator) Generate() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// GUID returns a random dashed UUID
func (g *RandomGenerator) GUID() string {
	return uuid.NewString()
}

// PrivateKeyID returns the identifier of a private key entry. It is a pure
// function of the keystore identifier and the key alias so that rebuilding
// against the same inputs yields the same identifier.
func PrivateKeyID(keystoreID, alias string) string {
	return keystoreID + ":" + alias
}
