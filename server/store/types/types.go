// Package types contains data structures shared by the store, the database adapters and the server.
package types

import (
	"encoding/base64"
	"encoding/binary"
	"strings"
)

// StoreError satisfies Error interface but allows constant values for
// direct comparison.
type StoreError string

// Error is required by error interface.
func (s StoreError) Error() string {
	return string(s)
}

const (
	// ErrMalformed means the request is malformed, e.g. missing node or address.
	ErrMalformed = StoreError("malformed")
	// ErrNoSuchGroup means the referenced group does not exist.
	ErrNoSuchGroup = StoreError("no such group")
	// ErrNotInitialized means the database schema has not been created yet.
	ErrNotInitialized = StoreError("database not initialized")
)

// Uid is a stanza identifier produced by UidGenerator.
type Uid uint64

// Length of base64-encoded Uid without padding.
const uidBase64Unpadded = 11

// MarshalText converts Uid to string represented as byte slice.
func (uid Uid) MarshalText() ([]byte, error) {
	src := make([]byte, 8)
	dst := make([]byte, base64.URLEncoding.EncodedLen(8))
	binary.LittleEndian.PutUint64(src, uint64(uid))
	base64.URLEncoding.Encode(dst, src)
	return dst[0:uidBase64Unpadded], nil
}

// String converts Uid to base64 string.
func (uid Uid) String() string {
	buf, _ := uid.MarshalText()
	return string(buf)
}

// Group is a discussion group: a pubsub leaf node.
type Group struct {
	// Node identifier, immutable.
	Node string `json:"node" db:"node" bson:"_id"`
	// Human-readable name, shown in discovery.
	Name string `json:"name" db:"name" bson:"name"`
	// Long description of the group.
	Description string `json:"description" db:"description" bson:"description"`
}

// IsValid checks that the group has a node identifier.
func (g *Group) IsValid() bool {
	return g != nil && strings.TrimSpace(g.Node) != ""
}

// Subscription is a pair of group node and bare address of the subscriber.
type Subscription struct {
	Node string `json:"node" db:"node" bson:"node"`
	Jid  string `json:"jid" db:"jid" bson:"jid"`
}
