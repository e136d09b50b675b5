// Package adapter contains the interfaces to be implemented by the database adapter
package adapter

import (
	"encoding/json"

	t "github.com/tinode/groups/server/store/types"
)

// Adapter is the interface that must be implemented by a database
// adapter. The current schema supports a single connection by database type.
type Adapter interface {
	// General

	// Open and configure the adapter
	Open(config json.RawMessage) error
	// Close the adapter
	Close() error
	// IsOpen checks if the adapter is ready for use
	IsOpen() bool
	// GetDbVersion returns current database version.
	GetDbVersion() (int, error)
	// CheckDbVersion checks if the actual database version matches adapter version.
	// Returns types.ErrNotInitialized if the schema does not exist.
	CheckDbVersion() error
	// GetName returns the name of the adapter
	GetName() string
	// CreateDb creates the database optionally dropping an existing database first.
	CreateDb(reset bool) error
	// Version returns adapter version
	Version() int

	// Groups

	// GroupUpsert creates a group or replaces name and description of an existing one.
	// Subscriptions of an existing group are not affected.
	GroupUpsert(group *t.Group) error
	// GroupGet returns a group by node. If the group does not exist the call returns (nil, nil).
	GroupGet(node string) (*t.Group, error)
	// GroupGetAll returns all groups ordered by node.
	GroupGetAll() ([]t.Group, error)
	// GroupDelete deletes the group and all its subscriptions in one transaction.
	// Returns types.ErrNoSuchGroup if the group does not exist.
	GroupDelete(node string) error

	// Subscriptions

	// SubsCreate subscribes jid to node. Subscribing twice is not an error.
	// Returns types.ErrNoSuchGroup if the group does not exist.
	SubsCreate(node, jid string) error
	// SubsDelete deletes subscription. Deleting a missing subscription is not an error.
	SubsDelete(node, jid string) error
	// SubsExists checks if jid is subscribed to node.
	SubsExists(node, jid string) (bool, error)
	// SubsForUser returns nodes the jid is subscribed to.
	SubsForUser(jid string) ([]string, error)
	// SubsForGroup returns subscribers of the node.
	SubsForGroup(node string) ([]string, error)
}
