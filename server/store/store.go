// Package store provides methods for registering and accessing database adapters.
package store

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"

	adapter "github.com/tinode/groups/server/db"
	"github.com/tinode/groups/server/store/types"
)

var availableAdapters = make(map[string]adapter.Adapter)

type configType struct {
	// DB adapter name to use. Should be one of those specified in `Adapters`.
	UseAdapter string `json:"use_adapter"`
	// Configurations for individual adapters.
	Adapters map[string]json.RawMessage `json:"adapters"`
}

// Storage is the set of operations the pubsub service performs on the persistent store.
// Each operation is atomic.
type Storage interface {
	// AddSubscriber subscribes bare address `who` to `node`. Idempotent.
	AddSubscriber(node, who string) error
	// RemoveSubscriber deletes the subscription if it exists.
	RemoveSubscriber(node, who string) error
	// IsSubscribed checks if `who` is subscribed to `node`.
	IsSubscribed(node, who string) (bool, error)
	// ListSubscriptions returns nodes `who` is subscribed to.
	ListSubscriptions(who string) ([]string, error)
	// ListSubscribers returns addresses subscribed to `node`.
	ListSubscribers(node string) ([]string, error)
	// UpsertGroup creates a group or updates its name and description.
	UpsertGroup(node, name, description string) error
	// GetGroup returns a group or nil if it does not exist.
	GetGroup(node string) (*types.Group, error)
	// ListGroups returns all groups ordered by node.
	ListGroups() ([]types.Group, error)
	// RemoveGroup deletes the group and all its subscriptions.
	RemoveGroup(node string) error
}

// Store is the main object for interacting with persistent storage.
type Store struct {
	adp adapter.Adapter
}

var _ Storage = (*Store)(nil)

// RegisterAdapter makes a persistence adapter available.
// If Register is called twice or if the adapter is nil, it panics.
func RegisterAdapter(a adapter.Adapter) {
	if a == nil {
		panic("store: Register adapter is nil")
	}

	adapterName := a.GetName()
	if _, dup := availableAdapters[adapterName]; dup {
		panic("store: adapter '" + adapterName + "' is already registered")
	}
	availableAdapters[adapterName] = a
}

// AvailableAdapters returns names of adapters compiled into the binary.
func AvailableAdapters() []string {
	var names []string
	for name := range availableAdapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open selects the adapter requested in the config and opens it. Database version
// is not checked: call CheckDbVersion or InitDb next.
func Open(jsonconf json.RawMessage) (*Store, error) {
	var config configType
	if err := json.Unmarshal(jsonconf, &config); err != nil {
		return nil, errors.New("store: failed to parse config: " + err.Error() + "(" + string(jsonconf) + ")")
	}

	var adp adapter.Adapter
	if len(config.UseAdapter) > 0 {
		// Adapter name specified explicitly.
		if ad, ok := availableAdapters[config.UseAdapter]; ok {
			adp = ad
		} else {
			return nil, errors.New("store: " + config.UseAdapter + " adapter is not available in this binary")
		}
	} else if len(availableAdapters) == 1 {
		// Default to the only entry in availableAdapters.
		for _, v := range availableAdapters {
			adp = v
		}
	} else {
		return nil, errors.New("store: db adapter is not specified. Please set `store_config.use_adapter` in the config")
	}

	if adp.IsOpen() {
		return nil, errors.New("store: connection is already opened")
	}

	var adapterConfig json.RawMessage
	if config.Adapters != nil {
		adapterConfig = config.Adapters[adp.GetName()]
	}

	if err := adp.Open(adapterConfig); err != nil {
		return nil, err
	}

	return &Store{adp: adp}, nil
}

// New wraps an already opened adapter.
func New(adp adapter.Adapter) *Store {
	return &Store{adp: adp}
}

// Close terminates connection to persistent storage.
func (s *Store) Close() error {
	if s.adp.IsOpen() {
		return s.adp.Close()
	}
	return nil
}

// IsOpen checks if persistent storage connection has been initialized.
func (s *Store) IsOpen() bool {
	return s.adp != nil && s.adp.IsOpen()
}

// GetAdapterName returns the name of the current adapter.
func (s *Store) GetAdapterName() string {
	return s.adp.GetName()
}

// GetAdapterVersion returns version of the current adapter.
func (s *Store) GetAdapterVersion() int {
	return s.adp.Version()
}

// GetDbVersion returns version of the underlying database.
func (s *Store) GetDbVersion() int {
	vers, _ := s.adp.GetDbVersion()
	return vers
}

// CheckDbVersion returns an error if the database schema is missing or outdated.
func (s *Store) CheckDbVersion() error {
	return s.adp.CheckDbVersion()
}

// InitDb creates the database schema. If 'reset' is true it will first
// attempt to drop an existing database.
func (s *Store) InitDb(reset bool) error {
	return s.adp.CreateDb(reset)
}

func normalize(val string) string {
	return strings.TrimSpace(val)
}

// AddSubscriber subscribes `who` to `node`.
func (s *Store) AddSubscriber(node, who string) error {
	node, who = normalize(node), normalize(who)
	if node == "" || who == "" {
		return types.ErrMalformed
	}
	return s.adp.SubsCreate(node, who)
}

// RemoveSubscriber unsubscribes `who` from `node`.
func (s *Store) RemoveSubscriber(node, who string) error {
	node, who = normalize(node), normalize(who)
	if node == "" || who == "" {
		return types.ErrMalformed
	}
	return s.adp.SubsDelete(node, who)
}

// IsSubscribed checks if `who` is subscribed to `node`.
func (s *Store) IsSubscribed(node, who string) (bool, error) {
	node, who = normalize(node), normalize(who)
	if node == "" || who == "" {
		return false, nil
	}
	return s.adp.SubsExists(node, who)
}

// ListSubscriptions returns nodes which `who` is subscribed to.
func (s *Store) ListSubscriptions(who string) ([]string, error) {
	who = normalize(who)
	if who == "" {
		return nil, types.ErrMalformed
	}
	return s.adp.SubsForUser(who)
}

// ListSubscribers returns subscribers of the `node`.
func (s *Store) ListSubscribers(node string) ([]string, error) {
	node = normalize(node)
	if node == "" {
		return nil, types.ErrMalformed
	}
	return s.adp.SubsForGroup(node)
}

// UpsertGroup creates a new group or updates name and description of an existing one.
func (s *Store) UpsertGroup(node, name, description string) error {
	g := &types.Group{Node: normalize(node), Name: name, Description: description}
	if !g.IsValid() {
		return types.ErrMalformed
	}
	return s.adp.GroupUpsert(g)
}

// GetGroup returns group by node or nil if the group is not found.
func (s *Store) GetGroup(node string) (*types.Group, error) {
	node = normalize(node)
	if node == "" {
		return nil, nil
	}
	return s.adp.GroupGet(node)
}

// ListGroups returns all groups.
func (s *Store) ListGroups() ([]types.Group, error) {
	return s.adp.GroupGetAll()
}

// RemoveGroup deletes the group together with all its subscriptions.
func (s *Store) RemoveGroup(node string) error {
	node = normalize(node)
	if node == "" {
		return types.ErrMalformed
	}
	return s.adp.GroupDelete(node)
}
