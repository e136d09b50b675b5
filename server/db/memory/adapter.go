// Package memory is a database adapter which keeps all data in process memory.
// Data is lost on restart. Useful for tests and for throwaway deployments.
package memory

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"

	adapter "github.com/tinode/groups/server/db"
	"github.com/tinode/groups/server/store"
	t "github.com/tinode/groups/server/store/types"
)

const (
	adpVersion  = 1
	adapterName = "memory"
)

// memAdapter holds the data.
type memAdapter struct {
	// Guards all fields below.
	lock sync.RWMutex

	open        bool
	initialized bool
	groups      map[string]t.Group
	// node -> set of subscriber JIDs.
	subs map[string]map[string]struct{}
}

// Open initializes the adapter. The config is ignored.
func (a *memAdapter) Open(_ json.RawMessage) error {
	a.lock.Lock()
	defer a.lock.Unlock()

	if a.open {
		return errors.New("memory adapter is already open")
	}
	a.open = true
	return nil
}

// Close drops all data.
func (a *memAdapter) Close() error {
	a.lock.Lock()
	defer a.lock.Unlock()

	a.open = false
	a.initialized = false
	a.groups = nil
	a.subs = nil
	return nil
}

// IsOpen returns true if the adapter is open.
func (a *memAdapter) IsOpen() bool {
	a.lock.RLock()
	defer a.lock.RUnlock()

	return a.open
}

// GetDbVersion returns current database version.
func (a *memAdapter) GetDbVersion() (int, error) {
	a.lock.RLock()
	defer a.lock.RUnlock()

	if !a.initialized {
		return -1, t.ErrNotInitialized
	}
	return adpVersion, nil
}

// CheckDbVersion fails if CreateDb has not been called yet.
func (a *memAdapter) CheckDbVersion() error {
	_, err := a.GetDbVersion()
	return err
}

// GetName returns string that adapter uses to register itself with store.
func (a *memAdapter) GetName() string {
	return adapterName
}

// Version returns adapter version.
func (a *memAdapter) Version() int {
	return adpVersion
}

// CreateDb initializes the storage. Existing data is kept unless reset is true.
func (a *memAdapter) CreateDb(reset bool) error {
	a.lock.Lock()
	defer a.lock.Unlock()

	if reset || !a.initialized {
		a.groups = make(map[string]t.Group)
		a.subs = make(map[string]map[string]struct{})
	}
	a.initialized = true
	return nil
}

func (a *memAdapter) ready() error {
	if !a.open {
		return errors.New("memory adapter is not open")
	}
	if !a.initialized {
		return t.ErrNotInitialized
	}
	return nil
}

// GroupUpsert creates or updates a group.
func (a *memAdapter) GroupUpsert(group *t.Group) error {
	a.lock.Lock()
	defer a.lock.Unlock()

	if err := a.ready(); err != nil {
		return err
	}
	a.groups[group.Node] = *group
	return nil
}

// GroupGet returns a copy of the group or nil.
func (a *memAdapter) GroupGet(node string) (*t.Group, error) {
	a.lock.RLock()
	defer a.lock.RUnlock()

	if err := a.ready(); err != nil {
		return nil, err
	}
	if g, ok := a.groups[node]; ok {
		return &g, nil
	}
	return nil, nil
}

// GroupGetAll returns all groups ordered by node.
func (a *memAdapter) GroupGetAll() ([]t.Group, error) {
	a.lock.RLock()
	defer a.lock.RUnlock()

	if err := a.ready(); err != nil {
		return nil, err
	}
	groups := make([]t.Group, 0, len(a.groups))
	for _, g := range a.groups {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Node < groups[j].Node })
	return groups, nil
}

// GroupDelete deletes the group and its subscriptions.
func (a *memAdapter) GroupDelete(node string) error {
	a.lock.Lock()
	defer a.lock.Unlock()

	if err := a.ready(); err != nil {
		return err
	}
	if _, ok := a.groups[node]; !ok {
		return t.ErrNoSuchGroup
	}
	delete(a.groups, node)
	delete(a.subs, node)
	return nil
}

// SubsCreate adds jid to the node's subscribers.
func (a *memAdapter) SubsCreate(node, jid string) error {
	a.lock.Lock()
	defer a.lock.Unlock()

	if err := a.ready(); err != nil {
		return err
	}
	if _, ok := a.groups[node]; !ok {
		return t.ErrNoSuchGroup
	}
	set := a.subs[node]
	if set == nil {
		set = make(map[string]struct{})
		a.subs[node] = set
	}
	set[jid] = struct{}{}
	return nil
}

// SubsDelete removes jid from the node's subscribers.
func (a *memAdapter) SubsDelete(node, jid string) error {
	a.lock.Lock()
	defer a.lock.Unlock()

	if err := a.ready(); err != nil {
		return err
	}
	if set := a.subs[node]; set != nil {
		delete(set, jid)
		if len(set) == 0 {
			delete(a.subs, node)
		}
	}
	return nil
}

// SubsExists checks if the subscription exists.
func (a *memAdapter) SubsExists(node, jid string) (bool, error) {
	a.lock.RLock()
	defer a.lock.RUnlock()

	if err := a.ready(); err != nil {
		return false, err
	}
	_, ok := a.subs[node][jid]
	return ok, nil
}

// SubsForUser returns nodes jid is subscribed to.
func (a *memAdapter) SubsForUser(jid string) ([]string, error) {
	a.lock.RLock()
	defer a.lock.RUnlock()

	if err := a.ready(); err != nil {
		return nil, err
	}
	var nodes []string
	for node, set := range a.subs {
		if _, ok := set[jid]; ok {
			nodes = append(nodes, node)
		}
	}
	sort.Strings(nodes)
	return nodes, nil
}

// SubsForGroup returns subscribers of the node.
func (a *memAdapter) SubsForGroup(node string) ([]string, error) {
	a.lock.RLock()
	defer a.lock.RUnlock()

	if err := a.ready(); err != nil {
		return nil, err
	}
	jids := make([]string, 0, len(a.subs[node]))
	for jid := range a.subs[node] {
		jids = append(jids, jid)
	}
	sort.Strings(jids)
	return jids, nil
}

// NewAdapter returns a new unregistered adapter instance.
func NewAdapter() adapter.Adapter {
	return &memAdapter{}
}

func init() {
	store.RegisterAdapter(&memAdapter{})
}
