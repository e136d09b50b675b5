package store_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tinode/groups/server/db/memory"
	"github.com/tinode/groups/server/store"
	"github.com/tinode/groups/server/store/types"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()

	adp := memory.NewAdapter()
	if err := adp.Open(nil); err != nil {
		t.Fatal(err)
	}
	s := store.New(adp)
	if err := s.InitDb(true); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen(t *testing.T) {
	if _, err := store.Open(json.RawMessage(`{"use_adapter": "no-such-adapter"}`)); err == nil {
		t.Error("expected error for unknown adapter")
	}
	if _, err := store.Open(json.RawMessage(`{not json`)); err == nil {
		t.Error("expected error for malformed config")
	}

	s, err := store.Open(json.RawMessage(`{"use_adapter": "memory", "adapters": {"memory": {}}}`))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if name := s.GetAdapterName(); name != "memory" {
		t.Errorf("adapter name: got %q", name)
	}
	if err := s.CheckDbVersion(); !errors.Is(err, types.ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized before InitDb, got %v", err)
	}
	if err := s.InitDb(false); err != nil {
		t.Fatal(err)
	}
	if err := s.CheckDbVersion(); err != nil {
		t.Error(err)
	}
	if s.GetDbVersion() != s.GetAdapterVersion() {
		t.Errorf("version mismatch: db %d, adapter %d", s.GetDbVersion(), s.GetAdapterVersion())
	}
}

func TestAvailableAdapters(t *testing.T) {
	found := false
	for _, name := range store.AvailableAdapters() {
		if name == "memory" {
			found = true
		}
	}
	if !found {
		t.Error("memory adapter is not registered")
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	s := newStore(t)
	if err := s.UpsertGroup("misc", "Misc", ""); err != nil {
		t.Fatal(err)
	}

	if err := s.AddSubscriber("misc", "alice@example.com"); err != nil {
		t.Fatal(err)
	}
	// Idempotent.
	if err := s.AddSubscriber("misc", "alice@example.com"); err != nil {
		t.Fatal(err)
	}
	subs, err := s.ListSubscribers("misc")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"alice@example.com"}, subs); diff != "" {
		t.Errorf("subscribers mismatch (-want +got):\n%s", diff)
	}

	ok, err := s.IsSubscribed("misc", "alice@example.com")
	if err != nil || !ok {
		t.Errorf("IsSubscribed: got %v, %v", ok, err)
	}

	if err := s.RemoveSubscriber("misc", "alice@example.com"); err != nil {
		t.Fatal(err)
	}
	// Removing twice is fine.
	if err := s.RemoveSubscriber("misc", "alice@example.com"); err != nil {
		t.Fatal(err)
	}
	ok, err = s.IsSubscribed("misc", "alice@example.com")
	if err != nil || ok {
		t.Errorf("IsSubscribed after remove: got %v, %v", ok, err)
	}
}

func TestSubscribeUnknownGroup(t *testing.T) {
	s := newStore(t)

	err := s.AddSubscriber("nope", "alice@example.com")
	if !errors.Is(err, types.ErrNoSuchGroup) {
		t.Fatalf("expected ErrNoSuchGroup, got %v", err)
	}
	nodes, err := s.ListSubscriptions("alice@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 0 {
		t.Errorf("expected no subscriptions, got %v", nodes)
	}
}

func TestMalformed(t *testing.T) {
	s := newStore(t)

	if err := s.AddSubscriber("", "alice@example.com"); !errors.Is(err, types.ErrMalformed) {
		t.Errorf("AddSubscriber: expected ErrMalformed, got %v", err)
	}
	if err := s.AddSubscriber("misc", "  "); !errors.Is(err, types.ErrMalformed) {
		t.Errorf("AddSubscriber: expected ErrMalformed, got %v", err)
	}
	if err := s.RemoveSubscriber("", "alice@example.com"); !errors.Is(err, types.ErrMalformed) {
		t.Errorf("RemoveSubscriber: expected ErrMalformed, got %v", err)
	}
	if _, err := s.ListSubscriptions(""); !errors.Is(err, types.ErrMalformed) {
		t.Errorf("ListSubscriptions: expected ErrMalformed, got %v", err)
	}
	if _, err := s.ListSubscribers(""); !errors.Is(err, types.ErrMalformed) {
		t.Errorf("ListSubscribers: expected ErrMalformed, got %v", err)
	}
	if err := s.UpsertGroup(" ", "name", ""); !errors.Is(err, types.ErrMalformed) {
		t.Errorf("UpsertGroup: expected ErrMalformed, got %v", err)
	}
	if err := s.RemoveGroup(""); !errors.Is(err, types.ErrMalformed) {
		t.Errorf("RemoveGroup: expected ErrMalformed, got %v", err)
	}
	if ok, err := s.IsSubscribed("", ""); ok || err != nil {
		t.Errorf("IsSubscribed: got %v, %v", ok, err)
	}
	if g, err := s.GetGroup(""); g != nil || err != nil {
		t.Errorf("GetGroup: got %v, %v", g, err)
	}
}

func TestRemoveGroupCascades(t *testing.T) {
	s := newStore(t)
	for _, node := range []string{"a", "b"} {
		if err := s.UpsertGroup(node, node, ""); err != nil {
			t.Fatal(err)
		}
		if err := s.AddSubscriber(node, "alice@example.com"); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.RemoveGroup("a"); err != nil {
		t.Fatal(err)
	}
	nodes, err := s.ListSubscriptions("alice@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"b"}, nodes); diff != "" {
		t.Errorf("subscriptions mismatch (-want +got):\n%s", diff)
	}
	if err := s.RemoveGroup("a"); !errors.Is(err, types.ErrNoSuchGroup) {
		t.Errorf("expected ErrNoSuchGroup, got %v", err)
	}
}

func TestSyncGroups(t *testing.T) {
	s := newStore(t)

	if err := s.UpsertGroup("old", "Old", "Not in config"); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertGroup("misc", "Stale", "Stale"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddSubscriber("misc", "alice@example.com"); err != nil {
		t.Fatal(err)
	}

	n, err := store.SyncGroups(s, []types.Group{
		{Node: "misc", Name: "Miscellaneous", Description: "Anything goes"},
		{Node: "golang", Name: "Go"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 groups synced, got %d", n)
	}

	groups, err := s.ListGroups()
	if err != nil {
		t.Fatal(err)
	}
	want := []types.Group{
		{Node: "golang", Name: "Go"},
		{Node: "misc", Name: "Miscellaneous", Description: "Anything goes"},
		{Node: "old", Name: "Old", Description: "Not in config"},
	}
	if diff := cmp.Diff(want, groups); diff != "" {
		t.Errorf("groups mismatch (-want +got):\n%s", diff)
	}

	// Existing subscriptions survive the sync.
	ok, err := s.IsSubscribed("misc", "alice@example.com")
	if err != nil || !ok {
		t.Errorf("subscription lost: %v, %v", ok, err)
	}
}

func TestSyncGroupsInvalid(t *testing.T) {
	s := newStore(t)

	if _, err := store.SyncGroups(s, []types.Group{{Node: ""}}); err == nil {
		t.Error("expected error for empty node")
	}
	n, err := store.SyncGroups(s, []types.Group{{Node: "a"}, {Node: "a"}})
	if err == nil {
		t.Error("expected error for duplicate node")
	}
	if n != 1 {
		t.Errorf("expected 1 group processed, got %d", n)
	}
}
