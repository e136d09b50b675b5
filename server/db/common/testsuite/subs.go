package testsuite

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	adapter "github.com/tinode/groups/server/db"
	"github.com/tinode/groups/server/db/common/test_data"
	"github.com/tinode/groups/server/store/types"
)

func RunSubsCreate(t *testing.T, adp adapter.Adapter, td *test_data.TestData) {
	t.Helper()

	for _, sub := range td.Subs {
		if err := adp.SubsCreate(sub.Node, sub.Jid); err != nil {
			t.Fatal(err)
		}
	}
	// Duplicate subscription is silently ignored.
	if err := adp.SubsCreate(td.Subs[0].Node, td.Subs[0].Jid); err != nil {
		t.Fatal(err)
	}
	got, err := adp.SubsForGroup(td.Subs[0].Node)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("Duplicate subscription created: %v", got)
	}
}

func RunSubsCreateUnknownGroup(t *testing.T, adp adapter.Adapter, td *test_data.TestData) {
	t.Helper()

	err := adp.SubsCreate("no-such-node", td.Stranger)
	if !errors.Is(err, types.ErrNoSuchGroup) {
		t.Fatalf("Expected ErrNoSuchGroup, got %v", err)
	}
	nodes, err := adp.SubsForUser(td.Stranger)
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 0 {
		t.Error("Subscription to unknown group was stored:", nodes)
	}
}

func RunSubsExists(t *testing.T, adp adapter.Adapter, td *test_data.TestData) {
	t.Helper()

	for _, sub := range td.Subs {
		ok, err := adp.SubsExists(sub.Node, sub.Jid)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Errorf("Subscription %s -> %s should exist", sub.Jid, sub.Node)
		}
	}

	ok, err := adp.SubsExists(td.Subs[0].Node, td.Stranger)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("Unexpected subscription for", td.Stranger)
	}
	ok, err = adp.SubsExists("misc", td.Subs[0].Jid)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("Unexpected subscription to misc")
	}
}

func RunSubsForUser(t *testing.T, adp adapter.Adapter, td *test_data.TestData) {
	t.Helper()

	got, err := adp.SubsForUser("alice@example.com")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"golang", "xmpp"}
	if diff := cmp.Diff(want, got, cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
		t.Errorf("Subscriptions mismatch (-want +got):\n%s", diff)
	}

	got, err = adp.SubsForUser(td.Stranger)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Error("Expected no subscriptions, got:", got)
	}
}

func RunSubsForGroup(t *testing.T, adp adapter.Adapter, td *test_data.TestData) {
	t.Helper()

	got, err := adp.SubsForGroup("golang")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"alice@example.com", "bob@example.com"}
	if diff := cmp.Diff(want, got, cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
		t.Errorf("Subscribers mismatch (-want +got):\n%s", diff)
	}

	got, err = adp.SubsForGroup("misc")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Error("Expected no subscribers, got:", got)
	}
}

func RunSubsDelete(t *testing.T, adp adapter.Adapter, td *test_data.TestData) {
	t.Helper()

	sub := td.Subs[1]
	if err := adp.SubsDelete(sub.Node, sub.Jid); err != nil {
		t.Fatal(err)
	}
	ok, err := adp.SubsExists(sub.Node, sub.Jid)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("Subscription should be deleted")
	}

	// Deleting a missing subscription is not an error.
	if err := adp.SubsDelete(sub.Node, sub.Jid); err != nil {
		t.Error(err)
	}
	if err := adp.SubsDelete("no-such-node", td.Stranger); err != nil {
		t.Error(err)
	}

	// Other subscriptions are intact.
	ok, err = adp.SubsExists(td.Subs[0].Node, td.Subs[0].Jid)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("Unrelated subscription was deleted")
	}
}
