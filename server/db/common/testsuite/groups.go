// Package testsuite contains tests shared by all database adapters. Adapter
// tests open a fresh database, call RunAll or individual Run* functions in
// the order given by RunAll.
package testsuite

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	adapter "github.com/tinode/groups/server/db"
	"github.com/tinode/groups/server/db/common/test_data"
	"github.com/tinode/groups/server/store/types"
)

// RunAll runs every test in dependency order. The adapter must be open.
func RunAll(t *testing.T, adp adapter.Adapter) {
	if err := adp.CreateDb(true); err != nil {
		t.Fatal("failed to create database:", err)
	}
	td := test_data.InitTestData()

	steps := []struct {
		name string
		fn   func(*testing.T, adapter.Adapter, *test_data.TestData)
	}{
		{"DbVersion", RunDbVersion},
		{"GroupUpsert", RunGroupUpsert},
		{"GroupGet", RunGroupGet},
		{"GroupGetAll", RunGroupGetAll},
		{"SubsCreate", RunSubsCreate},
		{"SubsCreateUnknownGroup", RunSubsCreateUnknownGroup},
		{"SubsExists", RunSubsExists},
		{"SubsForUser", RunSubsForUser},
		{"SubsForGroup", RunSubsForGroup},
		{"GroupUpsertKeepsSubs", RunGroupUpsertKeepsSubs},
		{"SubsDelete", RunSubsDelete},
		{"GroupDelete", RunGroupDelete},
		{"CreateDbReset", RunCreateDbReset},
	}
	for _, step := range steps {
		if !t.Run(step.name, func(t *testing.T) { step.fn(t, adp, td) }) {
			// Later steps depend on earlier ones.
			return
		}
	}
}

func RunDbVersion(t *testing.T, adp adapter.Adapter, _ *test_data.TestData) {
	t.Helper()

	vers, err := adp.GetDbVersion()
	if err != nil {
		t.Fatal(err)
	}
	if vers != adp.Version() {
		t.Errorf("DB version mismatch: got %d want %d", vers, adp.Version())
	}
	if err := adp.CheckDbVersion(); err != nil {
		t.Error(err)
	}
}

func RunGroupUpsert(t *testing.T, adp adapter.Adapter, td *test_data.TestData) {
	t.Helper()

	for _, g := range td.Groups {
		if err := adp.GroupUpsert(g); err != nil {
			t.Fatal(err)
		}
	}
	// Upserting again must not fail or create a duplicate.
	if err := adp.GroupUpsert(td.Groups[0]); err != nil {
		t.Fatal(err)
	}
}

func RunGroupGet(t *testing.T, adp adapter.Adapter, td *test_data.TestData) {
	t.Helper()

	got, err := adp.GroupGet(td.Groups[0].Node)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(td.Groups[0], got); diff != "" {
		t.Errorf("Group mismatch (-want +got):\n%s", diff)
	}

	// Not found
	got, err = adp.GroupGet("no-such-node")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("Group should be nil but got:", got)
	}
}

func RunGroupGetAll(t *testing.T, adp adapter.Adapter, td *test_data.TestData) {
	t.Helper()

	got, err := adp.GroupGetAll()
	if err != nil {
		t.Fatal(err)
	}
	var want []types.Group
	for _, g := range td.Groups {
		want = append(want, *g)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Groups mismatch (-want +got):\n%s", diff)
	}
}

func RunGroupUpsertKeepsSubs(t *testing.T, adp adapter.Adapter, td *test_data.TestData) {
	t.Helper()

	updated := *td.Groups[0]
	updated.Name = "Golang"
	updated.Description = "Updated description"
	if err := adp.GroupUpsert(&updated); err != nil {
		t.Fatal(err)
	}

	got, err := adp.GroupGet(updated.Node)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(&updated, got); diff != "" {
		t.Errorf("Group mismatch (-want +got):\n%s", diff)
	}

	subs, err := adp.SubsForGroup(updated.Node)
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 2 {
		t.Errorf("Subscriptions lost on upsert: got %v", subs)
	}
}

func RunGroupDelete(t *testing.T, adp adapter.Adapter, td *test_data.TestData) {
	t.Helper()

	node := td.Groups[2].Node
	if err := adp.GroupDelete(node); err != nil {
		t.Fatal(err)
	}

	got, err := adp.GroupGet(node)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("Group should be deleted but got:", got)
	}

	// Subscriptions are deleted together with the group.
	subs, err := adp.SubsForGroup(node)
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 0 {
		t.Error("Subscriptions should be deleted but got:", subs)
	}
	nodes, err := adp.SubsForUser("carol@example.org")
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 0 {
		t.Error("Subscriptions should be deleted but got:", nodes)
	}

	// Other groups are not affected.
	all, err := adp.GroupGetAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != len(td.Groups)-1 {
		t.Errorf("Expected %d groups, got %d", len(td.Groups)-1, len(all))
	}

	if err := adp.GroupDelete(node); !errors.Is(err, types.ErrNoSuchGroup) {
		t.Errorf("Deleting missing group: expected ErrNoSuchGroup, got %v", err)
	}
}

func RunCreateDbReset(t *testing.T, adp adapter.Adapter, _ *test_data.TestData) {
	t.Helper()

	if err := adp.CreateDb(true); err != nil {
		t.Fatal(err)
	}
	all, err := adp.GroupGetAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Error("Database should be empty after reset, got:", all)
	}
}
