package mysql

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/tinode/groups/server/db/common/testsuite"
)

// Set GROUPS_TEST_MYSQL_DSN to run, e.g.
// GROUPS_TEST_MYSQL_DSN='root:@tcp(localhost:3306)/groups_test'
func TestMysqlAdapter(t *testing.T) {
	dsn := os.Getenv("GROUPS_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("GROUPS_TEST_MYSQL_DSN is not set")
	}

	conf, _ := json.Marshal(configType{DSN: dsn})
	adp := NewAdapter()
	if err := adp.Open(conf); err != nil {
		t.Fatal(err)
	}
	defer adp.Close()

	testsuite.RunAll(t, adp)
}

func TestErrorClassifiers(t *testing.T) {
	if isDupe(nil) || isForeignKey(nil) || isMissingTable(nil) || isMissingDb(nil) {
		t.Error("nil error misclassified")
	}
	if convertError(nil) != nil {
		t.Error("convertError(nil) must be nil")
	}
}

func TestOpenBadConfig(t *testing.T) {
	adp := NewAdapter()
	if err := adp.Open(json.RawMessage(`{"dsn": 1}`)); err == nil {
		t.Error("expected config parse error")
	}
	if err := adp.Open(json.RawMessage(`{"dsn": "not a dsn"}`)); err == nil {
		t.Error("expected dsn parse error")
	}
}
