// Package sqlite is a database adapter for SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	sqlite3 "github.com/mattn/go-sqlite3"
	adapter "github.com/tinode/groups/server/db"
	"github.com/tinode/groups/server/db/common"
	"github.com/tinode/groups/server/store"
	t "github.com/tinode/groups/server/store/types"
)

// sqliteAdapter holds SQLite connection data.
type sqliteAdapter struct {
	db      *sqlx.DB
	dbName  string
	version int
	// Maximum time to wait for a query to complete.
	sqlTimeout time.Duration
}

const (
	defaultDatabase = "groups.db"
	memoryDatabase  = ":memory:"

	adpVersion = 1

	adapterName = "sqlite"
)

type configType struct {
	// Path to the database file or ":memory:".
	Database string `json:"database,omitempty"`
	// Query timeout in seconds. 0 means no timeout.
	SqlTimeout int `json:"sql_timeout,omitempty"`
}

func dsn(name string) string {
	const params = "_foreign_keys=on&_busy_timeout=5000"
	if name == memoryDatabase {
		return "file::memory:?" + params
	}
	return "file:" + name + "?" + params
}

// Open opens (or creates) the database file.
func (a *sqliteAdapter) Open(jsonconfig json.RawMessage) error {
	if a.db != nil {
		return errors.New("sqlite adapter is already connected")
	}

	var config configType
	if len(jsonconfig) > 0 {
		if err := json.Unmarshal(jsonconfig, &config); err != nil {
			return errors.New("sqlite adapter failed to parse config: " + err.Error())
		}
	}

	a.dbName = config.Database
	if a.dbName == "" {
		a.dbName = defaultDatabase
	}
	a.sqlTimeout = time.Duration(config.SqlTimeout) * time.Second

	db, err := sqlx.Open("sqlite3", dsn(a.dbName))
	if err != nil {
		return err
	}
	// SQLite allows one writer at a time. An in-memory database exists only
	// as long as its single connection.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := a.getContext()
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return err
	}

	a.db = db
	a.version = -1
	return nil
}

// Close closes the underlying database connection.
func (a *sqliteAdapter) Close() error {
	var err error
	if a.db != nil {
		err = a.db.Close()
		a.db = nil
		a.version = -1
	}
	return err
}

// IsOpen returns true if the database has been opened.
func (a *sqliteAdapter) IsOpen() bool {
	return a.db != nil
}

func (a *sqliteAdapter) getContext() (context.Context, context.CancelFunc) {
	return common.Context(a.sqlTimeout)
}

// GetDbVersion returns current database version.
func (a *sqliteAdapter) GetDbVersion() (int, error) {
	if a.version > 0 {
		return a.version, nil
	}

	ctx, cancel := a.getContext()
	defer cancel()
	var vers int
	err := a.db.GetContext(ctx, &vers, "SELECT value FROM kvmeta WHERE key='version'")
	if err != nil {
		if isMissingTable(err) || errors.Is(err, sql.ErrNoRows) {
			err = t.ErrNotInitialized
		}
		return -1, err
	}
	a.version = vers
	return vers, nil
}

// CheckDbVersion checks whether the actual DB version matches the expected version of this adapter.
func (a *sqliteAdapter) CheckDbVersion() error {
	version, err := a.GetDbVersion()
	if err != nil {
		return err
	}
	if version != adpVersion {
		return errors.New("Invalid database version " + strconv.Itoa(version) +
			". Expected " + strconv.Itoa(adpVersion))
	}
	return nil
}

// Version returns adapter version.
func (sqliteAdapter) Version() int {
	return adpVersion
}

// GetName returns string that adapter uses to register itself with store.
func (sqliteAdapter) GetName() string {
	return adapterName
}

// CreateDb creates the schema. Existing tables are kept unless reset is true.
func (a *sqliteAdapter) CreateDb(reset bool) error {
	ctx, cancel := a.getContext()
	defer cancel()

	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if reset {
		for _, table := range []string{"subscriptions", `"groups"`, "kvmeta"} {
			if _, err = tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
				return err
			}
		}
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kvmeta(
			key   TEXT PRIMARY KEY,
			value TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS "groups"(
			node        TEXT PRIMARY KEY,
			name        TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS subscriptions(
			id   INTEGER PRIMARY KEY AUTOINCREMENT,
			node TEXT NOT NULL REFERENCES "groups"(node) ON DELETE CASCADE,
			jid  TEXT NOT NULL,
			UNIQUE(node, jid)
		)`,
		`CREATE INDEX IF NOT EXISTS subscriptions_jid ON subscriptions(jid)`,
	}
	for _, stmt := range stmts {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err = tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO kvmeta(key, value) VALUES('version', ?)", strconv.Itoa(adpVersion)); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	a.version = adpVersion
	return nil
}

// GroupUpsert creates a group or updates name and description of an existing one.
func (a *sqliteAdapter) GroupUpsert(group *t.Group) error {
	ctx, cancel := a.getContext()
	defer cancel()
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO "groups"(node, name, description) VALUES(?, ?, ?)
		ON CONFLICT(node) DO UPDATE SET name=excluded.name, description=excluded.description`,
		group.Node, group.Name, group.Description)
	return convertError(err)
}

// GroupGet returns the group or nil if not found.
func (a *sqliteAdapter) GroupGet(node string) (*t.Group, error) {
	ctx, cancel := a.getContext()
	defer cancel()
	var group t.Group
	err := a.db.GetContext(ctx, &group, `SELECT node, name, description FROM "groups" WHERE node=?`, node)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, convertError(err)
	}
	return &group, nil
}

// GroupGetAll returns all groups ordered by node.
func (a *sqliteAdapter) GroupGetAll() ([]t.Group, error) {
	query, args, err := sq.Select("node", "name", "description").
		From(`"groups"`).
		OrderBy("node").
		ToSql()
	if err != nil {
		return nil, err
	}

	ctx, cancel := a.getContext()
	defer cancel()
	groups := []t.Group{}
	if err = a.db.SelectContext(ctx, &groups, query, args...); err != nil {
		return nil, convertError(err)
	}
	return groups, nil
}

// GroupDelete deletes the group and its subscriptions.
func (a *sqliteAdapter) GroupDelete(node string) error {
	ctx, cancel := a.getContext()
	defer cancel()

	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM subscriptions WHERE node=?", node); err != nil {
		return convertError(err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM "groups" WHERE node=?`, node)
	if err != nil {
		return convertError(err)
	}
	var count int64
	if count, err = res.RowsAffected(); err != nil {
		return err
	}
	if count == 0 {
		err = t.ErrNoSuchGroup
		return err
	}
	return tx.Commit()
}

// SubsCreate subscribes jid to node. The foreign key rejects unknown nodes.
func (a *sqliteAdapter) SubsCreate(node, jid string) error {
	ctx, cancel := a.getContext()
	defer cancel()
	_, err := a.db.ExecContext(ctx,
		"INSERT INTO subscriptions(node, jid) VALUES(?, ?) ON CONFLICT(node, jid) DO NOTHING", node, jid)
	if isForeignKey(err) {
		return t.ErrNoSuchGroup
	}
	return convertError(err)
}

// SubsDelete deletes the subscription if it exists.
func (a *sqliteAdapter) SubsDelete(node, jid string) error {
	ctx, cancel := a.getContext()
	defer cancel()
	_, err := a.db.ExecContext(ctx, "DELETE FROM subscriptions WHERE node=? AND jid=?", node, jid)
	return convertError(err)
}

// SubsExists checks if the subscription exists.
func (a *sqliteAdapter) SubsExists(node, jid string) (bool, error) {
	ctx, cancel := a.getContext()
	defer cancel()
	var count int
	err := a.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM subscriptions WHERE node=? AND jid=?", node, jid)
	if err != nil {
		return false, convertError(err)
	}
	return count > 0, nil
}

// SubsForUser returns nodes the jid is subscribed to.
func (a *sqliteAdapter) SubsForUser(jid string) ([]string, error) {
	return a.selectColumn(sq.Select("node").
		From("subscriptions").
		Where(sq.Eq{"jid": jid}).
		OrderBy("node"))
}

// SubsForGroup returns subscribers of the node.
func (a *sqliteAdapter) SubsForGroup(node string) ([]string, error) {
	return a.selectColumn(sq.Select("jid").
		From("subscriptions").
		Where(sq.Eq{"node": node}).
		OrderBy("jid"))
}

func (a *sqliteAdapter) selectColumn(builder sq.SelectBuilder) ([]string, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	ctx, cancel := a.getContext()
	defer cancel()
	var vals []string
	if err = a.db.SelectContext(ctx, &vals, query, args...); err != nil {
		return nil, convertError(err)
	}
	return vals, nil
}

// Helper functions

func isMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

func isForeignKey(err error) bool {
	var sqerr sqlite3.Error
	return errors.As(err, &sqerr) && sqerr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}

func convertError(err error) error {
	if isMissingTable(err) {
		return t.ErrNotInitialized
	}
	return err
}

// NewAdapter returns a new unregistered adapter instance.
func NewAdapter() adapter.Adapter {
	return &sqliteAdapter{version: -1}
}

func init() {
	store.RegisterAdapter(&sqliteAdapter{version: -1})
}
