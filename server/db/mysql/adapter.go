// Package mysql is a database adapter for MySQL.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	ms "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	adapter "github.com/tinode/groups/server/db"
	"github.com/tinode/groups/server/db/common"
	"github.com/tinode/groups/server/store"
	t "github.com/tinode/groups/server/store/types"
)

// mysqlAdapter holds MySQL connection data.
type mysqlAdapter struct {
	db      *sqlx.DB
	dsn     string
	dbName  string
	version int
	// Maximum time to wait for a query to complete.
	sqlTimeout time.Duration
}

const (
	defaultDSN      = "root:@tcp(localhost:3306)/groups?parseTime=true"
	defaultDatabase = "groups"

	adpVersion = 1

	adapterName = "mysql"
)

type configType struct {
	// DB connection string, see github.com/go-sql-driver/mysql.
	DSN string `json:"dsn,omitempty"`
	// Overrides the database name from the DSN.
	Database string `json:"database,omitempty"`
	// Connection pool settings.
	MaxOpenConns    int `json:"max_open_conns,omitempty"`
	MaxIdleConns    int `json:"max_idle_conns,omitempty"`
	ConnMaxLifetime int `json:"conn_max_lifetime,omitempty"`
	// Query timeout in seconds. 0 means no timeout.
	SqlTimeout int `json:"sql_timeout,omitempty"`
}

// Open initializes the connection pool. A missing database is not an error:
// the pool then connects without a default database so that CreateDb can create it.
func (a *mysqlAdapter) Open(jsonconfig json.RawMessage) error {
	if a.db != nil {
		return errors.New("mysql adapter is already connected")
	}

	var config configType
	if len(jsonconfig) > 0 {
		if err := json.Unmarshal(jsonconfig, &config); err != nil {
			return errors.New("mysql adapter failed to parse config: " + err.Error())
		}
	}

	dsn := config.DSN
	if dsn == "" {
		dsn = defaultDSN
	}
	cfg, err := ms.ParseDSN(dsn)
	if err != nil {
		return errors.New("mysql adapter failed to parse dsn: " + err.Error())
	}
	if config.Database != "" {
		cfg.DBName = config.Database
	}
	if cfg.DBName == "" {
		cfg.DBName = defaultDatabase
	}
	cfg.ParseTime = true
	a.dbName = cfg.DBName
	a.dsn = cfg.FormatDSN()
	a.sqlTimeout = time.Duration(config.SqlTimeout) * time.Second

	a.db, err = a.connect(a.dsn)
	if isMissingDb(err) {
		// Connect without a default database.
		cfg.DBName = ""
		a.db, err = a.connect(cfg.FormatDSN())
	}
	if err != nil {
		return err
	}

	if config.MaxOpenConns > 0 {
		a.db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		a.db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		a.db.SetConnMaxLifetime(time.Duration(config.ConnMaxLifetime) * time.Second)
	}

	a.version = -1
	return nil
}

func (a *mysqlAdapter) connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// sql.Open does not open the network connection.
	// Force network connection here.
	ctx, cancel := a.getContext()
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the underlying database connection.
func (a *mysqlAdapter) Close() error {
	var err error
	if a.db != nil {
		err = a.db.Close()
		a.db = nil
		a.version = -1
	}
	return err
}

// IsOpen returns true if connection to database has been established. It does not check if
// connection is actually live.
func (a *mysqlAdapter) IsOpen() bool {
	return a.db != nil
}

func (a *mysqlAdapter) getContext() (context.Context, context.CancelFunc) {
	return common.Context(a.sqlTimeout)
}

// GetDbVersion returns current database version.
func (a *mysqlAdapter) GetDbVersion() (int, error) {
	if a.version > 0 {
		return a.version, nil
	}

	ctx, cancel := a.getContext()
	defer cancel()
	var vers int
	err := a.db.GetContext(ctx, &vers, "SELECT `value` FROM `"+a.dbName+"`.kvmeta WHERE `key`='version'")
	if err != nil {
		if isMissingDb(err) || isMissingTable(err) || errors.Is(err, sql.ErrNoRows) {
			err = t.ErrNotInitialized
		}
		return -1, err
	}
	a.version = vers
	return vers, nil
}

// CheckDbVersion checks whether the actual DB version matches the expected version of this adapter.
func (a *mysqlAdapter) CheckDbVersion() error {
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
func (mysqlAdapter) Version() int {
	return adpVersion
}

// GetName returns string that adapter uses to register itself with store.
func (mysqlAdapter) GetName() string {
	return adapterName
}

// CreateDb creates the database and the tables. Existing data is kept unless reset is true.
func (a *mysqlAdapter) CreateDb(reset bool) error {
	ctx, cancel := a.getContext()
	defer cancel()

	if reset {
		if _, err := a.db.ExecContext(ctx, "DROP DATABASE IF EXISTS `"+a.dbName+"`"); err != nil {
			return err
		}
	}
	if _, err := a.db.ExecContext(ctx, "CREATE DATABASE IF NOT EXISTS `"+a.dbName+
		"` CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci"); err != nil {
		return err
	}

	// The pool may have been opened without a default database or the database
	// was just dropped. Reconnect to make sure every connection uses it.
	db, err := a.connect(a.dsn)
	if err != nil {
		return err
	}
	a.db.Close()
	a.db = db
	a.version = -1

	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmts := []string{
		"CREATE TABLE IF NOT EXISTS kvmeta(" +
			"`key`   VARCHAR(64) NOT NULL," +
			"`value` TEXT," +
			"PRIMARY KEY(`key`))",
		"CREATE TABLE IF NOT EXISTS `groups`(" +
			"node        VARCHAR(255) NOT NULL," +
			"name        VARCHAR(255) NOT NULL DEFAULT ''," +
			"description TEXT," +
			"PRIMARY KEY(node))",
		"CREATE TABLE IF NOT EXISTS subscriptions(" +
			"id   INT NOT NULL AUTO_INCREMENT," +
			"node VARCHAR(255) NOT NULL," +
			"jid  VARCHAR(255) NOT NULL," +
			"PRIMARY KEY(id)," +
			"UNIQUE INDEX subscriptions_node_jid(node, jid)," +
			"INDEX subscriptions_jid(jid)," +
			"FOREIGN KEY(node) REFERENCES `groups`(node) ON DELETE CASCADE)",
	}
	for _, stmt := range stmts {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err = tx.ExecContext(ctx, "REPLACE INTO kvmeta(`key`, `value`) VALUES('version', ?)",
		strconv.Itoa(adpVersion)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	a.version = adpVersion
	return nil
}

// GroupUpsert creates a group or updates name and description of an existing one.
func (a *mysqlAdapter) GroupUpsert(group *t.Group) error {
	ctx, cancel := a.getContext()
	defer cancel()
	_, err := a.db.ExecContext(ctx,
		"INSERT INTO `groups`(node, name, description) VALUES(?, ?, ?) "+
			"ON DUPLICATE KEY UPDATE name=VALUES(name), description=VALUES(description)",
		group.Node, group.Name, group.Description)
	return convertError(err)
}

// GroupGet returns the group or nil if not found.
func (a *mysqlAdapter) GroupGet(node string) (*t.Group, error) {
	ctx, cancel := a.getContext()
	defer cancel()
	var group t.Group
	err := a.db.GetContext(ctx, &group,
		"SELECT node, name, COALESCE(description, '') AS description FROM `groups` WHERE node=?", node)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, convertError(err)
	}
	return &group, nil
}

// GroupGetAll returns all groups ordered by node.
func (a *mysqlAdapter) GroupGetAll() ([]t.Group, error) {
	ctx, cancel := a.getContext()
	defer cancel()
	groups := []t.Group{}
	err := a.db.SelectContext(ctx, &groups,
		"SELECT node, name, COALESCE(description, '') AS description FROM `groups` ORDER BY node")
	if err != nil {
		return nil, convertError(err)
	}
	return groups, nil
}

// GroupDelete deletes the group and its subscriptions in one transaction.
func (a *mysqlAdapter) GroupDelete(node string) error {
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
	res, err := tx.ExecContext(ctx, "DELETE FROM `groups` WHERE node=?", node)
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

// SubsCreate subscribes jid to node. The foreign key rejects unknown nodes, the
// unique index rejects duplicates.
func (a *mysqlAdapter) SubsCreate(node, jid string) error {
	ctx, cancel := a.getContext()
	defer cancel()
	_, err := a.db.ExecContext(ctx, "INSERT INTO subscriptions(node, jid) VALUES(?, ?)", node, jid)
	if isDupe(err) {
		return nil
	}
	if isForeignKey(err) {
		return t.ErrNoSuchGroup
	}
	return convertError(err)
}

// SubsDelete deletes the subscription if it exists.
func (a *mysqlAdapter) SubsDelete(node, jid string) error {
	ctx, cancel := a.getContext()
	defer cancel()
	_, err := a.db.ExecContext(ctx, "DELETE FROM subscriptions WHERE node=? AND jid=?", node, jid)
	return convertError(err)
}

// SubsExists checks if the subscription exists.
func (a *mysqlAdapter) SubsExists(node, jid string) (bool, error) {
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
func (a *mysqlAdapter) SubsForUser(jid string) ([]string, error) {
	ctx, cancel := a.getContext()
	defer cancel()
	var nodes []string
	err := a.db.SelectContext(ctx, &nodes, "SELECT node FROM subscriptions WHERE jid=? ORDER BY node", jid)
	return nodes, convertError(err)
}

// SubsForGroup returns subscribers of the node.
func (a *mysqlAdapter) SubsForGroup(node string) ([]string, error) {
	ctx, cancel := a.getContext()
	defer cancel()
	var jids []string
	err := a.db.SelectContext(ctx, &jids, "SELECT jid FROM subscriptions WHERE node=? ORDER BY jid", node)
	return jids, convertError(err)
}

// Helper functions

func errNumber(err error) uint16 {
	var myerr *ms.MySQLError
	if errors.As(err, &myerr) {
		return myerr.Number
	}
	return 0
}

// Error 1062: Duplicate entry ... for key ...
func isDupe(err error) bool {
	return errNumber(err) == 1062
}

// Error 1452: Cannot add or update a child row: a foreign key constraint fails.
func isForeignKey(err error) bool {
	return errNumber(err) == 1452
}

// Error 1146: Table doesn't exist.
func isMissingTable(err error) bool {
	return errNumber(err) == 1146
}

// Error 1049: Unknown database.
func isMissingDb(err error) bool {
	return errNumber(err) == 1049
}

func convertError(err error) error {
	if isMissingTable(err) || isMissingDb(err) {
		return t.ErrNotInitialized
	}
	return err
}

// NewAdapter returns a new unregistered adapter instance.
func NewAdapter() adapter.Adapter {
	return &mysqlAdapter{version: -1}
}

func init() {
	store.RegisterAdapter(&mysqlAdapter{version: -1})
}
