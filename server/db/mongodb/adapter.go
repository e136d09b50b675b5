// Package mongodb is a database adapter for MongoDB.
package mongodb

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	adapter "github.com/tinode/groups/server/db"
	"github.com/tinode/groups/server/db/common"
	"github.com/tinode/groups/server/store"
	t "github.com/tinode/groups/server/store/types"
	b "go.mongodb.org/mongo-driver/bson"
	mdb "go.mongodb.org/mongo-driver/mongo"
	mdbopts "go.mongodb.org/mongo-driver/mongo/options"
)

// mongoAdapter holds MongoDB connection data.
type mongoAdapter struct {
	conn            *mdb.Client
	db              *mdb.Database
	dbName          string
	version         int
	ctx             context.Context
	useTransactions bool
}

const (
	defaultHost     = "localhost:27017"
	defaultDatabase = "groups"

	adpVersion  = 1
	adapterName = "mongodb"

	collKvmeta = "kvmeta"
	collGroups = "groups"
	collSubs   = "subscriptions"
)

// See https://godoc.org/go.mongodb.org/mongo-driver/mongo/options#ClientOptions for explanations.
type configType struct {
	// A string or an array of strings.
	Addresses      any `json:"addresses,omitempty"`
	ConnectTimeout int `json:"timeout,omitempty"`

	Database   string `json:"database,omitempty"`
	ReplicaSet string `json:"replica_set,omitempty"`

	AuthSource string `json:"auth_source,omitempty"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
}

func subsFilter(node, jid string) b.M {
	return b.M{"node": node, "jid": jid}
}

func parseAddresses(addrs any) ([]string, error) {
	switch v := addrs.(type) {
	case nil:
		return []string{defaultHost}, nil
	case string:
		return []string{v}, nil
	case []any:
		hosts := make([]string, 0, len(v))
		for _, h := range v {
			host, ok := h.(string)
			if !ok {
				return nil, errors.New("adapter mongodb failed to parse config.Addresses")
			}
			hosts = append(hosts, host)
		}
		return hosts, nil
	}
	return nil, errors.New("adapter mongodb failed to parse config.Addresses")
}

// Open initializes mongodb session.
func (a *mongoAdapter) Open(jsonconfig json.RawMessage) error {
	if a.conn != nil {
		return errors.New("adapter mongodb is already connected")
	}

	var err error
	var config configType
	if len(jsonconfig) > 0 {
		if err = json.Unmarshal(jsonconfig, &config); err != nil {
			return errors.New("adapter mongodb failed to parse config: " + err.Error())
		}
	}

	opts := mdbopts.Client()
	hosts, err := parseAddresses(config.Addresses)
	if err != nil {
		return err
	}
	opts.SetHosts(hosts)

	if config.Database == "" {
		a.dbName = defaultDatabase
	} else {
		a.dbName = config.Database
	}

	if config.ReplicaSet != "" {
		opts.SetReplicaSet(config.ReplicaSet)
		a.useTransactions = true
	}

	if config.Username != "" {
		if config.AuthSource == "" {
			config.AuthSource = "admin"
		}
		opts.SetAuth(
			mdbopts.Credential{
				AuthMechanism: "SCRAM-SHA-256",
				AuthSource:    config.AuthSource,
				Username:      config.Username,
				Password:      config.Password,
				PasswordSet:   config.Password != "",
			})
	}
	if config.ConnectTimeout > 0 {
		opts.SetConnectTimeout(time.Duration(config.ConnectTimeout) * time.Second)
	}

	a.ctx = context.Background()
	conn, err := mdb.Connect(a.ctx, opts)
	if err != nil {
		return err
	}
	if err = conn.Ping(a.ctx, nil); err != nil {
		conn.Disconnect(a.ctx)
		return err
	}
	a.conn = conn
	a.db = conn.Database(a.dbName)
	a.version = -1

	return nil
}

// Close the adapter.
func (a *mongoAdapter) Close() error {
	var err error
	if a.conn != nil {
		err = a.conn.Disconnect(a.ctx)
		a.conn = nil
		a.version = -1
	}
	return err
}

// IsOpen checks if the adapter is ready for use.
func (a *mongoAdapter) IsOpen() bool {
	return a.conn != nil
}

// GetDbVersion returns current database version.
func (a *mongoAdapter) GetDbVersion() (int, error) {
	if a.version > 0 {
		return a.version, nil
	}

	var result struct {
		Key   string `bson:"_id"`
		Value int    `bson:"value"`
	}
	if err := a.db.Collection(collKvmeta).FindOne(a.ctx, b.M{"_id": "version"}).Decode(&result); err != nil {
		if errors.Is(err, mdb.ErrNoDocuments) {
			err = t.ErrNotInitialized
		}
		return -1, err
	}

	a.version = result.Value
	return result.Value, nil
}

// CheckDbVersion checks if the actual database version matches adapter version.
func (a *mongoAdapter) CheckDbVersion() error {
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
func (a *mongoAdapter) Version() int {
	return adpVersion
}

// GetName returns the name of the adapter.
func (a *mongoAdapter) GetName() string {
	return adapterName
}

// CreateDb creates indexes and the version record, optionally dropping the database first.
// Collections are created by MongoDB on first write.
func (a *mongoAdapter) CreateDb(reset bool) error {
	if reset {
		if err := a.db.Drop(a.ctx); err != nil {
			return err
		}
	}

	indexes := []mdb.IndexModel{
		{Keys: b.D{{Key: "node", Value: 1}, {Key: "jid", Value: 1}}, Options: mdbopts.Index().SetUnique(true)},
		{Keys: b.M{"jid": 1}},
	}
	if _, err := a.db.Collection(collSubs).Indexes().CreateMany(a.ctx, indexes); err != nil {
		return err
	}

	if _, err := a.db.Collection(collKvmeta).UpdateOne(a.ctx,
		b.M{"_id": "version"},
		b.M{"$set": b.M{"value": adpVersion}},
		mdbopts.Update().SetUpsert(true)); err != nil {
		return err
	}
	a.version = adpVersion
	return nil
}

// Runs fn in a transaction if the server supports them (replica set), otherwise just runs fn.
func (a *mongoAdapter) maybeTransaction(fn func(ctx context.Context) error) error {
	if !a.useTransactions {
		return fn(a.ctx)
	}

	sess, err := a.conn.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(a.ctx)

	_, err = sess.WithTransaction(a.ctx, func(sc mdb.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	return err
}

func (a *mongoAdapter) ready() error {
	if a.version > 0 {
		return nil
	}
	_, err := a.GetDbVersion()
	return err
}

// GroupUpsert creates a group or updates name and description of an existing one.
func (a *mongoAdapter) GroupUpsert(group *t.Group) error {
	if err := a.ready(); err != nil {
		return err
	}
	_, err := a.db.Collection(collGroups).UpdateOne(a.ctx,
		b.M{"_id": group.Node},
		b.M{"$set": b.M{"name": group.Name, "description": group.Description}},
		mdbopts.Update().SetUpsert(true))
	return err
}

// GroupGet returns the group or nil if not found.
func (a *mongoAdapter) GroupGet(node string) (*t.Group, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	var group t.Group
	if err := a.db.Collection(collGroups).FindOne(a.ctx, b.M{"_id": node}).Decode(&group); err != nil {
		if errors.Is(err, mdb.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &group, nil
}

// GroupGetAll returns all groups ordered by node.
func (a *mongoAdapter) GroupGetAll() ([]t.Group, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	cur, err := a.db.Collection(collGroups).Find(a.ctx, b.M{},
		mdbopts.Find().SetSort(b.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	groups := []t.Group{}
	if err = cur.All(a.ctx, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// GroupDelete deletes the group and its subscriptions.
func (a *mongoAdapter) GroupDelete(node string) error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.maybeTransaction(func(ctx context.Context) error {
		res, err := a.db.Collection(collGroups).DeleteOne(ctx, b.M{"_id": node})
		if err != nil {
			return err
		}
		if res.DeletedCount == 0 {
			return t.ErrNoSuchGroup
		}
		_, err = a.db.Collection(collSubs).DeleteMany(ctx, b.M{"node": node})
		return err
	})
}

// SubsCreate subscribes jid to node.
func (a *mongoAdapter) SubsCreate(node, jid string) error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.maybeTransaction(func(ctx context.Context) error {
		count, err := a.db.Collection(collGroups).CountDocuments(ctx, b.M{"_id": node})
		if err != nil {
			return err
		}
		if count == 0 {
			return t.ErrNoSuchGroup
		}
		_, err = a.db.Collection(collSubs).UpdateOne(ctx,
			subsFilter(node, jid),
			b.M{"$setOnInsert": subsFilter(node, jid)},
			mdbopts.Update().SetUpsert(true))
		if mdb.IsDuplicateKeyError(err) {
			// Lost a race with a concurrent upsert of the same subscription.
			return nil
		}
		return err
	})
}

// SubsDelete deletes the subscription if it exists.
func (a *mongoAdapter) SubsDelete(node, jid string) error {
	if err := a.ready(); err != nil {
		return err
	}
	_, err := a.db.Collection(collSubs).DeleteOne(a.ctx, subsFilter(node, jid))
	return err
}

// SubsExists checks if the subscription exists.
func (a *mongoAdapter) SubsExists(node, jid string) (bool, error) {
	if err := a.ready(); err != nil {
		return false, err
	}
	count, err := a.db.Collection(collSubs).CountDocuments(a.ctx, subsFilter(node, jid))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SubsForUser returns nodes the jid is subscribed to.
func (a *mongoAdapter) SubsForUser(jid string) ([]string, error) {
	return a.distinct("node", b.M{"jid": jid})
}

// SubsForGroup returns subscribers of the node.
func (a *mongoAdapter) SubsForGroup(node string) ([]string, error) {
	return a.distinct("jid", b.M{"node": node})
}

func (a *mongoAdapter) distinct(field string, filter b.M) ([]string, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	vals, err := a.db.Collection(collSubs).Distinct(a.ctx, field, filter)
	if err != nil {
		return nil, err
	}
	result := make([]string, 0, len(vals))
	for _, v := range vals {
		if s, ok := v.(string); ok {
			result = append(result, s)
		}
	}
	return common.SortedUnique(result), nil
}

// NewAdapter returns a new unregistered adapter instance.
func NewAdapter() adapter.Adapter {
	return &mongoAdapter{version: -1}
}

func init() {
	store.RegisterAdapter(&mongoAdapter{version: -1})
}
