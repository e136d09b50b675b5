/******************************************************************************
 *
 *  Description :
 *
 *  Setup & initialization.
 *
 *****************************************************************************/

package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	flag "github.com/spf13/pflag"
	jcr "github.com/tinode/jsonco"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	// Database backends
	_ "github.com/tinode/groups/server/db/memory"
	_ "github.com/tinode/groups/server/db/mongodb"
	_ "github.com/tinode/groups/server/db/mysql"
	_ "github.com/tinode/groups/server/db/postgres"
	_ "github.com/tinode/groups/server/db/sqlite"

	"github.com/tinode/groups/server/logs"
	"github.com/tinode/groups/server/store"
	"github.com/tinode/groups/server/store/types"
)

const (
	// Default service name reported by discovery.
	defaultServiceName = "Discussion Groups"
	// Default key for stanza id encryption. Replace in production.
	defaultUidKey = "la6YsO+bNX/+XIkOqc5Svw=="
)

// Build version number defined by the compiler:
//
//	-ldflags "-X main.buildstamp=value_to_assign_to_buildstamp"
//
// Reported by the metrics endpoint.
var buildstamp = "undef"

// Contents of the configuration file.
type configType struct {
	// HTTP address for metrics and health checks, "-" to disable.
	Listen string `json:"listen"`
	// URL path for exposing runtime profiling data, "-" or blank to disable.
	PprofUrl string `json:"pprof_url"`
	// Logger settings.
	Log logs.Config `json:"log"`
	// Connection to the XMPP server.
	Component ComponentConfig `json:"component"`
	// Snowflake worker id.
	WorkerID uint `json:"worker_id"`
	// 16-byte key for XTEA encryption of stanza ids, base64.
	UidKey []byte `json:"uid_key"`
	// Number of goroutines delivering published items.
	FanoutWorkers int `json:"fanout_workers"`
	// Create the database schema if it does not exist.
	InitDb bool `json:"init_db"`
	// Configs for the database adapters.
	StoreConfig json.RawMessage `json:"store_config"`
	// Groups to create or update at startup.
	Groups []types.Group `json:"groups"`
}

// loadConfig reads the config file, reporting line and character of parse errors.
func loadConfig(path string) (*configType, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config configType
	jr := jcr.New(file)
	if err = json.NewDecoder(jr).Decode(&config); err != nil {
		switch jerr := err.(type) {
		case *json.UnmarshalTypeError:
			lnum, cnum, _ := jr.LineAndChar(jerr.Offset)
			return nil, fmt.Errorf("unmarshal error in config file in %s at %d:%d (offset %d bytes): %w",
				jerr.Field, lnum, cnum, jerr.Offset, err)
		case *json.SyntaxError:
			lnum, cnum, _ := jr.LineAndChar(jerr.Offset)
			return nil, fmt.Errorf("syntax error in config file at %d:%d (offset %d bytes): %w",
				lnum, cnum, jerr.Offset, err)
		default:
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	return &config, nil
}

// openStore opens the database, creating the schema when allowed, and syncs the configured groups.
func openStore(config *configType, log *zap.Logger) (*store.Store, error) {
	st, err := store.Open(config.StoreConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open DB: %w", err)
	}

	if err = st.CheckDbVersion(); err != nil {
		if !errors.Is(err, types.ErrNotInitialized) || !config.InitDb {
			st.Close()
			return nil, fmt.Errorf("invalid DB: %w", err)
		}
		log.Info("Creating database", zap.String("adapter", st.GetAdapterName()))
		if err = st.InitDb(false); err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to create DB: %w", err)
		}
	}

	count, err := store.SyncGroups(st, config.Groups)
	if err != nil {
		st.Close()
		return nil, err
	}
	log.Info("Groups synced", zap.Int("count", count))
	return st, nil
}

func run() (err error) {
	var configfile = flag.String("config", "./groups.conf", "Path to config file.")
	var listenOn = flag.String("listen", "", "Override address and port to listen on for HTTP metrics.")
	var logLevel = flag.String("log_level", "", "Override logging level: debug, info, warn, error.")
	flag.Parse()

	config, err := loadConfig(*configfile)
	if err != nil {
		return err
	}
	if *listenOn != "" {
		config.Listen = *listenOn
	}
	if *logLevel != "" {
		config.Log.Level = *logLevel
	}

	log, err := logs.New(os.Stderr, config.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("Server started", zap.Int("pid", os.Getpid()), zap.Int("procs", runtime.GOMAXPROCS(0)),
		zap.String("build", buildstamp), zap.String("config", *configfile))

	st, err := openStore(config, log)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, st.Close())
		log.Info("Closed database connection(s)")
	}()

	key := config.UidKey
	if len(key) == 0 {
		log.Warn("uid_key is not set, using the default key")
		key, _ = base64.StdEncoding.DecodeString(defaultUidKey)
	}
	idgen := &types.UidGenerator{}
	if err = idgen.Init(config.WorkerID, key); err != nil {
		return fmt.Errorf("failed to init id generator: %w", err)
	}

	conn, err := newComponentConn(&config.Component, log.Named("component"))
	if err != nil {
		return err
	}

	name := config.Component.Name
	if name == "" {
		name = defaultServiceName
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	svc, err := NewService(ServiceConfig{
		Name:          name,
		Addr:          conn.addr,
		FanoutWorkers: config.FanoutWorkers,
		Build:         buildstamp,
	}, st, conn, idgen, log.Named("pubsub"), registry)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := signalContext(context.Background(), log)
	defer cancel()

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return conn.Run(gctx, svc)
	})
	if config.Listen != "" && config.Listen != "-" {
		handler := newHTTPHandler(registry, conn, config.PprofUrl, log)
		group.Go(func() error {
			return listenAndServe(gctx, config.Listen, handler, log)
		})
	}

	return group.Wait()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "groups:", err)
		os.Exit(1)
	}
}
