// groups-db creates the database schema and manages discussion groups.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"
	jcr "github.com/tinode/jsonco"
	"go.uber.org/zap"

	_ "github.com/tinode/groups/server/db/memory"
	_ "github.com/tinode/groups/server/db/mongodb"
	_ "github.com/tinode/groups/server/db/mysql"
	_ "github.com/tinode/groups/server/db/postgres"
	_ "github.com/tinode/groups/server/db/sqlite"
	"github.com/tinode/groups/server/logs"
	"github.com/tinode/groups/server/store"
	"github.com/tinode/groups/server/store/types"
)

type configType struct {
	Log         logs.Config     `json:"log"`
	StoreConfig json.RawMessage `json:"store_config"`
	Groups      []types.Group   `json:"groups"`
}

type options struct {
	conffile    string
	reset       bool
	noInit      bool
	noSync      bool
	list        bool
	remove      string
	upsert      string
	name        string
	description string
}

func parseFlags(args []string) (*options, error) {
	var opts options
	fs := flag.NewFlagSet("groups-db", flag.ContinueOnError)
	fs.StringVar(&opts.conffile, "config", "./groups.conf", "config of the database connection")
	fs.BoolVar(&opts.reset, "reset", false, "force database reset")
	fs.BoolVar(&opts.noInit, "no_init", false, "check that database exists but don't create if missing")
	fs.BoolVar(&opts.noSync, "no_sync", false, "don't create or update groups listed in the config")
	fs.BoolVar(&opts.list, "list", false, "print all groups and their subscribers")
	fs.StringVar(&opts.remove, "remove", "", "delete the group with all its subscriptions")
	fs.StringVar(&opts.upsert, "upsert", "", "create or update the group")
	fs.StringVar(&opts.name, "name", "", "name of the group for --upsert")
	fs.StringVar(&opts.description, "description", "", "description of the group for --upsert")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.upsert != "" && opts.remove == opts.upsert {
		return nil, errors.New("--upsert and --remove of the same group")
	}
	return &opts, nil
}

func loadConfig(path string) (*configType, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
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

// prepareDb creates or resets the schema as requested.
func prepareDb(st *store.Store, opts *options, log *zap.Logger) error {
	log.Info("Database", zap.String("adapter", st.GetAdapterName()), zap.Int("version", st.GetAdapterVersion()))

	err := st.CheckDbVersion()
	switch {
	case errors.Is(err, types.ErrNotInitialized):
		if opts.noInit {
			return errors.New("database not found")
		}
		log.Info("Database not found. Creating.")
		if err = st.InitDb(false); err != nil {
			return fmt.Errorf("failed to init DB: %w", err)
		}
		log.Info("Database initialized")
	case err != nil:
		if !opts.reset {
			return fmt.Errorf("%w. Use --reset to reset", err)
		}
		fallthrough
	case opts.reset:
		log.Info("Database reset requested")
		if err = st.InitDb(true); err != nil {
			return fmt.Errorf("failed to reset DB: %w", err)
		}
		log.Info("Database reset")
	}
	return nil
}

// listGroups prints every group with its subscribers.
func listGroups(st store.Storage, w io.Writer) error {
	groups, err := st.ListGroups()
	if err != nil {
		return err
	}
	for _, g := range groups {
		subs, err := st.ListSubscribers(g.Node)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%d subscriber(s)\n", g.Node, g.Name, len(subs))
		for _, jid := range subs {
			fmt.Fprintf(w, "\t%s\n", jid)
		}
	}
	return nil
}

func run(args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	config, err := loadConfig(opts.conffile)
	if err != nil {
		return err
	}
	log, err := logs.New(stderr, config.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	st, err := store.Open(config.StoreConfig)
	if err != nil {
		return fmt.Errorf("failed to open DB: %w", err)
	}
	defer st.Close()

	if err = prepareDb(st, opts, log); err != nil {
		return err
	}

	if !opts.noSync {
		count, err := store.SyncGroups(st, config.Groups)
		if err != nil {
			return err
		}
		log.Info("Groups synced", zap.Int("count", count))
	}

	if opts.remove != "" {
		if err = st.RemoveGroup(opts.remove); err != nil {
			return fmt.Errorf("failed to remove group '%s': %w", opts.remove, err)
		}
		log.Info("Group removed", zap.String("node", opts.remove))
	}

	if opts.upsert != "" {
		if err = st.UpsertGroup(opts.upsert, opts.name, opts.description); err != nil {
			return fmt.Errorf("failed to save group '%s': %w", opts.upsert, err)
		}
		log.Info("Group saved", zap.String("node", opts.upsert))
	}

	if opts.list {
		return listGroups(st, stdout)
	}
	return nil
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "groups-db:", err)
		os.Exit(1)
	}
}
