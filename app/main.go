package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/umputun/go-flags"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/umputun/jobcards/app/listing"
	"github.com/umputun/jobcards/app/persistence"
	"github.com/umputun/jobcards/app/web"
)

var opts struct {
	Options           string        `short:"o" long:"options" env:"JOBCARDS_OPTIONS" description:"yaml file with selectable values"`
	OptionsUpdate     time.Duration `long:"options-update" env:"JOBCARDS_OPTIONS_UPDATE" default:"0s" description:"check options file for changes with this interval, 0 to disable"`
	DumpOptionsSchema bool          `long:"dump-options-schema" description:"print json schema of the options file and exit"`

	Web struct {
		Address       string  `long:"address" env:"ADDRESS" default:"127.0.0.1:8080" description:"web server listen address"`
		BaseURL       string  `long:"base-url" env:"BASE_URL" description:"base URL path for reverse proxy (e.g., /jobs)"`
		MutationLimit float64 `long:"mutation-limit" env:"MUTATION_LIMIT" default:"10" description:"max submit/delete requests per second per client, 0 to disable"`
	} `group:"web" namespace:"web" env-namespace:"JOBCARDS_WEB"`

	Storage struct {
		Type       string        `long:"type" env:"TYPE" choice:"file" choice:"sqlite" choice:"memory" default:"file" description:"storage type"`
		Path       string        `long:"path" env:"PATH" default:"var" description:"storage location, directory for file and db file for sqlite"`
		Key        string        `long:"key" env:"KEY" default:"cards" description:"storage key of the listings collection"`
		Retries    int           `long:"retries" env:"RETRIES" default:"3" description:"attempts of failed storage read or write"`
		RetryDelay time.Duration `long:"retry-delay" env:"RETRY_DELAY" default:"100ms" description:"initial delay between storage attempts"`
	} `group:"storage" namespace:"storage" env-namespace:"JOBCARDS_STORAGE"`

	Log struct {
		Enabled         bool   `long:"enabled" env:"ENABLED" description:"enable logging"`
		Debug           bool   `long:"debug" env:"DEBUG" description:"debug mode"`
		Filename        string `long:"filename" env:"FILENAME" description:"file to log to, stdout if not set"`
		MaxSize         int    `long:"max-size" env:"MAX_SIZE" default:"100" description:"maximum size in megabytes before it gets rotated"`
		MaxAge          int    `long:"max-age" env:"MAX_AGE" default:"0" description:"maximum number of days to retain old log files"`
		MaxBackups      int    `long:"max-backups" env:"MAX_BACKUPS" default:"7" description:"maximum number of old log files to retain"`
		EnabledCompress bool   `long:"compress" env:"COMPRESS" description:"determines if the rotated log files should be compressed using gzip"`
	} `group:"log" namespace:"log" env-namespace:"JOBCARDS_LOG"`
}

var revision = "unknown"

// Storage is listing.Storage which can tell where the data lives
type Storage interface {
	listing.Storage
	String() string
}

func main() {
	fmt.Printf("jobcards %s\n", revision)

	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(2)
	}

	if opts.DumpOptionsSchema {
		if err := dumpOptionsSchema(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "failed to dump options schema: %v\n", err)
			os.Exit(1)
		}
		return
	}

	logsWriter := setupLogs()
	switch {
	case !opts.Log.Enabled:
		log.Setup(log.Out(io.Discard), log.Err(os.Stderr))
	case opts.Log.Debug:
		log.Setup(log.Debug, log.CallerFile, log.CallerFunc, log.Msec, log.LevelBraces, log.Out(logsWriter))
	default:
		log.Setup(log.Msec, log.LevelBraces, log.Out(logsWriter))
	}

	defer func() {
		if x := recover(); x != nil {
			log.Printf("[WARN] run time panic:\n%v", x)
			panic(x)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signals(cancel) // handle SIGQUIT, SIGINT and SIGTERM

	if err := run(ctx); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

// run wires storage, listings store, form and web server, blocks until ctx canceled
func run(ctx context.Context) error {
	options, err := makeOptions()
	if err != nil {
		return err
	}

	backend, err := makeStorage()
	if err != nil {
		return err
	}
	storage := persistence.NewRetrying(backend, opts.Storage.Retries, opts.Storage.RetryDelay)
	defer func() {
		if err := storage.Close(); err != nil {
			log.Printf("[WARN] failed to close storage %s: %v", storage, err)
		}
	}()
	log.Printf("[INFO] storage %s, key %q", storage, opts.Storage.Key)

	store := listing.NewStore(storage, opts.Storage.Key)
	store.Subscribe(func(ls []listing.JobListing) { log.Printf("[DEBUG] listings updated, total %d", len(ls)) })
	if err := store.Hydrate(); err != nil {
		// unreadable storage is not fatal, we start empty and keep writing to it
		log.Printf("[WARN] failed to load listings: %v", err)
	}

	form := listing.NewForm(store)
	form.Subscribe(func(d listing.JobListing) { log.Printf("[DEBUG] draft updated: %+v", d) })

	srv, err := web.New(web.Config{
		Form:          form,
		Listings:      store,
		Options:       options,
		BaseURL:       validateBaseURL(opts.Web.BaseURL),
		Version:       revision,
		MutationLimit: opts.Web.MutationLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to create web server: %w", err)
	}

	if opts.Options != "" && opts.OptionsUpdate > 0 {
		if err := watchOptions(ctx, srv); err != nil {
			log.Printf("[WARN] options reload disabled: %v", err)
		}
	}
	return srv.Run(ctx, opts.Web.Address)
}

// OptionsSetter accepts reloaded options, implemented by web.Server
type OptionsSetter interface {
	SetOptions(listing.Options) error
}

// watchOptions starts background reloading of the options file
func watchOptions(ctx context.Context, dst OptionsSetter) error {
	ch, err := listing.WatchOptions(ctx, opts.Options, opts.OptionsUpdate)
	if err != nil {
		return err
	}
	log.Printf("[INFO] options reload activated for %s, every %v", opts.Options, opts.OptionsUpdate)
	go func() {
		for o := range ch {
			if err := dst.SetOptions(o); err != nil {
				log.Printf("[WARN] failed to apply reloaded options: %v", err)
			}
		}
	}()
	return nil
}

// makeOptions loads selectable values from the options file, defaults if not set
func makeOptions() (listing.Options, error) {
	if opts.Options == "" {
		return listing.DefaultOptions(), nil
	}
	res, err := listing.LoadOptions(opts.Options)
	if err != nil {
		return listing.Options{}, fmt.Errorf("failed to load options: %w", err)
	}
	log.Printf("[INFO] options loaded from %s", opts.Options)
	return res, nil
}

// makeStorage creates the storage backend selected by --storage.type
func makeStorage() (Storage, error) {
	switch opts.Storage.Type {
	case "memory":
		return persistence.NewMemoryStore(), nil
	case "sqlite":
		dbPath := opts.Storage.Path
		if filepath.Ext(dbPath) == "" {
			dbPath = filepath.Join(dbPath, "jobcards.db")
		}
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
		res, err := persistence.NewSQLiteStore(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create sqlite storage: %w", err)
		}
		return res, nil
	case "file", "":
		res, err := persistence.NewFileStore(opts.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to create file storage: %w", err)
		}
		return res, nil
	}
	return nil, fmt.Errorf("unknown storage type %q", opts.Storage.Type)
}

// dumpOptionsSchema writes json schema of the options file
func dumpOptionsSchema(w io.Writer) error {
	data, err := json.MarshalIndent(listing.OptionsSchema(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}
	if _, err := fmt.Fprintln(w, string(data)); err != nil {
		return fmt.Errorf("failed to write schema: %w", err)
	}
	return nil
}

// setupLogs returns the writer for logs, rotated file if filename set and stdout otherwise
func setupLogs() io.Writer {
	if !opts.Log.Enabled || opts.Log.Filename == "" {
		return os.Stdout
	}
	return &lumberjack.Logger{
		Filename:   opts.Log.Filename,
		MaxSize:    opts.Log.MaxSize,
		MaxAge:     opts.Log.MaxAge,
		MaxBackups: opts.Log.MaxBackups,
		Compress:   opts.Log.EnabledCompress,
	}
}

// validateBaseURL normalizes base URL, drops trailing slash, root path means no base URL
func validateBaseURL(baseURL string) string {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if baseURL != "" && !strings.HasPrefix(baseURL, "/") {
		baseURL = "/" + baseURL
	}
	return baseURL
}

func signals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	go func() {
		stacktrace := make([]byte, 8192)
		for sig := range sigChan {
			if sig == syscall.SIGQUIT { // catch SIGQUIT and print stack traces
				length := runtime.Stack(stacktrace, true)
				fmt.Println(string(stacktrace[:length]))
				continue
			}
			log.Printf("[INFO] %s received, shutting down", sig)
			cancel()
		}
	}()
	signal.Notify(sigChan, syscall.SIGQUIT, syscall.SIGINT, syscall.SIGTERM)
}
