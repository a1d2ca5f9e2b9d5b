package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/umputun/themer/app/server"
	"github.com/umputun/themer/app/store"
)

var opts struct {
	DB string `short:"d" long:"db" env:"THEMER_DB" default:"themer.db" description:"database URL (sqlite file or postgres://...)"`

	Server struct {
		Address         string        `long:"address" env:"ADDRESS" default:":8585" description:"server listen address"`
		ReadTimeout     time.Duration `long:"read-timeout" env:"READ_TIMEOUT" default:"5s" description:"read timeout"`
		WriteTimeout    time.Duration `long:"write-timeout" env:"WRITE_TIMEOUT" default:"0s" description:"write timeout, 0 keeps websockets open"`
		IdleTimeout     time.Duration `long:"idle-timeout" env:"IDLE_TIMEOUT" default:"30s" description:"keep-alive idle timeout"`
		ShutdownTimeout time.Duration `long:"shutdown-timeout" env:"SHUTDOWN_TIMEOUT" default:"5s" description:"graceful shutdown timeout"`
		BaseURL         string        `long:"base-url" env:"BASE_URL" description:"base URL path for reverse proxy (e.g. /themer)"`
		StoreTimeout    time.Duration `long:"store-timeout" env:"STORE_TIMEOUT" default:"5s" description:"timeout of a single theme load or save"`
		EventQueue      int           `long:"event-queue" env:"EVENT_QUEUE" default:"256" description:"event loop queue size"`
		BodyLimit       int64         `long:"body-limit" env:"BODY_LIMIT" default:"65536" description:"max request body size in bytes"`
		RPS             int64         `long:"rps" env:"RPS" default:"1000" description:"max requests per second"`
	} `group:"server" namespace:"server" env-namespace:"THEMER_SERVER"`

	Session struct {
		TTL             time.Duration `long:"ttl" env:"TTL" default:"30m" description:"idle page session lifetime"`
		CleanupInterval time.Duration `long:"cleanup-interval" env:"CLEANUP_INTERVAL" default:"1m" description:"idle page cleanup interval"`
	} `group:"session" namespace:"session" env-namespace:"THEMER_SESSION"`

	Cache struct {
		MaxKeys int `long:"max-keys" env:"MAX_KEYS" default:"1000" description:"max cached theme choices, 0 disables cache"`
	} `group:"cache" namespace:"cache" env-namespace:"THEMER_CACHE"`

	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `long:"version" description:"show version and exit"`
}

var revision = "unknown"

func main() {
	fmt.Printf("themer %s\n", revision)

	p := flags.NewParser(&opts, flags.PassDoubleDash|flags.HelpFlag)
	if _, err := p.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			p.WriteHelp(os.Stderr)
			os.Exit(2)
		}
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}

	if opts.Version {
		os.Exit(0)
	}

	setupLogs()

	defer func() {
		if x := recover(); x != nil {
			log.Printf("[WARN] run time panic:\n%v", x)
			panic(x)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	signals(cancel)

	if err := run(ctx); err != nil {
		log.Printf("[ERROR] failed: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log.Printf("[INFO] starting themer server on %s", opts.Server.Address)

	kvStore, err := store.New(opts.DB)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}

	var st store.Interface = kvStore
	if opts.Cache.MaxKeys > 0 {
		cached, cerr := store.NewCached(kvStore, opts.Cache.MaxKeys)
		if cerr != nil {
			_ = kvStore.Close()
			return fmt.Errorf("failed to initialize cache: %w", cerr)
		}
		st = cached
	}
	defer st.Close()

	srv, err := server.New(st, serverConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// serverConfig maps command line options to the server configuration.
func serverConfig() server.Config {
	return server.Config{
		Address:         opts.Server.Address,
		ReadTimeout:     opts.Server.ReadTimeout,
		WriteTimeout:    opts.Server.WriteTimeout,
		IdleTimeout:     opts.Server.IdleTimeout,
		ShutdownTimeout: opts.Server.ShutdownTimeout,
		Version:         revision,
		BaseURL:         opts.Server.BaseURL,
		SessionTTL:      opts.Session.TTL,
		CleanupInterval: opts.Session.CleanupInterval,
		StoreTimeout:    opts.Server.StoreTimeout,
		EventQueue:      opts.Server.EventQueue,
		BodySizeLimit:   opts.Server.BodyLimit,
		RequestsPerSec:  opts.Server.RPS,
	}
}

func setupLogs() io.Writer {
	log.Setup(log.Msec)
	if opts.Debug {
		log.Setup(log.Debug, log.CallerFunc, log.CallerPkg, log.CallerFile)
	}
	return os.Stdout
}

func signals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	go func() {
		stacktrace := make([]byte, 8192)
		for sig := range sigChan {
			switch sig {
			case syscall.SIGQUIT:
				length := runtime.Stack(stacktrace, true)
				fmt.Println(string(stacktrace[:length]))
			case syscall.SIGTERM, syscall.SIGINT:
				cancel()
			}
		}
	}()
	signal.Notify(sigChan, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
}
