package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/loans/app/services/loans/handlers"
	"github.com/ardanlabs/loans/app/services/loans/handlers/pages"
	"github.com/ardanlabs/loans/business/core/blockwatch"
	"github.com/ardanlabs/loans/business/core/dispatch"
	"github.com/ardanlabs/loans/business/core/identity"
	"github.com/ardanlabs/loans/business/core/portal"
	"github.com/ardanlabs/loans/business/core/session"
	"github.com/ardanlabs/loans/business/core/subscription"
	"github.com/ardanlabs/loans/business/sys/config"
	"github.com/ardanlabs/loans/foundation/chain"
	"github.com/ardanlabs/loans/foundation/events"
	"github.com/ardanlabs/loans/foundation/inbox"
	"github.com/ardanlabs/loans/foundation/logger"
	"github.com/ardanlabs/loans/foundation/wallet"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("LOANS")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			APIHost         string        `conf:"default:0.0.0.0:8080"`
			CorsOrigin      string        `conf:"default:*"`
		}
		App struct {
			ProjectID   string `conf:"required"`
			AppDomain   string `conf:"required"`
			AppOrigin   string `conf:"default:http://localhost:8080"`
			ExplorerURL string `conf:"default:https://etherscan.io"`
		}
		Inbox struct {
			NotifyURL    string        `conf:"default:https://notify.walletconnect.com"`
			KeysURL      string        `conf:"default:https://keys.walletconnect.com"`
			NotifySecret string        `conf:"mask"`
			Timeout      time.Duration `conf:"default:10s"`
			RatePerSec   float64       `conf:"default:2"`
			Burst        int           `conf:"default:4"`
			JWTTTL       time.Duration `conf:"default:1h"`
		}
		Chain struct {
			RPCURL string `conf:"default:https://cloudflare-eth.com"`
		}
		Wallet struct {
			Folder string `conf:"default:zwallet/keys/"`
		}
		Identity struct {
			MaxAttempts int           `conf:"default:3"`
			BackoffBase time.Duration `conf:"default:1s"`
			BackoffMax  time.Duration `conf:"default:30s"`
		}
		Blocks struct {
			Interval   time.Duration `conf:"default:12s"`
			Guarantee  string        `conf:"default:at-least-once"`
			Overlap    string        `conf:"default:skip"`
			LedgerSize int           `conf:"default:256"`
			Enabled    bool          `conf:"default:true"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "copyright information here",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "LOANS"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	app := config.App{
		ProjectID:      cfg.App.ProjectID,
		AppDomain:      cfg.App.AppDomain,
		AppOrigin:      cfg.App.AppOrigin,
		ExplorerURL:    cfg.App.ExplorerURL,
		ChainNamespace: session.Namespace,
		ChainID:        session.MainnetID,
	}
	if err := app.Validate(); err != nil {
		return err
	}

	guarantee, err := blockwatch.ParseGuarantee(cfg.Blocks.Guarantee)
	if err != nil {
		return fmt.Errorf("parsing blocks guarantee: %w", err)
	}

	overlap, err := blockwatch.ParseOverlap(cfg.Blocks.Overlap)
	if err != nil {
		return fmt.Errorf("parsing blocks overlap: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Wallet Support

	// The keystore holds the wallets that can be connected. The names come
	// from the file names in the wallet folder.
	ks, err := wallet.NewKeystore(cfg.Wallet.Folder)
	if err != nil {
		return fmt.Errorf("unable to load wallet keystore: %w", err)
	}

	// Logging the wallets for documentation in the logs.
	for name, address := range ks.Copy() {
		log.Infow("startup", "status", "keystore", "name", name, "address", address)
	}

	// =========================================================================
	// Portal Support

	// The core packages accept a function of this signature to allow the
	// application to log. These raw messages are also sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Inbox.Timeout)
	defer cancel()

	chainClient, err := chain.Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return fmt.Errorf("connecting to chain node: %w", err)
	}
	defer chainClient.Close()

	inboxClient, err := inbox.NewClient(inbox.Config{
		ProjectID:    app.ProjectID,
		AppDomain:    app.AppDomain,
		NotifyURL:    cfg.Inbox.NotifyURL,
		KeysURL:      cfg.Inbox.KeysURL,
		NotifySecret: cfg.Inbox.NotifySecret,
		Timeout:      cfg.Inbox.Timeout,
		RatePerSec:   cfg.Inbox.RatePerSec,
		Burst:        cfg.Inbox.Burst,
		JWTTTL:       cfg.Inbox.JWTTTL,
	})
	if err != nil {
		return fmt.Errorf("constructing inbox client: %w", err)
	}

	registrar, err := identity.New(identity.Config{
		Service:     inboxClient,
		MaxAttempts: cfg.Identity.MaxAttempts,
		Backoff: identity.Backoff{
			Base: cfg.Identity.BackoffBase,
			Max:  cfg.Identity.BackoffMax,
		},
		EvHandler: identity.EventHandler(ev),
	})
	if err != nil {
		return fmt.Errorf("constructing registrar: %w", err)
	}

	// The portal composes the session, identity, subscription and block
	// poller and reacts to the connected wallet.
	prtl, err := portal.New(portal.Config{
		App:           &app,
		Session:       session.New(app.ChainNamespace, app.ChainID),
		Registrar:     registrar,
		Subscriptions: subscription.New(inboxClient, subscription.EventHandler(ev)),
		Dispatcher:    dispatch.New(&app, inboxClient, evts, dispatch.EventHandler(ev)),
		Reader:        chainClient,
		Notifier:      evts,
		Blocks: portal.BlocksConfig{
			Interval:   cfg.Blocks.Interval,
			Guarantee:  guarantee,
			Overlap:    overlap,
			LedgerSize: cfg.Blocks.LedgerSize,
			Enabled:    cfg.Blocks.Enabled,
		},
		EvHandler: portal.EventHandler(ev),
	})
	if err != nil {
		return fmt.Errorf("constructing portal: %w", err)
	}
	defer prtl.Shutdown()

	prtl.Start()

	site, err := pages.New(app.ProjectID)
	if err != nil {
		return fmt.Errorf("loading pages: %w", err)
	}

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log, chainClient)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start API Service

	log.Infow("startup", "status", "initializing V1 API support")

	// Construct the mux for the API calls.
	apiMux := handlers.APIMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		Origin:   cfg.Web.CorsOrigin,
		Portal:   prtl,
		Keystore: ks,
		Evts:     evts,
		Pages:    site,
	})

	// Construct a server to service the requests against the mux.
	api := http.Server{
		Addr:         cfg.Web.APIHost,
		Handler:      apiMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "api router started", "host", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Stop the poller and any outstanding registration.
		log.Infow("shutdown", "status", "shutdown portal")
		prtl.Shutdown()

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		// Asking listener to shut down and shed load.
		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop api service gracefully: %w", err)
		}
	}

	return nil
}
