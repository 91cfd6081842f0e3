package app

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aviellagerev/shareterm/internal/account"
	"github.com/aviellagerev/shareterm/internal/api"
	"github.com/aviellagerev/shareterm/internal/config"
	"github.com/aviellagerev/shareterm/internal/history"
	"github.com/aviellagerev/shareterm/internal/hooks"
	"github.com/aviellagerev/shareterm/internal/notify"
	"github.com/aviellagerev/shareterm/internal/reconcile"
	"github.com/aviellagerev/shareterm/internal/session"
	"github.com/aviellagerev/shareterm/internal/sharefile"
	"github.com/aviellagerev/shareterm/internal/stream"
	"github.com/aviellagerev/shareterm/internal/transfer"
)

// App holds the wired-up client: configuration, server client, local
// stores and the change broker. Session-scoped pieces (guard,
// dispatcher, stream) are built after login.
type App struct {
	ConfigPath string
	Config     *config.Config
	Client     *api.Client
	DB         *history.DB
	History    *history.Repo

	Files  *sharefile.Store
	Users  *account.Store
	Broker *notify.Broker
	Hooks  *hooks.Runner

	Guard      *session.Guard
	Dispatcher *transfer.Dispatcher
}

// New builds the client from a config file. The returned cleanup
// releases the database and idle connections.
func New(configPath string) (*App, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	if err := os.MkdirAll(cfg.Paths.Data, 0755); err != nil {
		return nil, nil, fmt.Errorf("create data directory: %w", err)
	}

	client, err := api.NewClient(api.Config{BaseURL: cfg.Server.BaseURL})
	if err != nil {
		return nil, nil, err
	}

	database, err := history.Open(cfg.Paths.Database)
	if err != nil {
		return nil, nil, err
	}

	a := &App{
		ConfigPath: configPath,
		Config:     cfg,
		Client:     client,
		DB:         database,
		History:    history.NewRepo(database.DB),
		Files:      sharefile.NewStore(),
		Users:      account.NewStore(),
		Broker:     notify.NewBroker(),
	}

	if cfg.Hooks.Script != "" {
		runner, err := hooks.Load(cfg.Hooks.Script)
		if err != nil {
			log.Printf("app: hook script disabled: %v", err)
		} else {
			a.Hooks = runner
		}
	}

	cleanup := func() {
		if a.Hooks != nil {
			a.Hooks.Close()
		}
		client.CloseIdleConnections()
		_ = database.Close()
	}

	return a, cleanup, nil
}

// StartSession builds the session-scoped pieces after a successful
// login and starts the event stream. The returned channel delivers the
// stream's terminal error: a send there means the session is no longer
// valid and the caller must log out.
func (a *App) StartSession(ctx context.Context, username string, perm account.Permission, onStatus func(stream.Status)) (<-chan error, error) {
	a.Guard = session.NewGuard(username, perm)
	rec := reconcile.New(a.Files, a.Users, a.Guard)
	a.Dispatcher = transfer.New(transfer.Config{
		Remote:            a.Client,
		Guard:             a.Guard,
		DownloadDir:       a.Config.Paths.Downloads,
		MaxUploadSize:     a.Config.Transfer.MaxUploadSize,
		AllowedExtensions: a.Config.Transfer.AllowedExtensions,
		OnDeleted:         rec.ExpectRemoval,
	})
	sc, err := stream.New(stream.Config{
		Source:         a.Client,
		Apply:          rec.Apply,
		Publish:        a.Broker.Publish,
		OnStatus:       onStatus,
		ReconnectDelay: a.Config.Server.ReconnectDelay,
	})
	if err != nil {
		return nil, err
	}

	if a.Hooks != nil {
		a.Hooks.NotifyRole(perm)
		go a.runHooks(ctx)
	}
	go a.recordStreamChanges(ctx)

	errc := make(chan error, 1)
	go func() {
		err := sc.Run(ctx)
		if ctx.Err() == nil {
			errc <- err
		}
	}()
	return errc, nil
}

// runHooks feeds reconciled changes to the Lua hook script.
func (a *App) runHooks(ctx context.Context) {
	sub := a.Broker.Subscribe("hooks")
	defer a.Broker.Unsubscribe(sub.ID)
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-sub.Ch:
			a.Hooks.Dispatch(c)
		}
	}
}

// recordStreamChanges logs other users' stream activity to the local
// transfer history. The client's own actions are recorded at the call
// site, where the outcome is known.
func (a *App) recordStreamChanges(ctx context.Context) {
	sub := a.Broker.Subscribe("history")
	defer a.Broker.Unsubscribe(sub.ID)
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-sub.Ch:
			var e history.Entry
			switch c.Kind {
			case reconcile.ChangeFileAdded:
				if c.Self || c.Refreshed {
					continue
				}
				e = history.Entry{
					Action: history.ActionReceived, Filename: c.Filename,
					Size: c.File.Size, Actor: c.File.Uploader, Succeeded: true,
				}
			case reconcile.ChangeFileRemoved:
				if c.Self {
					continue
				}
				e = history.Entry{Action: history.ActionRemoved, Filename: c.Filename, Succeeded: true}
			default:
				continue
			}
			if err := a.History.Record(e); err != nil {
				log.Printf("app: history: %v", err)
			}
		}
	}
}
