package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/handiism/halftunes/internal/audio"
	"github.com/handiism/halftunes/internal/config"
	"github.com/handiism/halftunes/internal/download"
	apphttp "github.com/handiism/halftunes/internal/http"
	ioutils "github.com/handiism/halftunes/internal/io"
	"github.com/handiism/halftunes/internal/logging"
	"github.com/handiism/halftunes/internal/store"
	"github.com/handiism/halftunes/internal/transfer"
	"github.com/rs/zerolog"
)

// App wires the download core to its collaborators: one transfer engine,
// one resolver and one manager for the whole process.
type App struct {
	Settings *config.Settings
	Manager  *download.Manager
	Resolver *store.Resolver
	Finisher *audio.Finisher
	Client   *apphttp.Client

	engine *transfer.HTTPEngine
	cancel context.CancelFunc

	closeOnce sync.Once
	log       zerolog.Logger
}

// New builds the application from settings. onEvent receives every
// download event on the manager goroutine. Start must be called before
// issuing intents.
func New(settings *config.Settings, onEvent func(download.Event)) (*App, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	client := apphttp.NewClient(settings.HTTPConfig())
	transferClient := apphttp.NewClient(settings.TransferHTTPConfig())

	engine, err := transfer.NewHTTPEngine(transfer.Config{
		HTTPClient:       transferClient.Standard(),
		Headers:          map[string]string{"User-Agent": transferClient.UserAgent()},
		TempDir:          settings.TempPath,
		ProgressInterval: settings.ProgressInterval(),
	})
	if err != nil {
		return nil, err
	}

	resolver := store.NewResolver(settings.DownloadsPath)
	return &App{
		Settings: settings,
		Manager:  download.NewManager(engine, resolver, onEvent),
		Resolver: resolver,
		Finisher: audio.NewFinisher(client, ioutils.NewImageService(), settings.FinishConfig()),
		Client:   client,
		engine:   engine,
		log:      logging.Get("app"),
	}, nil
}

// Start runs the manager loop until Close or ctx is done.
func (a *App) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	go func() {
		if err := a.Manager.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error().Err(err).Msg("Download manager stopped")
		}
	}()
	a.log.Debug().Str("downloads", a.Resolver.Root()).Str("temp", a.engine.TempDir()).Msg("Started")
}

// Close stops the manager and shuts the engine down, discarding in-flight
// and paused transfers.
func (a *App) Close(ctx context.Context) error {
	var err error
	a.closeOnce.Do(func() {
		if a.cancel != nil {
			a.cancel()
			select {
			case <-a.Manager.Done():
			case <-ctx.Done():
			}
		}
		err = a.engine.Shutdown(ctx)
	})
	return err
}
