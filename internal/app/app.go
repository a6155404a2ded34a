// Package app encapsulates server construction and lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"pixchat/pkg/assets"
	"pixchat/pkg/chat"
	"pixchat/pkg/config"
	"pixchat/pkg/fanout"
	"pixchat/pkg/logger"
	"pixchat/pkg/peers"
	"pixchat/pkg/realtime"
	"pixchat/pkg/store"
)

// Options carries the resolved startup parameters.
type Options struct {
	Config    *config.Config
	Addr      string
	DBPath    string
	Version   string
	Commit    string
	BuildDate string
}

// App owns the server components and their lifecycle.
type App struct {
	opts Options

	st      *store.Store
	svc     *chat.Service
	hub     *realtime.Hub
	sink    *fanout.Sink
	uploads *assets.Uploader

	srv *http.Server
}

// New constructs every component but starts nothing; call Run to serve.
func New(opts Options) (*App, error) {
	_ = godotenv.Load(".env")
	cfg := opts.Config

	// runtime keys for the signature middleware
	runtimeCfg := &config.RuntimeConfig{BackendKeys: map[string]struct{}{}, SigningKeys: map[string]struct{}{}}
	for _, k := range cfg.Security.APIKeys.Backend {
		runtimeCfg.BackendKeys[k] = struct{}{}
		runtimeCfg.SigningKeys[k] = struct{}{}
	}
	config.SetRuntime(runtimeCfg)

	st, err := store.Open(opts.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", opts.DBPath, err)
	}

	a := &App{opts: opts, st: st}

	// peer service clients; unset URLs leave the collaborator nil and the
	// service degrades per its contract
	var friends chat.FriendChecker
	var posts chat.PostDirectory
	timeout := cfg.Peers.Timeout.Duration()
	if cfg.Peers.FriendshipURL != "" {
		friends = peers.NewFriendshipClient(peers.NewClient(cfg.Peers.FriendshipURL, cfg.Peers.APIKey, timeout))
	}
	if cfg.Peers.PostsURL != "" {
		posts = peers.NewPostsClient(peers.NewClient(cfg.Peers.PostsURL, cfg.Peers.APIKey, timeout))
	}

	var notify chat.NotificationSink
	if cfg.Peers.NotifyURL != "" {
		queue := fanout.NewQueue(cfg.Fanout.QueueCapacity)
		fanout.SetMaxPooledBuffer(int(cfg.Fanout.MaxPooledBufferBytes.Int64()))
		deliverer := peers.NewNotifyClient(peers.NewClient(cfg.Peers.NotifyURL, cfg.Peers.APIKey, timeout))
		a.sink = fanout.NewSink(queue, deliverer, cfg.Fanout.DrainPollInterval.Duration())
		notify = a.sink
	}

	a.svc = chat.NewService(st, friends, posts, notify, nil)
	a.hub = realtime.NewHub(a.svc, cfg.Security.CORS.AllowedOrigins)
	a.svc.SetEventPublisher(a.hub)

	if cfg.Assets.Bucket != "" {
		up, aerr := assets.New(context.Background(), cfg.Assets.Bucket, cfg.Assets.Region, cfg.Assets.Prefix, cfg.Assets.URLTTL.Duration())
		if aerr != nil {
			return nil, fmt.Errorf("assets init: %w", aerr)
		}
		a.uploads = up
	}

	return a, nil
}

// Run starts the fanout workers and the HTTP server, and blocks until ctx
// is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.sink != nil {
		a.sink.Start(a.opts.Config.Fanout.Workers)
	}

	logger.Info("server_starting",
		zap.String("addr", a.opts.Addr),
		zap.String("db", a.opts.DBPath),
		zap.String("version", a.opts.Version))

	errCh := a.startHTTP()

	select {
	case <-ctx.Done():
		a.shutdown()
		return nil
	case err := <-errCh:
		a.shutdown()
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (a *App) shutdown() {
	if a.srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = a.srv.Shutdown(sctx)
	}
	if a.sink != nil {
		a.sink.Stop()
	}
	if err := a.st.Close(); err != nil {
		logger.Error("store_close_failed", zap.Error(err))
	}
	logger.Info("server_stopped")
}
