package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/parcelsync/internal/client/api"
	"github.com/dmitrijs2005/parcelsync/internal/client/config"
	"github.com/dmitrijs2005/parcelsync/internal/client/connectivity"
	"github.com/dmitrijs2005/parcelsync/internal/client/inbox"
	"github.com/dmitrijs2005/parcelsync/internal/client/queue"
	"github.com/dmitrijs2005/parcelsync/internal/client/services"
	"github.com/dmitrijs2005/parcelsync/internal/client/session"
	"github.com/dmitrijs2005/parcelsync/internal/client/store"
	"github.com/dmitrijs2005/parcelsync/internal/logging"
)

// NewApp builds the client from configuration: database, storage tiers,
// transport, session, queue, connectivity monitor and the optional inbox.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	db, err := store.InitDatabase(ctx, c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	a := newApp(nil, nil, os.Stdout, log)
	a.closers = append(a.closers, func() { _ = db.Close() })

	plain := store.NewSQLiteStore(db)

	var secure store.Store
	secure, err = store.NewSecureStore(ctx, db, plain, c.SecurePassphrase)
	if errors.Is(err, store.ErrEmptyPassphrase) {
		a.log.Warn(ctx, "no secure storage passphrase configured, tokens will not survive a restart")
		secure = store.NewMemoryStore()
	} else if err != nil {
		a.Close()
		return nil, fmt.Errorf("open secure store: %w", err)
	}

	client := api.New(c.ServerBaseURL,
		api.WithTimeout(c.RequestTimeout),
		api.WithLogger(a.log),
		api.WithRequestIDRecorder(a),
	)

	sess := session.New(plain, secure, client, a, a.log)
	client.SetAuthenticator(sess)

	uploader := services.NewUploadService(client, services.OpenFile, a.log)
	q := queue.New(plain, uploader, queue.WithObserver(a), queue.WithLogger(a.log))
	if err := q.Load(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("load queue: %w", err)
	}
	a.closers = append(a.closers, q.Close)

	a.queue = q
	a.auth = services.NewAuthService(client, sess, q)

	var reach connectivity.Prober = connectivity.NewHTTPProber(client, c.RequestTimeout)
	if c.HealthGRPCAddr != "" {
		gp, err := connectivity.NewGRPCHealthProber(c.HealthGRPCAddr, "", c.RequestTimeout)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("grpc health prober: %w", err)
		}
		a.closers = append(a.closers, func() { _ = gp.Close() })
		reach = gp
	}
	prober := connectivity.NewCombinedProber(connectivity.NewLinkProber(), reach)
	a.monitor = connectivity.NewMonitor(prober, c.OnlineCheckInterval, a.log)

	if c.InboxDir != "" {
		w := inbox.New(c.InboxDir, c.DefaultCollection, q, a.log)
		a.background = append(a.background, func(ctx context.Context) {
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.log.Error(ctx, "inbox watcher stopped", "error", err)
			}
		})
	}

	return a, nil
}
