package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dmitrijs2005/parcelsync/internal/client/api"
	"github.com/dmitrijs2005/parcelsync/internal/client/connectivity"
	"github.com/dmitrijs2005/parcelsync/internal/client/models"
	"github.com/dmitrijs2005/parcelsync/internal/client/queue"
	"github.com/dmitrijs2005/parcelsync/internal/client/services"
	"github.com/dmitrijs2005/parcelsync/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// QueueAPI is the queue surface the commands use.
type QueueAPI interface {
	Enqueue(ctx context.Context, c models.Capture) (models.Item, error)
	Retry(ctx context.Context, id string) error
	List() []models.Item
	Stats() queue.Stats
	SetOnline(online bool)
}

type App struct {
	auth    services.AuthService
	queue   QueueAPI
	monitor *connectivity.Monitor
	// background runs alongside the REPL until ctx is cancelled.
	background []func(ctx context.Context)
	closers    []func()

	reader *bufio.Reader
	out    io.Writer
	log    logging.Logger

	mu            sync.Mutex
	mode          Mode
	lastRequestID string
}

func newApp(auth services.AuthService, q QueueAPI, out io.Writer, log logging.Logger) *App {
	if log == nil {
		log = logging.Nop()
	}
	return &App{
		auth:   auth,
		queue:  q,
		reader: bufio.NewReader(os.Stdin),
		out:    out,
		log:    log,
		mode:   ModeOffline,
	}
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.mu.Unlock()

	if changed {
		fmt.Fprintf(a.out, "Switched to %s mode\n", mode)
	}
}

func (a *App) getStatus() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return fmt.Sprintf("(%s)", a.mode)
}

func (a *App) isLoggedIn(ctx context.Context) bool {
	ok, err := a.auth.LoggedIn(ctx)
	return err == nil && ok
}

// Delivered implements queue.Observer.
func (a *App) Delivered(item models.Item, record models.Record) {
	fmt.Fprintln(a.out, "Queued parcel synced")
	a.log.Debug(context.Background(), "record created", "item", item.ID, "record", record.ID)
}

// Failed implements queue.Observer.
func (a *App) Failed(item models.Item, err error) {
	a.log.Warn(context.Background(), "parcel sync failed",
		"item", item.ID, "attempts", item.Attempts, "reason", api.DisplayMessage(err))
}

// Unauthorized implements session.Observer.
func (a *App) Unauthorized() {
	fmt.Fprintln(a.out, "Session expired, please log in again")
}

// RecordRequestID implements api.RequestIDRecorder.
func (a *App) RecordRequestID(id string) {
	a.mu.Lock()
	a.lastRequestID = id
	a.mu.Unlock()
}

// watchConnectivity mirrors monitor states into the queue and the prompt.
func (a *App) watchConnectivity(ctx context.Context, states <-chan connectivity.State) {
	for {
		select {
		case s, ok := <-states:
			if !ok {
				return
			}
			online := s.Online()
			a.queue.SetOnline(online)
			if online {
				a.setMode(ModeOnline)
			} else {
				a.setMode(ModeOffline)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Run starts background workers and the REPL. It blocks until the user
// exits or stdin is closed, then stops the workers and releases resources.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	if a.monitor != nil {
		states := a.monitor.Subscribe()
		wg.Add(2)
		go func() { defer wg.Done(); a.monitor.Run(ctx) }()
		go func() { defer wg.Done(); a.watchConnectivity(ctx, states) }()
	}
	for _, fn := range a.background {
		wg.Add(1)
		go func(fn func(context.Context)) { defer wg.Done(); fn(ctx) }(fn)
	}

	fmt.Fprintln(a.out, "Welcome to parcelsync (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(os.Stdin))

	cancel()
	wg.Wait()
	a.Close()
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
