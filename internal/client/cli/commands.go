package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/parcelsync/internal/client/api"
	"github.com/dmitrijs2005/parcelsync/internal/client/models"
)

var (
	errEnqueueUsage = errors.New("usage: enqueue <path> <collectionId> [remarks=.. recipient=.. tracking=.. mobile=..]")
	errRetryUsage   = errors.New("usage: retry <id>")
)

// getSimpleText and getPassword are test seams for interactive input.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login prompts for credentials and starts a session. Login needs the
// backend; a network failure is reported and the queue keeps its items.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer wipe(password)

	if err := a.auth.Login(ctx, email, string(password)); err != nil {
		if api.IsKind(err, api.KindNetworkUnreachable) {
			fmt.Fprintln(a.out, "Server unavailable, try again when online")
			return nil
		}
		fmt.Fprintf(a.out, "Login unsuccessful: %s\n", api.DisplayMessage(err))
		return nil
	}

	fmt.Fprintln(a.out, "Login successful")
	return nil
}

// Logout drops the stored tokens. Queued parcels are kept.
func (a *App) Logout(ctx context.Context) error {
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

// Enqueue adds a local photo to the upload queue. Works offline.
func (a *App) Enqueue(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errEnqueueUsage
	}

	path, collection := args[0], args[1]
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("photo %s: %w", path, err)
	}

	md, err := parseMetadata(args[2:])
	if err != nil {
		return err
	}

	item, err := a.queue.Enqueue(ctx, models.Capture{
		PayloadRef:         path,
		TargetCollectionID: collection,
		Metadata:           md,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Queued %s\n", item.ID)
	return nil
}

func parseMetadata(pairs []string) (models.Metadata, error) {
	var md models.Metadata
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return md, fmt.Errorf("metadata %q: expected name=value", p)
		}
		switch k {
		case "remarks":
			md.Remarks = v
		case "recipient":
			md.RecipientName = v
		case "tracking":
			md.TrackingNumber = v
		case "mobile":
			md.MobileNumber = v
		default:
			return md, fmt.Errorf("unknown metadata field %q", k)
		}
	}
	return md, nil
}

// List prints the queue in insertion order.
func (a *App) List(ctx context.Context) error {
	items := a.queue.List()
	if len(items) == 0 {
		fmt.Fprintln(a.out, "Queue is empty")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tATTEMPTS\tCOLLECTION\tPHOTO\tLAST ERROR")
	for _, it := range items {
		lastErr := ""
		if it.LastError != nil {
			lastErr = *it.LastError
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			it.ID, it.Status, it.Attempts, it.TargetCollectionID, it.PayloadRef, lastErr)
	}
	return tw.Flush()
}

// Retry puts an item back into the queued state and wakes the queue.
func (a *App) Retry(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errRetryUsage
	}
	if err := a.queue.Retry(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Retry requested for %s\n", args[0])
	return nil
}

// Status prints connectivity, session and queue counters.
func (a *App) Status(ctx context.Context) error {
	s := a.queue.Stats()

	a.mu.Lock()
	mode, reqID := a.mode, a.lastRequestID
	a.mu.Unlock()

	session := "logged out"
	if a.isLoggedIn(ctx) {
		session = "logged in"
	}

	fmt.Fprintf(a.out, "Mode: %s\nSession: %s\nQueued: %d  Uploading: %d  Failed: %d\n",
		mode, session, s.Queued, s.Uploading, s.Failed)
	if reqID != "" {
		fmt.Fprintf(a.out, "Last request id: %s\n", reqID)
	}
	return nil
}
