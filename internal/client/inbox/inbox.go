// Package inbox turns photos dropped into a directory into queued
// captures. An external camera app writes <name>.jpg and, optionally, a
// <name>.json sidecar with the capture metadata; the sidecar should be
// written first. Each enqueued photo gets a <name>.queued marker so a
// restart does not enqueue it again.
package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dmitrijs2005/parcelsync/internal/client/models"
	"github.com/dmitrijs2005/parcelsync/internal/logging"
)

const markerExt = ".queued"

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".heic": true}

var ErrNoCollection = errors.New("no target collection for capture")

type Enqueuer interface {
	Enqueue(ctx context.Context, c models.Capture) (models.Item, error)
}

// Sidecar is the optional metadata file next to a photo.
type Sidecar struct {
	CollectionID   string    `json:"collectionId"`
	Remarks        string    `json:"remarks"`
	RecipientName  string    `json:"recipientName"`
	TrackingNumber string    `json:"trackingNumber"`
	MobileNumber   string    `json:"mobileNumber"`
	CollectedAt    time.Time `json:"collectedAt"`
}

type Watcher struct {
	dir               string
	defaultCollection string
	q                 Enqueuer
	log               logging.Logger

	mu sync.Mutex
}

func New(dir, defaultCollection string, q Enqueuer, log logging.Logger) *Watcher {
	if log == nil {
		log = logging.Nop()
	}
	return &Watcher{dir: dir, defaultCollection: defaultCollection, q: q, log: log.With("module", "inbox")}
}

// Scan enqueues every photo already in the directory that has no marker.
func (w *Watcher) Scan(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return 0, fmt.Errorf("read inbox: %w", err)
	}

	n := 0
	for _, e := range entries {
		if e.IsDir() || !isImage(e.Name()) {
			continue
		}
		ok, err := w.process(ctx, filepath.Join(w.dir, e.Name()))
		if err != nil {
			w.log.Warn(ctx, "skipping inbox file", "file", e.Name(), "error", err)
			continue
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// Run scans once and then follows the directory until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return err
	}

	if _, err := w.Scan(ctx); err != nil {
		return err
	}
	w.log.Info(ctx, "watching inbox", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			path := event.Name
			// a late sidecar can still complete a waiting photo
			if strings.EqualFold(filepath.Ext(path), ".json") {
				img, found := imageFor(path)
				if !found {
					continue
				}
				path = img
			}
			if !isImage(path) {
				continue
			}
			if _, err := w.process(ctx, path); err != nil {
				w.log.Warn(ctx, "inbox file not enqueued", "file", filepath.Base(path), "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error(ctx, "inbox watcher error", "error", err)
		}
	}
}

// process enqueues one photo unless it already carries a marker. It
// reports whether a capture was enqueued.
func (w *Watcher) process(ctx context.Context, path string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	marker := path + markerExt
	if _, err := os.Stat(marker); err == nil {
		return false, nil
	}

	sc, err := readSidecar(path)
	if err != nil {
		return false, err
	}

	capture := models.Capture{
		PayloadRef:         path,
		TargetCollectionID: sc.CollectionID,
		Metadata: models.Metadata{
			Remarks:        sc.Remarks,
			RecipientName:  sc.RecipientName,
			TrackingNumber: sc.TrackingNumber,
			MobileNumber:   sc.MobileNumber,
		},
		CollectedAt: sc.CollectedAt,
	}
	if capture.TargetCollectionID == "" {
		capture.TargetCollectionID = w.defaultCollection
	}
	if capture.TargetCollectionID == "" {
		return false, ErrNoCollection
	}

	item, err := w.q.Enqueue(ctx, capture)
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(marker, []byte(item.ID), 0o600); err != nil {
		w.log.Warn(ctx, "writing inbox marker failed", "file", filepath.Base(path), "error", err)
	}

	w.log.Info(ctx, "photo enqueued from inbox", "file", filepath.Base(path), "id", item.ID)
	return true, nil
}

func readSidecar(imagePath string) (Sidecar, error) {
	var sc Sidecar
	raw, err := os.ReadFile(strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + ".json")
	if errors.Is(err, os.ErrNotExist) {
		return sc, nil
	}
	if err != nil {
		return sc, err
	}
	if err := json.Unmarshal(raw, &sc); err != nil {
		return sc, fmt.Errorf("decode sidecar: %w", err)
	}
	return sc, nil
}

func imageFor(sidecar string) (string, bool) {
	base := strings.TrimSuffix(sidecar, filepath.Ext(sidecar))
	for ext := range imageExts {
		for _, candidate := range []string{base + ext, base + strings.ToUpper(ext)} {
			if _, err := os.Stat(candidate); err == nil {
				return candidate, true
			}
		}
	}
	return "", false
}

func isImage(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}
