package queue

import (
	"context"

	"github.com/dmitrijs2005/parcelsync/internal/client/models"
)

// Deliverer performs one full delivery attempt for an item.
type Deliverer interface {
	Deliver(ctx context.Context, item models.Item) (models.Record, error)
}

type DelivererFunc func(ctx context.Context, item models.Item) (models.Record, error)

func (f DelivererFunc) Deliver(ctx context.Context, item models.Item) (models.Record, error) {
	return f(ctx, item)
}

// Observer hears about attempt outcomes. Delivered is called only after the
// removal has been persisted; if that write fails the call waits for the
// next successful one, which may run on another goroutine. Calls must not
// block.
type Observer interface {
	Delivered(item models.Item, record models.Record)
	Failed(item models.Item, err error)
}

type nopObserver struct{}

func (nopObserver) Delivered(models.Item, models.Record) {}
func (nopObserver) Failed(models.Item, error)            {}
