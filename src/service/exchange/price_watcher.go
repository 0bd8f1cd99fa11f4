package exchange

import (
	"encoding/json"
	"fmt"
	"gitlab.com/open-soft/go-futures-bot/src/client"
	"gitlab.com/open-soft/go-futures-bot/src/model"
	"strings"
	"sync"
	"time"
)

type PriceWatcherInterface interface {
	GetPrice(symbol string) float64
}

// PriceWatcher holds the latest streamed mark price per symbol. Prices are
// updated by supervised websocket subscriptions running concurrently with
// the reconciliation loop; reads never block and always return the latest
// seen value (0.00 when a symbol has not streamed yet).
type PriceWatcher struct {
	StreamDsn    string
	EventChannel chan []byte

	PriceMutex  sync.RWMutex
	Prices      map[string]float64
	LastEventAt time.Time
}

// Start subscribes to the mark price stream of every symbol and runs the
// decoder. Reconnects are handled inside client.Listen.
func (w *PriceWatcher) Start(symbols []string) {
	go func() {
		for {
			message := <-w.EventChannel

			var event model.MarkPriceStreamEvent
			if err := json.Unmarshal(message, &event); err != nil {
				continue
			}

			if event.Data.Symbol == "" || event.Data.Price == 0.00 {
				continue
			}

			w.SetPrice(event.Data.Symbol, event.Data.Price)
		}
	}()

	for index, streamBatchItem := range client.GetStreamBatch(symbols, []string{"@markPrice@1s"}) {
		client.Listen(fmt.Sprintf(
			"%s/stream?streams=%s",
			w.StreamDsn,
			strings.Join(streamBatchItem, "/"),
		), w.EventChannel, int64(index))
	}
}

func (w *PriceWatcher) SetPrice(symbol string, price float64) {
	w.PriceMutex.Lock()
	if w.Prices == nil {
		w.Prices = make(map[string]float64)
	}
	w.Prices[symbol] = price
	w.LastEventAt = time.Now()
	w.PriceMutex.Unlock()
}

func (w *PriceWatcher) GetPrice(symbol string) float64 {
	w.PriceMutex.RLock()
	price := w.Prices[symbol]
	w.PriceMutex.RUnlock()

	return price
}

// LastEvent is the time of the last streamed update, used by the process
// liveness watchdog.
func (w *PriceWatcher) LastEvent() time.Time {
	w.PriceMutex.RLock()
	lastEventAt := w.LastEventAt
	w.PriceMutex.RUnlock()

	return lastEventAt
}
