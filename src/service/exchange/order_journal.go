package exchange

import (
	"gitlab.com/open-soft/go-futures-bot/src/model"
	"gitlab.com/open-soft/go-futures-bot/src/utils"
	"sync"
)

type OrderJournalInterface interface {
	Append(recordType string, order model.FuturesOrder, profit *float64)
}

// OrderJournal is the append-only order audit log, shared by every
// position goroutine and the admission controller.
type OrderJournal struct {
	Formatter *utils.Formatter

	Mutex   sync.Mutex
	Records []model.OrderRecord
	Dirty   bool
}

// Append records an order. For every record except entries, the percent
// change from the prior record of the same symbol is attached.
func (j *OrderJournal) Append(recordType string, order model.FuturesOrder, profit *float64) {
	j.Mutex.Lock()
	defer j.Mutex.Unlock()

	var change *float64

	if recordType != model.OrderRecordTypeEntry {
		for i := len(j.Records) - 1; i >= 0; i-- {
			if j.Records[i].Order.Symbol != order.Symbol {
				continue
			}

			priorPrice := j.Records[i].Order.JournalPrice()
			if priorPrice > 0 {
				value := j.Formatter.PercentChange(order.JournalPrice(), priorPrice)
				change = &value
			}

			break
		}
	}

	j.Records = append(j.Records, model.OrderRecord{
		Type:   recordType,
		Order:  order,
		Change: change,
		Profit: profit,
	})
	j.Dirty = true
}

func (j *OrderJournal) Restore(records []model.OrderRecord) {
	j.Mutex.Lock()
	j.Records = records
	j.Dirty = false
	j.Mutex.Unlock()
}

// Flush truncates the journal to its cap and returns a copy for
// persistence, clearing the dirty flag. The second value reports whether
// anything changed since the last flush.
func (j *OrderJournal) Flush() ([]model.OrderRecord, bool) {
	j.Mutex.Lock()
	defer j.Mutex.Unlock()

	if !j.Dirty {
		return nil, false
	}

	if len(j.Records) > model.OrderJournalLimit {
		j.Records = j.Records[len(j.Records)-model.OrderJournalLimit:]
	}

	records := make([]model.OrderRecord, len(j.Records))
	copy(records, j.Records)
	j.Dirty = false

	return records, true
}

// List returns a copy of the journal for the control surface.
func (j *OrderJournal) List() []model.OrderRecord {
	j.Mutex.Lock()
	defer j.Mutex.Unlock()

	records := make([]model.OrderRecord, len(j.Records))
	copy(records, j.Records)

	return records
}
