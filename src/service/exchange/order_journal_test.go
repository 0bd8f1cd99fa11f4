package exchange

import (
	"fmt"
	"github.com/stretchr/testify/assert"
	"gitlab.com/open-soft/go-futures-bot/src/model"
	"gitlab.com/open-soft/go-futures-bot/src/utils"
	"testing"
)

func TestJournalAttachesSameSymbolChange(t *testing.T) {
	assertion := assert.New(t)
	journal := &OrderJournal{Formatter: &utils.Formatter{}}

	journal.Append(model.OrderRecordTypeEntry, model.FuturesOrder{Symbol: "LTCUSDT", AvgPrice: 100.00, OrigQty: 1.00}, nil)
	journal.Append(model.OrderRecordTypeEntry, model.FuturesOrder{Symbol: "SOLUSDT", AvgPrice: 50.00, OrigQty: 1.00}, nil)
	journal.Append(model.OrderRecordTypeDca, model.FuturesOrder{Symbol: "LTCUSDT", AvgPrice: 95.00, OrigQty: 1.00}, nil)

	records := journal.List()
	assertion.Len(records, 3)

	// entries carry no change
	assertion.Nil(records[0].Change)
	assertion.Nil(records[1].Change)

	// the DCA change is measured against the prior LTCUSDT record, not the
	// interleaved SOLUSDT one
	assertion.NotNil(records[2].Change)
	assertion.Equal(-5.00, *records[2].Change)
}

func TestJournalFlushTruncatesAndClearsDirty(t *testing.T) {
	assertion := assert.New(t)
	journal := &OrderJournal{Formatter: &utils.Formatter{}}

	_, changed := journal.Flush()
	assertion.False(changed)

	for i := 0; i < model.OrderJournalLimit+5; i++ {
		journal.Append(model.OrderRecordTypeEntry, model.FuturesOrder{
			Symbol:   fmt.Sprintf("SYM%dUSDT", i),
			AvgPrice: 10.00,
			OrigQty:  1.00,
		}, nil)
	}

	records, changed := journal.Flush()
	assertion.True(changed)
	assertion.Len(records, model.OrderJournalLimit)

	// the oldest five records are gone
	assertion.Equal("SYM5USDT", records[0].Order.Symbol)

	_, changed = journal.Flush()
	assertion.False(changed)
}

func TestJournalRestore(t *testing.T) {
	assertion := assert.New(t)
	journal := &OrderJournal{Formatter: &utils.Formatter{}}

	journal.Restore([]model.OrderRecord{
		{Type: model.OrderRecordTypeEntry, Order: model.FuturesOrder{Symbol: "LTCUSDT"}},
	})

	assertion.Len(journal.List(), 1)

	_, changed := journal.Flush()
	assertion.False(changed)
}
