package exchange

import (
	"github.com/stretchr/testify/assert"
	"gitlab.com/open-soft/go-futures-bot/src/model"
	"gitlab.com/open-soft/go-futures-bot/src/utils"
	"testing"
)

func newLadder() *Ladder {
	return &Ladder{Formatter: &utils.Formatter{}}
}

func TestAvgPriceEntryPlusDca(t *testing.T) {
	assertion := assert.New(t)
	ladder := newLadder()

	position := model.Position{
		Side:           model.SideLong,
		PricePrecision: 2,
		EntryPrice:     100.00,
		EntryQty:       1.00,
		FilledDcaOrders: []model.FuturesOrder{
			{Price: 90.00, OrigQty: 1.00},
		},
	}

	assertion.Equal(95.00, ladder.AvgPrice(position))
}

func TestAvgPriceRedistributesCutProfit(t *testing.T) {
	assertion := assert.New(t)
	ladder := newLadder()

	// a cut above the average realizes profit, lowering the remaining
	// break-even below the naive weighted average
	position := model.Position{
		Side:           model.SideLong,
		PricePrecision: 2,
		EntryPrice:     100.00,
		EntryQty:       2.00,
		FilledCutOrders: []model.FuturesOrder{
			{Price: 110.00, OrigQty: 1.00},
		},
	}

	assertion.Equal(90.00, ladder.AvgPrice(position))
}

func TestAvgPriceShortMirror(t *testing.T) {
	assertion := assert.New(t)
	ladder := newLadder()

	position := model.Position{
		Side:           model.SideShort,
		PricePrecision: 2,
		EntryPrice:     100.00,
		EntryQty:       2.00,
		FilledCutOrders: []model.FuturesOrder{
			{Price: 90.00, OrigQty: 1.00},
		},
	}

	assertion.Equal(110.00, ladder.AvgPrice(position))
}

func TestAvgPriceFillOrderIndependence(t *testing.T) {
	assertion := assert.New(t)
	ladder := newLadder()

	first := model.Position{
		Side:           model.SideLong,
		PricePrecision: 2,
		EntryPrice:     100.00,
		EntryQty:       1.00,
		FilledDcaOrders: []model.FuturesOrder{
			{Price: 90.00, OrigQty: 1.00},
			{Price: 80.00, OrigQty: 1.00},
		},
	}
	second := first
	second.FilledDcaOrders = []model.FuturesOrder{
		{Price: 80.00, OrigQty: 1.00},
		{Price: 90.00, OrigQty: 1.00},
	}

	assertion.Equal(ladder.AvgPrice(first), ladder.AvgPrice(second))
	assertion.Equal(90.00, ladder.AvgPrice(first))
}

func TestDcaPrice(t *testing.T) {
	assertion := assert.New(t)
	ladder := newLadder()
	config := model.DefaultLadderConfig()

	long := model.Position{Side: model.SideLong, PricePrecision: 2, CurrentPrice: 100.00}
	assertion.Equal(95.00, ladder.DcaPrice(long, config))

	short := model.Position{Side: model.SideShort, PricePrecision: 2, CurrentPrice: 100.00}
	assertion.Equal(105.00, ladder.DcaPrice(short, config))

	// deeper rungs repeat the last configured percentage
	deep := model.Position{Side: model.SideLong, PricePrecision: 2, CurrentPrice: 100.00, DcaCount: 9}
	assertion.Equal(95.00, ladder.DcaPrice(deep, config))
}

func dcaFills(count int) []model.FuturesOrder {
	fills := make([]model.FuturesOrder, count)
	for i := range fills {
		fills[i] = model.FuturesOrder{Price: 95.00, OrigQty: 1.00}
	}
	return fills
}

func TestCutPriceStepTable(t *testing.T) {
	assertion := assert.New(t)
	ladder := newLadder()
	config := model.DefaultLadderConfig()

	position := model.Position{
		Side:           model.SideLong,
		PricePrecision: 1,
		AvgPrice:       100.00,
		CurrentPrice:   100.00,
	}

	// no cut is due before the second DCA fill
	position.FilledDcaOrders = dcaFills(1)
	assertion.Nil(ladder.CutPrice(position, config))

	// two DCA fills allow one cut: halfway to the after-DCA target
	position.FilledDcaOrders = dcaFills(2)
	cutPrice := ladder.CutPrice(position, config)
	assertion.NotNil(cutPrice)
	assertion.Equal(102.5, *cutPrice)

	// a filled cut consumes the allowance
	position.FilledCutOrders = []model.FuturesOrder{{Price: 102.5, OrigQty: 1.00}}
	assertion.Nil(ladder.CutPrice(position, config))

	// a child-DCA fill restores it
	position.FilledChildDcaOrders = []model.FuturesOrder{{Price: 98.00, OrigQty: 1.00}}
	assertion.NotNil(ladder.CutPrice(position, config))
}

func TestCutPriceDeepLadderClamp(t *testing.T) {
	assertion := assert.New(t)
	ladder := newLadder()
	config := model.DefaultLadderConfig()

	position := model.Position{
		Side:            model.SideLong,
		PricePrecision:  2,
		AvgPrice:        100.00,
		CurrentPrice:    100.00,
		FilledDcaOrders: dcaFills(12),
	}

	// beyond the table the allowance stays at six: 5.00 / 7 steps
	cutPrice := ladder.CutPrice(position, config)
	assertion.NotNil(cutPrice)
	assertion.Equal(100.71, *cutPrice)
}

func TestChildDcaPrice(t *testing.T) {
	assertion := assert.New(t)
	ladder := newLadder()

	position := model.Position{
		Side:           model.SideLong,
		PricePrecision: 2,
		CurrentPrice:   100.00,
		DcaPrice:       95.00,
	}

	assertion.Nil(ladder.ChildDcaPrice(position))

	position.FilledCutOrders = []model.FuturesOrder{{Price: 102.00, OrigQty: 1.00}}
	childDcaPrice := ladder.ChildDcaPrice(position)
	assertion.NotNil(childDcaPrice)
	assertion.Equal(97.5, *childDcaPrice)
}

func TestUpToProfitBoundary(t *testing.T) {
	assertion := assert.New(t)
	ladder := newLadder()
	config := model.DefaultLadderConfig()

	position := model.Position{
		Side:           model.SideLong,
		PricePrecision: 2,
		AvgPrice:       100.00,
	}

	position.CurrentPrice = 106.01
	assertion.True(ladder.UpToProfit(&position, config))
	assertion.Equal(106.00, position.ProfitStopPrice)

	position.CurrentPrice = 105.99
	assertion.False(ladder.UpToProfit(&position, config))

	// the trigger itself does not count as crossed
	position.CurrentPrice = 106.00
	assertion.False(ladder.UpToProfit(&position, config))
}

func TestBestQtyMinNotionalRoundUp(t *testing.T) {
	assertion := assert.New(t)
	ladder := newLadder()

	// nearest rounding would produce a zero-notional order
	assertion.Equal(1.00, ladder.BestQty(0.40, 0, 15.00, 6.00))

	// nearest rounding is kept when the notional is sufficient
	assertion.Equal(0.70, ladder.BestQty(0.70, 1, 10.00, 6.00))
}

func TestDcaQtyPendingCompensation(t *testing.T) {
	assertion := assert.New(t)
	ladder := newLadder()
	config := model.DefaultLadderConfig()

	position := model.Position{
		Side:              model.SideLong,
		QuantityPrecision: 1,
		CurrentPrice:      10.00,
		DcaPendingCounter: 2,
	}

	// 7.00 + 2 × 0.50
	assertion.Equal(0.80, ladder.DcaQty(position, config))

	// compensation is capped at one first-rung budget
	position.DcaPendingCounter = 20
	assertion.Equal(1.40, ladder.DcaQty(position, config))
}

func TestEntryQty(t *testing.T) {
	assertion := assert.New(t)
	ladder := newLadder()
	config := model.DefaultLadderConfig()
	precision := model.SymbolPrecision{PricePrecision: 2, QuantityPrecision: 0}

	quantity, err := ladder.EntryQty(10.00, precision, config)
	assertion.NoError(err)
	assertion.Equal(1.00, quantity)

	// lot rounding inflates the notional past the allowed slack
	_, err = ladder.EntryQty(13.00, precision, config)
	assertion.ErrorIs(err, ErrEntryBudgetExceeded)
}

func TestCalcProfit(t *testing.T) {
	assertion := assert.New(t)
	ladder := newLadder()

	position := model.Position{
		Side:       model.SideLong,
		EntryPrice: 100.00,
		EntryQty:   1.00,
	}
	closingOrder := model.FuturesOrder{AvgPrice: 107.00, OrigQty: 1.00}

	assertion.Equal(7.00, ladder.CalcProfit(position, closingOrder))

	short := model.Position{
		Side:       model.SideShort,
		EntryPrice: 100.00,
		EntryQty:   1.00,
	}
	assertion.Equal(-7.00, ladder.CalcProfit(short, closingOrder))
}
