package exchange

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gitlab.com/open-soft/go-futures-bot/src/model"
	"gitlab.com/open-soft/go-futures-bot/src/utils"
	"testing"
	"time"
)

func newPositionManager(binance *FuturesAPIMock, priceWatcher *PriceWatcherMock, callbackManager *CallbackManagerMock) (*PositionManager, *OrderJournal) {
	formatter := &utils.Formatter{}
	journal := &OrderJournal{Formatter: formatter}

	manager := &PositionManager{
		Binance:         binance,
		PriceWatcher:    priceWatcher,
		Ladder:          &Ladder{Formatter: formatter},
		Journal:         journal,
		CallbackManager: callbackManager,
		ManualControl:   &ManualControl{},
		CurrentBot:      &model.Bot{Id: 1, BotUuid: "test-bot"},
		Formatter:       formatter,
	}

	return manager, journal
}

func TestLongDcaPlacementOnStoredTriggerCross(t *testing.T) {
	assertion := assert.New(t)

	binance := new(FuturesAPIMock)
	priceWatcher := new(PriceWatcherMock)
	callbackManager := new(CallbackManagerMock)
	manager, _ := newPositionManager(binance, priceWatcher, callbackManager)

	position := model.Position{
		Id:                "pos-3",
		Symbol:            "LTCUSDT",
		Side:              model.SideLong,
		Status:            model.StatusStart,
		PricePrecision:    2,
		QuantityPrecision: 1,
		EntryPrice:        100.00,
		EntryQty:          0.10,
		AvgPrice:          100.00,
		DcaPrice:          95.00,
		DcaPriceFixed:     95.00,
		CreatedAt:         time.Now().UnixMilli(),
	}

	// price fell past the stored trigger's 1% buffer (95 × 0.99 = 94.05)
	priceWatcher.On("GetPrice", "LTCUSDT").Return(93.00)
	binance.On("CreateStopOrder", "LTCUSDT", "BUY", 0.10, 95.00, false).Return(
		model.FuturesOrder{OrderId: 21, Symbol: "LTCUSDT", Status: model.OrderStatusNew, StopPrice: 95.00}, nil,
	)

	advanced, err := manager.Advance(position, model.PositionRisk{Symbol: "LTCUSDT", PositionAmt: 0.10, MarkPrice: 93.00}, model.DefaultLadderConfig())

	assertion.NoError(err)
	assertion.NotNil(advanced)
	assertion.NotNil(advanced.DcaOrder)
	assertion.Equal(int64(21), advanced.DcaOrder.OrderId)
	assertion.Equal(95.00, advanced.DcaPrice)
	assertion.Equal(95.00, advanced.DcaPriceFixed)
	binance.AssertExpectations(t)
}

func TestLongDcaNotPlacedBeforeBufferCross(t *testing.T) {
	assertion := assert.New(t)

	binance := new(FuturesAPIMock)
	priceWatcher := new(PriceWatcherMock)
	callbackManager := new(CallbackManagerMock)
	manager, _ := newPositionManager(binance, priceWatcher, callbackManager)

	position := model.Position{
		Symbol:            "LTCUSDT",
		Side:              model.SideLong,
		Status:            model.StatusStart,
		PricePrecision:    2,
		QuantityPrecision: 1,
		EntryPrice:        100.00,
		EntryQty:          0.10,
		AvgPrice:          100.00,
		DcaPrice:          95.00,
		DcaPriceFixed:     95.00,
		CreatedAt:         time.Now().UnixMilli(),
	}

	// below the trigger but inside the buffer
	priceWatcher.On("GetPrice", "LTCUSDT").Return(94.50)

	advanced, err := manager.Advance(position, model.PositionRisk{Symbol: "LTCUSDT", PositionAmt: 0.10, MarkPrice: 94.50}, model.DefaultLadderConfig())

	assertion.NoError(err)
	assertion.NotNil(advanced)
	assertion.Nil(advanced.DcaOrder)
	assertion.Equal(95.00, advanced.DcaPrice)
	binance.AssertNotCalled(t, "CreateStopOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCutPlacementOnStoredTriggerCross(t *testing.T) {
	assertion := assert.New(t)

	binance := new(FuturesAPIMock)
	priceWatcher := new(PriceWatcherMock)
	callbackManager := new(CallbackManagerMock)
	manager, _ := newPositionManager(binance, priceWatcher, callbackManager)

	cutPrice := 102.50

	position := model.Position{
		Id:                "pos-4",
		Symbol:            "SOLUSDT",
		Side:              model.SideLong,
		Status:            model.StatusDca,
		PricePrecision:    2,
		QuantityPrecision: 1,
		EntryPrice:        100.00,
		EntryQty:          0.10,
		AvgPrice:          100.00,
		DcaPrice:          95.00,
		DcaPriceFixed:     95.00,
		CutPrice:          &cutPrice,
		CutPriceFixed:     &cutPrice,
		FilledDcaOrders:   dcaFills(2),
		DcaCount:          2,
		CreatedAt:         time.Now().UnixMilli(),
	}

	// price rose past the stored cut trigger's buffer (102.5 × 1.01 = 103.525)
	priceWatcher.On("GetPrice", "SOLUSDT").Return(103.60)
	binance.On("CreateStopOrder", "SOLUSDT", "SELL", 0.10, 102.50, false).Return(
		model.FuturesOrder{OrderId: 31, Symbol: "SOLUSDT", Status: model.OrderStatusNew, StopPrice: 102.50}, nil,
	)

	advanced, err := manager.Advance(position, model.PositionRisk{Symbol: "SOLUSDT", PositionAmt: 0.30, MarkPrice: 103.60}, model.DefaultLadderConfig())

	assertion.NoError(err)
	assertion.NotNil(advanced)
	assertion.NotNil(advanced.CutOrder)
	assertion.Equal(int64(31), advanced.CutOrder.OrderId)
	binance.AssertExpectations(t)
}

func TestChildDcaPlacementOnStoredTriggerCross(t *testing.T) {
	assertion := assert.New(t)

	binance := new(FuturesAPIMock)
	priceWatcher := new(PriceWatcherMock)
	callbackManager := new(CallbackManagerMock)
	manager, _ := newPositionManager(binance, priceWatcher, callbackManager)

	childDcaPrice := 97.50

	position := model.Position{
		Id:                 "pos-5",
		Symbol:             "SOLUSDT",
		Side:               model.SideLong,
		Status:             model.StatusDca,
		PricePrecision:     2,
		QuantityPrecision:  1,
		EntryPrice:         100.00,
		EntryQty:           0.10,
		AvgPrice:           100.00,
		DcaPrice:           90.00,
		DcaPriceFixed:      90.00,
		ChildDcaPrice:      &childDcaPrice,
		ChildDcaPriceFixed: &childDcaPrice,
		FilledDcaOrders:    dcaFills(2),
		FilledCutOrders:    []model.FuturesOrder{{Price: 102.50, OrigQty: 0.10}},
		DcaCount:           2,
		CutMinusDca:        1,
		CreatedAt:          time.Now().UnixMilli(),
	}

	// price fell past the stored re-entry trigger's buffer (97.5 × 0.99 = 96.525)
	priceWatcher.On("GetPrice", "SOLUSDT").Return(96.50)
	binance.On("CreateStopOrder", "SOLUSDT", "BUY", 0.10, 97.50, false).Return(
		model.FuturesOrder{OrderId: 41, Symbol: "SOLUSDT", Status: model.OrderStatusNew, StopPrice: 97.50}, nil,
	)

	advanced, err := manager.Advance(position, model.PositionRisk{Symbol: "SOLUSDT", PositionAmt: 0.20, MarkPrice: 96.50}, model.DefaultLadderConfig())

	assertion.NoError(err)
	assertion.NotNil(advanced)
	assertion.NotNil(advanced.ChildDcaOrder)
	assertion.Equal(int64(41), advanced.ChildDcaOrder.OrderId)
	binance.AssertExpectations(t)
}

func TestCutTriggerSeedsWithoutPlacing(t *testing.T) {
	assertion := assert.New(t)

	binance := new(FuturesAPIMock)
	priceWatcher := new(PriceWatcherMock)
	callbackManager := new(CallbackManagerMock)
	manager, _ := newPositionManager(binance, priceWatcher, callbackManager)

	position := model.Position{
		Symbol:            "SOLUSDT",
		Side:              model.SideLong,
		Status:            model.StatusDca,
		PricePrecision:    1,
		QuantityPrecision: 1,
		EntryPrice:        100.00,
		EntryQty:          0.10,
		AvgPrice:          100.00,
		DcaPrice:          95.00,
		DcaPriceFixed:     95.00,
		FilledDcaOrders:   dcaFills(2),
		DcaCount:          2,
		CreatedAt:         time.Now().UnixMilli(),
	}

	priceWatcher.On("GetPrice", "SOLUSDT").Return(100.00)

	advanced, err := manager.Advance(position, model.PositionRisk{Symbol: "SOLUSDT", PositionAmt: 0.30, MarkPrice: 100.00}, model.DefaultLadderConfig())

	assertion.NoError(err)
	assertion.NotNil(advanced)

	// the cut trigger is stored for later ticks, not acted on yet
	assertion.Nil(advanced.CutOrder)
	assertion.NotNil(advanced.CutPrice)
	assertion.Equal(102.5, *advanced.CutPrice)
	binance.AssertNotCalled(t, "CreateStopOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestShortDcaCancelAndWalk(t *testing.T) {
	assertion := assert.New(t)

	binance := new(FuturesAPIMock)
	priceWatcher := new(PriceWatcherMock)
	callbackManager := new(CallbackManagerMock)
	manager, _ := newPositionManager(binance, priceWatcher, callbackManager)

	restingOrder := model.FuturesOrder{OrderId: 10, Symbol: "LTCUSDT", Status: model.OrderStatusNew}

	position := model.Position{
		Id:                "pos-1",
		Symbol:            "LTCUSDT",
		Side:              model.SideShort,
		Status:            model.StatusStart,
		PricePrecision:    2,
		QuantityPrecision: 1,
		EntryPrice:        100.00,
		EntryQty:          0.50,
		AvgPrice:          100.00,
		DcaOrder:          &restingOrder,
		DcaPrice:          100.00,
		DcaPriceFixed:     100.00,
		CreatedAt:         time.Now().UnixMilli(),
	}

	// price ran 2.5% above the fixed trigger, past the 2% walk distance
	priceWatcher.On("GetPrice", "LTCUSDT").Return(102.50)
	binance.On("GetOrder", "LTCUSDT", int64(10)).Return(restingOrder, nil)
	binance.On("CancelOrder", "LTCUSDT", int64(10)).Return(nil)
	binance.On("CreateStopOrder", "LTCUSDT", "SELL", 0.10, 100.75, false).Return(
		model.FuturesOrder{OrderId: 11, Symbol: "LTCUSDT", Status: model.OrderStatusNew}, nil,
	)

	advanced, err := manager.Advance(position, model.PositionRisk{Symbol: "LTCUSDT", PositionAmt: -0.50, MarkPrice: 102.50}, model.DefaultLadderConfig())

	assertion.NoError(err)
	assertion.NotNil(advanced)
	assertion.Equal(1, advanced.DcaPendingCounter)
	assertion.Equal(100.75, advanced.DcaPrice)
	assertion.Equal(101.00, advanced.DcaPriceFixed)
	assertion.NotNil(advanced.DcaOrder)
	assertion.Equal(int64(11), advanced.DcaOrder.OrderId)
	binance.AssertExpectations(t)
}

func TestProfitClosesRemainingQuantity(t *testing.T) {
	assertion := assert.New(t)

	binance := new(FuturesAPIMock)
	priceWatcher := new(PriceWatcherMock)
	callbackManager := new(CallbackManagerMock)
	manager, journal := newPositionManager(binance, priceWatcher, callbackManager)

	slPrice := 105.00

	position := model.Position{
		Id:                "pos-2",
		Symbol:            "SOLUSDT",
		Side:              model.SideLong,
		Status:            model.StatusProfit,
		PricePrecision:    2,
		QuantityPrecision: 1,
		EntryPrice:        100.00,
		EntryQty:          0.70,
		AvgPrice:          100.00,
		SlPrice:           &slPrice,
		MaxPrice:          110.00,
		CreatedAt:         time.Now().UnixMilli(),
	}

	priceWatcher.On("GetPrice", "SOLUSDT").Return(104.90)
	binance.On("CreateMarketOrder", "SOLUSDT", "SELL", 0.70).Return(
		model.FuturesOrder{Symbol: "SOLUSDT", Status: model.OrderStatusFilled, AvgPrice: 104.90, OrigQty: 0.70}, nil,
	)
	callbackManager.On("Order", mock.Anything, mock.Anything, mock.Anything)

	advanced, err := manager.Advance(position, model.PositionRisk{Symbol: "SOLUSDT", PositionAmt: 0.70, MarkPrice: 104.90}, model.DefaultLadderConfig())

	assertion.NoError(err)
	assertion.Nil(advanced)
	binance.AssertExpectations(t)

	records := journal.List()
	assertion.Len(records, 1)
	assertion.Equal(model.OrderRecordTypeProfit, records[0].Type)
	assertion.NotNil(records[0].Profit)
	assertion.Equal(3.43, *records[0].Profit)
}

func TestReduceOnlyRejectedCloseCompletesPosition(t *testing.T) {
	assertion := assert.New(t)

	binance := new(FuturesAPIMock)
	priceWatcher := new(PriceWatcherMock)
	callbackManager := new(CallbackManagerMock)
	manager, journal := newPositionManager(binance, priceWatcher, callbackManager)

	slPrice := 105.00

	position := model.Position{
		Symbol:            "SOLUSDT",
		Side:              model.SideLong,
		Status:            model.StatusProfit,
		PricePrecision:    2,
		QuantityPrecision: 1,
		EntryPrice:        100.00,
		EntryQty:          0.10,
		AvgPrice:          100.00,
		SlPrice:           &slPrice,
		MaxPrice:          110.00,
		CreatedAt:         time.Now().UnixMilli(),
	}

	priceWatcher.On("GetPrice", "SOLUSDT").Return(104.90)

	// the exchange refuses to close a dust remainder below the minimum
	// notional; the position must still complete instead of retrying the
	// close forever
	binance.On("CreateMarketOrder", "SOLUSDT", "SELL", 0.10).Return(
		model.FuturesOrder{}, &model.FuturesApiError{Code: model.ApiErrorReduceOnlyReject, Msg: "ReduceOnly Order is rejected."},
	)
	callbackManager.On("Error", mock.Anything, "reduce_only_reject", mock.Anything, false)

	advanced, err := manager.Advance(position, model.PositionRisk{Symbol: "SOLUSDT", PositionAmt: 0.10, MarkPrice: 104.90}, model.DefaultLadderConfig())

	assertion.NoError(err)
	assertion.Nil(advanced)
	assertion.Empty(journal.List())
	callbackManager.AssertNumberOfCalls(t, "Error", 1)
}

func TestExternalCloseDropsPosition(t *testing.T) {
	assertion := assert.New(t)

	binance := new(FuturesAPIMock)
	priceWatcher := new(PriceWatcherMock)
	callbackManager := new(CallbackManagerMock)
	manager, _ := newPositionManager(binance, priceWatcher, callbackManager)

	position := model.Position{
		Symbol:            "XRPUSDT",
		Side:              model.SideLong,
		Status:            model.StatusStart,
		QuantityPrecision: 1,
	}

	advanced, err := manager.Advance(position, model.PositionRisk{Symbol: "XRPUSDT", PositionAmt: 0.00}, model.DefaultLadderConfig())

	assertion.NoError(err)
	assertion.Nil(advanced)
}

func TestDirectionMismatchAlertsOnce(t *testing.T) {
	assertion := assert.New(t)

	binance := new(FuturesAPIMock)
	priceWatcher := new(PriceWatcherMock)
	callbackManager := new(CallbackManagerMock)
	manager, _ := newPositionManager(binance, priceWatcher, callbackManager)

	position := model.Position{
		Symbol:            "ADAUSDT",
		Side:              model.SideLong,
		Status:            model.StatusStart,
		PricePrecision:    4,
		QuantityPrecision: 0,
		AvgPrice:          0.50,
		CreatedAt:         time.Now().UnixMilli(),
	}

	priceWatcher.On("GetPrice", "ADAUSDT").Return(0.50)
	callbackManager.On("Error", mock.Anything, "direction_mismatch", mock.Anything, false)

	risk := model.PositionRisk{Symbol: "ADAUSDT", PositionAmt: -12.00, MarkPrice: 0.50}

	advanced, err := manager.Advance(position, risk, model.DefaultLadderConfig())
	assertion.NoError(err)
	assertion.NotNil(advanced)
	assertion.True(advanced.Error)

	// the alert fires on the transition only
	advanced, err = manager.Advance(*advanced, risk, model.DefaultLadderConfig())
	assertion.NoError(err)
	assertion.True(advanced.Error)
	callbackManager.AssertNumberOfCalls(t, "Error", 1)
}
