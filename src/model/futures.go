package model

import (
	"fmt"
	"math"
)

const OrderStatusNew = "NEW"
const OrderStatusFilled = "FILLED"
const OrderStatusCanceled = "CANCELED"

type FuturesOrder struct {
	OrderId     int64   `json:"orderId"`
	Symbol      string  `json:"symbol"`
	Status      string  `json:"status"`
	Side        string  `json:"side"`
	Type        string  `json:"type"`
	Price       float64 `json:"price,string"`
	AvgPrice    float64 `json:"avgPrice,string"`
	StopPrice   float64 `json:"stopPrice,string"`
	OrigQty     float64 `json:"origQty,string"`
	ExecutedQty float64 `json:"executedQty,string"`
	Time        int64   `json:"time"`
	UpdateTime  int64   `json:"updateTime"`
}

func (o FuturesOrder) IsFilled() bool {
	return o.Status == OrderStatusFilled
}

func (o FuturesOrder) IsCanceled() bool {
	return o.Status == OrderStatusCanceled
}

// FillPrice is the best known execution price of the order: the limit
// price if set, otherwise the average fill price, otherwise the stop price.
func (o FuturesOrder) FillPrice() float64 {
	if o.Price > 0 {
		return o.Price
	}

	if o.AvgPrice > 0 {
		return o.AvgPrice
	}

	return o.StopPrice
}

// JournalPrice is the price shown in the order journal: average fill
// price when executed, stop price for resting stop orders.
func (o FuturesOrder) JournalPrice() float64 {
	if o.AvgPrice > 0 {
		return o.AvgPrice
	}

	return o.StopPrice
}

type PositionRisk struct {
	Symbol           string  `json:"symbol"`
	PositionAmt      float64 `json:"positionAmt,string"`
	EntryPrice       float64 `json:"entryPrice,string"`
	MarkPrice        float64 `json:"markPrice,string"`
	UnRealizedProfit float64 `json:"unRealizedProfit,string"`
}

func (p PositionRisk) Notional() float64 {
	return math.Abs(p.PositionAmt * p.MarkPrice)
}

func (p PositionRisk) PositionSide() Side {
	if p.PositionAmt > 0 {
		return Side(SideLong)
	}

	return Side(SideShort)
}

type FuturesBalance struct {
	Asset      string  `json:"asset"`
	Balance    float64 `json:"balance,string"`
	CrossUnPnl float64 `json:"crossUnPnl,string"`
	Available  float64 `json:"availableBalance,string"`
}

type PriceChange struct {
	Symbol             string  `json:"symbol"`
	PriceChangePercent float64 `json:"priceChangePercent,string"`
	LastPrice          float64 `json:"lastPrice,string"`
}

type BookTicker struct {
	Symbol   string  `json:"symbol"`
	BidPrice float64 `json:"bidPrice,string"`
	AskPrice float64 `json:"askPrice,string"`
}

type SymbolPrecision struct {
	PricePrecision    int `json:"pricePrecision"`
	QuantityPrecision int `json:"quantityPrecision"`
}

type ExchangeInfo struct {
	Symbols []ExchangeSymbol `json:"symbols"`
}

type ExchangeSymbol struct {
	Symbol         string         `json:"symbol"`
	PricePrecision int            `json:"pricePrecision"`
	Filters        []SymbolFilter `json:"filters"`
}

type SymbolFilter struct {
	FilterType string `json:"filterType"`
	MinQty     string `json:"minQty"`
	TickSize   string `json:"tickSize"`
}

const FilterTypeLotSize = "LOT_SIZE"

// Binance Futures error codes the core branches on.
const ApiErrorInvalidTimestamp = -1021
const ApiErrorCancelRejected = -2011
const ApiErrorUnknownOrder = -2013
const ApiErrorStopImmediatelyTriggered = -2021
const ApiErrorReduceOnlyReject = -4164

type FuturesApiError struct {
	Code int64  `json:"code"`
	Msg  string `json:"msg"`
}

func (e *FuturesApiError) Error() string {
	return fmt.Sprintf("binance error %d: %s", e.Code, e.Msg)
}

func (e *FuturesApiError) IsInvalidTimestamp() bool {
	return e.Code == ApiErrorInvalidTimestamp
}

func (e *FuturesApiError) IsCancelRejected() bool {
	return e.Code == ApiErrorCancelRejected
}

func (e *FuturesApiError) IsUnknownOrder() bool {
	return e.Code == ApiErrorUnknownOrder
}

// IsStopImmediatelyTriggered reports the "price already crossed the stop
// price" rejection, handled by falling back to a market order.
func (e *FuturesApiError) IsStopImmediatelyTriggered() bool {
	return e.Code == ApiErrorStopImmediatelyTriggered
}

// IsReduceOnlyReject reports the rejection of a closing order whose
// remainder is below the exchange minimum. The position is effectively
// closed at that point.
func (e *FuturesApiError) IsReduceOnlyReject() bool {
	return e.Code == ApiErrorReduceOnlyReject
}

type MarkPriceEvent struct {
	Symbol string  `json:"s"`
	Price  float64 `json:"p,string"`
}

type MarkPriceStreamEvent struct {
	Stream string         `json:"stream"`
	Data   MarkPriceEvent `json:"data"`
}
