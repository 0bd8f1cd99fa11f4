package model

import (
	"fmt"
	"math"
	"time"
)

const SideLong = "LONG"
const SideShort = "SHORT"

type Side string

func (s Side) IsLong() bool {
	return string(s) == SideLong
}

func (s Side) IsShort() bool {
	return string(s) == SideShort
}

// AddOrderSide is the order side that increases exposure (entry, DCA, child-DCA).
func (s Side) AddOrderSide() string {
	if s.IsLong() {
		return "BUY"
	}

	return "SELL"
}

// ReduceOrderSide is the order side that reduces exposure (cut, profit close).
func (s Side) ReduceOrderSide() string {
	if s.IsLong() {
		return "SELL"
	}

	return "BUY"
}

const StatusStart = "START"
const StatusDca = "DCA"
const StatusProfit = "PROFIT"

type Position struct {
	Id                string  `json:"id"`
	Symbol            string  `json:"symbol"`
	Side              Side    `json:"side"`
	Status            string  `json:"status"`
	PricePrecision    int     `json:"pricePrecision"`
	QuantityPrecision int     `json:"quantityPrecision"`
	EntryPrice        float64 `json:"entryPrice"`
	EntryQty          float64 `json:"entryQty"`
	AvgPrice          float64 `json:"avgPrice"`
	CurrentPrice      float64 `json:"currentPrice"`

	DcaPrice           float64  `json:"dcaPrice"`
	DcaPriceFixed      float64  `json:"dcaPriceFixed"`
	CutPrice           *float64 `json:"cutPrice"`
	CutPriceFixed      *float64 `json:"cutPriceFixed"`
	ChildDcaPrice      *float64 `json:"childDcaPrice"`
	ChildDcaPriceFixed *float64 `json:"childDcaPriceFixed"`
	SlPrice            *float64 `json:"slPrice"`
	MaxPrice           float64  `json:"maxPrice"`
	ProfitStopPrice    float64  `json:"profitStopPrice"`

	DcaOrder             *FuturesOrder  `json:"dcaOrder"`
	CutOrder             *FuturesOrder  `json:"cutOrder"`
	ChildDcaOrder        *FuturesOrder  `json:"childDcaOrder"`
	FilledDcaOrders      []FuturesOrder `json:"filledDcaOrders"`
	FilledCutOrders      []FuturesOrder `json:"filledCutOrders"`
	FilledChildDcaOrders []FuturesOrder `json:"filledChildDcaOrders"`

	DcaCount               int `json:"dcaCount"`
	CutMinusDca            int `json:"cutMinusDca"`
	DcaPendingCounter      int `json:"dcaPendingCounter"`
	CutPendingCounter      int `json:"cutPendingCounter"`
	ChildDcaPendingCounter int `json:"childDcaPendingCounter"`

	Manual       bool     `json:"manual"`
	Error        bool     `json:"error"`
	SlPercentage *float64 `json:"slPercentage"`

	// exchange-reported signed quantity, refreshed every tick
	ExchangeAmt float64 `json:"exchangeAmt"`

	// display fields
	CalcProfit        float64  `json:"calcProfit"`
	PriceChange       float64  `json:"priceChange"`
	ToLow             float64  `json:"toLow"`
	ToHigh            float64  `json:"toHigh"`
	DcaStopPrice      *float64 `json:"dcaStopPrice"`
	CutStopPrice      *float64 `json:"cutStopPrice"`
	ChildDcaStopPrice *float64 `json:"childDcaStopPrice"`
	ElapsedTime       string   `json:"elapsedTime"`

	CreatedAt int64 `json:"createdAt"`
}

// IsRisky reports whether the position is not yet protected by any stop-loss.
func (p *Position) IsRisky() bool {
	return p.SlPrice == nil
}

func (p *Position) RemainingQty() float64 {
	return math.Abs(p.ExchangeAmt)
}

// DirectionMismatch reports whether the exchange-reported exposure
// contradicts the tracked direction. This is a data integrity fault and
// is never auto-corrected.
func (p *Position) DirectionMismatch() bool {
	return (p.ExchangeAmt < 0 && p.Side.IsLong()) || (p.ExchangeAmt > 0 && p.Side.IsShort())
}

func (p *Position) Elapsed(now time.Time) string {
	hours := int64(math.Round(float64(now.UnixMilli()-p.CreatedAt) / 1000 / 60 / 60))
	days := int64(0)

	if hours > 24 {
		days = hours / 24
		hours = hours % 24
	}

	return fmt.Sprintf("%dd %dh", days, hours)
}
