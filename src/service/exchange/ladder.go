package exchange

import (
	"errors"
	"gitlab.com/open-soft/go-futures-bot/src/model"
	"gitlab.com/open-soft/go-futures-bot/src/utils"
)

var ErrEntryBudgetExceeded = errors.New("entry notional exceeds allowed budget")

// Ladder computes DCA, cut and child-DCA trigger prices, order quantities
// and the weighted average entry price of a position. Pure calculation,
// no I/O.
type Ladder struct {
	Formatter *utils.Formatter
}

// AvgPrice is the remaining cost basis of the position. Fills that add
// exposure (entry, DCA, child-DCA) are averaged together; fills that
// reduce exposure (cuts) redistribute their realized gain or loss across
// the remaining quantity, so the displayed average always matches the
// true break-even of what is still held.
func (l *Ladder) AvgPrice(position model.Position) float64 {
	addBudget := position.EntryPrice * position.EntryQty
	addQty := position.EntryQty

	for _, order := range position.FilledDcaOrders {
		addBudget += order.FillPrice() * order.OrigQty
		addQty += order.OrigQty
	}

	for _, order := range position.FilledChildDcaOrders {
		addBudget += order.FillPrice() * order.OrigQty
		addQty += order.OrigQty
	}

	reduceBudget := 0.00
	reduceQty := 0.00

	for _, order := range position.FilledCutOrders {
		reduceBudget += order.FillPrice() * order.OrigQty
		reduceQty += order.OrigQty
	}

	addAvg := addBudget / addQty

	if reduceQty == 0.00 {
		return l.Formatter.ToFixed(addAvg, position.PricePrecision)
	}

	reduceAvg := reduceBudget / reduceQty
	remainingQty := addQty - reduceQty

	realized := (reduceAvg - addAvg) * reduceQty
	if position.Side.IsShort() {
		realized = (addAvg - reduceAvg) * reduceQty
	}

	// realized profit lowers the remaining break-even, realized loss
	// raises it (mirrored for shorts)
	avg := addAvg - realized/remainingQty
	if position.Side.IsShort() {
		avg = addAvg + realized/remainingQty
	}

	return l.Formatter.ToFixed(avg, position.PricePrecision)
}

func (l *Ladder) DcaPrice(position model.Position, config model.LadderConfig) float64 {
	percentage := config.DcaPercentage(position.DcaCount)

	if position.Side.IsLong() {
		return l.Formatter.ToFixed(position.CurrentPrice*(1-percentage), position.PricePrecision)
	}

	return l.Formatter.ToFixed(position.CurrentPrice*(1+percentage), position.PricePrecision)
}

// numCutBaseOnDca is an empirically tuned lookup keyed by the number of
// filled DCA orders. Kept verbatim; entries beyond the table clamp to the
// last rung.
func numCutBaseOnDca(filledDcaOrders int) int {
	switch filledDcaOrders {
	case 0, 1:
		return 0
	case 2:
		return 1
	case 3, 4:
		return 2
	case 5:
		return 3
	case 6, 7:
		return 4
	case 8:
		return 5
	}

	return 6
}

// CutPrice returns the next partial take-profit trigger, or nil while no
// cut is due. The distance from the current price to the after-DCA profit
// target is divided into numCut+1 equal steps; the nearest step is the
// trigger.
func (l *Ladder) CutPrice(position model.Position, config model.LadderConfig) *float64 {
	numCut := numCutBaseOnDca(len(position.FilledDcaOrders)) +
		len(position.FilledChildDcaOrders) -
		len(position.FilledCutOrders)

	if numCut <= 0 {
		return nil
	}

	var cutPrice float64

	if position.Side.IsLong() {
		target := position.AvgPrice * (1 + config.MinProfitAfterDca)
		cutPrice = position.CurrentPrice + (target-position.CurrentPrice)/float64(numCut+1)
	} else {
		target := position.AvgPrice * (1 - config.MinProfitAfterDca)
		cutPrice = position.CurrentPrice - (position.CurrentPrice-target)/float64(numCut+1)
	}

	cutPrice = l.Formatter.ToFixed(cutPrice, position.PricePrecision)

	return &cutPrice
}

// ChildDcaPrice returns the next re-entry trigger, defined only while
// there are more cut fills than child-DCA fills. It interpolates between
// the current price and the DCA trigger over the outstanding cut count.
func (l *Ladder) ChildDcaPrice(position model.Position) *float64 {
	numChildDca := len(position.FilledCutOrders) - len(position.FilledChildDcaOrders)

	if numChildDca <= 0 {
		return nil
	}

	var childDcaPrice float64

	if position.Side.IsLong() {
		priceStep := (position.CurrentPrice - position.DcaPrice) / float64(numChildDca+1)
		childDcaPrice = position.CurrentPrice - priceStep
	} else {
		priceStep := (position.DcaPrice - position.CurrentPrice) / float64(numChildDca+1)
		childDcaPrice = position.CurrentPrice + priceStep
	}

	childDcaPrice = l.Formatter.ToFixed(childDcaPrice, position.PricePrecision)

	return &childDcaPrice
}

// BestQty rounds a raw quantity to the symbol's precision. When nearest
// rounding would produce a notional under the exchange minimum, the
// quantity is rounded up instead so the order is never rejected.
func (l *Ladder) BestQty(qty float64, qtyPrecision int, price float64, minNotional float64) float64 {
	nearestQty := l.Formatter.ToFixed(qty, qtyPrecision)

	if nearestQty*price < minNotional {
		return l.Formatter.ToCeil(qty, qtyPrecision)
	}

	return nearestQty
}

// rungBudget grows with the rung's pending-attempt counter to compensate
// sizing for missed fills, capped at one extra first-rung budget.
func rungBudget(base float64, pendingCounter int, config model.LadderConfig) float64 {
	extra := float64(pendingCounter) * config.IncreaseVolParam
	if extra > config.DcaBudgets[0] {
		extra = config.DcaBudgets[0]
	}

	return base + extra
}

func (l *Ladder) DcaQty(position model.Position, config model.LadderConfig) float64 {
	budget := rungBudget(config.DcaBudget(position.DcaCount), position.DcaPendingCounter, config)

	return l.BestQty(budget/position.CurrentPrice, position.QuantityPrecision, position.CurrentPrice, config.MinNotional)
}

func (l *Ladder) CutQty(position model.Position, config model.LadderConfig) float64 {
	budget := rungBudget(config.DcaBudgets[0], position.CutPendingCounter, config)

	return l.BestQty(budget/position.CurrentPrice, position.QuantityPrecision, position.CurrentPrice, config.MinNotional)
}

func (l *Ladder) ChildDcaQty(position model.Position, config model.LadderConfig) float64 {
	budget := rungBudget(config.DcaBudgets[0], position.ChildDcaPendingCounter, config)

	return l.BestQty(budget/position.CurrentPrice, position.QuantityPrecision, position.CurrentPrice, config.MinNotional)
}

// EntryQty sizes a new position from the base budget. Lot-size rounding
// on cheap symbols can inflate the notional; entries exceeding the budget
// by more than the allowed slack are rejected.
func (l *Ladder) EntryQty(price float64, precision model.SymbolPrecision, config model.LadderConfig) (float64, error) {
	qty := l.BestQty(config.BaseBudget/price, precision.QuantityPrecision, price, config.MinNotional)

	if qty*price > config.BaseBudget+config.MaxEntryBudgetDiffAllow {
		return 0.00, ErrEntryBudgetExceeded
	}

	return qty, nil
}

// minProfitFor selects the profit rate: the plain minimum before any DCA
// fill, the after-DCA minimum once the ladder is in use.
func minProfitFor(position model.Position, config model.LadderConfig) float64 {
	if len(position.FilledDcaOrders) == 0 {
		return config.MinProfit
	}

	return config.MinProfitAfterDca
}

// UpToProfit reports whether the price has moved past the minimum-profit
// trigger. The candidate trigger price is recorded on the position for
// display.
func (l *Ladder) UpToProfit(position *model.Position, config model.LadderConfig) bool {
	orderMinProfit := minProfitFor(*position, config)

	if position.Side.IsLong() {
		trigger := l.Formatter.ToFixed(
			position.AvgPrice*(1+orderMinProfit+config.StopPriceLimitPriceDistance),
			position.PricePrecision,
		)
		position.ProfitStopPrice = trigger

		return position.CurrentPrice > trigger
	}

	trigger := l.Formatter.ToFixed(
		position.AvgPrice*(1-orderMinProfit-config.StopPriceLimitPriceDistance),
		position.PricePrecision,
	)
	position.ProfitStopPrice = trigger

	return position.CurrentPrice < trigger
}

// CalcProfit is the realized PnL of a fully closed position, including
// the closing order.
func (l *Ladder) CalcProfit(position model.Position, closingOrder model.FuturesOrder) float64 {
	addBudget := position.EntryPrice * position.EntryQty

	for _, order := range position.FilledDcaOrders {
		addBudget += order.FillPrice() * order.OrigQty
	}

	for _, order := range position.FilledChildDcaOrders {
		addBudget += order.FillPrice() * order.OrigQty
	}

	reduceBudget := 0.00
	for _, order := range position.FilledCutOrders {
		reduceBudget += order.FillPrice() * order.OrigQty
	}

	reduceBudget += closingOrder.FillPrice() * closingOrder.OrigQty

	if position.Side.IsLong() {
		return reduceBudget - addBudget
	}

	return addBudget - reduceBudget
}

// UpdateStopDisplay refreshes the buffered stop prices shown next to each
// rung trigger.
func (l *Ladder) UpdateStopDisplay(position *model.Position, config model.LadderConfig) {
	position.DcaStopPrice = nil
	position.CutStopPrice = nil
	position.ChildDcaStopPrice = nil

	buffer := config.StopPriceLimitPriceDistance

	addFactor := 1 - buffer
	reduceFactor := 1 + buffer
	if position.Side.IsShort() {
		addFactor = 1 + buffer
		reduceFactor = 1 - buffer
	}

	if position.DcaPrice > 0 {
		dcaStop := l.Formatter.ToFixed(position.DcaPrice*addFactor, position.PricePrecision)
		position.DcaStopPrice = &dcaStop
	}

	if position.CutPrice != nil {
		cutStop := l.Formatter.ToFixed(*position.CutPrice*reduceFactor, position.PricePrecision)
		position.CutStopPrice = &cutStop
	}

	if position.ChildDcaPrice != nil {
		childDcaStop := l.Formatter.ToFixed(*position.ChildDcaPrice*addFactor, position.PricePrecision)
		position.ChildDcaStopPrice = &childDcaStop
	}
}

// UpdateDistances refreshes the displayed percent distance from the
// current price to the nearest trigger on each side.
func (l *Ladder) UpdateDistances(position *model.Position, config model.LadderConfig) {
	buffer := config.StopPriceLimitPriceDistance
	orderMinProfit := minProfitFor(*position, config)

	var lowPrice float64
	var highPrice float64

	if position.Side.IsLong() {
		lowPrice = position.DcaPrice
		if position.ChildDcaPrice != nil && *position.ChildDcaPrice > lowPrice {
			lowPrice = *position.ChildDcaPrice
		}
		lowPrice = lowPrice * (1 - buffer)

		highPrice = l.Formatter.ToFixed(position.AvgPrice*(1+orderMinProfit+buffer), position.PricePrecision)
		if position.CutPrice != nil && *position.CutPrice*(1+buffer) < highPrice {
			highPrice = *position.CutPrice * (1 + buffer)
		}
	} else {
		highPrice = position.DcaPrice
		if position.ChildDcaPrice != nil && *position.ChildDcaPrice < highPrice {
			highPrice = *position.ChildDcaPrice
		}
		highPrice = highPrice * (1 + buffer)

		lowPrice = l.Formatter.ToFixed(position.AvgPrice*(1-orderMinProfit-buffer), position.PricePrecision)
		if position.CutPrice != nil && *position.CutPrice*(1-buffer) > lowPrice {
			lowPrice = *position.CutPrice * (1 - buffer)
		}
	}

	if lowPrice > 0 {
		position.ToLow = l.Formatter.ToFixed((position.CurrentPrice/lowPrice-1)*100, 1)
	}
	if highPrice > 0 {
		position.ToHigh = l.Formatter.ToFixed((1-position.CurrentPrice/highPrice)*100, 1)
	}
}
