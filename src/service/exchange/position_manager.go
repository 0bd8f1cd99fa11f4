package exchange

import (
	"errors"
	"fmt"
	"gitlab.com/open-soft/go-futures-bot/src/client"
	"gitlab.com/open-soft/go-futures-bot/src/model"
	"gitlab.com/open-soft/go-futures-bot/src/service"
	"gitlab.com/open-soft/go-futures-bot/src/utils"
	"log"
	"time"
)

type PositionManagerInterface interface {
	Advance(position model.Position, risk model.PositionRisk, config model.LadderConfig) (*model.Position, error)
}

// PositionManager advances one position's lifecycle per tick. Advance
// operates on a value copy: the caller replaces its tracked position only
// on success, so a failed tick leaves the last consistent state untracked
// and is retried next tick.
type PositionManager struct {
	Binance         client.FuturesAPIInterface
	PriceWatcher    PriceWatcherInterface
	Ladder          *Ladder
	Journal         OrderJournalInterface
	CallbackManager service.CallbackManagerInterface
	ManualControl   ManualControlInterface
	CurrentBot      *model.Bot
	Formatter       *utils.Formatter
}

// Advance runs one tick of the state machine. A nil position with a nil
// error means the position is done and must be dropped from the managed
// set.
func (m *PositionManager) Advance(position model.Position, risk model.PositionRisk, config model.LadderConfig) (*model.Position, error) {
	position.ExchangeAmt = risk.PositionAmt

	// external close wins over everything else
	if m.Formatter.ToFixed(position.RemainingQty(), position.QuantityPrecision) == 0.00 {
		log.Printf("[%s] Exchange quantity is zero, position closed", position.Symbol)
		return nil, nil
	}

	currentPrice := m.PriceWatcher.GetPrice(position.Symbol)
	if currentPrice == 0.00 {
		currentPrice = risk.MarkPrice
	}
	if currentPrice == 0.00 {
		return nil, fmt.Errorf("[%s] no price available yet", position.Symbol)
	}
	position.CurrentPrice = currentPrice

	if position.DirectionMismatch() {
		if !position.Error {
			position.Error = true
			log.Printf("[%s] Direction mismatch: tracked %s, exchange amt %f", position.Symbol, position.Side, position.ExchangeAmt)
			m.CallbackManager.Error(
				*m.CurrentBot,
				"direction_mismatch",
				fmt.Sprintf("%s: tracked %s but exchange amount is %f", position.Symbol, position.Side, position.ExchangeAmt),
				false,
			)
		}

		m.updateDisplay(&position, config)

		return &position, nil
	}

	if m.ManualControl.ConsumeManual(position.Symbol) && !position.Manual {
		if err := m.cancelOpenOrders(&position); err != nil {
			return nil, err
		}
		position.Manual = true
		log.Printf("[%s] Switched to manual management", position.Symbol)
	}

	if position.Manual {
		return m.manageManual(position, risk, config)
	}

	var err error

	switch position.Status {
	case model.StatusStart:
		err = m.manageStart(&position, config)
	case model.StatusDca:
		err = m.manageDca(&position, config)
	case model.StatusProfit:
		done, profitErr := m.manageProfit(&position, config)
		if profitErr != nil {
			return nil, profitErr
		}
		if done {
			return nil, nil
		}
	default:
		return nil, fmt.Errorf("[%s] unknown status %s", position.Symbol, position.Status)
	}

	if err != nil {
		return nil, err
	}

	m.updateDisplay(&position, config)

	return &position, nil
}

func (m *PositionManager) manageStart(p *model.Position, config model.LadderConfig) error {
	if m.Ladder.UpToProfit(p, config) {
		m.enterProfit(p, config.MinProfit)
		return nil
	}

	return m.manageDcaRung(p, config)
}

func (m *PositionManager) manageDca(p *model.Position, config model.LadderConfig) error {
	if m.Ladder.UpToProfit(p, config) {
		m.enterProfit(p, config.MinProfitAfterDca)
		return nil
	}

	if err := m.manageDcaRung(p, config); err != nil {
		return err
	}

	if err := m.manageCutRung(p, config); err != nil {
		return err
	}

	return m.manageChildDcaRung(p, config)
}

// enterProfit is the one-way transition into the trailing exit phase.
func (m *PositionManager) enterProfit(p *model.Position, minProfit float64) {
	factor := 1 + minProfit
	if p.Side.IsShort() {
		factor = 1 - minProfit
	}

	slPrice := m.Formatter.ToFixed(p.AvgPrice*factor, p.PricePrecision)
	p.SlPrice = &slPrice
	p.MaxPrice = p.CurrentPrice
	p.Status = model.StatusProfit

	log.Printf("[%s] %s -> PROFIT, stop-loss %f", p.Symbol, p.Side, slPrice)
}

// manageProfit ratchets the trailing stop and closes on a stop cross. The
// bool result reports completion.
func (m *PositionManager) manageProfit(p *model.Position, config model.LadderConfig) (bool, error) {
	buffer := config.StopPriceLimitPriceDistance

	if p.SlPrice == nil {
		// should not happen, re-seed from the minimum profit target
		m.enterProfit(p, minProfitFor(*p, config))
	}

	if p.Side.IsLong() {
		if p.CurrentPrice > p.MaxPrice*(1+buffer) {
			p.MaxPrice = p.CurrentPrice
			slPrice := m.Formatter.ToFixed(*p.SlPrice*(1+config.ProfitRatio), p.PricePrecision)
			p.SlPrice = &slPrice
			log.Printf("[%s] New max %f, stop-loss moved to %f", p.Symbol, p.MaxPrice, slPrice)
		}

		if p.CurrentPrice >= *p.SlPrice {
			return false, nil
		}
	} else {
		if p.CurrentPrice < p.MaxPrice*(1-buffer) {
			p.MaxPrice = p.CurrentPrice
			slPrice := m.Formatter.ToFixed(*p.SlPrice*(1-config.ProfitRatio), p.PricePrecision)
			p.SlPrice = &slPrice
			log.Printf("[%s] New min %f, stop-loss moved to %f", p.Symbol, p.MaxPrice, slPrice)
		}

		if p.CurrentPrice <= *p.SlPrice {
			return false, nil
		}
	}

	return true, m.closeAtMarket(p)
}

// closeAtMarket exits the full exchange-reported quantity and journals the
// realized result.
func (m *PositionManager) closeAtMarket(p *model.Position) error {
	quantity := m.Formatter.ToFixed(p.RemainingQty(), p.QuantityPrecision)

	order, err := m.Binance.CreateMarketOrder(p.Symbol, p.Side.ReduceOrderSide(), quantity)
	if err != nil {
		apiError := &model.FuturesApiError{}
		if errors.As(err, &apiError) && apiError.IsReduceOnlyReject() {
			// only dust below the minimum notional remains; retrying the
			// close every tick would wedge the position forever
			log.Printf("[%s] Close rejected as reduce-only dust, treating as closed", p.Symbol)
			m.CallbackManager.Error(
				*m.CurrentBot,
				"reduce_only_reject",
				fmt.Sprintf("%s: close of %f rejected, dust remainder treated as closed", p.Symbol, quantity),
				false,
			)

			return nil
		}

		return err
	}

	profit := m.Formatter.ToFixed(m.Ladder.CalcProfit(*p, order), 2)
	m.Journal.Append(model.OrderRecordTypeProfit, order, &profit)
	m.CallbackManager.Order(*m.CurrentBot, order, fmt.Sprintf("%s closed, profit %.2f", p.Side, profit))

	log.Printf("[%s] Closed %s qty %f, profit %.2f", p.Symbol, p.Side, quantity, profit)

	return nil
}

// crossed reports whether the price has passed the trigger by the buffer,
// in the given direction (+1 above, -1 below).
func crossed(currentPrice float64, trigger float64, buffer float64, dir float64) bool {
	if dir > 0 {
		return currentPrice >= trigger*(1+buffer)
	}

	return currentPrice <= trigger*(1-buffer)
}

// rung crossing directions per side: add rungs trigger on adverse moves,
// the cut rung on favorable ones.
func addRungDir(side model.Side) float64 {
	if side.IsLong() {
		return -1
	}

	return 1
}

func cutRungDir(side model.Side) float64 {
	return -addRungDir(side)
}

// createStopOrder places a STOP_MARKET order, falling back to an immediate
// market order when the exchange reports the stop price already crossed.
func (m *PositionManager) createStopOrder(symbol string, side string, quantity float64, stopPrice float64) (model.FuturesOrder, error) {
	order, err := m.Binance.CreateStopOrder(symbol, side, quantity, stopPrice, false)
	if err == nil {
		return order, nil
	}

	apiError := &model.FuturesApiError{}
	if errors.As(err, &apiError) && apiError.IsStopImmediatelyTriggered() {
		log.Printf("[%s] Stop %f already triggered, falling back to market", symbol, stopPrice)
		return m.Binance.CreateMarketOrder(symbol, side, quantity)
	}

	return model.FuturesOrder{}, err
}

func (m *PositionManager) manageDcaRung(p *model.Position, config model.LadderConfig) error {
	dir := addRungDir(p.Side)

	if p.DcaOrder == nil {
		// the trigger is seeded once and moves only on fills and walks;
		// comparing the live price against a live-recomputed trigger could
		// never cross
		if p.DcaPrice == 0.00 {
			p.DcaPrice = m.Ladder.DcaPrice(*p, config)
			p.DcaPriceFixed = p.DcaPrice
		}

		if !crossed(p.CurrentPrice, p.DcaPrice, config.StopPriceLimitPriceDistance, dir) {
			return nil
		}

		quantity := m.Ladder.DcaQty(*p, config)
		order, err := m.createStopOrder(p.Symbol, p.Side.AddOrderSide(), quantity, p.DcaPrice)
		if err != nil {
			return err
		}

		p.DcaOrder = &order
		p.DcaPriceFixed = p.DcaPrice
		log.Printf("[%s] DCA order %d placed at %f qty %f", p.Symbol, order.OrderId, p.DcaPrice, quantity)

		return nil
	}

	order, err := m.Binance.GetOrder(p.Symbol, p.DcaOrder.OrderId)
	if err != nil {
		return err
	}

	if order.IsFilled() {
		p.FilledDcaOrders = append(p.FilledDcaOrders, order)
		p.DcaOrder = nil
		p.DcaCount++
		p.DcaPendingCounter = 0
		p.AvgPrice = m.Ladder.AvgPrice(*p)
		p.Status = model.StatusDca
		m.refreshTriggers(p, config)
		m.Journal.Append(model.OrderRecordTypeDca, order, nil)
		log.Printf("[%s] DCA fill %d absorbed, avg %f, dcaCount %d", p.Symbol, order.OrderId, p.AvgPrice, p.DcaCount)

		return nil
	}

	if order.IsCanceled() {
		p.DcaOrder = nil
		return nil
	}

	walkDistance := config.StopPriceLimitPriceDistance + config.StopPricesDistance
	if !crossed(p.CurrentPrice, p.DcaPriceFixed, walkDistance, dir) {
		return nil
	}

	if err = m.Binance.CancelOrder(p.Symbol, p.DcaOrder.OrderId); err != nil {
		return err
	}

	p.DcaOrder = nil
	p.DcaPrice = m.Formatter.ToFixed(p.DcaPrice*(1+dir*config.ProfitRatio), p.PricePrecision)
	p.DcaPriceFixed = m.Formatter.ToFixed(p.DcaPriceFixed*(1+dir*config.StopPricesDistance), p.PricePrecision)
	p.DcaPendingCounter++
	log.Printf("[%s] DCA order walked to %f, pending %d", p.Symbol, p.DcaPrice, p.DcaPendingCounter)

	quantity := m.Ladder.DcaQty(*p, config)
	order, err = m.createStopOrder(p.Symbol, p.Side.AddOrderSide(), quantity, p.DcaPrice)
	if err != nil {
		return err
	}

	p.DcaOrder = &order

	return nil
}

func (m *PositionManager) manageCutRung(p *model.Position, config model.LadderConfig) error {
	dir := cutRungDir(p.Side)

	if p.CutOrder == nil {
		// seed when the fill history first allows a cut, then keep the
		// stored trigger until a fill or walk moves it
		if p.CutPrice == nil {
			p.CutPrice = m.Ladder.CutPrice(*p, config)
			if p.CutPrice == nil {
				return nil
			}
			p.CutPriceFixed = p.CutPrice
		}

		if !crossed(p.CurrentPrice, *p.CutPrice, config.StopPriceLimitPriceDistance, dir) {
			return nil
		}

		quantity := m.Ladder.CutQty(*p, config)
		order, err := m.createStopOrder(p.Symbol, p.Side.ReduceOrderSide(), quantity, *p.CutPrice)
		if err != nil {
			return err
		}

		p.CutOrder = &order
		p.CutPriceFixed = p.CutPrice
		log.Printf("[%s] Cut order %d placed at %f qty %f", p.Symbol, order.OrderId, *p.CutPrice, quantity)

		return nil
	}

	order, err := m.Binance.GetOrder(p.Symbol, p.CutOrder.OrderId)
	if err != nil {
		return err
	}

	if order.IsFilled() {
		p.FilledCutOrders = append(p.FilledCutOrders, order)
		p.CutOrder = nil
		p.CutMinusDca++
		p.CutPendingCounter = 0
		p.AvgPrice = m.Ladder.AvgPrice(*p)
		m.refreshTriggers(p, config)
		m.Journal.Append(model.OrderRecordTypeCut, order, nil)
		log.Printf("[%s] Cut fill %d absorbed, avg %f", p.Symbol, order.OrderId, p.AvgPrice)

		return nil
	}

	if order.IsCanceled() {
		p.CutOrder = nil
		return nil
	}

	if p.CutPriceFixed == nil {
		p.CutPriceFixed = p.CutPrice
	}

	walkDistance := config.StopPriceLimitPriceDistance + config.StopPricesDistance
	if !crossed(p.CurrentPrice, *p.CutPriceFixed, walkDistance, dir) {
		return nil
	}

	if err = m.Binance.CancelOrder(p.Symbol, p.CutOrder.OrderId); err != nil {
		return err
	}

	p.CutOrder = nil
	cutPrice := m.Formatter.ToFixed(*p.CutPrice*(1+dir*config.ProfitRatio), p.PricePrecision)
	cutPriceFixed := m.Formatter.ToFixed(*p.CutPriceFixed*(1+dir*config.StopPricesDistance), p.PricePrecision)
	p.CutPrice = &cutPrice
	p.CutPriceFixed = &cutPriceFixed
	p.CutPendingCounter++
	log.Printf("[%s] Cut order walked to %f, pending %d", p.Symbol, cutPrice, p.CutPendingCounter)

	quantity := m.Ladder.CutQty(*p, config)
	order, err = m.createStopOrder(p.Symbol, p.Side.ReduceOrderSide(), quantity, cutPrice)
	if err != nil {
		return err
	}

	p.CutOrder = &order

	return nil
}

func (m *PositionManager) manageChildDcaRung(p *model.Position, config model.LadderConfig) error {
	dir := addRungDir(p.Side)

	if p.ChildDcaOrder == nil {
		if p.ChildDcaPrice == nil {
			p.ChildDcaPrice = m.Ladder.ChildDcaPrice(*p)
			if p.ChildDcaPrice == nil {
				return nil
			}
			p.ChildDcaPriceFixed = p.ChildDcaPrice
		}

		if !crossed(p.CurrentPrice, *p.ChildDcaPrice, config.StopPriceLimitPriceDistance, dir) {
			return nil
		}

		quantity := m.Ladder.ChildDcaQty(*p, config)
		order, err := m.createStopOrder(p.Symbol, p.Side.AddOrderSide(), quantity, *p.ChildDcaPrice)
		if err != nil {
			return err
		}

		p.ChildDcaOrder = &order
		p.ChildDcaPriceFixed = p.ChildDcaPrice
		log.Printf("[%s] Child DCA order %d placed at %f qty %f", p.Symbol, order.OrderId, *p.ChildDcaPrice, quantity)

		return nil
	}

	order, err := m.Binance.GetOrder(p.Symbol, p.ChildDcaOrder.OrderId)
	if err != nil {
		return err
	}

	if order.IsFilled() {
		p.FilledChildDcaOrders = append(p.FilledChildDcaOrders, order)
		p.ChildDcaOrder = nil
		p.CutMinusDca--
		p.ChildDcaPendingCounter = 0
		p.AvgPrice = m.Ladder.AvgPrice(*p)
		m.refreshTriggers(p, config)
		m.Journal.Append(model.OrderRecordTypeChildDca, order, nil)
		log.Printf("[%s] Child DCA fill %d absorbed, avg %f", p.Symbol, order.OrderId, p.AvgPrice)

		return nil
	}

	if order.IsCanceled() {
		p.ChildDcaOrder = nil
		return nil
	}

	if p.ChildDcaPriceFixed == nil {
		p.ChildDcaPriceFixed = p.ChildDcaPrice
	}

	walkDistance := config.StopPriceLimitPriceDistance + config.StopPricesDistance
	if !crossed(p.CurrentPrice, *p.ChildDcaPriceFixed, walkDistance, dir) {
		return nil
	}

	if err = m.Binance.CancelOrder(p.Symbol, p.ChildDcaOrder.OrderId); err != nil {
		return err
	}

	p.ChildDcaOrder = nil
	childDcaPrice := m.Formatter.ToFixed(*p.ChildDcaPrice*(1+dir*config.ProfitRatio), p.PricePrecision)
	childDcaPriceFixed := m.Formatter.ToFixed(*p.ChildDcaPriceFixed*(1+dir*config.StopPricesDistance), p.PricePrecision)
	p.ChildDcaPrice = &childDcaPrice
	p.ChildDcaPriceFixed = &childDcaPriceFixed
	p.ChildDcaPendingCounter++
	log.Printf("[%s] Child DCA order walked to %f, pending %d", p.Symbol, childDcaPrice, p.ChildDcaPendingCounter)

	quantity := m.Ladder.ChildDcaQty(*p, config)
	order, err = m.createStopOrder(p.Symbol, p.Side.AddOrderSide(), quantity, childDcaPrice)
	if err != nil {
		return err
	}

	p.ChildDcaOrder = &order

	return nil
}

// refreshTriggers recomputes the walking trigger prices of rungs without an
// open order after a fill changed the average.
func (m *PositionManager) refreshTriggers(p *model.Position, config model.LadderConfig) {
	if p.DcaOrder == nil {
		p.DcaPrice = m.Ladder.DcaPrice(*p, config)
		p.DcaPriceFixed = p.DcaPrice
	}
	if p.CutOrder == nil {
		p.CutPrice = m.Ladder.CutPrice(*p, config)
		p.CutPriceFixed = p.CutPrice
	}
	if p.ChildDcaOrder == nil {
		p.ChildDcaPrice = m.Ladder.ChildDcaPrice(*p)
		p.ChildDcaPriceFixed = p.ChildDcaPrice
	}
}

// manageManual handles human-managed positions: the ladder never runs, the
// position only mirrors external fills and enforces one stop-loss.
func (m *PositionManager) manageManual(p model.Position, risk model.PositionRisk, config model.LadderConfig) (*model.Position, error) {
	// the exchange is authoritative for a manually traded average
	p.AvgPrice = m.Formatter.ToFixed(risk.EntryPrice, p.PricePrecision)

	if err := m.absorbExternalFills(&p); err != nil {
		return nil, err
	}

	if slPercentage := m.ManualControl.ConsumeStopLoss(p.Symbol); slPercentage != nil {
		p.SlPercentage = slPercentage

		factor := 1 - *slPercentage
		if p.Side.IsShort() {
			factor = 1 + *slPercentage
		}

		slPrice := m.Formatter.ToFixed(p.AvgPrice*factor, p.PricePrecision)
		p.SlPrice = &slPrice
		log.Printf("[%s] Manual stop-loss set at %f (%.2f%%)", p.Symbol, slPrice, *slPercentage*100)
	}

	if p.SlPrice != nil {
		breached := p.Side.IsLong() && p.CurrentPrice < *p.SlPrice ||
			p.Side.IsShort() && p.CurrentPrice > *p.SlPrice

		if breached {
			if err := m.closeAtMarket(&p); err != nil {
				return nil, err
			}

			return nil, nil
		}
	}

	m.updateDisplay(&p, config)

	return &p, nil
}

// absorbExternalFills classifies orders filled outside the bot since the
// position was created, so manual activity still shows up in the journal
// and the filled lists.
func (m *PositionManager) absorbExternalFills(p *model.Position) error {
	orders, err := m.Binance.GetOrders(p.Symbol)
	if err != nil {
		return err
	}

	for _, order := range orders {
		if !order.IsFilled() || order.UpdateTime < p.CreatedAt || m.hasFill(p, order.OrderId) {
			continue
		}

		if order.Side == p.Side.AddOrderSide() {
			p.FilledDcaOrders = append(p.FilledDcaOrders, order)
			m.Journal.Append(model.OrderRecordTypeDca, order, nil)
		} else {
			p.FilledCutOrders = append(p.FilledCutOrders, order)
			m.Journal.Append(model.OrderRecordTypeCut, order, nil)
		}
	}

	return nil
}

func (m *PositionManager) hasFill(p *model.Position, orderId int64) bool {
	for _, order := range p.FilledDcaOrders {
		if order.OrderId == orderId {
			return true
		}
	}
	for _, order := range p.FilledCutOrders {
		if order.OrderId == orderId {
			return true
		}
	}
	for _, order := range p.FilledChildDcaOrders {
		if order.OrderId == orderId {
			return true
		}
	}

	return false
}

// cancelOpenOrders clears every resting rung order, used when switching a
// position to manual management.
func (m *PositionManager) cancelOpenOrders(p *model.Position) error {
	if p.DcaOrder != nil {
		if err := m.Binance.CancelOrder(p.Symbol, p.DcaOrder.OrderId); err != nil {
			return err
		}
		p.DcaOrder = nil
	}
	if p.CutOrder != nil {
		if err := m.Binance.CancelOrder(p.Symbol, p.CutOrder.OrderId); err != nil {
			return err
		}
		p.CutOrder = nil
	}
	if p.ChildDcaOrder != nil {
		if err := m.Binance.CancelOrder(p.Symbol, p.ChildDcaOrder.OrderId); err != nil {
			return err
		}
		p.ChildDcaOrder = nil
	}

	return nil
}

// updateDisplay refreshes the read-only fields shown by the control
// surface.
func (m *PositionManager) updateDisplay(p *model.Position, config model.LadderConfig) {
	unrealized := (p.CurrentPrice - p.AvgPrice) * p.RemainingQty()
	if p.Side.IsShort() {
		unrealized = -unrealized
	}
	p.CalcProfit = m.Formatter.ToFixed(unrealized, 2)
	p.PriceChange = m.Formatter.PercentChange(p.CurrentPrice, p.AvgPrice)
	p.ElapsedTime = p.Elapsed(time.Now())

	m.Ladder.UpdateStopDisplay(p, config)
	m.Ladder.UpdateDistances(p, config)
}
