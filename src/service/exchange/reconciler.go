package exchange

import (
	"github.com/google/uuid"
	"gitlab.com/open-soft/go-futures-bot/src/client"
	"gitlab.com/open-soft/go-futures-bot/src/model"
	"gitlab.com/open-soft/go-futures-bot/src/repository"
	"log"
	"sync"
	"time"
)

const manualAdmitNotional = 20.00

// Reconciler is the process-wide driver. Every tick it refreshes the
// balance, prunes done positions, runs admission, diffs the tracked set
// against the exchange-reported one and advances every position
// concurrently before persisting a snapshot.
type Reconciler struct {
	Binance            client.FuturesAPIInterface
	PriceWatcher       *PriceWatcher
	PositionManager    PositionManagerInterface
	Admission          AdmissionInterface
	BalanceService     BalanceServiceInterface
	Journal            *OrderJournal
	SnapshotRepository repository.SnapshotRepositoryInterface
	ConfigRepository   repository.ConfigRepositoryInterface
	Ladder             *Ladder

	Interval time.Duration

	Mutex        sync.RWMutex
	Positions    []model.Position
	PriceChanges []model.PriceChange
	Precisions   map[string]model.SymbolPrecision
	Usd          float64
	LastTickAt   time.Time
}

// Bootstrap loads symbol precisions, restores the persisted snapshot and
// starts the price subscriptions. Must succeed before Run.
func (r *Reconciler) Bootstrap() error {
	precisions, err := r.Binance.GetPrecisions()
	if err != nil {
		return err
	}

	positions, records := r.SnapshotRepository.GetSnapshot()
	r.Journal.Restore(records)

	r.Mutex.Lock()
	r.Precisions = precisions
	r.Positions = positions
	r.Mutex.Unlock()

	symbols := make([]string, 0, len(precisions))
	for symbol := range precisions {
		symbols = append(symbols, symbol)
	}
	r.PriceWatcher.Start(symbols)

	log.Printf("Bootstrap done: %d symbols, %d positions, %d journal records", len(symbols), len(positions), len(records))

	return nil
}

// Run ticks forever.
func (r *Reconciler) Run() {
	interval := r.Interval
	if interval == 0 {
		interval = time.Second * 5
	}

	for {
		r.Tick()
		time.Sleep(interval)
	}
}

func (r *Reconciler) Tick() {
	usd, err := r.BalanceService.GetUsdValue()
	if err != nil {
		log.Printf("Balance refresh failed: %s", err.Error())
	}

	config := r.ConfigRepository.GetLadderConfig()

	r.Mutex.RLock()
	positions := make([]model.Position, len(r.Positions))
	copy(positions, r.Positions)
	precisions := r.Precisions
	r.Mutex.RUnlock()

	priceChanges := r.Admission.Run(positions, precisions, config)

	risks, err := r.Binance.GetPositions()
	if err != nil {
		log.Printf("Position listing failed, tick skipped: %s", err.Error())
		return
	}

	positions = append(positions, r.admitUntracked(positions, risks, precisions, config)...)
	positions = r.advanceAll(positions, risks, config)

	r.Mutex.Lock()
	r.Positions = positions
	if priceChanges != nil {
		r.PriceChanges = priceChanges
	}
	r.Usd = usd
	r.LastTickAt = time.Now()
	r.Mutex.Unlock()

	if err = r.SnapshotRepository.SavePositions(positions); err != nil {
		log.Printf("Snapshot save failed: %s", err.Error())
	}

	if records, changed := r.Journal.Flush(); changed {
		if err = r.SnapshotRepository.SaveOrderRecords(records); err != nil {
			log.Printf("Journal save failed: %s", err.Error())
		}
	}
}

// admitUntracked synthesizes local positions for exchange exposures the
// bot does not track yet. Oversized exposures were opened by a human and
// start under manual management.
func (r *Reconciler) admitUntracked(positions []model.Position, risks []model.PositionRisk, precisions map[string]model.SymbolPrecision, config model.LadderConfig) []model.Position {
	tracked := make(map[string]bool)
	for _, position := range positions {
		tracked[position.Symbol] = true
	}

	admitted := make([]model.Position, 0)

	for _, risk := range risks {
		if risk.PositionAmt == 0.00 || tracked[risk.Symbol] || risk.Notional() < config.MinBudget {
			continue
		}

		precision, ok := precisions[risk.Symbol]
		if !ok {
			continue
		}

		position := r.newPosition(risk, precision, config)
		admitted = append(admitted, position)
		log.Printf("[%s] Admitted %s exposure, notional %.2f, status %s", position.Symbol, position.Side, risk.Notional(), position.Status)
	}

	return admitted
}

func (r *Reconciler) newPosition(risk model.PositionRisk, precision model.SymbolPrecision, config model.LadderConfig) model.Position {
	side := risk.PositionSide()

	position := model.Position{
		Id:                uuid.New().String(),
		Symbol:            risk.Symbol,
		Side:              side,
		Status:            model.StatusStart,
		PricePrecision:    precision.PricePrecision,
		QuantityPrecision: precision.QuantityPrecision,
		EntryPrice:        risk.EntryPrice,
		EntryQty:          risk.PositionAmt,
		AvgPrice:          risk.EntryPrice,
		CurrentPrice:      risk.MarkPrice,
		ExchangeAmt:       risk.PositionAmt,
		CreatedAt:         time.Now().UnixMilli(),
	}
	if position.EntryQty < 0 {
		position.EntryQty = -position.EntryQty
	}

	notional := risk.Notional()

	switch {
	case notional > manualAdmitNotional:
		position.Manual = true
	case notional > config.BaseBudget+config.MaxEntryBudgetDiffAllow:
		// larger than any fresh entry, the ladder is already in use
		position.Status = model.StatusDca
	}

	position.DcaPrice = r.Ladder.DcaPrice(position, config)
	position.DcaPriceFixed = position.DcaPrice

	return position
}

// advanceAll runs every position's state machine concurrently. A failed
// advance keeps the prior state for the next tick; a nil result drops the
// position.
func (r *Reconciler) advanceAll(positions []model.Position, risks []model.PositionRisk, config model.LadderConfig) []model.Position {
	riskBySymbol := make(map[string]model.PositionRisk)
	for _, risk := range risks {
		riskBySymbol[risk.Symbol] = risk
	}

	results := make([]*model.Position, len(positions))
	waitGroup := sync.WaitGroup{}

	for index, position := range positions {
		waitGroup.Add(1)

		go func(index int, position model.Position) {
			defer waitGroup.Done()

			advanced, err := r.PositionManager.Advance(position, riskBySymbol[position.Symbol], config)
			if err != nil {
				log.Printf("[%s] Advance failed, retry next tick: %s", position.Symbol, err.Error())
				results[index] = &position
				return
			}

			results[index] = advanced
		}(index, position)
	}

	waitGroup.Wait()

	next := make([]model.Position, 0, len(positions))
	for _, result := range results {
		if result != nil {
			next = append(next, *result)
		}
	}

	return next
}

// GetPositions is a copy of the tracked set for the control surface.
func (r *Reconciler) GetPositions() []model.Position {
	r.Mutex.RLock()
	defer r.Mutex.RUnlock()

	positions := make([]model.Position, len(r.Positions))
	copy(positions, r.Positions)

	return positions
}

func (r *Reconciler) GetPriceChanges() []model.PriceChange {
	r.Mutex.RLock()
	defer r.Mutex.RUnlock()

	changes := make([]model.PriceChange, len(r.PriceChanges))
	copy(changes, r.PriceChanges)

	return changes
}

func (r *Reconciler) GetUsd() float64 {
	r.Mutex.RLock()
	defer r.Mutex.RUnlock()

	return r.Usd
}

func (r *Reconciler) GetPrecision(symbol string) (model.SymbolPrecision, bool) {
	r.Mutex.RLock()
	defer r.Mutex.RUnlock()

	precision, ok := r.Precisions[symbol]

	return precision, ok
}

// LastTick feeds the process liveness watchdog.
func (r *Reconciler) LastTick() time.Time {
	r.Mutex.RLock()
	defer r.Mutex.RUnlock()

	return r.LastTickAt
}
