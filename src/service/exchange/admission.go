package exchange

import (
	"gitlab.com/open-soft/go-futures-bot/src/client"
	"gitlab.com/open-soft/go-futures-bot/src/model"
	"gitlab.com/open-soft/go-futures-bot/src/service"
	"gitlab.com/open-soft/go-futures-bot/src/utils"
	"log"
	"sort"
	"strings"
)

const admissionLongThreshold = -10.00
const admissionShortThreshold = 10.00

// reference symbols and quote assets never traded by the ladder
var admissionDenylist = []string{"BTCUSDT", "ETHUSDT", "BTCDOMUSDT"}

type AdmissionInterface interface {
	Run(positions []model.Position, precisions map[string]model.SymbolPrecision, config model.LadderConfig) []model.PriceChange
}

// Admission opens new positions while the per-side risky-position caps
// leave room, picking candidates from the 24h percent-change extremes.
// A position counts as risky until its trailing stop exists.
type Admission struct {
	Binance         client.FuturesAPIInterface
	Ladder          *Ladder
	Journal         OrderJournalInterface
	CallbackManager service.CallbackManagerInterface
	CurrentBot      *model.Bot
	Formatter       *utils.Formatter
}

// Run opens market entries for the best candidates of each side and
// returns the price-change extremes for display. Freshly opened exposures
// are picked up by the reconciliation diff on the same tick.
func (a *Admission) Run(positions []model.Position, precisions map[string]model.SymbolPrecision, config model.LadderConfig) []model.PriceChange {
	changes, err := a.Binance.GetPriceChange()
	if err != nil {
		log.Printf("Admission: price change listing failed: %s", err.Error())
		return nil
	}

	held := make(map[string]bool)
	riskyLong := 0
	riskyShort := 0

	for _, position := range positions {
		held[position.Symbol] = true

		if !position.IsRisky() {
			continue
		}

		if position.Side.IsLong() {
			riskyLong++
		} else {
			riskyShort++
		}
	}

	longCandidates := make([]model.PriceChange, 0)
	shortCandidates := make([]model.PriceChange, 0)

	for _, change := range changes {
		if !a.tradable(change.Symbol) || held[change.Symbol] {
			continue
		}

		if change.PriceChangePercent < admissionLongThreshold {
			longCandidates = append(longCandidates, change)
		}
		if change.PriceChangePercent > admissionShortThreshold {
			shortCandidates = append(shortCandidates, change)
		}
	}

	// most extreme movers first
	sort.Slice(longCandidates, func(i, j int) bool {
		return longCandidates[i].PriceChangePercent < longCandidates[j].PriceChangePercent
	})
	sort.Slice(shortCandidates, func(i, j int) bool {
		return shortCandidates[i].PriceChangePercent > shortCandidates[j].PriceChangePercent
	})

	a.open(model.SideLong, longCandidates, config.LongNumPos-riskyLong, precisions, config)
	a.open(model.SideShort, shortCandidates, config.ShortNumPos-riskyShort, precisions, config)

	return a.extremes(changes)
}

func (a *Admission) tradable(symbol string) bool {
	if !strings.HasSuffix(symbol, "USDT") || strings.Contains(symbol, "BUSD") {
		return false
	}

	for _, denied := range admissionDenylist {
		if symbol == denied {
			return false
		}
	}

	return true
}

// open admits up to slots candidates, one market entry each. A failing
// candidate is skipped, never retried within the tick.
func (a *Admission) open(side model.Side, candidates []model.PriceChange, slots int, precisions map[string]model.SymbolPrecision, config model.LadderConfig) {
	for _, candidate := range candidates {
		if slots <= 0 {
			return
		}

		precision, ok := precisions[candidate.Symbol]
		if !ok {
			continue
		}

		quantity, err := a.Ladder.EntryQty(candidate.LastPrice, precision, config)
		if err != nil {
			log.Printf("[%s] Admission skipped: %s", candidate.Symbol, err.Error())
			continue
		}

		order, err := a.Binance.CreateMarketOrder(candidate.Symbol, side.AddOrderSide(), quantity)
		if err != nil {
			log.Printf("[%s] Admission entry failed: %s", candidate.Symbol, err.Error())
			continue
		}

		a.Journal.Append(model.OrderRecordTypeEntry, order, nil)
		a.CallbackManager.Order(*a.CurrentBot, order, string(side)+" opened")
		log.Printf("[%s] Opened %s, 24h change %.1f%%, qty %f", candidate.Symbol, side, candidate.PriceChangePercent, quantity)

		slots--
	}
}

// extremes is the top and bottom ten of the 24h ranking, for the control
// surface.
func (a *Admission) extremes(changes []model.PriceChange) []model.PriceChange {
	tradable := make([]model.PriceChange, 0, len(changes))
	for _, change := range changes {
		if a.tradable(change.Symbol) {
			tradable = append(tradable, change)
		}
	}

	sort.Slice(tradable, func(i, j int) bool {
		return tradable[i].PriceChangePercent > tradable[j].PriceChangePercent
	})

	if len(tradable) <= 20 {
		return tradable
	}

	extremes := make([]model.PriceChange, 0, 20)
	extremes = append(extremes, tradable[:10]...)
	extremes = append(extremes, tradable[len(tradable)-10:]...)

	return extremes
}
