package controller

import (
	"encoding/json"
	"fmt"
	"gitlab.com/open-soft/go-futures-bot/src/client"
	"gitlab.com/open-soft/go-futures-bot/src/model"
	"gitlab.com/open-soft/go-futures-bot/src/repository"
	"gitlab.com/open-soft/go-futures-bot/src/service/exchange"
	"net/http"
)

type PositionController struct {
	CurrentBot       *model.Bot
	Reconciler       *exchange.Reconciler
	Journal          *exchange.OrderJournal
	ManualControl    *exchange.ManualControl
	Ladder           *exchange.Ladder
	ConfigRepository repository.ConfigRepositoryInterface
	Binance          client.FuturesAPIInterface
}

func (p *PositionController) corsHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Content-Type", "application/json")
}

func (p *PositionController) GetPositionListAction(w http.ResponseWriter, req *http.Request) {
	p.corsHeaders(w)

	if req.Method == "OPTIONS" {
		fmt.Fprintf(w, "OK")
		return
	}

	if req.Method != "GET" {
		http.Error(w, "Only GET method is allowed", http.StatusMethodNotAllowed)

		return
	}

	encoded, _ := json.Marshal(p.Reconciler.GetPositions())
	fmt.Fprintf(w, string(encoded))
}

func (p *PositionController) GetOrderListAction(w http.ResponseWriter, req *http.Request) {
	p.corsHeaders(w)

	if req.Method == "OPTIONS" {
		fmt.Fprintf(w, "OK")
		return
	}

	if req.Method != "GET" {
		http.Error(w, "Only GET method is allowed", http.StatusMethodNotAllowed)

		return
	}

	encoded, _ := json.Marshal(p.Journal.List())
	fmt.Fprintf(w, string(encoded))
}

func (p *PositionController) GetPriceChangeListAction(w http.ResponseWriter, req *http.Request) {
	p.corsHeaders(w)

	if req.Method == "OPTIONS" {
		fmt.Fprintf(w, "OK")
		return
	}

	if req.Method != "GET" {
		http.Error(w, "Only GET method is allowed", http.StatusMethodNotAllowed)

		return
	}

	encoded, _ := json.Marshal(p.Reconciler.GetPriceChanges())
	fmt.Fprintf(w, string(encoded))
}

func (p *PositionController) GetBalanceAction(w http.ResponseWriter, req *http.Request) {
	p.corsHeaders(w)

	if req.Method == "OPTIONS" {
		fmt.Fprintf(w, "OK")
		return
	}

	if req.Method != "GET" {
		http.Error(w, "Only GET method is allowed", http.StatusMethodNotAllowed)

		return
	}

	encoded, _ := json.Marshal(map[string]float64{"usd": p.Reconciler.GetUsd()})
	fmt.Fprintf(w, string(encoded))
}

// GetExchangePositionListAction is a raw passthrough of the
// exchange-reported position list.
func (p *PositionController) GetExchangePositionListAction(w http.ResponseWriter, req *http.Request) {
	p.corsHeaders(w)

	if req.Method == "OPTIONS" {
		fmt.Fprintf(w, "OK")
		return
	}

	if req.Method != "GET" {
		http.Error(w, "Only GET method is allowed", http.StatusMethodNotAllowed)

		return
	}

	positions, err := p.Binance.GetPositions()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)

		return
	}

	encoded, _ := json.Marshal(positions)
	fmt.Fprintf(w, string(encoded))
}

// ConfigAction reads the ladder configuration on GET and replaces it on
// POST. The new configuration takes effect on the next tick.
func (p *PositionController) ConfigAction(w http.ResponseWriter, req *http.Request) {
	p.corsHeaders(w)

	if req.Method == "OPTIONS" {
		fmt.Fprintf(w, "OK")
		return
	}

	if req.Method == "GET" {
		config := p.ConfigRepository.GetLadderConfig()
		config.Usd = p.Reconciler.GetUsd()

		encoded, _ := json.Marshal(config)
		fmt.Fprintf(w, string(encoded))

		return
	}

	if req.Method != "POST" {
		http.Error(w, "Only GET and POST methods are allowed", http.StatusMethodNotAllowed)

		return
	}

	botUuid := req.URL.Query().Get("botUuid")

	if botUuid != p.CurrentBot.BotUuid {
		http.Error(w, "Forbidden", http.StatusForbidden)

		return
	}

	var config model.LadderConfig

	err := json.NewDecoder(req.Body).Decode(&config)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	if err = p.ConfigRepository.UpdateLadderConfig(config); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	encoded, _ := json.Marshal(config)
	fmt.Fprintf(w, string(encoded))
}

// ManualAction flags a position for manual management on the next tick.
func (p *PositionController) ManualAction(w http.ResponseWriter, req *http.Request) {
	p.corsHeaders(w)

	if req.Method == "OPTIONS" {
		fmt.Fprintf(w, "OK")
		return
	}

	if req.Method != "POST" {
		http.Error(w, "Only POST method is allowed", http.StatusMethodNotAllowed)

		return
	}

	botUuid := req.URL.Query().Get("botUuid")

	if botUuid != p.CurrentBot.BotUuid {
		http.Error(w, "Forbidden", http.StatusForbidden)

		return
	}

	symbol := req.URL.Query().Get("symbol")
	if symbol == "" {
		http.Error(w, "Symbol is required", http.StatusBadRequest)

		return
	}

	p.ManualControl.RequestManual(symbol)
	fmt.Fprintf(w, "OK")
}

type stopLossRequest struct {
	Symbol string  `json:"symbol"`
	Sl     float64 `json:"sl"`
}

// StopLossAction sets the stop-loss percentage of a manual position.
func (p *PositionController) StopLossAction(w http.ResponseWriter, req *http.Request) {
	p.corsHeaders(w)

	if req.Method == "OPTIONS" {
		fmt.Fprintf(w, "OK")
		return
	}

	if req.Method != "POST" {
		http.Error(w, "Only POST method is allowed", http.StatusMethodNotAllowed)

		return
	}

	botUuid := req.URL.Query().Get("botUuid")

	if botUuid != p.CurrentBot.BotUuid {
		http.Error(w, "Forbidden", http.StatusForbidden)

		return
	}

	var request stopLossRequest

	err := json.NewDecoder(req.Body).Decode(&request)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	if request.Symbol == "" || request.Sl <= 0 {
		http.Error(w, "Symbol and positive sl are required", http.StatusBadRequest)

		return
	}

	p.ManualControl.SetStopLoss(request.Symbol, request.Sl)
	fmt.Fprintf(w, "OK")
}

// OpenLongAction and OpenShortAction open a position by hand, bypassing
// the admission ranking. The new exposure is picked up by the
// reconciliation diff.
func (p *PositionController) OpenLongAction(w http.ResponseWriter, req *http.Request) {
	p.openPosition(w, req, model.Side(model.SideLong))
}

func (p *PositionController) OpenShortAction(w http.ResponseWriter, req *http.Request) {
	p.openPosition(w, req, model.Side(model.SideShort))
}

func (p *PositionController) openPosition(w http.ResponseWriter, req *http.Request, side model.Side) {
	p.corsHeaders(w)

	if req.Method == "OPTIONS" {
		fmt.Fprintf(w, "OK")
		return
	}

	if req.Method != "POST" {
		http.Error(w, "Only POST method is allowed", http.StatusMethodNotAllowed)

		return
	}

	botUuid := req.URL.Query().Get("botUuid")

	if botUuid != p.CurrentBot.BotUuid {
		http.Error(w, "Forbidden", http.StatusForbidden)

		return
	}

	symbol := req.URL.Query().Get("symbol")
	if symbol == "" {
		http.Error(w, "Symbol is required", http.StatusBadRequest)

		return
	}

	precision, ok := p.Reconciler.GetPrecision(symbol)
	if !ok {
		http.Error(w, "Unknown symbol", http.StatusBadRequest)

		return
	}

	price, err := p.Binance.GetPrice(symbol)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)

		return
	}

	config := p.ConfigRepository.GetLadderConfig()

	quantity, err := p.Ladder.EntryQty(price, precision, config)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	order, err := p.Binance.CreateMarketOrder(symbol, side.AddOrderSide(), quantity)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)

		return
	}

	p.Journal.Append(model.OrderRecordTypeEntry, order, nil)

	encoded, _ := json.Marshal(order)
	fmt.Fprintf(w, string(encoded))
}
