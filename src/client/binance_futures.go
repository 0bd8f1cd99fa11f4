package client

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"gitlab.com/open-soft/go-futures-bot/src/model"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

type ExchangeOrderAPIInterface interface {
	CreateMarketOrder(symbol string, side string, quantity float64) (model.FuturesOrder, error)
	CreateStopOrder(symbol string, side string, quantity float64, stopPrice float64, closePosition bool) (model.FuturesOrder, error)
	CancelOrder(symbol string, orderId int64) error
	GetOrder(symbol string, orderId int64) (model.FuturesOrder, error)
	GetOrders(symbol string) ([]model.FuturesOrder, error)
}

type ExchangeMarketAPIInterface interface {
	GetPrice(symbol string) (float64, error)
	GetPriceChange() ([]model.PriceChange, error)
	GetPrecisions() (map[string]model.SymbolPrecision, error)
	GetPositions() ([]model.PositionRisk, error)
	GetBalance() ([]model.FuturesBalance, error)
}

type FuturesAPIInterface interface {
	ExchangeOrderAPIInterface
	ExchangeMarketAPIInterface
}

type BinanceFutures struct {
	ApiKey         string
	ApiSecret      string
	DestinationURI string

	HttpClient *http.Client
	RetryDelay time.Duration
}

// request performs a signed or public fapi call. Transport failures, 502
// responses, 429 rate limits and timestamp desync (-1021) are retried in
// place with a delay, invisible to the caller. All other exchange errors
// surface as *model.FuturesApiError.
func (b *BinanceFutures) request(method string, path string, params map[string]string, signed bool) ([]byte, error) {
	retryDelay := b.RetryDelay
	if retryDelay == 0 {
		retryDelay = time.Second
	}

	for {
		query := b.buildQuery(params, signed)

		req, err := http.NewRequest(method, fmt.Sprintf("%s%s?%s", b.DestinationURI, path, query), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-MBX-APIKEY", b.ApiKey)

		res, err := b.HttpClient.Do(req)
		if err != nil {
			log.Printf("Binance [%s %s]: %s, wait and retry...", method, path, err.Error())
			time.Sleep(retryDelay)
			continue
		}

		body, err := io.ReadAll(res.Body)
		_ = res.Body.Close()
		if err != nil {
			time.Sleep(retryDelay)
			continue
		}

		if res.StatusCode < 400 {
			return body, nil
		}

		if res.StatusCode == http.StatusBadGateway || res.StatusCode == http.StatusTooManyRequests {
			log.Printf("Binance [%s %s]: status %d, wait and retry...", method, path, res.StatusCode)
			time.Sleep(retryDelay)
			continue
		}

		apiError := &model.FuturesApiError{}
		if unmarshalErr := json.Unmarshal(body, apiError); unmarshalErr != nil {
			return nil, errors.New(fmt.Sprintf("request [%s %s] failed with status %d", method, path, res.StatusCode))
		}

		if apiError.IsInvalidTimestamp() {
			time.Sleep(retryDelay)
			continue
		}

		return nil, apiError
	}
}

func (b *BinanceFutures) buildQuery(params map[string]string, signed bool) string {
	values := url.Values{}
	for key, value := range params {
		values.Set(key, value)
	}

	if signed {
		values.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		values.Set("signature", b.signature(values))
	}

	return values.Encode()
}

func (b *BinanceFutures) signature(values url.Values) string {
	parts := make([]string, 0)

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", key, values.Get(key)))
	}

	mac := hmac.New(sha256.New, []byte(b.ApiSecret))
	mac.Write([]byte(strings.Join(parts, "&")))

	return fmt.Sprintf("%x", mac.Sum(nil))
}

func (b *BinanceFutures) GetPrecisions() (map[string]model.SymbolPrecision, error) {
	body, err := b.request("GET", "/fapi/v1/exchangeInfo", map[string]string{}, false)
	if err != nil {
		return nil, err
	}

	var info model.ExchangeInfo
	if err = json.Unmarshal(body, &info); err != nil {
		return nil, err
	}

	precisions := make(map[string]model.SymbolPrecision)
	for _, symbol := range info.Symbols {
		quantityPrecision := 0
		for _, filter := range symbol.Filters {
			if filter.FilterType == model.FilterTypeLotSize {
				quantityPrecision = decimalPlaces(filter.MinQty)
			}
		}

		precisions[symbol.Symbol] = model.SymbolPrecision{
			PricePrecision:    symbol.PricePrecision,
			QuantityPrecision: quantityPrecision,
		}
	}

	return precisions, nil
}

func decimalPlaces(value string) int {
	trimmed := strings.TrimRight(value, "0")
	dot := strings.Index(trimmed, ".")
	if dot == -1 {
		return 0
	}

	return len(trimmed) - dot - 1
}

func (b *BinanceFutures) GetBalance() ([]model.FuturesBalance, error) {
	body, err := b.request("GET", "/fapi/v2/balance", map[string]string{}, true)
	if err != nil {
		return nil, err
	}

	var balances []model.FuturesBalance
	if err = json.Unmarshal(body, &balances); err != nil {
		return nil, err
	}

	return balances, nil
}

func (b *BinanceFutures) GetPositions() ([]model.PositionRisk, error) {
	body, err := b.request("GET", "/fapi/v2/positionRisk", map[string]string{}, true)
	if err != nil {
		return nil, err
	}

	var positions []model.PositionRisk
	if err = json.Unmarshal(body, &positions); err != nil {
		return nil, err
	}

	return positions, nil
}

func (b *BinanceFutures) GetPriceChange() ([]model.PriceChange, error) {
	body, err := b.request("GET", "/fapi/v1/ticker/24hr", map[string]string{}, false)
	if err != nil {
		return nil, err
	}

	var changes []model.PriceChange
	if err = json.Unmarshal(body, &changes); err != nil {
		return nil, err
	}

	return changes, nil
}

// GetPrice returns the order book mid price.
func (b *BinanceFutures) GetPrice(symbol string) (float64, error) {
	body, err := b.request("GET", "/fapi/v1/ticker/bookTicker", map[string]string{"symbol": symbol}, false)
	if err != nil {
		return 0.00, err
	}

	var ticker model.BookTicker
	if err = json.Unmarshal(body, &ticker); err != nil {
		return 0.00, err
	}

	return (ticker.BidPrice + ticker.AskPrice) / 2, nil
}

// GetOrder queries one order. When the exchange no longer knows the id on
// the single-order endpoint it falls back to the order listing; an order
// absent there is returned as a zero value with an empty status.
func (b *BinanceFutures) GetOrder(symbol string, orderId int64) (model.FuturesOrder, error) {
	body, err := b.request("GET", "/fapi/v1/order", map[string]string{
		"symbol":  symbol,
		"orderId": strconv.FormatInt(orderId, 10),
	}, true)

	if err != nil {
		apiError := &model.FuturesApiError{}
		if errors.As(err, &apiError) && apiError.IsUnknownOrder() {
			orders, listErr := b.GetOrders(symbol)
			if listErr != nil {
				return model.FuturesOrder{}, listErr
			}

			for _, order := range orders {
				if order.OrderId == orderId {
					return order, nil
				}
			}

			return model.FuturesOrder{}, nil
		}

		return model.FuturesOrder{}, err
	}

	var order model.FuturesOrder
	if err = json.Unmarshal(body, &order); err != nil {
		return model.FuturesOrder{}, err
	}

	return order, nil
}

func (b *BinanceFutures) GetOrders(symbol string) ([]model.FuturesOrder, error) {
	body, err := b.request("GET", "/fapi/v1/allOrders", map[string]string{"symbol": symbol}, true)
	if err != nil {
		return nil, err
	}

	var orders []model.FuturesOrder
	if err = json.Unmarshal(body, &orders); err != nil {
		return nil, err
	}

	return orders, nil
}

func (b *BinanceFutures) CreateMarketOrder(symbol string, side string, quantity float64) (model.FuturesOrder, error) {
	body, err := b.request("POST", "/fapi/v1/order", map[string]string{
		"symbol":           symbol,
		"side":             side,
		"type":             "MARKET",
		"quantity":         strconv.FormatFloat(quantity, 'f', -1, 64),
		"newOrderRespType": "RESULT",
	}, true)

	if err != nil {
		return model.FuturesOrder{}, err
	}

	var order model.FuturesOrder
	if err = json.Unmarshal(body, &order); err != nil {
		return model.FuturesOrder{}, err
	}

	return order, nil
}

func (b *BinanceFutures) CreateStopOrder(symbol string, side string, quantity float64, stopPrice float64, closePosition bool) (model.FuturesOrder, error) {
	params := map[string]string{
		"symbol":    symbol,
		"side":      side,
		"type":      "STOP_MARKET",
		"stopPrice": strconv.FormatFloat(stopPrice, 'f', -1, 64),
	}

	if closePosition {
		params["closePosition"] = "true"
	} else {
		params["quantity"] = strconv.FormatFloat(quantity, 'f', -1, 64)
	}

	body, err := b.request("POST", "/fapi/v1/order", params, true)
	if err != nil {
		return model.FuturesOrder{}, err
	}

	var order model.FuturesOrder
	if err = json.Unmarshal(body, &order); err != nil {
		return model.FuturesOrder{}, err
	}

	return order, nil
}

// CancelOrder cancels one order. A cancel the exchange rejects because the
// order is already gone is treated as resolved, not an error.
func (b *BinanceFutures) CancelOrder(symbol string, orderId int64) error {
	_, err := b.request("DELETE", "/fapi/v1/order", map[string]string{
		"symbol":  symbol,
		"orderId": strconv.FormatInt(orderId, 10),
	}, true)

	if err != nil {
		apiError := &model.FuturesApiError{}
		if errors.As(err, &apiError) && (apiError.IsCancelRejected() || apiError.IsUnknownOrder()) {
			log.Printf("[%s] Cancel %d: already resolved", symbol, orderId)
			return nil
		}

		return err
	}

	return nil
}
