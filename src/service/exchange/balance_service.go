package exchange

import (
	"context"
	"fmt"
	"github.com/redis/go-redis/v9"
	"gitlab.com/open-soft/go-futures-bot/src/client"
	"gitlab.com/open-soft/go-futures-bot/src/model"
	"gitlab.com/open-soft/go-futures-bot/src/utils"
	"strconv"
	"time"
)

type BalanceServiceInterface interface {
	GetUsdValue() (float64, error)
	InvalidateBalanceCache()
}

// BalanceService values the futures wallet in USD: the USDT balance with
// unrealized cross PnL plus the BNB fee balance at its mark price.
type BalanceService struct {
	Binance    client.ExchangeMarketAPIInterface
	RDB        *redis.Client
	Ctx        *context.Context
	CurrentBot *model.Bot
	Formatter  *utils.Formatter
}

func (b *BalanceService) GetUsdValue() (float64, error) {
	cached := b.RDB.Get(*b.Ctx, b.getCacheKey()).Val()

	if len(cached) > 0 {
		value, err := strconv.ParseFloat(cached, 64)
		if err == nil {
			return value, nil
		}
	}

	balances, err := b.Binance.GetBalance()
	if err != nil {
		return 0.00, err
	}

	usdValue := 0.00
	for _, balance := range balances {
		switch balance.Asset {
		case "USDT":
			usdValue += balance.Balance + balance.CrossUnPnl
		case "BNB":
			if balance.Balance == 0.00 {
				continue
			}

			bnbPrice, priceErr := b.Binance.GetPrice("BNBUSDT")
			if priceErr != nil {
				return 0.00, priceErr
			}
			usdValue += balance.Balance * bnbPrice
		}
	}

	usdValue = b.Formatter.ToFixed(usdValue, 1)
	b.RDB.Set(*b.Ctx, b.getCacheKey(), fmt.Sprintf("%f", usdValue), time.Minute)

	return usdValue, nil
}

func (b *BalanceService) InvalidateBalanceCache() {
	b.RDB.Del(*b.Ctx, b.getCacheKey())
}

func (b *BalanceService) getCacheKey() string {
	return fmt.Sprintf("balance-usd-%d", b.CurrentBot.Id)
}
