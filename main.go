package main

import (
	"context"
	"database/sql"
	"fmt"
	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gitlab.com/open-soft/go-futures-bot/src/client"
	"gitlab.com/open-soft/go-futures-bot/src/controller"
	"gitlab.com/open-soft/go-futures-bot/src/model"
	"gitlab.com/open-soft/go-futures-bot/src/repository"
	"gitlab.com/open-soft/go-futures-bot/src/service"
	"gitlab.com/open-soft/go-futures-bot/src/service/exchange"
	"gitlab.com/open-soft/go-futures-bot/src/utils"
	"log"
	"net/http"
	"os"
	"time"
)

// watchdogStaleness is how long the process may go without a tick or a
// streamed price before it exits and lets the supervisor restart it.
const watchdogStaleness = time.Minute * 5

func main() {
	pwd, _ := os.Getwd()
	if _, err := os.Stat(fmt.Sprintf("%s/.env", pwd)); err == nil {
		log.Println(".env is found, loading variables...")
		err = godotenv.Load()
		if err != nil {
			log.Println(err)
		}
	}

	db, err := sql.Open("mysql", os.Getenv("DATABASE_DSN")) // root:go_futures_bot@tcp(mysql:3306)/go_futures_bot
	if err != nil {
		log.Fatal(fmt.Sprintf("MySQL can't connect: %s", err.Error()))
	}
	defer db.Close()

	db.SetMaxIdleConns(64)
	db.SetMaxOpenConns(64)
	db.SetConnMaxLifetime(time.Minute)

	var ctx = context.Background()
	rdb := redis.NewClient(&redis.Options{
		Addr:     os.Getenv("REDIS_DSN"), // "redis:6379"
		Password: "",
		DB:       0,
	})

	botRepository := repository.BotRepository{
		DB:  db,
		RDB: rdb,
		Ctx: &ctx,
	}

	currentBot := botRepository.GetCurrentBot()
	if currentBot == nil {
		botUuid := os.Getenv("BOT_UUID")
		err = botRepository.Create(model.Bot{BotUuid: botUuid})
		if err != nil {
			panic(err)
		}

		currentBot = botRepository.GetCurrentBot()
		if currentBot == nil {
			panic(fmt.Sprintf("Can't initialize bot: %s", botUuid))
		}
	}

	log.Printf("Bot [%s] is initialized successfully", currentBot.BotUuid)

	httpClient := http.Client{}
	binance := client.BinanceFutures{
		ApiKey:         os.Getenv("BINANCE_API_KEY"),
		ApiSecret:      os.Getenv("BINANCE_API_SECRET"),
		DestinationURI: os.Getenv("BINANCE_API_DSN"), // "https://fapi.binance.com"
		HttpClient:     &httpClient,
	}

	formatter := utils.Formatter{}

	configRepository := repository.ConfigRepository{
		DB:         db,
		RDB:        rdb,
		Ctx:        &ctx,
		CurrentBot: currentBot,
	}
	snapshotRepository := repository.SnapshotRepository{
		DB:         db,
		RDB:        rdb,
		Ctx:        &ctx,
		CurrentBot: currentBot,
	}

	callbackManager := service.CallbackManager{
		AutoTradeHost: "https://api.autotrade.cloud",
	}

	priceWatcher := exchange.PriceWatcher{
		StreamDsn:    os.Getenv("BINANCE_STREAM_DSN"), // "wss://fstream.binance.com"
		EventChannel: make(chan []byte),
	}

	ladder := exchange.Ladder{Formatter: &formatter}
	journal := exchange.OrderJournal{Formatter: &formatter}
	manualControl := exchange.ManualControl{}

	balanceService := exchange.BalanceService{
		Binance:    &binance,
		RDB:        rdb,
		Ctx:        &ctx,
		CurrentBot: currentBot,
		Formatter:  &formatter,
	}

	positionManager := exchange.PositionManager{
		Binance:         &binance,
		PriceWatcher:    &priceWatcher,
		Ladder:          &ladder,
		Journal:         &journal,
		CallbackManager: &callbackManager,
		ManualControl:   &manualControl,
		CurrentBot:      currentBot,
		Formatter:       &formatter,
	}

	admission := exchange.Admission{
		Binance:         &binance,
		Ladder:          &ladder,
		Journal:         &journal,
		CallbackManager: &callbackManager,
		CurrentBot:      currentBot,
		Formatter:       &formatter,
	}

	reconciler := exchange.Reconciler{
		Binance:            &binance,
		PriceWatcher:       &priceWatcher,
		PositionManager:    &positionManager,
		Admission:          &admission,
		BalanceService:     &balanceService,
		Journal:            &journal,
		SnapshotRepository: &snapshotRepository,
		ConfigRepository:   &configRepository,
		Ladder:             &ladder,
		Interval:           time.Second * 5,
	}

	if err = reconciler.Bootstrap(); err != nil {
		log.Fatal(fmt.Sprintf("Bootstrap failed: %s", err.Error()))
	}

	positionController := controller.PositionController{
		CurrentBot:       currentBot,
		Reconciler:       &reconciler,
		Journal:          &journal,
		ManualControl:    &manualControl,
		Ladder:           &ladder,
		ConfigRepository: &configRepository,
		Binance:          &binance,
	}

	http.HandleFunc("/position/list", positionController.GetPositionListAction)
	http.HandleFunc("/position/exchange/list", positionController.GetExchangePositionListAction)
	http.HandleFunc("/position/manual", positionController.ManualAction)
	http.HandleFunc("/position/sl", positionController.StopLossAction)
	http.HandleFunc("/position/long", positionController.OpenLongAction)
	http.HandleFunc("/position/short", positionController.OpenShortAction)
	http.HandleFunc("/order/list", positionController.GetOrderListAction)
	http.HandleFunc("/price/change/list", positionController.GetPriceChangeListAction)
	http.HandleFunc("/balance", positionController.GetBalanceAction)
	http.HandleFunc("/config", positionController.ConfigAction)

	go reconciler.Run()

	go func() {
		for {
			time.Sleep(time.Minute)

			lastTick := reconciler.LastTick()
			lastPrice := priceWatcher.LastEvent()

			if time.Since(lastTick) > watchdogStaleness || time.Since(lastPrice) > watchdogStaleness {
				log.Printf("RESET APP: last tick %s, last price event %s", lastTick, lastPrice)
				os.Exit(1)
			}
		}
	}()

	err = http.ListenAndServe(":8080", nil)
	if err != nil {
		log.Fatal(err)
	}
}
