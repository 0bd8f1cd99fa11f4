package client

import (
	"fmt"
	"github.com/gorilla/websocket"
	"log"
	"strings"
	"time"
)

func GetStreamBatch(symbols []string, events []string) [][]string {
	streamBatch := make([][]string, 0)

	streams := make([]string, 0)

	for _, symbol := range symbols {
		for i := 0; i < len(events); i++ {
			event := events[i]
			streams = append(streams, fmt.Sprintf("%s%s", strings.ToLower(symbol), event))
		}

		if len(streams) >= 24 {
			streamBatch = append(streamBatch, streams)
			streams = make([]string, 0)
		}
	}

	if len(streams) > 0 {
		streamBatch = append(streamBatch, streams)
	}

	return streamBatch
}

// Listen connects to a combined stream endpoint and feeds raw messages
// into the channel. The connection pings every 30 seconds; a missed pong
// or a read error tears the connection down and reconnects, transparently
// to the consumer.
func Listen(address string, eventChannel chan<- []byte, connectionId int64) *websocket.Conn {
	var connection *websocket.Conn

	// a long outage must not grow the stack, keep redialing in place
	for {
		conn, _, err := websocket.DefaultDialer.Dial(address, nil)
		if err != nil {
			log.Printf("Binance [err_1] WS Stream [%s]: %s, wait and reconnect...", address, err.Error())
			time.Sleep(time.Second * 3)
			connectionId++
			continue
		}

		connection = conn
		break
	}

	alive := make(chan struct{}, 1)
	done := make(chan struct{})

	connection.SetPongHandler(func(string) error {
		select {
		case alive <- struct{}{}:
		default:
		}
		return nil
	})

	go func() {
		defer close(done)

		for {
			_, message, err := connection.ReadMessage()
			if err != nil {
				log.Printf("Binance [err_2] WS Stream, read [%s]: %s", address, err.Error())

				_ = connection.Close()
				log.Printf("Binance [err_2] WS Stream, wait and reconnect...")
				time.Sleep(time.Second * 3)
				connectionId++
				Listen(address, eventChannel, connectionId)
				return
			}

			select {
			case alive <- struct{}{}:
			default:
			}

			eventChannel <- message
		}
	}()

	go func() {
		ticker := time.NewTicker(time.Second * 30)
		defer ticker.Stop()

		isAlive := true

		for {
			select {
			case <-done:
				return
			case <-alive:
				isAlive = true
			case <-ticker.C:
				if !isAlive {
					log.Printf("Binance [err_3] WS Stream [%s]: pong missed, reconnecting...", address)
					_ = connection.Close()
					return
				}

				isAlive = false
				_ = connection.WriteMessage(websocket.PingMessage, []byte{})
			}
		}
	}()

	return connection
}
