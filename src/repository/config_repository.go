package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"github.com/redis/go-redis/v9"
	"gitlab.com/open-soft/go-futures-bot/src/model"
	"log"
	"time"
)

type ConfigRepositoryInterface interface {
	GetLadderConfig() model.LadderConfig
	UpdateLadderConfig(config model.LadderConfig) error
}

type ConfigRepository struct {
	DB         *sql.DB
	RDB        *redis.Client
	Ctx        *context.Context
	CurrentBot *model.Bot
}

// GetLadderConfig reads the ladder configuration row for the current bot,
// creating it with defaults on first run.
func (c *ConfigRepository) GetLadderConfig() model.LadderConfig {
	cached := c.RDB.Get(*c.Ctx, c.getConfigCacheKey()).Val()

	if len(cached) > 0 {
		var config model.LadderConfig
		if err := json.Unmarshal([]byte(cached), &config); err == nil {
			return config
		}
	}

	var config model.LadderConfig

	err := c.DB.QueryRow(`
		SELECT lc.config as Config
		FROM ladder_configs lc
		WHERE lc.bot_id = ?`, c.CurrentBot.Id,
	).Scan(&config)

	if err != nil {
		log.Println(err)
		config = model.DefaultLadderConfig()

		_, err = c.DB.Exec(
			`INSERT INTO ladder_configs SET bot_id = ?, config = ?`,
			c.CurrentBot.Id,
			config,
		)
		if err != nil {
			log.Println(err)
		}
	}

	if encoded, err := json.Marshal(config); err == nil {
		c.RDB.Set(*c.Ctx, c.getConfigCacheKey(), string(encoded), time.Minute)
	}

	return config
}

func (c *ConfigRepository) UpdateLadderConfig(config model.LadderConfig) error {
	_, err := c.DB.Exec(`
		UPDATE ladder_configs lc SET lc.config = ?
		WHERE lc.bot_id = ?`,
		config,
		c.CurrentBot.Id,
	)

	if err != nil {
		log.Println(err)
		return err
	}

	c.RDB.Del(*c.Ctx, c.getConfigCacheKey())

	return nil
}

func (c *ConfigRepository) getConfigCacheKey() string {
	return fmt.Sprintf("ladder-config-%d", c.CurrentBot.Id)
}
