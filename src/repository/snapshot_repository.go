package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"github.com/redis/go-redis/v9"
	"gitlab.com/open-soft/go-futures-bot/src/model"
	"log"
)

type SnapshotRepositoryInterface interface {
	GetSnapshot() ([]model.Position, []model.OrderRecord)
	SavePositions(positions []model.Position) error
	SaveOrderRecords(records []model.OrderRecord) error
}

// SnapshotRepository persists the managed position set and the order
// journal as whole JSON documents, overwritten after each tick. The last
// written copy is mirrored into Redis for the control surface.
type SnapshotRepository struct {
	DB         *sql.DB
	RDB        *redis.Client
	Ctx        *context.Context
	CurrentBot *model.Bot
}

// GetSnapshot restores the persisted state. Read once at startup; a
// missing or unreadable row yields empty state.
func (s *SnapshotRepository) GetSnapshot() ([]model.Position, []model.OrderRecord) {
	positions := make([]model.Position, 0)
	records := make([]model.OrderRecord, 0)

	var positionsJson []byte
	var recordsJson []byte

	err := s.DB.QueryRow(`
		SELECT sn.positions as Positions, sn.orders as Orders
		FROM snapshots sn
		WHERE sn.bot_id = ?`, s.CurrentBot.Id,
	).Scan(&positionsJson, &recordsJson)

	if err != nil {
		log.Println(err)

		_, err = s.DB.Exec(
			`INSERT INTO snapshots SET bot_id = ?, positions = ?, orders = ?`,
			s.CurrentBot.Id,
			"[]",
			"[]",
		)
		if err != nil {
			log.Println(err)
		}

		return positions, records
	}

	if err = json.Unmarshal(positionsJson, &positions); err != nil {
		log.Println(err)
	}
	if err = json.Unmarshal(recordsJson, &records); err != nil {
		log.Println(err)
	}

	return positions, records
}

func (s *SnapshotRepository) SavePositions(positions []model.Position) error {
	encoded, err := json.Marshal(positions)
	if err != nil {
		return err
	}

	_, err = s.DB.Exec(`
		UPDATE snapshots sn SET sn.positions = ?
		WHERE sn.bot_id = ?`,
		string(encoded),
		s.CurrentBot.Id,
	)

	if err != nil {
		log.Println(err)
		return err
	}

	s.RDB.Set(*s.Ctx, s.getPositionsCacheKey(), string(encoded), 0)

	return nil
}

func (s *SnapshotRepository) SaveOrderRecords(records []model.OrderRecord) error {
	encoded, err := json.Marshal(records)
	if err != nil {
		return err
	}

	_, err = s.DB.Exec(`
		UPDATE snapshots sn SET sn.orders = ?
		WHERE sn.bot_id = ?`,
		string(encoded),
		s.CurrentBot.Id,
	)

	if err != nil {
		log.Println(err)
		return err
	}

	s.RDB.Set(*s.Ctx, s.getOrdersCacheKey(), string(encoded), 0)

	return nil
}

func (s *SnapshotRepository) getPositionsCacheKey() string {
	return fmt.Sprintf("snapshot-positions-%d", s.CurrentBot.Id)
}

func (s *SnapshotRepository) getOrdersCacheKey() string {
	return fmt.Sprintf("snapshot-orders-%d", s.CurrentBot.Id)
}
