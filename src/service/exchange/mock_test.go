package exchange

import (
	"github.com/stretchr/testify/mock"
	"gitlab.com/open-soft/go-futures-bot/src/model"
)

type FuturesAPIMock struct {
	mock.Mock
}

func (m *FuturesAPIMock) CreateMarketOrder(symbol string, side string, quantity float64) (model.FuturesOrder, error) {
	args := m.Called(symbol, side, quantity)
	return args.Get(0).(model.FuturesOrder), args.Error(1)
}
func (m *FuturesAPIMock) CreateStopOrder(symbol string, side string, quantity float64, stopPrice float64, closePosition bool) (model.FuturesOrder, error) {
	args := m.Called(symbol, side, quantity, stopPrice, closePosition)
	return args.Get(0).(model.FuturesOrder), args.Error(1)
}
func (m *FuturesAPIMock) CancelOrder(symbol string, orderId int64) error {
	args := m.Called(symbol, orderId)
	return args.Error(0)
}
func (m *FuturesAPIMock) GetOrder(symbol string, orderId int64) (model.FuturesOrder, error) {
	args := m.Called(symbol, orderId)
	return args.Get(0).(model.FuturesOrder), args.Error(1)
}
func (m *FuturesAPIMock) GetOrders(symbol string) ([]model.FuturesOrder, error) {
	args := m.Called(symbol)
	return args.Get(0).([]model.FuturesOrder), args.Error(1)
}
func (m *FuturesAPIMock) GetPrice(symbol string) (float64, error) {
	args := m.Called(symbol)
	return args.Get(0).(float64), args.Error(1)
}
func (m *FuturesAPIMock) GetPriceChange() ([]model.PriceChange, error) {
	args := m.Called()
	return args.Get(0).([]model.PriceChange), args.Error(1)
}
func (m *FuturesAPIMock) GetPrecisions() (map[string]model.SymbolPrecision, error) {
	args := m.Called()
	return args.Get(0).(map[string]model.SymbolPrecision), args.Error(1)
}
func (m *FuturesAPIMock) GetPositions() ([]model.PositionRisk, error) {
	args := m.Called()
	return args.Get(0).([]model.PositionRisk), args.Error(1)
}
func (m *FuturesAPIMock) GetBalance() ([]model.FuturesBalance, error) {
	args := m.Called()
	return args.Get(0).([]model.FuturesBalance), args.Error(1)
}

type PriceWatcherMock struct {
	mock.Mock
}

func (m *PriceWatcherMock) GetPrice(symbol string) float64 {
	args := m.Called(symbol)
	return args.Get(0).(float64)
}

type CallbackManagerMock struct {
	mock.Mock
}

func (m *CallbackManagerMock) Error(bot model.Bot, code string, message string, stop bool) {
	m.Called(bot, code, message, stop)
}
func (m *CallbackManagerMock) Order(bot model.Bot, order model.FuturesOrder, details string) {
	m.Called(bot, order, details)
}

type BalanceServiceMock struct {
	mock.Mock
}

func (m *BalanceServiceMock) GetUsdValue() (float64, error) {
	args := m.Called()
	return args.Get(0).(float64), args.Error(1)
}
func (m *BalanceServiceMock) InvalidateBalanceCache() {
	m.Called()
}

type AdmissionMock struct {
	mock.Mock
}

func (m *AdmissionMock) Run(positions []model.Position, precisions map[string]model.SymbolPrecision, config model.LadderConfig) []model.PriceChange {
	args := m.Called(positions, precisions, config)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]model.PriceChange)
}

type ConfigRepositoryMock struct {
	mock.Mock
}

func (m *ConfigRepositoryMock) GetLadderConfig() model.LadderConfig {
	args := m.Called()
	return args.Get(0).(model.LadderConfig)
}
func (m *ConfigRepositoryMock) UpdateLadderConfig(config model.LadderConfig) error {
	args := m.Called(config)
	return args.Error(0)
}

type SnapshotRepositoryMock struct {
	mock.Mock

	savedPositions []model.Position
	savedRecords   []model.OrderRecord
}

func (m *SnapshotRepositoryMock) GetSnapshot() ([]model.Position, []model.OrderRecord) {
	args := m.Called()
	return args.Get(0).([]model.Position), args.Get(1).([]model.OrderRecord)
}
func (m *SnapshotRepositoryMock) SavePositions(positions []model.Position) error {
	m.savedPositions = positions
	args := m.Called(positions)
	return args.Error(0)
}
func (m *SnapshotRepositoryMock) SaveOrderRecords(records []model.OrderRecord) error {
	m.savedRecords = records
	args := m.Called(records)
	return args.Error(0)
}

// advanceEchoMock returns every position unchanged, as a tick with no
// market movement would.
type advanceEchoMock struct {
	advanced []string
}

func (m *advanceEchoMock) Advance(position model.Position, risk model.PositionRisk, config model.LadderConfig) (*model.Position, error) {
	m.advanced = append(m.advanced, position.Symbol)
	return &position, nil
}
