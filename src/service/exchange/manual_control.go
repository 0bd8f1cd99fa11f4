package exchange

import (
	"sync"
)

type ManualControlInterface interface {
	RequestManual(symbol string)
	ConsumeManual(symbol string) bool
	SetStopLoss(symbol string, percentage float64)
	ConsumeStopLoss(symbol string) *float64
}

// ManualControl buffers operator requests from the HTTP surface until the
// next reconciliation tick picks them up.
type ManualControl struct {
	Mutex      sync.Mutex
	Manual     map[string]bool
	StopLosses map[string]float64
}

// RequestManual marks the symbol's position to be switched to manual
// management on the next tick.
func (m *ManualControl) RequestManual(symbol string) {
	m.Mutex.Lock()
	if m.Manual == nil {
		m.Manual = make(map[string]bool)
	}
	m.Manual[symbol] = true
	m.Mutex.Unlock()
}

func (m *ManualControl) ConsumeManual(symbol string) bool {
	m.Mutex.Lock()
	defer m.Mutex.Unlock()

	if !m.Manual[symbol] {
		return false
	}

	delete(m.Manual, symbol)

	return true
}

// SetStopLoss stores a stop-loss percentage for a manual position.
func (m *ManualControl) SetStopLoss(symbol string, percentage float64) {
	m.Mutex.Lock()
	if m.StopLosses == nil {
		m.StopLosses = make(map[string]float64)
	}
	m.StopLosses[symbol] = percentage
	m.Mutex.Unlock()
}

func (m *ManualControl) ConsumeStopLoss(symbol string) *float64 {
	m.Mutex.Lock()
	defer m.Mutex.Unlock()

	percentage, ok := m.StopLosses[symbol]
	if !ok {
		return nil
	}

	delete(m.StopLosses, symbol)

	return &percentage
}
