// Package conflict обнаруживает конфликтующие мутации одной сущности
// и выбирает победителя по подключаемым стратегиям.
package conflict

import (
	"time"

	"github.com/iudanet/gophsync/internal/models"
)

// DefaultCoalesceWindow окно, в котором две мутации одного источника считаются конфликтом.
const DefaultCoalesceWindow = time.Second

// Detector определяет конфликтующие записи.
// Две записи одного ключа конфликтуют, если:
// - источники разные, обе не завершены и хотя бы одна из них update или delete;
// - источник один, а разница во времени начала меньше окна склейки.
type Detector struct {
	window time.Duration
}

// NewDetector creates a detector. A non-positive window falls back to DefaultCoalesceWindow.
func NewDetector(window time.Duration) *Detector {
	if window <= 0 {
		window = DefaultCoalesceWindow
	}
	return &Detector{window: window}
}

// Conflicts reports whether a and b conflict.
func (d *Detector) Conflicts(a, b models.RequestRecord) bool {
	if a.ID == b.ID || a.Key != b.Key {
		return false
	}
	if a.Completed || b.Completed {
		return false
	}

	if a.Source != b.Source {
		return a.Operation.Mutating() || b.Operation.Mutating()
	}

	delta := a.Timestamp.Sub(b.Timestamp)
	if delta < 0 {
		delta = -delta
	}
	return delta < d.window
}

// Detect возвращает записи из active, конфликтующие с candidate, в исходном порядке.
func (d *Detector) Detect(candidate models.RequestRecord, active []models.RequestRecord) []models.RequestRecord {
	var conflicts []models.RequestRecord
	for _, r := range active {
		if d.Conflicts(candidate, r) {
			conflicts = append(conflicts, r)
		}
	}
	return conflicts
}
