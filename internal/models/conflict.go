package models

import "time"

// Strategy стратегия разрешения конфликта.
type Strategy string

const (
	StrategyLastWriteWins  Strategy = "last_write_wins"
	StrategyFirstWriteWins Strategy = "first_write_wins"
	StrategyVersionBased   Strategy = "version_based"
	// StrategyManual означает, что автоматически победителя выбрать нельзя
	StrategyManual Strategy = "manual"
)

// ConflictResolution результат работы резолвера.
type ConflictResolution struct {
	DecidedAt time.Time `json:"decided_at"`
	// WinningValue заполняется только для стратегий, сравнивающих значения (VersionBased)
	WinningValue Value           `json:"-"`
	Key          EntityKey       `json:"entity"`
	Strategy     Strategy        `json:"strategy"`
	Reason       string          `json:"reason,omitempty"`
	Winner       RequestRecord   `json:"winner"`
	Losing       []RequestRecord `json:"losing"`
	// IncomingWins результат VersionBased: входящее значение побеждает кэшированное
	IncomingWins bool `json:"incoming_wins"`
}

// NeedsManual reports whether the caller must resolve the conflict out of band.
func (r ConflictResolution) NeedsManual() bool {
	return r.Strategy == StrategyManual
}
