package models

import (
	"time"

	"monsweeper-backend/internal/fairness"
	"monsweeper-backend/internal/game"
)

// GameEntry is what the host persists per game. CounterpartySeed is held
// here from the start and copied into the session only at activation.
type GameEntry struct {
	Record                 game.Record   `json:"record"`
	CounterpartySeed       fairness.Seed `json:"counterparty_seed"`
	CounterpartyCommitment fairness.Seed `json:"counterparty_commitment"`
	Settled                bool          `json:"settled"`
	SettledAt              time.Time     `json:"settled_at,omitzero"`
	UpdatedAt              time.Time     `json:"updated_at"`
}

func (e *GameEntry) ID() string     { return e.Record.ID }
func (e *GameEntry) UserID() int64  { return e.Record.Player }
func (e *GameEntry) Terminal() bool { return e.Record.Status.Terminal() }

// NeedsSettlement reports a terminal game whose funds have not moved yet.
func (e *GameEntry) NeedsSettlement() bool {
	return e.Terminal() && !e.Settled
}

type EventType string

const (
	EventGameStarted   EventType = "GameStarted"
	EventGameActivated EventType = "GameActivated"
	EventTileRevealed  EventType = "TileRevealed"
	EventGameEnded     EventType = "GameEnded"
	EventGameForfeited EventType = "GameForfeited"
	EventGameVoided    EventType = "GameVoided"
)

// GameEvent is published on the message bus and pushed to the owning player.
type GameEvent struct {
	Type      EventType `json:"type"`
	GameID    string    `json:"game_id"`
	UserID    int64     `json:"user_id"`
	Game      game.Info `json:"game"`
	Timestamp int64     `json:"timestamp"`
}

func NewGameEvent(t EventType, info game.Info) GameEvent {
	return GameEvent{
		Type:      t,
		GameID:    info.ID,
		UserID:    info.Player,
		Game:      info,
		Timestamp: time.Now().Unix(),
	}
}
