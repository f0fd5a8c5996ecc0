package services

import "monsweeper-backend/internal/models"

// Broadcaster pushes game events to the connected owner of the game.
type Broadcaster interface {
	BroadcastGameEvent(event models.GameEvent)
	BroadcastBalance(userID int64, wallet *models.Wallet)
}

type nopBroadcaster struct{}

func (nopBroadcaster) BroadcastGameEvent(models.GameEvent)    {}
func (nopBroadcaster) BroadcastBalance(int64, *models.Wallet) {}
