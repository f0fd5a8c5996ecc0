package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"monsweeper-backend/internal/models"
)

type rateWindow struct {
	count   int
	resetAt time.Time
}

// MemoryStore is a single-process Store used for development and tests.
// Entries are kept JSON-encoded so callers never share state with it.
type MemoryStore struct {
	mu sync.Mutex

	wallets     map[int64]*models.Wallet
	bankroll    int64
	nonce       uint64
	games       map[string][]byte
	open        map[string]struct{}
	settled     map[string]struct{}
	activeGames map[int64]string
	completed   map[int64][]completedGame
	txs         map[int64][]*models.Transaction
	rates       map[string]*rateWindow
	revoked     map[string]time.Time

	now func() time.Time
}

type completedGame struct {
	id string
	at time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		wallets:     make(map[int64]*models.Wallet),
		games:       make(map[string][]byte),
		open:        make(map[string]struct{}),
		settled:     make(map[string]struct{}),
		activeGames: make(map[int64]string),
		completed:   make(map[int64][]completedGame),
		txs:         make(map[int64][]*models.Transaction),
		rates:       make(map[string]*rateWindow),
		revoked:     make(map[string]time.Time),
		now:         time.Now,
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) wallet(userID int64) *models.Wallet {
	w, ok := m.wallets[userID]
	if !ok {
		w = models.NewWallet(userID)
		m.wallets[userID] = w
	}
	return w
}

func (m *MemoryStore) GetWallet(_ context.Context, userID int64) (*models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := *m.wallet(userID)
	return &w, nil
}

func (m *MemoryStore) Deposit(_ context.Context, userID, amount int64) (*models.Wallet, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("deposit must be positive, got %d", amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.wallet(userID)
	w.Balance += amount
	out := *w
	return &out, nil
}

func (m *MemoryStore) LockBet(_ context.Context, userID, bet int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.wallet(userID)
	if w.Balance < bet {
		return ErrInsufficientBalance
	}
	w.Balance -= bet
	w.LockedBalance += bet
	w.TotalWagered += bet
	return nil
}

func (m *MemoryStore) ReleaseBet(_ context.Context, userID, bet int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.wallet(userID)
	w.Balance += bet
	w.LockedBalance -= bet
	w.TotalWagered -= bet
	return nil
}

func (m *MemoryStore) Settle(_ context.Context, req SettleRequest) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, done := m.settled[req.GameID]; done {
		return false, nil
	}
	if err := checkSettlement(m.bankroll, req); err != nil {
		return false, err
	}

	w := m.wallet(req.UserID)
	w.LockedBalance -= req.Bet
	w.Balance += req.Payout
	w.TotalWon += req.Won
	m.bankroll += req.Bet - req.Payout
	m.settled[req.GameID] = struct{}{}
	return true, nil
}

func (m *MemoryStore) GetBankroll(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bankroll, nil
}

func (m *MemoryStore) FundBankroll(_ context.Context, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bankroll += amount
	return m.bankroll, nil
}

func (m *MemoryStore) ClaimActiveGame(_ context.Context, userID int64, gameID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.activeGames[userID]; taken {
		return false, nil
	}
	m.activeGames[userID] = gameID
	return true, nil
}

func (m *MemoryStore) GetActiveGameID(_ context.Context, userID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeGames[userID], nil
}

func (m *MemoryStore) ReleaseActiveGame(_ context.Context, userID int64, gameID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeGames[userID] == gameID {
		delete(m.activeGames, userID)
	}
	return nil
}

func (m *MemoryStore) NextNonce(context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nonce++
	return m.nonce, nil
}

func (m *MemoryStore) SaveGame(_ context.Context, entry *models.GameEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal game: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[entry.ID()] = data
	if entry.Terminal() && entry.Settled {
		delete(m.open, entry.ID())
	} else {
		m.open[entry.ID()] = struct{}{}
	}
	return nil
}

func (m *MemoryStore) GetGame(_ context.Context, gameID string) (*models.GameEntry, error) {
	m.mu.Lock()
	data, ok := m.games[gameID]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	var entry models.GameEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game: %w", err)
	}
	return &entry, nil
}

func (m *MemoryStore) ListOpenGames(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.open))
	for id := range m.open {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) CompleteGame(_ context.Context, userID int64, gameID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := append(m.completed[userID], completedGame{id: gameID, at: at})
	if len(list) > MaxHistory {
		list = list[len(list)-MaxHistory:]
	}
	m.completed[userID] = list
	if m.activeGames[userID] == gameID {
		delete(m.activeGames, userID)
	}
	return nil
}

func (m *MemoryStore) GetGameHistory(ctx context.Context, userID int64, limit int64) ([]*models.GameEntry, error) {
	limit = clampLimit(limit)

	m.mu.Lock()
	list := m.completed[userID]
	ids := make([]string, 0, limit)
	for i := len(list) - 1; i >= 0 && int64(len(ids)) < limit; i-- {
		ids = append(ids, list[i].id)
	}
	m.mu.Unlock()

	games := make([]*models.GameEntry, 0, len(ids))
	for _, id := range ids {
		entry, err := m.GetGame(ctx, id)
		if err != nil {
			continue
		}
		games = append(games, entry)
	}
	return games, nil
}

func (m *MemoryStore) SaveTransaction(_ context.Context, tx *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *tx
	list := append(m.txs[tx.UserID], &c)
	if len(list) > MaxHistory {
		list = list[len(list)-MaxHistory:]
	}
	m.txs[tx.UserID] = list
	return nil
}

func (m *MemoryStore) GetUserTransactions(_ context.Context, userID int64, limit int64) ([]*models.Transaction, error) {
	limit = clampLimit(limit)
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.txs[userID]
	out := make([]*models.Transaction, 0, limit)
	for i := len(list) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		c := *list[i]
		out = append(out, &c)
	}
	return out, nil
}

func (m *MemoryStore) CheckRateLimit(_ context.Context, userID int64, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, userID, action)
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.rates[key]
	if !ok || now.After(w.resetAt) {
		w = &rateWindow{resetAt: now.Add(window)}
		m.rates[key] = w
	}
	w.count++
	return w.count <= limit, nil
}

func (m *MemoryStore) RevokeSession(_ context.Context, sessionID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[sessionID] = m.now().Add(ttl)
	return nil
}

func (m *MemoryStore) IsSessionRevoked(_ context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.revoked[sessionID]
	if !ok {
		return false, nil
	}
	if m.now().After(until) {
		delete(m.revoked, sessionID)
		return false, nil
	}
	return true, nil
}
