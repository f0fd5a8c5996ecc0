package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"monsweeper-backend/internal/fairness"
	"monsweeper-backend/internal/game"
	"monsweeper-backend/internal/logger"
	"monsweeper-backend/internal/models"
	"monsweeper-backend/internal/odds"
)

type EngineOptions struct {
	Policy     odds.Policy
	Scheme     fairness.Scheme
	Disclosure game.DisclosurePolicy
	Publisher  EventPublisher
	// NewSeed produces counterparty seeds; defaults to fairness.NewSeed.
	NewSeed func() (fairness.Seed, error)
	Now     func() time.Time
}

// GameEngine hosts game sessions: it holds live sessions in memory, persists
// a record after every transition and moves money through the Store.
type GameEngine struct {
	store      Store
	policy     odds.Policy
	scheme     fairness.Scheme
	disclosure game.DisclosurePolicy
	publisher  EventPublisher
	newSeed    func() (fairness.Seed, error)
	now        func() time.Time

	bmu         sync.RWMutex
	broadcaster Broadcaster

	mu          sync.Mutex
	activeGames map[string]*GameInstance
}

// GameInstance is a live session plus its host bookkeeping. mu serializes
// every operation on Session and Entry; owner is immutable.
type GameInstance struct {
	owner int64

	mu      sync.Mutex
	Session *game.Session
	Entry   *models.GameEntry
}

func NewGameEngine(store Store, opts EngineOptions) *GameEngine {
	if opts.Publisher == nil {
		opts.Publisher = NopPublisher{}
	}
	if opts.NewSeed == nil {
		opts.NewSeed = fairness.NewSeed
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Scheme == 0 {
		opts.Scheme = fairness.DefaultScheme
	}
	if opts.Disclosure == "" {
		opts.Disclosure = game.DiscloseOnTerminal
	}

	return &GameEngine{
		store:       store,
		policy:      opts.Policy,
		scheme:      opts.Scheme,
		disclosure:  opts.Disclosure,
		publisher:   opts.Publisher,
		newSeed:     opts.NewSeed,
		now:         opts.Now,
		broadcaster: nopBroadcaster{},
		activeGames: make(map[string]*GameInstance),
	}
}

func (ge *GameEngine) SetBroadcaster(b Broadcaster) {
	ge.bmu.Lock()
	defer ge.bmu.Unlock()
	if b == nil {
		b = nopBroadcaster{}
	}
	ge.broadcaster = b
}

func (ge *GameEngine) Policy() odds.Policy { return ge.policy }

func (ge *GameEngine) StartGame(ctx context.Context, userID int64, req *models.StartGameRequest) (*models.StartGameResponse, error) {
	if err := req.Validate(ge.policy); err != nil {
		return nil, fmt.Errorf("%w: %v", game.ErrInvalidParams, err)
	}

	allowed, err := ge.store.CheckRateLimit(ctx, userID, "start", DefaultRateLimitStart, time.Minute)
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}
	if !allowed {
		return nil, ErrRateLimited
	}

	gameID := models.GenerateGameID()
	claimed, err := ge.store.ClaimActiveGame(ctx, userID, gameID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrActiveGameExists
	}

	if err := ge.store.LockBet(ctx, userID, req.Bet); err != nil {
		ge.store.ReleaseActiveGame(ctx, userID, gameID)
		return nil, fmt.Errorf("failed to lock bet: %w", err)
	}

	inst, err := ge.createGame(ctx, userID, gameID, req)
	if err != nil {
		ge.store.ReleaseBet(ctx, userID, req.Bet)
		ge.store.ReleaseActiveGame(ctx, userID, gameID)
		return nil, err
	}

	info := inst.Session.Info()
	commitment := inst.Entry.CounterpartyCommitment

	ge.mu.Lock()
	ge.activeGames[gameID] = inst
	ge.mu.Unlock()

	ge.log(info).Info("game started", "bet", req.Bet, "difficulty", req.Difficulty, "nonce", info.Nonce)
	ge.emit(ctx, models.EventGameStarted, info)
	ge.pushBalance(ctx, userID)

	return &models.StartGameResponse{
		Game:                   info,
		CounterpartyCommitment: commitment,
	}, nil
}

func (ge *GameEngine) createGame(ctx context.Context, userID int64, gameID string, req *models.StartGameRequest) (*GameInstance, error) {
	counterparty, err := ge.newSeed()
	if err != nil {
		return nil, err
	}
	nonce, err := ge.store.NextNonce(ctx)
	if err != nil {
		return nil, err
	}

	session, err := game.New(ge.policy, game.Params{
		ID:             gameID,
		Player:         userID,
		Bet:            req.Bet,
		Difficulty:     req.Difficulty,
		CommitmentHash: req.CommitmentHash,
		Scheme:         ge.scheme,
		Nonce:          nonce,
		Disclosure:     ge.disclosure,
		Now:            ge.now,
	})
	if err != nil {
		return nil, err
	}
	if err := session.PostCommitment(); err != nil {
		return nil, err
	}

	inst := &GameInstance{
		owner:   userID,
		Session: session,
		Entry: &models.GameEntry{
			CounterpartySeed:       counterparty,
			CounterpartyCommitment: fairness.CommitmentHash(counterparty),
		},
	}
	if err := ge.save(ctx, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// ActivateGame reveals the player's seed. A seed that does not match the
// commitment voids the game and refunds the bet.
func (ge *GameEngine) ActivateGame(ctx context.Context, userID int64, gameID string, playerSeed fairness.Seed) (game.Info, error) {
	inst, err := ge.owned(ctx, userID, gameID)
	if err != nil {
		return game.Info{}, err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()

	activateErr := inst.Session.Activate(playerSeed, inst.Entry.CounterpartySeed)
	voided := errors.Is(activateErr, game.ErrInvalidCommitment) || errors.Is(activateErr, game.ErrDerivationExhausted)
	if activateErr != nil && !voided {
		return game.Info{}, activateErr
	}
	if err := ge.save(ctx, inst); err != nil {
		return game.Info{}, err
	}

	if voided {
		ge.log(inst.Session.Info()).Warn("game voided", "reason", inst.Session.VoidReason())
		if err := ge.settle(ctx, inst); err != nil {
			ge.log(inst.Session.Info()).Error("settlement failed", "error", err)
		}
		return inst.Session.Info(), activateErr
	}

	info := inst.Session.Info()
	ge.log(info).Info("game activated")
	ge.emit(ctx, models.EventGameActivated, info)
	return info, nil
}

// Reveal runs the risk guard against the live bankroll and uncovers pos.
// Terminal outcomes are settled before returning.
func (ge *GameEngine) Reveal(ctx context.Context, userID int64, gameID string, pos int) (*models.RevealResponse, error) {
	inst, err := ge.owned(ctx, userID, gameID)
	if err != nil {
		return nil, err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()

	bankroll, err := ge.store.GetBankroll(ctx)
	if err != nil {
		return nil, err
	}

	res, err := inst.Session.Reveal(pos, bankroll)
	if err != nil {
		return nil, err
	}
	if err := ge.save(ctx, inst); err != nil {
		return nil, err
	}

	resp := &models.RevealResponse{Result: res}
	if inst.Session.Status().Terminal() {
		ge.log(inst.Session.Info()).Info("game ended", "outcome", res.Outcome, "payout", res.Payout)
		if err := ge.settle(ctx, inst); err != nil {
			ge.log(inst.Session.Info()).Error("settlement failed", "error", err)
		} else if wallet, err := ge.store.GetWallet(ctx, userID); err == nil {
			resp.NewBalance = &wallet.Balance
		}
	} else {
		ge.emit(ctx, models.EventTileRevealed, inst.Session.Info())
	}
	resp.Game = inst.Session.Info()
	return resp, nil
}

// CashOut settles at the current multiplier. The payout is re-checked
// against the bankroll inside the settlement; if it no longer fits, the
// game stays active and ErrBankrollChanged is returned.
func (ge *GameEngine) CashOut(ctx context.Context, userID int64, gameID string) (*models.GameResult, error) {
	inst, err := ge.owned(ctx, userID, gameID)
	if err != nil {
		return nil, err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()

	preview, err := inst.Session.PreviewCashOut()
	if err != nil {
		return nil, err
	}

	_, err = ge.store.Settle(ctx, SettleRequest{
		UserID:      userID,
		GameID:      gameID,
		Bet:         preview.Bet,
		Payout:      preview.Payout,
		Won:         preview.Payout,
		CapFraction: ge.policy.CapFraction,
	})
	if err != nil {
		return nil, err
	}

	// Funds have moved; from here failures are logged and the result stands.
	st, err := inst.Session.CashOut()
	if err != nil {
		ge.log(inst.Session.Info()).Error("cash-out settled but session rejected it", "error", err)
		st = preview
	} else {
		ge.log(inst.Session.Info()).Info("game cashed out", "multiplier", st.Multiplier, "payout", st.Payout)
		if err := ge.complete(ctx, inst, st, true); err != nil {
			ge.log(inst.Session.Info()).Error("failed to complete settled game", "error", err)
		}
	}

	result := &models.GameResult{
		GameID:     gameID,
		Status:     st.Status,
		Win:        true,
		Multiplier: st.Multiplier,
		Payout:     st.Payout,
	}
	if wallet, err := ge.store.GetWallet(ctx, userID); err == nil {
		result.NewBalance = wallet.Balance
	} else {
		ge.log(inst.Session.Info()).Warn("failed to read wallet after cash-out", "error", err)
	}
	return result, nil
}

func (ge *GameEngine) Forfeit(ctx context.Context, userID int64, gameID string) (game.Info, error) {
	inst, err := ge.owned(ctx, userID, gameID)
	if err != nil {
		return game.Info{}, err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()

	if err := inst.Session.Forfeit(); err != nil {
		return game.Info{}, err
	}
	if err := ge.save(ctx, inst); err != nil {
		return game.Info{}, err
	}
	ge.log(inst.Session.Info()).Info("game forfeited")
	if err := ge.settle(ctx, inst); err != nil {
		ge.log(inst.Session.Info()).Error("settlement failed", "error", err)
	}
	return inst.Session.Info(), nil
}

// ShouldForceCashout reports whether one more reveal would be forced to a
// cash-out at the current bankroll.
func (ge *GameEngine) ShouldForceCashout(ctx context.Context, gameID string) (odds.Decision, error) {
	inst, err := ge.instance(ctx, gameID)
	if err != nil {
		return odds.Decision{}, err
	}
	bankroll, err := ge.store.GetBankroll(ctx)
	if err != nil {
		return odds.Decision{}, err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.Session.CheckReveal(bankroll)
}

func (ge *GameEngine) GetGameInfo(ctx context.Context, gameID string) (game.Info, error) {
	inst, err := ge.instance(ctx, gameID)
	if err != nil {
		return game.Info{}, err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.Session.Info(), nil
}

// GetBombSet discloses a finished game's bombs and counterparty commitment.
func (ge *GameEngine) GetBombSet(ctx context.Context, gameID string) (*models.GameDisclosure, error) {
	inst, err := ge.instance(ctx, gameID)
	if err != nil {
		return nil, err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()

	bombs, err := inst.Session.RevealAll()
	if err != nil {
		return nil, err
	}
	return &models.GameDisclosure{
		Game:                   inst.Session.Info(),
		Bombs:                  bombs,
		CounterpartyCommitment: inst.Entry.CounterpartyCommitment,
	}, nil
}

// GetActiveGame returns nil when the player has no game in progress.
func (ge *GameEngine) GetActiveGame(ctx context.Context, userID int64) (*game.Info, error) {
	gameID, err := ge.store.GetActiveGameID(ctx, userID)
	if err != nil || gameID == "" {
		return nil, err
	}
	info, err := ge.GetGameInfo(ctx, gameID)
	if errors.Is(err, ErrGameNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if info.Status.Terminal() {
		return nil, nil
	}
	return &info, nil
}

func (ge *GameEngine) GetGameHistory(ctx context.Context, userID int64, limit int64) ([]game.Info, error) {
	entries, err := ge.store.GetGameHistory(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	games := make([]game.Info, 0, len(entries))
	for _, entry := range entries {
		s, err := game.Restore(ge.policy, entry.Record, ge.now)
		if err != nil {
			logger.Warn("skipping unreadable game record", "game_id", entry.ID(), "error", err)
			continue
		}
		games = append(games, s.Info())
	}
	return games, nil
}

func (ge *GameEngine) GetBalance(ctx context.Context, userID int64) (*models.Wallet, error) {
	return ge.store.GetWallet(ctx, userID)
}

func (ge *GameEngine) GetTransactions(ctx context.Context, userID int64, limit int64) ([]*models.Transaction, error) {
	return ge.store.GetUserTransactions(ctx, userID, limit)
}

func (ge *GameEngine) Verify(in game.VerifyInput) (game.VerifyResult, error) {
	return game.Verify(ge.policy, in)
}

// RestoreGames loads every open game from the store, settling those that
// ended before the last shutdown.
func (ge *GameEngine) RestoreGames(ctx context.Context) (int, error) {
	ids, err := ge.store.ListOpenGames(ctx)
	if err != nil {
		return 0, err
	}
	restored := 0
	for _, id := range ids {
		inst, err := ge.instance(ctx, id)
		if err != nil {
			logger.Error("failed to restore game", "game_id", id, "error", err)
			continue
		}
		restored++
		inst.mu.Lock()
		if inst.Entry.NeedsSettlement() {
			if err := ge.settle(ctx, inst); err != nil {
				ge.log(inst.Session.Info()).Error("settlement failed", "error", err)
			}
		}
		inst.mu.Unlock()
	}
	return restored, nil
}

// CleanupStaleGames voids games whose seed was not revealed within maxAge,
// forfeits games idle for maxAge and retries pending settlements.
func (ge *GameEngine) CleanupStaleGames(ctx context.Context, maxAge time.Duration) int {
	ge.mu.Lock()
	instances := make([]*GameInstance, 0, len(ge.activeGames))
	for _, inst := range ge.activeGames {
		instances = append(instances, inst)
	}
	ge.mu.Unlock()

	cleaned := 0
	for _, inst := range instances {
		if ge.cleanup(ctx, inst, maxAge) {
			cleaned++
		}
	}
	return cleaned
}

func (ge *GameEngine) cleanup(ctx context.Context, inst *GameInstance, maxAge time.Duration) bool {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	s := inst.Session
	idle := ge.now().Sub(inst.Entry.UpdatedAt) > maxAge

	switch {
	case inst.Entry.NeedsSettlement():
	case !idle:
		return false
	case s.Status() == game.StatusAwaitingReveal || s.Status() == game.StatusCreated:
		if err := s.Void(game.VoidRevealExpired); err != nil {
			return false
		}
	case s.Status() == game.StatusActive:
		if err := s.Forfeit(); err != nil {
			return false
		}
	default:
		return false
	}

	if err := ge.save(ctx, inst); err != nil {
		ge.log(s.Info()).Error("failed to persist stale game", "error", err)
		return false
	}
	ge.log(s.Info()).Info("stale game closed", "status", s.Status())
	if err := ge.settle(ctx, inst); err != nil {
		ge.log(s.Info()).Error("settlement failed", "error", err)
		return false
	}
	return true
}

// FundBankroll adds house funds; a negative amount withdraws.
func (ge *GameEngine) FundBankroll(ctx context.Context, amount int64) (int64, error) {
	return ge.store.FundBankroll(ctx, amount)
}

func (ge *GameEngine) instance(ctx context.Context, gameID string) (*GameInstance, error) {
	ge.mu.Lock()
	inst, ok := ge.activeGames[gameID]
	ge.mu.Unlock()
	if ok {
		return inst, nil
	}

	entry, err := ge.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	session, err := game.Restore(ge.policy, entry.Record, ge.now)
	if err != nil {
		return nil, fmt.Errorf("failed to restore game %s: %w", gameID, err)
	}
	inst = &GameInstance{owner: entry.UserID(), Session: session, Entry: entry}
	if !entry.Terminal() || !entry.Settled {
		ge.mu.Lock()
		if existing, ok := ge.activeGames[gameID]; ok {
			inst = existing
		} else {
			ge.activeGames[gameID] = inst
		}
		ge.mu.Unlock()
	}
	return inst, nil
}

func (ge *GameEngine) owned(ctx context.Context, userID int64, gameID string) (*GameInstance, error) {
	inst, err := ge.instance(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if inst.owner != userID {
		return nil, ErrNotOwner
	}
	return inst, nil
}

func (ge *GameEngine) save(ctx context.Context, inst *GameInstance) error {
	inst.Entry.Record = inst.Session.Record()
	inst.Entry.UpdatedAt = ge.now().UTC()
	return ge.store.SaveGame(ctx, inst.Entry)
}

// settle moves the funds of a terminal session.
func (ge *GameEngine) settle(ctx context.Context, inst *GameInstance) error {
	st, err := inst.Session.Settlement()
	if err != nil {
		return err
	}
	// Forced and losing outcomes carry no CapFraction: a forced payout was
	// approved by the guard on the previous reveal (DESIGN.md, decision 5).
	req := SettleRequest{
		UserID: inst.owner,
		GameID: inst.Entry.ID(),
		Bet:    st.Bet,
		Payout: st.Payout,
	}
	if !st.Refund {
		req.Won = st.Payout
	}
	moved, err := ge.store.Settle(ctx, req)
	if err != nil {
		return err
	}
	return ge.complete(ctx, inst, st, moved)
}

func (ge *GameEngine) complete(ctx context.Context, inst *GameInstance, st game.Settlement, moved bool) error {
	userID := inst.Entry.UserID()
	inst.Entry.Settled = true
	inst.Entry.SettledAt = ge.now().UTC()
	if err := ge.save(ctx, inst); err != nil {
		return err
	}
	if err := ge.store.CompleteGame(ctx, userID, inst.Entry.ID(), inst.Entry.SettledAt); err != nil {
		return err
	}

	ge.mu.Lock()
	delete(ge.activeGames, inst.Entry.ID())
	ge.mu.Unlock()

	if moved {
		if err := ge.recordTransaction(ctx, inst.Entry, st); err != nil {
			ge.log(inst.Session.Info()).Warn("failed to record transaction", "error", err)
		}
	}

	info := inst.Session.Info()
	switch {
	case inst.Session.Refundable():
		ge.emit(ctx, models.EventGameVoided, info)
	case st.Status == game.StatusForfeited:
		ge.emit(ctx, models.EventGameForfeited, info)
	default:
		ge.emit(ctx, models.EventGameEnded, info)
	}
	ge.pushBalance(ctx, userID)
	return nil
}

func (ge *GameEngine) recordTransaction(ctx context.Context, entry *models.GameEntry, st game.Settlement) error {
	wallet, err := ge.store.GetWallet(ctx, entry.UserID())
	if err != nil {
		return err
	}

	tx := &models.Transaction{
		ID:            models.GenerateTransactionID(),
		UserID:        entry.UserID(),
		Amount:        st.Payout,
		BalanceBefore: wallet.Balance - st.Payout,
		BalanceAfter:  wallet.Balance,
		GameID:        entry.ID(),
		CreatedAt:     ge.now().UTC(),
	}
	switch {
	case st.Refund:
		tx.Type = models.TransactionTypeRefund
		tx.Description = fmt.Sprintf("Refunded %d (%s)", st.Payout, entry.Record.VoidReason)
	case st.Payout > 0:
		tx.Type = models.TransactionTypeWin
		tx.Description = fmt.Sprintf("Won %d on mines (%sx, %s)", st.Payout, st.Multiplier, st.Status)
	default:
		tx.Type = models.TransactionTypeLoss
		tx.Amount = st.Bet
		tx.Description = fmt.Sprintf("Lost %d on mines (%s)", st.Bet, st.Status)
	}
	return ge.store.SaveTransaction(ctx, tx)
}

func (ge *GameEngine) emit(ctx context.Context, t models.EventType, info game.Info) {
	event := models.NewGameEvent(t, info)
	if err := ge.publisher.Publish(ctx, event); err != nil {
		ge.log(info).Warn("failed to publish event", "type", t, "error", err)
	}
	ge.bmu.RLock()
	b := ge.broadcaster
	ge.bmu.RUnlock()
	b.BroadcastGameEvent(event)
}

func (ge *GameEngine) pushBalance(ctx context.Context, userID int64) {
	wallet, err := ge.store.GetWallet(ctx, userID)
	if err != nil {
		return
	}
	ge.bmu.RLock()
	b := ge.broadcaster
	ge.bmu.RUnlock()
	b.BroadcastBalance(userID, wallet)
}

func (ge *GameEngine) log(info game.Info) *slog.Logger {
	return logger.With("game_id", info.ID, "player_id", info.Player, "status", info.Status)
}
