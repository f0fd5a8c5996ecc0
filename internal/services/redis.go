package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"monsweeper-backend/internal/config"
	"monsweeper-backend/internal/models"
)

type RedisService struct {
	client *redis.Client
}

func NewRedisService(cfg *config.Config) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisService{client: client}, nil
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

func (s *RedisService) GetWallet(ctx context.Context, userID int64) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := s.client.HGetAll(ctx, fmt.Sprintf(KeyWallet, userID)).Scan(&wallet); err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	wallet.UserID = userID
	return &wallet, nil
}

func (s *RedisService) Deposit(ctx context.Context, userID, amount int64) (*models.Wallet, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("deposit must be positive, got %d", amount)
	}
	if err := s.client.HIncrBy(ctx, fmt.Sprintf(KeyWallet, userID), "balance", amount).Err(); err != nil {
		return nil, fmt.Errorf("failed to deposit: %w", err)
	}
	return s.GetWallet(ctx, userID)
}

// Amounts are passed to the scripts as decimal strings with their negations
// precomputed, so HINCRBY never sees a float-formatted Lua number.
var lockBalanceScript = redis.NewScript(`
	local key = KEYS[1]
	local amount = tonumber(ARGV[1])

	local balance = tonumber(redis.call("HGET", key, "balance") or "0")
	if balance < amount then
		return redis.error_reply("INSUFFICIENT_BALANCE")
	end

	redis.call("HINCRBY", key, "balance", ARGV[2])
	redis.call("HINCRBY", key, "locked_balance", ARGV[1])
	redis.call("HINCRBY", key, "total_wagered", ARGV[1])

	return "OK"
`)

func (s *RedisService) LockBet(ctx context.Context, userID, bet int64) error {
	key := fmt.Sprintf(KeyWallet, userID)
	err := lockBalanceScript.Run(ctx, s.client, []string{key}, itoa(bet), itoa(-bet)).Err()
	return scriptError(err)
}

var releaseBalanceScript = redis.NewScript(`
	local key = KEYS[1]
	redis.call("HINCRBY", key, "locked_balance", ARGV[2])
	redis.call("HINCRBY", key, "total_wagered", ARGV[2])
	redis.call("HINCRBY", key, "balance", ARGV[1])
	return "OK"
`)

func (s *RedisService) ReleaseBet(ctx context.Context, userID, bet int64) error {
	key := fmt.Sprintf(KeyWallet, userID)
	return releaseBalanceScript.Run(ctx, s.client, []string{key}, itoa(bet), itoa(-bet)).Err()
}

const settleRetries = 8

// Settle re-checks the bankroll in Go and commits under WATCH, so the cap
// rule is evaluated exactly as the risk guard evaluates it. A concurrent
// bankroll change aborts the transaction and the check runs again.
func (s *RedisService) Settle(ctx context.Context, req SettleRequest) (bool, error) {
	walletKey := fmt.Sprintf(KeyWallet, req.UserID)
	settledKey := fmt.Sprintf(KeyGameSettled, req.GameID)

	var moved bool
	settle := func(tx *redis.Tx) error {
		moved = false
		done, err := tx.Exists(ctx, settledKey).Result()
		if err != nil {
			return err
		}
		if done == 1 {
			return nil
		}

		bankroll, err := tx.Get(ctx, KeyBankroll).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err := checkSettlement(bankroll, req); err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HIncrBy(ctx, walletKey, "locked_balance", -req.Bet)
			pipe.HIncrBy(ctx, walletKey, "balance", req.Payout)
			pipe.HIncrBy(ctx, walletKey, "total_won", req.Won)
			pipe.IncrBy(ctx, KeyBankroll, req.Bet-req.Payout)
			pipe.Set(ctx, settledKey, "1", TTLSettled)
			return nil
		})
		if err == nil {
			moved = true
		}
		return err
	}

	for range settleRetries {
		err := s.client.Watch(ctx, settle, settledKey, KeyBankroll)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, ErrBankrollChanged) || errors.Is(err, ErrInsufficientFunds) {
				return false, err
			}
			return false, fmt.Errorf("failed to settle game %s: %w", req.GameID, err)
		}
		return moved, nil
	}
	return false, fmt.Errorf("failed to settle game %s: bankroll contention", req.GameID)
}

func (s *RedisService) GetBankroll(ctx context.Context) (int64, error) {
	v, err := s.client.Get(ctx, KeyBankroll).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get bankroll: %w", err)
	}
	return v, nil
}

func (s *RedisService) FundBankroll(ctx context.Context, amount int64) (int64, error) {
	v, err := s.client.IncrBy(ctx, KeyBankroll, amount).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to fund bankroll: %w", err)
	}
	return v, nil
}

func (s *RedisService) ClaimActiveGame(ctx context.Context, userID int64, gameID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, fmt.Sprintf(KeyUserActiveGame, userID), gameID, TTLActiveGame).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim active game: %w", err)
	}
	return ok, nil
}

func (s *RedisService) GetActiveGameID(ctx context.Context, userID int64) (string, error) {
	id, err := s.client.Get(ctx, fmt.Sprintf(KeyUserActiveGame, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get active game: %w", err)
	}
	return id, nil
}

var releaseActiveGameScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// ReleaseActiveGame frees the slot only if it still holds gameID.
func (s *RedisService) ReleaseActiveGame(ctx context.Context, userID int64, gameID string) error {
	key := fmt.Sprintf(KeyUserActiveGame, userID)
	return releaseActiveGameScript.Run(ctx, s.client, []string{key}, gameID).Err()
}

func (s *RedisService) NextNonce(ctx context.Context) (uint64, error) {
	v, err := s.client.Incr(ctx, KeyNonce).Uint64()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate nonce: %w", err)
	}
	return v, nil
}

func (s *RedisService) SaveGame(ctx context.Context, entry *models.GameEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal game: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, fmt.Sprintf(KeyGame, entry.ID()), data, TTLGame)
	if entry.Terminal() && entry.Settled {
		pipe.SRem(ctx, KeyOpenGames, entry.ID())
	} else {
		pipe.SAdd(ctx, KeyOpenGames, entry.ID())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save game: %w", err)
	}
	return nil
}

func (s *RedisService) GetGame(ctx context.Context, gameID string) (*models.GameEntry, error) {
	data, err := s.client.Get(ctx, fmt.Sprintf(KeyGame, gameID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	var entry models.GameEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game: %w", err)
	}
	return &entry, nil
}

func (s *RedisService) ListOpenGames(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, KeyOpenGames).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list open games: %w", err)
	}
	return ids, nil
}

func (s *RedisService) CompleteGame(ctx context.Context, userID int64, gameID string, at time.Time) error {
	completedKey := fmt.Sprintf(KeyUserCompletedGames, userID)

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, completedKey, redis.Z{Score: float64(at.Unix()), Member: gameID})
	pipe.ZRemRangeByRank(ctx, completedKey, 0, -(MaxHistory + 1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to add to completed games: %w", err)
	}
	return s.ReleaseActiveGame(ctx, userID, gameID)
}

func (s *RedisService) GetGameHistory(ctx context.Context, userID int64, limit int64) ([]*models.GameEntry, error) {
	limit = clampLimit(limit)

	gameIDs, err := s.client.ZRevRange(ctx, fmt.Sprintf(KeyUserCompletedGames, userID), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get game IDs: %w", err)
	}
	if len(gameIDs) == 0 {
		return []*models.GameEntry{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(gameIDs))
	for i, id := range gameIDs {
		cmds[i] = pipe.Get(ctx, fmt.Sprintf(KeyGame, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("pipeline execution failed: %w", err)
	}

	games := make([]*models.GameEntry, 0, len(cmds))
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			continue
		}
		var entry models.GameEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		games = append(games, &entry)
	}
	return games, nil
}

func (s *RedisService) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}

	userTxKey := fmt.Sprintf(KeyUserTransactions, tx.UserID)

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, fmt.Sprintf(KeyTransaction, tx.ID), data, TTLTransaction)
	pipe.ZAdd(ctx, userTxKey, redis.Z{Score: float64(tx.CreatedAt.UnixNano()), Member: tx.ID})
	pipe.ZRemRangeByRank(ctx, userTxKey, 0, -(MaxHistory + 1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

func (s *RedisService) GetUserTransactions(ctx context.Context, userID int64, limit int64) ([]*models.Transaction, error) {
	limit = clampLimit(limit)

	txIDs, err := s.client.ZRevRange(ctx, fmt.Sprintf(KeyUserTransactions, userID), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction IDs: %w", err)
	}

	transactions := make([]*models.Transaction, 0, len(txIDs))
	for _, txID := range txIDs {
		data, err := s.client.Get(ctx, fmt.Sprintf(KeyTransaction, txID)).Bytes()
		if err != nil {
			continue
		}
		var tx models.Transaction
		if err := json.Unmarshal(data, &tx); err != nil {
			continue
		}
		transactions = append(transactions, &tx)
	}
	return transactions, nil
}

func (s *RedisService) CheckRateLimit(ctx context.Context, userID int64, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, userID, action)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if count == 1 {
		s.client.Expire(ctx, key, window)
	}
	return count <= int64(limit), nil
}

func (s *RedisService) RevokeSession(ctx context.Context, sessionID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, fmt.Sprintf(KeyRevokedSession, sessionID), "1", ttl).Err()
}

func (s *RedisService) IsSessionRevoked(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, fmt.Sprintf(KeyRevokedSession, sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	return n > 0, nil
}

// DeleteGame removes a game and its bookkeeping. Used by tests and operators.
func (s *RedisService) DeleteGame(ctx context.Context, userID int64, gameID string) error {
	return s.client.Del(ctx,
		fmt.Sprintf(KeyGame, gameID),
		fmt.Sprintf(KeyGameSettled, gameID),
		fmt.Sprintf(KeyUserActiveGame, userID),
	).Err()
}

func (s *RedisService) DeleteWallet(ctx context.Context, userID int64) error {
	return s.client.Del(ctx, fmt.Sprintf(KeyWallet, userID)).Err()
}

func scriptError(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "INSUFFICIENT_BALANCE") {
		return ErrInsufficientBalance
	}
	return err
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
