package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"monsweeper-backend/internal/config"
	"monsweeper-backend/internal/fairness"
	"monsweeper-backend/internal/game"
	"monsweeper-backend/internal/odds"
)

func newCommitCmd() *cobra.Command {
	var seedHex string

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Generate a player seed and its commitment hash",
		RunE: func(cmd *cobra.Command, args []string) error {
			var c fairness.Commitment
			if seedHex != "" {
				seed, err := fairness.ParseSeed(seedHex)
				if err != nil {
					return err
				}
				c = fairness.Commitment{PlayerSeed: seed, Hash: fairness.CommitmentHash(seed)}
			} else {
				var err error
				if c, err = fairness.CreateCommitment(); err != nil {
					return err
				}
			}
			return printJSON(cmd.OutOrStdout(), map[string]fairness.Seed{
				"player_seed":     c.PlayerSeed,
				"commitment_hash": c.Hash,
			})
		},
	}
	cmd.Flags().StringVar(&seedHex, "seed", "", "hash an existing 32-byte hex seed instead of generating one")
	return cmd
}

type verifyFlags struct {
	playerSeed       string
	counterpartySeed string
	commitment       string
	difficulty       string
	scheme           string
	nonce            uint64
	bet              int64
	reveals          []int
}

func newVerifyCmd() *cobra.Command {
	var f verifyFlags

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Recompute a finished game from its disclosed seeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := f.input()
			if err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			policy, err := cfg.Policy()
			if err != nil {
				return err
			}
			res, err := game.Verify(policy, in)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.CommitmentValid {
				return fmt.Errorf("%w: player seed does not match %s", game.ErrInvalidCommitment, in.CommitmentHash)
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.playerSeed, "player-seed", "", "disclosed player seed (hex)")
	fl.StringVar(&f.counterpartySeed, "counterparty-seed", "", "disclosed counterparty seed (hex)")
	fl.StringVar(&f.commitment, "commitment", "", "commitment hash published at start (hex)")
	fl.StringVar(&f.difficulty, "difficulty", "normal", "normal or god_of_war")
	fl.StringVar(&f.scheme, "scheme", "v2", "seed scheme, v1 or v2")
	fl.Uint64Var(&f.nonce, "nonce", 0, "game nonce")
	fl.Int64Var(&f.bet, "bet", 0, "bet amount, enables payout computation")
	fl.IntSliceVar(&f.reveals, "reveals", nil, "revealed positions in order, e.g. 0,1,4")
	for _, name := range []string{"player-seed", "counterparty-seed", "commitment"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (f verifyFlags) input() (game.VerifyInput, error) {
	var (
		in  game.VerifyInput
		err error
	)
	if in.PlayerSeed, err = fairness.ParseSeed(f.playerSeed); err != nil {
		return in, fmt.Errorf("player-seed: %w", err)
	}
	if in.CounterpartySeed, err = fairness.ParseSeed(f.counterpartySeed); err != nil {
		return in, fmt.Errorf("counterparty-seed: %w", err)
	}
	if in.CommitmentHash, err = fairness.ParseSeed(f.commitment); err != nil {
		return in, fmt.Errorf("commitment: %w", err)
	}
	if in.Difficulty, err = odds.ParseDifficulty(f.difficulty); err != nil {
		return in, err
	}
	if in.Scheme, err = fairness.ParseScheme(f.scheme); err != nil {
		return in, err
	}
	in.Nonce = f.nonce
	in.Bet = f.bet
	in.Reveals = f.reveals
	return in, nil
}
