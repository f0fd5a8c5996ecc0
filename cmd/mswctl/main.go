package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"monsweeper-backend/internal/logger"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		logger.Error("mswctl failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mswctl",
		Short:         "Operator and verifier tool for the mines engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newCommitCmd(),
		newVerifyCmd(),
		newTokenCmd(),
		newBankrollCmd(),
		newDepositCmd(),
	)
	return root
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
