package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"xswap/config"
	"xswap/pkg/history"
)

var clearHistory bool

var historyCmd = &cobra.Command{
	Use:   "history [wallet-address]",
	Short: "Show past swaps for a wallet",
	Long: `Show the swap history recorded for a wallet. Without an argument the
configured signing wallet is used. Entries still marked pending are
reconciled against the chain and the aggregator on load.

Examples:
  xswap history
  xswap history 0x123...
  xswap history --clear`,
	Args: cobra.MaximumNArgs(1),
	Run:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().BoolVar(&clearHistory, "clear", false, "Delete the wallet's recorded history")
}

func runHistory(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	hist, err := newHistoryStore(cfg)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	var walletAddr string
	var receipts history.ReceiptLookup
	if len(args) == 1 {
		walletAddr = args[0]
	} else {
		signer, err := newSigner(cfg)
		if err != nil {
			printError(fmt.Errorf("no wallet address given and no signing wallet configured: %w", err))
			os.Exit(1)
		}
		defer signer.Close()
		walletAddr = signer.Address()
		receipts = signer
	}

	if clearHistory {
		hist.Clear(walletAddr)
		printSuccess(fmt.Sprintf("History cleared for %s.", walletAddr))
		return
	}

	// Heal entries left pending by an interrupted session.
	hist.Reconcile(context.Background(), walletAddr, receipts, newAPIClient(cfg))

	entries := hist.Get(walletAddr)
	if jsonOutput {
		jsonData, _ := json.MarshalIndent(entries, "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	displayHistory(walletAddr, entries)
}

func displayHistory(walletAddr string, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Printf("\nNo swaps recorded for %s.\n\n", walletAddr)
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 80))
	color.Green("                             SWAP HISTORY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("\n  Wallet: %s\n", color.CyanString(walletAddr))

	for _, entry := range entries {
		kind := ""
		if entry.FromChainID != entry.ToChainID {
			kind = fmt.Sprintf("  (bridge %d -> %d)", entry.FromChainID, entry.ToChainID)
		}
		fmt.Printf("\n  %s  %s %s -> %s %s%s\n",
			entry.Timestamp.Local().Format("2006-01-02 15:04"),
			entry.FromAmount, color.YellowString(entry.FromToken),
			entry.ToAmount, color.YellowString(entry.ToToken),
			kind)
		fmt.Printf("    %s  via %s  %s\n",
			coloredHistoryStatus(entry.Status), entry.Provider, color.HiBlackString(entry.ID))
	}

	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Printf("\nTotal: %d swap(s)\n\n", len(entries))
}

func coloredHistoryStatus(status history.Status) string {
	switch status {
	case history.StatusCompleted:
		return color.GreenString(string(status))
	case history.StatusFailed:
		return color.RedString(string(status))
	default:
		return color.YellowString(string(status))
	}
}
