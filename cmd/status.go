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
	"xswap/pkg/monitor"
	"xswap/pkg/types"
)

var (
	statusFromChain int64
	statusToChain   int64
	statusBridge    string
	watchStatus     bool
)

var statusCmd = &cobra.Command{
	Use:   "status <tx-hash>",
	Short: "Check the status of a submitted swap",
	Long: `Check the aggregator-side status of a swap or bridge by its source
transaction hash.

Examples:
  xswap status 0x1234...abcd
  xswap status 0x1234...abcd --from-chain 1 --to-chain 137
  xswap status 0x1234...abcd --from-chain 1 --to-chain 137 --watch`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().Int64Var(&statusFromChain, "from-chain", 0, "Source chain id (defaults to configured chain)")
	statusCmd.Flags().Int64Var(&statusToChain, "to-chain", 0, "Destination chain id (defaults to source chain)")
	statusCmd.Flags().StringVar(&statusBridge, "bridge", "", "Bridge tool name, narrows the lookup for cross-chain transfers")
	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Poll until the transfer reaches a terminal status")
}

func runStatus(cmd *cobra.Command, args []string) {
	txHash := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if statusFromChain == 0 {
		statusFromChain = cfg.DefaultChainID
	}
	if statusToChain == 0 {
		statusToChain = statusFromChain
	}

	api := newAPIClient(cfg)
	ctx := context.Background()

	var report *types.StatusReport
	if watchStatus {
		s := newSpinner("Waiting for a terminal status...")
		if !jsonOutput {
			fmt.Printf("\nWatching %s. Press Ctrl+C to stop.\n", color.CyanString(txHash))
			s.Start()
		}
		report, err = monitor.PollStatus(ctx, api, txHash, statusBridge, statusFromChain, statusToChain, 0)
		s.Stop()
	} else {
		s := newSpinner("Checking swap status...")
		if !jsonOutput {
			s.Start()
		}
		report, err = api.Status(ctx, txHash, statusBridge, statusFromChain, statusToChain)
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	displayStatus(report, txHash)
}

func displayStatus(report *types.StatusReport, txHash string) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                        SWAP STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Source Tx:   %s\n", color.CyanString(txHash))
	fmt.Printf("  Status:      %s\n", coloredStatus(report.Status))
	if report.Substatus != "" {
		fmt.Printf("  Substatus:   %s\n", report.Substatus)
	}
	if report.Message != "" {
		fmt.Printf("  Detail:      %s\n", report.Message)
	}
	if report.Sending != nil && report.Sending.TxHash != "" {
		fmt.Printf("  Sending:     %s (chain %d)\n", color.HiBlackString(report.Sending.TxHash), report.Sending.ChainID)
	}
	if report.Receiving != nil && report.Receiving.TxHash != "" {
		fmt.Printf("  Receiving:   %s (chain %d)\n", color.HiBlackString(report.Receiving.TxHash), report.Receiving.ChainID)
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func coloredStatus(status string) string {
	switch strings.ToUpper(status) {
	case types.RemoteStatusDone, types.RemoteStatusSuccess:
		return color.GreenString(status)
	case "PENDING", "STARTED", "IN_PROGRESS":
		return color.YellowString(status)
	case types.RemoteStatusFailed, types.RemoteStatusInvalid:
		return color.RedString(status)
	case types.RemoteStatusNotFound:
		return color.MagentaString(status)
	default:
		return status
	}
}
