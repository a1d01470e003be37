package cmd

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"xswap/config"
	"xswap/pkg/amount"
	"xswap/pkg/approval"
	"xswap/pkg/execution"
	"xswap/pkg/monitor"
	"xswap/pkg/types"
	"xswap/pkg/wallet"
)

var (
	swapFromChain     int64
	swapToChain       int64
	swapSlippage      float64
	swapRecipient     string
	noConfirm         bool
	unlimitedApproval bool
)

var swapCmd = &cobra.Command{
	Use:   "swap <amount> <source-token> to <dest-token>",
	Short: "Execute a token swap or bridge",
	Long: `Fetch routes, pick the best one and execute it end to end: approval
check, pre-flight validation, submission and tracking to a terminal
outcome.

Examples:
  # Same-chain swap
  xswap swap 0.5 ETH to USDC

  # Bridge to another chain
  xswap swap 100 USDC to USDC --to-chain 137

  # Send the output somewhere else
  xswap swap 1 WETH to DAI --recipient 0x123...

  # Skip all confirmations
  xswap swap 100 USDC to WETH --yes`,
	Args: cobra.MinimumNArgs(1),
	Run:  runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)

	swapCmd.Flags().Int64Var(&swapFromChain, "from-chain", 0, "Source chain id (defaults to configured chain)")
	swapCmd.Flags().Int64Var(&swapToChain, "to-chain", 0, "Destination chain id (defaults to source chain)")
	swapCmd.Flags().Float64Var(&swapSlippage, "slippage", 0.005, "Slippage tolerance (0.005 = 0.5%)")
	swapCmd.Flags().StringVar(&swapRecipient, "recipient", "", "Recipient address (defaults to the sending wallet)")
	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
	swapCmd.Flags().BoolVar(&unlimitedApproval, "unlimited-approval", false, "Approve the maximum allowance instead of the swap amount")
}

func runSwap(cmd *cobra.Command, args []string) {
	if swapRecipient != "" && !common.IsHexAddress(swapRecipient) {
		printError(fmt.Errorf("invalid recipient address %q", swapRecipient))
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	signer, err := newSigner(cfg)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer signer.Close()

	routes, _, err := fetchRoutes(strings.Join(args, " "), swapFromChain, swapToChain, swapSlippage, signer.Address(), swapRecipient, false)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	route := routes[0]
	displaySwapSummary(route, signer.Address())

	if !noConfirm && !confirmPrompt("Proceed with swap?") {
		fmt.Println("\nSwap cancelled.")
		os.Exit(0)
	}

	ctx := context.Background()
	api := newAPIClient(cfg)
	hist, err := newHistoryStore(cfg)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if err := ensureApproval(ctx, signer, route, cfg); err != nil {
		printError(err)
		os.Exit(1)
	}

	executor := execution.New(signer, api, hist, &cliConfirmer{interactive: !noConfirm}, execution.Config{
		Freshness: cfg.QuoteTTL(),
		Routers:   cfg.Routers,
	})

	s := newSpinner("Submitting transaction...")
	s.Start()
	txHash, err := executor.Execute(ctx, route)
	s.Stop()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	color.Green("\nSubmitted: %s", color.CyanString(txHash))
	mon := monitor.New(signer, api, hist, signer.Address(), monitor.Config{
		SwapCeiling:   cfg.SwapCeiling(),
		BridgeCeiling: cfg.BridgeCeiling(),
	})
	trackSwap(ctx, mon, txHash, route)
}

// ensureApproval walks the allowance state machine until the router
// may spend the input token, prompting before sending an approval
// transaction.
func ensureApproval(ctx context.Context, signer *wallet.EVMWallet, route *types.Route, cfg *config.Config) error {
	owner := signer.Address()
	required, _ := new(big.Int).SetString(route.FromAmount, 10)
	spender := config.Diamond
	if routers := cfg.Routers[route.FromChainID]; len(routers) > 0 {
		spender = routers[0]
	}

	machine := approval.New(signer, route.FromToken.Address, owner, spender, required, types.IsNativeAsset(route.FromToken.Address))

	s := newSpinner("Checking allowance...")
	s.Start()
	status, err := machine.Check(ctx)
	s.Stop()
	if err != nil {
		return err
	}

	switch status {
	case approval.StatusApproved:
		return nil
	case approval.StatusNeeded:
	default:
		return fmt.Errorf("allowance check ended in state %s", status)
	}

	fmt.Printf("\n%s needs a one-time approval for the router to spend it.\n", route.FromToken.Symbol)
	if unlimitedApproval {
		color.Yellow("An unlimited allowance will be granted (--unlimited-approval).")
	}
	if !noConfirm && !confirmPrompt("Send approval transaction?") {
		return fmt.Errorf("approval declined")
	}

	s = newSpinner("Approving...")
	s.Start()
	err = machine.Approve(ctx, unlimitedApproval)
	s.Stop()
	if err != nil {
		return err
	}
	color.Green("\nApproval confirmed.")
	return nil
}

// trackSwap renders monitor transitions until a terminal state.
func trackSwap(ctx context.Context, mon *monitor.Monitor, txHash string, route *types.Route) {
	s := newSpinner("Waiting for confirmation...")
	s.Start()

	var last monitor.Event
	for ev := range mon.Watch(ctx, txHash, route) {
		last = ev
		switch ev.Status {
		case monitor.StateConfirming:
			s.Suffix = " Confirmed on source chain..."
		case monitor.StateBridging:
			suffix := " Bridging to the destination chain..."
			if ev.BridgeStatus != "" {
				suffix = fmt.Sprintf(" Bridging (%s)...", ev.BridgeStatus)
			}
			s.Suffix = suffix
		}
	}
	s.Stop()

	switch last.Status {
	case monitor.StateSuccess:
		received := amount.FromAtomicUnits(route.ToAmount, route.ToToken.Decimals)
		printSuccess(color.GreenString("Swap complete! Received ~%s %s.", received, route.ToToken.Symbol))
	case monitor.StateFailed:
		color.Red("\nSwap failed: %v\n", last.Err)
		os.Exit(1)
	case monitor.StateStuck:
		color.Yellow("\n%v", last.Err)
		fmt.Println("\nYou can keep checking manually with:")
		color.Cyan("  xswap status %s --from-chain %d --to-chain %d\n", txHash, route.FromChainID, route.ToChainID)
	}
}

func displaySwapSummary(route *types.Route, sender string) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                     SWAP SUMMARY")
	fmt.Println(strings.Repeat("=", 60))

	send := amount.FromAtomicUnits(route.FromAmount, route.FromToken.Decimals)
	receive := amount.FromAtomicUnits(route.ToAmount, route.ToToken.Decimals)
	minReceive := amount.FromAtomicUnits(route.ToAmountMin, route.ToToken.Decimals)

	fmt.Printf("\n  Wallet:        %s\n", color.CyanString(sender))
	fmt.Printf("  Send:          %s %s (chain %d)\n", send, color.YellowString(route.FromToken.Symbol), route.FromChainID)
	fmt.Printf("  Receive:       ~%s %s (chain %d)\n", receive, color.YellowString(route.ToToken.Symbol), route.ToChainID)
	fmt.Printf("  Minimum:       %s %s\n", minReceive, route.ToToken.Symbol)
	fmt.Printf("  Provider:      %s\n", route.Tool())
	if route.GasCostUSD != "" {
		fmt.Printf("  Gas cost:      $%s\n", route.GasCostUSD)
	}
	if route.CrossChain() {
		fmt.Printf("  Type:          %s\n", color.MagentaString("cross-chain bridge"))
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
}
