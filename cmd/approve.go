package cmd

import (
	"context"
	"fmt"
	"math/big"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"xswap/config"
	"xswap/pkg/amount"
	"xswap/pkg/approval"
	"xswap/pkg/types"
)

var (
	approveChain     int64
	approveSpender   string
	approveUnlimited bool
)

var approveCmd = &cobra.Command{
	Use:   "approve <token> [amount]",
	Short: "Grant the router an ERC-20 allowance",
	Long: `Grant the aggregator's router contract an allowance to spend a token,
without running a swap. Useful for pre-approving before quoting.

Examples:
  xswap approve USDC 100
  xswap approve WETH --unlimited
  xswap approve USDC 50 --chain 137`,
	Args: cobra.RangeArgs(1, 2),
	Run:  runApprove,
}

func init() {
	rootCmd.AddCommand(approveCmd)

	approveCmd.Flags().Int64Var(&approveChain, "chain", 0, "Chain id (defaults to configured chain)")
	approveCmd.Flags().StringVar(&approveSpender, "spender", "", "Spender contract (defaults to the known router)")
	approveCmd.Flags().BoolVar(&approveUnlimited, "unlimited", false, "Approve the maximum allowance")
}

func runApprove(cmd *cobra.Command, args []string) {
	if len(args) == 1 && !approveUnlimited {
		printError(fmt.Errorf("an amount is required unless --unlimited is set"))
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if approveChain == 0 {
		approveChain = cfg.DefaultChainID
	}

	signer, err := newSigner(cfg)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer signer.Close()

	ctx := context.Background()
	api := newAPIClient(cfg)

	token, err := resolveToken(ctx, api, approveChain, args[0])
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if types.IsNativeAsset(token.Address) {
		printError(fmt.Errorf("%s is the chain's native asset and needs no approval", token.Symbol))
		os.Exit(1)
	}

	required := approval.MaxUint256
	if len(args) == 2 {
		atomic := amount.ToAtomicUnits(args[1], token.Decimals)
		required, _ = new(big.Int).SetString(atomic, 10)
		if required.Sign() == 0 {
			printError(fmt.Errorf("invalid amount %q", args[1]))
			os.Exit(1)
		}
	}

	spender := approveSpender
	if spender == "" {
		spender = config.Diamond
		if routers := cfg.Routers[approveChain]; len(routers) > 0 {
			spender = routers[0]
		}
	}

	if err := signer.SwitchChain(ctx, approveChain); err != nil {
		printError(err)
		os.Exit(1)
	}

	machine := approval.New(signer, token.Address, signer.Address(), spender, required, false)

	s := newSpinner("Checking current allowance...")
	s.Start()
	status, err := machine.Check(ctx)
	s.Stop()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if status == approval.StatusApproved {
		printSuccess(fmt.Sprintf("%s already has a sufficient allowance for %s.", spender, token.Symbol))
		return
	}

	s = newSpinner("Approving...")
	s.Start()
	err = machine.Approve(ctx, approveUnlimited)
	s.Stop()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	color.Green("\nApproval confirmed.")
	fmt.Printf("  Token:    %s\n", color.YellowString(token.Symbol))
	fmt.Printf("  Spender:  %s\n\n", color.CyanString(spender))
}
