package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"xswap/config"
	"xswap/pkg/amount"
	"xswap/pkg/quote"
	"xswap/pkg/types"
)

var (
	quoteFromChain int64
	quoteToChain   int64
	quoteSlippage  float64
)

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <source-token> to <dest-token>",
	Short: "Fetch and compare swap routes without executing",
	Long: `Fetch routes for a swap from the aggregator, validate them and show
the candidates ranked by output amount.

Examples:
  xswap quote 1.5 ETH to USDC
  xswap quote 100 USDC to DAI --slippage 0.01
  xswap quote 50 USDC to WETH --from-chain 1 --to-chain 42161`,
	Args: cobra.MinimumNArgs(1),
	Run:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().Int64Var(&quoteFromChain, "from-chain", 0, "Source chain id (defaults to configured chain)")
	quoteCmd.Flags().Int64Var(&quoteToChain, "to-chain", 0, "Destination chain id (defaults to source chain)")
	quoteCmd.Flags().Float64Var(&quoteSlippage, "slippage", 0.005, "Slippage tolerance (0.005 = 0.5%)")
}

func runQuote(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	routes, cfg, err := fetchRoutes(strings.Join(args, " "), quoteFromChain, quoteToChain, quoteSlippage, "", "", jsonOutput)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(routes, "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	displayRoutes(routes, cfg.QuoteTTL())
}

// fetchRoutes parses the command text, resolves both tokens and runs
// one request through the quote coordinator, returning the screened
// routes best-first.
func fetchRoutes(commandStr string, fromChain, toChain int64, slippage float64, fromAddress, toAddress string, quiet bool) ([]*types.Route, *config.Config, error) {
	req, err := parseSwapArgs(commandStr)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if fromChain == 0 {
		fromChain = cfg.DefaultChainID
	}
	if toChain == 0 {
		toChain = fromChain
	}

	api := newAPIClient(cfg)
	ctx := context.Background()

	s := newSpinner("Resolving tokens...")
	if !quiet {
		s.Start()
	}
	fromToken, err := resolveToken(ctx, api, fromChain, req.FromSymbol)
	if err != nil {
		s.Stop()
		return nil, nil, err
	}
	toToken, err := resolveToken(ctx, api, toChain, req.ToSymbol)
	s.Stop()
	if err != nil {
		return nil, nil, err
	}

	return requestRoutes(ctx, api, quote.Params{
		FromChainID: fromChain,
		ToChainID:   toChain,
		FromToken:   fromToken.Address,
		ToToken:     toToken.Address,
		FromAmount:  amount.ToAtomicUnits(req.Amount, fromToken.Decimals),
		FromAddress: fromAddress,
		ToAddress:   toAddress,
		Slippage:    slippage,
	}, quiet, cfg)
}

func requestRoutes(ctx context.Context, source quote.RouteSource, params quote.Params, quiet bool, cfg *config.Config) ([]*types.Route, *config.Config, error) {
	s := newSpinner("Fetching routes...")
	if !quiet {
		s.Start()
		defer s.Stop()
	}

	// A single CLI invocation has no keystrokes to debounce.
	opts := []quote.Option{quote.WithDebounce(0)}
	if cfg.QuoteTTLSeconds > 0 {
		opts = append(opts, quote.WithFreshness(cfg.QuoteTTL()))
	}
	coord := quote.New(source, opts...)
	defer coord.Close()

	coord.Request(params)
	select {
	case update := <-coord.Updates():
		if update.Err != nil {
			return nil, nil, update.Err
		}
		return update.Routes, cfg, nil
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

func displayRoutes(routes []*types.Route, ttl time.Duration) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                           ROUTES")
	fmt.Println(strings.Repeat("=", 70))

	for i, r := range routes {
		marker := " "
		if i == 0 {
			marker = color.GreenString("*")
		}
		kind := "swap"
		if r.CrossChain() {
			kind = "bridge"
		}
		received := amount.FromAtomicUnits(r.ToAmount, r.ToToken.Decimals)
		minimum := amount.FromAtomicUnits(r.ToAmountMin, r.ToToken.Decimals)

		fmt.Printf("\n%s [%d] %s via %s (%s)\n", marker, i+1, color.YellowString(r.ToToken.Symbol), r.Tool(), kind)
		fmt.Printf("    Receive:  ~%s %s (min %s)\n", received, r.ToToken.Symbol, minimum)
		if r.GasCostUSD != "" {
			fmt.Printf("    Gas cost: $%s\n", r.GasCostUSD)
		}
		if len(r.Steps) > 1 {
			tools := make([]string, len(r.Steps))
			for j, step := range r.Steps {
				tools[j] = step.Tool
			}
			fmt.Printf("    Steps:    %s\n", strings.Join(tools, " -> "))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	fmt.Printf("\n%d route(s); * marks the best output. Quotes expire after %s.\n\n",
		len(routes), ttl)
}
