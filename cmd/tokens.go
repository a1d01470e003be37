package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"xswap/config"
	"xswap/pkg/types"
)

var (
	filterChain  string
	filterSymbol string
)

var tokensCmd = &cobra.Command{
	Use:     "list-tokens",
	Aliases: []string{"tokens", "ls"},
	Short:   "List supported tokens",
	Long: `List the tokens the aggregator supports, grouped by chain. Corrupted
listings (mislabeled stablecoins, off-peg prices) are filtered out
before display.

Examples:
  xswap list-tokens
  xswap list-tokens --chain 137
  xswap list-tokens --chain polygon
  xswap list-tokens --symbol USDC`,
	Run: runListTokens,
}

var chainsCmd = &cobra.Command{
	Use:   "chains",
	Short: "List supported chains",
	Run:   runListChains,
}

func init() {
	rootCmd.AddCommand(tokensCmd)
	rootCmd.AddCommand(chainsCmd)

	tokensCmd.Flags().StringVar(&filterChain, "chain", "", "Filter by chain id or key")
	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol")
}

func runListChains(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	api := newAPIClient(cfg)

	s := newSpinner("Fetching supported chains...")
	if !jsonOutput {
		s.Start()
	}
	chains, err := api.Chains(context.Background())
	s.Stop()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(chains, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 50))
	color.Green("                SUPPORTED CHAINS")
	fmt.Println(strings.Repeat("=", 50))
	for _, chain := range chains {
		fmt.Printf("  %6d  %-12s %s\n", chain.ID, color.CyanString(chain.Key), chain.Name)
	}
	fmt.Println(strings.Repeat("=", 50) + "\n")
}

func runListTokens(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	api := newAPIClient(cfg)
	ctx := context.Background()

	s := newSpinner("Fetching supported tokens...")
	if !jsonOutput {
		s.Start()
	}

	chains, err := api.Chains(ctx)
	if err != nil {
		s.Stop()
		printError(err)
		os.Exit(1)
	}
	selected := selectChains(chains, filterChain)
	if len(selected) == 0 {
		s.Stop()
		printError(fmt.Errorf("no chain matches %q (try: xswap chains)", filterChain))
		os.Exit(1)
	}

	ids := make([]int64, len(selected))
	for i, chain := range selected {
		ids[i] = chain.ID
	}
	byChain, err := api.Tokens(ctx, ids)
	s.Stop()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if filterSymbol != "" {
		for id, tokens := range byChain {
			var keep []types.Token
			for _, tok := range tokens {
				if strings.Contains(strings.ToUpper(tok.Symbol), strings.ToUpper(filterSymbol)) {
					keep = append(keep, tok)
				}
			}
			byChain[id] = keep
		}
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(byChain, "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	displayTokens(selected, byChain)
}

// selectChains narrows the chain list by id or key; an empty filter
// keeps everything.
func selectChains(chains []types.Chain, filter string) []types.Chain {
	if filter == "" {
		return chains
	}
	id, _ := strconv.ParseInt(filter, 10, 64)
	var out []types.Chain
	for _, chain := range chains {
		if chain.ID == id || strings.EqualFold(chain.Key, filter) || strings.EqualFold(chain.Name, filter) {
			out = append(out, chain)
		}
	}
	return out
}

func displayTokens(chains []types.Chain, byChain map[int64][]types.Token) {
	total := 0
	for _, tokens := range byChain {
		total += len(tokens)
	}
	if total == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                            SUPPORTED TOKENS")
	fmt.Println(strings.Repeat("=", 90))

	// Sort chains alphabetically
	sorted := make([]types.Chain, len(chains))
	copy(sorted, chains)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	populated := 0
	for _, chain := range sorted {
		tokens := byChain[chain.ID]
		if len(tokens) == 0 {
			continue
		}
		populated++

		color.Cyan("\n%s (chain %d)", strings.ToUpper(chain.Name), chain.ID)
		fmt.Println(strings.Repeat("-", 90))

		for _, token := range tokens {
			address := token.Address
			if len(address) > 40 {
				address = address[:37] + "..."
			}
			price := ""
			if token.PriceUSD != "" {
				price = "$" + token.PriceUSD
			}
			fmt.Printf("  %-10s  %2d decimals  %-42s %s\n",
				color.YellowString(token.Symbol),
				token.Decimals,
				color.HiBlackString(address),
				price)
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens across %d chains\n\n", total, populated)
}
