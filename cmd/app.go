package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"xswap/config"
	"xswap/pkg/cache"
	"xswap/pkg/client"
	"xswap/pkg/history"
	"xswap/pkg/parser"
	"xswap/pkg/types"
	"xswap/pkg/wallet"
)

func parseSwapArgs(commandStr string) (*parser.SwapRequest, error) {
	req, err := parser.ParseSwapCommand(commandStr)
	if err != nil {
		return nil, err
	}
	if err := parser.ValidateSwapRequest(req); err != nil {
		return nil, err
	}
	return req, nil
}

// newAPIClient wires the aggregator client with the file cache and the
// token sanitizer. A broken cache directory degrades to uncached
// operation instead of failing the command.
func newAPIClient(cfg *config.Config) *client.Client {
	fileCache, err := cache.New(cfg.DataDir)
	if err != nil {
		logrus.WithError(err).Warn("reference cache unavailable, continuing without it")
		fileCache = nil
	}

	sanitizerCfg := client.DefaultSanitizerConfig()
	if cfg.StablePegLow > 0 {
		sanitizerCfg.PegLow = cfg.StablePegLow
	}
	if cfg.StablePegHigh > 0 {
		sanitizerCfg.PegHigh = cfg.StablePegHigh
	}
	// Configured floors override the defaults per symbol rather than
	// replacing the whole table.
	for symbol, floor := range cfg.PriceFloors {
		sanitizerCfg.PriceFloors[symbol] = floor
	}

	return client.New(cfg.BaseURL, cfg.APIKey, fileCache, client.NewSanitizer(sanitizerCfg))
}

// newSigner builds the signing wallet for commands that submit
// transactions.
func newSigner(cfg *config.Config) (*wallet.EVMWallet, error) {
	if err := cfg.RequireSigner(); err != nil {
		return nil, err
	}
	return wallet.NewEVM(wallet.ChainEndpoints(cfg.RPCEndpoints), cfg.PrivateKey, cfg.DefaultChainID)
}

func newHistoryStore(cfg *config.Config) (*history.Store, error) {
	return history.NewStore(cfg.DataDir)
}

// resolveToken finds a token by symbol in the aggregator's token list
// for the chain.
func resolveToken(ctx context.Context, api *client.Client, chainID int64, symbol string) (*types.Token, error) {
	byChain, err := api.Tokens(ctx, []int64{chainID})
	if err != nil {
		return nil, err
	}
	for _, tok := range byChain[chainID] {
		if strings.EqualFold(tok.Symbol, symbol) {
			t := tok
			return &t, nil
		}
	}
	return nil, fmt.Errorf("token %s not found on chain %d (try: xswap list-tokens --chain %d)", symbol, chainID, chainID)
}

func newSpinner(suffix string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + suffix
	return s
}

func confirmPrompt(question string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("\n%s (y/N): ", question)

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

// cliConfirmer routes the executor's security prompts to the terminal.
// With --yes the prompts are declined rather than auto-accepted: a
// route touching an unknown router should never slip through a
// non-interactive run.
type cliConfirmer struct {
	interactive bool
}

func (c *cliConfirmer) ConfirmUnknownRouter(address string) bool {
	if !c.interactive {
		return false
	}
	color.Yellow("\nWarning: destination %s is not a known router contract.", address)
	return confirmPrompt("Proceed anyway?")
}

func (c *cliConfirmer) ConfirmHighGas(gasLimit uint64) bool {
	if !c.interactive {
		return false
	}
	color.Yellow("\nWarning: the transaction declares an unusually high gas limit (%d).", gasLimit)
	return confirmPrompt("Proceed anyway?")
}
