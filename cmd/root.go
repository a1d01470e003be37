package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "xswap",
	Short: "A CLI for token swaps and bridges via a routing aggregator",
	Long: `xswap is a command-line tool for swapping and bridging tokens across
EVM chains. It fetches routes from a routing aggregator, validates them,
handles ERC-20 approvals, submits the transaction and tracks it to a
terminal outcome.

Examples:
  xswap quote 1.5 ETH to USDC
  xswap swap 100 USDC to WETH --yes
  xswap swap 50 USDC to DAI --to-chain 137
  xswap status 0xabc... --from-chain 1 --to-chain 137 --watch
  xswap history`,
	Version: "0.1.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			logrus.SetLevel(logrus.DebugLevel)
		} else {
			logrus.SetLevel(logrus.WarnLevel)
		}
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
