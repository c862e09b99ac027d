// Package cmd contains the wallet commands.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	walletName string
	walletPath string
	serviceURL string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage wallets and the loans service session",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&walletName, "wallet", "w", "private", "Name of the wallet.")
	rootCmd.PersistentFlags().StringVarP(&walletPath, "wallet-path", "p", "zwallet/keys/", "Path to the directory with private keys.")
	rootCmd.PersistentFlags().StringVarP(&serviceURL, "url", "u", "http://localhost:8080", "Url of the loans service.")
}
