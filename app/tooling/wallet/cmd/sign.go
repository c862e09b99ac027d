package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ardanlabs/loans/foundation/wallet"
	"github.com/spf13/cobra"
)

// signCmd represents the sign command.
var signCmd = &cobra.Command{
	Use:   "sign [message]",
	Short: "Sign a message with the wallet using personal_sign",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := lookup()
		if err != nil {
			return err
		}

		sig, err := w.SignMessage(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), sig)
		return nil
	},
}

// verifyCmd represents the verify command.
var verifyCmd = &cobra.Command{
	Use:   "verify [message] [signature]",
	Short: "Verify the wallet signed the message",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := lookup()
		if err != nil {
			return err
		}

		address, err := wallet.RecoverAddress(args[0], args[1])
		if err != nil {
			return err
		}

		if !strings.EqualFold(address, w.Address()) {
			return errors.New("signed by " + address)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "signature is valid")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(verifyCmd)
}
