package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// connectCmd represents the connect command.
var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect the wallet to the loans service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return post(cmd, "/v1/session/connect", map[string]string{"wallet": walletName})
	},
}

// disconnectCmd represents the disconnect command.
var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Disconnect the wallet from the loans service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return post(cmd, "/v1/session/disconnect", nil)
	},
}

// subscribeCmd represents the subscribe command.
var subscribeCmd = &cobra.Command{
	Use:   "subscribe",
	Short: "Subscribe the connected wallet to notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		return post(cmd, "/v1/subscription/subscribe", nil)
	},
}

// unsubscribeCmd represents the unsubscribe command.
var unsubscribeCmd = &cobra.Command{
	Use:   "unsubscribe",
	Short: "Unsubscribe the connected wallet from notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		return post(cmd, "/v1/subscription/unsubscribe", nil)
	},
}

// testCmd represents the test command.
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Send the test notification to the connected wallet",
	RunE: func(cmd *cobra.Command, args []string) error {
		return post(cmd, "/v1/notify/test", nil)
	},
}

// statusCmd represents the status command.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the loans service session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return call(cmd, http.MethodGet, "/v1/status", nil)
	},
}

func init() {
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)
	rootCmd.AddCommand(subscribeCmd)
	rootCmd.AddCommand(unsubscribeCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(statusCmd)
}

func post(cmd *cobra.Command, path string, body any) error {
	return call(cmd, http.MethodPost, path, body)
}

// call sends the request to the service and prints the response.
func call(cmd *cobra.Command, method string, path string, body any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(cmd.Context(), method, strings.TrimSuffix(serviceURL, "/")+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var er struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(data, &er); err == nil && er.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, er.Error)
		}
		return fmt.Errorf("%s", resp.Status)
	}

	if len(data) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), resp.Status)
		return nil
	}

	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), out.String())

	return nil
}
