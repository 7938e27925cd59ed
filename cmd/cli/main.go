package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/iho/homeledger/internal/adapter/http/dto"
	"github.com/iho/homeledger/internal/adapter/http/middleware"
	"github.com/iho/homeledger/internal/domain"
	"github.com/iho/homeledger/internal/infrastructure/auth"
)

// options are the flags shared by every command.
type options struct {
	baseURL  string
	timeout  time.Duration
	familyID string
	userID   string
	token    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:          "homeledger-cli",
		Short:        "HomeLedger CLI tool",
		Long:         `A command line interface for interacting with the HomeLedger API.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", envOr("HOMELEDGER_URL", "http://localhost:8080"), "Base URL of the HomeLedger API")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().StringVar(&opts.familyID, "family", os.Getenv("HOMELEDGER_FAMILY"), "Family to act for")
	rootCmd.PersistentFlags().StringVar(&opts.userID, "user", os.Getenv("HOMELEDGER_USER"), "User to act as")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("HOMELEDGER_TOKEN"), "Bearer token; overrides --family and --user")

	// Ledger commands
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger operations",
	}
	ledgerCmd.AddCommand(consistencyCmd(opts))

	invoicesCmd := &cobra.Command{
		Use:   "invoices",
		Short: "Invoice operations",
	}
	invoicesCmd.AddCommand(closeExpiredCmd(opts))

	accountsCmd := &cobra.Command{
		Use:   "accounts",
		Short: "Account operations",
	}
	accountsCmd.AddCommand(listAccountsCmd(opts))

	rootCmd.AddCommand(ledgerCmd, invoicesCmd, accountsCmd, tokenCmd())

	return rootCmd
}

func consistencyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "consistency",
		Short: "Check that invoice and transaction totals match their installments",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := opts.do(http.MethodGet, "/api/v1/ledger/consistency", nil)
			if err != nil {
				return err
			}

			var report dto.ConsistencyResponse
			if status != http.StatusOK && status != http.StatusConflict {
				return fmt.Errorf("consistency check failed (status %d): %s", status, body)
			}
			if err := json.Unmarshal(body, &report); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			if report.Consistent {
				fmt.Fprintln(out, "Consistency check PASSED")
				return nil
			}

			fmt.Fprintln(out, "Consistency check FAILED")
			for _, m := range report.Invoices {
				fmt.Fprintf(out, "  invoice %s: recorded %s, expected %s\n", m.InvoiceID, m.Recorded, m.Expected)
			}
			for _, m := range report.Transactions {
				fmt.Fprintf(out, "  transaction %s: recorded %s, installments %s\n", m.TransactionID, m.Recorded, m.Installments)
			}
			for _, m := range report.Cards {
				fmt.Fprintf(out, "  card %s: used %s, invoices outstanding %s\n", m.CreditCardID, m.Recorded, m.Expected)
			}
			return domain.ErrInconsistentLedger
		},
	}
}

func closeExpiredCmd(opts *options) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "close-expired",
		Short: "Close every open invoice past its closing day",
		RunE: func(cmd *cobra.Command, args []string) error {
			var req dto.CloseExpiredRequest
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
				req.At = &t
			}

			status, body, err := opts.do(http.MethodPost, "/api/v1/invoices/close-expired", req)
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return fmt.Errorf("close expired invoices failed (status %d): %s", status, body)
			}

			var resp dto.CountResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Closed %d invoice(s)\n", resp.Count)
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "Sweep as of this RFC 3339 instant instead of now")

	return cmd
}

func listAccountsCmd(opts *options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the family's accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := opts.do(http.MethodGet, "/api/v1/accounts/", nil)
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return fmt.Errorf("list accounts failed (status %d): %s", status, body)
			}

			var resp dto.ListAccountsResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), resp)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tBALANCE")
			for _, a := range resp.Accounts {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", a.ID, truncate(a.Name, 24), a.Balance.StringFixed(domain.MinorUnitExponent))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print raw JSON")

	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		secret string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <family-id> <user-id>",
		Short: "Issue a bearer token for a family member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return errors.New("--secret or JWT_SECRET is required")
			}

			token, err := auth.NewJWTManager(secret, ttl).Generate(domain.Tenant{FamilyID: args[0], UserID: args[1]})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "Signing secret shared with the server")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")

	return cmd
}

// do sends a request with the tenant credentials and returns the status and body.
func (o *options) do(method, path string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, o.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if o.token != "" {
		req.Header.Set("Authorization", "Bearer "+o.token)
	} else {
		req.Header.Set(middleware.FamilyIDHeader, o.familyID)
		req.Header.Set(middleware.UserIDHeader, o.userID)
	}

	client := &http.Client{Timeout: o.timeout}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}

	return resp.StatusCode, data, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
