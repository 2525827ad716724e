package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"Storefront/internal/auth"
	"Storefront/pkg/kit"
)

const requestTimeout = 15 * time.Second

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "storectl",
		Short:         "Operate the storefront recommendation services",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("url", envOr("STORECTL_URL", "http://localhost:8080"), "gateway base URL")

	root.AddCommand(newTokenCmd(), newRecommendCmd(), newRefreshCmd())
	return root
}

func newTokenCmd() *cobra.Command {
	var (
		secret  string
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin bearer token",
		Long: `Mint a signed admin token for the /admin routes.

The secret must match AUTH_JWT_SECRET of the gateway and recommend services.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				return errors.New("secret is required (--secret or AUTH_JWT_SECRET)")
			}
			tok, err := auth.NewTokenMaker(secret).New(subject, auth.RoleAdmin, ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}

	cmd.Flags().StringVar(&secret, "secret", os.Getenv("AUTH_JWT_SECRET"), "HMAC signing secret")
	cmd.Flags().StringVar(&subject, "subject", "storectl", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

func newRecommendCmd() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "recommend <handle>",
		Short: "Print recommendations for a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, _ := cmd.Flags().GetString("url")

			u := strings.TrimRight(base, "/") + "/recommendations/" + url.PathEscape(args[0])
			if mode != "" {
				u += "?mode=" + url.QueryEscape(mode)
			}

			var out struct {
				Items      []string `json:"items"`
				Snapshot   string   `json:"snapshot"`
				Backfilled int      `json:"backfilled"`
			}
			if err := call(cmd.Context(), http.MethodGet, u, "", &out); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, h := range out.Items {
				fmt.Fprintln(w, h)
			}
			if out.Backfilled > 0 {
				fmt.Fprintf(w, "(%d from bestsellers)\n", out.Backfilled)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "similar, interest or occasion")
	return cmd
}

func newRefreshCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Drop the catalog snapshot and load a fresh one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if token == "" {
				return errors.New("token is required (--token or STORECTL_TOKEN)")
			}
			base, _ := cmd.Flags().GetString("url")

			var out struct {
				State    string `json:"state"`
				Snapshot string `json:"snapshot"`
				Items    int    `json:"items"`
			}
			if err := call(cmd.Context(), http.MethodPost, strings.TrimRight(base, "/")+"/admin/cache/refresh", token, &out); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "snapshot %s: %d items (%s)\n", out.Snapshot, out.Items, out.State)
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", os.Getenv("STORECTL_TOKEN"), "admin bearer token")
	return cmd
}

func call(ctx context.Context, method, u, token string, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, u, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var e kit.ErrorResponse
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s %s: %d %s", method, u, resp.StatusCode, e.Error)
		}
		return fmt.Errorf("%s %s: status %d", method, u, resp.StatusCode)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
