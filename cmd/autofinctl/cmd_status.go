package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashureev/autofinance/internal/api"
)

func newStatusCmd() *cobra.Command {
	var (
		server  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "status <application-id>",
		Short: "Look up the review status of a submitted application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &http.Client{Timeout: timeout}
			view, err := fetchApplication(cmd, client, server, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Application %s\n", view.ID)
			fmt.Fprintf(out, "  Status:      %s\n", view.Status)
			fmt.Fprintf(out, "  Vehicle:     %s\n", view.Vehicle)
			fmt.Fprintf(out, "  Installment: %.2f x %d months\n", view.MonthlyInstallment, view.TenureMonths)
			fmt.Fprintf(out, "  Submitted:   %s\n", view.CreatedAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "AutoFinance server base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	return cmd
}

func fetchApplication(cmd *cobra.Command, client *http.Client, server, id string) (*api.ApplicationView, error) {
	endpoint := strings.TrimRight(server, "/") + "/api/applications/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request application: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body.Error == "" {
			body.Error = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Error)
	}

	var view api.ApplicationView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return nil, fmt.Errorf("decode application: %w", err)
	}
	return &view, nil
}
