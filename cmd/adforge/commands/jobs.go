package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"adforge/internal/domain"
)

func newJobsCmd() *cobra.Command {
	jobs := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect creative jobs",
	}

	get := &cobra.Command{
		Use:   "get <job-id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := serverAddress(cmd)
			if err != nil {
				return err
			}
			var job domain.Job
			if err := newAPIClient(addr).do(cmd.Context(), http.MethodGet, "/v1/jobs/"+url.PathEscape(args[0]), nil, &job); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), job)
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List jobs, optionally filtered by batch and status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, err := serverAddress(cmd)
			if err != nil {
				return err
			}
			q := url.Values{}
			if batch, _ := cmd.Flags().GetString("batch"); batch != "" {
				q.Set("batch_id", batch)
			}
			if status, _ := cmd.Flags().GetString("status"); status != "" {
				q.Set("status", status)
			}
			path := "/v1/jobs"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}
			var resp struct {
				Items []domain.Job `json:"items"`
			}
			if err := newAPIClient(addr).do(cmd.Context(), http.MethodGet, path, nil, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp.Items)
		},
	}
	list.Flags().StringP("batch", "b", "", "batch ID")
	list.Flags().StringP("status", "s", "", "pending, processing, completed or failed")

	jobs.AddCommand(get, list)
	return jobs
}

func newSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a batch request read from --file or stdin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, err := serverAddress(cmd)
			if err != nil {
				return err
			}
			path, _ := cmd.Flags().GetString("file")
			raw, err := readInput(cmd, path)
			if err != nil {
				return fmt.Errorf("read batch: %w", err)
			}
			var body json.RawMessage
			if err := json.Unmarshal(raw, &body); err != nil {
				return fmt.Errorf("decode batch: %w", err)
			}
			var resp struct {
				BatchID string   `json:"batch_id"`
				JobIDs  []string `json:"job_ids"`
			}
			if err := newAPIClient(addr).do(cmd.Context(), http.MethodPost, "/v1/batches", body, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "batch %s: %s\n", resp.BatchID, strings.Join(resp.JobIDs, ", "))
			return nil
		},
	}
	cmd.Flags().StringP("file", "f", "-", "JSON batch request (- for stdin)")
	return cmd
}
