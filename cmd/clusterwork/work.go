package main

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/seantiz/clusterwork/internal/model"
)

var (
	workTimeout time.Duration
	workJSON    bool
)

var workCmd = &cobra.Command{
	Use:   "work <tasks>",
	Short: "Submit a work request and print the per-task statuses",
	Long: `Submit a work request of <tasks> tasks to a running front end and wait for
the aggregated reply. Statuses are printed one per line in task order.`,
	Args: cobra.ExactArgs(1),
	RunE: runWork,
}

func init() {
	workCmd.Flags().DurationVar(&workTimeout, "timeout", 2*time.Minute, "how long to wait for the reply")
	workCmd.Flags().BoolVar(&workJSON, "json", false, "print the raw JSON reply")
}

func runWork(cmd *cobra.Command, args []string) error {
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("tasks must be an integer: %w", err)
	}
	if n < 0 {
		return fmt.Errorf("tasks must not be negative, got %d", n)
	}

	client := newAPIClient(serverURL, workTimeout)
	var resp model.WorkResponse
	header, err := client.do(cmd.Context(), http.MethodPost, "/work", model.WorkRequest{Tasks: n}, &resp)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if workJSON {
		return printJSON(out, resp)
	}

	for _, status := range resp.Statuses {
		fmt.Fprintln(out, status)
	}
	if id := header.Get("X-Run-Id"); id != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "run %s: %d tasks\n", id, len(resp.Statuses))
	}
	return nil
}
