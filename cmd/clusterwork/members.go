package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/seantiz/clusterwork/internal/model"
)

var membersJSON bool

var membersCmd = &cobra.Command{
	Use:   "members",
	Short: "List the workers the front end is routing to",
	RunE:  runMembers,
}

func init() {
	membersCmd.Flags().BoolVar(&membersJSON, "json", false, "print the raw JSON reply")
}

func runMembers(cmd *cobra.Command, args []string) error {
	client := newAPIClient(serverURL, 10*time.Second)
	var members []model.Member
	if _, err := client.do(cmd.Context(), http.MethodGet, "/v1/members", nil, &members); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if membersJSON {
		return printJSON(out, members)
	}
	if len(members) == 0 {
		fmt.Fprintln(out, "No members.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tADDR\tROLES\tLAST SEEN")
	for _, m := range members {
		seen := "-"
		if !m.LastSeen.IsZero() {
			seen = time.Since(m.LastSeen).Round(time.Second).String() + " ago"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.ID, m.Addr, strings.Join(m.Roles, ","), seen)
	}
	return tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
