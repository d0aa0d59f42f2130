package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/OCAP2/turnkernel/internal/session"
	"github.com/OCAP2/turnkernel/pkg/core"
)

// turnSummary is one row of the inspect output.
type turnSummary struct {
	Turn     uint32                   `json:"turn"`
	Events   int                      `json:"events"`
	Types    map[core.PayloadType]int `json:"types"`
	Snapshot bool                     `json:"snapshot"`
}

type inspectReport struct {
	Manifest *session.Manifest `json:"manifest"`
	Turns    []turnSummary     `json:"turns"`
	End      float64           `json:"end"`
}

// NewInspectCmd creates the inspect subcommand.
func NewInspectCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect <dir>",
		Short: "Summarize a saved session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := inspect(cmd, args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			return printReport(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func inspect(cmd *cobra.Command, dir string) (*inspectReport, error) {
	s, svc, err := openSaved(cmd.Context(), cmd.ErrOrStderr(), dir)
	if err != nil {
		return nil, err
	}
	defer svc.close()
	defer s.Close()

	m, err := session.ReadManifest(dir)
	if err != nil {
		return nil, err
	}

	snaps := make(map[uint32]bool)
	for _, t := range s.Snapshots().Turns() {
		snaps[t] = true
	}

	report := &inspectReport{Manifest: m, End: s.Replay().End()}
	for _, turn := range s.Events().Turns() {
		events := s.Events().EventsForTurn(turn)
		row := turnSummary{
			Turn:     turn,
			Events:   len(events),
			Types:    make(map[core.PayloadType]int),
			Snapshot: snaps[turn],
		}
		for _, e := range events {
			row.Types[e.Payload.Type()]++
		}
		report.Turns = append(report.Turns, row)
	}
	return report, nil
}

func printReport(w io.Writer, r *inspectReport) error {
	m := r.Manifest
	fmt.Fprintf(w, "Session:  %s\n", m.SessionID)
	fmt.Fprintf(w, "Scenario: %s\n", m.Scenario)
	fmt.Fprintf(w, "Players:  %s\n", strings.Join(playerNames(m.Players), ", "))
	fmt.Fprintf(w, "Turn:     %d (ended: %t)\n", m.CurrentTurn, m.Ended)
	fmt.Fprintf(w, "Events:   %d in %s\n", m.Events, m.EventLog)
	fmt.Fprintf(w, "Saved:    %s\n", m.SavedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "End:      %.3fs\n\n", r.End)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TURN\tEVENTS\tSNAPSHOT\tTYPES")
	for _, t := range r.Turns {
		snap := ""
		if t.Snapshot {
			snap = "yes"
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", t.Turn, t.Events, snap, typeCounts(t.Types))
	}
	return tw.Flush()
}

func typeCounts(types map[core.PayloadType]int) string {
	keys := slices.Sorted(maps.Keys(types))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, types[k])
	}
	return strings.Join(parts, " ")
}

func playerNames(players []core.PlayerID) []string {
	out := make([]string, len(players))
	for i, p := range players {
		out[i] = string(p)
	}
	return out
}
