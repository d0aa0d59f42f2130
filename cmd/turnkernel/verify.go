package main

import (
	"bytes"
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/OCAP2/turnkernel/internal/replay"
	"github.com/OCAP2/turnkernel/internal/session"
	"github.com/OCAP2/turnkernel/internal/sim"
	"github.com/OCAP2/turnkernel/pkg/core"
)

// NewVerifyCmd creates the verify subcommand.
func NewVerifyCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "verify <dir>",
		Short: "Check that snapshots and full replay agree for every turn",
		Long: `Reconstruct the end of every turn of a saved session twice: once through the
saved snapshots and once by replaying the log from the start. Any difference is
reported and fails the command.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, svc, err := openSaved(cmd.Context(), cmd.ErrOrStderr(), args[0])
			if err != nil {
				return err
			}
			defer svc.close()
			defer s.Close()

			results, err := verify(cmd.Context(), s)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			if !quiet {
				fmt.Fprintln(tw, "TURN\tSNAPSHOT\tEVENTS\tRESULT")
			}
			failed := 0
			for _, r := range results {
				if !r.Match {
					failed++
				}
				if quiet && r.Match {
					continue
				}
				snap := "-"
				if r.FromSnapshot {
					snap = fmt.Sprint(r.SnapshotTurn)
				}
				result := "ok"
				if !r.Match {
					result = "MISMATCH"
				}
				fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", r.Turn, snap, r.Events, result)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d turns differ between snapshot and full replay", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "only print mismatches")
	return cmd
}

type verifyResult struct {
	Turn         uint32
	FromSnapshot bool
	SnapshotTurn uint32
	Events       int
	Match        bool
}

// verify compares the snapshot-assisted reconstruction of each turn end against a
// controller that has no snapshots to start from.
func verify(ctx context.Context, s *session.Session) ([]verifyResult, error) {
	bare, err := replay.NewController(replay.Config{Source: replay.SourceSaved}, replay.Dependencies{
		Events: s.Events(),
	})
	if err != nil {
		return nil, err
	}

	var results []verifyResult
	for _, turn := range s.Events().Turns() {
		if turn == 0 {
			continue
		}
		at := core.Compose(turn, core.TurnDuration)

		got, err := s.SeekToTime(ctx, at)
		if err != nil {
			return nil, fmt.Errorf("turn %d: %w", turn, err)
		}
		stats := s.Replay().LastStats()
		want, err := bare.SeekToTime(ctx, at)
		if err != nil {
			return nil, fmt.Errorf("turn %d (full replay): %w", turn, err)
		}

		match, err := sameState(got, want)
		if err != nil {
			return nil, err
		}
		if !match {
			Logger.Warn("Reconstruction mismatch", "turn", turn, "snapshotTurn", stats.SnapshotTurn)
		}
		results = append(results, verifyResult{
			Turn:         turn,
			FromSnapshot: stats.FromSnapshot,
			SnapshotTurn: stats.SnapshotTurn,
			Events:       stats.Events,
			Match:        match,
		})
	}
	return results, nil
}

func sameState(a, b *sim.World) (bool, error) {
	da, err := a.Capture()
	if err != nil {
		return false, err
	}
	db, err := b.Capture()
	if err != nil {
		return false, err
	}
	return bytes.Equal(da, db), nil
}
