package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/OCAP2/turnkernel/pkg/core"
)

// NewSeekCmd creates the seek subcommand.
func NewSeekCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seek <dir> <seconds>",
		Short: "Print the reconstructed state of a saved session at an instant",
		Long: `Reconstruct the state of a saved session at the given number of seconds since
session start. Turn n covers the seconds (10(n-1), 10n].`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			total, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid seconds %q: %w", args[1], err)
			}

			s, svc, err := openSaved(cmd.Context(), cmd.ErrOrStderr(), args[0])
			if err != nil {
				return err
			}
			defer svc.close()
			defer s.Close()

			w, err := s.SeekToTime(cmd.Context(), total)
			if err != nil {
				return err
			}
			data, err := w.Capture()
			if err != nil {
				return err
			}

			turn, intra := core.Decompose(total)
			stats := s.Replay().LastStats()
			Logger.Debug("Reconstructed", "turn", turn, "intra", intra,
				"snapshotTurn", stats.SnapshotTurn, "events", stats.Events, "duration", stats.Duration)

			var out bytes.Buffer
			if err := json.Indent(&out, data, "", "  "); err != nil {
				return err
			}
			out.WriteByte('\n')
			_, err = out.WriteTo(cmd.OutOrStdout())
			return err
		},
	}
}
