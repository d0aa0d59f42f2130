package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/OCAP2/turnkernel/internal/geo"
	"github.com/OCAP2/turnkernel/internal/movement"
	"github.com/OCAP2/turnkernel/pkg/core"
)

type trajectoryReport struct {
	Turn         uint32                 `json:"turn"`
	Entity       core.EntityID          `json:"entity"`
	Mode         core.MovementMode      `json:"mode"`
	WKT          string                 `json:"wkt"`
	Length3D     float64                `json:"length3d"`
	GroundLength float64                `json:"groundLength"`
	ArcLength    float64                `json:"arcLength"`
	Confirmed    core.MovementConfirmed `json:"confirmed"`
}

// NewTrajectoryCmd creates the trajectory subcommand.
func NewTrajectoryCmd() *cobra.Command {
	var (
		samples int
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "trajectory <dir> <turn> <entity>",
		Short: "Print the confirmed movement curve of an entity as WKT",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			turn, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid turn %q: %w", args[1], err)
			}
			entity, err := strconv.ParseUint(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid entity %q: %w", args[2], err)
			}

			s, svc, err := openSaved(cmd.Context(), cmd.ErrOrStderr(), args[0])
			if err != nil {
				return err
			}
			defer svc.close()
			defer s.Close()

			confirmed, ok := findConfirmed(s.Events().EventsForTurn(uint32(turn)), core.EntityID(entity))
			if !ok {
				return fmt.Errorf("entity %d has no confirmed movement in turn %d", entity, turn)
			}
			curve := movement.FromConfirmed(confirmed)
			ls, err := geo.Trajectory(curve, samples)
			if err != nil {
				return err
			}

			report := trajectoryReport{
				Turn:         uint32(turn),
				Entity:       core.EntityID(entity),
				Mode:         confirmed.Mode,
				WKT:          ls.AsText(),
				Length3D:     geo.Length3D(ls),
				GroundLength: geo.GroundLength(ls),
				ArcLength:    curve.ArcLength(),
				Confirmed:    confirmed,
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			fmt.Fprintln(out, report.WKT)
			fmt.Fprintf(out, "mode=%s arc=%.4f length3d=%.4f ground=%.4f\n",
				report.Mode, report.ArcLength, report.Length3D, report.GroundLength)
			return nil
		},
	}

	cmd.Flags().IntVar(&samples, "samples", geo.DefaultSamples, "number of segments to sample the curve into")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

// findConfirmed returns the last confirmation for entity in a turn. A later
// cancellation voids it.
func findConfirmed(events []core.Event, entity core.EntityID) (core.MovementConfirmed, bool) {
	var (
		found core.MovementConfirmed
		ok    bool
	)
	for _, e := range events {
		switch p := e.Payload.(type) {
		case core.MovementConfirmed:
			if p.Entity == entity {
				found, ok = p, true
			}
		case core.MovementCancelled:
			if p.Entity == entity {
				ok = false
			}
		}
	}
	return found, ok
}
