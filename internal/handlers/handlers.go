// Package handlers turns the string arguments of front-end commands into session
// inputs. Arguments may arrive quoted with doubled inner quotes; every parser cleans
// them first.
//
// Argument layouts:
//
//	:SPAWN:          json(EntitySpawned)
//	:ACTION:PLAN:    turn, entity, "[x,y,z]", [mode], ["[x,y,z,w]"]
//	:ACTION:CONFIRM: turn, entity
//	:ACTION:CANCEL:  turn, entity
//	:ACTION:FIRE:    turn, entity, target, weapon, at
//	:ACTION:READY:   turn, player
//	:EVENT:          type, at (empty when untimed), json(payload)
//	:SEEK:           total seconds
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/OCAP2/turnkernel/internal/session"
	"github.com/OCAP2/turnkernel/internal/util"
	"github.com/OCAP2/turnkernel/pkg/core"
)

// ErrArgs is wrapped by every argument error.
var ErrArgs = errors.New("invalid command arguments")

// ActionCommand is a parsed :ACTION: command.
type ActionCommand struct {
	Turn   uint32
	Entity core.EntityID
	Action session.Action
}

// RecordCommand is a parsed :EVENT: command. At is nil for untimed events.
type RecordCommand struct {
	At      *float64
	Payload core.Payload
}

// Parser parses command arguments.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a parser. A nil logger uses slog.Default.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

func argsError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrArgs, fmt.Sprintf(format, args...))
}

func need(data []string, n int, what string) error {
	if len(data) < n {
		return argsError("%s needs %d arguments, got %d", what, n, len(data))
	}
	return nil
}

func (p *Parser) extra(data []string, n int, what string) {
	if len(data) > n {
		p.logger.Debug("Ignoring extra command arguments", "command", what, "extra", len(data)-n)
	}
}

// ParseSpawn parses an entity spawn from its JSON form.
func (p *Parser) ParseSpawn(data []string) (core.EntitySpawned, error) {
	var spawn core.EntitySpawned
	if err := need(data, 1, "spawn"); err != nil {
		return spawn, err
	}
	data = util.CleanArgs(data)
	p.extra(data, 1, "spawn")

	if err := json.Unmarshal([]byte(data[0]), &spawn); err != nil {
		return spawn, argsError("error unmarshalling spawn: %v", err)
	}
	if spawn.Rotation == (core.Quat{}) {
		spawn.Rotation = core.Identity
	}
	return spawn, nil
}

// ParsePlan parses a move plan. The mode defaults to default and the rotation to
// the entity's current heading.
func (p *Parser) ParsePlan(data []string) (ActionCommand, error) {
	var cmd ActionCommand
	if err := need(data, 3, "plan"); err != nil {
		return cmd, err
	}
	data = util.CleanArgs(data)
	p.extra(data, 5, "plan")

	turn, entity, err := turnEntity(data)
	if err != nil {
		return cmd, err
	}
	target, err := parseVec3(data[2])
	if err != nil {
		return cmd, err
	}
	plan := session.PlanMove{Target: target}
	if len(data) > 3 {
		if plan.Mode, err = core.ParseMovementMode(data[3]); err != nil {
			return cmd, argsError("%v", err)
		}
	}
	if len(data) > 4 && data[4] != "" {
		if plan.Rotation, err = parseQuat(data[4]); err != nil {
			return cmd, err
		}
	}
	return ActionCommand{Turn: turn, Entity: entity, Action: plan}, nil
}

// ParseEntityAction parses the turn and entity of an argument-free action such as
// confirm or cancel.
func (p *Parser) ParseEntityAction(data []string, action session.Action) (ActionCommand, error) {
	if err := need(data, 2, "action"); err != nil {
		return ActionCommand{}, err
	}
	data = util.CleanArgs(data)
	p.extra(data, 2, "action")

	turn, entity, err := turnEntity(data)
	if err != nil {
		return ActionCommand{}, err
	}
	return ActionCommand{Turn: turn, Entity: entity, Action: action}, nil
}

// ParseFire parses a shot at intra-turn time.
func (p *Parser) ParseFire(data []string) (ActionCommand, error) {
	var cmd ActionCommand
	if err := need(data, 5, "fire"); err != nil {
		return cmd, err
	}
	data = util.CleanArgs(data)
	p.extra(data, 5, "fire")

	turn, entity, err := turnEntity(data)
	if err != nil {
		return cmd, err
	}
	target, err := parseEntity(data[2])
	if err != nil {
		return cmd, err
	}
	at, err := parseFinite(data[4], "fire time")
	if err != nil {
		return cmd, err
	}
	return ActionCommand{
		Turn:   turn,
		Entity: entity,
		Action: session.Fire{Target: target, Weapon: data[3], At: at},
	}, nil
}

// ParseReady parses a player's ready signal.
func (p *Parser) ParseReady(data []string) (ActionCommand, error) {
	var cmd ActionCommand
	if err := need(data, 2, "ready"); err != nil {
		return cmd, err
	}
	data = util.CleanArgs(data)
	p.extra(data, 2, "ready")

	turn, err := parseTurn(data[0])
	if err != nil {
		return cmd, err
	}
	if data[1] == "" {
		return cmd, argsError("ready needs a player")
	}
	return ActionCommand{Turn: turn, Action: session.Ready{Player: core.PlayerID(data[1])}}, nil
}

// ParseRecord parses an externally produced event through the payload registry, so
// unknown types are rejected.
func (p *Parser) ParseRecord(data []string) (RecordCommand, error) {
	var cmd RecordCommand
	if err := need(data, 3, "event"); err != nil {
		return cmd, err
	}
	data = util.CleanArgs(data)
	p.extra(data, 3, "event")

	if data[1] != "" {
		at, err := parseFinite(data[1], "event time")
		if err != nil {
			return cmd, err
		}
		cmd.At = core.At(at)
	}
	payload, err := core.DecodePayload(core.PayloadType(data[0]), []byte(data[2]))
	if err != nil {
		return cmd, argsError("%v", err)
	}
	cmd.Payload = payload
	return cmd, nil
}

// ParseSeconds parses a single finite number such as a seek target, a playback
// speed or an advance step.
func (p *Parser) ParseSeconds(data []string, what string) (float64, error) {
	if err := need(data, 1, what); err != nil {
		return 0, err
	}
	data = util.CleanArgs(data)
	p.extra(data, 1, what)
	return parseFinite(data[0], what)
}

func turnEntity(data []string) (uint32, core.EntityID, error) {
	turn, err := parseTurn(data[0])
	if err != nil {
		return 0, 0, err
	}
	entity, err := parseEntity(data[1])
	if err != nil {
		return 0, 0, err
	}
	return turn, entity, nil
}

func parseTurn(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, argsError("error converting turn %q: %v", s, err)
	}
	return uint32(v), nil
}

func parseEntity(s string) (core.EntityID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, argsError("error converting entity id %q: %v", s, err)
	}
	return core.EntityID(v), nil
}

func parseFinite(s, what string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, argsError("error converting %s %q: %v", what, s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, argsError("%s must be finite, got %v", what, v)
	}
	return v, nil
}

func parseVec3(s string) (core.Vec3, error) {
	f, err := util.ParseFloatList(s)
	if err != nil {
		return core.Vec3{}, argsError("%v", err)
	}
	if len(f) != 3 {
		return core.Vec3{}, argsError("position needs 3 components, got %d", len(f))
	}
	return core.V(f[0], f[1], f[2]), nil
}

func parseQuat(s string) (core.Quat, error) {
	f, err := util.ParseFloatList(s)
	if err != nil {
		return core.Quat{}, argsError("%v", err)
	}
	if len(f) != 4 {
		return core.Quat{}, argsError("rotation needs 4 components, got %d", len(f))
	}
	q := core.Quat{X: f[0], Y: f[1], Z: f[2], W: f[3]}
	if q.Length() == 0 {
		return core.Quat{}, argsError("rotation must not be zero")
	}
	return q.Normalize(), nil
}
