package clockd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/oshokin/squ-clock/internal/domain/clock"
	"github.com/oshokin/squ-clock/internal/logger"
	"github.com/oshokin/squ-clock/internal/service/supervisor"
)

var (
	// errUnknownCommand is returned for console input that is not a command.
	errUnknownCommand = errors.New("unknown command")
	// errMissingArgument is returned when a command needs a value.
	errMissingArgument = errors.New("missing argument")
)

// consoleHelp lists the accepted console commands.
const consoleHelp = "start | stop | continue | tempo <bpm> | swing <0..1> | source internal|external | status"

// request is a parsed console line: either an event for the controller or a
// status query.
type request struct {
	event  clock.Event
	status bool
}

// parseCommand turns one console line into a request.
func parseCommand(line string) (request, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return request{}, nil
	}

	name, args := fields[0], fields[1:]

	switch name {
	case "start":
		return request{event: clock.Start{}}, nil
	case "stop":
		return request{event: clock.Stop{}}, nil
	case "continue":
		return request{event: clock.Continue{}}, nil
	case "status":
		return request{status: true}, nil
	}

	if len(args) == 0 {
		if name == "tempo" || name == "swing" || name == "source" {
			return request{}, fmt.Errorf("%w for %q", errMissingArgument, name)
		}

		return request{}, fmt.Errorf("%w: %q", errUnknownCommand, name)
	}

	switch name {
	case "tempo":
		bpm, err := strconv.Atoi(args[0])
		if err != nil {
			return request{}, fmt.Errorf("parse tempo: %w", err)
		}

		return request{event: clock.ChangeTempo{BPM: bpm}}, nil

	case "swing":
		amount, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return request{}, fmt.Errorf("parse swing: %w", err)
		}

		return request{event: clock.ChangeSwing{Amount: amount}}, nil

	case "source":
		kind, err := clock.ParseSourceKind(args[0])
		if err != nil {
			return request{}, err
		}

		return request{event: clock.SwitchSource{Kind: kind}}, nil
	}

	return request{}, fmt.Errorf("%w: %q", errUnknownCommand, name)
}

// runConsole reads commands from r until it is exhausted or ctx is done.
func runConsole(ctx context.Context, r io.Reader, sup *supervisor.Supervisor) {
	ctx = logger.WithName(ctx, "console")

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		req, err := parseCommand(scanner.Text())
		if err != nil {
			logger.WarnKV(ctx, "Bad command", "error", err, "usage", consoleHelp)

			continue
		}

		switch {
		case req.status:
			logStatus(ctx, sup)
		case req.event != nil:
			if err = sup.Controller().Send(ctx, req.event); err != nil {
				logger.WarnKV(ctx, "Command not delivered", "error", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		logger.WarnKV(ctx, "Console closed", "error", err)
	}
}

// logStatus logs the controller snapshot and the player position.
func logStatus(ctx context.Context, sup *supervisor.Supervisor) {
	snap, err := sup.Controller().Snapshot(ctx)
	if err != nil {
		logger.WarnKV(ctx, "Status unavailable", "error", err)

		return
	}

	pos, err := sup.Player().Position(ctx)
	if err != nil {
		logger.WarnKV(ctx, "Position unavailable", "error", err)

		return
	}

	logger.InfoKV(ctx, "Clock status",
		"state", snap.State,
		"source", snap.Source,
		"tempo", snap.Config.Tempo,
		"swing", snap.Config.Swing,
		"external_tempo", snap.ExternalTempo,
		"pulses", snap.Pulses,
		"beat", pos.Beat,
		"step", pos.Step)
}
