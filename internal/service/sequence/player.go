package sequence

import (
	"context"
	"fmt"

	"github.com/oshokin/squ-clock/internal/domain/clock"
	"github.com/oshokin/squ-clock/internal/logger"
	"github.com/oshokin/squ-clock/internal/service/common"
)

const (
	// StepsPerPattern is the length of one pattern in steps.
	StepsPerPattern = 16
	// PulsesPerStep is the number of pulses in a sixteenth note.
	PulsesPerStep = clock.PulsesPerBeat / 4
)

// Position is where the player is in the pattern.
type Position struct {
	// Tick counts pulses since the last reset.
	Tick uint64
	// Beat counts quarter notes since the last reset.
	Beat uint64
	// Step is the sixteenth note inside the pattern, 0-15.
	Step int
	// Resets counts the resets received.
	Resets uint64
}

// positionAt derives the position reached after tick pulses.
func positionAt(tick uint64) Position {
	return Position{
		Tick: tick,
		Beat: tick / clock.PulsesPerBeat,
		Step: int((tick / PulsesPerStep) % StepsPerPattern),
	}
}

// message is either a clock command or a position query.
type message struct {
	cmd   clock.Command
	reply chan<- Position
}

// Player is the sequence consumer actor.
type Player struct {
	mailbox *common.Mailbox[message]

	// Owned by the mailbox goroutine.
	tick    uint64
	resets  uint64
	started bool
}

// NewPlayer starts a player with its own mailbox.
func NewPlayer(ctx context.Context, mailboxSize int) *Player {
	p := &Player{
		mailbox: common.NewMailbox[message]("sequence", mailboxSize),
	}

	p.mailbox.Start(logger.WithName(ctx, "sequence"), p.handle)

	return p
}

// Send implements common.Ref for the clock controller.
func (p *Player) Send(ctx context.Context, cmd clock.Command) error {
	return p.mailbox.Send(ctx, message{cmd: cmd})
}

// Position returns the current position.
func (p *Player) Position(ctx context.Context) (Position, error) {
	reply := make(chan Position, 1)

	if err := p.mailbox.Send(ctx, message{reply: reply}); err != nil {
		return Position{}, fmt.Errorf("request position: %w", err)
	}

	select {
	case pos := <-reply:
		return pos, nil
	case <-p.mailbox.Done():
		return Position{}, common.ErrStopped
	case <-ctx.Done():
		return Position{}, ctx.Err()
	}
}

// Stop terminates the player.
func (p *Player) Stop() {
	p.mailbox.Stop()
}

func (p *Player) handle(ctx context.Context, msg message) {
	if msg.reply != nil {
		pos := positionAt(p.tick)
		pos.Resets = p.resets
		msg.reply <- pos

		return
	}

	switch msg.cmd {
	case clock.CommandReset:
		p.tick = 0
		p.resets++
		p.started = false

		logger.DebugKV(ctx, "Sequence rewound", "resets", p.resets)

	case clock.CommandPulse:
		// The pulse following a reset plays tick 0.
		if !p.started {
			p.started = true

			return
		}

		p.tick++

		if p.tick%(PulsesPerStep*StepsPerPattern) == 0 {
			logger.DebugKV(ctx, "Pattern wrapped", "beat", p.tick/clock.PulsesPerBeat)
		}
	}
}
