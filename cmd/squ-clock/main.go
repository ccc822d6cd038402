package main

import (
	// Registers the rtmidi backend used to find and open MIDI inputs.
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/oshokin/squ-clock/cmd/squ-clock/cmd"
)

func main() {
	cmd.Execute()
}
