package clockd

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/squ-clock/internal/domain/clock"
)

func TestParseCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		line    string
		want    request
		wantErr error
	}{
		{name: "blank", line: "   ", want: request{}},
		{name: "start", line: "start", want: request{event: clock.Start{}}},
		{name: "stop upper case", line: "STOP", want: request{event: clock.Stop{}}},
		{name: "continue", line: "continue", want: request{event: clock.Continue{}}},
		{name: "status", line: "status", want: request{status: true}},
		{name: "tempo", line: "tempo 96", want: request{event: clock.ChangeTempo{BPM: 96}}},
		{name: "tempo out of range is kept for clamping", line: "tempo 999", want: request{event: clock.ChangeTempo{BPM: 999}}},
		{name: "swing", line: "swing 0.66", want: request{event: clock.ChangeSwing{Amount: 0.66}}},
		{name: "source", line: "source external", want: request{event: clock.SwitchSource{Kind: clock.External}}},
		{name: "tempo without value", line: "tempo", wantErr: errMissingArgument},
		{name: "unknown", line: "rewind", wantErr: errUnknownCommand},
		{name: "unknown with args", line: "rewind 4", wantErr: errUnknownCommand},
		{name: "bad source", line: "source sideways", wantErr: clock.ErrUnknownSource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseCommand(tt.line)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommand_BadNumbers(t *testing.T) {
	t.Parallel()

	_, err := parseCommand("tempo fast")
	require.Error(t, err)

	_, err = parseCommand("swing lots")
	require.Error(t, err)
}
