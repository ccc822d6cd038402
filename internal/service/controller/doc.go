// Package controller implements the clock controller: the transport state
// machine that owns exactly one clock source and forwards pulses and resets
// to the sequence consumer.
//
//	Idle    --source ready--> Stopped   (report READY)
//	Idle    --source error--> Errored   (report CLOCK_ERROR, terminal)
//	Stopped --START---------> Running   (send RESET, then PULSE)
//	Stopped --CONTINUE------> Running
//	Running --PULSE---------> Running   (forward PULSE)
//	Running --STOP----------> Stopped
//
// Tempo, swing and source changes are accepted in every non-terminal state.
// Any other event is ignored. Events from a source that has been replaced are
// discarded by epoch.
package controller
