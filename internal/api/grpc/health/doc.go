// Package health exposes the clock readiness over the standard gRPC health
// protocol.
//
// The Reporter observes supervisor reports and flips the serving status, so
// operators and the status command can tell whether the clock came up.
package health
