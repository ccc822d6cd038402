// Package common holds helpers shared by several services.
//
// It provides the actor mailbox used by every clock actor (a FIFO queue drained
// by one goroutine, with typed Ref handles for senders) and a small gRPC health
// client wrapper with call timeouts.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
