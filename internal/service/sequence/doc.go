// Package sequence contains the downstream consumer of the clock: a player
// that advances its position on every pulse and rewinds on reset.
package sequence
