// Package clockd runs the clock process: it loads the settings, builds the
// supervised clock, serves the health endpoint and reads transport commands
// from the console until the context is canceled.
package clockd
