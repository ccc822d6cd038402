// Package version carries the build metadata of the squ-clock binaries.
//
// Version, Commit and BuildTime are injected with -ldflags; local builds fall
// back to the module information recorded by the Go toolchain.
package version
