// Package status implements the health probe of a running clock process.
package status
