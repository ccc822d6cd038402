// Package config defines the settings of the clock process and provides
// helpers to load, validate and save them in YAML format.
//
// Out of range musical values (tempo, swing) are clamped rather than rejected;
// structural mistakes (unknown drift policy, bad listen address, bad log level)
// fail validation.
package config
