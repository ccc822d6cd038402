// Package state persists the clock settings a musician last used.
//
// The FileRepository stores the settings as YAML so the next run starts at the
// same tempo, swing and source.
package state
