// Package logging provides the single shared logger used across every
// decoding, reconstruction, and materialization stage.
package logging

import (
	log "github.com/sirupsen/logrus"
)

// Log is the package-level logger. The teacher's dbg_write gate on
// config.debug becomes a level switch here: Debug() is silent unless
// SetDebug(true) was called.
var Log = log.New()

func init() {
	Log.SetFormatter(&log.TextFormatter{
		DisableTimestamp: true,
	})
	Log.SetLevel(log.InfoLevel)
}

// SetDebug raises or lowers the logger's verbosity, mirroring -D/--debug.
func SetDebug(enabled bool) {
	if enabled {
		Log.SetLevel(log.DebugLevel)
	} else {
		Log.SetLevel(log.InfoLevel)
	}
}
