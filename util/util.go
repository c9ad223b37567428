package util

import (
	"log"
)

// Logging is a clumsy switch that affects what Logf does.
//
// If Logging is true, then Logf calls Logger.Printf.
var Logging = false

// Logger is where Logf writes.  Nil means the standard logger.
var Logger *log.Logger

// Logf is a silly utility function that logs if Logging is true.
func Logf(format string, args ...interface{}) {
	if !Logging {
		return
	}
	Warnf(format, args...)
}

// Warnf logs regardless of Logging.
func Warnf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}
