// Package logging constructs the component loggers used across nexusd.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup returns a factory producing per-component loggers with bracketed
// prefixes. When file is non-empty, output goes to a size-rotated log file
// instead of stderr.
func Setup(file string) func(component string) *log.Logger {
	var out io.Writer = os.Stderr
	if file != "" {
		out = &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
	}
	return func(component string) *log.Logger {
		return log.New(out, "["+component+"] ", log.LstdFlags)
	}
}
