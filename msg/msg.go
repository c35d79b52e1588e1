// Leveled diagnostic output for goflash.
// All user-visible messages from programmers and flash operations go through
// this package so verbosity is controlled in one place.
package msg

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	NoColor:    true,
	PartsOrder: []string{zerolog.LevelFieldName, zerolog.MessageFieldName},
}).Level(zerolog.InfoLevel)

// SetVerbosity adjusts how much output is produced.
// 0 is the default (errors, warnings, info); 1 or more enables debug output;
// negative values keep only errors and warnings.
func SetVerbosity(v int) {
	switch {
	case v < 0:
		logger = logger.Level(zerolog.WarnLevel)
	case v == 0:
		logger = logger.Level(zerolog.InfoLevel)
	default:
		logger = logger.Level(zerolog.DebugLevel)
	}
}

// Perr reports an error condition to the user.
func Perr(format string, args ...interface{}) {
	logger.Error().Msg(fmt.Sprintf(format, args...))
}

// Pwarn reports a non-fatal but suspicious condition.
func Pwarn(format string, args ...interface{}) {
	logger.Warn().Msg(fmt.Sprintf(format, args...))
}

// Pinfo reports normal progress output.
func Pinfo(format string, args ...interface{}) {
	logger.Info().Msg(fmt.Sprintf(format, args...))
}

// Pdbg reports detail only wanted when debugging a programmer.
func Pdbg(format string, args ...interface{}) {
	logger.Debug().Msg(fmt.Sprintf(format, args...))
}
