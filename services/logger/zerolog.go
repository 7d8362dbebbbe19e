package logsvc

import (
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/trezcool/studentportal/core"
)

// NewZerolog builds the process logger: console output (pretty in debug) plus an optional log file.
func NewZerolog(conf *core.Config) (zerolog.Logger, error) {
	var out io.Writer = os.Stdout
	if conf.Log.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	if conf.Log.File != "" {
		f, err := os.OpenFile(conf.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), errors.Wrapf(err, "opening log file %s", conf.Log.File)
		}
		out = zerolog.MultiLevelWriter(out, f)
	}

	log := zerolog.New(out).With().Timestamp().Str("app", conf.AppName).Logger()

	switch conf.Log.Level {
	case "debug":
		log = log.Level(zerolog.DebugLevel)
	case "warn":
		log = log.Level(zerolog.WarnLevel)
	case "error":
		log = log.Level(zerolog.ErrorLevel)
	default:
		log = log.Level(zerolog.InfoLevel)
	}
	return log, nil
}
