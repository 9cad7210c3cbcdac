package log

import (
	"io"
	"os"

	"github.com/conduitio/hubflow/pkg/foundation/cerrors"
	"github.com/rs/zerolog"
)

type Format int

const (
	FormatCLI Format = iota
	FormatJSON
)

// ParseFormat converts a format string into a log Format value.
// returns an error if the input string does not match known values.
func ParseFormat(format string) (Format, error) {
	switch {
	case format == "cli":
		return FormatCLI, nil
	case format == "json":
		return FormatJSON, nil
	default:
		return -1, cerrors.Errorf("unsupported log format: %s", format)
	}
}

// GetWriter returns a writer according to the log Format. Logs are written to
// stderr, stdout is reserved for the display sink.
func GetWriter(f Format) io.Writer {
	var w io.Writer = os.Stderr
	if f == FormatCLI {
		w = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05+00:00",
			PartsOrder: []string{
				zerolog.TimestampFieldName,
				zerolog.LevelFieldName,
				ComponentField,
				zerolog.MessageFieldName,
			},
			FieldsExclude: []string{ComponentField},
		}
	}
	return w
}

// String returns the name of the format as accepted by ParseFormat.
func (f Format) String() string {
	switch f {
	case FormatCLI:
		return "cli"
	case FormatJSON:
		return "json"
	default:
		return "unknown"
	}
}
