package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	gerrors "github.com/splinefit/goearth/pkg/errors"
)

// SetupZerologWarnings routes library warnings through a zerolog logger.
// Warning types that implement zerolog.LogObjectMarshaler are embedded as
// structured objects; other warnings are logged as plain errors.
//
// Passing a nil writer logs to stderr.
func SetupZerologWarnings(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	zl := zerolog.New(w).With().Timestamp().Str(ComponentKey, "goearth").Logger()

	gerrors.SetZerologWarnFunc(func(warning error) {
		if obj, ok := warning.(zerolog.LogObjectMarshaler); ok {
			zl.Warn().Object("warning", obj).Msg(warning.Error())
			return
		}
		zl.Warn().Err(warning).Msg("warning")
	})

	return zl
}
