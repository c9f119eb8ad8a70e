package alerting

import (
	"io"

	"github.com/tphakala/alertflow/internal/logger"
)

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
}
