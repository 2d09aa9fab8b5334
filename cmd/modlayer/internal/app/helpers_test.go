package app

import (
	"io"

	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/watch"
)

func discardLogger() *watch.Logger {
	return watch.NewLogger(watch.LoggerConfig{Writer: io.Discard})
}
