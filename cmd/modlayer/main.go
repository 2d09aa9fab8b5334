// Modlayer overlays mod content roots and rebuilds composite artifacts
// incrementally, with hot reload.
package main

import (
	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/cli"
	"github.com/albertocavalcante/modlayer/internal/log"
	"github.com/albertocavalcante/modlayer/pkg/config"
)

func main() {
	// Logging settings from the manifest apply before flags are parsed; a
	// broken manifest is reported by the command that loads it.
	if cfg, err := config.Load(); err == nil {
		v := log.VerbosityWarn
		if cfg.Log.Verbosity != nil {
			v = *cfg.Log.Verbosity
		}
		log.Init(v, cfg.Log.Format)
	}
	defer log.Sync()

	cli.Execute()
}
