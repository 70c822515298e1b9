package audiohw

import "github.com/decred/slog"

var log slog.Logger = slog.Disabled

// UseLogger sets the package-level logger.
func UseLogger(v slog.Logger) {
	log = v
}
