package ledger

import (
	"github.com/rs/zerolog"
)

var log = zerolog.Nop()

// UseLogger sets the logger used by the ledger package. Logging is disabled
// until it is called.
func UseLogger(logger zerolog.Logger) {
	log = logger
}
