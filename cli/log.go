package cli

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/TualatinX/utxo-ledger/ledger"
	"github.com/jrick/logrotate/rotator"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	defaultThresholdKB = 10 * 1000 // 10 MB logs by default.
	defaultMaxRolls    = 8         // keep 8 last logs by default.
)

// initLog builds the process logger and hands a subsystem logger to the
// ledger package. The returned func flushes and closes the log file.
func initLog(logFile, logLevel string) (zerolog.Logger, func(), error) {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return zerolog.Nop(), nil, errors.Wrapf(err, "invalid log level %q", logLevel)
	}

	writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}}
	closeLog := func() {}
	if logFile != "" {
		logDir, _ := filepath.Split(logFile)
		if logDir != "" {
			if err := os.MkdirAll(logDir, 0700); err != nil {
				return zerolog.Nop(), nil, errors.Errorf("failed to create log directory: %+v", err)
			}
		}
		r, err := rotator.New(logFile, defaultThresholdKB, false, defaultMaxRolls)
		if err != nil {
			return zerolog.Nop(), nil, errors.Errorf("failed to create file rotator: %s", err)
		}
		writers = append(writers, r)
		closeLog = func() { _ = r.Close() }
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()

	ledger.UseLogger(logger.With().Str("subsystem", "LDGR").Logger())

	return logger.With().Str("subsystem", "CLI").Logger(), closeLog, nil
}
