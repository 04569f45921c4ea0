// Package applog provides general-purpose application logging.
//
// Logs are written as JSON lines to <home>/logs/iisys.log. Components get
// a *zap.Logger and name themselves (engine, mapping, exec, ai, watch).
package applog

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FileName is the log file inside <home>/logs.
const FileName = "iisys.log"

// New opens the log file under home and returns a logger at level
// ("debug", "info", "warn", "error"). The returned close func syncs and
// closes the file.
func New(home, level string) (*zap.Logger, func(), error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "log level %q", level)
	}

	path := Path(home)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, nil, errors.Wrap(err, "create log directory")
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open log file %s", path)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(file), lvl)

	logger := zap.New(core, zap.AddCaller())
	closeFn := func() {
		_ = logger.Sync()
		_ = file.Close()
	}
	return logger, closeFn, nil
}

// Path is the log file for home.
func Path(home string) string {
	return filepath.Join(home, "logs", FileName)
}
