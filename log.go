package xconn

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// PrintLog controls whether connections created without WithLogger emit
// diagnostics to stderr. By default, it is enabled.
var PrintLog = true

// newLogger builds the logger used when no logger was supplied. Only
// warnings and worse are written.
func newLogger() *zap.Logger {
	if !PrintLog {
		return zap.NewNop()
	}
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(enc),
		zapcore.Lock(os.Stderr),
		zap.WarnLevel,
	)
	return zap.New(core, zap.AddCaller()).Named("xconn")
}
