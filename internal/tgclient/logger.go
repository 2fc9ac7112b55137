package tgclient

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// newZapLogger builds the MTProto client logger: JSON lines to a
// rotated file under the state dir, teed to the console when verbose.
// Logging to a file keeps the protocol chatter out of the program
// output.
func newZapLogger(stateDir string, verbose bool) *zap.Logger {
	level := zap.InfoLevel
	if verbose {
		level = zap.DebugLevel
	}

	fileWriter := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(stateDir, "client.log.jsonl"),
		MaxBackups: 3,
		MaxSize:    10, // megabytes
		MaxAge:     7,  // days
	})
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		fileWriter,
		level,
	)
	if !verbose {
		return zap.New(fileCore)
	}

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(os.Stderr),
		level,
	)
	return zap.New(zapcore.NewTee(fileCore, consoleCore))
}
