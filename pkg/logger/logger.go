// Package logger provides the gateway's operator-facing log channel.
//
// This is distinct from the audit channel (pkg/bridge/audit): the audit
// recorder emits typed, schema-fixed records that must never be dropped by
// operator log-level configuration; this package is free-form text for
// diagnosing the process itself. Backend subprocess stderr is routed here
// with a backend=<name> field, never to the gateway's own stdout/stderr.
package logger

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// envReader is the minimal environment lookup the logger needs, mocked in
// tests instead of touching the real process environment.
type envReader interface {
	Getenv(key string) string
}

type osEnvReader struct{}

func (osEnvReader) Getenv(key string) string { return os.Getenv(key) }

var singleton atomic.Pointer[zap.SugaredLogger]

func init() {
	singleton.Store(buildLogger(unstructuredLogsWithEnv(osEnvReader{})))
}

// Initialize (re)configures the singleton logger from the real process
// environment. Safe to call multiple times; cheap enough to call once at
// process startup from cmd/mcpfabric.
func Initialize() {
	InitializeWithEnv(osEnvReader{})
}

// InitializeWithEnv is Initialize with an injectable environment reader,
// for tests that must not depend on (or mutate) real process env vars.
func InitializeWithEnv(env envReader) {
	singleton.Store(buildLogger(unstructuredLogsWithEnv(env)))
}

// unstructuredLogsWithEnv reports whether human-readable (console) output
// should be used instead of structured JSON. Defaults to true (readable
// console output) unless UNSTRUCTURED_LOGS is explicitly set to "false".
func unstructuredLogsWithEnv(env envReader) bool {
	v := env.Getenv("UNSTRUCTURED_LOGS")
	if v == "" {
		return true
	}
	return v != "false"
}

func buildLogger(unstructured bool) *zap.SugaredLogger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if unstructured {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zapcore.DebugLevel)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
}

// Get returns the current singleton logger, for call sites that want the
// zap API directly rather than the package-level wrappers below.
func Get() *zap.SugaredLogger {
	return singleton.Load()
}

func Debug(args ...any)                  { Get().Debug(args...) }
func Debugf(template string, args ...any) { Get().Debugf(template, args...) }
func Debugw(msg string, kv ...any)        { Get().Debugw(msg, kv...) }
func Info(args ...any)                   { Get().Info(args...) }
func Infof(template string, args ...any)  { Get().Infof(template, args...) }
func Infow(msg string, kv ...any)         { Get().Infow(msg, kv...) }
func Warn(args ...any)                   { Get().Warn(args...) }
func Warnf(template string, args ...any)  { Get().Warnf(template, args...) }
func Warnw(msg string, kv ...any)         { Get().Warnw(msg, kv...) }
func Error(args ...any)                  { Get().Error(args...) }
func Errorf(template string, args ...any) { Get().Errorf(template, args...) }
func Errorw(msg string, kv ...any)        { Get().Errorw(msg, kv...) }
func DPanic(args ...any)                  { Get().DPanic(args...) }
func DPanicf(template string, args ...any) { Get().DPanicf(template, args...) }
func DPanicw(msg string, kv ...any)        { Get().DPanicw(msg, kv...) }
