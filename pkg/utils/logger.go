package utils

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig controls how InitLogger builds a Logger.
type LogConfig struct {
	Level       string // debug, info, warn, error, fatal
	Format      string // json or text
	Development bool
	Output      string // file path; empty means stderr
}

// Logger wraps a zap.Logger with the field helpers the engine's components
// use to tag log lines with trading context.
type Logger struct {
	Logger *zap.Logger
	sugar  *zap.SugaredLogger
}

// InitLogger builds a Logger from config, falling back to stderr if Output
// cannot be opened.
func InitLogger(cfg LogConfig) *Logger {
	level := parseLevel(cfg.Level)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "text" {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoderCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	var sink zapcore.WriteSyncer = zapcore.AddSync(os.Stderr)
	if cfg.Output != "" {
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			sink = zapcore.AddSync(f)
		}
	}

	core := zapcore.NewCore(encoder, sink, level)

	opts := []zap.Option{zap.AddCaller()}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}

	zl := zap.New(core, opts...)
	return &Logger{Logger: zl, sugar: zl.Sugar()}
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug", "DEBUG":
		return zapcore.DebugLevel
	case "info", "INFO":
		return zapcore.InfoLevel
	case "warn", "WARN", "warning", "WARNING":
		return zapcore.WarnLevel
	case "error", "ERROR":
		return zapcore.ErrorLevel
	case "fatal", "FATAL":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// With returns a child Logger with the given fields attached.
func (l *Logger) With(fields ...zap.Field) *Logger {
	zl := l.Logger.With(fields...)
	return &Logger{Logger: zl, sugar: zl.Sugar()}
}

// WithComponent tags the logger with a component name.
func (l *Logger) WithComponent(name string) *Logger { return l.With(Component(name)) }

// WithExchange tags the logger with an exchange id.
func (l *Logger) WithExchange(exchange string) *Logger { return l.With(Exchange(exchange)) }

// WithSymbol tags the logger with a trading symbol.
func (l *Logger) WithSymbol(symbol string) *Logger { return l.With(Symbol(symbol)) }

// WithPairID tags the logger with a pair id.
func (l *Logger) WithPairID(id int) *Logger { return l.With(PairID(id)) }

// Sugar returns the logger's SugaredLogger for printf-style logging.
func (l *Logger) Sugar() *zap.SugaredLogger { return l.sugar }

func (l *Logger) Debug(msg string, fields ...zap.Field) { l.Logger.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field)  { l.Logger.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)  { l.Logger.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field) { l.Logger.Error(msg, fields...) }
func (l *Logger) Sync() error                           { return l.Logger.Sync() }

// ============ global logger ============

var (
	globalLogger *Logger
	globalMu     sync.Mutex
)

// GetGlobalLogger returns the process-wide Logger, lazily initializing one
// with default settings if none has been set yet.
func GetGlobalLogger() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = InitLogger(LogConfig{})
	}
	return globalLogger
}

// L is shorthand for GetGlobalLogger.
func L() *Logger { return GetGlobalLogger() }

// InitGlobalLogger builds a Logger from cfg and installs it as the global
// logger.
func InitGlobalLogger(cfg LogConfig) *Logger {
	logger := InitLogger(cfg)
	SetGlobalLogger(logger)
	return logger
}

// SetGlobalLogger installs logger as the process-wide logger.
func SetGlobalLogger(logger *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

// ============ package-level logging ============

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { L().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { L().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }

func Debugf(template string, args ...interface{}) { L().sugar.Debugf(template, args...) }
func Infof(template string, args ...interface{})  { L().sugar.Infof(template, args...) }
func Warnf(template string, args ...interface{})  { L().sugar.Warnf(template, args...) }
func Errorf(template string, args ...interface{}) { L().sugar.Errorf(template, args...) }

// ============ domain field constructors ============

func Exchange(v string) zap.Field   { return zap.String("exchange", v) }
func Symbol(v string) zap.Field     { return zap.String("symbol", v) }
func PairID(v int) zap.Field        { return zap.Int("pair_id", v) }
func OrderID(v string) zap.Field    { return zap.String("order_id", v) }
func Price(v float64) zap.Field     { return zap.Float64("price", v) }
func Volume(v float64) zap.Field    { return zap.Float64("volume", v) }
func Spread(v float64) zap.Field    { return zap.Float64("spread", v) }
func PNL(v float64) zap.Field       { return zap.Float64("pnl", v) }
func Side(v string) zap.Field       { return zap.String("side", v) }
func State(v string) zap.Field      { return zap.String("state", v) }
func Latency(v float64) zap.Field   { return zap.Float64("latency_ms", v) }
func RequestID(v string) zap.Field  { return zap.String("request_id", v) }
func UserID(v int) zap.Field        { return zap.Int("user_id", v) }
func Component(v string) zap.Field  { return zap.String("component", v) }

// ============ re-exported zap field constructors ============

func String(key, value string) zap.Field       { return zap.String(key, value) }
func Int(key string, value int) zap.Field      { return zap.Int(key, value) }
func Int64(key string, value int64) zap.Field  { return zap.Int64(key, value) }
func Float64(key string, value float64) zap.Field { return zap.Float64(key, value) }
func Bool(key string, value bool) zap.Field    { return zap.Bool(key, value) }
func Err(err error) zap.Field                  { return zap.Error(err) }
func Any(key string, value interface{}) zap.Field { return zap.Any(key, value) }

// fieldsToInterface flattens zap.Fields into alternating key/value pairs for
// consumers that need a generic interface{} slice (e.g. bridging to other
// logging sinks).
func fieldsToInterface(fields []zap.Field) []interface{} {
	out := make([]interface{}, 0, len(fields)*2)
	for _, f := range fields {
		enc := zapcore.NewMapObjectEncoder()
		f.AddTo(enc)
		out = append(out, f.Key, enc.Fields[f.Key])
	}
	return out
}
