package logger

import (
	"os"

	"coinpulse/conf"
	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 基于zap的全局日志，支持文件切割和控制台输出

var (
	lg *zap.Logger
	sl *zap.SugaredLogger
)

func init() {
	// 未调用Init前使用默认配置，保证单测里可以直接打日志
	lg = newLogger(conf.LogConfig{Level: "debug", Console: true})
	sl = lg.Sugar()
}

// Init 根据配置初始化全局logger
func Init(cfg conf.LogConfig) {
	lg = newLogger(cfg)
	sl = lg.Sugar()
}

func newLogger(cfg conf.LogConfig) *zap.Logger {
	level := zapcore.InfoLevel
	_ = level.UnmarshalText([]byte(cfg.Level))

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = "2006-01-02 15:04:05.000"
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(timeFormat)
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var cores []zapcore.Core
	if cfg.FileName != "" {
		// 文件输出走lumberjack切割
		w := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.FileName,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
			LocalTime:  cfg.LocalTime,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), w, level))
	}
	if cfg.Console || cfg.FileName == "" {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(os.Stdout), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
}

// Pair 构造一个结构化字段
func Pair(key string, value interface{}) zap.Field {
	return zap.Any(key, value)
}

func Debug(msg string, fields ...zap.Field) { lg.Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { lg.Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { lg.Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { lg.Error(msg, fields...) }
func Fatal(msg string, fields ...zap.Field) { lg.Fatal(msg, fields...) }

func Debugf(format string, args ...interface{}) { sl.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { sl.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { sl.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { sl.Errorf(format, args...) }
func Fatalf(format string, args ...interface{}) { sl.Fatalf(format, args...) }

// Sync 进程退出前刷新缓冲
func Sync() {
	_ = lg.Sync()
}
