package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

const defaultSlowQuery = 200 * time.Millisecond

// GormLogger routes GORM output through zap. Bound values are never logged
// because ledger metadata may carry user content.
type GormLogger struct {
	log       *zap.Logger
	level     gormlogger.LogLevel
	slowQuery time.Duration
}

// NewGormLogger logs failed statements and queries slower than slowQuery.
// A zero slowQuery uses 200ms.
func NewGormLogger(base *zap.Logger, slowQuery time.Duration) *GormLogger {
	if base == nil {
		base = zap.NewNop()
	}
	if slowQuery <= 0 {
		slowQuery = defaultSlowQuery
	}
	return &GormLogger{log: base.Named("gorm"), level: gormlogger.Warn, slowQuery: slowQuery}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.printf(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.printf(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.printf(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *GormLogger) printf(ctx context.Context, min gormlogger.LogLevel, level zapcore.Level, msg string, data []interface{}) {
	if l.level < min {
		return
	}
	if ce := WithContext(ctx, l.log).Check(level, fmt.Sprintf(msg, data...)); ce != nil {
		ce.Write()
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	var level zapcore.Level
	switch {
	case err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound):
		if l.level < gormlogger.Error {
			return
		}
		level = zapcore.ErrorLevel
		if errors.Is(err, context.Canceled) {
			level = zapcore.WarnLevel
		}
	case elapsed > l.slowQuery && l.level >= gormlogger.Warn:
		level = zapcore.WarnLevel
	case l.level >= gormlogger.Info:
		level = zapcore.DebugLevel
	default:
		return
	}

	ce := WithContext(ctx, l.log).Check(level, "gorm.query")
	if ce == nil {
		return
	}
	sql, rows := fc()
	op, table := describeSQL(sql)
	fields := []zap.Field{
		zap.String("operation", op),
		zap.String("table", table),
		zap.String("sql", strings.TrimSpace(sql)),
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	ce.Write(fields...)
}

func (l *GormLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

// describeSQL returns the statement verb and the first table it touches.
func describeSQL(sql string) (op, table string) {
	op, table = "UNKNOWN", ""
	tokens := strings.Fields(sql)
	for i, token := range tokens {
		word := strings.ToUpper(strings.Trim(token, "();"))
		switch word {
		case "SELECT", "INSERT", "UPDATE", "DELETE":
			if op == "UNKNOWN" {
				op = word
			}
			if word == "UPDATE" && i+1 < len(tokens) {
				return op, cleanIdent(tokens[i+1])
			}
		case "FROM", "INTO":
			if i+1 < len(tokens) {
				return op, cleanIdent(tokens[i+1])
			}
		}
	}
	return op, table
}

func cleanIdent(s string) string {
	return strings.Trim(s, "`\"();")
}

var _ gormlogger.Interface = (*GormLogger)(nil)
