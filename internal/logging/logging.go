// Package logging reconstructs the structured CPrint/LogFormat logging
// surface mass-core's own (unvendored) logging package exposes to
// txscript.Engine: a leveled logger backed by logrus, with an optional
// rotated-file sink for verbose tracing.
package logging

import (
	"os"
	"time"

	rotatelogs "github.com/lestrrat/go-file-rotatelogs"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
)

// Level mirrors the handful of levels the VM actually logs at. It is a
// distinct type from logrus.Level so call sites (engine.go) don't need
// to import logrus directly.
type Level int

const (
	TRACE Level = iota
	DEBUG
	ERROR
)

// LogFormat is a set of structured fields attached to a log line, the
// same shape mass-core/txscript/engine.go passes around:
//
//	logging.CPrint(logging.TRACE, "stepping", logging.LogFormat{"script0": dis})
type LogFormat map[string]interface{}

var std = logrus.New()

func init() {
	std.SetLevel(logrus.InfoLevel)
	std.SetOutput(os.Stderr)
}

// SetLevel adjusts the minimum level CPrint emits at.
func SetLevel(l Level) {
	std.SetLevel(toLogrusLevel(l))
}

// IsDebugEnabled reports whether DEBUG-level messages would actually be
// emitted. The engine's fault-reporting path (vm.Engine.fault) checks
// this before building a fault's descriptive message, mirroring the
// original VM_FAULT_and_report's level gate so a disabled logger never
// pays for string formatting on the fault path.
func IsDebugEnabled() bool {
	return std.IsLevelEnabled(logrus.DebugLevel)
}

// EnableFileTrace attaches a rotated-file sink for TRACE-level VM
// instruction logging, the equivalent of the original engine's
// vm_instructions.log / log_vm_instructions toggle. It rotates daily
// and keeps seven days of history.
func EnableFileTrace(pathPrefix string) error {
	writer, err := rotatelogs.New(
		pathPrefix+".%Y%m%d",
		rotatelogs.WithLinkName(pathPrefix),
		rotatelogs.WithMaxAge(7*24*time.Hour),
		rotatelogs.WithRotationTime(24*time.Hour),
	)
	if err != nil {
		return err
	}
	std.AddHook(lfshook.NewHook(lfshook.WriterMap{
		logrus.TraceLevel: writer,
		logrus.DebugLevel: writer,
	}, &logrus.TextFormatter{FullTimestamp: true}))
	std.SetLevel(logrus.TraceLevel)
	return nil
}

// CPrint emits msg at the given level with the supplied structured
// fields.
func CPrint(level Level, msg string, fields LogFormat) {
	entry := std.WithFields(logrus.Fields(fields))
	switch level {
	case TRACE:
		entry.Trace(msg)
	case DEBUG:
		entry.Debug(msg)
	case ERROR:
		entry.Error(msg)
	default:
		entry.Info(msg)
	}
}

func toLogrusLevel(l Level) logrus.Level {
	switch l {
	case TRACE:
		return logrus.TraceLevel
	case DEBUG:
		return logrus.DebugLevel
	case ERROR:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
