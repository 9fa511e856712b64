package main

import (
	"fmt"

	"github.com/pion/logging"

	"github.com/xuehw357/mediasoup/pkg/logger"
)

// pionLoggerFactory adapts pkg/logger.Logger to pion/webrtc's
// logging.LoggerFactory, the same adapter shape the teacher's
// rtc.loggerFactory/logAdapter pair wires into its SettingEngine.
type pionLoggerFactory struct {
	log logger.Logger
}

func (f *pionLoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &pionLogAdapter{log: f.log.With("pionScope", scope)}
}

type pionLogAdapter struct {
	log logger.Logger
}

func (l *pionLogAdapter) Trace(msg string) { l.log.Debugw(msg) }
func (l *pionLogAdapter) Tracef(format string, args ...interface{}) {
	l.log.Debugw(fmt.Sprintf(format, args...))
}
func (l *pionLogAdapter) Debug(msg string) { l.log.Debugw(msg) }
func (l *pionLogAdapter) Debugf(format string, args ...interface{}) {
	l.log.Debugw(fmt.Sprintf(format, args...))
}
func (l *pionLogAdapter) Info(msg string) { l.log.Infow(msg) }
func (l *pionLogAdapter) Infof(format string, args ...interface{}) {
	l.log.Infow(fmt.Sprintf(format, args...))
}
func (l *pionLogAdapter) Warn(msg string) { l.log.Warnw(msg, nil) }
func (l *pionLogAdapter) Warnf(format string, args ...interface{}) {
	l.log.Warnw(fmt.Sprintf(format, args...), nil)
}
func (l *pionLogAdapter) Error(msg string) { l.log.Errorw(msg, nil) }
func (l *pionLogAdapter) Errorf(format string, args ...interface{}) {
	l.log.Errorw(fmt.Sprintf(format, args...), nil)
}
