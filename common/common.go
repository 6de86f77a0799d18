package common

import (
	"fmt"
	"path"
	"runtime"
	"strings"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// NoTxn is the transaction id of a client with nothing in flight.
	NoTxn int64 = -1

	DefaultRequestTimeout = 3 * time.Second
	DefaultConnectTimeout = 2 * time.Second

	// log rotation
	logMaxSizeMB  = 64
	logMaxBackups = 3
	logMaxAgeDays = 14
)

// NewLogger builds the process logger. An empty file keeps logging on
// stderr; otherwise output goes to a rotated file.
func NewLogger(level, file string) (*log.Logger, error) {
	logger := log.New()
	logger.SetFormatter(&nested.Formatter{
		HideKeys:    true,
		NoColors:    file != "",
		FieldsOrder: []string{"component"},
		CustomCallerFormatter: func(f *runtime.Frame) string {
			s := strings.Split(f.Function, ".")
			funcName := s[len(s)-1]
			return fmt.Sprintf(" [%s:%d][%s()]", path.Base(f.File), f.Line, funcName)
		},
		CallerFirst: true,
	})
	logger.SetReportCaller(true)

	if level != "" {
		lvl, err := log.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		logger.SetLevel(lvl)
	}

	if file != "" {
		logger.SetOutput(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    logMaxSizeMB,
			MaxBackups: logMaxBackups,
			MaxAge:     logMaxAgeDays,
		})
	}
	return logger, nil
}
