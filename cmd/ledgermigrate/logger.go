package main

import (
	"fmt"
	"io"

	"code.cloudfoundry.org/lager/v3"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelError LogLevel = "error"
	LogLevelFatal LogLevel = "fatal"
)

type LagerFlag struct {
	LogLevel LogLevel `long:"log-level" choice:"debug" choice:"info" choice:"error" choice:"fatal" description:"Minimum level of logs to see. Overrides log.level of the config file."`
}

func newLogger(component string, level LogLevel, w io.Writer) (lager.Logger, error) {
	var minLagerLogLevel lager.LogLevel
	switch level {
	case LogLevelDebug:
		minLagerLogLevel = lager.DEBUG
	case LogLevelInfo:
		minLagerLogLevel = lager.INFO
	case LogLevelError:
		minLagerLogLevel = lager.ERROR
	case LogLevelFatal:
		minLagerLogLevel = lager.FATAL
	default:
		return nil, fmt.Errorf("unknown log level: %s", level)
	}

	logger := lager.NewLogger(component)
	sink := lager.NewReconfigurableSink(lager.NewWriterSink(w, lager.DEBUG), minLagerLogLevel)
	logger.RegisterSink(sink)

	return logger, nil
}
