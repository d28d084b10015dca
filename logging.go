package main

import (
	"io"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// configureLogging points logrus at a rotating file when the terminal belongs to the
// TUI, and at stderr otherwise. The returned closer flushes the file.
func configureLogging(config LogConfig, toFile bool) (io.Closer, error) {
	level, err := log.ParseLevel(config.Level)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", config.Level)
	}
	log.SetLevel(level)

	if !toFile || config.File == "" {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
		if toFile {
			// nowhere to write without corrupting the screen
			log.SetOutput(io.Discard)
		} else {
			log.SetOutput(os.Stderr)
		}
		return noopCloser{}, nil
	}

	sink := &lumberjack.Logger{
		Filename:   config.File,
		MaxSize:    config.MaxSizeMB,
		MaxBackups: config.MaxBackups,
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true, DisableColors: true})
	log.SetOutput(sink)
	return sink, nil
}

type noopCloser struct{}

func (noopCloser) Close() error { return nil }
