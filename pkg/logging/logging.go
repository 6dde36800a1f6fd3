package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Setup configures the standard logrus logger from the logging config block.
// When file is set, entries go to both stderr and the file; the returned
// closer releases the file and is never nil.
func Setup(level, format, file string) (io.Closer, error) {
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nopCloser{}, errors.Wrapf(err, "invalid log level %q", level)
	}
	log.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return nopCloser{}, errors.Errorf("invalid log format %q", format)
	}

	if file == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return nopCloser{}, errors.Wrap(err, "failed to create log directory")
	}
	f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nopCloser{}, errors.Wrap(err, "failed to open log file")
	}
	log.SetOutput(io.MultiWriter(os.Stderr, f))

	return f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
