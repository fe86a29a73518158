package logger

import (
	"io"
	"io/ioutil"
	"os"
	"strings"

	"github.com/gwaycc/prorest/filebak"
	"github.com/gwaylib/errors"
	"github.com/sirupsen/logrus"
)

type Options struct {
	Level   string
	File    string
	MaxSize int64
	Backups int
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// NewWriter maps a log target to a writer. Besides a path, the target may be
// /dev/stdout, /dev/stderr or /dev/null; empty means stderr.
func NewWriter(file string, maxSize int64, backups int) (io.WriteCloser, error) {
	switch strings.TrimSpace(file) {
	case "", "/dev/stderr":
		return nopCloser{os.Stderr}, nil
	case "/dev/stdout":
		return nopCloser{os.Stdout}, nil
	case "/dev/null":
		return nopCloser{ioutil.Discard}, nil
	}
	f, err := filebak.OpenFile(file, maxSize, backups)
	if err != nil {
		return nil, errors.As(err, file)
	}
	return f, nil
}

// Init configures the standard logrus logger. The returned closer releases
// the log file, if one was opened.
func Init(opts Options) (io.Closer, error) {
	return Configure(logrus.StandardLogger(), opts)
}

func Configure(l *logrus.Logger, opts Options) (io.Closer, error) {
	level := logrus.InfoLevel
	if len(opts.Level) > 0 {
		lv, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, errors.As(err, opts.Level)
		}
		level = lv
	}
	w, err := NewWriter(opts.File, opts.MaxSize, opts.Backups)
	if err != nil {
		return nil, errors.As(err)
	}
	l.SetLevel(level)
	l.SetOutput(w)
	l.SetFormatter(&CustomFormatter{})
	return w, nil
}
