package tools

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger returns a JSON logger writing to stdout and, when logFile is
// set, appending to that file as well.
func NewLogger(level logrus.Level, logFile string) (*logrus.Logger, error) {
	l := logrus.New()
	l.Formatter = &logrus.JSONFormatter{}
	l.SetLevel(level)

	if logFile == "" {
		l.SetOutput(os.Stdout)
		return l, nil
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("error opening log file: %w", err)
	}
	l.SetOutput(io.MultiWriter(f, os.Stdout))
	return l, nil
}
