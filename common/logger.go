// Package common provides the shared logging infrastructure. Error-level
// output is routed to stderr while everything else goes to stdout, so
// containerized and scripted deployments can treat the two streams
// differently.
package common

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes formatted log lines to stdout or stderr based on
// their level marker. It operates on the final formatted output, so it works
// with both the text and JSON formatters.
type OutputSplitter struct{}

// Write sends lines containing an error-level marker to stderr and all
// other lines to stdout.
func (s *OutputSplitter) Write(p []byte) (n int, err error) {
	if bytes.Contains(p, []byte(`level=error`)) || bytes.Contains(p, []byte(`"level":"error"`)) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Logger is the global logger instance used across all packages.
var Logger = newDefaultLogger()

func newDefaultLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(&OutputSplitter{})
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(logrus.InfoLevel)
	return logger
}
