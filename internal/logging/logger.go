package logger

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

// Config holds the logging configuration options.
type Config struct {
	Level        string // Logging level (e.g., "info", "debug", "error")
	Format       string // Logging format ("text" or "json")
	ReportCaller bool   // Whether to include the calling method/file in the logs
}

// Configure sets up the logger according to the provided Config settings.
func Configure(c Config) (err error) {
	// Parse and set the log level
	parsedLevel, err := log.ParseLevel(c.Level)
	if err != nil {
		return
	}

	log.SetLevel(parsedLevel)

	switch c.Format {
	case "text":
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp: true,
		})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		err = fmt.Errorf("invalid log format '%s'", c.Format)

		return
	}

	// Enable or disable reporting the caller (file and line number)
	log.SetReportCaller(c.ReportCaller)

	log.SetOutput(os.Stdout)

	return
}
