package zerolog_config

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.elastic.co/ecszerolog"
)

var appPrefix string
var setAppPrefixOnce *sync.Once = &sync.Once{}
var startupLoggerOnce *sync.Once = &sync.Once{}

// ElasticsearchWriter ships ECS log lines to an Elasticsearch index
type ElasticsearchWriter struct {
	URL    string
	Client *http.Client
}

func (ew ElasticsearchWriter) Write(p []byte) (n int, err error) {
	client := ew.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	resp, err := client.Post(ew.URL+"/_doc", "application/json", bytes.NewReader(p))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("elasticsearch returned %d", resp.StatusCode)
	}

	return len(p), nil
}

// ParseLevel maps a config string to a zerolog level, defaulting to info
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// NewLogger builds the service logger writing to out and, when elasticsearchURL is set,
// to the given Elasticsearch index as well.
func NewLogger(out io.Writer, elasticsearchURL, index string) zerolog.Logger {
	console := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}

	if elasticsearchURL == "" {
		return zerolog.New(console).With().Str("app", appPrefix).Timestamp().Logger()
	}

	ecsLogger := ecszerolog.New(&ElasticsearchWriter{
		URL: strings.TrimSuffix(elasticsearchURL, "/") + "/" + index,
	})

	multi := zerolog.MultiLevelWriter(ecsLogger, console)

	return zerolog.New(multi).With().Str("app", appPrefix).Timestamp().Logger()
}

// SetAppPrefix sets the app field stamped on every log line
func SetAppPrefix(name string) {
	setAppPrefixOnce.Do(func() {
		appPrefix = name
	})
}

// StartupWithEnv installs the global logger. Run SetAppPrefix first.
// It returns an error if the index is empty.
func StartupWithEnv(elasticsearchURL, index, level string) error {
	if index == "" {
		return fmt.Errorf("log index is required")
	}
	startupLoggerOnce.Do(func() {
		zerolog.SetGlobalLevel(ParseLevel(level))
		log.Logger = NewLogger(os.Stdout, elasticsearchURL, index)
	})
	return nil
}
