// Package retryablehttp builds the outbound HTTP clients used to call third
// party providers.
package retryablehttp

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/vecinotech/vecinotech/pkg/logger"
)

// Config controls the outbound client. RetryMax is the number of retries after
// the first attempt; zero disables retries.
type Config struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	RetryMax       int
	RetryWaitMin   time.Duration
	RetryWaitMax   time.Duration
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    10 * time.Second,
		RetryMax:       0,
		RetryWaitMin:   500 * time.Millisecond,
		RetryWaitMax:   3 * time.Second,
	}
}

// NewClient returns a traced, retrying client. Responses are passed back to
// the caller as received once retries are exhausted, so callers inspect the
// status code themselves.
func NewClient(cfg Config, log logger.Logger) *retryablehttp.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       90 * time.Second,
	}

	client := retryablehttp.NewClient()
	client.HTTPClient = &http.Client{
		Transport: otelhttp.NewTransport(transport),
		Timeout:   cfg.ConnectTimeout + cfg.ReadTimeout,
	}
	client.RetryMax = cfg.RetryMax
	client.RetryWaitMin = cfg.RetryWaitMin
	client.RetryWaitMax = cfg.RetryWaitMax
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.Logger = nil
	if log != nil {
		client.Logger = &leveledLogger{log}
	}

	return client
}

// StandardClient is NewClient exposed as a plain *http.Client.
func StandardClient(cfg Config, log logger.Logger) *http.Client {
	return NewClient(cfg, log).StandardClient()
}

type leveledLogger struct {
	logger logger.Logger
}

var _ retryablehttp.LeveledLogger = (*leveledLogger)(nil)

func (l *leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, fields(keysAndValues)...)
}

func (l *leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, fields(keysAndValues)...)
}

func (l *leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, fields(keysAndValues)...)
}

func (l *leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, fields(keysAndValues)...)
}

func fields(keysAndValues []interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		out = append(out, zap.Any(key, keysAndValues[i+1]))
	}
	return out
}
