// Package config contains all knobs and defaults used to configure the
// service when running as a standalone server.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"time"

	"github.com/vecinotech/vecinotech/pkg/geocode"
	"github.com/vecinotech/vecinotech/pkg/notify"
)

const (
	DefaultRequestTimeout       = 10 * time.Second
	DefaultGeocodeInterval      = time.Second
	MinGeocodeInterval          = time.Second
	DefaultGeocodeCacheSize     = 10000
	DefaultGeocodeCacheTTL      = 24 * time.Hour
	DefaultMaxConcurrentNearby  = 64
	DefaultCallBaseURL          = "https://meet.jit.si"
	DefaultNominatimURL         = "https://nominatim.openstreetmap.org"
	DefaultGeocodeUserAgent     = "vecinotech/1.0"
	DefaultGeocodeLanguage      = "es"
	DefaultWebSocketPingPeriod  = 30 * time.Second
	DefaultWebSocketWriteWindow = 10 * time.Second
)

var (
	logFormats = []string{"text", "json"}
	logLevels  = []string{"none", "debug", "info", "warn", "error", "panic", "fatal"}
	engines    = []string{"memory", "sqlite", "postgres", "mysql"}
	authnModes = []string{"none", "oidc"}
)

type DatastoreMetricsConfig struct {
	// Enabled enables export of the database/sql pool metrics.
	Enabled bool
}

// DatastoreConfig defines the datastore specific settings.
type DatastoreConfig struct {
	// Engine is the datastore engine to use (e.g. 'memory', 'sqlite', 'postgres', 'mysql')
	Engine   string
	URI      string
	Username string
	Password string

	// MaxOpenConns is the maximum number of open connections to the database.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of connections to the datastore in the idle connection
	// pool.
	MaxIdleConns int

	// ConnMaxIdleTime is the maximum amount of time a connection to the datastore may be idle.
	ConnMaxIdleTime time.Duration

	// ConnMaxLifetime is the maximum amount of time a connection to the datastore may be reused.
	ConnMaxLifetime time.Duration

	// MaxConcurrentNearby bounds the nearby searches running against the
	// datastore at once.
	MaxConcurrentNearby uint32

	Metrics DatastoreMetricsConfig
}

// GRPCConfig configures the listener serving the gRPC health service.
type GRPCConfig struct {
	Addr string
	TLS  *TLSConfig
}

// HTTPConfig defines the HTTP server settings.
type HTTPConfig struct {
	Addr string
	TLS  *TLSConfig

	CORSAllowedOrigins []string
	CORSAllowedHeaders []string
}

// TLSConfig defines configuration specific to Transport Layer Security (TLS) settings.
type TLSConfig struct {
	Enabled  bool
	CertPath string `mapstructure:"cert"`
	KeyPath  string `mapstructure:"key"`
}

// AuthnConfig selects how callers are identified ('none' or 'oidc').
type AuthnConfig struct {
	Method           string
	*AuthnOIDCConfig `mapstructure:"oidc"`
}

// AuthnOIDCConfig defines configurations for the 'oidc' method of authentication.
type AuthnOIDCConfig struct {
	Issuer        string
	IssuerAliases []string
	Audience      string
}

// LogConfig defines log settings. For production we recommend the 'json'
// format.
type LogConfig struct {
	// Format is the log format to use in the log output (e.g. 'text' or 'json')
	Format string

	// Level is the log level to use in the log output (e.g. 'none', 'debug', or 'info')
	Level string
}

type TraceConfig struct {
	Enabled     bool
	OTLP        OTLPTraceConfig `mapstructure:"otlp"`
	SampleRatio float64
	ServiceName string
	// TailLatency, when positive, exports only spans slower than it.
	TailLatency time.Duration
}

type OTLPTraceConfig struct {
	Endpoint string
	TLS      OTLPTraceTLSConfig
}

type OTLPTraceTLSConfig struct {
	Enabled bool
}

// MetricConfig defines the Prometheus endpoint.
type MetricConfig struct {
	Enabled bool
	Addr    string
}

// GeocodeConfig configures the Nominatim provider and the lookup cascade.
type GeocodeConfig struct {
	Enabled        bool
	URL            string
	UserAgent      string
	AcceptLanguage string
	DefaultCountry string

	// Interval is the minimum time between two provider calls, at least
	// MinGeocodeInterval. Failed calls are never retried by the client; the
	// cascade moves on to its next step instead.
	Interval time.Duration
	Timeout  time.Duration

	CacheSize int64
	CacheTTL  time.Duration
}

// NotifyConfig configures event fan out.
type NotifyConfig struct {
	SubscriberBufferSize int
}

// WebSocketConfig configures the real time transport.
type WebSocketConfig struct {
	Enabled bool
	// PingPeriod is how often idle connections are pinged.
	PingPeriod time.Duration
	// WriteTimeout bounds a single frame write.
	WriteTimeout time.Duration
}

// CallConfig configures the video call rooms handed out to participants.
type CallConfig struct {
	BaseURL string
}

type Config struct {
	// RequestTimeout bounds every HTTP API call.
	RequestTimeout time.Duration

	Datastore DatastoreConfig
	GRPC      GRPCConfig
	HTTP      HTTPConfig
	Authn     AuthnConfig
	Log       LogConfig
	Trace     TraceConfig
	Metrics   MetricConfig
	Geocode   GeocodeConfig
	Notify    NotifyConfig
	WebSocket WebSocketConfig
	Call      CallConfig
}

func (cfg *Config) Verify() error {
	if !slices.Contains(logFormats, cfg.Log.Format) {
		return fmt.Errorf("config 'log.format' must be one of %v", logFormats)
	}

	if !slices.Contains(logLevels, cfg.Log.Level) {
		return fmt.Errorf("config 'log.level' must be one of %v", logLevels)
	}

	if !slices.Contains(engines, cfg.Datastore.Engine) {
		return fmt.Errorf("config 'datastore.engine' must be one of %v", engines)
	}

	if cfg.Datastore.Engine != "memory" && cfg.Datastore.URI == "" {
		return fmt.Errorf("config 'datastore.uri' is required for the '%s' engine", cfg.Datastore.Engine)
	}

	if cfg.Datastore.MaxConcurrentNearby == 0 {
		return errors.New("config 'datastore.maxConcurrentNearby' cannot be 0")
	}

	if !slices.Contains(authnModes, cfg.Authn.Method) {
		return fmt.Errorf("config 'authn.method' must be one of %v", authnModes)
	}

	if cfg.Authn.Method == "oidc" {
		if cfg.Authn.AuthnOIDCConfig == nil || cfg.Authn.Issuer == "" {
			return errors.New("'authn.oidc.issuer' config must be set")
		}
	}

	if cfg.HTTP.TLS != nil && cfg.HTTP.TLS.Enabled {
		if cfg.HTTP.TLS.CertPath == "" || cfg.HTTP.TLS.KeyPath == "" {
			return errors.New("'http.tls.cert' and 'http.tls.key' configs must be set")
		}
	}

	if cfg.GRPC.TLS != nil && cfg.GRPC.TLS.Enabled {
		if cfg.GRPC.TLS.CertPath == "" || cfg.GRPC.TLS.KeyPath == "" {
			return errors.New("'grpc.tls.cert' and 'grpc.tls.key' configs must be set")
		}
	}

	if cfg.RequestTimeout <= 0 {
		return errors.New("config 'requestTimeout' must be a positive duration")
	}

	if cfg.Trace.SampleRatio < 0 || cfg.Trace.SampleRatio > 1 {
		return errors.New("config 'trace.sampleRatio' must be within [0, 1]")
	}

	if cfg.Geocode.Enabled {
		if _, err := url.ParseRequestURI(cfg.Geocode.URL); err != nil {
			return fmt.Errorf("config 'geocode.url' is invalid: %w", err)
		}
		if cfg.Geocode.UserAgent == "" {
			return errors.New("config 'geocode.userAgent' must be set, the provider rejects anonymous clients")
		}
		if cfg.Geocode.Interval < MinGeocodeInterval {
			return fmt.Errorf("config 'geocode.interval' must be at least %s", MinGeocodeInterval)
		}
		if cfg.Geocode.Timeout <= 0 {
			return errors.New("config 'geocode.timeout' must be a positive duration")
		}
	}

	if cfg.Notify.SubscriberBufferSize <= 0 {
		return errors.New("config 'notify.subscriberBufferSize' must be positive")
	}

	if cfg.WebSocket.Enabled {
		if cfg.WebSocket.PingPeriod <= 0 || cfg.WebSocket.WriteTimeout <= 0 {
			return errors.New("configs 'websocket.pingPeriod' and 'websocket.writeTimeout' must be positive durations")
		}
	}

	if _, err := url.ParseRequestURI(cfg.Call.BaseURL); err != nil {
		return fmt.Errorf("config 'call.baseURL' is invalid: %w", err)
	}

	return nil
}

// DefaultConfig is the server default configuration.
func DefaultConfig() *Config {
	return &Config{
		RequestTimeout: DefaultRequestTimeout,
		Datastore: DatastoreConfig{
			Engine:              "memory",
			MaxIdleConns:        10,
			MaxOpenConns:        30,
			MaxConcurrentNearby: DefaultMaxConcurrentNearby,
		},
		GRPC: GRPCConfig{
			Addr: "0.0.0.0:8081",
			TLS:  &TLSConfig{Enabled: false},
		},
		HTTP: HTTPConfig{
			Addr:               "0.0.0.0:8080",
			TLS:                &TLSConfig{Enabled: false},
			CORSAllowedOrigins: []string{"*"},
			CORSAllowedHeaders: []string{"*"},
		},
		Authn: AuthnConfig{
			Method:          "none",
			AuthnOIDCConfig: &AuthnOIDCConfig{},
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
		Trace: TraceConfig{
			Enabled: false,
			OTLP: OTLPTraceConfig{
				Endpoint: "0.0.0.0:4317",
				TLS: OTLPTraceTLSConfig{
					Enabled: false,
				},
			},
			SampleRatio: 0.2,
			ServiceName: "vecinotech",
		},
		Metrics: MetricConfig{
			Enabled: true,
			Addr:    "0.0.0.0:2112",
		},
		Geocode: GeocodeConfig{
			Enabled:        true,
			URL:            DefaultNominatimURL,
			UserAgent:      DefaultGeocodeUserAgent,
			AcceptLanguage: DefaultGeocodeLanguage,
			DefaultCountry: geocode.DefaultCountry,
			Interval:       DefaultGeocodeInterval,
			Timeout:        5 * time.Second,
			CacheSize:      DefaultGeocodeCacheSize,
			CacheTTL:       DefaultGeocodeCacheTTL,
		},
		Notify: NotifyConfig{
			SubscriberBufferSize: notify.DefaultBufferSize,
		},
		WebSocket: WebSocketConfig{
			Enabled:      true,
			PingPeriod:   DefaultWebSocketPingPeriod,
			WriteTimeout: DefaultWebSocketWriteWindow,
		},
		Call: CallConfig{
			BaseURL: DefaultCallBaseURL,
		},
	}
}

// MustDefaultConfig returns the default config with metrics and geocoding
// turned off, for tests.
func MustDefaultConfig() *Config {
	config := DefaultConfig()

	config.Metrics.Enabled = false
	config.Geocode.Enabled = false

	return config
}

// MustDefaultConfigWithRandomPorts returns MustDefaultConfig listening on
// random ports. It panics if no port can be found.
func MustDefaultConfigWithRandomPorts() *Config {
	config := MustDefaultConfig()

	httpPort, httpPortReleaser := TCPRandomPort()
	defer httpPortReleaser()
	grpcPort, grpcPortReleaser := TCPRandomPort()
	defer grpcPortReleaser()

	config.GRPC.Addr = fmt.Sprintf("0.0.0.0:%d", grpcPort)
	config.HTTP.Addr = fmt.Sprintf("0.0.0.0:%d", httpPort)

	return config
}

// TCPRandomPort tries to find a random TCP Port. If it can't find one, it panics. Else, it returns the port and a function that releases the port.
// It is the responsibility of the caller to call the release function right before trying to listen on the given port.
func TCPRandomPort() (int, func()) {
	l, err := net.Listen("tcp", "")
	if err != nil {
		panic(err)
	}
	return l.Addr().(*net.TCPAddr).Port, func() {
		l.Close()
	}
}
