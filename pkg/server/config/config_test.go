package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Verify())
	require.NoError(t, MustDefaultConfig().Verify())
}

func TestVerifyConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:    "log_format",
			mutate:  func(cfg *Config) { cfg.Log.Format = "xml" },
			wantErr: "config 'log.format' must be one of [text json]",
		},
		{
			name:    "log_level",
			mutate:  func(cfg *Config) { cfg.Log.Level = "verbose" },
			wantErr: "config 'log.level' must be one of [none debug info warn error panic fatal]",
		},
		{
			name:    "engine",
			mutate:  func(cfg *Config) { cfg.Datastore.Engine = "mssql" },
			wantErr: "config 'datastore.engine' must be one of [memory sqlite postgres mysql]",
		},
		{
			name:    "engine_without_uri",
			mutate:  func(cfg *Config) { cfg.Datastore.Engine = "postgres" },
			wantErr: "config 'datastore.uri' is required for the 'postgres' engine",
		},
		{
			name:    "nearby_concurrency",
			mutate:  func(cfg *Config) { cfg.Datastore.MaxConcurrentNearby = 0 },
			wantErr: "config 'datastore.maxConcurrentNearby' cannot be 0",
		},
		{
			name:    "authn_method",
			mutate:  func(cfg *Config) { cfg.Authn.Method = "preshared" },
			wantErr: "config 'authn.method' must be one of [none oidc]",
		},
		{
			name:    "oidc_without_issuer",
			mutate:  func(cfg *Config) { cfg.Authn.Method = "oidc" },
			wantErr: "'authn.oidc.issuer' config must be set",
		},
		{
			name: "http_cert_path",
			mutate: func(cfg *Config) {
				cfg.HTTP.TLS = &TLSConfig{Enabled: true, KeyPath: "some/path"}
			},
			wantErr: "'http.tls.cert' and 'http.tls.key' configs must be set",
		},
		{
			name: "grpc_key_path",
			mutate: func(cfg *Config) {
				cfg.GRPC.TLS = &TLSConfig{Enabled: true, CertPath: "some/path"}
			},
			wantErr: "'grpc.tls.cert' and 'grpc.tls.key' configs must be set",
		},
		{
			name:    "request_timeout",
			mutate:  func(cfg *Config) { cfg.RequestTimeout = 0 },
			wantErr: "config 'requestTimeout' must be a positive duration",
		},
		{
			name:    "sample_ratio",
			mutate:  func(cfg *Config) { cfg.Trace.SampleRatio = 1.5 },
			wantErr: "config 'trace.sampleRatio' must be within [0, 1]",
		},
		{
			name:    "geocode_user_agent",
			mutate:  func(cfg *Config) { cfg.Geocode.UserAgent = "" },
			wantErr: "config 'geocode.userAgent' must be set, the provider rejects anonymous clients",
		},
		{
			name:    "geocode_interval",
			mutate:  func(cfg *Config) { cfg.Geocode.Interval = -time.Second },
			wantErr: "config 'geocode.interval' must be at least 1s",
		},
		{
			name:    "geocode_interval_below_one_second",
			mutate:  func(cfg *Config) { cfg.Geocode.Interval = 200 * time.Millisecond },
			wantErr: "config 'geocode.interval' must be at least 1s",
		},
		{
			name:    "geocode_timeout",
			mutate:  func(cfg *Config) { cfg.Geocode.Timeout = 0 },
			wantErr: "config 'geocode.timeout' must be a positive duration",
		},
		{
			name:    "subscriber_buffer",
			mutate:  func(cfg *Config) { cfg.Notify.SubscriberBufferSize = 0 },
			wantErr: "config 'notify.subscriberBufferSize' must be positive",
		},
		{
			name:    "websocket_durations",
			mutate:  func(cfg *Config) { cfg.WebSocket.PingPeriod = 0 },
			wantErr: "configs 'websocket.pingPeriod' and 'websocket.writeTimeout' must be positive durations",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			require.EqualError(t, cfg.Verify(), tc.wantErr)
		})
	}

	t.Run("geocode_disabled_skips_its_checks", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Geocode.Enabled = false
		cfg.Geocode.UserAgent = ""
		require.NoError(t, cfg.Verify())
	})

	t.Run("invalid_call_url", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Call.BaseURL = "not a url"
		require.ErrorContains(t, cfg.Verify(), "config 'call.baseURL' is invalid")
	})
}

func TestMustDefaultConfigWithRandomPorts(t *testing.T) {
	cfg := MustDefaultConfigWithRandomPorts()
	require.NotEqual(t, DefaultConfig().HTTP.Addr, cfg.HTTP.Addr)
	require.NotEqual(t, cfg.HTTP.Addr, cfg.GRPC.Addr)
	require.False(t, cfg.Metrics.Enabled)
}
