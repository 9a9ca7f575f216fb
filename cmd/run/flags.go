package run

import (
	"github.com/spf13/cobra"

	"github.com/vecinotech/vecinotech/cmd/util"
	serverconfig "github.com/vecinotech/vecinotech/pkg/server/config"
)

// bindRunFlags declares the run flags and binds each of them, and its
// environment variable, to the equivalent config key managed by viper.
func bindRunFlags(command *cobra.Command) {
	defaultConfig := serverconfig.DefaultConfig()
	flags := command.Flags()

	flags.Duration("request-timeout", defaultConfig.RequestTimeout, "the deadline applied to every HTTP API call")
	util.MustBindPFlag("requestTimeout", flags.Lookup("request-timeout"))
	util.MustBindEnv("requestTimeout", "VECINOTECH_REQUEST_TIMEOUT", "VECINOTECH_REQUESTTIMEOUT")

	flags.String("grpc-addr", defaultConfig.GRPC.Addr, "the host:port address to serve the gRPC health service on")
	util.MustBindPFlag("grpc.addr", flags.Lookup("grpc-addr"))
	util.MustBindEnv("grpc.addr", "VECINOTECH_GRPC_ADDR")

	flags.Bool("grpc-tls-enabled", defaultConfig.GRPC.TLS.Enabled, "enable/disable transport layer security (TLS)")
	util.MustBindPFlag("grpc.tls.enabled", flags.Lookup("grpc-tls-enabled"))
	util.MustBindEnv("grpc.tls.enabled", "VECINOTECH_GRPC_TLS_ENABLED")

	flags.String("grpc-tls-cert", defaultConfig.GRPC.TLS.CertPath, "the (absolute) file path of the certificate to use for the TLS connection")
	util.MustBindPFlag("grpc.tls.cert", flags.Lookup("grpc-tls-cert"))
	util.MustBindEnv("grpc.tls.cert", "VECINOTECH_GRPC_TLS_CERT")

	flags.String("grpc-tls-key", defaultConfig.GRPC.TLS.KeyPath, "the (absolute) file path of the TLS key that should be used for the TLS connection")
	util.MustBindPFlag("grpc.tls.key", flags.Lookup("grpc-tls-key"))
	util.MustBindEnv("grpc.tls.key", "VECINOTECH_GRPC_TLS_KEY")

	command.MarkFlagsRequiredTogether("grpc-tls-enabled", "grpc-tls-cert", "grpc-tls-key")

	flags.String("http-addr", defaultConfig.HTTP.Addr, "the host:port address to serve the HTTP server on")
	util.MustBindPFlag("http.addr", flags.Lookup("http-addr"))
	util.MustBindEnv("http.addr", "VECINOTECH_HTTP_ADDR")

	flags.Bool("http-tls-enabled", defaultConfig.HTTP.TLS.Enabled, "enable/disable transport layer security (TLS)")
	util.MustBindPFlag("http.tls.enabled", flags.Lookup("http-tls-enabled"))
	util.MustBindEnv("http.tls.enabled", "VECINOTECH_HTTP_TLS_ENABLED")

	flags.String("http-tls-cert", defaultConfig.HTTP.TLS.CertPath, "the (absolute) file path of the certificate to use for the TLS connection")
	util.MustBindPFlag("http.tls.cert", flags.Lookup("http-tls-cert"))
	util.MustBindEnv("http.tls.cert", "VECINOTECH_HTTP_TLS_CERT")

	flags.String("http-tls-key", defaultConfig.HTTP.TLS.KeyPath, "the (absolute) file path of the TLS key that should be used for the TLS connection")
	util.MustBindPFlag("http.tls.key", flags.Lookup("http-tls-key"))
	util.MustBindEnv("http.tls.key", "VECINOTECH_HTTP_TLS_KEY")

	command.MarkFlagsRequiredTogether("http-tls-enabled", "http-tls-cert", "http-tls-key")

	flags.StringSlice("http-cors-allowed-origins", defaultConfig.HTTP.CORSAllowedOrigins, "specifies the CORS allowed origins")
	util.MustBindPFlag("http.corsAllowedOrigins", flags.Lookup("http-cors-allowed-origins"))
	util.MustBindEnv("http.corsAllowedOrigins", "VECINOTECH_HTTP_CORS_ALLOWED_ORIGINS", "VECINOTECH_HTTP_CORSALLOWEDORIGINS")

	flags.StringSlice("http-cors-allowed-headers", defaultConfig.HTTP.CORSAllowedHeaders, "specifies the CORS allowed headers")
	util.MustBindPFlag("http.corsAllowedHeaders", flags.Lookup("http-cors-allowed-headers"))
	util.MustBindEnv("http.corsAllowedHeaders", "VECINOTECH_HTTP_CORS_ALLOWED_HEADERS", "VECINOTECH_HTTP_CORSALLOWEDHEADERS")

	flags.String("authn-method", defaultConfig.Authn.Method, "the authentication method to use ('none' or 'oidc')")
	util.MustBindPFlag("authn.method", flags.Lookup("authn-method"))
	util.MustBindEnv("authn.method", "VECINOTECH_AUTHN_METHOD")

	flags.String("authn-oidc-audience", defaultConfig.Authn.Audience, "the OIDC audience of the tokens being signed by the authorization server")
	util.MustBindPFlag("authn.oidc.audience", flags.Lookup("authn-oidc-audience"))
	util.MustBindEnv("authn.oidc.audience", "VECINOTECH_AUTHN_OIDC_AUDIENCE")

	flags.String("authn-oidc-issuer", defaultConfig.Authn.Issuer, "the OIDC issuer (authorization server) signing the tokens, and where the keys will be fetched from")
	util.MustBindPFlag("authn.oidc.issuer", flags.Lookup("authn-oidc-issuer"))
	util.MustBindEnv("authn.oidc.issuer", "VECINOTECH_AUTHN_OIDC_ISSUER")

	flags.StringSlice("authn-oidc-issuer-aliases", defaultConfig.Authn.IssuerAliases, "the OIDC issuer DNS aliases that will be accepted as valid when verifying the `iss` field of the JWTs.")
	util.MustBindPFlag("authn.oidc.issuerAliases", flags.Lookup("authn-oidc-issuer-aliases"))
	util.MustBindEnv("authn.oidc.issuerAliases", "VECINOTECH_AUTHN_OIDC_ISSUER_ALIASES", "VECINOTECH_AUTHN_OIDC_ISSUERALIASES")

	flags.String("datastore-engine", defaultConfig.Datastore.Engine, "the datastore engine that will be used for persistence ('memory', 'sqlite', 'postgres' or 'mysql')")
	util.MustBindPFlag("datastore.engine", flags.Lookup("datastore-engine"))
	util.MustBindEnv("datastore.engine", "VECINOTECH_DATASTORE_ENGINE")

	flags.String("datastore-uri", defaultConfig.Datastore.URI, "the connection uri to use to connect to the datastore (for any engine other than 'memory')")
	util.MustBindPFlag("datastore.uri", flags.Lookup("datastore-uri"))
	util.MustBindEnv("datastore.uri", "VECINOTECH_DATASTORE_URI")

	flags.String("datastore-username", "", "the connection username to use to connect to the datastore (overwrites any username provided in the connection uri)")
	util.MustBindPFlag("datastore.username", flags.Lookup("datastore-username"))
	util.MustBindEnv("datastore.username", "VECINOTECH_DATASTORE_USERNAME")

	flags.String("datastore-password", "", "the connection password to use to connect to the datastore (overwrites any password provided in the connection uri)")
	util.MustBindPFlag("datastore.password", flags.Lookup("datastore-password"))
	util.MustBindEnv("datastore.password", "VECINOTECH_DATASTORE_PASSWORD")

	flags.Int("datastore-max-open-conns", defaultConfig.Datastore.MaxOpenConns, "the maximum number of open connections to the datastore")
	util.MustBindPFlag("datastore.maxOpenConns", flags.Lookup("datastore-max-open-conns"))
	util.MustBindEnv("datastore.maxOpenConns", "VECINOTECH_DATASTORE_MAX_OPEN_CONNS", "VECINOTECH_DATASTORE_MAXOPENCONNS")

	flags.Int("datastore-max-idle-conns", defaultConfig.Datastore.MaxIdleConns, "the maximum number of connections to the datastore in the idle connection pool")
	util.MustBindPFlag("datastore.maxIdleConns", flags.Lookup("datastore-max-idle-conns"))
	util.MustBindEnv("datastore.maxIdleConns", "VECINOTECH_DATASTORE_MAX_IDLE_CONNS", "VECINOTECH_DATASTORE_MAXIDLECONNS")

	flags.Duration("datastore-conn-max-idle-time", defaultConfig.Datastore.ConnMaxIdleTime, "the maximum amount of time a connection to the datastore may be idle")
	util.MustBindPFlag("datastore.connMaxIdleTime", flags.Lookup("datastore-conn-max-idle-time"))
	util.MustBindEnv("datastore.connMaxIdleTime", "VECINOTECH_DATASTORE_CONN_MAX_IDLE_TIME", "VECINOTECH_DATASTORE_CONNMAXIDLETIME")

	flags.Duration("datastore-conn-max-lifetime", defaultConfig.Datastore.ConnMaxLifetime, "the maximum amount of time a connection to the datastore may be reused")
	util.MustBindPFlag("datastore.connMaxLifetime", flags.Lookup("datastore-conn-max-lifetime"))
	util.MustBindEnv("datastore.connMaxLifetime", "VECINOTECH_DATASTORE_CONN_MAX_LIFETIME", "VECINOTECH_DATASTORE_CONNMAXLIFETIME")

	flags.Uint32("datastore-max-concurrent-nearby", defaultConfig.Datastore.MaxConcurrentNearby, "the maximum number of nearby searches running against the datastore at once")
	util.MustBindPFlag("datastore.maxConcurrentNearby", flags.Lookup("datastore-max-concurrent-nearby"))
	util.MustBindEnv("datastore.maxConcurrentNearby", "VECINOTECH_DATASTORE_MAX_CONCURRENT_NEARBY", "VECINOTECH_DATASTORE_MAXCONCURRENTNEARBY")

	flags.Bool("datastore-metrics-enabled", defaultConfig.Datastore.Metrics.Enabled, "enable/disable sql metrics")
	util.MustBindPFlag("datastore.metrics.enabled", flags.Lookup("datastore-metrics-enabled"))
	util.MustBindEnv("datastore.metrics.enabled", "VECINOTECH_DATASTORE_METRICS_ENABLED")

	flags.String("log-format", defaultConfig.Log.Format, "the log format to output logs in ('text' or 'json')")
	util.MustBindPFlag("log.format", flags.Lookup("log-format"))
	util.MustBindEnv("log.format", "VECINOTECH_LOG_FORMAT")

	flags.String("log-level", defaultConfig.Log.Level, "the log level to use")
	util.MustBindPFlag("log.level", flags.Lookup("log-level"))
	util.MustBindEnv("log.level", "VECINOTECH_LOG_LEVEL")

	flags.Bool("trace-enabled", defaultConfig.Trace.Enabled, "enable tracing")
	util.MustBindPFlag("trace.enabled", flags.Lookup("trace-enabled"))
	util.MustBindEnv("trace.enabled", "VECINOTECH_TRACE_ENABLED")

	flags.String("trace-otlp-endpoint", defaultConfig.Trace.OTLP.Endpoint, "the endpoint of the trace collector")
	util.MustBindPFlag("trace.otlp.endpoint", flags.Lookup("trace-otlp-endpoint"))
	util.MustBindEnv("trace.otlp.endpoint", "VECINOTECH_TRACE_OTLP_ENDPOINT")

	flags.Bool("trace-otlp-tls-enabled", defaultConfig.Trace.OTLP.TLS.Enabled, "use TLS connection for trace collector")
	util.MustBindPFlag("trace.otlp.tls.enabled", flags.Lookup("trace-otlp-tls-enabled"))
	util.MustBindEnv("trace.otlp.tls.enabled", "VECINOTECH_TRACE_OTLP_TLS_ENABLED")

	flags.Float64("trace-sample-ratio", defaultConfig.Trace.SampleRatio, "the fraction of traces to sample. 1 means all, 0 means none.")
	util.MustBindPFlag("trace.sampleRatio", flags.Lookup("trace-sample-ratio"))
	util.MustBindEnv("trace.sampleRatio", "VECINOTECH_TRACE_SAMPLE_RATIO", "VECINOTECH_TRACE_SAMPLERATIO")

	flags.String("trace-service-name", defaultConfig.Trace.ServiceName, "the service name included in sampled traces.")
	util.MustBindPFlag("trace.serviceName", flags.Lookup("trace-service-name"))
	util.MustBindEnv("trace.serviceName", "VECINOTECH_TRACE_SERVICE_NAME", "VECINOTECH_TRACE_SERVICENAME")

	flags.Duration("trace-tail-latency", defaultConfig.Trace.TailLatency, "when positive, only traces slower than this are exported")
	util.MustBindPFlag("trace.tailLatency", flags.Lookup("trace-tail-latency"))
	util.MustBindEnv("trace.tailLatency", "VECINOTECH_TRACE_TAIL_LATENCY", "VECINOTECH_TRACE_TAILLATENCY")

	flags.Bool("metrics-enabled", defaultConfig.Metrics.Enabled, "enable/disable prometheus metrics on the '/metrics' endpoint")
	util.MustBindPFlag("metrics.enabled", flags.Lookup("metrics-enabled"))
	util.MustBindEnv("metrics.enabled", "VECINOTECH_METRICS_ENABLED")

	flags.String("metrics-addr", defaultConfig.Metrics.Addr, "the host:port address to serve the prometheus metrics server on")
	util.MustBindPFlag("metrics.addr", flags.Lookup("metrics-addr"))
	util.MustBindEnv("metrics.addr", "VECINOTECH_METRICS_ADDR")

	flags.Bool("geocode-enabled", defaultConfig.Geocode.Enabled, "enable/disable geocoding of profile addresses")
	util.MustBindPFlag("geocode.enabled", flags.Lookup("geocode-enabled"))
	util.MustBindEnv("geocode.enabled", "VECINOTECH_GEOCODE_ENABLED")

	flags.String("geocode-url", defaultConfig.Geocode.URL, "the base URL of the Nominatim search service")
	util.MustBindPFlag("geocode.url", flags.Lookup("geocode-url"))
	util.MustBindEnv("geocode.url", "VECINOTECH_GEOCODE_URL")

	flags.String("geocode-user-agent", defaultConfig.Geocode.UserAgent, "the User-Agent sent to the geocoding service")
	util.MustBindPFlag("geocode.userAgent", flags.Lookup("geocode-user-agent"))
	util.MustBindEnv("geocode.userAgent", "VECINOTECH_GEOCODE_USER_AGENT", "VECINOTECH_GEOCODE_USERAGENT")

	flags.String("geocode-accept-language", defaultConfig.Geocode.AcceptLanguage, "the preferred language of geocoding results")
	util.MustBindPFlag("geocode.acceptLanguage", flags.Lookup("geocode-accept-language"))
	util.MustBindEnv("geocode.acceptLanguage", "VECINOTECH_GEOCODE_ACCEPT_LANGUAGE", "VECINOTECH_GEOCODE_ACCEPTLANGUAGE")

	flags.String("geocode-default-country", defaultConfig.Geocode.DefaultCountry, "the country assumed when a profile has none")
	util.MustBindPFlag("geocode.defaultCountry", flags.Lookup("geocode-default-country"))
	util.MustBindEnv("geocode.defaultCountry", "VECINOTECH_GEOCODE_DEFAULT_COUNTRY", "VECINOTECH_GEOCODE_DEFAULTCOUNTRY")

	flags.Duration("geocode-interval", defaultConfig.Geocode.Interval, "the minimum time between two calls to the geocoding service")
	util.MustBindPFlag("geocode.interval", flags.Lookup("geocode-interval"))
	util.MustBindEnv("geocode.interval", "VECINOTECH_GEOCODE_INTERVAL")

	flags.Duration("geocode-timeout", defaultConfig.Geocode.Timeout, "the timeout of a single call to the geocoding service")
	util.MustBindPFlag("geocode.timeout", flags.Lookup("geocode-timeout"))
	util.MustBindEnv("geocode.timeout", "VECINOTECH_GEOCODE_TIMEOUT")

	flags.Int64("geocode-cache-size", defaultConfig.Geocode.CacheSize, "the maximum number of geocoded queries kept in memory")
	util.MustBindPFlag("geocode.cacheSize", flags.Lookup("geocode-cache-size"))
	util.MustBindEnv("geocode.cacheSize", "VECINOTECH_GEOCODE_CACHE_SIZE", "VECINOTECH_GEOCODE_CACHESIZE")

	flags.Duration("geocode-cache-ttl", defaultConfig.Geocode.CacheTTL, "how long a geocoded query stays cached")
	util.MustBindPFlag("geocode.cacheTTL", flags.Lookup("geocode-cache-ttl"))
	util.MustBindEnv("geocode.cacheTTL", "VECINOTECH_GEOCODE_CACHE_TTL", "VECINOTECH_GEOCODE_CACHETTL")

	flags.Int("notify-subscriber-buffer-size", defaultConfig.Notify.SubscriberBufferSize, "the number of events buffered per subscription before events are dropped")
	util.MustBindPFlag("notify.subscriberBufferSize", flags.Lookup("notify-subscriber-buffer-size"))
	util.MustBindEnv("notify.subscriberBufferSize", "VECINOTECH_NOTIFY_SUBSCRIBER_BUFFER_SIZE", "VECINOTECH_NOTIFY_SUBSCRIBERBUFFERSIZE")

	flags.Bool("websocket-enabled", defaultConfig.WebSocket.Enabled, "enable/disable the '/ws' real time endpoint")
	util.MustBindPFlag("websocket.enabled", flags.Lookup("websocket-enabled"))
	util.MustBindEnv("websocket.enabled", "VECINOTECH_WEBSOCKET_ENABLED")

	flags.Duration("websocket-ping-period", defaultConfig.WebSocket.PingPeriod, "how often idle websocket connections are pinged")
	util.MustBindPFlag("websocket.pingPeriod", flags.Lookup("websocket-ping-period"))
	util.MustBindEnv("websocket.pingPeriod", "VECINOTECH_WEBSOCKET_PING_PERIOD", "VECINOTECH_WEBSOCKET_PINGPERIOD")

	flags.Duration("websocket-write-timeout", defaultConfig.WebSocket.WriteTimeout, "the deadline of a single websocket frame write")
	util.MustBindPFlag("websocket.writeTimeout", flags.Lookup("websocket-write-timeout"))
	util.MustBindEnv("websocket.writeTimeout", "VECINOTECH_WEBSOCKET_WRITE_TIMEOUT", "VECINOTECH_WEBSOCKET_WRITETIMEOUT")

	flags.String("call-base-url", defaultConfig.Call.BaseURL, "the video call service the call rooms are created on")
	util.MustBindPFlag("call.baseURL", flags.Lookup("call-base-url"))
	util.MustBindEnv("call.baseURL", "VECINOTECH_CALL_BASE_URL", "VECINOTECH_CALL_BASEURL")

}
