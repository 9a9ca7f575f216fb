// Package run contains the command to run a vecinotech server.
package run

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	goruntime "runtime"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	grpcauth "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	grpc_prometheus "github.com/jon-whit/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	healthv1pb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"sigs.k8s.io/controller-runtime/pkg/certwatcher"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/vecinotech/vecinotech/internal/authn"
	"github.com/vecinotech/vecinotech/internal/authn/oidc"
	"github.com/vecinotech/vecinotech/internal/build"
	"github.com/vecinotech/vecinotech/internal/throttler"
	"github.com/vecinotech/vecinotech/pkg/gateway"
	"github.com/vecinotech/vecinotech/pkg/geo"
	"github.com/vecinotech/vecinotech/pkg/geocode"
	"github.com/vecinotech/vecinotech/pkg/logger"
	"github.com/vecinotech/vecinotech/pkg/middleware"
	"github.com/vecinotech/vecinotech/pkg/middleware/logging"
	"github.com/vecinotech/vecinotech/pkg/middleware/recovery"
	"github.com/vecinotech/vecinotech/pkg/middleware/requestid"
	"github.com/vecinotech/vecinotech/pkg/retryablehttp"
	"github.com/vecinotech/vecinotech/pkg/server"
	serverconfig "github.com/vecinotech/vecinotech/pkg/server/config"
	"github.com/vecinotech/vecinotech/pkg/server/health"
	"github.com/vecinotech/vecinotech/pkg/server/ws"
	"github.com/vecinotech/vecinotech/pkg/storage"
	"github.com/vecinotech/vecinotech/pkg/storage/memory"
	"github.com/vecinotech/vecinotech/pkg/storage/mysql"
	"github.com/vecinotech/vecinotech/pkg/storage/postgres"
	"github.com/vecinotech/vecinotech/pkg/storage/sqlcommon"
	"github.com/vecinotech/vecinotech/pkg/storage/sqlite"
	"github.com/vecinotech/vecinotech/pkg/storage/storagewrappers"
	"github.com/vecinotech/vecinotech/pkg/telemetry"
)

const (
	healthzPath      = "/healthz"
	websocketPath    = "/ws"
	shutdownTimeout  = 5 * time.Second
	readHeaderWindow = 10 * time.Second
)

func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the vecinotech server",
		Long:  "Run the vecinotech server: the JSON API, the websocket endpoint, gRPC health and prometheus metrics.",
		RunE:  run,
		Args:  cobra.NoArgs,
	}

	// NOTE: flags are declared and bound in flags.go
	bindRunFlags(cmd)

	return cmd
}

// ReadConfig returns the server configuration based on the values provided in the server's 'config.yaml' file.
// The 'config.yaml' file is loaded from '/etc/vecinotech', '$HOME/.vecinotech', or the current working directory. If no configuration
// file is present, the default values are returned.
func ReadConfig() (*serverconfig.Config, error) {
	config := serverconfig.DefaultConfig()

	viper.SetTypeByDefaultValue(true)
	err := viper.ReadInConfig()
	if err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("failed to load server config: %w", err)
		}
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal server config: %w", err)
	}

	return config, nil
}

func run(cmd *cobra.Command, _ []string) error {
	config, err := ReadConfig()
	if err != nil {
		return err
	}

	if err := config.Verify(); err != nil {
		return err
	}

	logger, err := logger.NewLogger(config.Log.Format, config.Log.Level)
	if err != nil {
		return err
	}
	serverCtx := &ServerContext{Logger: logger}
	return serverCtx.Run(cmd.Context(), config)
}

type ServerContext struct {
	Logger logger.Logger
}

// telemetryConfig returns the function that must be called to shut down tracing.
func (s *ServerContext) telemetryConfig(config *serverconfig.Config) func() error {
	if config.Trace.Enabled {
		s.Logger.Info(fmt.Sprintf("tracing enabled: sampling ratio is %v and sending traces to '%s', tls: %t", config.Trace.SampleRatio, config.Trace.OTLP.Endpoint, config.Trace.OTLP.TLS.Enabled))

		options := []telemetry.TracerOption{
			telemetry.WithOTLPEndpoint(config.Trace.OTLP.Endpoint),
			telemetry.WithAttributes(
				semconv.ServiceNameKey.String(config.Trace.ServiceName),
				semconv.ServiceVersionKey.String(build.Version),
			),
			telemetry.WithSamplingRatio(config.Trace.SampleRatio),
			telemetry.WithTailLatency(config.Trace.TailLatency),
		}

		if !config.Trace.OTLP.TLS.Enabled {
			options = append(options, telemetry.WithOTLPInsecure())
		}

		tp := telemetry.MustNewTracerProvider(options...)
		return func() error {
			// the batch span processor may take up to 5 seconds to flush
			ctx, cancel := context.WithTimeout(context.Background(), 6*time.Second)
			defer cancel()
			return tp.Close(ctx)
		}
	}
	tp := telemetry.Noop()
	otel.SetTracerProvider(tp)
	return func() error {
		return tp.Close(context.Background())
	}
}

// datastoreConfig opens the configured engine and wraps it with the datastore
// middleware every deployment runs with.
func (s *ServerContext) datastoreConfig(config *serverconfig.Config) (storage.Datastore, error) {
	datastoreOptions := []sqlcommon.DatastoreOption{
		sqlcommon.WithUsername(config.Datastore.Username),
		sqlcommon.WithPassword(config.Datastore.Password),
		sqlcommon.WithLogger(s.Logger),
		sqlcommon.WithMaxOpenConns(config.Datastore.MaxOpenConns),
		sqlcommon.WithMaxIdleConns(config.Datastore.MaxIdleConns),
		sqlcommon.WithConnMaxIdleTime(config.Datastore.ConnMaxIdleTime),
		sqlcommon.WithConnMaxLifetime(config.Datastore.ConnMaxLifetime),
	}

	if config.Datastore.Metrics.Enabled {
		datastoreOptions = append(datastoreOptions, sqlcommon.WithMetrics())
	}

	dsCfg := sqlcommon.NewConfig(datastoreOptions...)

	var datastore storage.Datastore
	var err error
	switch config.Datastore.Engine {
	case "memory":
		datastore = memory.New()
	case "mysql":
		datastore, err = mysql.New(config.Datastore.URI, dsCfg)
		if err != nil {
			return nil, fmt.Errorf("initialize mysql datastore: %w", err)
		}
	case "postgres":
		datastore, err = postgres.New(config.Datastore.URI, dsCfg)
		if err != nil {
			return nil, fmt.Errorf("initialize postgres datastore: %w", err)
		}
	case "sqlite":
		datastore, err = sqlite.New(config.Datastore.URI, dsCfg)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite datastore: %w", err)
		}
	default:
		return nil, fmt.Errorf("storage engine '%s' is unsupported", config.Datastore.Engine)
	}

	s.Logger.Info(fmt.Sprintf("using '%v' storage engine", config.Datastore.Engine))

	datastore = storagewrappers.NewContextWrapper(datastore)
	datastore = storagewrappers.NewBoundedConcurrencyDatastore(datastore, config.Datastore.MaxConcurrentNearby)

	return datastore, nil
}

func (s *ServerContext) authenticatorConfig(config *serverconfig.Config) (authn.Authenticator, error) {
	var authenticator authn.Authenticator
	var err error

	switch config.Authn.Method {
	case "none":
		s.Logger.Warn("authentication is disabled, callers are trusted to send their user id in the '" + authn.UserIDHeader + "' header")
		authenticator = authn.HeaderAuthenticator{}
	case "oidc":
		s.Logger.Info("using 'oidc' authentication")
		issuers := append([]string{config.Authn.Issuer}, config.Authn.IssuerAliases...)
		authenticator, err = oidc.NewRemoteOidcAuthenticator(issuers, config.Authn.Audience)
	default:
		return nil, fmt.Errorf("unsupported authentication method '%v'", config.Authn.Method)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize authenticator: %w", err)
	}
	return authenticator, nil
}

// geocoderConfig returns a nil Geocoder when geocoding is disabled. The
// returned function releases the lookup cache.
func (s *ServerContext) geocoderConfig(config *serverconfig.Config) (geocode.Geocoder, func(), error) {
	if !config.Geocode.Enabled {
		s.Logger.Warn("geocoding is disabled, requests are only located from cached profile locations")
		return nil, func() {}, nil
	}

	httpConfig := retryablehttp.DefaultConfig()
	httpConfig.ReadTimeout = config.Geocode.Timeout
	// every provider call must go through the pacer
	httpConfig.RetryMax = 0
	client := retryablehttp.StandardClient(httpConfig, s.Logger)

	provider := geocode.NewNominatimProvider(client,
		geocode.WithBaseURL(config.Geocode.URL),
		geocode.WithUserAgent(config.Geocode.UserAgent),
		geocode.WithAcceptLanguage(config.Geocode.AcceptLanguage),
	)

	opts := []geocode.Option{
		geocode.WithPacer(throttler.NewIntervalPacer("nominatim", config.Geocode.Interval)),
		geocode.WithLogger(s.Logger),
		geocode.WithDefaultCountry(config.Geocode.DefaultCountry),
	}

	closer := func() {}
	if config.Geocode.CacheSize > 0 {
		cache, err := storage.NewInMemoryLRUCache(storage.WithMaxCacheSize[geo.Coordinate](config.Geocode.CacheSize))
		if err != nil {
			return nil, nil, fmt.Errorf("initialize geocode cache: %w", err)
		}
		opts = append(opts, geocode.WithCache(cache, config.Geocode.CacheTTL))
		closer = cache.Stop
	}

	s.Logger.Info(fmt.Sprintf("geocoding addresses with '%s', at most one call every %s", config.Geocode.URL, config.Geocode.Interval))

	return geocode.NewCascadeGeocoder(provider, opts...), closer, nil
}

// buildHTTPHandler assembles the public HTTP surface: the API under
// gateway.Prefix, the websocket endpoint and the liveness check. The websocket
// handler is nil when disabled.
func (s *ServerContext) buildHTTPHandler(config *serverconfig.Config, svr *server.Server, authenticator authn.Authenticator) (http.Handler, *ws.Handler) {
	authenticate := authn.Middleware(authenticator, func(w http.ResponseWriter, r *http.Request, err error) {
		gateway.WriteError(s.Logger, w, r, err)
	})

	mux := http.NewServeMux()

	var api http.Handler = gateway.NewHandler(svr, s.Logger)
	api = middleware.NewTimeoutHandler(config.RequestTimeout, s.Logger).Handler(authenticate(api))
	if config.Trace.Enabled {
		api = otelhttp.NewHandler(api, "api")
	}
	mux.Handle(gateway.Prefix+"/", api)

	var wsHandler *ws.Handler
	if config.WebSocket.Enabled {
		wsHandler = ws.NewHandler(svr, s.Logger, ws.Config{
			PingPeriod:   config.WebSocket.PingPeriod,
			WriteTimeout: config.WebSocket.WriteTimeout,
		})
		mux.Handle(websocketPath, telemetry.HTTPServerTraceExtractor(authenticate(wsHandler)))
	}

	mux.HandleFunc("GET "+healthzPath, healthzHandler(svr))

	handler := logging.NewLoggingHandler(s.Logger, mux, healthzPath)
	handler = requestid.Handler(handler)
	handler = cors.New(cors.Options{
		AllowedOrigins:   config.HTTP.CORSAllowedOrigins,
		AllowCredentials: true,
		AllowedHeaders:   config.HTTP.CORSAllowedHeaders,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost,
			http.MethodHead, http.MethodPut,
		},
		ExposedHeaders: []string{requestid.RequestIDHeader},
	}).Handler(handler)

	return recovery.HTTPPanicRecoveryHandler(handler, s.Logger), wsHandler
}

type healthzResponse struct {
	Status string `json:"status"`
}

func healthzHandler(svr *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, body := http.StatusOK, healthzResponse{Status: healthv1pb.HealthCheckResponse_SERVING.String()}
		if ready, err := svr.IsReady(r.Context()); err != nil || !ready {
			code, body = http.StatusServiceUnavailable, healthzResponse{Status: healthv1pb.HealthCheckResponse_NOT_SERVING.String()}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(body)
	}
}

// denyByDefault rejects every RPC of services that do not override
// authentication, leaving only the health service reachable.
func denyByDefault(context.Context) (context.Context, error) {
	return nil, status.Error(codes.Unauthenticated, "no credentials accepted on this listener")
}

func (s *ServerContext) buildGRPCServer(ctx context.Context, config *serverconfig.Config) (*grpc.Server, *grpc_prometheus.ServerMetrics, error) {
	serverOpts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			grpc_recovery.UnaryServerInterceptor( // panic middleware must be 1st in chain
				grpc_recovery.WithRecoveryHandlerContext(recovery.PanicRecoveryHandler(s.Logger)),
			),
		),
		grpc.ChainStreamInterceptor(
			grpc_recovery.StreamServerInterceptor( // panic middleware must be 1st in chain
				grpc_recovery.WithRecoveryHandlerContext(recovery.PanicRecoveryHandler(s.Logger)),
			),
		),
	}

	var prometheusMetrics *grpc_prometheus.ServerMetrics
	if config.Metrics.Enabled {
		prometheusMetrics = grpc_prometheus.NewServerMetrics()
		prometheus.MustRegister(prometheusMetrics)

		serverOpts = append(serverOpts,
			grpc.ChainUnaryInterceptor(prometheusMetrics.UnaryServerInterceptor()),
			grpc.ChainStreamInterceptor(prometheusMetrics.StreamServerInterceptor()))
	}

	if config.Trace.Enabled {
		serverOpts = append(serverOpts, grpc.StatsHandler(otelgrpc.NewServerHandler()))
	}

	serverOpts = append(serverOpts,
		grpc.ChainUnaryInterceptor(grpcauth.UnaryServerInterceptor(denyByDefault)),
		grpc.ChainStreamInterceptor(grpcauth.StreamServerInterceptor(denyByDefault)),
	)

	if config.GRPC.TLS != nil && config.GRPC.TLS.Enabled {
		grpcGetCertificate, err := watchAndLoadCertificateWithCertWatcher(ctx, config.GRPC.TLS.CertPath, config.GRPC.TLS.KeyPath, s.Logger)
		if err != nil {
			return nil, prometheusMetrics, err
		}
		creds := credentials.NewTLS(&tls.Config{
			GetCertificate: grpcGetCertificate,
		})

		serverOpts = append(serverOpts, grpc.Creds(creds))

		s.Logger.Info("gRPC TLS is enabled, serving connections using the provided certificate")
	} else {
		s.Logger.Warn("gRPC TLS is disabled, serving connections using insecure plaintext")
	}

	// nosemgrep: grpc-server-insecure-connection
	grpcServer := grpc.NewServer(serverOpts...)
	if prometheusMetrics != nil {
		prometheusMetrics.InitializeMetrics(grpcServer)
	}
	return grpcServer, prometheusMetrics, nil
}

func (s *ServerContext) httpListener(ctx context.Context, config *serverconfig.Config) (net.Listener, error) {
	listener, err := net.Listen("tcp", config.HTTP.Addr)
	if err != nil {
		return nil, err
	}

	if config.HTTP.TLS != nil && config.HTTP.TLS.Enabled {
		httpGetCertificate, err := watchAndLoadCertificateWithCertWatcher(ctx, config.HTTP.TLS.CertPath, config.HTTP.TLS.KeyPath, s.Logger)
		if err != nil {
			listener.Close()
			return nil, err
		}
		listener = tls.NewListener(listener, &tls.Config{
			GetCertificate: httpGetCertificate,
		})

		s.Logger.Info("HTTP TLS is enabled, serving connections using the provided certificate")
	} else {
		s.Logger.Warn("HTTP TLS is disabled, serving connections using insecure plaintext")
	}
	return listener, nil
}

// Run serves until ctx is cancelled, a termination signal arrives or one of
// the listeners fails, then shuts everything down.
func (s *ServerContext) Run(ctx context.Context, config *serverconfig.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracerProviderCloser := s.telemetryConfig(config)
	defer func() {
		if err := tracerProviderCloser(); err != nil {
			s.Logger.Error("failed to shutdown tracing", zap.Error(err))
		}
	}()

	datastore, err := s.datastoreConfig(config)
	if err != nil {
		return err
	}
	defer datastore.Close()

	authenticator, err := s.authenticatorConfig(config)
	if err != nil {
		return err
	}
	defer authenticator.Close()

	geocoder, geocoderCloser, err := s.geocoderConfig(config)
	if err != nil {
		return err
	}
	defer geocoderCloser()

	svr := server.New(&server.Dependencies{
		Datastore: datastore,
		Geocoder:  geocoder,
		Logger:    s.Logger,
	}, &server.Config{
		CallBaseURL:          config.Call.BaseURL,
		SubscriberBufferSize: config.Notify.SubscriberBufferSize,
	})
	defer svr.Close()

	s.Logger.Info(
		"starting vecinotech service...",
		zap.String("version", build.Version),
		zap.String("date", build.Date),
		zap.String("commit", build.Commit),
		zap.String("go-version", goruntime.Version()),
		zap.String("datastore", config.Datastore.Engine),
		zap.String("authn", config.Authn.Method),
	)

	var metricsServer *http.Server
	if config.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())

		metricsServer = &http.Server{Addr: config.Metrics.Addr, Handler: mux, ReadHeaderTimeout: readHeaderWindow}
	}

	grpcServer, prometheusMetrics, err := s.buildGRPCServer(ctx, config)
	if prometheusMetrics != nil {
		defer prometheus.Unregister(prometheusMetrics)
	}
	if err != nil {
		return err
	}
	healthServer := &health.Checker{TargetService: svr, TargetServiceName: build.ProjectName}
	healthv1pb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	grpcListener, err := net.Listen("tcp", config.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	httpListener, err := s.httpListener(ctx, config)
	if err != nil {
		grpcListener.Close()
		return err
	}
	handler, wsHandler := s.buildHTTPHandler(config, svr, authenticator)
	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderWindow,
	}
	if wsHandler != nil {
		httpServer.RegisterOnShutdown(wsHandler.Close)
	}

	g, gctx := errgroup.WithContext(ctx)

	if metricsServer != nil {
		g.Go(func() error {
			s.Logger.Info(fmt.Sprintf("starting prometheus metrics server on '%s'", config.Metrics.Addr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("prometheus metrics server: %w", err)
			}
			s.Logger.Info("metrics server shut down.")
			return nil
		})
	}

	g.Go(func() error {
		s.Logger.Info(fmt.Sprintf("starting gRPC server on '%s'...", grpcListener.Addr().String()))
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC server: %w", err)
		}
		s.Logger.Info("gRPC server shut down.")
		return nil
	})

	g.Go(func() error {
		s.Logger.Info(fmt.Sprintf("starting HTTP server on '%s'...", httpListener.Addr().String()))
		if err := httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		s.Logger.Info("HTTP server shut down.")
		return nil
	})

	g.Go(func() error {
		// wait for cancellation signal or the first listener failure
		<-gctx.Done()
		s.Logger.Info("attempting to shutdown gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.Logger.Info("failed to shutdown the http server", zap.Error(err))
		}

		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				s.Logger.Info("failed to shutdown the prometheus metrics server", zap.Error(err))
			}
		}

		grpcServer.GracefulStop()
		svr.Close()
		return nil
	})

	if err := g.Wait(); err != nil {
		s.Logger.Error("server closed with unexpected error", zap.Error(err))
		return err
	}

	s.Logger.Info("server exited. goodbye")

	return nil
}

func watchAndLoadCertificateWithCertWatcher(ctx context.Context, certPath, keyPath string, logger logger.Logger) (func(*tls.ClientHelloInfo) (*tls.Certificate, error), error) {
	log.SetLogger(logr.New(nil))
	watcher, err := certwatcher.New(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create certwatcher: %w", err)
	}

	if err := watcher.ReadCertificate(); err != nil {
		return nil, fmt.Errorf("failed to load initial certificate: %w", err)
	}
	logger.Info("Initial TLS certificate loaded.", zap.String("certPath", certPath), zap.String("keyPath", keyPath))

	go func() {
		logger.Info("Starting certificate watcher...", zap.String("certPath", certPath), zap.String("keyPath", keyPath))
		if err := watcher.Start(ctx); err != nil {
			logger.Error("Certwatcher encountered an error", zap.Error(err))
		}
	}()

	getCertificate := func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
		return watcher.GetCertificate(nil)
	}

	return getCertificate, nil
}
