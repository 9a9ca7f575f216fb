package retryablehttp

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vecinotech/vecinotech/pkg/logger"
)

func TestStandardClient(t *testing.T) {
	t.Run("no_retries_by_default", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		client := StandardClient(DefaultConfig(), logger.NewNoopLogger())
		resp, err := client.Get(srv.URL)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		require.Equal(t, int32(1), calls.Load())
	})

	t.Run("retries_server_errors_when_enabled", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		cfg := DefaultConfig()
		cfg.RetryMax = 3
		cfg.RetryWaitMin = time.Millisecond
		cfg.RetryWaitMax = 2 * time.Millisecond

		log, logs := logger.NewObserverLogger("debug")
		resp, err := StandardClient(cfg, log).Get(srv.URL)
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, int32(3), calls.Load())
		require.Positive(t, logs.Len())
	})

	t.Run("read_timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
		}))
		defer srv.Close()
		defer close(release)

		cfg := DefaultConfig()
		cfg.ReadTimeout = 20 * time.Millisecond

		_, err := StandardClient(cfg, nil).Get(srv.URL)
		require.Error(t, err)
	})
}
