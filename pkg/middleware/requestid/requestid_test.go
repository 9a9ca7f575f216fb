package requestid

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"

	"github.com/vecinotech/vecinotech/pkg/logger"
)

func TestHandler(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "generated"},
		{name: "propagated", incoming: "edge-1234", keep: true},
		{name: "rejected", incoming: "<script>"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			handler := Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				id, ok := FromContext(r.Context())
				require.True(t, ok)
				require.Len(t, logger.FieldsFromContext(r.Context()), 1)
				seen = id
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.incoming != "" {
				req.Header.Set(RequestIDHeader, tc.incoming)
			}
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)

			require.Equal(t, seen, resp.Header().Get(RequestIDHeader))
			if tc.keep {
				require.Equal(t, tc.incoming, seen)
				return
			}
			_, err := ulid.Parse(seen)
			require.NoError(t, err)
		})
	}
}
