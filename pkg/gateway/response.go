package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/vecinotech/vecinotech/pkg/logger"
	serverErrors "github.com/vecinotech/vecinotech/pkg/server/errors"
)

const maxBodyBytes = 64 << 10

// ErrorBody is the JSON shape of every error answered by the API.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError answers err with its HTTP status and public message. Internal
// errors are logged with their cause.
func WriteError(l logger.Logger, w http.ResponseWriter, r *http.Request, err error) {
	status := serverErrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError && status != http.StatusGatewayTimeout && status != http.StatusServiceUnavailable {
		l.ErrorWithContext(r.Context(), "request failed", zap.String("http_path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, ErrorBody{Code: serverErrors.Code(err), Message: serverErrors.PublicMessage(err)})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return serverErrors.InvalidArgument("request body must be at most %d bytes", maxBodyBytes)
		}
		return serverErrors.InvalidArgument("malformed JSON body")
	}
	return nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, serverErrors.InvalidArgument("%s must be an integer", name)
	}
	return n, nil
}

func queryFloat(r *http.Request, name string) (float64, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, serverErrors.InvalidArgument("%s must be a number", name)
	}
	return f, true, nil
}
