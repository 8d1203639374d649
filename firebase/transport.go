package firebase

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/klipach/dapper/log"
)

const apiKeyParam = "key"

// loggingRoundTripper logs Identity Toolkit calls. Bodies carry passwords
// and are never logged; the API key is masked.
type loggingRoundTripper struct {
	rt http.RoundTripper
}

func newToolkitClient() *http.Client {
	return &http.Client{
		Transport: &loggingRoundTripper{rt: http.DefaultTransport},
		Timeout:   30 * time.Second,
	}
}

func (lrt *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	logger := log.LoggerFromContext(req.Context())
	start := time.Now()
	resp, err := lrt.rt.RoundTrip(req)
	attrs := []any{
		slog.String("url", redactedURL(req)),
		slog.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		logger.Warn("identity toolkit request failed", append(attrs, slog.String("errorMsg", err.Error()))...)
		return nil, err
	}
	logger.Debug("identity toolkit request", append(attrs, slog.Int("status", resp.StatusCode))...)
	return resp, nil
}

func redactedURL(req *http.Request) string {
	u := *req.URL
	q := u.Query()
	if q.Has(apiKeyParam) {
		q.Set(apiKeyParam, "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
