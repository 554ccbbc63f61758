package acquire

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gear6io/cnpj-pipeline/pipeline/config"
	"github.com/gear6io/cnpj-pipeline/pkg/errors"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// newHTTPClient builds a client with a connect timeout and a response
// header timeout. There is no overall deadline: archives can take a long
// time to stream, and stalls are caught by idleTimeoutReader instead.
func newHTTPClient(connectTimeout, readTimeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   connectTimeout,
			ResponseHeaderTimeout: readTimeout,
			MaxIdleConnsPerHost:   8,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}

// newRetryingClient wraps client for listing requests: a fixed number of
// attempts with a constant delay between them.
func newRetryingClient(client *http.Client, attempts int, delay time.Duration, logger zerolog.Logger) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = client
	rc.RetryMax = max(attempts-1, 0)
	rc.RetryWaitMin = delay
	rc.RetryWaitMax = delay
	rc.Backoff = func(wait, _ time.Duration, _ int, _ *http.Response) time.Duration {
		return wait
	}
	rc.Logger = leveledLogger{logger: logger}
	return rc
}

// NewRetryingClient returns a client for small one-shot downloads, built
// from the download timeout and retry settings
func NewRetryingClient(cfg *config.Config, logger zerolog.Logger) *retryablehttp.Client {
	httpClient := newHTTPClient(cfg.Download.ConnectTimeout, cfg.Download.ReadTimeout)
	return newRetryingClient(httpClient, cfg.Download.RetryAttempts, cfg.Download.RetryDelay, logger)
}

// leveledLogger adapts zerolog to retryablehttp.LeveledLogger
type leveledLogger struct {
	logger zerolog.Logger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.event(l.logger.Error(), msg, kv) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.event(l.logger.Debug(), msg, kv) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.event(l.logger.Trace(), msg, kv) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.event(l.logger.Warn(), msg, kv) }

func (l leveledLogger) event(e *zerolog.Event, msg string, kv []interface{}) {
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			e = e.Interface(k, kv[i+1])
		}
	}
	e.Msg(msg)
}

// idleTimeoutReader cancels the request when no bytes arrive for timeout
type idleTimeoutReader struct {
	r        io.Reader
	timeout  time.Duration
	timer    *time.Timer
	timedOut atomic.Bool
}

func newIdleTimeoutReader(r io.Reader, timeout time.Duration, cancel context.CancelFunc) *idleTimeoutReader {
	ir := &idleTimeoutReader{r: r, timeout: timeout}
	ir.timer = time.AfterFunc(timeout, func() {
		ir.timedOut.Store(true)
		cancel()
	})
	return ir
}

func (ir *idleTimeoutReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if n > 0 && !ir.timedOut.Load() {
		ir.timer.Reset(ir.timeout)
	}
	if err != nil && err != io.EOF && ir.timedOut.Load() {
		return n, errors.New(ErrIdleTimeout, "no data received within read timeout", err).
			AddContext("timeout", ir.timeout.String())
	}
	return n, err
}

// Stop releases the timer
func (ir *idleTimeoutReader) Stop() {
	ir.timer.Stop()
}
