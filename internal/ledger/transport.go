// internal/ledger/transport.go
package ledger

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/rovshanmuradov/dogenode/internal/logging"
	"go.uber.org/zap"
)

const maxLoggedBody = 2000

// LoggingTransport logs every request and response at debug level.
type LoggingTransport struct {
	Transport http.RoundTripper
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	logger := logging.With(zap.String("method", req.Method), zap.String("url", req.URL.String()))

	if req.Body != nil && req.GetBody != nil {
		if body, err := req.GetBody(); err == nil {
			data, _ := io.ReadAll(body)
			logger.Debug("Ledger request", zap.ByteString("body", truncate(data)))
		}
	}

	transport := t.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	start := time.Now()
	resp, err := transport.RoundTrip(req)
	duration := time.Since(start)
	if err != nil {
		logger.Debug("Ledger request failed", zap.Duration("duration", duration), zap.Error(err))
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))

	logger.Debug("Ledger response",
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", duration),
		zap.ByteString("body", truncate(data)))
	return resp, nil
}

func truncate(data []byte) []byte {
	if len(data) > maxLoggedBody {
		return append(data[:maxLoggedBody:maxLoggedBody], "...(truncated)"...)
	}
	return data
}
