// Package proxy relays media requests (frame images, thumbnails, result
// artifacts) to the analyzer origin so the browser never talks to it
// directly. Failures come back in the canonical error envelope.
package proxy

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/playsight/api/internal/client"
	"github.com/playsight/api/internal/config"
	"github.com/playsight/api/pkg/response"
)

// Hop-by-hop headers never forwarded in either direction. host and
// content-length are recomputed by the transport.
var hopByHop = map[string]struct{}{
	"connection":          {},
	"keep-alive":          {},
	"proxy-authenticate":  {},
	"proxy-authorization": {},
	"te":                  {},
	"trailers":            {},
	"transfer-encoding":   {},
	"upgrade":             {},
	"host":                {},
	"content-length":      {},
}

type Forwarder struct {
	httpClient *http.Client
	baseURL    string
}

func NewForwarder(cfg *config.AnalyzerConfig) *Forwarder {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Forwarder{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
	}
}

// Relay returns a Fiber handler that forwards the inbound request to the
// analyzer origin under upstreamPrefix. The wildcard path segment and query
// string are carried over; the method can be overridden via X-Proxy-Method.
func (f *Forwarder) Relay(upstreamPrefix string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if f.baseURL == "" {
			return response.ConfigError(c, "analyzer base URL is not configured")
		}

		target := f.baseURL + upstreamPrefix + "/" + c.Params("*")
		if qs := string(c.Request().URI().QueryString()); qs != "" {
			target += "?" + qs
		}

		method := c.Method()
		if override := c.Get("X-Proxy-Method"); override != "" {
			method = strings.ToUpper(override)
		}

		// The body is buffered whole: the runtime gives no guarantee a
		// streaming body survives the hop.
		var bodyReader io.Reader
		if body := c.Body(); len(body) > 0 {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(c.Context(), method, target, bodyReader)
		if err != nil {
			return response.Error(c, fiber.StatusBadGateway, response.CodeProxyError, err.Error(), "")
		}

		c.Request().Header.VisitAll(func(key, value []byte) {
			name := strings.ToLower(string(key))
			if _, skip := hopByHop[name]; skip {
				return
			}
			if name == "x-proxy-method" {
				return
			}
			req.Header.Add(string(key), string(value))
		})

		resp, err := f.httpClient.Do(req)
		if err != nil {
			log.Printf("[Proxy] ✗ %s %s — %v", method, target, err)
			return response.Error(c, fiber.StatusBadGateway, response.CodeProxyError,
				"failed to reach analyzer origin", "")
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return response.Error(c, fiber.StatusBadGateway, response.CodeProxyError,
				"failed to read analyzer response", "")
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			decoded := client.DecodeError(resp.StatusCode, respBody, resp.Header)
			code := decoded.Code
			if code == "" {
				code = response.CodeUpstreamError
			}
			return response.Error(c, resp.StatusCode, code, decoded.UserMessage(), decoded.RequestID)
		}

		if ct := resp.Header.Get(fiber.HeaderContentType); ct != "" {
			c.Set(fiber.HeaderContentType, ct)
		}
		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.Status(resp.StatusCode).Send(respBody)
	}
}
