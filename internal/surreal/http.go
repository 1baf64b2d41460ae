package surreal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"resty.dev/v3"
)

const (
	healthPath  = "/health"
	versionPath = "/version"
)

type ClientConfig struct {
	TransportSettings *resty.TransportSettings

	ResponseMiddlewares []resty.ResponseMiddleware
	RequestMiddlewares  []resty.RequestMiddleware
}

var DefaultConfig = &ClientConfig{
	TransportSettings: &resty.TransportSettings{
		DialerTimeout:         2 * time.Second,
		DialerKeepAlive:       5 * time.Second,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   2 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 2 * time.Second,
	},
}

// HTTPClient talks to the plain HTTP endpoints of the database.
type HTTPClient struct {
	client *resty.Client
}

func NewHTTPClient(baseURL string, config *ClientConfig) *HTTPClient {
	if config == nil {
		config = DefaultConfig
	}

	client := resty.NewWithTransportSettings(config.TransportSettings).
		SetBaseURL(strings.TrimRight(baseURL, "/"))

	for _, m := range config.RequestMiddlewares {
		client.AddRequestMiddleware(m)
	}
	for _, m := range config.ResponseMiddlewares {
		client.AddResponseMiddleware(m)
	}

	return &HTTPClient{client: client}
}

func (c *HTTPClient) Close() error {
	return c.client.Close()
}

func (c *HTTPClient) r(ctx context.Context) *resty.Request {
	return c.client.R().WithContext(ctx)
}

// Health returns nil when the database and its storage are reachable.
func (c *HTTPClient) Health(ctx context.Context) error {
	res, err := c.r(ctx).Get(healthPath)
	if err != nil {
		return err
	}
	if res.IsError() {
		return &Error{Code: res.StatusCode(), Message: fmt.Sprintf("health check failed: %s", res.Status())}
	}
	return nil
}

func (c *HTTPClient) Version(ctx context.Context) (string, error) {
	res, err := c.r(ctx).Get(versionPath)
	if err != nil {
		return "", err
	}
	if res.IsError() {
		return "", &Error{Code: res.StatusCode(), Message: res.Status()}
	}
	return strings.TrimSpace(res.String()), nil
}
