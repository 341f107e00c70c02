package rpc

import (
	"context"
	"fmt"
	"net/http"

	"fleet-keeper/internal/logger"
)

// httpClient HTTP客户端实现
type httpClient struct {
	config    *HTTPConfig
	client    *http.Client
	transport *http.Transport
}

/**
 * Create new HTTP client for the fleet-keeper daemon
 * @param {*HTTPConfig} config - HTTP client configuration, nil uses the default address
 * @returns {HTTPClient} HTTP client interface
 * @example
 * client := rpc.NewHTTPClient(rpc.DefaultHTTPConfig(cfg.Server.Address))
 * defer client.Close()
 * resp, err := client.Get("/fleet/api/v1/status", nil)
 */
func NewHTTPClient(config *HTTPConfig) HTTPClient {
	if config == nil {
		config = DefaultHTTPConfig("")
	}
	transport := &http.Transport{}
	return &httpClient{
		config:    config,
		transport: transport,
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
	}
}

/**
 * Send GET request to the daemon
 * @param {string} path - API endpoint path
 * @param {map[string]interface{}} params - Query parameters
 * @returns {*HTTPResponse} Response, non-2xx status codes are reported in Error
 * @returns {error} Error if the daemon cannot be reached
 */
func (c *httpClient) Get(path string, params map[string]interface{}) (*HTTPResponse, error) {
	return c.do(http.MethodGet, path, params, nil)
}

/**
 * Send POST request to the daemon
 * @param {string} path - API endpoint path
 * @param {interface{}} data - Request body data, serialized to JSON
 * @returns {*HTTPResponse} Response, non-2xx status codes are reported in Error
 * @returns {error} Error if the daemon cannot be reached
 */
func (c *httpClient) Post(path string, data interface{}) (*HTTPResponse, error) {
	return c.do(http.MethodPost, path, nil, data)
}

func (c *httpClient) do(method, path string, params map[string]interface{}, data interface{}) (*HTTPResponse, error) {
	url, err := buildURL(c.config.baseURL(), path, params)
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}
	body, err := serializeData(data)
	if err != nil {
		return nil, err
	}

	logger.Debugf("Sending %s request to %s", method, url)

	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	httpResp, err := deserializeResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize response: %w", err)
	}
	return httpResp, nil
}

// Close 关闭空闲连接
func (c *httpClient) Close() error {
	c.client.CloseIdleConnections()
	c.transport.CloseIdleConnections()
	return nil
}
