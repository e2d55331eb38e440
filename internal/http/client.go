package http

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/handiism/halftunes/internal/logging"
)

// DefaultUserAgent is sent when Config.UserAgent is empty.
const DefaultUserAgent = "HalfTunes"

// Proxy modes understood by Config.ProxyType.
const (
	ProxyNone   = "none"
	ProxySystem = "system"
	ProxyManual = "manual"
)

// Config describes how the shared transport is built.
type Config struct {
	// Timeout bounds a whole request, body included. Zero means no limit,
	// which is what long transfers need.
	Timeout time.Duration

	UserAgent string

	ProxyType    string
	ProxyAddress string
	ProxyPort    int
}

// Client wraps HTTP operations with the application's User-Agent and proxy
// configuration.
//
// Client is used for small requests such as cover art. Track transfers go
// through the transfer engine, which receives Standard() as its client.
//
// Example usage:
//
//	client := NewClient(Config{Timeout: 60 * time.Second})
//
//	artwork, err := client.DownloadBytes(ctx, "https://img.example.com/a.jpg")
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// NewClient creates a client from cfg.
func NewClient(cfg Config) *Client {
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: newTransport(cfg),
		},
		userAgent: ua,
	}
}

func newTransport(cfg Config) *http.Transport {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}

	log := logging.Get("http")
	switch cfg.ProxyType {
	case ProxyNone:
	case ProxyManual:
		proxyURL, err := manualProxyURL(cfg.ProxyAddress, cfg.ProxyPort)
		if err != nil {
			log.Error().Err(err).Str("proxy", cfg.ProxyAddress).Msg("Invalid proxy, proceeding without proxy")
			break
		}
		transport.Proxy = http.ProxyURL(proxyURL)
		log.Debug().Str("proxy", proxyURL.String()).Msg("Using proxy for connections")
	default:
		transport.Proxy = http.ProxyFromEnvironment
	}
	return transport
}

// manualProxyURL builds the proxy URL from an address that may or may not
// carry a scheme.
func manualProxyURL(address string, port int) (*url.URL, error) {
	if address == "" {
		return nil, fmt.Errorf("manual proxy without address")
	}
	u, err := url.Parse(address)
	if err != nil || u.Host == "" {
		u, err = url.Parse("http://" + address)
		if err != nil {
			return nil, err
		}
	}
	if port > 0 {
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(port))
	}
	return u, nil
}

// Standard returns the underlying *http.Client.
func (c *Client) Standard() *http.Client {
	return c.httpClient
}

// UserAgent returns the User-Agent sent with every request.
func (c *Client) UserAgent() string {
	return c.userAgent
}

// Get performs a GET request and returns the response body as bytes.
//
// Returns an error if the request fails, the response status is not
// 200 OK, or reading the body fails.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	return io.ReadAll(resp.Body)
}

// GetString performs a GET request and returns the response body as a string.
func (c *Client) GetString(ctx context.Context, url string) (string, error) {
	body, err := c.Get(ctx, url)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// GetFileSize returns the size of a file at the given URL via HEAD request.
//
// Example:
//
//	size, err := client.GetFileSize(ctx, previewURL)
//	fmt.Printf("File is %d bytes\n", size)
func (c *Client) GetFileSize(ctx context.Context, url string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	if resp.ContentLength < 0 {
		return 0, fmt.Errorf("no Content-Length header for %s", url)
	}

	return resp.ContentLength, nil
}

// DownloadBytes downloads a small file and returns the bytes in memory.
func (c *Client) DownloadBytes(ctx context.Context, url string) ([]byte, error) {
	return c.Get(ctx, url)
}
