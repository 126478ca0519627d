package network

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"rank-observer/src/helpers"
	"rank-observer/src/interfaces"
	"rank-observer/src/logger"
	"rank-observer/src/models"
)

// Header sets sent by a desktop browser. The API refuses requests that do
// not carry the cookies handed out by the landing page.
var (
	bootstrapHeaders = map[string]string{
		"accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"accept-language": "en-GB,en-US;q=0.9,en;q=0.8",
	}
	apiHeaders = map[string]string{
		"accept":             "*/*",
		"accept-language":    "en-GB,en-US;q=0.9,en;q=0.8",
		"sec-ch-ua":          `"Not/A)Brand";v="8", "Chromium";v="126", "Google Chrome";v="126"`,
		"sec-ch-ua-mobile":   "?0",
		"sec-ch-ua-platform": `"macOS"`,
		"sec-fetch-dest":     "empty",
		"sec-fetch-mode":     "cors",
		"sec-fetch-site":     "same-origin",
	}
)

// -----------------------------------------------------------------------------

// SessionManager is a cookie session against one site: it visits the landing
// page once for cookies, then performs API calls with browser headers.
type SessionManager struct {
	Config       *models.MConfig
	ProxyManager interfaces.IProxyManager
	Client       *http.Client
	Logger       *logger.Logger
	RetryDelay   time.Duration

	jar          http.CookieJar
	bootstrapped bool
	mu           sync.Mutex
}

// -----------------------------------------------------------------------------

func NewSessionManager(cfg *models.MConfig, log *logger.Logger) *SessionManager {
	var proxies []string
	if cfg.Network.Enabled {
		proxies = cfg.Network.Proxies
	}

	jar, _ := cookiejar.New(nil)
	nm := &SessionManager{
		Config:       cfg,
		ProxyManager: helpers.NewProxyManager(proxies, cfg.Network.UserAgent, log),
		Logger:       log,
		RetryDelay:   time.Second,
		jar:          jar,
	}
	nm.Client = nm.createClient()
	return nm
}

// -----------------------------------------------------------------------------

func (nm *SessionManager) createClient() *http.Client {
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}

	if nm.ProxyManager.HasProxies() {
		proxyStr, err := nm.ProxyManager.GetCurrentProxy()
		if err == nil && proxyStr != "" {
			proxyURL, err := url.Parse(proxyStr)
			if err == nil {
				transport.Proxy = http.ProxyURL(proxyURL)
			}
		}
	}

	return &http.Client{
		Transport: transport,
		Jar:       nm.jar,
		Timeout:   time.Duration(nm.Config.Network.RequestTimeout) * time.Second,
	}
}

// -----------------------------------------------------------------------------

func (nm *SessionManager) rotateProxy() {
	if !nm.ProxyManager.HasProxies() {
		return
	}

	nm.ProxyManager.RotateProxy()
	nm.Client = nm.createClient()
}

// -----------------------------------------------------------------------------

// Bootstrap visits the landing page to collect session cookies.
func (nm *SessionManager) Bootstrap(ctx context.Context) error {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	return nm.bootstrap(ctx)
}

func (nm *SessionManager) bootstrap(ctx context.Context) error {
	target := nm.resolve(nm.Config.Network.BootstrapPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	nm.setHeaders(req, bootstrapHeaders)

	resp, err := nm.Client.Do(req)
	if err != nil {
		return helpers.NewNetworkError("session bootstrap failed", 0, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return helpers.NewNetworkError(fmt.Sprintf("session bootstrap returned status %d", resp.StatusCode), resp.StatusCode, nil)
	}

	nm.bootstrapped = true
	nm.Logger.Debug("[Network] Session bootstrapped from %s", target)
	return nil
}

// -----------------------------------------------------------------------------

// Get performs an authenticated GET with retries, re-bootstrapping the session
// when the site rejects its cookies.
func (nm *SessionManager) Get(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	reqURL, err := url.Parse(nm.resolve(path))
	if err != nil {
		return nil, err
	}
	q := reqURL.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	reqURL.RawQuery = q.Encode()
	finalURL := reqURL.String()

	maxRetries := nm.Config.Network.MaxRetries
	var lastErr error
	lastStatus := 0

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			delay := nm.RetryDelay * time.Duration(1<<(i-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if !nm.bootstrapped {
			if err := nm.bootstrap(ctx); err != nil {
				lastErr = err
				nm.Logger.Info("[Network] Bootstrap failed (attempt %d/%d): %v", i+1, maxRetries+1, err)
				nm.rotateProxy()
				continue
			}
		}

		body, status, err := nm.do(ctx, finalURL)
		if err == nil {
			return body, nil
		}
		lastErr, lastStatus = err, status

		switch status {
		case http.StatusUnauthorized, http.StatusForbidden:
			nm.Logger.Info("[Network] Session rejected (%d). Refreshing cookies.", status)
			nm.bootstrapped = false
			nm.rotateProxy()
		case http.StatusTooManyRequests:
			nm.Logger.Info("[Network] Rate limited. Rotating proxy.")
			nm.rotateProxy()
		default:
			nm.Logger.Info("[Network] Request failed (attempt %d/%d): %v", i+1, maxRetries+1, err)
		}
	}

	// Blocked through every proxy we had, try a fresh list for the next tick
	if nm.Config.Network.Enabled {
		if count, err := nm.ProxyManager.RefreshProxies(); err != nil {
			nm.Logger.Error("[Network] Failed to refresh proxies: %v", err)
		} else {
			nm.Logger.Info("[Network] Refreshed %d proxies", count)
			nm.Client = nm.createClient()
		}
	}

	return nil, helpers.NewNetworkError(fmt.Sprintf("GET %s failed after %d attempts", path, maxRetries+1), lastStatus, lastErr)
}

// -----------------------------------------------------------------------------

func (nm *SessionManager) do(ctx context.Context, target string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, err
	}
	nm.setHeaders(req, apiHeaders)
	if nm.Config.Network.RefererPath != "" {
		req.Header.Set("referer", nm.resolve(nm.Config.Network.RefererPath))
	}

	resp, err := nm.Client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, fmt.Errorf("bad status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// -----------------------------------------------------------------------------

func (nm *SessionManager) setHeaders(req *http.Request, headers map[string]string) {
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("user-agent", nm.ProxyManager.GetUserAgent())
}

// -----------------------------------------------------------------------------

func (nm *SessionManager) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	base := strings.TrimRight(nm.Config.Network.BaseURL, "/")
	if path == "" {
		return base + "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
