package auth

import "time"

// Default tuning values. They match the limits the backend expects from
// browser clients.
const (
	DefaultRequestTimeout    = 30 * time.Second
	DefaultProfileTimeout    = 10 * time.Second
	DefaultMaxRetries        = 3
	DefaultRetryDelay        = time.Second
	DefaultMaxContentLength  = 10 << 20
	DefaultMaxRedirects      = 5
	DefaultGateCapacity      = 3
	DefaultCSRFCookieName    = "csrftoken"
	DefaultCSRFHeaderName    = "X-CSRF-Token"
	DefaultIdleTimeout       = 24 * time.Hour
	DefaultIdleCheckInterval = 5 * time.Minute
)

// SimpleConfig is a plain value implementation of Config. Zero fields
// fall back to the package defaults.
type SimpleConfig struct {
	BaseURL           string
	RequestTimeout    time.Duration
	ProfileTimeout    time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
	MaxContentLength  int64
	MaxRedirects      int
	GateCapacity      int
	CSRFCookieName    string
	CSRFHeaderName    string
	IdleTimeout       time.Duration
	IdleCheckInterval time.Duration
}

var _ Config = SimpleConfig{}

func (c SimpleConfig) GetBaseURL() string { return c.BaseURL }

func (c SimpleConfig) GetRequestTimeout() time.Duration {
	if c.RequestTimeout <= 0 {
		return DefaultRequestTimeout
	}
	return c.RequestTimeout
}

func (c SimpleConfig) GetProfileTimeout() time.Duration {
	if c.ProfileTimeout <= 0 {
		return DefaultProfileTimeout
	}
	return c.ProfileTimeout
}

func (c SimpleConfig) GetMaxRetries() int {
	if c.MaxRetries <= 0 {
		return DefaultMaxRetries
	}
	return c.MaxRetries
}

func (c SimpleConfig) GetRetryDelay() time.Duration {
	if c.RetryDelay <= 0 {
		return DefaultRetryDelay
	}
	return c.RetryDelay
}

func (c SimpleConfig) GetMaxContentLength() int64 {
	if c.MaxContentLength <= 0 {
		return DefaultMaxContentLength
	}
	return c.MaxContentLength
}

func (c SimpleConfig) GetMaxRedirects() int {
	if c.MaxRedirects <= 0 {
		return DefaultMaxRedirects
	}
	return c.MaxRedirects
}

func (c SimpleConfig) GetGateCapacity() int {
	if c.GateCapacity <= 0 {
		return DefaultGateCapacity
	}
	return c.GateCapacity
}

func (c SimpleConfig) GetCSRFCookieName() string {
	if c.CSRFCookieName == "" {
		return DefaultCSRFCookieName
	}
	return c.CSRFCookieName
}

func (c SimpleConfig) GetCSRFHeaderName() string {
	if c.CSRFHeaderName == "" {
		return DefaultCSRFHeaderName
	}
	return c.CSRFHeaderName
}

func (c SimpleConfig) GetIdleTimeout() time.Duration {
	if c.IdleTimeout <= 0 {
		return DefaultIdleTimeout
	}
	return c.IdleTimeout
}

func (c SimpleConfig) GetIdleCheckInterval() time.Duration {
	if c.IdleCheckInterval <= 0 {
		return DefaultIdleCheckInterval
	}
	return c.IdleCheckInterval
}
