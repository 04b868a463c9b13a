package client

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	// defaultAuthType is the SAP BO authentication scheme used when none is
	// configured. Others include secLDAP and secWinAD.
	defaultAuthType = "secEnterprise"

	// defaultTimeout bounds a single HTTP request to the BO server.
	defaultTimeout = 30 * time.Second

	// defaultRetryMax is the total number of attempts for transient
	// failures (network errors and 5xx responses).
	defaultRetryMax = 3

	// defaultRetryBackoff is the initial backoff interval between retries.
	defaultRetryBackoff = 250 * time.Millisecond
)

// Config holds SAP BusinessObjects client configuration.
type Config struct {
	// URL is the base URL of the BO RESTful web service, e.g.
	// http://boserver:6405/biprws.
	URL      string
	Username string
	Password string

	// AuthType selects the BO authentication scheme. Defaults to
	// secEnterprise.
	AuthType string

	// SessionTTL, when set, treats a logon token as expired after this
	// duration without waiting for the server to reject it. Zero means the
	// token is trusted until a request fails with an authorization error.
	SessionTTL time.Duration

	Timeout      time.Duration
	RetryMax     int
	RetryBackoff time.Duration

	// HTTPClient overrides the transport, primarily for tests. When nil a
	// client with Timeout is used.
	HTTPClient *http.Client
}

// applyDefaults fills zero-valued fields.
func (c *Config) applyDefaults() {
	c.URL = strings.TrimRight(c.URL, "/")
	if c.AuthType == "" {
		c.AuthType = defaultAuthType
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.RetryMax == 0 {
		c.RetryMax = defaultRetryMax
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = defaultRetryBackoff
	}
}

// validate checks required fields.
func (c *Config) validate() error {
	if c.URL == "" {
		return fmt.Errorf("sapbo url is required")
	}
	if c.Username == "" {
		return fmt.Errorf("sapbo username is required")
	}
	return nil
}
