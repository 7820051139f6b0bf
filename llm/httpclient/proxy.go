package httpclient

// ProxyType selects how the client resolves an outbound proxy.
type ProxyType string

const (
	// ProxyTypeDisabled bypasses any proxy, including environment settings.
	ProxyTypeDisabled ProxyType = "disabled"

	// ProxyTypeEnvironment honors HTTP_PROXY/HTTPS_PROXY/NO_PROXY.
	ProxyTypeEnvironment ProxyType = "environment"

	// ProxyTypeURL routes through the configured URL.
	ProxyTypeURL ProxyType = "url"
)

// ProxyConfig configures the outbound proxy for a client. Credentials are
// injected into the proxy URL when set.
type ProxyConfig struct {
	Type     ProxyType `json:"type"`
	URL      string    `json:"url,omitempty"`
	Username string    `json:"username,omitempty"`
	Password string    `json:"password,omitempty"`
}
