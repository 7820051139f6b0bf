package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zhenzou/executors"
	"golang.org/x/sync/singleflight"

	"github.com/ronakrm/promptrelay/internal/log"
	"github.com/ronakrm/promptrelay/llm/httpclient"
)

// TokenGetter supplies valid OAuth credentials on demand. Implementations
// refresh expired credentials before returning them.
type TokenGetter interface {
	Get(ctx context.Context) (*OAuthCredentials, error)
}

type OAuthUrls struct {
	AuthorizeUrl string
	TokenUrl     string
}

// TokenProvider manages OAuth2 credentials for a transformer instance.
// Each transformer has its own provider, so we can keep the credentials in memory.
type TokenProvider struct {
	httpClient  *httpclient.HttpClient
	oauthUrls   OAuthUrls
	strategy    ExchangeStrategy
	sf          singleflight.Group
	mu          sync.RWMutex
	creds       *OAuthCredentials
	onRefreshed func(ctx context.Context, refreshed *OAuthCredentials) error

	refreshMu       sync.Mutex
	refreshCancel   executors.CancelFunc
	refreshExecutor executors.ScheduledExecutor
}

var _ TokenGetter = (*TokenProvider)(nil)

type TokenProviderParams struct {
	Credentials *OAuthCredentials
	// HTTPClient should be pre-configured with proxy settings if needed
	HTTPClient *httpclient.HttpClient
	OAuthUrls  OAuthUrls
	// ExchangeStrategy builds the token endpoint requests. Defaults to the
	// standard form-encoded OAuth2 format.
	ExchangeStrategy ExchangeStrategy
	UserAgent        string
	OnRefreshed      func(ctx context.Context, refreshed *OAuthCredentials) error
}

type ExchangeParams struct {
	Code         string
	CodeVerifier string
	ClientID     string
	RedirectURI  string
	State        string
}

func NewTokenProvider(params TokenProviderParams) *TokenProvider {
	strategy := params.ExchangeStrategy
	if strategy == nil {
		strategy = &FormEncodedStrategy{UserAgent: params.UserAgent}
	}

	return &TokenProvider{
		httpClient:  params.HTTPClient,
		oauthUrls:   params.OAuthUrls,
		strategy:    strategy,
		creds:       params.Credentials,
		onRefreshed: params.OnRefreshed,
	}
}

// Exchange performs OAuth2 authorization_code exchange and returns credentials.
func (p *TokenProvider) Exchange(ctx context.Context, params ExchangeParams) (*OAuthCredentials, error) {
	if p.httpClient == nil {
		return nil, errors.New("http client is nil")
	}

	if p.oauthUrls.TokenUrl == "" {
		return nil, errors.New("token URL is empty")
	}

	if params.Code == "" {
		return nil, errors.New("code is empty")
	}

	if params.CodeVerifier == "" {
		return nil, errors.New("code_verifier is empty")
	}

	if params.ClientID == "" {
		return nil, errors.New("client_id is empty")
	}

	if params.RedirectURI == "" {
		return nil, errors.New("redirect_uri is empty")
	}

	req, err := p.strategy.BuildExchangeRequest(params, p.oauthUrls.TokenUrl)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(resp.Body, &tokenResp); err != nil {
		return nil, fmt.Errorf("decode exchange response: %w", err)
	}

	if tokenResp.AccessToken == "" || tokenResp.RefreshToken == "" {
		var tokenErr TokenError
		if err := json.Unmarshal(resp.Body, &tokenErr); err == nil && tokenErr.Error != "" {
			return nil, fmt.Errorf("token exchange failed: %s - %s", tokenErr.Error, tokenErr.ErrorDescription)
		}

		return nil, errors.New("token exchange response missing required fields")
	}

	now := time.Now()
	creds := &OAuthCredentials{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		IDToken:      tokenResp.IDToken,
		ClientID:     params.ClientID,
		TokenType:    tokenResp.TokenType,
	}

	if tokenResp.Scope != "" {
		creds.Scopes = strings.Fields(tokenResp.Scope)
	}

	if tokenResp.ExpiresIn > 0 {
		creds.ExpiresAt = now.Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	}

	p.mu.Lock()
	p.creds = creds
	p.mu.Unlock()

	return creds, nil
}

// Get returns valid OAuth2 credentials.
// It refreshes them if expired.
func (p *TokenProvider) Get(ctx context.Context) (*OAuthCredentials, error) {
	p.mu.RLock()
	creds := p.creds
	p.mu.RUnlock()

	if creds == nil {
		return nil, fmt.Errorf("credentials is nil")
	}

	now := time.Now()
	if !creds.IsExpired(now) {
		return creds, nil
	}

	// Refresh with singleflight to avoid stampede inside the same transformer.
	v, err, _ := p.sf.Do("refresh", func() (any, error) {
		p.mu.RLock()
		current := p.creds
		onRefreshed := p.onRefreshed
		p.mu.RUnlock()

		if current == nil {
			return nil, fmt.Errorf("credentials is nil")
		}

		if !current.IsExpired(time.Now()) {
			return current, nil
		}

		fresh, err := p.refresh(ctx, current)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		p.creds = fresh
		p.mu.Unlock()

		if onRefreshed != nil {
			if err := onRefreshed(ctx, fresh); err != nil {
				log.Warn(ctx, "failed to persist refreshed credentials", log.Cause(err))
			}
		}

		return fresh, nil
	})
	if err != nil {
		return nil, err
	}

	fresh, ok := v.(*OAuthCredentials)
	if !ok {
		return nil, fmt.Errorf("singleflight returned unexpected type %T", v)
	}

	return fresh, nil
}

// refresh performs the OAuth2 token refresh flow.
func (p *TokenProvider) refresh(ctx context.Context, creds *OAuthCredentials) (*OAuthCredentials, error) {
	req, err := p.strategy.BuildRefreshRequest(creds, p.oauthUrls.TokenUrl)
	if err != nil {
		return nil, err
	}

	if p.oauthUrls.TokenUrl == "" {
		return nil, errors.New("token URL is empty")
	}

	resp, err := p.httpClient.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(resp.Body, &tokenResp); err != nil {
		return nil, fmt.Errorf("decode refresh response: %w", err)
	}

	if tokenResp.AccessToken == "" {
		var tokenErr TokenError
		if err := json.Unmarshal(resp.Body, &tokenErr); err == nil && tokenErr.Error != "" {
			return nil, fmt.Errorf("token refresh failed: %s - %s", tokenErr.Error, tokenErr.ErrorDescription)
		}

		return nil, errors.New("token refresh response missing access_token")
	}

	now := time.Now()

	updated := *creds
	updated.AccessToken = tokenResp.AccessToken
	updated.TokenType = tokenResp.TokenType

	if tokenResp.RefreshToken != "" {
		updated.RefreshToken = tokenResp.RefreshToken
	}

	if tokenResp.IDToken != "" {
		updated.IDToken = tokenResp.IDToken
	}

	if tokenResp.Scope != "" {
		updated.Scopes = strings.Fields(tokenResp.Scope)
	}

	if tokenResp.ExpiresIn > 0 {
		updated.ExpiresAt = now.Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	}

	log.Debug(ctx, "oauth token refreshed", log.Time("expires_at", updated.ExpiresAt))

	return &updated, nil
}
