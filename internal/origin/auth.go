package origin

import (
	"context"
	"crypto/md5"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// sessionFallbackTTL is used when the access token can't be parsed as a JWT
// or carries no exp claim — re-authenticate defensively rather than trust a
// token of unknown lifetime indefinitely.
const sessionFallbackTTL = 5 * time.Minute

// tokenExpiry reads the exp claim out of an Origin access token. Origin signs
// these tokens with a key this adapter doesn't hold, so the token is parsed
// unverified — it's only ever used as a bearer credential sent back to
// Origin, never trusted for authorization decisions here.
func tokenExpiry(accessToken string) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Now().Add(sessionFallbackTTL)
	}
	return claims.ExpiresAt.Time
}

// sessionRequest is the body posted to Origin's session endpoint to mint an
// access token from a long-lived API key pair.
type sessionRequest struct {
	Mode         string `json:"mode"`
	APIKey       string `json:"apiKey"`
	APISecret    string `json:"apiSecret"`
	APIHash      string `json:"apiHash"`
	APITimestamp string `json:"apiTimestamp"`
	UserID       string `json:"userId"`
	OrgID        string `json:"orgId"`
}

type sessionResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	UserID       string `json:"userId"`
	SessionID    string `json:"sessionId"`
}

// apiHash implements the recipe: md5(apiKey + "/" + timestamp + "/" + apiSecret).
func apiHash(apiKey, timestamp, apiSecret string) string {
	sum := md5.Sum([]byte(apiKey + "/" + timestamp + "/" + apiSecret))
	return fmt.Sprintf("%x", sum)
}

// apiTimestamp returns the current instant as UTC ISO-8601 with millisecond
// precision and a trailing "Z", the exact format Origin's hash recipe signs.
func apiTimestamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}

// session authenticates against SessionURL and returns the session tokens
// that authenticate turns into the headers every later Origin call carries.
func (c *Client) session(ctx context.Context) (*sessionResponse, error) {
	ts := apiTimestamp()
	body := sessionRequest{
		Mode:         "key",
		APIKey:       c.config.APIKey,
		APISecret:    c.config.APISecret,
		APIHash:      apiHash(c.config.APIKey, ts, c.config.APISecret),
		APITimestamp: ts,
		UserID:       c.config.UserID,
		OrgID:        c.config.OrgID,
	}

	var resp sessionResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(&body).
		SetSuccessResult(&resp).
		Post(c.config.SessionURL)
	if err != nil {
		return nil, fmt.Errorf("origin session request: %w", err)
	}
	if res.IsErrorState() {
		return nil, fmt.Errorf("origin session request: status %d", res.GetStatusCode())
	}

	return &resp, nil
}

// authenticate performs the session handshake and installs the resulting
// bearer token and Origin-specific headers on the shared client, so every
// subsequent request through c.http carries them automatically.
func (c *Client) authenticate(ctx context.Context) error {
	sess, err := c.session(ctx)
	if err != nil {
		return err
	}

	c.http.SetCommonBearerAuthToken(sess.AccessToken)
	c.http.SetCommonHeader("x-fv-userid", c.config.UserID)
	c.http.SetCommonHeader("x-fv-orgid", c.config.OrgID)
	c.http.SetCommonHeader("x-fv-sessionid", sess.SessionID)

	c.mu.Lock()
	c.authenticated = true
	c.expiresAt = tokenExpiry(sess.AccessToken)
	c.mu.Unlock()

	return nil
}
