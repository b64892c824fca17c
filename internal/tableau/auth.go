// Package tableau is a thin client for the Tableau Server REST API. It
// implements only the calls this tool needs: sign-in/sign-out and the
// paginated list endpoints, plus a handful of per-item detail fetches.
package tableau

import (
	"context"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/ppiankov/tabspectre/internal/apierr"
)

// AuthMethod selects how credentials are presented at sign-in.
type AuthMethod string

const (
	AuthPAT         AuthMethod = "pat"
	AuthCredentials AuthMethod = "credentials"
	AuthJWT         AuthMethod = "jwt"
)

// envPrefix is the namespace for all credential environment variables.
const envPrefix = "TABLEAU_"

// Credentials describes a server endpoint and one authentication method.
// Exactly the fields for the selected method are expected to be set.
type Credentials struct {
	ServerURL string
	SiteID    string // site content URL, empty for the default site
	Method    AuthMethod

	TokenName  string
	TokenValue string
	Username   string
	Password   string
	JWT        string
}

// Validate checks that the fields required by the selected method are present.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.ServerURL) == "" {
		return apierr.New(apierr.KindConfiguration, "server URL is required")
	}

	switch c.Method {
	case AuthPAT:
		if c.TokenName == "" || c.TokenValue == "" {
			return apierr.New(apierr.KindAuthentication, "token name and value required for PAT authentication")
		}
	case AuthCredentials:
		if c.Username == "" || c.Password == "" {
			return apierr.New(apierr.KindAuthentication, "username and password required for credential authentication")
		}
	case AuthJWT:
		if c.JWT == "" {
			return apierr.New(apierr.KindAuthentication, "JWT token required for JWT authentication")
		}
	default:
		return apierr.New(apierr.KindAuthentication, "unsupported authentication method: %s", c.Method)
	}
	return nil
}

// CredentialsFromEnv builds credentials from TABLEAU_* environment
// variables. Precedence: the PAT pair first, then username/password, then
// JWT; the first complete set wins.
func CredentialsFromEnv() (Credentials, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return Credentials{}, apierr.Wrap(apierr.KindConfiguration, err, "failed to read environment")
	}

	serverURL := strings.TrimSpace(k.String("server_url"))
	if serverURL == "" {
		return Credentials{}, apierr.New(apierr.KindConfiguration, "TABLEAU_SERVER_URL environment variable required")
	}

	creds := Credentials{
		ServerURL: serverURL,
		SiteID:    strings.TrimSpace(k.String("site_id")),
	}

	if name, value := k.String("token_name"), k.String("token_value"); name != "" && value != "" {
		creds.Method = AuthPAT
		creds.TokenName = name
		creds.TokenValue = value
		return creds, nil
	}

	if user, pass := k.String("username"), k.String("password"); user != "" && pass != "" {
		creds.Method = AuthCredentials
		creds.Username = user
		creds.Password = pass
		return creds, nil
	}

	if jwt := k.String("jwt_token"); jwt != "" {
		creds.Method = AuthJWT
		creds.JWT = jwt
		return creds, nil
	}

	return Credentials{}, apierr.New(apierr.KindConfiguration, "no valid authentication credentials found in environment variables")
}

// Session is a live authenticated REST session.
type Session struct {
	Token          string
	SiteLUID       string
	SiteContentURL string
	UserID         string
}

// Authenticator performs sign-in and sign-out against the REST API.
type Authenticator struct {
	creds Credentials
	rest  *restClient
}

func newAuthenticator(creds Credentials, rest *restClient) *Authenticator {
	return &Authenticator{creds: creds, rest: rest}
}

type signInRequest struct {
	Credentials signInCredentials `json:"credentials"`
}

type signInCredentials struct {
	Name                      string     `json:"name,omitempty"`
	Password                  string     `json:"password,omitempty"`
	PersonalAccessTokenName   string     `json:"personalAccessTokenName,omitempty"`
	PersonalAccessTokenSecret string     `json:"personalAccessTokenSecret,omitempty"`
	JWT                       string     `json:"jwt,omitempty"`
	Site                      signInSite `json:"site"`
}

type signInSite struct {
	ContentURL string `json:"contentUrl"`
}

type signInResponse struct {
	Credentials struct {
		Token string `json:"token"`
		Site  struct {
			ID         string `json:"id"`
			ContentURL string `json:"contentUrl"`
		} `json:"site"`
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	} `json:"credentials"`
}

// SignIn authenticates and returns a live session. Failures are reported
// as authentication errors with the underlying cause preserved; there is
// no retry here.
func (a *Authenticator) SignIn(ctx context.Context) (*Session, error) {
	if err := a.creds.Validate(); err != nil {
		return nil, err
	}

	req := signInRequest{
		Credentials: signInCredentials{
			Site: signInSite{ContentURL: a.creds.SiteID},
		},
	}
	switch a.creds.Method {
	case AuthPAT:
		req.Credentials.PersonalAccessTokenName = a.creds.TokenName
		req.Credentials.PersonalAccessTokenSecret = a.creds.TokenValue
	case AuthCredentials:
		req.Credentials.Name = a.creds.Username
		req.Credentials.Password = a.creds.Password
	case AuthJWT:
		req.Credentials.JWT = a.creds.JWT
	}

	var resp signInResponse
	if err := a.rest.do(ctx, "POST", "auth/signin", "", req, &resp); err != nil {
		return nil, apierr.Wrap(apierr.KindAuthentication, err, "authentication failed")
	}

	return &Session{
		Token:          resp.Credentials.Token,
		SiteLUID:       resp.Credentials.Site.ID,
		SiteContentURL: resp.Credentials.Site.ContentURL,
		UserID:         resp.Credentials.User.ID,
	}, nil
}

// SignOut invalidates the session. Calling it without a live session is a
// no-op.
func (a *Authenticator) SignOut(ctx context.Context, session *Session) error {
	if session == nil || session.Token == "" {
		return nil
	}
	if err := a.rest.do(ctx, "POST", "auth/signout", session.Token, nil, nil); err != nil {
		return apierr.Wrap(apierr.KindAuthentication, err, "sign out failed")
	}
	session.Token = ""
	return nil
}
