package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// GitHubConfig configures account linking
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	StateTTL     time.Duration
	// Endpoint overrides the GitHub endpoints (GitHub Enterprise, tests)
	Endpoint *oauth2.Endpoint
}

// GitHubLinker links spkrepo accounts to GitHub accounts with the OAuth2
// authorization code flow.
type GitHubLinker struct {
	oauth    *oauth2.Config
	issuer   *TokenIssuer
	stateTTL time.Duration
}

// NewGitHubLinker creates a linker. The issuer signs the state parameter.
func NewGitHubLinker(cfg GitHubConfig, issuer *TokenIssuer) (*GitHubLinker, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("github client id and secret are required")
	}
	endpoint := github.Endpoint
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}
	ttl := cfg.StateTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &GitHubLinker{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
		issuer:   issuer,
		stateTTL: ttl,
	}, nil
}

// AuthCodeURL returns the GitHub authorization URL for userID.
func (g *GitHubLinker) AuthCodeURL(userID int64) (string, error) {
	state, err := g.issuer.IssueState(userID, g.stateTTL)
	if err != nil {
		return "", err
	}
	return g.oauth.AuthCodeURL(state), nil
}

// Exchange trades code for a GitHub access token on behalf of userID. The
// state must have been issued for the same user.
func (g *GitHubLinker) Exchange(ctx context.Context, userID int64, state, code string) (string, error) {
	stateUser, err := g.issuer.ParseState(state)
	if err != nil {
		return "", err
	}
	if stateUser != userID {
		return "", fmt.Errorf("%w: state issued for another user", ErrInvalidToken)
	}
	if code == "" {
		return "", fmt.Errorf("%w: missing code", ErrInvalidToken)
	}

	tok, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to exchange github code: %w", err)
	}
	return tok.AccessToken, nil
}
