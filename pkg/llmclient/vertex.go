package llmclient

import (
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// TokenSource yields a bearer token to attach to each outbound LLM
// request. It models the reference runtime's refresh_llm_token/Vertex
// ADC idiom as a generic oauth2.TokenSource.
type TokenSource = oauth2.TokenSource

// NewVertexTokenSource builds a TokenSource from Application Default
// Credentials, scoped for Vertex AI's OpenAI-compatible endpoint.
func NewVertexTokenSource() (TokenSource, error) {
	creds, err := google.FindDefaultCredentials(nil, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return nil, err
	}
	return oauth2.ReuseTokenSource(nil, creds.TokenSource), nil
}

// tokenRefreshMiddleware attaches a fresh bearer token to every request,
// refreshing it via ts whenever it has expired.
func tokenRefreshMiddleware(ts TokenSource) func(*http.Request, func(*http.Request) (*http.Response, error)) (*http.Response, error) {
	return func(req *http.Request, next func(*http.Request) (*http.Response, error)) (*http.Response, error) {
		tok, err := ts.Token()
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
		return next(req)
	}
}
