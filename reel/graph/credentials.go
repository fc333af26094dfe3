package graph

import (
	"net/url"
	"strings"
)

// Default endpoints.
const (
	DefaultAPIVersion    = "v25.0"
	DefaultGraphBaseURL  = "https://graph.facebook.com"
	DefaultUploadBaseURL = "https://rupload.facebook.com/ig-api-upload"
)

// Credentials are the long lived configuration inputs sent with every request. They are never refreshed.
type Credentials struct {
	AccessToken   string
	UserID        string
	AppID         string
	APIVersion    string
	GraphBaseURL  string
	UploadBaseURL string
}

// GraphURL joins path segments onto the versioned Graph base URL and appends query plus the access token.
func (c Credentials) GraphURL(query url.Values, segments ...string) string {
	base := strings.TrimSuffix(c.graphBaseURL(), "/")
	parts := []string{base, c.apiVersion()}
	for _, s := range segments {
		parts = append(parts, url.PathEscape(s))
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("access_token", c.AccessToken)

	return strings.Join(parts, "/") + "?" + query.Encode()
}

// UploadURI is the documented fallback upload location when the init response carries no uri.
func (c Credentials) UploadURI(containerID string) string {
	base := c.UploadBaseURL
	if base == "" {
		base = DefaultUploadBaseURL
	}
	return strings.TrimSuffix(base, "/") + "/" + url.PathEscape(containerID)
}

// UploadAuthorization is the Authorization header value of the upload host.
func (c Credentials) UploadAuthorization() string {
	return "OAuth " + c.AccessToken
}

func (c Credentials) graphBaseURL() string {
	if c.GraphBaseURL == "" {
		return DefaultGraphBaseURL
	}
	return c.GraphBaseURL
}

func (c Credentials) apiVersion() string {
	if c.APIVersion == "" {
		return DefaultAPIVersion
	}
	return c.APIVersion
}
