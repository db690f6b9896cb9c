package configuration

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const defaultGraphURL = "https://graph.facebook.com/v19.0"

// YouTubeOAuthConfig builds the oauth2 client config used to refresh channel tokens
func YouTubeOAuthConfig() *oauth2.Config {
	scopes := C.YouTube.Scopes
	if len(scopes) == 0 {
		scopes = []string{"https://www.googleapis.com/auth/youtube"}
	}
	return &oauth2.Config{
		ClientID:     getConfigValue(C.YouTube.ClientID, "YOUTUBE_CLIENT_ID", ""),
		ClientSecret: getConfigValue(C.YouTube.ClientSecret, "YOUTUBE_CLIENT_SECRET", ""),
		RedirectURL:  getConfigValue(C.YouTube.RedirectURI, "YOUTUBE_REDIRECT_URL", defaultRedirect("youtube")),
		Scopes:       scopes,
		Endpoint:     google.Endpoint,
	}
}

// YouTubeEndpoint overrides the Data API base path, empty means the public API
func YouTubeEndpoint() string {
	return getConfigValue(C.YouTube.Endpoint, "YOUTUBE_API_ENDPOINT", "")
}

// FacebookConfig returns the Graph API client settings with env fallback
func FacebookConfig() OAuthClient {
	return OAuthClient{
		ClientID:     getConfigValue(C.OAuth.Facebook.ClientID, "FACEBOOK_CLIENT_ID", ""),
		ClientSecret: getConfigValue(C.OAuth.Facebook.ClientSecret, "FACEBOOK_CLIENT_SECRET", ""),
		RedirectURI:  getConfigValue(C.OAuth.Facebook.RedirectURI, "FACEBOOK_REDIRECT_URI", defaultRedirect("facebook")),
		GraphURL:     strings.TrimRight(getConfigValue(C.OAuth.Facebook.GraphURL, "FACEBOOK_GRAPH_URL", defaultGraphURL), "/"),
	}
}

func defaultRedirect(platform string) string {
	scheme := "http"
	if C.App.TLSEnabled {
		scheme = "https"
	}
	port := C.App.Port
	if port == 0 {
		port = 10001
	}
	return fmt.Sprintf("%s://localhost:%d/auth/%s/callback", scheme, port, platform)
}

// getConfigValue gets value from env first, then config, then default
func getConfigValue(configValue, envKey, defaultValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	// Placeholders such as YOUR_CLIENT_ID are treated as unset
	if configValue != "" && !strings.HasPrefix(configValue, "YOUR_") {
		return configValue
	}
	return defaultValue
}
