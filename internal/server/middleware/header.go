package middleware

import (
	"errors"
	"net/http"
	"strings"
)

// APIKeyConfig controls where an API key is extracted from.
type APIKeyConfig struct {
	// Headers lists the header names to check, in priority order.
	Headers []string
	// RequireBearer requires the Bearer prefix on the Authorization header.
	RequireBearer bool
	// AllowedPrefixes lists accepted value prefixes, such as "Bearer ".
	AllowedPrefixes []string
}

var DefaultAPIKeyConfig = &APIKeyConfig{
	Headers:         []string{"Authorization", "X-API-Key", "X-Api-Key", "API-Key", "Api-Key"},
	RequireBearer:   false,
	AllowedPrefixes: []string{"Bearer ", "Token ", "Api-Key ", "API-Key "},
}

// ExtractAPIKeyFromRequest extracts an API key from the request, checking
// every configured header and stripping any accepted prefix.
func ExtractAPIKeyFromRequest(r *http.Request, config *APIKeyConfig) (string, error) {
	if config == nil {
		config = DefaultAPIKeyConfig
	}

	var lastError error

	for _, headerName := range config.Headers {
		headerValue := r.Header.Get(headerName)
		if headerValue == "" {
			continue
		}

		if strings.EqualFold(headerName, "authorization") && config.RequireBearer {
			if !strings.HasPrefix(headerValue, "Bearer ") {
				lastError = errors.New("Authorization header must start with 'Bearer '")
				continue
			}

			apiKey := strings.TrimPrefix(headerValue, "Bearer ")
			if apiKey == "" {
				lastError = errors.New("API key is required")
				continue
			}

			return apiKey, nil
		}

		apiKey := headerValue

		for _, prefix := range config.AllowedPrefixes {
			if strings.HasPrefix(headerValue, prefix) {
				apiKey = strings.TrimPrefix(headerValue, prefix)
				break
			}
		}

		if strings.TrimSpace(apiKey) == "" {
			lastError = errors.New("API key is required")
			continue
		}

		return strings.TrimSpace(apiKey), nil
	}

	if lastError != nil {
		return "", lastError
	}

	return "", errors.New("API key not found in any of the supported headers")
}
