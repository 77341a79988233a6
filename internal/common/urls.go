// Package common provides shared utilities across the application.
package common

import (
	"fmt"
	"net/url"
	"strings"
)

// Tracking query parameters stripped during canonicalization.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"fbclid":       true,
	"gclid":        true,
	"ref":          true,
}

// CanonicalURL normalizes a URL for duplicate detection.
// Scheme and host are lowercased, default ports, fragments, tracking
// parameters and trailing slashes are removed.
func CanonicalURL(raw string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("failed to parse URL %q: %w", raw, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("URL %q is not absolute", raw)
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""

	switch {
	case parsed.Scheme == "http" && strings.HasSuffix(parsed.Host, ":80"):
		parsed.Host = strings.TrimSuffix(parsed.Host, ":80")
	case parsed.Scheme == "https" && strings.HasSuffix(parsed.Host, ":443"):
		parsed.Host = strings.TrimSuffix(parsed.Host, ":443")
	}

	query := parsed.Query()
	for param := range query {
		if trackingParams[strings.ToLower(param)] {
			query.Del(param)
		}
	}
	parsed.RawQuery = query.Encode()

	if parsed.Path != "/" {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}

	return parsed.String(), nil
}

// ExtractYouTubeVideoID extracts the video id from the common YouTube URL
// shapes: watch?v=, youtu.be/, /embed/ and /v/.
func ExtractYouTubeVideoID(raw string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("failed to parse URL %q: %w", raw, err)
	}

	host := strings.ToLower(strings.TrimPrefix(parsed.Host, "www."))

	switch host {
	case "youtu.be":
		id := strings.Trim(parsed.Path, "/")
		if id != "" {
			return id, nil
		}
	case "youtube.com", "m.youtube.com", "youtube-nocookie.com":
		if id := parsed.Query().Get("v"); id != "" {
			return id, nil
		}
		for _, prefix := range []string{"/embed/", "/v/", "/shorts/"} {
			if strings.HasPrefix(parsed.Path, prefix) {
				id := strings.Trim(strings.TrimPrefix(parsed.Path, prefix), "/")
				if id != "" {
					return id, nil
				}
			}
		}
	}

	return "", fmt.Errorf("no video id found in URL %q", raw)
}

// YouTubeWatchURL returns the canonical watch URL for a video id.
func YouTubeWatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
