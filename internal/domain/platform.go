package domain

import (
	"net/url"
	"strings"
)

// Platform identifies the source site of a media URL. It is assigned once
// during analysis and never changes afterwards.
type Platform string

const (
	PlatformYouTube   Platform = "YouTube"
	PlatformTikTok    Platform = "TikTok"
	PlatformInstagram Platform = "Instagram"
	PlatformFacebook  Platform = "Facebook"
	PlatformTwitter   Platform = "Twitter"
	PlatformSnapchat  Platform = "Snapchat"
	PlatformLikee     Platform = "Likee"
	PlatformUnknown   Platform = "Unknown"
)

var platformHosts = []struct {
	platform Platform
	needles  []string
}{
	{PlatformYouTube, []string{"youtube.com", "youtu.be"}},
	{PlatformTikTok, []string{"tiktok.com"}},
	{PlatformInstagram, []string{"instagram.com", "instagr.am"}},
	{PlatformFacebook, []string{"facebook.com", "fb.watch"}},
	{PlatformTwitter, []string{"twitter.com", "x.com"}},
	{PlatformSnapchat, []string{"snapchat.com"}},
	{PlatformLikee, []string{"likee.com", "likee.video"}},
}

// DetectPlatform classifies a URL by its host fragments.
func DetectPlatform(rawURL string) Platform {
	lower := strings.ToLower(rawURL)
	for _, entry := range platformHosts {
		for _, needle := range entry.needles {
			if strings.Contains(lower, needle) {
				return entry.platform
			}
		}
	}
	return PlatformUnknown
}

// trackingParams are query parameters that carry no content identity and are
// stripped during normalization.
var trackingParams = map[string]struct{}{
	"utm_source":     {},
	"utm_medium":     {},
	"utm_campaign":   {},
	"utm_content":    {},
	"utm_term":       {},
	"igsh":           {},
	"igshid":         {},
	"ref":            {},
	"feature":        {},
	"is_from_webapp": {},
	"share_id":       {},
	"locale":         {},
}

var mobileHosts = map[string]string{
	"m.youtube.com":      "www.youtube.com",
	"m.facebook.com":     "www.facebook.com",
	"web.facebook.com":   "www.facebook.com",
	"mobile.twitter.com": "twitter.com",
}

// NormalizeURL canonicalizes a media URL before it reaches the extractor:
// forces https, folds mobile hosts onto their canonical host, drops tracking
// query parameters, and trims a trailing slash. Invalid URLs are returned
// unchanged; validation happens at the API boundary.
func NormalizeURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if strings.HasPrefix(rawURL, "http://") {
		rawURL = "https://" + rawURL[len("http://"):]
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}

	host := strings.ToLower(parsed.Host)
	if canonical, ok := mobileHosts[host]; ok {
		host = canonical
	}
	parsed.Host = host

	query := parsed.Query()
	for key := range query {
		if _, tracked := trackingParams[strings.ToLower(key)]; tracked {
			query.Del(key)
		}
	}
	parsed.RawQuery = query.Encode()

	if len(parsed.Path) > 1 {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}

	return parsed.String()
}
