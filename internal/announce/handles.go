package announce

import (
	"net/url"
	"regexp"
	"strings"
)

// Social is one social-profile link attached to a submission.
type Social struct {
	// Provider is the profile kind as reported upstream, e.g. "twitter"
	// or "generic".
	Provider string `json:"provider"`
	URL      string `json:"url"`
}

var threadsProfileRE = regexp.MustCompile(`^https://www\.threads\.net/@[a-zA-Z0-9_]+$`)

// parseTwitterUsername extracts the username from an x.com or twitter.com
// profile URL. Returns "" when the URL is not a Twitter profile.
func parseTwitterUsername(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if parsed.Hostname() != "x.com" && parsed.Hostname() != "twitter.com" {
		return ""
	}
	segments := strings.Split(strings.TrimPrefix(parsed.Path, "/"), "/")
	if len(segments) == 0 {
		return ""
	}
	return segments[0]
}

// parseThreadsUsername extracts the username from a www.threads.net profile
// URL. Returns "" when the URL is not a Threads profile.
func parseThreadsUsername(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if parsed.Hostname() != "www.threads.net" {
		return ""
	}
	_, after, found := strings.Cut(parsed.Path, "/@")
	if !found {
		return ""
	}
	return after
}

// Handles holds the resolved display handle per platform for one submission.
type Handles struct {
	Twitter string
	Threads string
	GitHub  string
}

// ResolveHandles applies the fallback policy: prefer the platform-native
// handle; fall back to the other platform's handle annotated with its
// origin; finally fall back to the GitHub username annotated "(on github)".
func ResolveHandles(githubUser string, socials []Social) Handles {
	var twitterURL, threadsURL string
	for _, social := range socials {
		switch {
		case social.Provider == "twitter" && twitterURL == "":
			twitterURL = social.URL
		case social.Provider == "generic" && threadsURL == "" && threadsProfileRE.MatchString(social.URL):
			threadsURL = social.URL
		}
	}

	twitterUser := parseTwitterUsername(twitterURL)
	threadsUser := parseThreadsUsername(threadsURL)

	var twitterHandle, threadsHandle string
	switch {
	case twitterUser != "":
		twitterHandle = twitterUser
	case threadsUser != "":
		twitterHandle = threadsUser + "(on threads)"
	}
	switch {
	case threadsUser != "":
		threadsHandle = threadsUser
	case twitterUser != "":
		threadsHandle = twitterUser + "(on x/twitter)"
	}

	fallback := githubUser + "(on github)"
	if twitterHandle == "" {
		twitterHandle = fallback
	}
	if threadsHandle == "" {
		threadsHandle = fallback
	}

	return Handles{
		Twitter: twitterHandle,
		Threads: threadsHandle,
		GitHub:  githubUser,
	}
}
