package announce

import "testing"

func TestResolveHandles(t *testing.T) {
	tests := []struct {
		name        string
		githubUser  string
		socials     []Social
		wantTwitter string
		wantThreads string
	}{
		{
			name:       "both platforms present",
			githubUser: "octo",
			socials: []Social{
				{Provider: "twitter", URL: "https://x.com/alice"},
				{Provider: "generic", URL: "https://www.threads.net/@alice_t"},
			},
			wantTwitter: "alice",
			wantThreads: "alice_t",
		},
		{
			name:       "twitter only falls through to threads",
			githubUser: "octo",
			socials: []Social{
				{Provider: "twitter", URL: "https://twitter.com/bob"},
			},
			wantTwitter: "bob",
			wantThreads: "bob(on x/twitter)",
		},
		{
			name:       "threads only falls through to twitter",
			githubUser: "octo",
			socials: []Social{
				{Provider: "generic", URL: "https://www.threads.net/@carol"},
			},
			wantTwitter: "carol(on threads)",
			wantThreads: "carol",
		},
		{
			name:        "github fallback on every platform",
			githubUser:  "dave",
			socials:     nil,
			wantTwitter: "dave(on github)",
			wantThreads: "dave(on github)",
		},
		{
			name:       "unparseable twitter link falls back to github everywhere",
			githubUser: "frank",
			socials: []Social{
				{Provider: "twitter", URL: "https://mastodon.social/@frank"},
			},
			wantTwitter: "frank(on github)",
			wantThreads: "frank(on github)",
		},
		{
			name:       "generic link that is not a threads profile is ignored",
			githubUser: "erin",
			socials: []Social{
				{Provider: "generic", URL: "https://example.com/erin"},
			},
			wantTwitter: "erin(on github)",
			wantThreads: "erin(on github)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveHandles(tt.githubUser, tt.socials)
			if got.Twitter != tt.wantTwitter {
				t.Errorf("Twitter handle = %q, want %q", got.Twitter, tt.wantTwitter)
			}
			if got.Threads != tt.wantThreads {
				t.Errorf("Threads handle = %q, want %q", got.Threads, tt.wantThreads)
			}
			if got.GitHub != tt.githubUser {
				t.Errorf("GitHub handle = %q, want %q", got.GitHub, tt.githubUser)
			}
		})
	}
}

func TestParseTwitterUsername(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://x.com/alice", "alice"},
		{"https://twitter.com/bob/status/123", "bob"},
		{"https://example.com/carol", ""},
		{"://bad", ""},
	}
	for _, tt := range tests {
		if got := parseTwitterUsername(tt.url); got != tt.want {
			t.Errorf("parseTwitterUsername(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
