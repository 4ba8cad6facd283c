package announce

import (
	"fmt"
	"sort"
)

// Platform identifiers.
const (
	PlatformTwitter = "twitter"
	PlatformThreads = "threads"
	PlatformGitHub  = "github"
)

// Submission is one judged entry, ranked by Position (0 is first place).
type Submission struct {
	Position   int    `json:"position"`
	GitHubUser string `json:"githubUser"`
	Comment    string `json:"comment"`
	IssueURL   string `json:"issueUrl"`
	// IssueReply, when set, is posted as a comment on the submission
	// issue during the GitHub announcement.
	IssueReply string   `json:"issueReply,omitempty"`
	VideoID    string   `json:"videoId"`
	Socials    []Social `json:"socials,omitempty"`
}

// Announcement is the judged-challenge input the orchestrator maps into
// per-platform threads.
type Announcement struct {
	PostIntro          string `json:"postIntro"`
	FirstIntro         string `json:"firstIntro"`
	SecondIntro        string `json:"secondIntro"`
	ThirdIntro         string `json:"thirdIntro"`
	OtherIntro         string `json:"otherIntro"`
	NextChallengeIntro string `json:"nextChallengeIntro"`

	TwitterAnnounceLink     string `json:"twitterAnnounceLink"`
	TwitterNextAnnounceLink string `json:"twitterNextAnnounceLink"`
	ThreadsAnnounceLink     string `json:"threadsAnnounceLink"`
	ThreadsNextAnnounceLink string `json:"threadsNextAnnounceLink"`

	// Repo is the challenge repository whose README receives the
	// winners section.
	Repo string `json:"repo"`

	Submissions []Submission `json:"submissions"`
}

// introFor maps a ranking position to its configured intro text.
func (a Announcement) introFor(position int) string {
	switch position {
	case 0:
		return a.FirstIntro
	case 1:
		return a.SecondIntro
	case 2:
		return a.ThirdIntro
	default:
		return a.OtherIntro
	}
}

// ranked returns the submissions ordered by position.
func (a Announcement) ranked() []Submission {
	out := append([]Submission(nil), a.Submissions...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// BuildThread maps the announcement onto one platform's thread: an intro
// post anchoring the thread, one entry per submission in ranking order, and
// a next-challenge teaser. The GitHub thread has no intro or teaser; its
// posts become entries in the challenge README's winners section.
func (a Announcement) BuildThread(platform string) (Thread, error) {
	var posts []PostSpec

	switch platform {
	case PlatformTwitter:
		posts = append(posts, PostSpec{Text: a.PostIntro + "\n" + a.TwitterAnnounceLink})
		for _, sub := range a.ranked() {
			handles := ResolveHandles(sub.GitHubUser, sub.Socials)
			posts = append(posts, PostSpec{
				Text:            fmt.Sprintf("%s is @%s. %s\n%s", a.introFor(sub.Position), handles.Twitter, sub.Comment, sub.IssueURL),
				Media:           Video(sub.VideoID),
				ReplyToPrevious: true,
			})
		}
		posts = append(posts, PostSpec{
			Text:            a.NextChallengeIntro + "\n" + a.TwitterNextAnnounceLink,
			ReplyToPrevious: true,
		})

	case PlatformThreads:
		posts = append(posts, PostSpec{Text: a.PostIntro, QuoteOfKey: a.ThreadsAnnounceLink})
		for _, sub := range a.ranked() {
			handles := ResolveHandles(sub.GitHubUser, sub.Socials)
			posts = append(posts, PostSpec{
				Text:            fmt.Sprintf("%s is @%s. %s\n%s", a.introFor(sub.Position), handles.Threads, sub.Comment, sub.IssueURL),
				Media:           Video(sub.VideoID),
				ReplyToPrevious: true,
			})
		}
		posts = append(posts, PostSpec{
			Text:            a.NextChallengeIntro,
			QuoteOfKey:      a.ThreadsNextAnnounceLink,
			ReplyToPrevious: true,
		})

	case PlatformGitHub:
		for _, sub := range a.ranked() {
			posts = append(posts, PostSpec{
				Text:            fmt.Sprintf("%s is @%s.\n%s\n\n[submission](%s)\n\n", a.introFor(sub.Position), sub.GitHubUser, sub.Comment, sub.IssueURL),
				Media:           Video(sub.VideoID),
				ReplyToPrevious: true,
			})
		}

	default:
		return Thread{}, fmt.Errorf("unsupported platform %q", platform)
	}

	return Thread{Posts: posts}, nil
}
