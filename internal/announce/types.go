// Package announce implements the winner-announcement publisher: it turns a
// judged challenge into per-platform post threads and drives each platform's
// upload/compose protocol in strict order.
package announce

import "context"

// MediaKind tags the variant of a MediaRef.
type MediaKind int

const (
	// MediaNone means the post carries no media.
	MediaNone MediaKind = iota
	// MediaVideo references a processed demo video by its job ID.
	MediaVideo
	// MediaImage references an image file on local disk.
	MediaImage
)

// MediaRef identifies the media a post should carry, before upload.
type MediaRef struct {
	Kind MediaKind
	// VideoID is set when Kind is MediaVideo.
	VideoID string
	// ImagePath is set when Kind is MediaImage.
	ImagePath string
}

// Video returns a MediaRef for a processed video.
func Video(id string) MediaRef { return MediaRef{Kind: MediaVideo, VideoID: id} }

// Image returns a MediaRef for a local image file.
func Image(path string) MediaRef { return MediaRef{Kind: MediaImage, ImagePath: path} }

// MediaHandle is the platform-issued reference to uploaded media. Upload
// returns it only once the media is confirmed stored; whether it is also
// ready to publish is the composer's concern.
type MediaHandle struct {
	// ID is the platform's media identifier, or the public URL for
	// platforms that ingest media by reference.
	ID   string
	Kind MediaKind
}

// PostSpec is one logical unit to publish on one platform.
type PostSpec struct {
	Text string
	// Media is what to attach, if anything.
	Media MediaRef
	// QuoteOfKey is a caller-supplied permalink identifying an existing
	// post this one should quote. It is resolved to a platform post ID
	// immediately before composing.
	QuoteOfKey string
	// ReplyToPrevious chains this post as a reply to the immediately
	// preceding post in the same thread.
	ReplyToPrevious bool
}

// Thread is an ordered sequence of posts forming one announcement on one
// platform. Order is meaningful: the first post anchors the thread URL.
type Thread struct {
	Posts []PostSpec
}

// ComposeInput carries everything a composer needs for one post.
type ComposeInput struct {
	Text    string
	Media   *MediaHandle
	ReplyTo string
	QuoteID string
}

// Published identifies a post the platform accepted.
type Published struct {
	PostID    string
	Permalink string
}

// PublishResult is returned when every post in a thread was published.
type PublishResult struct {
	// ThreadURL is the permalink of the thread's first post.
	ThreadURL string
}

// Uploader moves media into a platform's storage and yields a usable handle.
type Uploader interface {
	Upload(ctx context.Context, ref MediaRef) (MediaHandle, error)
}

// Composer creates exactly one published post on one platform.
type Composer interface {
	Name() string
	Compose(ctx context.Context, in ComposeInput) (Published, error)
	// ResolveQuote maps a post permalink to the platform's internal post ID.
	ResolveQuote(ctx context.Context, permalink string) (string, error)
}

// Platform is the full per-network capability the publisher drives.
type Platform interface {
	Uploader
	Composer
}
