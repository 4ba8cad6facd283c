package announce

import (
	"context"

	"github.com/blacktop/arbiter/internal/logutil"
)

// PublishThread drives every post of thread through the platform, strictly
// in index order. Each post may need its quote target resolved, its media
// uploaded, and the previous post's ID for reply chaining, so no two posts
// of one thread are ever in flight at once.
//
// The first error aborts the remaining posts and is returned as a
// *PublishError carrying the failing index. Already-published posts are not
// retracted.
func PublishThread(ctx context.Context, p Platform, thread Thread) (PublishResult, error) {
	if len(thread.Posts) == 0 {
		return PublishResult{}, ValidationError{Platform: p.Name(), Reason: "thread has no posts"}
	}

	var first, prev Published
	for i, post := range thread.Posts {
		if err := ctx.Err(); err != nil {
			return PublishResult{}, &PublishError{Platform: p.Name(), Index: i, Err: err}
		}

		in := ComposeInput{Text: post.Text}

		if post.QuoteOfKey != "" {
			quoteID, err := p.ResolveQuote(ctx, post.QuoteOfKey)
			if err != nil {
				return PublishResult{}, &PublishError{Platform: p.Name(), Index: i, Err: err}
			}
			in.QuoteID = quoteID
		}

		if post.Media.Kind != MediaNone {
			handle, err := p.Upload(ctx, post.Media)
			if err != nil {
				return PublishResult{}, &PublishError{Platform: p.Name(), Index: i, Err: err}
			}
			in.Media = &handle
		}

		if post.ReplyToPrevious && i > 0 {
			in.ReplyTo = prev.PostID
		}

		pub, err := p.Compose(ctx, in)
		if err != nil {
			return PublishResult{}, &PublishError{Platform: p.Name(), Index: i, Err: err}
		}
		logutil.Debugf("published post %d/%d on %s: id=%s", i+1, len(thread.Posts), p.Name(), pub.PostID)

		if i == 0 {
			first = pub
		}
		prev = pub
	}

	return PublishResult{ThreadURL: first.Permalink}, nil
}
