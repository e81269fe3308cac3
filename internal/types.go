package instagrab

// MediaKind defines the type of a media item attached to a post.
type MediaKind string

const (
	// MediaImage represents a still image.
	MediaImage MediaKind = "image"
	// MediaVideo represents a video.
	MediaVideo MediaKind = "video"
)

// Ext returns the file extension used when saving media of this kind.
func (k MediaKind) Ext() string {
	if k == MediaVideo {
		return ".mp4"
	}
	return ".jpg"
}

// MediaItem describes a single fetchable piece of media.
type MediaItem struct {
	// Kind is either MediaImage or MediaVideo.
	Kind MediaKind
	// URL is the location the bytes are fetched from.
	URL string
}

// PostMeta is what a Resolver returns for a short identifier.
type PostMeta struct {
	// Profile is the owner of the post.
	Profile string
	// Caption is the post text. It may be empty.
	Caption string
	// Media lists the post's media in display order. A carousel yields one
	// item per sub-item, a single post exactly one, a caption-only post none.
	Media []MediaItem
}

// IsCarousel returns true if the post has more than one media item.
func (m PostMeta) IsCarousel() bool {
	return len(m.Media) > 1
}

// FetchResult records the outcome of fetching a post's media.
type FetchResult struct {
	// Saved holds the destination paths of every successfully fetched item, in order.
	Saved []string
	// Attempted is the number of items a fetch was attempted for.
	Attempted int
}

// Complete reports whether every attempted item was saved and at least one was attempted.
func (r FetchResult) Complete() bool {
	return r.Attempted > 0 && len(r.Saved) == r.Attempted
}
