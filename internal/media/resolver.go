// Package media resolves media references to CDN URLs.
package media

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pelusa-v/roomchat/internal/data"
)

// ObjectChecker reports whether a key exists in the media bucket.
type ObjectChecker interface {
	Exists(ctx context.Context, key string) (bool, error)
}

type Folders struct {
	Photo           string `koanf:"photo"`
	Video           string `koanf:"video"`
	CompressedPhoto string `koanf:"compressed_photo"`
	CompressedVideo string `koanf:"compressed_video"`
	Thumbnail       string `koanf:"thumbnail"`
}

func DefaultFolders() Folders {
	return Folders{
		Photo:           "photo",
		Video:           "video",
		CompressedPhoto: "compressed/photo",
		CompressedVideo: "compressed/video",
		Thumbnail:       "thumbnail",
	}
}

type Resolver struct {
	checker ObjectChecker
	cdn     string
	folders Folders
	timeout time.Duration
}

func NewResolver(checker ObjectChecker, cdn string, folders Folders, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Resolver{checker: checker, cdn: strings.TrimRight(cdn, "/"), folders: folders, timeout: timeout}
}

func join(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "/")
}

func (r *Resolver) url(key string) string {
	if r.cdn == "" {
		return key
	}
	return r.cdn + "/" + key
}

func (r *Resolver) exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.checker.Exists(ctx, key)
}

func (r *Resolver) original(ref data.MediaRef) string {
	folder := r.folders.Photo
	if ref.Kind == "video" {
		folder = r.folders.Video
	}
	return join(folder, fmt.Sprint(ref.OwnerID), fmt.Sprintf("%d%s", ref.MediaID, ref.FileName))
}

// MediaURL prefers the compressed rendition of a photo or video. Unknown kinds and
// lookup errors give "".
func (r *Resolver) MediaURL(ctx context.Context, ref data.MediaRef) string {
	var compressed string
	switch ref.Kind {
	case "video":
		compressed = join(r.folders.CompressedVideo, fmt.Sprint(ref.OwnerID), fmt.Sprintf("%d.mp4", ref.MediaID))
	case "photo":
		compressed = join(r.folders.CompressedPhoto, fmt.Sprint(ref.OwnerID), fmt.Sprintf("%d.jpg", ref.MediaID))
	default:
		return ""
	}
	ok, err := r.exists(ctx, compressed)
	if err != nil {
		log.Warn().Err(err).Str("key", compressed).Msg("media lookup failed")
		return ""
	}
	if ok {
		return r.url(compressed)
	}
	return r.url(r.original(ref))
}

// CoverURL prefers the png thumbnail, then the original object.
func (r *Resolver) CoverURL(ctx context.Context, ref data.MediaRef) string {
	thumb := join(r.folders.Thumbnail, fmt.Sprint(ref.OwnerID), fmt.Sprintf("%d.png", ref.MediaID))
	ok, err := r.exists(ctx, thumb)
	if err != nil {
		log.Warn().Err(err).Str("key", thumb).Msg("cover lookup failed")
		return ""
	}
	if ok {
		return r.url(thumb)
	}
	return r.url(r.original(ref))
}
