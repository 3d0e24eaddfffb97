package media

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pelusa-v/roomchat/internal/data"
)

type fakeChecker struct {
	keys map[string]bool
	err  error
	seen []string
}

func (f *fakeChecker) Exists(_ context.Context, key string) (bool, error) {
	f.seen = append(f.seen, key)
	if f.err != nil {
		return false, f.err
	}
	return f.keys[key], nil
}

func TestMediaURL(t *testing.T) {
	tests := []struct {
		name string
		keys map[string]bool
		ref  data.MediaRef
		want string
	}{
		{
			name: "compressed video",
			keys: map[string]bool{"compressed/video/3/11.mp4": true},
			ref:  data.MediaRef{OwnerID: 3, MediaID: 11, FileName: ".mov", Kind: "video"},
			want: "https://cdn.test/compressed/video/3/11.mp4",
		},
		{
			name: "original video",
			ref:  data.MediaRef{OwnerID: 3, MediaID: 11, FileName: ".mov", Kind: "video"},
			want: "https://cdn.test/video/3/11.mov",
		},
		{
			name: "compressed photo",
			keys: map[string]bool{"compressed/photo/3/12.jpg": true},
			ref:  data.MediaRef{OwnerID: 3, MediaID: 12, FileName: ".heic", Kind: "photo"},
			want: "https://cdn.test/compressed/photo/3/12.jpg",
		},
		{
			name: "original photo",
			ref:  data.MediaRef{OwnerID: 3, MediaID: 12, FileName: ".heic", Kind: "photo"},
			want: "https://cdn.test/photo/3/12.heic",
		},
		{
			name: "unknown kind",
			ref:  data.MediaRef{OwnerID: 3, MediaID: 12, Kind: "audio"},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(&fakeChecker{keys: tt.keys}, "https://cdn.test/", DefaultFolders(), 0)
			assert.Equal(t, tt.want, r.MediaURL(context.Background(), tt.ref))
		})
	}
}

func TestCoverURL(t *testing.T) {
	ref := data.MediaRef{OwnerID: 5, MediaID: 40, FileName: ".jpg", Kind: "photo"}
	c := &fakeChecker{keys: map[string]bool{"thumbnail/5/40.png": true}}
	r := NewResolver(c, "https://cdn.test", DefaultFolders(), 0)
	assert.Equal(t, "https://cdn.test/thumbnail/5/40.png", r.CoverURL(context.Background(), ref))

	c.keys = nil
	assert.Equal(t, "https://cdn.test/photo/5/40.jpg", r.CoverURL(context.Background(), ref))

	ref.Kind = "video"
	ref.FileName = ".mp4"
	assert.Equal(t, "https://cdn.test/video/5/40.mp4", r.CoverURL(context.Background(), ref))
}

func TestLookupErrorGivesNoURL(t *testing.T) {
	r := NewResolver(&fakeChecker{err: errors.New("timeout")}, "https://cdn.test", DefaultFolders(), 0)
	ref := data.MediaRef{OwnerID: 1, MediaID: 2, FileName: ".jpg", Kind: "photo"}
	assert.Empty(t, r.MediaURL(context.Background(), ref))
	assert.Empty(t, r.CoverURL(context.Background(), ref))
}

func TestCustomFoldersWithoutCDN(t *testing.T) {
	folders := DefaultFolders()
	folders.Photo = "/uploads/photos/"
	r := NewResolver(&fakeChecker{}, "", folders, 0)
	got := r.MediaURL(context.Background(), data.MediaRef{OwnerID: 1, MediaID: 2, FileName: ".png", Kind: "photo"})
	assert.Equal(t, "uploads/photos/1/2.png", got)
}

type fakeHead struct {
	err error
	in  *s3.HeadObjectInput
}

func (f *fakeHead) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestS3Checker(t *testing.T) {
	head := &fakeHead{}
	c := NewS3Checker(head, "media")
	ok, err := c.Exists(context.Background(), "photo/1/2.jpg")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "media", *head.in.Bucket)
	assert.Equal(t, "photo/1/2.jpg", *head.in.Key)

	head.err = &types.NotFound{}
	ok, err = c.Exists(context.Background(), "photo/1/3.jpg")
	require.NoError(t, err)
	assert.False(t, ok)

	head.err = errors.New("connection reset")
	_, err = c.Exists(context.Background(), "photo/1/4.jpg")
	assert.Error(t, err)
}
