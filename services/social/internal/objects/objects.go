// Package objects stores uploaded images and resolves their public URLs.
package objects

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/example/orbit/services/social/internal/domain"
)

const (
	BucketAvatars    = "avatars"
	BucketPostImages = "post-images"

	MaxObjectSize = 5 << 20

	DefaultAvatar = "/default-avatar.png"
)

var allowedTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Object is a stored file.
type Object struct {
	Bucket      string
	Path        string
	ContentType string
	Data        []byte
}

// Store keeps objects by bucket and path.
type Store interface {
	// Put stores data under dir inside bucket with a generated name and
	// returns the object path.
	Put(ctx context.Context, bucket, dir string, data []byte) (string, error)
	Get(ctx context.Context, bucket, objectPath string) (Object, error)
	PublicURL(bucket, objectPath string) string
}

// KnownBucket reports whether bucket accepts uploads.
func KnownBucket(bucket string) bool {
	return bucket == BucketAvatars || bucket == BucketPostImages
}

// prepare validates an upload and picks its path.
func prepare(bucket, dir string, data []byte) (objectPath, contentType string, err error) {
	const op = "objects.put"
	if !KnownBucket(bucket) {
		return "", "", domain.Invalid(op, "unknown bucket %q", bucket)
	}
	if len(data) == 0 {
		return "", "", domain.Invalid(op, "file is empty")
	}
	if len(data) > MaxObjectSize {
		return "", "", domain.Invalid(op, "file exceeds %d bytes", MaxObjectSize)
	}
	contentType = http.DetectContentType(data)
	ext, ok := allowedTypes[contentType]
	if !ok {
		return "", "", domain.Invalid(op, "unsupported file type %s", contentType)
	}
	name := uuid.NewString() + ext
	dir = strings.Trim(path.Clean("/"+dir), "/")
	if dir != "" {
		name = dir + "/" + name
	}
	return name, contentType, nil
}

func publicURL(baseURL, bucket, objectPath string) string {
	return strings.TrimRight(baseURL, "/") + "/v1/objects/" + url.PathEscape(bucket) + "/" + objectPath
}

// AvatarURL turns a stored avatar value into something an <img> can load:
// data URIs and absolute URLs pass through, object paths are resolved in
// the avatars bucket, and an empty value yields DefaultAvatar.
func AvatarURL(s Store, stored string) string {
	stored = strings.TrimSpace(stored)
	switch {
	case stored == "":
		return DefaultAvatar
	case strings.HasPrefix(stored, "data:"),
		strings.HasPrefix(stored, "http://"),
		strings.HasPrefix(stored, "https://"):
		return stored
	}
	return s.PublicURL(BucketAvatars, strings.TrimPrefix(stored, "/"))
}
