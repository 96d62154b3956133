package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/example/orbit/services/social/internal/domain"
	"github.com/example/orbit/services/social/internal/objects"
)

// Objects implements objects.Store against the API. The service files
// uploads under the token's user, so Put ignores dir.
type Objects struct{ c *Client }

func (c *Client) Objects() Objects { return Objects{c} }

func (s Objects) Put(ctx context.Context, bucket, _ string, data []byte) (string, error) {
	const op = "objects.put"
	if len(data) > objects.MaxObjectSize {
		return "", domain.Invalid(op, "file exceeds %d bytes", objects.MaxObjectSize)
	}
	var out struct {
		Path string `json:"path"`
	}
	err := s.c.do(ctx, call{
		op:     op,
		method: http.MethodPost,
		path:   "/v1/objects/" + escape(bucket),
		body:   data,
		ctype:  http.DetectContentType(data),
		out:    &out,
	})
	return out.Path, err
}

func (s Objects) Get(ctx context.Context, bucket, objectPath string) (objects.Object, error) {
	const op = "objects.get"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.PublicURL(bucket, objectPath), nil)
	if err != nil {
		return objects.Object{}, domain.Invalid(op, "build request: %v", err)
	}
	resp, err := s.c.HTTPClient.Do(req)
	if err != nil {
		return objects.Object{}, domain.Transient(op, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, objects.MaxObjectSize+1))
	if err != nil {
		return objects.Object{}, domain.Transient(op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return objects.Object{}, statusError(op, resp.StatusCode, data)
	}
	if len(data) > objects.MaxObjectSize {
		return objects.Object{}, domain.Transient(op, fmt.Errorf("object larger than %d bytes", objects.MaxObjectSize))
	}
	return objects.Object{
		Bucket:      bucket,
		Path:        objectPath,
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (s Objects) PublicURL(bucket, objectPath string) string {
	return s.c.BaseURL + "/v1/objects/" + escape(bucket) + "/" + strings.TrimPrefix(objectPath, "/")
}
