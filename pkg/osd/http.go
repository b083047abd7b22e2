package osd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-uuid"
	"github.com/pkg/errors"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/fileid"
	"golang.org/x/sys/unix"
)

const (
	HeaderObjectNumber = "X-Object-Number"
	HeaderContentRange = "Content-Range"
	HeaderRequestID    = "X-Request-Id"
	HeaderOrder        = "X-Order"
	HeaderEpoch        = "X-Epoch"
	HeaderNewFileSize  = "X-New-File-Size"
)

// HTTPChannel talks to OSDs that expose each file as a resource at
// {scheme}://{node}/{fileID}. Reads are GETs and writes are PUTs, the object and the
// byte range within it travel in headers.
type HTTPChannel struct {
	client *resty.Client
	scheme string
}

func NewHTTPChannel(scheme string, timeout time.Duration) *HTTPChannel {
	if scheme == "" {
		scheme = "http"
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", "sfiod")

	return &HTTPChannel{client: client, scheme: scheme}
}

// Client exposes the underlying resty client so callers can add TLS or retry settings.
func (c *HTTPChannel) Client() *resty.Client {
	return c.client
}

func (c *HTTPChannel) Transfer(ctx context.Context, tr *TransferRequest) (*TransferResponse, error) {
	if tr.Size() == 0 {
		return NoSizeChange(0), nil
	}

	requestID, err := uuid.GenerateUUID()
	if err != nil {
		return nil, errors.Wrapf(unix.ENOMEM, "generating request id: %s", err)
	}

	req := c.client.R().
		SetContext(ctx).
		SetHeader(HeaderObjectNumber, strconv.FormatInt(tr.ObjectIndex, 10)).
		SetHeader(HeaderContentRange, ContentRange(tr.Offset, tr.Size())).
		SetHeader(HeaderRequestID, requestID).
		SetHeader(HeaderOrder, strconv.FormatUint(tr.Order, 10)).
		SetHeader(HeaderEpoch, strconv.FormatInt(tr.Epoch, 10))

	u := c.fileURL(tr)

	var resp *resty.Response
	switch tr.Op {
	case Read:
		resp, err = req.Get(u)
	case Write:
		resp, err = req.
			SetHeader("Content-Type", "application/octet-stream").
			SetBody(tr.Buffer).
			Put(u)
	default:
		return nil, errors.Wrapf(unix.EINVAL, "unknown transfer op %s", tr.Op)
	}

	if err != nil {
		return nil, errors.Wrapf(unix.EIO, "%s %s object %d (req %s): %s", tr.Op, u, tr.ObjectIndex, requestID, err)
	}

	if resp.IsError() || resp.StatusCode() >= http.StatusMultipleChoices {
		return nil, errors.Wrapf(StatusErrno(resp.StatusCode()), "%s %s object %d (req %s): %s",
			tr.Op, u, tr.ObjectIndex, requestID, resp.Status())
	}

	se, err := ParseNewFileSize(resp.Header().Get(HeaderNewFileSize))
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s object %d (req %s)", tr.Op, u, tr.ObjectIndex, requestID)
	}

	n := tr.Size()
	if tr.Op == Read {
		n = int64(copy(tr.Buffer, resp.Body()))
	}

	return &TransferResponse{BytesTransferred: n, NewSize: se.Size, Epoch: se.Epoch}, nil
}

func (c *HTTPChannel) fileURL(tr *TransferRequest) string {
	return fmt.Sprintf("%s://%s/%s", c.scheme, tr.NodeAddress, url.PathEscape(tr.FileID))
}

// StatusErrno maps an HTTP status returned by an OSD onto a POSIX code.
func StatusErrno(status int) unix.Errno {
	switch status {
	case http.StatusForbidden:
		return unix.EACCES
	case http.StatusNotFound:
		return unix.ENOENT
	default:
		return unix.EIO
	}
}

// ContentRange formats the inclusive byte range header for size bytes at offset.
func ContentRange(offset, size int64) string {
	return fmt.Sprintf("bytes %d-%d/*", offset, offset+size-1)
}

// ParseContentRange is the inverse of ContentRange.
func ParseContentRange(s string) (offset, size int64, err error) {
	var first, last int64
	if _, err := fmt.Sscanf(s, "bytes %d-%d/*", &first, &last); err != nil {
		return 0, 0, errors.Wrapf(unix.EINVAL, "bad content range %q", s)
	}

	if first < 0 || last < first {
		return 0, 0, errors.Wrapf(unix.EINVAL, "bad content range %q", s)
	}

	return first, last - first + 1, nil
}

// ParseNewFileSize decodes the "[size, epoch]" new file size header. An absent header
// means the size did not change.
func ParseNewFileSize(s string) (fileid.SizeEpoch, error) {
	if s == "" {
		return fileid.NoUpdate, nil
	}

	var pair []int64
	if err := json.Unmarshal([]byte(s), &pair); err != nil || len(pair) != 2 {
		return fileid.NoUpdate, errors.Wrapf(unix.EINVAL, "bad %s header %q", HeaderNewFileSize, s)
	}

	return fileid.SizeEpoch{Size: pair[0], Epoch: pair[1]}, nil
}

func FormatNewFileSize(se fileid.SizeEpoch) string {
	return fmt.Sprintf("[%d, %d]", se.Size, se.Epoch)
}
