package webapi

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/fileid"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/mddb/stor"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/mdsync"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/request"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/striping"
	"golang.org/x/sys/unix"
)

// FileIO is the pipeline as seen by the data endpoints.
type FileIO interface {
	SubmitFileRead(ctx context.Context, f *fileid.File, offset int64, buf []byte) (int64, error)
	SubmitFileWrite(ctx context.Context, f *fileid.File, offset int64, buf []byte) (int64, error)
}

// MaxReadSize bounds the size of a single read through the API.
const MaxReadSize = 64 * 1024 * 1024

type FilesController struct {
	registry *fileid.Registry
	fileStor stor.FileStor
	fileIO   FileIO
}

func NewFilesController(registry *fileid.Registry, fileStor stor.FileStor, fileIO FileIO) *FilesController {
	return &FilesController{registry: registry, fileStor: fileStor, fileIO: fileIO}
}

type fileStatus struct {
	ID          string           `json:"id"`
	Policy      striping.Policy  `json:"policy"`
	Nodes       []string         `json:"nodes"`
	SizeEpoch   fileid.SizeEpoch `json:"size_epoch"`
	NeedsUpdate bool             `json:"needs_update"`
}

func toFileStatus(f *fileid.File) fileStatus {
	return fileStatus{
		ID:          f.ID,
		Policy:      f.Policy,
		Nodes:       f.Nodes,
		SizeEpoch:   f.SizeEpoch(),
		NeedsUpdate: f.NeedsUpdate(),
	}
}

func (c *FilesController) IndexOpenFiles(ctx echo.Context) error {
	files := []fileStatus{}
	c.registry.ForEach(func(f *fileid.File) bool {
		files = append(files, toFileStatus(f))
		return true
	})

	return ctx.JSON(http.StatusOK, files)
}

func (c *FilesController) GetFile(ctx echo.Context) error {
	f, err := mdsync.OpenFile(c.registry, c.fileStor, ctx.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}

	return ctx.JSON(http.StatusOK, toFileStatus(f))
}

type createFileRequest struct {
	FileID string          `json:"file_id"`
	Policy striping.Policy `json:"policy"`
	Nodes  []string        `json:"nodes"`
}

func (c *FilesController) CreateFile(ctx echo.Context) error {
	var req createFileRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}

	f, err := fileid.New(req.FileID, req.Policy, req.Nodes)
	if err != nil {
		return toHTTPError(err)
	}

	if f, err = mdsync.CreateFile(c.registry, c.fileStor, f); err != nil {
		return toHTTPError(err)
	}

	return ctx.JSON(http.StatusCreated, toFileStatus(f))
}

// ReadFile serves GET /files/:id/data?offset=N&size=M. The body holds the bytes read,
// which is fewer than size at the end of the file.
func (c *FilesController) ReadFile(ctx echo.Context) error {
	offset, err := int64Param(ctx, "offset")
	if err != nil {
		return err
	}

	size, err := int64Param(ctx, "size")
	if err != nil {
		return err
	}

	if size < 0 || size > MaxReadSize {
		return echo.NewHTTPError(http.StatusBadRequest, "size out of range")
	}

	f, err := mdsync.OpenFile(c.registry, c.fileStor, ctx.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}

	buf := make([]byte, size)
	n, err := c.fileIO.SubmitFileRead(ctx.Request().Context(), f, offset, buf)
	if err != nil {
		return toHTTPError(err)
	}

	return ctx.Blob(http.StatusOK, echo.MIMEOctetStream, buf[:n])
}

type writeResponse struct {
	BytesWritten int64            `json:"bytes_written"`
	SizeEpoch    fileid.SizeEpoch `json:"size_epoch"`
}

// WriteFile serves PUT /files/:id/data?offset=N with the bytes to write as the body.
func (c *FilesController) WriteFile(ctx echo.Context) error {
	offset, err := int64Param(ctx, "offset")
	if err != nil {
		return err
	}

	f, err := mdsync.OpenFile(c.registry, c.fileStor, ctx.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}

	data, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	n, err := c.fileIO.SubmitFileWrite(ctx.Request().Context(), f, offset, data)
	if err != nil {
		return toHTTPError(err)
	}

	return ctx.JSON(http.StatusOK, writeResponse{BytesWritten: n, SizeEpoch: f.SizeEpoch()})
}

func int64Param(ctx echo.Context, name string) (int64, error) {
	s := ctx.QueryParam(name)
	if s == "" {
		return 0, nil
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "bad "+name)
	}

	return v, nil
}

// toHTTPError maps the POSIX code behind err onto a status.
func toHTTPError(err error) error {
	status := http.StatusInternalServerError

	switch request.Errno(err) {
	case unix.ENOENT:
		status = http.StatusNotFound
	case unix.EEXIST:
		status = http.StatusConflict
	case unix.EINVAL, unix.EFBIG:
		status = http.StatusBadRequest
	case unix.EACCES:
		status = http.StatusForbidden
	case unix.EOPNOTSUPP:
		status = http.StatusNotImplemented
	case unix.ESHUTDOWN:
		status = http.StatusServiceUnavailable
	}

	return echo.NewHTTPError(status, err.Error())
}
