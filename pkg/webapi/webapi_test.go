package webapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/apex/log"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/clog"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/fileid"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/mddb/stor"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/osd"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/pipeline"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/stage"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/striping"
)

func newTestServer(t *testing.T) (*echo.Echo, *fileid.Registry) {
	p, err := pipeline.New(osd.NewInMemoryCluster(), pipeline.Config{StripeThreads: 2})
	require.NoError(t, err)
	t.Cleanup(p.Stop)

	registry := fileid.NewRegistry()
	e := echo.New()
	SetupRoutes(e, RouteDependencies{
		Stages:   p,
		FileIO:   p,
		Registry: registry,
		FileStor: stor.NewInMemoryFileStor(nil),
	})

	return e, registry
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestStagesAndStats(t *testing.T) {
	e, _ := newTestServer(t)

	rec := do(e, http.MethodGet, "/api/stages", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snaps []stage.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snaps))
	require.Len(t, snaps, 3)
	require.Equal(t, pipeline.StageFileRW, snaps[0].Name)
	require.Equal(t, 2, snaps[2].Threads)

	rec = do(e, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]stage.StatsSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Contains(t, stats, pipeline.StageStripeObject)

	rec = do(e, http.MethodPost, "/api/stages/log", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestFiles(t *testing.T) {
	e, registry := newTestServer(t)

	f, err := fileid.New("vol:7", striping.NewRAID0(64*1024, 1), []string{"osd0"})
	require.NoError(t, err)
	registry.Open(f)
	f.MergeSizeEpoch(fileid.SizeEpoch{Size: 10, Epoch: 1})

	rec := do(e, http.MethodGet, "/api/files", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var files []fileStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &files))
	require.Len(t, files, 1)
	require.True(t, files[0].NeedsUpdate)
	require.Equal(t, striping.NewRAID0(64*1024, 1), files[0].Policy)

	rec = do(e, http.MethodGet, "/api/files/vol:7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"stripe-size":64`)

	rec = do(e, http.MethodGet, "/api/files/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetLogLevel(t *testing.T) {
	e, _ := newTestServer(t)
	t.Cleanup(func() { clog.SetGlobalLoggerLevel(log.InfoLevel) })

	rec := do(e, http.MethodPost, "/api/set-logging-level", `{"log_level":"debug"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, log.DebugLevel, clog.Default().GlobalLogger.Level)

	rec = do(e, http.MethodPost, "/api/set-logging-level", `{"log_level":"loud"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPost, "/api/set-logging-level", `{"context":"nosuch","log_level":"info"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodGet, "/api/show-logging", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"current_log_file":"stderr"`)
}

func TestCreateWriteRead(t *testing.T) {
	e, registry := newTestServer(t)

	body := `{"file_id":"vol:io","policy":{"policy":"RAID0","stripe-size":1,"width":2},"nodes":["osd0","osd1"]}`
	rec := do(e, http.MethodPost, "/api/files", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, registry.Get("vol:io"))

	rec = do(e, http.MethodPost, "/api/files", body)
	require.Equal(t, http.StatusConflict, rec.Code)

	data := strings.Repeat("0123456789", 300)
	rec = do(e, http.MethodPut, "/api/files/vol:io/data?offset=100", data)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var wr writeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wr))
	require.Equal(t, int64(len(data)), wr.BytesWritten)
	require.Equal(t, fileid.SizeEpoch{Size: int64(100 + len(data)), Epoch: 0}, wr.SizeEpoch)

	rec = do(e, http.MethodGet, "/api/files/vol:io/data?offset=100&size=5000", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, data, rec.Body.String())

	rec = do(e, http.MethodGet, "/api/files/vol:io/data?offset=x", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodGet, "/api/files/vol:io/data?offset=-5&size=1", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRejectsBadPolicy(t *testing.T) {
	e, _ := newTestServer(t)

	rec := do(e, http.MethodPost, "/api/files", `{"file_id":"vol:bad","policy":{"policy":"RAID0","stripe-size":1,"width":3},"nodes":["a"]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPost, "/api/files", `{"file_id":"vol:r5","policy":{"policy":"RAID5","stripe-size":1,"width":1},"nodes":["a"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(e, http.MethodPut, "/api/files/vol:r5/data", "abc")
	require.Equal(t, http.StatusNotImplemented, rec.Code)
}
