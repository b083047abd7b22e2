package webapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/stage"
)

// StageSource is the pipeline as seen by the diagnostics API.
type StageSource interface {
	Snapshot() []stage.Snapshot
	Stats() map[string]stage.StatsSnapshot
}

type StagesController struct {
	source StageSource
}

func NewStagesController(source StageSource) *StagesController {
	return &StagesController{source: source}
}

// IndexStages dumps the queues of the pipeline stages. With ?all=true it dumps every
// live stage in the process instead.
func (c *StagesController) IndexStages(ctx echo.Context) error {
	if ctx.QueryParam("all") == "true" {
		return ctx.JSON(http.StatusOK, stage.SnapshotAll())
	}

	return ctx.JSON(http.StatusOK, c.source.Snapshot())
}

func (c *StagesController) ShowStats(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.source.Stats())
}

// LogStages writes the dump of every live stage to the stage loggers.
func (c *StagesController) LogStages(ctx echo.Context) error {
	stage.LogAll()
	return ctx.NoContent(http.StatusNoContent)
}
