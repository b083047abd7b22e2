package webapi

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/fileid"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/mddb/stor"
)

type RouteDependencies struct {
	Stages   StageSource
	FileIO   FileIO
	Registry *fileid.Registry
	FileStor stor.FileStor
}

func SetupRoutes(e *echo.Echo, deps RouteDependencies) {
	e.Use(middleware.Recover())
	g := e.Group("/api")

	logController := NewLogController()
	g.POST("/set-logging-level", logController.SetLogLevel)
	g.POST("/set-logging-output", logController.SetLogOutput)
	g.GET("/show-logging", logController.ShowCurrentLogging)

	stagesController := NewStagesController(deps.Stages)
	g.GET("/stages", stagesController.IndexStages)
	g.POST("/stages/log", stagesController.LogStages)
	g.GET("/stats", stagesController.ShowStats)

	filesController := NewFilesController(deps.Registry, deps.FileStor, deps.FileIO)
	g.GET("/files", filesController.IndexOpenFiles)
	g.POST("/files", filesController.CreateFile)
	g.GET("/files/:id", filesController.GetFile)
	g.GET("/files/:id/data", filesController.ReadFile)
	g.PUT("/files/:id/data", filesController.WriteFile)
}
