package webapi

import (
	"net/http"
	"os"
	"sync"

	"github.com/apex/log"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/clog"
)

// LogController adjusts the level and output of the global logger and of the per stage
// logging contexts.
type LogController struct {
	mu              sync.Mutex
	CurrentLogLevel log.Level `json:"current_log_level"`
	CurrentLogFile  string    `json:"current_log_file"`
	Contexts        []string  `json:"contexts"`
}

// NewLogController creates a new LogController
func NewLogController() *LogController {
	return &LogController{
		CurrentLogLevel: clog.Default().GlobalLogger.Level,
		CurrentLogFile:  "stderr",
	}
}

type setLoggingRequest struct {
	Context   string `json:"context"`
	LogLevel  string `json:"log_level"`
	LogOutput string `json:"log_output"`
}

func (c *LogController) SetLogLevel(ctx echo.Context) error {
	var req setLoggingRequest

	if err := ctx.Bind(&req); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.setLoggingLevel(req.Context, req.LogLevel); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return ctx.JSON(http.StatusOK, c.show())
}

func (c *LogController) setLoggingLevel(loggingCtx, logLevel string) error {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return errors.Wrapf(err, "Invalid log level %s", logLevel)
	}

	if loggingCtx == "" {
		loggingCtx = clog.GlobalLoggerCtx
	}

	if err := clog.SetLevel(loggingCtx, level); err != nil {
		return err
	}

	if loggingCtx == clog.GlobalLoggerCtx {
		c.CurrentLogLevel = level
	}

	return nil
}

func (c *LogController) SetLogOutput(ctx echo.Context) error {
	var req setLoggingRequest

	if err := ctx.Bind(&req); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.setLoggingOutput(req.LogOutput); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return ctx.JSON(http.StatusOK, c.show())
}

func (c *LogController) setLoggingOutput(logOutput string) error {
	var w *os.File

	switch logOutput {
	case "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		// A file was specified, verify that we can write to it.
		f, err := os.Create(logOutput)
		if err != nil {
			return errors.Wrapf(err, "Failed to open LogOutput %s", logOutput)
		}
		w = f
	}

	if err := clog.SetOutput(clog.GlobalLoggerCtx, w); err != nil {
		return err
	}

	c.CurrentLogFile = logOutput
	return nil
}

func (c *LogController) ShowCurrentLogging(ctx echo.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return ctx.JSON(http.StatusOK, c.show())
}

// show returns a copy for rendering. Callers hold mu.
func (c *LogController) show() *LogController {
	return &LogController{
		CurrentLogLevel: c.CurrentLogLevel,
		CurrentLogFile:  c.CurrentLogFile,
		Contexts:        clog.Contexts(),
	}
}
