package devserver

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/saker-ai/spot-sdk/internal/protocol"
	"github.com/saker-ai/spot-sdk/pkg/spot"
	"github.com/saker-ai/spot-sdk/webassets"
)

// LivePath is where controllers open their websocket.
const LivePath = "/scratch-ws/"

func newRouter(s *Server, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/program", s.handleProgram)
	router.POST("/file", s.handleFile)

	router.GET(LivePath, func(c *gin.Context) {
		s.handleLive(c.Writer, c.Request)
	})

	router.GET("/controllers", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"controllers": s.Controllers()})
	})
	router.GET("/programs", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"programs": s.Programs()})
	})
	router.GET("/commands", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"commands": s.Commands()})
	})
	router.GET("/uploads", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uploads": s.Uploads()})
	})

	mountDashboard(router, logger)

	return router
}

func mountDashboard(router *gin.Engine, logger *zap.Logger) {
	dashboard, err := webassets.Subdir("dashboard")
	if err != nil {
		logger.Warn("dashboard assets unavailable", zap.Error(err))
		return
	}
	router.StaticFS("/dashboard", http.FS(dashboard))
}

func (s *Server) handleProgram(c *gin.Context) {
	var req protocol.ProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	submission := ProgramSubmission{Name: req.Name, At: time.Now()}
	commands, err := validateProgram(req)
	if err != nil {
		submission.Reason = err.Error()
	} else {
		submission.Commands = commands
		submission.Valid = true
	}
	s.recordProgram(submission)

	s.logger.Info("program received",
		zap.String("program", req.Name),
		zap.Int("commands", len(req.Commands)),
		zap.Bool("valid", submission.Valid),
		zap.String("reason", submission.Reason),
	)
	c.JSON(http.StatusOK, gin.H{"valid": submission.Valid})
}

func validateProgram(req protocol.ProgramRequest) ([]spot.Command, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, errors.New("program name is empty")
	}
	commands := make([]spot.Command, 0, len(req.Commands))
	for i, rec := range req.Commands {
		cmd, err := decodeCommand(rec.Command, rec.Args)
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", i, err)
		}
		commands = append(commands, cmd)
	}
	return commands, nil
}

func decodeCommand(name string, args map[string]float64) (spot.Command, error) {
	verb, err := spot.ParseVerb(name)
	if err != nil {
		return spot.Command{}, err
	}
	params := make(map[string]any, len(args))
	for k, v := range args {
		params[k] = v
	}
	return spot.Build(verb, params)
}

func (s *Server) handleFile(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	upload := Upload{At: time.Now()}
	if values := form.Value["folder"]; len(values) > 0 {
		folder, err := strconv.ParseBool(strings.TrimSpace(values[0]))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "folder must be a boolean"})
			return
		}
		upload.Folder = folder
	}
	if values := form.Value["main"]; len(values) > 0 {
		upload.Main = strings.TrimSpace(values[0])
	}
	for field, headers := range form.File {
		for _, header := range headers {
			upload.Files = append(upload.Files, field+":"+header.Filename)
		}
	}

	if reason := s.validateUpload(upload, form.File); reason != "" {
		upload.Reason = reason
	} else {
		upload.Valid = true
	}
	s.recordUpload(upload)

	s.logger.Info("file upload received",
		zap.Bool("folder", upload.Folder),
		zap.String("main", upload.Main),
		zap.Strings("files", upload.Files),
		zap.Bool("valid", upload.Valid),
		zap.String("reason", upload.Reason),
	)
	c.JSON(http.StatusOK, gin.H{"valid": upload.Valid})
}

func (s *Server) validateUpload(upload Upload, files map[string][]*multipart.FileHeader) string {
	if !s.sourceFile(upload.Main) {
		return "main file has an unsupported extension"
	}
	if len(upload.Files) == 0 {
		return "no files uploaded"
	}
	if upload.Folder {
		for field := range files {
			if field == upload.Main {
				return ""
			}
		}
		return "main file missing from folder"
	}
	single := files["file"]
	if len(single) != 1 {
		return "expected exactly one file part"
	}
	if !s.sourceFile(single[0].Filename) {
		return "file has an unsupported extension"
	}
	return ""
}

func (s *Server) sourceFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range s.opts.SourceExtensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		if logger == nil {
			return
		}
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("status", c.Writer.Status()),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("latency", latency),
		)
	}
}
