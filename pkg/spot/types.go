package spot

import (
	"net/http"
	"strings"
	"time"
)

// DefaultServerAddr is the address the control server listens on out of the box.
const DefaultServerAddr = "192.168.4.55:8000"

// KeepAlive selects how long a live session is kept open.
type KeepAlive string

const (
	// KeepAliveForever runs until the caller stops the session.
	KeepAliveForever KeepAlive = "forever"
	// KeepAliveUntilDone stops once the live queue has drained.
	KeepAliveUntilDone KeepAlive = "until_done"
)

// SettleDurations are the client-side pauses after live motion commands.
type SettleDurations struct {
	Stand  time.Duration
	Sit    time.Duration
	Rotate time.Duration
	Walk   time.Duration
}

// DefaultSettleDurations approximates how long each motion takes on the robot.
func DefaultSettleDurations() SettleDurations {
	return SettleDurations{
		Stand:  2 * time.Second,
		Sit:    2 * time.Second,
		Rotate: 100 * time.Millisecond,
		Walk:   time.Second,
	}
}

func (s SettleDurations) forVerb(verb Verb) time.Duration {
	switch verb {
	case VerbStand:
		return s.Stand
	case VerbSit:
		return s.Sit
	case VerbRotate:
		return s.Rotate
	case VerbWalk:
		return s.Walk
	default:
		return 0
	}
}

// Config represents a config.
type Config struct {
	// ServerAddr is host:port of the control server.
	ServerAddr string
	// Settle overrides DefaultSettleDurations when non-nil.
	Settle *SettleDurations
	// Reconnect re-dials the live connection with backoff after a transport
	// failure. Peer closure is never retried.
	Reconnect   bool
	HTTPTimeout time.Duration
	DialTimeout time.Duration
	// SourceExtensions lists the file suffixes accepted by UploadFile.
	SourceExtensions []string
	HTTPClient       *http.Client
	// Recorder, when set, receives every flushed program and its outcome.
	Recorder ProgramRecorder
}

// Endpoints are the URLs derived from a server address.
type Endpoints struct {
	Program string
	File    string
	Live    string
}

// EndpointsFor derives the program, file and live URLs for addr.
func EndpointsFor(addr string) Endpoints {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		addr = DefaultServerAddr
	}
	return Endpoints{
		Program: "http://" + addr + "/program",
		File:    "http://" + addr + "/file",
		Live:    "ws://" + addr + "/scratch-ws/",
	}
}

func normalizeConfig(cfg Config) Config {
	cfg.ServerAddr = strings.TrimSpace(cfg.ServerAddr)
	if cfg.ServerAddr == "" {
		cfg.ServerAddr = DefaultServerAddr
	}
	if cfg.Settle == nil {
		settle := DefaultSettleDurations()
		cfg.Settle = &settle
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if len(cfg.SourceExtensions) == 0 {
		cfg.SourceExtensions = []string{".py"}
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	return cfg
}
