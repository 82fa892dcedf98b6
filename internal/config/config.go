package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	appdefaults "github.com/saker-ai/spot-sdk/config"
	"github.com/saker-ai/spot-sdk/internal/logger"
	"github.com/saker-ai/spot-sdk/pkg/spot"
)

const (
	envPrefix    = "spot"
	rootDirEnv   = "SPOT_ROOT_DIR"
	confFileName = "conf.yaml"
)

// SettleConfig holds the client-side pauses after live motion commands.
type SettleConfig struct {
	Stand  time.Duration `mapstructure:"stand"`
	Sit    time.Duration `mapstructure:"sit"`
	Rotate time.Duration `mapstructure:"rotate"`
	Walk   time.Duration `mapstructure:"walk"`
}

// DevServerConfig configures the local stand-in control server.
type DevServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// Config represents a config.
type Config struct {
	RootDir          string          `mapstructure:"-"`
	ServerAddr       string          `mapstructure:"server_addr"`
	Identity         string          `mapstructure:"identity"`
	KeepAlive        string          `mapstructure:"keep_alive"`
	Reconnect        bool            `mapstructure:"reconnect"`
	HTTPTimeout      time.Duration   `mapstructure:"http_timeout"`
	DialTimeout      time.Duration   `mapstructure:"dial_timeout"`
	Settle           SettleConfig    `mapstructure:"settle"`
	SourceExtensions []string        `mapstructure:"source_extensions"`
	ScriptsDir       string          `mapstructure:"scripts_dir"`
	JournalDir       string          `mapstructure:"journal_dir"`
	DevServer        DevServerConfig `mapstructure:"devserver"`
	Log              logger.Config   `mapstructure:"log"`
}

// Load reads the embedded defaults, then conf.yaml from the root directory
// if present, then SPOT_* environment variables.
func Load() (Config, error) {
	rootDir, err := resolveRootDir()
	if err != nil {
		return Config{}, err
	}

	v, err := newViper()
	if err != nil {
		return Config{}, err
	}
	v.SetConfigName(strings.TrimSuffix(confFileName, filepath.Ext(confFileName)))
	v.AddConfigPath(rootDir)
	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, err
		}
	}

	return decode(v, rootDir)
}

// LoadConfig loads an explicit config file; an empty path behaves like Load.
func LoadConfig(configPath string) (Config, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		return Load()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, err
	}

	rootDir := strings.TrimSpace(os.Getenv(rootDirEnv))
	if rootDir == "" {
		rootDir = filepath.Dir(absPath)
	}

	v, err := newViper()
	if err != nil {
		return Config{}, err
	}
	v.SetConfigFile(absPath)
	if err := v.MergeInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", absPath, err)
	}

	return decode(v, rootDir)
}

func newViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(appdefaults.Default)); err != nil {
		return nil, fmt.Errorf("load embedded config: %w", err)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

func decode(v *viper.Viper, rootDir string) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.RootDir = rootDir
	if err := normalize(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func normalize(cfg *Config) error {
	cfg.ServerAddr = strings.TrimSpace(cfg.ServerAddr)
	if cfg.ServerAddr == "" {
		cfg.ServerAddr = spot.DefaultServerAddr
	}
	cfg.Identity = strings.TrimSpace(cfg.Identity)
	if cfg.Identity == "" {
		cfg.Identity = "spotctl-" + uuid.NewString()[:8]
	}

	switch spot.KeepAlive(strings.ToLower(strings.TrimSpace(cfg.KeepAlive))) {
	case spot.KeepAliveForever:
		cfg.KeepAlive = string(spot.KeepAliveForever)
	case spot.KeepAliveUntilDone, "":
		cfg.KeepAlive = string(spot.KeepAliveUntilDone)
	default:
		return fmt.Errorf("keep_alive must be %q or %q, got %q", spot.KeepAliveForever, spot.KeepAliveUntilDone, cfg.KeepAlive)
	}

	for i, ext := range cfg.SourceExtensions {
		ext = strings.TrimSpace(ext)
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cfg.SourceExtensions[i] = ext
	}

	cfg.ScriptsDir = resolvePath(cfg.RootDir, cfg.ScriptsDir, "scripts")
	cfg.JournalDir = resolvePath(cfg.RootDir, cfg.JournalDir, filepath.Join("data", "programs"))
	return nil
}

// SDK maps the application config onto the client configuration.
func (c Config) SDK() spot.Config {
	settle := spot.SettleDurations{
		Stand:  c.Settle.Stand,
		Sit:    c.Settle.Sit,
		Rotate: c.Settle.Rotate,
		Walk:   c.Settle.Walk,
	}
	return spot.Config{
		ServerAddr:       c.ServerAddr,
		Settle:           &settle,
		Reconnect:        c.Reconnect,
		HTTPTimeout:      c.HTTPTimeout,
		DialTimeout:      c.DialTimeout,
		SourceExtensions: c.SourceExtensions,
	}
}

func resolveRootDir() (string, error) {
	if root := strings.TrimSpace(os.Getenv(rootDirEnv)); root != "" {
		return filepath.Abs(root)
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := wd
	for i := 0; i < 6; i++ {
		if fileExists(filepath.Join(dir, confFileName)) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return wd, nil
}

func resolvePath(rootDir string, configured string, fallback string) string {
	path := strings.TrimSpace(configured)
	if path == "" {
		path = fallback
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(rootDir, path)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
