package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/atomicstack/inkd/internal/app"
	"github.com/atomicstack/inkd/internal/lock"
	"github.com/atomicstack/inkd/internal/producer"
	"github.com/atomicstack/inkd/internal/rshell"
	"github.com/spf13/pflag"
)

// Config captures runtime configuration for the daemon and its subcommands.
type Config struct {
	Daemon    app.Config
	Logging   Logging
	LockPath  string
	Device    string
	SentryDSN string
	// Source is the config file that was read, empty when none was.
	Source string
	Flags  map[string]string
	Args   []string
}

type Logging struct {
	FilePath string
	Trace    bool
}

// Device backends.
const (
	DeviceAuto     = "auto"
	DeviceSim      = "sim"
	DeviceHeadless = "headless"
)

const (
	DefaultPath         = "/etc/inkd/inkd.toml"
	DefaultRPCAddr      = ":50051"
	DefaultSSHConfigDir = "/etc/inkd/ssh"
	DefaultLogFile      = "/tmp/inkd.log"
)

const (
	envConfig       = "INKD_CONFIG"
	envRPCAddr      = "INKD_RPC_ADDR"
	envSSHPort      = "INKD_SSH_PORT"
	envSSHConfigDir = "INKD_SSH_CONFIG_DIR"
	envKeepalive    = "INKD_KEEPALIVE"
	envLogFile      = "INKD_LOG_FILE"
	envTrace        = "INKD_TRACE"
	envLockFile     = "INKD_LOCK_FILE"
	envDevice       = "INKD_DEVICE"
	envSentryDSN    = "INKD_SENTRY_DSN"
)

// Flag names shared by RegisterFlags and ApplyFlags.
const (
	flagConfig       = "config"
	flagRPCAddr      = "rpc-addr"
	flagSSHPort      = "ssh-port"
	flagSSHConfigDir = "ssh-config-dir"
	flagKeepalive    = "keepalive"
	flagLogFile      = "log-file"
	flagTrace        = "trace"
	flagLockFile     = "lock-file"
	flagDevice       = "device"
)

// fileConfig is the on-disk TOML layout.
type fileConfig struct {
	Device    string `toml:"device"`
	LockFile  string `toml:"lock_file"`
	SentryDSN string `toml:"sentry_dsn"`
	RPC       struct {
		Addr string `toml:"addr"`
	} `toml:"rpc"`
	SSH struct {
		Port      int    `toml:"port"`
		ConfigDir string `toml:"config_dir"`
	} `toml:"ssh"`
	Keepalive struct {
		Interval string `toml:"interval"`
	} `toml:"keepalive"`
	Log struct {
		File  string `toml:"file"`
		Trace *bool  `toml:"trace"`
	} `toml:"log"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Daemon: app.Config{
			RPCAddr:           DefaultRPCAddr,
			SSHPort:           rshell.DefaultPort,
			SSHConfigDir:      DefaultSSHConfigDir,
			KeepaliveInterval: producer.DefaultKeepaliveInterval,
		},
		Logging:  Logging{FilePath: DefaultLogFile},
		LockPath: lock.DefaultPath,
		Device:   DeviceAuto,
	}
}

// Load reads configuration from the default locations and the process
// environment.
func Load() (Config, error) {
	return LoadEnv("", os.Environ())
}

// LoadEnv allows tests to supply a config path and environment. An empty
// path uses $INKD_CONFIG, then DefaultPath; only an explicitly named file
// has to exist.
func LoadEnv(path string, environ []string) (Config, error) {
	env := parseEnv(environ)
	cfg := Defaults()

	explicit := path != ""
	if !explicit {
		if v := envOrDefault(env, envConfig, ""); v != "" {
			path, explicit = v, true
		} else {
			path = DefaultPath
		}
	}
	if err := applyFile(&cfg, path, explicit); err != nil {
		return Config{}, err
	}

	cfg.Daemon.RPCAddr = envOrDefault(env, envRPCAddr, cfg.Daemon.RPCAddr)
	cfg.Daemon.SSHPort = envOrInt(env, envSSHPort, cfg.Daemon.SSHPort)
	cfg.Daemon.SSHConfigDir = envOrDefault(env, envSSHConfigDir, cfg.Daemon.SSHConfigDir)
	cfg.Daemon.KeepaliveInterval = envOrDuration(env, envKeepalive, cfg.Daemon.KeepaliveInterval)
	cfg.Logging.FilePath = envOrDefault(env, envLogFile, cfg.Logging.FilePath)
	cfg.Logging.Trace = envOrBool(env, envTrace, cfg.Logging.Trace)
	cfg.LockPath = envOrDefault(env, envLockFile, cfg.LockPath)
	cfg.Device = envOrDefault(env, envDevice, cfg.Device)
	cfg.SentryDSN = envOrDefault(env, envSentryDSN, cfg.SentryDSN)

	cfg.recordFlags()
	return cfg, nil
}

func applyFile(cfg *Config, path string, required bool) error {
	var fc fileConfig
	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	cfg.Source = path

	if fc.Device != "" {
		cfg.Device = fc.Device
	}
	if fc.LockFile != "" {
		cfg.LockPath = fc.LockFile
	}
	if fc.SentryDSN != "" {
		cfg.SentryDSN = fc.SentryDSN
	}
	if fc.RPC.Addr != "" {
		cfg.Daemon.RPCAddr = fc.RPC.Addr
	}
	if fc.SSH.Port != 0 {
		cfg.Daemon.SSHPort = fc.SSH.Port
	}
	if fc.SSH.ConfigDir != "" {
		cfg.Daemon.SSHConfigDir = fc.SSH.ConfigDir
	}
	if fc.Keepalive.Interval != "" {
		d, err := time.ParseDuration(fc.Keepalive.Interval)
		if err != nil {
			return fmt.Errorf("config %s: keepalive.interval: %w", path, err)
		}
		cfg.Daemon.KeepaliveInterval = d
	}
	if fc.Log.File != "" {
		cfg.Logging.FilePath = fc.Log.File
	}
	if fc.Log.Trace != nil {
		cfg.Logging.Trace = *fc.Log.Trace
	}
	return nil
}

// RegisterFlags declares the configuration flags on fs. Their defaults are
// left empty so ApplyFlags only overrides what the user actually passed.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(flagConfig, "", "path to the TOML config file (default "+DefaultPath+")")
	fs.String(flagRPCAddr, "", "RPC listen address (default "+DefaultRPCAddr+")")
	fs.Int(flagSSHPort, 0, "remote shell port (default "+strconv.Itoa(rshell.DefaultPort)+")")
	fs.String(flagSSHConfigDir, "", "remote shell key directory (default "+DefaultSSHConfigDir+")")
	fs.Duration(flagKeepalive, 0, "network keepalive interval (default "+producer.DefaultKeepaliveInterval.String()+")")
	fs.String(flagLogFile, "", "path to the log file (default "+DefaultLogFile+")")
	fs.Bool(flagTrace, false, "enable verbose JSON trace logging")
	fs.String(flagLockFile, "", "path to the singleton lock file (default "+lock.DefaultPath+")")
	fs.String(flagDevice, "", "device backend: auto, sim or headless")
}

// ConfigPath returns the --config value, if the flag was registered and set.
func ConfigPath(fs *pflag.FlagSet) string {
	if f := fs.Lookup(flagConfig); f != nil && f.Changed {
		return f.Value.String()
	}
	return ""
}

// ApplyFlags overlays every flag the user set on cfg.
func ApplyFlags(cfg *Config, fs *pflag.FlagSet) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case flagRPCAddr:
			cfg.Daemon.RPCAddr = f.Value.String()
		case flagSSHPort:
			cfg.Daemon.SSHPort, err = fs.GetInt(f.Name)
		case flagSSHConfigDir:
			cfg.Daemon.SSHConfigDir = f.Value.String()
		case flagKeepalive:
			cfg.Daemon.KeepaliveInterval, err = fs.GetDuration(f.Name)
		case flagLogFile:
			cfg.Logging.FilePath = f.Value.String()
		case flagTrace:
			cfg.Logging.Trace, err = fs.GetBool(f.Name)
		case flagLockFile:
			cfg.LockPath = f.Value.String()
		case flagDevice:
			cfg.Device = f.Value.String()
		}
	})
	if err != nil {
		return err
	}
	cfg.recordFlags()
	return nil
}

func (cfg *Config) recordFlags() {
	cfg.Flags = map[string]string{
		"rpcAddr":      cfg.Daemon.RPCAddr,
		"sshPort":      strconv.Itoa(cfg.Daemon.SSHPort),
		"sshConfigDir": cfg.Daemon.SSHConfigDir,
		"keepalive":    cfg.Daemon.KeepaliveInterval.String(),
		"logFile":      cfg.Logging.FilePath,
		"trace":        strconv.FormatBool(cfg.Logging.Trace),
		"lockFile":     cfg.LockPath,
		"device":       cfg.Device,
	}
}

func parseEnv(environ []string) map[string]string {
	values := make(map[string]string, len(environ))
	for _, entry := range environ {
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		values[parts[0]] = parts[1]
	}
	return values
}

func envOrDefault(env map[string]string, key, fallback string) string {
	if v, ok := env[key]; ok && v != "" {
		return v
	}
	return fallback
}

func envOrInt(env map[string]string, key string, fallback int) int {
	v, ok := env[key]
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrBool(env map[string]string, key string, fallback bool) bool {
	v, ok := env[key]
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDuration(env map[string]string, key string, fallback time.Duration) time.Duration {
	v, ok := env[key]
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// Validate rejects configuration the daemon cannot start with.
func Validate(cfg Config) error {
	if err := validatePort("ssh port", cfg.Daemon.SSHPort); err != nil {
		return err
	}
	_, portStr, err := net.SplitHostPort(cfg.Daemon.RPCAddr)
	if err != nil {
		return fmt.Errorf("rpc address %q: %w", cfg.Daemon.RPCAddr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("rpc address %q: port is not a number", cfg.Daemon.RPCAddr)
	}
	if err := validatePort("rpc port", port); err != nil {
		return err
	}
	if cfg.Daemon.KeepaliveInterval <= 0 {
		return fmt.Errorf("keepalive interval must be > 0 (got %s)", cfg.Daemon.KeepaliveInterval)
	}
	switch cfg.Device {
	case DeviceAuto, DeviceSim, DeviceHeadless:
	default:
		return fmt.Errorf("unknown device backend %q (want auto, sim or headless)", cfg.Device)
	}
	if strings.TrimSpace(cfg.LockPath) == "" {
		return errors.New("lock file path must not be empty")
	}
	return nil
}

func validatePort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535 (got %d)", name, port)
	}
	return nil
}
