package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultPort       = 4242
	DefaultServerHost = "127.0.0.1"
)

var ErrUsage = errors.New("usage")

// LoadEnvFile copies variables from the given env files (".env" when none
// are named) into the process environment. Variables already set win, and
// a missing file is not an error.
func LoadEnvFile(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// Server configures cmd/server. Environment variables give the defaults,
// flags override them and a single positional argument sets the port.
type Server struct {
	Port         int
	Game         string
	SpectateAddr string
	Password     string
	IdleTimeout  time.Duration
	MaxRetries   int
}

// Client configures cmd/client: <host> <server-port> <local-port>.
type Client struct {
	ServerHost string
	ServerPort int
	LocalPort  int
	MaxRetries int
}

func (c Client) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// ParseServer reads PORT, GAME, SPECTATE_ADDR, GAME_PASSWORD, IDLE_TIMEOUT
// and MAX_RETRIES, then applies flags and the optional positional port.
func ParseServer(args []string, getenv func(string) string, stderr io.Writer) (Server, error) {
	cfg := Server{
		Port:         DefaultPort,
		Game:         getenv("GAME"),
		SpectateAddr: getenv("SPECTATE_ADDR"),
		Password:     getenv("GAME_PASSWORD"),
	}
	var err error
	if cfg.Port, err = envInt(getenv, "PORT", DefaultPort); err != nil {
		return cfg, err
	}
	if cfg.IdleTimeout, err = envDuration(getenv, "IDLE_TIMEOUT", 0); err != nil {
		return cfg, err
	}
	if cfg.MaxRetries, err = envInt(getenv, "MAX_RETRIES", 0); err != nil {
		return cfg, err
	}

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: server [flags] [port]\n")
		fs.PrintDefaults()
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "UDP port to listen on")
	fs.StringVar(&cfg.Game, "game", cfg.Game, "game to run; prompts when empty")
	fs.StringVar(&cfg.SpectateAddr, "spectate", cfg.SpectateAddr, "HTTP address for spectators, e.g. :8080")
	fs.DurationVar(&cfg.IdleTimeout, "idle-timeout", cfg.IdleTimeout, "evict clients silent this long (0 disables)")
	fs.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "retransmissions before giving up on a message (0 retries forever)")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	switch fs.NArg() {
	case 0:
	case 1:
		port, err := parsePort(fs.Arg(0))
		if err != nil {
			return cfg, err
		}
		cfg.Port = port
	default:
		fs.Usage()
		return cfg, ErrUsage
	}
	return cfg, cfg.Validate()
}

func (c Server) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("idle timeout %v is negative", c.IdleTimeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries %d is negative", c.MaxRetries)
	}
	return nil
}

// ParseClient expects exactly three positional arguments.
func ParseClient(args []string, getenv func(string) string, stderr io.Writer) (Client, error) {
	var cfg Client
	var err error
	if cfg.MaxRetries, err = envInt(getenv, "MAX_RETRIES", 0); err != nil {
		return cfg, err
	}

	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: client [flags] <host> <server-port> <client-port>\n")
		fs.PrintDefaults()
	}
	fs.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "retransmissions before giving up on a message (0 retries forever)")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if fs.NArg() != 3 {
		fs.Usage()
		return cfg, ErrUsage
	}

	cfg.ServerHost = fs.Arg(0)
	if cfg.ServerPort, err = parsePort(fs.Arg(1)); err != nil {
		return cfg, err
	}
	if cfg.LocalPort, err = parsePort(fs.Arg(2)); err != nil {
		return cfg, err
	}
	if cfg.MaxRetries < 0 {
		return cfg, fmt.Errorf("max retries %d is negative", cfg.MaxRetries)
	}
	return cfg, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", s, err)
	}
	if port < 0 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range", port)
	}
	return port, nil
}

func envInt(getenv func(string) string, key string, def int) (int, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envDuration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
