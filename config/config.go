package config

import (
	"flag"
	"time"
)

// Config holds httpbridged's runtime settings: the listener it binds, the
// scheme it tells bridge.Register to stamp onto reconstructed URLs, read/write
// timeouts, and a WebSocket message cap. app and transport do not apply the
// timeouts or the message cap to connections. Timeouts are stored in seconds
// (not time.Duration) so they round-trip cleanly through YAML and the
// Manager's reflection-based Unmarshal, which converts plain numeric kinds
// but knows nothing of named duration types.
type Config struct {
	ListenAddr    string `config:"listen"`
	Scheme        string `config:"scheme"`
	ReadTimeoutS  int    `config:"readtimeout"`
	WriteTimeoutS int    `config:"writetimeout"`
	MaxWSMessage  int64  `config:"maxwsmessage"`
}

// ReadTimeout is ReadTimeoutS as a time.Duration.
func (c *Config) ReadTimeout() time.Duration { return time.Duration(c.ReadTimeoutS) * time.Second }

// WriteTimeout is WriteTimeoutS as a time.Duration.
func (c *Config) WriteTimeout() time.Duration { return time.Duration(c.WriteTimeoutS) * time.Second }

func defaults() Config {
	return Config{
		ListenAddr:    ":8080",
		Scheme:        "http",
		ReadTimeoutS:  10,
		WriteTimeoutS: 30,
		MaxWSMessage:  32 * 1024 * 1024,
	}
}

// Load builds a Config from, in increasing precedence: built-in defaults,
// an optional YAML file, and HTTPBRIDGE_*-prefixed environment variables.
// file may be empty, in which case only defaults and env vars apply.
func Load(file string) (*Config, error) {
	cfg := defaults()

	m := NewManager()
	m.Set("listen", cfg.ListenAddr)
	m.Set("scheme", cfg.Scheme)
	m.Set("readtimeout", cfg.ReadTimeoutS)
	m.Set("writetimeout", cfg.WriteTimeoutS)
	m.Set("maxwsmessage", cfg.MaxWSMessage)

	if file != "" {
		if err := m.LoadFromYAML(file); err != nil {
			return nil, err
		}
	}
	m.LoadFromEnv("HTTPBRIDGE")

	if err := m.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromFlags is the cmd/httpbridged entry point's usual path: it defines
// -config and -listen flags, parses os.Args, and layers them over Load's
// defaults/file/env precedence (flags win last).
func LoadFromFlags(args []string) (*Config, error) {
	fs := flag.NewFlagSet("httpbridged", flag.ContinueOnError)
	configFile := fs.String("config", "", "path to a YAML config file")
	listen := fs.String("listen", "", "override the listen address")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := Load(*configFile)
	if err != nil {
		return nil, err
	}
	if *listen != "" {
		cfg.ListenAddr = *listen
	}
	return cfg, nil
}
