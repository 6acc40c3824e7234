package config

import "time"

// Config holds runtime settings for the upload client.
//
// Fields:
//   - ServerURL: base URL of the filevault HTTP endpoint.
//   - AccessToken: bearer token presented to authorize uploads.
//   - Project / Bucket: where uploaded files land.
//   - ChunkSize: bytes sent per blob request.
//   - RequestTimeout: upper bound for a single HTTP request.
//   - StatePath: SQLite file remembering the uploader identity between runs;
//     empty disables it.
type Config struct {
	ServerURL      string
	AccessToken    string
	Project        string
	Bucket         string
	ChunkSize      int64
	RequestTimeout time.Duration
	StatePath      string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.Bucket = "files"
	c.ChunkSize = 1 << 20
	c.RequestTimeout = 30 * time.Second
	c.StatePath = "filevault-client.db"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
