package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/whispertag/whispertag/internal/nfc"
	"github.com/whispertag/whispertag/internal/pack"
	"github.com/whispertag/whispertag/internal/relay"
)

// Config holds runtime settings for the WhisperTag client.
//
// Fields:
//   - GatewayEndpoints: storage endpoints tried in priority order.
//   - S3*: settings for the S3-compatible backend; when Bucket is empty the
//     HTTP gateway is used instead.
//   - RelayTTL: how long a stashed serial survives a navigation.
//   - RelayDBPath: location of the relay's sqlite slot.
//   - WriteTimeout: bound on a single tag-write attempt.
//   - MaxAudioSize: ceiling on the encrypted audio payload in bytes.
type Config struct {
	GatewayEndpoints []string

	S3Region       string
	S3BaseEndpoint string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string

	RelayTTL     time.Duration
	RelayDBPath  string
	WriteTimeout time.Duration
	MaxAudioSize int64
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.GatewayEndpoints = []string{"http://127.0.0.1:8080"}
	c.RelayTTL = relay.DefaultTTL
	c.RelayDBPath = filepath.Join(os.TempDir(), "whispertag-relay.db")
	c.WriteTimeout = nfc.DefaultWriteTimeout
	c.MaxAudioSize = pack.MaxAudioSize
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
