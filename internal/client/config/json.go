package config

import (
	"encoding/json"
	"os"

	"github.com/whispertag/whispertag/internal/flagx"
	"github.com/whispertag/whispertag/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "45s"
// or as integer nanoseconds.
type JsonConfig struct {
	GatewayEndpoints []string       `json:"gateway_endpoints"`
	S3Region         string         `json:"s3_region"`
	S3BaseEndpoint   string         `json:"s3_base_endpoint"`
	S3Bucket         string         `json:"s3_bucket"`
	S3AccessKey      string         `json:"s3_access_key"`
	S3SecretKey      string         `json:"s3_secret_key"`
	RelayTTL         timex.Duration `json:"relay_ttl"`
	RelayDBPath      string         `json:"relay_db_path"`
	WriteTimeout     timex.Duration `json:"write_timeout"`
	MaxAudioSize     int64          `json:"max_audio_size"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// the -c/-config flag. Missing file path means no JSON stage. Panics on read
// or unmarshal errors; intended usage is defaults -> parseJson -> parseFlags,
// where later stages override earlier ones.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if len(jc.GatewayEndpoints) > 0 {
		cfg.GatewayEndpoints = jc.GatewayEndpoints
	}
	cfg.S3Region = jc.S3Region
	cfg.S3BaseEndpoint = jc.S3BaseEndpoint
	cfg.S3Bucket = jc.S3Bucket
	cfg.S3AccessKey = jc.S3AccessKey
	cfg.S3SecretKey = jc.S3SecretKey
	if jc.RelayTTL.Duration > 0 {
		cfg.RelayTTL = jc.RelayTTL.Duration
	}
	if jc.RelayDBPath != "" {
		cfg.RelayDBPath = jc.RelayDBPath
	}
	if jc.WriteTimeout.Duration > 0 {
		cfg.WriteTimeout = jc.WriteTimeout.Duration
	}
	if jc.MaxAudioSize > 0 {
		cfg.MaxAudioSize = jc.MaxAudioSize
	}
}
