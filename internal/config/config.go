// Package config holds the settings every component receives at
// construction. The configuration is read once at start-up from the
// environment (Region, BucketName, BackupEnabledTag, UseDataPipelineFormat
// and friends), optional .env file, and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/lestrrat-go/strftime"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/coffersTech/dynamobackup/internal/pkg/transcode"
)

// Compression codecs of backup objects.
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
	CompressionGzip = "gzip"
)

// Config is the explicit configuration of one process.
type Config struct {
	Region           string `validate:"required"`
	BucketName       string `validate:"required_without=LocalDir"`
	BackupEnabledTag string `validate:"required"`

	// UseDataPipelineFormat selects renamed transcoding.
	UseDataPipelineFormat bool

	// DispatchTarget is the function invoked per table; empty means the
	// running function.
	DispatchTarget string

	// LocalDir makes backups go below this directory instead of S3.
	LocalDir string

	// ControlTokenHash is a bcrypt hash guarding the control API.
	ControlTokenHash string

	KeyPrefix         string
	BackupTableConfig bool
	ListenAddr        string
	RunTTL            time.Duration

	// PathLayout is the strftime layout of the timestamp key segment.
	PathLayout   string            `validate:"required"`
	Compression  string            `validate:"oneof=none zstd gzip"`
	ScanPageSize int32             `validate:"min=1"`
	PartSize     datasize.ByteSize `validate:"min=5242880"`
	Workers      int               `validate:"min=1"`
	LogLevel     string            `validate:"oneof=debug info warn error"`
}

// Option keys. Each is also the name of its environment variable.
const (
	EnvRegion                = "Region"
	EnvBucketName            = "BucketName"
	EnvBackupEnabledTag      = "BackupEnabledTag"
	EnvUseDataPipelineFormat = "UseDataPipelineFormat"
	EnvKeyPrefix             = "KeyPrefix"
	EnvPathLayout            = "PathLayout"
	EnvCompression           = "Compression"
	EnvScanPageSize          = "ScanPageSize"
	EnvPartSize              = "PartSize"
	EnvBackupTableConfig     = "BackupTableConfig"
	EnvDispatchTarget        = "DispatchTarget"
	EnvWorkers               = "Workers"
	EnvLocalDir              = "LocalDir"
	EnvListenAddr            = "ListenAddr"
	EnvControlTokenHash      = "ControlTokenHash"
	EnvRunTTL                = "RunTTL"
	EnvLogLevel              = "LogLevel"
)

var defaults = map[string]any{
	EnvBackupEnabledTag:      "BackupEnabled",
	EnvUseDataPipelineFormat: false,
	EnvPathLayout:            "%Y/%m/%d/%H/%M",
	EnvCompression:           CompressionNone,
	EnvScanPageSize:          100,
	EnvPartSize:              "8MB",
	EnvBackupTableConfig:     false,
	EnvWorkers:               4,
	EnvListenAddr:            ":8080",
	EnvRunTTL:                "1h",
	EnvLogLevel:              "info",
}

// flagNames maps option keys to command-line flags.
var flagNames = map[string]string{
	EnvRegion:                "region",
	EnvBucketName:            "bucket",
	EnvBackupEnabledTag:      "tag",
	EnvUseDataPipelineFormat: "data-pipeline",
	EnvKeyPrefix:             "key-prefix",
	EnvCompression:           "compression",
	EnvLocalDir:              "local-dir",
	EnvLogLevel:              "log-level",
	EnvWorkers:               "workers",
	EnvListenAddr:            "listen",
}

// Bind registers defaults, environment variables and any of the given
// flags that map to an option. flags may be nil.
func Bind(v *viper.Viper, flags *pflag.FlagSet) error {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for _, key := range keys() {
		if err := v.BindEnv(key, key); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	if flags == nil {
		return nil
	}
	for key, name := range flagNames {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind flag --%s: %w", name, err)
			}
		}
	}
	return nil
}

// LoadDotEnv loads variables from path into the process environment
// without overriding what is already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads a Config from v. It does not validate; see Validate.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Region:                v.GetString(EnvRegion),
		BucketName:            v.GetString(EnvBucketName),
		BackupEnabledTag:      v.GetString(EnvBackupEnabledTag),
		UseDataPipelineFormat: v.GetBool(EnvUseDataPipelineFormat),
		KeyPrefix:             v.GetString(EnvKeyPrefix),
		PathLayout:            v.GetString(EnvPathLayout),
		Compression:           v.GetString(EnvCompression),
		ScanPageSize:          v.GetInt32(EnvScanPageSize),
		BackupTableConfig:     v.GetBool(EnvBackupTableConfig),
		DispatchTarget:        v.GetString(EnvDispatchTarget),
		Workers:               v.GetInt(EnvWorkers),
		LocalDir:              v.GetString(EnvLocalDir),
		ListenAddr:            v.GetString(EnvListenAddr),
		ControlTokenHash:      v.GetString(EnvControlTokenHash),
		LogLevel:              v.GetString(EnvLogLevel),
	}

	if err := cfg.PartSize.UnmarshalText([]byte(v.GetString(EnvPartSize))); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", EnvPartSize, err)
	}
	ttl, err := time.ParseDuration(v.GetString(EnvRunTTL))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", EnvRunTTL, err)
	}
	cfg.RunTTL = ttl

	return cfg, nil
}

// Validate checks the options needed to run backups.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := strftime.New(c.PathLayout); err != nil {
		return fmt.Errorf("invalid configuration: %s: %w", EnvPathLayout, err)
	}
	return nil
}

// Mode returns the transcoding mode selected by UseDataPipelineFormat.
func (c *Config) Mode() transcode.Mode {
	return transcode.ModeFor(c.UseDataPipelineFormat)
}

func keys() []string {
	return []string{
		EnvRegion, EnvBucketName, EnvBackupEnabledTag, EnvUseDataPipelineFormat,
		EnvKeyPrefix, EnvPathLayout, EnvCompression, EnvScanPageSize, EnvPartSize,
		EnvBackupTableConfig, EnvDispatchTarget, EnvWorkers, EnvLocalDir,
		EnvListenAddr, EnvControlTokenHash, EnvRunTTL, EnvLogLevel,
	}
}
