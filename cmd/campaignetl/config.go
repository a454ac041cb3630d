package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"

	dataops "github.com/alekLukanen/CampaignETL/dataOps"
	"github.com/alekLukanen/CampaignETL/elements"
	"github.com/alekLukanen/CampaignETL/pipeline"
	"github.com/alekLukanen/CampaignETL/runners"
	"github.com/alekLukanen/CampaignETL/storage"
)

// Config holds every option of the command. Each field is bound to a flag
// of the same name, which can also be set from the environment or a toml
// config file.
type Config struct {
	ConfigFile string `json:"-"`

	Bucket         string `json:"bucket"`
	SourcePrefix   string `json:"source-prefix"`
	OutputPrefix   string `json:"output-prefix"`
	OutputBaseName string `json:"output-basename"`
	ChunkCapacity  int    `json:"chunk-capacity"`
	Format         string `json:"format"`
	Manifest       bool   `json:"manifest"`

	StoreKind   string `json:"store"`
	FileRoot    string `json:"file-root"`
	S3Endpoint  string `json:"s3-endpoint"`
	S3Region    string `json:"s3-region"`
	S3AccessKey string `json:"-"`
	S3SecretKey string `json:"-"`
	S3PathStyle bool   `json:"s3-path-style"`

	RedisAddress  string        `json:"redis-address"`
	RedisPassword string        `json:"-"`
	RedisPrefix   string        `json:"redis-prefix"`
	LockDuration  time.Duration `json:"lock-duration"`

	LogLevel string   `json:"log-level"`
	Schema   []string `json:"schema"`
}

func defaultSchemaSpecs() []string {
	columns := elements.CampaignSchema().Columns()
	specs := make([]string, len(columns))
	for i, col := range columns {
		specs[i] = col.Spec()
	}
	return specs
}

func (obj *Config) AddFlags(flags *pflag.FlagSet) {
	defaults := pipeline.DefaultOptions()

	flags.StringVarP(&obj.ConfigFile, "config", "c", "", "Configuration file to read from.")

	flags.StringVar(&obj.Bucket, "bucket", "", "Bucket holding the source and output objects (also S3_BUCKET_NAME).")
	flags.StringVar(&obj.SourcePrefix, "source-prefix", defaults.SourcePrefix, "Key prefix searched for the newest source object.")
	flags.StringVar(&obj.OutputPrefix, "output-prefix", defaults.OutputPrefix, "Key prefix of the output parts.")
	flags.StringVar(&obj.OutputBaseName, "output-basename", defaults.OutputBaseName, "Base name of the output parts.")
	flags.IntVar(&obj.ChunkCapacity, "chunk-capacity", defaults.ChunkCapacity, "Rows per batch and output part, 0 writes a single object.")
	flags.StringVar(&obj.Format, "format", string(defaults.OutputFormat), "Output format: csv or parquet.")
	flags.BoolVar(&obj.Manifest, "manifest", false, "Write a json manifest listing the output parts.")

	flags.StringVar(&obj.StoreKind, "store", runners.StoreKindS3, "Object store: s3 or file.")
	flags.StringVar(&obj.FileRoot, "file-root", "", "Root directory of the file object store.")
	flags.StringVar(&obj.S3Endpoint, "s3-endpoint", "", "S3 endpoint, empty for the AWS default.")
	flags.StringVar(&obj.S3Region, "s3-region", "", "S3 region.")
	flags.StringVar(&obj.S3AccessKey, "s3-access-key", "", "Static S3 access key, empty for the default credential chain.")
	flags.StringVar(&obj.S3SecretKey, "s3-secret-key", "", "Static S3 secret key.")
	flags.BoolVar(&obj.S3PathStyle, "s3-path-style", false, "Use path style S3 addressing.")

	flags.StringVar(&obj.RedisAddress, "redis-address", "", "Redis address for run locks and run history, empty disables both.")
	flags.StringVar(&obj.RedisPassword, "redis-password", "", "Redis password.")
	flags.StringVar(&obj.RedisPrefix, "redis-prefix", "campaign-etl", "Prefix of every redis key.")
	flags.DurationVar(&obj.LockDuration, "lock-duration", defaults.LockDuration, "Expiry of the per source run lock.")

	flags.StringVar(&obj.LogLevel, "log-level", "info", "Log level: debug, info, warn or error.")
	flags.StringSliceVar(&obj.Schema, "schema", defaultSchemaSpecs(), "Source columns as name:type, in order.")
}

func (obj *Config) Logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(obj.LogLevel))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", obj.LogLevel, err)
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})), nil
}

func (obj *Config) RunnerOptions() (runners.Options, error) {
	schema, err := elements.ParseSchema(obj.Schema)
	if err != nil {
		return runners.Options{}, err
	}
	format, err := dataops.ParseOutputFormat(obj.Format)
	if err != nil {
		return runners.Options{}, err
	}

	pipelineOptions := pipeline.DefaultOptions()
	pipelineOptions.Bucket = obj.Bucket
	pipelineOptions.SourcePrefix = obj.SourcePrefix
	pipelineOptions.OutputPrefix = obj.OutputPrefix
	pipelineOptions.OutputBaseName = obj.OutputBaseName
	pipelineOptions.ChunkCapacity = obj.ChunkCapacity
	pipelineOptions.OutputFormat = format
	pipelineOptions.WriteManifest = obj.Manifest
	pipelineOptions.LockDuration = obj.LockDuration
	pipelineOptions.Schema = schema

	objectStorageOptions := storage.ObjectStorageOptions{
		Endpoint:     obj.S3Endpoint,
		Region:       obj.S3Region,
		UsePathStyle: obj.S3PathStyle,
	}
	if obj.S3AccessKey != "" {
		objectStorageOptions = *storage.NewObjectStorageOptionsFromStaticCredentials(
			obj.S3Endpoint, obj.S3Region, obj.S3AccessKey, obj.S3SecretKey, obj.S3PathStyle,
		)
	}

	return runners.Options{
		StoreKind:            obj.StoreKind,
		FileRoot:             obj.FileRoot,
		ObjectStorageOptions: objectStorageOptions,
		KeyStorageOptions: storage.KeyStorageOptions{
			Address:   obj.RedisAddress,
			Password:  obj.RedisPassword,
			KeyPrefix: obj.RedisPrefix,
		},
		PipelineOptions: pipelineOptions,
	}, nil
}
