package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/coffersTech/dynamobackup/internal/dynamo"
	"github.com/coffersTech/dynamobackup/internal/engine"
	"github.com/coffersTech/dynamobackup/internal/storage"
)

// loadAWS validates the configuration and loads the SDK configuration
// for the configured region.
func loadAWS(ctx context.Context) (aws.Config, error) {
	if err := cfg.Validate(); err != nil {
		return aws.Config{}, err
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS configuration: %w", err)
	}
	return awsCfg, nil
}

func newTables(awsCfg aws.Config) *dynamo.Tables {
	return dynamo.New(dynamodb.NewFromConfig(awsCfg), cfg.ScanPageSize, logger.Named("dynamo"))
}

// newStore returns a FileStore when LocalDir is set and an S3Store otherwise.
func newStore(awsCfg aws.Config) (engine.ObjectStore, error) {
	if cfg.LocalDir != "" {
		logger.Info("writing backups to local directory", zap.String("dir", cfg.LocalDir))
		return storage.NewFileStore(cfg.LocalDir, cfg.Compression, logger.Named("storage"))
	}
	return storage.NewS3Store(s3.NewFromConfig(awsCfg), cfg.BucketName, cfg.Compression,
		int64(cfg.PartSize.Bytes()), logger.Named("storage"))
}

func newMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newEngine(tables engine.Tables, store engine.ObjectStore, queue engine.Dispatcher, reg prometheus.Registerer) (*engine.Engine, error) {
	return engine.New(cfg, tables, store, queue, logger.Named("engine"), engine.WithMetrics(engine.NewMetrics(reg)))
}
