package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/coffersTech/dynamobackup/internal/config"
	applog "github.com/coffersTech/dynamobackup/internal/log"
)

var (
	envFile string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "dynamobackup",
	Short: "Back up tagged DynamoDB tables to S3 as JSON lines",
	Long: `dynamobackup scans DynamoDB tables into S3 objects, one item per line.

create-backups finds every table tagged with BackupEnabledTag=true and
dispatches one backup-table task per table. backup-table writes the table
to <prefix>/<time>/<table>[-<frequency>].json and tags the object.

Items are written in DynamoDB JSON, or with UseDataPipelineFormat in the
lower-camel layout expected by Data Pipeline imports.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}

		v := viper.New()
		if err := config.Bind(v, cmd.Flags()); err != nil {
			return err
		}
		var err error
		if cfg, err = config.Load(v); err != nil {
			return err
		}
		if logger, err = applog.New(cfg.LogLevel); err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&envFile, "env-file", ".env", "optional file of environment variables")
	flags.String("region", "", "AWS region (env Region)")
	flags.String("bucket", "", "destination bucket (env BucketName)")
	flags.String("tag", "", "tag that enables backups of a table (env BackupEnabledTag)")
	flags.Bool("data-pipeline", false, "write items in Data Pipeline format (env UseDataPipelineFormat)")
	flags.String("key-prefix", "", "prefix of every object key (env KeyPrefix)")
	flags.String("compression", "", "none, zstd or gzip (env Compression)")
	flags.String("local-dir", "", "write backups below this directory instead of S3 (env LocalDir)")
	flags.String("log-level", "", "debug, info, warn or error (env LogLevel)")
	flags.Int("workers", 0, "concurrent table backups for run and serve (env Workers)")

	rootCmd.AddCommand(lambdaCmd, runCmd, serveCmd, transcodeCmd)
}

func main() {
	// Inside the Lambda runtime the function is started without arguments.
	if len(os.Args) == 1 && os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		rootCmd.SetArgs([]string{lambdaCmd.Name()})
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
