package main

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/lambda"
	lambdasvc "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coffersTech/dynamobackup/internal/dispatch"
	"github.com/coffersTech/dynamobackup/internal/engine"
	"github.com/coffersTech/dynamobackup/internal/model"
)

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Serve invocations from the AWS Lambda runtime",
	Long: `Starts the Lambda runtime loop. Each invocation payload is a control
message; create-backups fans out by invoking this same function (or
DispatchTarget) asynchronously once per table.

This command is the default when AWS_LAMBDA_RUNTIME_API is set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		awsCfg, err := loadAWS(cmd.Context())
		if err != nil {
			return err
		}
		store, err := newStore(awsCfg)
		if err != nil {
			return err
		}
		queue := dispatch.NewLambdaDispatcher(lambdasvc.NewFromConfig(awsCfg), cfg.DispatchTarget, logger.Named("dispatch"))
		eng, err := newEngine(newTables(awsCfg), store, queue, nil)
		if err != nil {
			return err
		}

		lambda.Start(lambdaHandler(eng))
		return nil
	},
}

func lambdaHandler(eng *engine.Engine) func(ctx context.Context, payload json.RawMessage) (engine.Result, error) {
	return func(ctx context.Context, payload json.RawMessage) (engine.Result, error) {
		msg, err := model.ParseMessage(payload)
		if err != nil {
			logger.Error("rejected invocation", zap.Error(err))
			return engine.Result{}, err
		}
		return eng.Handle(ctx, msg)
	}
}
