// Package dispatch fans backup-table tasks out: to fresh asynchronous
// Lambda invocations in production, or to in-process workers locally.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/coffersTech/dynamobackup/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNoTarget is returned when no function to invoke is configured and
// the context carries no Lambda invocation.
var ErrNoTarget = errors.New("no dispatch target: set DispatchTarget or run inside Lambda")

// InvokeAPI is the subset of *lambda.Client used by LambdaDispatcher.
type InvokeAPI interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// LambdaDispatcher sends each message as an asynchronous (Event)
// invocation of a function, by default the one currently running.
type LambdaDispatcher struct {
	client InvokeAPI
	target string
	logger *zap.Logger
}

func NewLambdaDispatcher(client InvokeAPI, target string, logger *zap.Logger) *LambdaDispatcher {
	return &LambdaDispatcher{client: client, target: target, logger: logger}
}

// Enqueue invokes the target with msg as payload and does not wait for
// the invocation to run.
func (d *LambdaDispatcher) Enqueue(ctx context.Context, msg model.Message) error {
	target := d.target
	if target == "" {
		lc, ok := lambdacontext.FromContext(ctx)
		if !ok || lc.InvokedFunctionArn == "" {
			return ErrNoTarget
		}
		target = lc.InvokedFunctionArn
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	d.logger.Info("invoking function",
		zap.String("function", target),
		zap.ByteString("payload", payload),
	)
	out, err := d.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(target),
		InvocationType: types.InvocationTypeEvent,
		Payload:        payload,
	})
	if err != nil {
		return fmt.Errorf("invoke %s: %w", target, err)
	}
	if out.FunctionError != nil {
		return fmt.Errorf("invoke %s: %s", target, aws.ToString(out.FunctionError))
	}
	d.logger.Debug("invocation accepted", zap.Int32("status", out.StatusCode))
	return nil
}
