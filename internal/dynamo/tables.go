// Package dynamo adapts the DynamoDB client to the table operations used
// by the backup engine.
package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/coffersTech/dynamobackup/internal/model"
)

// ListTablesPageSize is the page size used when listing tables.
const ListTablesPageSize = 100

// API is the subset of *dynamodb.Client used by Tables.
type API interface {
	dynamodb.ListTablesAPIClient
	dynamodb.ScanAPIClient
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	ListTagsOfResource(ctx context.Context, params *dynamodb.ListTagsOfResourceInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTagsOfResourceOutput, error)
}

// Tables reads table metadata and contents.
type Tables struct {
	api          API
	scanPageSize int32
	logger       *zap.Logger
}

func New(api API, scanPageSize int32, logger *zap.Logger) *Tables {
	return &Tables{api: api, scanPageSize: scanPageSize, logger: logger}
}

// ListTables returns the names of all tables, following every page.
func (t *Tables) ListTables(ctx context.Context) ([]string, error) {
	var names []string
	p := dynamodb.NewListTablesPaginator(t.api, &dynamodb.ListTablesInput{
		Limit: aws.Int32(ListTablesPageSize),
	})
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
		names = append(names, out.TableNames...)
	}
	return names, nil
}

func (t *Tables) DescribeTable(ctx context.Context, name string) (*types.TableDescription, error) {
	out, err := t.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
	if err != nil {
		return nil, fmt.Errorf("describe table %s: %w", name, err)
	}
	if out.Table == nil {
		return nil, fmt.Errorf("describe table %s: empty description", name)
	}
	return out.Table, nil
}

// TagsOf returns the tags of the resource arn as a map.
func (t *Tables) TagsOf(ctx context.Context, arn string) (map[string]string, error) {
	tags := make(map[string]string)
	input := &dynamodb.ListTagsOfResourceInput{ResourceArn: aws.String(arn)}
	for {
		out, err := t.api.ListTagsOfResource(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list tags of %s: %w", arn, err)
		}
		for _, tag := range out.Tags {
			tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
		}
		if aws.ToString(out.NextToken) == "" {
			return tags, nil
		}
		input.NextToken = out.NextToken
	}
}

// Scan reads every item of the table with strongly consistent reads and
// calls fn once per page.
func (t *Tables) Scan(ctx context.Context, name string, fn func(page []model.Record) error) error {
	p := dynamodb.NewScanPaginator(t.api, &dynamodb.ScanInput{
		TableName:      aws.String(name),
		ConsistentRead: aws.Bool(true),
		Select:         types.SelectAllAttributes,
		Limit:          aws.Int32(t.scanPageSize),
	})
	pages := 0
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("scan %s page %d: %w", name, pages+1, err)
		}
		pages++
		t.logger.Debug("scanned page",
			zap.String("table", name),
			zap.Int("page", pages),
			zap.Int32("items", out.Count),
		)
		if err := fn(out.Items); err != nil {
			return err
		}
	}
	return nil
}
