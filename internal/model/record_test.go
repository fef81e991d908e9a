package model

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffersTech/dynamobackup/internal/pkg/transcode"
)

func TestParseRecord(t *testing.T) {
	record, err := ParseRecord([]byte(`{
		"Name": {"S": "Joe"},
		"Age": {"N": "35"},
		"Photo": {"B": "/wA="},
		"Tags": {"SS": ["a", "b"]},
		"Scores": {"NS": ["1", "2.5"]},
		"Blobs": {"BS": ["aGk="]},
		"Info": {"M": {"City": {"S": "NYC"}}},
		"Items": {"L": [{"S": "Cookies"}, {"N": "3.14"}, {"L": []}]},
		"Active": {"BOOL": true},
		"Gone": {"NULL": true}
	}`))
	require.NoError(t, err)

	assert.Equal(t, Record{
		"Name":   &types.AttributeValueMemberS{Value: "Joe"},
		"Age":    &types.AttributeValueMemberN{Value: "35"},
		"Photo":  &types.AttributeValueMemberB{Value: []byte{0xff, 0x00}},
		"Tags":   &types.AttributeValueMemberSS{Value: []string{"a", "b"}},
		"Scores": &types.AttributeValueMemberNS{Value: []string{"1", "2.5"}},
		"Blobs":  &types.AttributeValueMemberBS{Value: [][]byte{[]byte("hi")}},
		"Info": &types.AttributeValueMemberM{Value: Record{
			"City": &types.AttributeValueMemberS{Value: "NYC"},
		}},
		"Items": &types.AttributeValueMemberL{Value: []types.AttributeValue{
			&types.AttributeValueMemberS{Value: "Cookies"},
			&types.AttributeValueMemberN{Value: "3.14"},
			&types.AttributeValueMemberL{Value: []types.AttributeValue{}},
		}},
		"Active": &types.AttributeValueMemberBOOL{Value: true},
		"Gone":   &types.AttributeValueMemberNULL{Value: true},
	}, record)
}

func TestParseRecordErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, err error)
	}{
		{
			name:  "not json",
			input: `{"Name":`,
			check: func(t *testing.T, err error) { assert.ErrorContains(t, err, "invalid JSON") },
		},
		{
			name:  "record is an array",
			input: `[]`,
			check: func(t *testing.T, err error) { assert.ErrorAs(t, err, new(*transcode.MalformedValueError)) },
		},
		{
			name:  "two tags",
			input: `{"x":{"S":"a","N":"1"}}`,
			check: func(t *testing.T, err error) {
				var e *transcode.MalformedValueError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "x", e.Path)
			},
		},
		{
			name:  "no tag",
			input: `{"x":{}}`,
			check: func(t *testing.T, err error) { assert.ErrorAs(t, err, new(*transcode.MalformedValueError)) },
		},
		{
			name:  "number payload for N",
			input: `{"x":{"N":35}}`,
			check: func(t *testing.T, err error) { assert.ErrorAs(t, err, new(*transcode.MalformedValueError)) },
		},
		{
			name:  "unknown tag",
			input: `{"Info":{"M":{"v":{"VECTOR":[1,2]}}}}`,
			check: func(t *testing.T, err error) {
				var e *transcode.UnknownAttributeTypeError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "VECTOR", e.Tag)
				assert.Equal(t, "Info.v", e.Path)
			},
		},
		{
			name:  "binary not base64",
			input: `{"bin":{"B":"not base64!"}}`,
			check: func(t *testing.T, err error) {
				var e *transcode.MalformedBinaryError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "bin", e.Path)
			},
		},
		{
			name:  "binary set element not text",
			input: `{"set":{"BS":["aGk=", 7]}}`,
			check: func(t *testing.T, err error) {
				var e *transcode.MalformedBinaryError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "set[1]", e.Path)
			},
		},
		{
			name:  "bool payload is a string",
			input: `{"b":{"BOOL":"true"}}`,
			check: func(t *testing.T, err error) { assert.ErrorAs(t, err, new(*transcode.MalformedValueError)) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := ParseRecord([]byte(tt.input))
			require.Error(t, err)
			assert.Nil(t, record)
			tt.check(t, err)
		})
	}
}

func TestParseValue(t *testing.T) {
	v, err := ParseValue([]byte(`{"N":"35"}`))
	require.NoError(t, err)
	assert.Equal(t, &types.AttributeValueMemberN{Value: "35"}, v)
}

func TestPassthroughIsIdempotent(t *testing.T) {
	original := Record{
		"Name":  &types.AttributeValueMemberS{Value: "Joe"},
		"Photo": &types.AttributeValueMemberB{Value: []byte{0x00, 0x10, 0xff}},
		"Blobs": &types.AttributeValueMemberBS{Value: [][]byte{{0x01}, {0x02}}},
		"Info": &types.AttributeValueMemberM{Value: Record{
			"Items": &types.AttributeValueMemberL{Value: []types.AttributeValue{
				&types.AttributeValueMemberNULL{Value: true},
				&types.AttributeValueMemberB{Value: []byte("nested")},
			}},
		}},
	}

	first, err := transcode.Transcode(original, transcode.Passthrough)
	require.NoError(t, err)
	line, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(first)
	require.NoError(t, err)

	reparsed, err := ParseRecord(line)
	require.NoError(t, err)
	assert.Equal(t, original, reparsed)

	second, err := transcode.Transcode(reparsed, transcode.Passthrough)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
