package model

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/valyala/fastjson"

	"github.com/coffersTech/dynamobackup/internal/pkg/transcode"
)

// Record is one table item: attribute name to tagged value.
// It is an alias so scan pages ([]map[string]types.AttributeValue) can be
// used as []Record without conversion.
type Record = map[string]types.AttributeValue

var parserPool fastjson.ParserPool

// ParseRecord decodes one item in DynamoDB JSON form, e.g.
//
//	{"Name":{"S":"Joe"},"Photo":{"B":"aGk="}}
//
// Binary payloads must be standard base64 text.
func ParseRecord(data []byte) (Record, error) {
	p := parserPool.Get()
	defer parserPool.Put(p)

	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	obj, err := v.Object()
	if err != nil {
		return nil, &transcode.MalformedValueError{Reason: "record must be a JSON object"}
	}
	return parseAttributes(obj, "")
}

// ParseValue decodes a single tagged value such as {"N":"35"}.
func ParseValue(data []byte) (types.AttributeValue, error) {
	p := parserPool.Get()
	defer parserPool.Put(p)

	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return parseValue(v, "")
}

func parseAttributes(obj *fastjson.Object, path string) (Record, error) {
	out := make(Record, obj.Len())
	var firstErr error
	obj.Visit(func(key []byte, v *fastjson.Value) {
		if firstErr != nil {
			return
		}
		name := string(key)
		av, err := parseValue(v, transcode.JoinPath(path, name))
		if err != nil {
			firstErr = err
			return
		}
		out[name] = av
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func parseValue(v *fastjson.Value, path string) (types.AttributeValue, error) {
	obj, err := v.Object()
	if err != nil {
		return nil, &transcode.MalformedValueError{Path: path, Reason: "tagged value must be a JSON object"}
	}
	if n := obj.Len(); n != 1 {
		return nil, &transcode.MalformedValueError{Path: path, Reason: fmt.Sprintf("expected exactly one type tag, got %d", n)}
	}

	var tag string
	var payload *fastjson.Value
	obj.Visit(func(key []byte, v *fastjson.Value) {
		tag = string(key)
		payload = v
	})

	switch tag {
	case transcode.TagS:
		s, err := stringPayload(payload, path, tag)
		if err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberS{Value: s}, nil
	case transcode.TagN:
		s, err := stringPayload(payload, path, tag)
		if err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberN{Value: s}, nil
	case transcode.TagB:
		b, err := binaryPayload(payload, path)
		if err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberB{Value: b}, nil
	case transcode.TagSS, transcode.TagNS:
		items, err := arrayPayload(payload, path, tag)
		if err != nil {
			return nil, err
		}
		values := make([]string, len(items))
		for i, item := range items {
			if values[i], err = stringPayload(item, transcode.IndexPath(path, i), tag); err != nil {
				return nil, err
			}
		}
		if tag == transcode.TagSS {
			return &types.AttributeValueMemberSS{Value: values}, nil
		}
		return &types.AttributeValueMemberNS{Value: values}, nil
	case transcode.TagBS:
		items, err := arrayPayload(payload, path, tag)
		if err != nil {
			return nil, err
		}
		values := make([][]byte, len(items))
		for i, item := range items {
			if values[i], err = binaryPayload(item, transcode.IndexPath(path, i)); err != nil {
				return nil, err
			}
		}
		return &types.AttributeValueMemberBS{Value: values}, nil
	case transcode.TagM:
		inner, err := payload.Object()
		if err != nil {
			return nil, &transcode.MalformedValueError{Path: path, Reason: "M payload must be an object"}
		}
		attrs, err := parseAttributes(inner, path)
		if err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberM{Value: attrs}, nil
	case transcode.TagL:
		items, err := arrayPayload(payload, path, tag)
		if err != nil {
			return nil, err
		}
		values := make([]types.AttributeValue, len(items))
		for i, item := range items {
			if values[i], err = parseValue(item, transcode.IndexPath(path, i)); err != nil {
				return nil, err
			}
		}
		return &types.AttributeValueMemberL{Value: values}, nil
	case transcode.TagBOOL, transcode.TagNULL:
		b, err := payload.Bool()
		if err != nil {
			return nil, &transcode.MalformedValueError{Path: path, Reason: tag + " payload must be a boolean"}
		}
		if tag == transcode.TagBOOL {
			return &types.AttributeValueMemberBOOL{Value: b}, nil
		}
		return &types.AttributeValueMemberNULL{Value: b}, nil
	default:
		return nil, &transcode.UnknownAttributeTypeError{Path: path, Tag: tag}
	}
}

func stringPayload(v *fastjson.Value, path, tag string) (string, error) {
	b, err := v.StringBytes()
	if err != nil {
		return "", &transcode.MalformedValueError{Path: path, Reason: tag + " payload must be a string"}
	}
	return string(b), nil
}

func arrayPayload(v *fastjson.Value, path, tag string) ([]*fastjson.Value, error) {
	items, err := v.Array()
	if err != nil {
		return nil, &transcode.MalformedValueError{Path: path, Reason: tag + " payload must be an array"}
	}
	return items, nil
}

func binaryPayload(v *fastjson.Value, path string) ([]byte, error) {
	b, err := v.StringBytes()
	if err != nil {
		return nil, &transcode.MalformedBinaryError{Path: path, Err: errors.New("payload must be a string")}
	}
	decoded, err := transcode.DecodeBinary(string(b))
	if err != nil {
		return nil, &transcode.MalformedBinaryError{Path: path, Err: err}
	}
	return decoded, nil
}
