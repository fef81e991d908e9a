// Package transcode re-encodes DynamoDB attribute values into plain JSON
// documents.
//
// Two output shapes are supported. Passthrough keeps the DynamoDB type
// tags as keys and only turns binary payloads into base64 text. Renamed
// additionally rewrites every tag through a fixed table, producing the
// layout the Data Pipeline import tool reads ("S" becomes "s", "NULL"
// becomes "nULLValue" and so on).
//
// The functions in this package never modify their input and hold no
// state, so they can be called concurrently.
package transcode

import (
	"encoding/base64"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Mode selects the output shape.
type Mode int

const (
	// Passthrough keeps type tags as output keys.
	Passthrough Mode = iota
	// Renamed rewrites type tags to Data Pipeline keys.
	Renamed
)

func (m Mode) String() string {
	switch m {
	case Passthrough:
		return "passthrough"
	case Renamed:
		return "renamed"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ModeFor returns Renamed when the Data Pipeline format is requested.
func ModeFor(dataPipeline bool) Mode {
	if dataPipeline {
		return Renamed
	}
	return Passthrough
}

// Document is a transcoded record, ready for JSON encoding.
type Document map[string]any

// Transcoder applies a fixed mode.
type Transcoder struct {
	mode Mode
}

// New creates a Transcoder for mode m.
func New(m Mode) *Transcoder {
	return &Transcoder{mode: m}
}

// Mode returns the output shape of the transcoder.
func (t *Transcoder) Mode() Mode {
	return t.mode
}

// Transcode converts one record.
func (t *Transcoder) Transcode(record map[string]types.AttributeValue) (Document, error) {
	return Transcode(record, t.mode)
}

// Transcode converts a record into a new Document. Any unknown type tag
// fails the whole record.
func Transcode(record map[string]types.AttributeValue, m Mode) (Document, error) {
	out, err := transcodeMap(record, m, "")
	if err != nil {
		return nil, err
	}
	return Document(out), nil
}

// TranscodeValue converts a single tagged value into {key: payload}.
func TranscodeValue(av types.AttributeValue, m Mode) (map[string]any, error) {
	return transcodeValue(av, m, "")
}

func transcodeMap(in map[string]types.AttributeValue, m Mode, path string) (map[string]any, error) {
	out := make(map[string]any, len(in))
	for name, av := range in {
		v, err := transcodeValue(av, m, JoinPath(path, name))
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

func transcodeValue(av types.AttributeValue, m Mode, path string) (map[string]any, error) {
	tag, err := TagOf(av)
	if err != nil {
		return nil, withPath(err, path)
	}
	key, err := OutputKey(tag, m)
	if err != nil {
		return nil, withPath(err, path)
	}
	payload, err := transcodePayload(av, m, path)
	if err != nil {
		return nil, err
	}
	return map[string]any{key: payload}, nil
}

func transcodePayload(av types.AttributeValue, m Mode, path string) (any, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value, nil
	case *types.AttributeValueMemberN:
		return v.Value, nil
	case *types.AttributeValueMemberB:
		return EncodeBinary(v.Value), nil
	case *types.AttributeValueMemberSS:
		return copyStrings(v.Value), nil
	case *types.AttributeValueMemberNS:
		return copyStrings(v.Value), nil
	case *types.AttributeValueMemberBS:
		// Set elements are raw payloads, not tagged values.
		out := make([]string, len(v.Value))
		for i, b := range v.Value {
			out[i] = EncodeBinary(b)
		}
		return out, nil
	case *types.AttributeValueMemberM:
		return transcodeMap(v.Value, m, path)
	case *types.AttributeValueMemberL:
		out := make([]any, len(v.Value))
		for i, item := range v.Value {
			elem, err := transcodeValue(item, m, IndexPath(path, i))
			if err != nil {
				return nil, err
			}
			out[i] = elem
		}
		return out, nil
	case *types.AttributeValueMemberBOOL:
		return v.Value, nil
	case *types.AttributeValueMemberNULL:
		return v.Value, nil
	default:
		tag, err := TagOf(av)
		if err != nil {
			return nil, withPath(err, path)
		}
		return nil, &UnknownAttributeTypeError{Path: path, Tag: tag}
	}
}

// EncodeBinary returns the standard base64 text form of a binary payload.
func EncodeBinary(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBinary reverses EncodeBinary.
func DecodeBinary(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
