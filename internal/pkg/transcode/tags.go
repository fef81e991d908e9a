package transcode

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Type tags of the DynamoDB attribute value union.
const (
	TagS    = "S"
	TagN    = "N"
	TagB    = "B"
	TagSS   = "SS"
	TagNS   = "NS"
	TagBS   = "BS"
	TagM    = "M"
	TagL    = "L"
	TagBOOL = "BOOL"
	TagNULL = "NULL"
)

// dataPipelineKeys maps a type tag to the key the Data Pipeline import
// format expects in its place.
var dataPipelineKeys = map[string]string{
	TagS:    "s",
	TagN:    "n",
	TagB:    "b",
	TagSS:   "sS",
	TagNS:   "nS",
	TagBS:   "bS",
	TagM:    "m",
	TagL:    "l",
	TagBOOL: "bOOL",
	TagNULL: "nULLValue",
}

// Tags returns all known type tags.
func Tags() []string {
	return []string{TagS, TagN, TagB, TagSS, TagNS, TagBS, TagM, TagL, TagBOOL, TagNULL}
}

// OutputKey returns the key under which a payload with the given tag is
// emitted in mode m.
func OutputKey(tag string, m Mode) (string, error) {
	if m == Passthrough {
		if _, ok := dataPipelineKeys[tag]; !ok {
			return "", &UnknownAttributeTypeError{Tag: tag}
		}
		return tag, nil
	}
	key, ok := dataPipelineKeys[tag]
	if !ok {
		return "", &UnknownAttributeTypeError{Tag: tag}
	}
	return key, nil
}

// TagOf returns the type tag of an attribute value.
func TagOf(av types.AttributeValue) (string, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return TagS, nil
	case *types.AttributeValueMemberN:
		return TagN, nil
	case *types.AttributeValueMemberB:
		return TagB, nil
	case *types.AttributeValueMemberSS:
		return TagSS, nil
	case *types.AttributeValueMemberNS:
		return TagNS, nil
	case *types.AttributeValueMemberBS:
		return TagBS, nil
	case *types.AttributeValueMemberM:
		return TagM, nil
	case *types.AttributeValueMemberL:
		return TagL, nil
	case *types.AttributeValueMemberBOOL:
		return TagBOOL, nil
	case *types.AttributeValueMemberNULL:
		return TagNULL, nil
	case *types.UnknownUnionMember:
		return "", &UnknownAttributeTypeError{Tag: v.Tag}
	case nil:
		return "", &UnknownAttributeTypeError{Tag: "<nil>"}
	default:
		return "", &UnknownAttributeTypeError{Tag: typeName(av)}
	}
}
