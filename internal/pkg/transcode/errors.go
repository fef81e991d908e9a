package transcode

import (
	"fmt"
)

// UnknownAttributeTypeError is returned for a value whose type tag is not
// one of the ten DynamoDB attribute types.
type UnknownAttributeTypeError struct {
	Path string // Attribute path, e.g. "Info.Tags[2]"
	Tag  string
}

func (e *UnknownAttributeTypeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("unknown attribute type %q", e.Tag)
	}
	return fmt.Sprintf("unknown attribute type %q at %s", e.Tag, e.Path)
}

// MalformedBinaryError is returned when a binary payload cannot be
// represented as base64 text.
type MalformedBinaryError struct {
	Path string
	Err  error
}

func (e *MalformedBinaryError) Error() string {
	return fmt.Sprintf("malformed binary value at %s: %v", e.Path, e.Err)
}

func (e *MalformedBinaryError) Unwrap() error {
	return e.Err
}

// MalformedValueError is returned for a tagged value that does not carry
// exactly one tag, or whose payload has the wrong shape.
type MalformedValueError struct {
	Path   string
	Reason string
}

func (e *MalformedValueError) Error() string {
	if e.Path == "" {
		return "malformed attribute value: " + e.Reason
	}
	return fmt.Sprintf("malformed attribute value at %s: %s", e.Path, e.Reason)
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}

// withPath fills in the attribute path of a tag error produced below the
// point where the path is known.
func withPath(err error, path string) error {
	if e, ok := err.(*UnknownAttributeTypeError); ok && e.Path == "" {
		return &UnknownAttributeTypeError{Path: path, Tag: e.Tag}
	}
	return err
}

// JoinPath appends an attribute name to a dotted path.
func JoinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

// IndexPath appends a list index to a path.
func IndexPath(parent string, i int) string {
	return fmt.Sprintf("%s[%d]", parent, i)
}
