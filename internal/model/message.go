package model

import (
	"errors"
	"fmt"

	"github.com/valyala/fastjson"
)

// Action names a control operation.
type Action string

const (
	ActionCreateBackups Action = "create-backups"
	ActionBackupTable   Action = "backup-table"
)

var (
	// ErrMissingAction is returned for a control message without "action".
	ErrMissingAction = errors.New("an 'action' is missing from this invocation's payload")
	// ErrMissingTableName is returned for a backup-table message without "table_name".
	ErrMissingTableName = errors.New("backup-table requires 'table_name'")
)

// UnknownActionError is returned for an action this system does not handle.
type UnknownActionError struct {
	Action Action
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action %q", e.Action)
}

// Message is a control message: the payload of one task invocation.
type Message struct {
	Action    Action `json:"action"`
	TableName string `json:"table_name,omitempty"`
	Frequency string `json:"frequency,omitempty"`
}

// ParseMessage decodes and validates a control message. A null
// "frequency" is treated as absent.
func ParseMessage(data []byte) (Message, error) {
	p := parserPool.Get()
	defer parserPool.Put(p)

	v, err := p.ParseBytes(data)
	if err != nil {
		return Message{}, fmt.Errorf("invalid control message: %w", err)
	}
	if v.Type() != fastjson.TypeObject {
		return Message{}, errors.New("invalid control message: expected a JSON object")
	}

	action, err := optionalString(v, "action")
	if err != nil {
		return Message{}, err
	}
	if action == "" {
		return Message{}, ErrMissingAction
	}
	tableName, err := optionalString(v, "table_name")
	if err != nil {
		return Message{}, err
	}
	frequency, err := optionalString(v, "frequency")
	if err != nil {
		return Message{}, err
	}
	msg := Message{
		Action:    Action(action),
		TableName: tableName,
		Frequency: frequency,
	}

	return msg, msg.Validate()
}

// Validate checks that the message names a known action with its
// required fields.
func (m Message) Validate() error {
	switch m.Action {
	case "":
		return ErrMissingAction
	case ActionCreateBackups:
		return nil
	case ActionBackupTable:
		if m.TableName == "" {
			return ErrMissingTableName
		}
		return nil
	default:
		return &UnknownActionError{Action: m.Action}
	}
}

func optionalString(v *fastjson.Value, key string) (string, error) {
	field := v.Get(key)
	if field == nil || field.Type() == fastjson.TypeNull {
		return "", nil
	}
	b, err := field.StringBytes()
	if err != nil {
		return "", fmt.Errorf("invalid control message: %q must be a string", key)
	}
	return string(b), nil
}
