package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers.
const (
	fieldIndex  protowire.Number = 1
	fieldResult protowire.Number = 2
	fieldError  protowire.Number = 3
)

// Task is the record sent to a worker for one subtask.
type Task struct {
	Index int32
}

// Marshal encodes the task. A zero index produces an empty record, as proto3 does.
func (t Task) Marshal() []byte {
	var b []byte
	if t.Index != 0 {
		b = protowire.AppendTag(b, fieldIndex, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(t.Index)))
	}
	return b
}

// Unmarshal decodes a task record, skipping unknown fields.
func (t *Task) Unmarshal(b []byte) error {
	*t = Task{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == fieldIndex && typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, fmt.Errorf("decode index: %w", protowire.ParseError(n))
			}
			t.Index = int32(v)
			return n, nil
		}
		return -1, nil
	})
}

// Result is the record a worker sends back after running a task. A non-empty
// Error means the worker failed the task.
type Result struct {
	Index  int32
	Result string
	Error  string
}

// Marshal encodes the result record.
func (r Result) Marshal() []byte {
	var b []byte
	if r.Index != 0 {
		b = protowire.AppendTag(b, fieldIndex, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(int64(r.Index)))
	}
	if r.Result != "" {
		b = protowire.AppendTag(b, fieldResult, protowire.BytesType)
		b = protowire.AppendString(b, r.Result)
	}
	if r.Error != "" {
		b = protowire.AppendTag(b, fieldError, protowire.BytesType)
		b = protowire.AppendString(b, r.Error)
	}
	return b
}

// Unmarshal decodes a result record, skipping unknown fields.
func (r *Result) Unmarshal(b []byte) error {
	*r = Result{}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldIndex && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, fmt.Errorf("decode index: %w", protowire.ParseError(n))
			}
			r.Index = int32(v)
			return n, nil
		case num == fieldResult && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return 0, fmt.Errorf("decode result: %w", protowire.ParseError(n))
			}
			r.Result = v
			return n, nil
		case num == fieldError && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return 0, fmt.Errorf("decode error: %w", protowire.ParseError(n))
			}
			r.Error = v
			return n, nil
		}
		return -1, nil
	})
}

// walk iterates the fields of an encoded record. field returns the number of
// value bytes it consumed, or -1 to have the value skipped as unknown.
func walk(b []byte, field func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("decode tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		n, err := field(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("skip field %d: %w", num, protowire.ParseError(n))
			}
		}
		b = b[n:]
	}
	return nil
}
