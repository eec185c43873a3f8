package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize is the maximum allowed frame payload (1 MiB).
const MaxFrameSize = 1 << 20

// WriteFrame writes payload to w with a 4-byte big-endian length prefix.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("frame size %d exceeds maximum %d", len(payload), MaxFrameSize)
	}

	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[4:], payload)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed payload from r.
func ReadFrame(r io.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, fmt.Errorf("read length prefix: %w", err)
	}

	if length > MaxFrameSize {
		return nil, fmt.Errorf("frame size %d exceeds maximum %d", length, MaxFrameSize)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return data, nil
}

// WriteTask frames and writes a task record.
func WriteTask(w io.Writer, t Task) error {
	return WriteFrame(w, t.Marshal())
}

// ReadTask reads and decodes one framed task record.
func ReadTask(r io.Reader) (Task, error) {
	data, err := ReadFrame(r)
	if err != nil {
		return Task{}, err
	}
	var t Task
	if err := t.Unmarshal(data); err != nil {
		return Task{}, err
	}
	return t, nil
}

// WriteResult frames and writes a result record.
func WriteResult(w io.Writer, res Result) error {
	return WriteFrame(w, res.Marshal())
}

// ReadResult reads and decodes one framed result record.
func ReadResult(r io.Reader) (Result, error) {
	data, err := ReadFrame(r)
	if err != nil {
		return Result{}, err
	}
	var res Result
	if err := res.Unmarshal(data); err != nil {
		return Result{}, err
	}
	return res, nil
}
