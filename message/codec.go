package message

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// The wire format is one JSON object per line, UTF-8. Encode and Decode
// are the only places the wire representation is known; everything else
// works with *Message values.

// Encode serializes a message into a single newline-terminated line.
func Encode(m *Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "encode message")
	}
	return append(data, '\n'), nil
}

// Decode parses one line into a message. A decode error is non-fatal to
// the session: the caller logs it and skips the line.
func Decode(line []byte) (*Message, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, errors.New("empty line")
	}
	var m Message
	if err := json.Unmarshal(line, &m); err != nil {
		return nil, errors.Wrap(err, "decode message")
	}
	return &m, nil
}
