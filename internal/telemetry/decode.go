package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

var (
	errNotObject    = errors.New("payload is not a JSON object")
	errTrailingData = errors.New("unexpected data after JSON object")
)

// Decode parses payload as a single JSON object. Numbers are kept as
// json.Number so integer and float representations stay distinguishable.
// topic is only used to annotate errors.
func Decode(payload []byte, topic string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, &DecodeError{Topic: topic, Err: err}
	}
	if obj == nil {
		return nil, &DecodeError{Topic: topic, Err: errNotObject}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &DecodeError{Topic: topic, Err: errTrailingData}
	}
	return obj, nil
}
