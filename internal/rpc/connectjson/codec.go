// Package connectjson provides a plain-JSON codec for Connect handlers and
// clients, so the query types marshal without protobuf definitions.
package connectjson

import (
	"encoding/json"
	"fmt"

	"github.com/bufbuild/connect-go"
)

// Codec encodes and decodes the rpc message structs as JSON.
type Codec struct{}

func (Codec) Name() string { return "json" }

func (Codec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	return data, nil
}

func (Codec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %T: %w", v, err)
	}
	return nil
}

var _ connect.Codec = (*Codec)(nil)
