package brokerv1

import (
	"encoding/json"
	"fmt"
)

// codec marshals BrokerService messages with encoding/json. It
// replaces Connect's default protobuf codec for both handlers and
// clients, so every message travels as application/json.
type codec struct{}

// Name reports the codec name used in content-type negotiation.
func (codec) Name() string { return "json" }

func (codec) Marshal(m any) ([]byte, error) {
	return json.Marshal(m)
}

func (codec) Unmarshal(data []byte, m any) error {
	if len(data) == 0 {
		// An absent body decodes as the zero message.
		return nil
	}
	if err := json.Unmarshal(data, m); err != nil {
		return fmt.Errorf("decode %T: %w", m, err)
	}
	return nil
}
