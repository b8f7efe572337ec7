package kafka

import "encoding/json"

// MustMarshal panics on a marshal failure, which for the value types we
// publish means a programming error, not a runtime condition.
func MustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
