package sandbox

import (
	"encoding/json"
	"fmt"
)

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// mustMarshal marshals a value that holds no floats or caller data
func mustMarshal(v any) []byte {
	data, _ := json.Marshal(v)
	return data
}
