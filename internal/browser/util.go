// internal/browser/util.go
package browser

import (
	"github.com/google/uuid"
	json "github.com/json-iterator/go"
)

func newUUIDString() string {
	return uuid.NewString()
}

// jsonEncode safely encodes a value (especially strings) for JS injection.
func jsonEncode(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(b)
}

func truncateRaw(raw []byte) string {
	const max = 200
	s := string(raw)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
