package cache

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/zeebo/blake3"
)

// Key derives a deterministic cache key from an operation identifier and
// its arguments. Arguments are serialized canonically (encoding/json
// sorts map keys), so identical logical requests collide to the same key
// regardless of call-site argument ordering.
func Key(operation string, args map[string]any) string {
	canonical, err := json.Marshal(args)
	if err != nil {
		// Unserializable arguments still need a stable key within the
		// process; fall back to the formatted value.
		canonical = []byte(fmt.Sprintf("%+v", args))
	}

	h := blake3.New()
	h.Write([]byte(operation))
	h.Write([]byte{0})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil))
}
