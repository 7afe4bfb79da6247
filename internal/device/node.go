package device

import (
	"path/filepath"
	"strconv"
	"strings"
)

// ParseNode extracts the device ID from an event node path such as
// /dev/input/event7. The second return is false when the path is not an
// event node.
func ParseNode(path string) (ID, bool) {
	base := filepath.Base(path)
	if !strings.HasPrefix(base, "event") {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(base, "event"), 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return ID(n), true
}
