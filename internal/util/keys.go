package util

import (
	"fmt"
	"strconv"
	"strings"
)

// EpochKey returns the storage key of one epoch under namespace ns.
// Epochs are zero-padded so lexicographic key order matches epoch order.
func EpochKey(ns string, epoch uint64) string {
	return fmt.Sprintf("epoch:%s:%020d", ns, epoch)
}

// TipKey returns the key holding the highest published epoch for ns.
func TipKey(ns string) string {
	return "epoch:" + ns + ":tip"
}

// EpochPattern matches every key of ns in a Redis SCAN, tip included.
func EpochPattern(ns string) string {
	return "epoch:" + ns + ":*"
}

// ParseEpochKey is the inverse of EpochKey.
func ParseEpochKey(ns, key string) (uint64, bool) {
	rest, ok := strings.CutPrefix(key, "epoch:"+ns+":")
	if !ok || len(rest) != 20 {
		return 0, false
	}
	e, err := strconv.ParseUint(rest, 10, 64)
	return e, err == nil
}
