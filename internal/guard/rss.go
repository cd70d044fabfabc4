package guard

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// readRSSBytes reads the process's resident set size from /proc/self/statm
// (Linux). The second field there is RSS in pages.
func readRSSBytes() (int64, error) {
	data, err := os.ReadFile("/proc/self/statm")
	if err != nil {
		return 0, fmt.Errorf("read /proc/self/statm: %w", err)
	}
	fields := strings.Fields(string(data))
	if len(fields) < 2 {
		return 0, fmt.Errorf("unexpected /proc/self/statm format: %q", string(data))
	}
	pages, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse RSS pages: %w", err)
	}
	return pages * int64(os.Getpagesize()), nil
}
