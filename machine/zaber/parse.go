package zaber

import (
	"fmt"
	"strconv"
	"strings"
)

// Reply is a parsed device reply, e.g. "@01 1 OK IDLE -- 0".
type Reply struct {
	Device   int
	Axis     int
	Rejected bool
	Busy     bool

	// Warning is the highest priority warning flag, "--" when none.
	Warning string
	Data    string
}

func parseReply(line string) (*Reply, error) {
	line = strings.TrimSpace(line)
	if i := strings.LastIndexByte(line, ':'); i > 0 {
		// checksum
		line = line[:i]
	}
	if !strings.HasPrefix(line, "@") {
		return nil, fmt.Errorf("not a reply: %q", line)
	}
	parts := strings.Fields(line[1:])
	if len(parts) < 5 {
		return nil, fmt.Errorf("short reply: %q", line)
	}

	var r Reply
	var err error
	r.Device, err = strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("reply device: %w", err)
	}
	r.Axis, err = strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("reply axis: %w", err)
	}
	switch parts[2] {
	case "OK":
	case "RJ":
		r.Rejected = true
	default:
		return nil, fmt.Errorf("unknown reply flag %q", parts[2])
	}
	switch parts[3] {
	case "IDLE":
	case "BUSY":
		r.Busy = true
	default:
		return nil, fmt.Errorf("unknown device status %q", parts[3])
	}
	r.Warning = parts[4]
	r.Data = strings.Join(parts[5:], " ")
	return &r, nil
}

// parseWarnings parses the data of a "warnings" reply: a count followed by
// that many flags.
func parseWarnings(data string) ([]string, error) {
	parts := strings.Fields(data)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty warnings reply")
	}
	n, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("warnings count: %w", err)
	}
	if n != len(parts)-1 {
		return nil, fmt.Errorf("warnings reply lists %d flags, expected %d", len(parts)-1, n)
	}
	return parts[1:], nil
}
