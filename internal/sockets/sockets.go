// Package sockets inspects listening unix sockets inside another
// process's network namespace.
//
// PHP-FPM pools listen on unix sockets owned by a containerized master
// process, so the kernel's view of the socket backlog is only visible
// from that container's network namespace. The production inspector
// enters the namespace with nsenter and reads the listing that ss
// produces; the parser then extracts the queue depth for the pool
// socket from the raw listing.
package sockets

import (
	"context"
	"strconv"
	"strings"
)

// Inspector produces the raw listening-socket listing for a process.
type Inspector interface {
	// ListeningSockets returns the unix listening sockets visible in the
	// network namespace of pid, one socket per line.
	ListeningSockets(ctx context.Context, pid int) (string, error)
}

// ParseListenQueue extracts the listen queue depth for socketPath from a
// raw `ss -lxnH` listing.
//
// The first line containing socketPath is consulted and its third
// whitespace-separated column (Recv-Q, the current backlog for a
// listening socket) is parsed. The boolean is false when no line names
// the socket or the matched line does not carry a parseable depth;
// later matching lines are not consulted.
func ParseListenQueue(listing, socketPath string) (int64, bool) {
	if socketPath == "" {
		return 0, false
	}

	for _, line := range strings.Split(listing, "\n") {
		if !strings.Contains(line, socketPath) {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 3 {
			return 0, false
		}

		queue, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil || queue < 0 {
			return 0, false
		}

		return queue, true
	}

	return 0, false
}
