package sampler

import (
	"context"
	"fmt"
	"testing"

	"github.com/humanmade/php-fpm-queue-monitor/internal/docker"
	"go.uber.org/zap/zaptest"
)

func TestContainsTokenExactness(t *testing.T) {
	tests := []struct {
		name    string
		command []string
		matches bool
	}{
		{
			name:    "bare marker",
			command: []string{"php-fpm"},
			matches: true,
		},
		{
			name:    "marker with flags",
			command: []string{"php-fpm", "--nodaemonize", "--fpm-config", "/etc/php-fpm.conf"},
			matches: true,
		},
		{
			name:    "marker in later position",
			command: []string{"dumb-init", "php-fpm"},
			matches: true,
		},
		{
			name:    "superstring token does not match",
			command: []string{"php-fpm-worker"},
			matches: false,
		},
		{
			name:    "substring token does not match",
			command: []string{"php"},
			matches: false,
		},
		{
			name:    "absolute path token does not match",
			command: []string{"/usr/sbin/php-fpm"},
			matches: false,
		},
		{
			name:    "marker as flag value does not match by accident",
			command: []string{"supervisord", "-c", "php-fpm.conf"},
			matches: false,
		},
		{
			name:    "unrelated command",
			command: []string{"nginx", "-g", "daemon off;"},
			matches: false,
		},
		{
			name:    "empty command",
			command: []string{},
			matches: false,
		},
		{
			name:    "nil command",
			command: nil,
			matches: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := containsToken(tt.command, "php-fpm"); got != tt.matches {
				t.Errorf("containsToken(%v) = %v, expected %v", tt.command, got, tt.matches)
			}
		})
	}
}

func TestClassifierMatches(t *testing.T) {
	ctx := context.Background()
	runtime := docker.NewMockRuntime()
	runtime.AddContainer("c1", []string{"php-fpm", "--nodaemonize"}, 101)
	runtime.AddContainer("c2", []string{"nginx"}, 102)
	runtime.AddContainer("c3", nil, 103)

	classifier := NewClassifier(runtime, "php-fpm", zaptest.NewLogger(t))

	if !classifier.Matches(ctx, "c1") {
		t.Error("Matches(c1) = false, expected true")
	}
	if classifier.Matches(ctx, "c2") {
		t.Error("Matches(c2) = true, expected false")
	}
	if classifier.Matches(ctx, "c3") {
		t.Error("Matches(c3) with entrypoint-only container = true, expected false")
	}
}

func TestClassifierFailsClosed(t *testing.T) {
	ctx := context.Background()
	runtime := docker.NewMockRuntime()
	runtime.AddContainer("c1", []string{"php-fpm"}, 101)
	runtime.FailCommand("c1", fmt.Errorf("inspect exploded"))

	classifier := NewClassifier(runtime, "php-fpm", zaptest.NewLogger(t))

	if classifier.Matches(ctx, "c1") {
		t.Error("Matches() after failed inspection = true, expected false")
	}
	if classifier.Matches(ctx, "missing") {
		t.Error("Matches() for unknown container = true, expected false")
	}
}
