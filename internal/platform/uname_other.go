//go:build !linux

package platform

import "fmt"

// kernelRelease is unavailable off Linux; callers degrade to a warning.
func kernelRelease() (string, error) {
	return "", fmt.Errorf("kernel release detection requires linux")
}
