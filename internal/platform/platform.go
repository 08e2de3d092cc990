// Package platform checks the host for everything the sampling pipeline
// borrows from the operating system: the docker, nsenter and ss binaries,
// the privileges needed to enter container network namespaces, and the
// kernel the agent runs on. Nothing here is fatal on its own; the report
// feeds the doctor command and the startup log.
package platform

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"
)

// geteuid is swappable for tests that simulate root and non-root hosts.
var geteuid = os.Geteuid

// requiredTools are the binaries every sampling tick shells out to.
var requiredTools = []string{"docker", "nsenter", "ss"}

// ToolStatus reports whether one external binary resolved on PATH.
type ToolStatus struct {
	Name      string `json:"name"`
	Path      string `json:"path,omitempty"`
	Available bool   `json:"available"`
	Required  bool   `json:"required"`
}

// Diagnostics is the host preflight report.
type Diagnostics struct {
	Tools        []ToolStatus `json:"tools"`
	EffectiveUID int          `json:"effective_uid"`
	Root         bool         `json:"root"`
	Kernel       string       `json:"kernel,omitempty"`
	OS           string       `json:"os"`
	Warnings     []string     `json:"warnings,omitempty"`
	Timestamp    time.Time    `json:"timestamp"`
}

// Diagnose inspects the host and reports which external tools are usable.
// It never fails; degraded hosts come back as warnings so the caller can
// decide whether to refuse startup or limp along.
func Diagnose(ctx context.Context) *Diagnostics {
	euid := geteuid()
	d := &Diagnostics{
		EffectiveUID: euid,
		Root:         euid == 0,
		OS:           runtime.GOOS,
		Timestamp:    time.Now().UTC(),
	}

	if runtime.GOOS != "linux" {
		d.Warnings = append(d.Warnings,
			fmt.Sprintf("unsupported operating system %s: namespace sampling requires linux", runtime.GOOS))
	}

	if release, err := kernelRelease(); err != nil {
		d.Warnings = append(d.Warnings, fmt.Sprintf("could not determine kernel release: %v", err))
	} else {
		d.Kernel = release
	}

	for _, name := range requiredTools {
		d.Tools = append(d.Tools, lookupTool(name, true))
	}

	// sudo only matters when the agent itself lacks the privileges to enter
	// another process's network namespace.
	sudo := lookupTool("sudo", !d.Root)
	d.Tools = append(d.Tools, sudo)

	for _, tool := range d.Tools {
		if tool.Required && !tool.Available {
			d.Warnings = append(d.Warnings, fmt.Sprintf("required tool %s not found on PATH", tool.Name))
		}
	}

	if !d.Root {
		d.Warnings = append(d.Warnings,
			fmt.Sprintf("not running as root (uid %d): namespace entry depends on sudo", euid))
		if sudo.Available {
			if err := probeSudo(ctx, sudo.Path); err != nil {
				d.Warnings = append(d.Warnings,
					fmt.Sprintf("sudo is present but non-interactive use failed: %v", err))
			}
		}
	}

	return d
}

// Healthy reports whether every required tool resolved. Privilege and
// kernel warnings do not fail the preflight; missing binaries do.
func (d *Diagnostics) Healthy() bool {
	for _, tool := range d.Tools {
		if tool.Required && !tool.Available {
			return false
		}
	}
	return true
}

// lookupTool resolves one binary on PATH.
func lookupTool(name string, required bool) ToolStatus {
	status := ToolStatus{Name: name, Required: required}

	path, err := exec.LookPath(name)
	if err != nil {
		return status
	}

	status.Path = path
	status.Available = true
	return status
}

// probeSudo verifies sudo works without a prompt. An interactive prompt
// would wedge a daemonized agent, so only -n counts as working.
func probeSudo(ctx context.Context, path string) error {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return exec.CommandContext(probeCtx, path, "-n", "true").Run()
}
