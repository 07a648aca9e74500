package adapter

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/skillspkg/spm/internal/port"
)

// PipInstaller implements port.LanguageInstaller by shelling out to `pip
// install -r requirements.txt`, grounded on
// original_source/msm/skill_entry.py's run_pip: probe write access to the
// interpreter's own directory first, and only prefix the command with
// `sudo -n` (non-interactive) when that probe fails. A permission failure
// on the elevated retry itself is reported as exit code 2 with a fixed
// message, matching the original's special-cased branch.
type PipInstaller struct {
	// pythonExecutable defaults to "python3" when empty.
	pythonExecutable string
}

// NewPipInstaller creates a PipInstaller. pythonExecutable may be empty to
// use "python3".
func NewPipInstaller(pythonExecutable string) *PipInstaller {
	if pythonExecutable == "" {
		pythonExecutable = "python3"
	}
	return &PipInstaller{pythonExecutable: pythonExecutable}
}

var _ port.LanguageInstaller = (*PipInstaller)(nil)

func (p *PipInstaller) Install(ctx context.Context, requirementsFile, constraintsFile string) (*port.InstallResult, error) {
	args := []string{"-m", "pip", "install", "-r", requirementsFile}
	if constraintsFile != "" {
		args = append(args, "-c", constraintsFile)
	}

	canWrite := p.canWriteInterpreterDir()

	result, err := p.run(ctx, p.pythonExecutable, args, canWrite)
	if err != nil {
		return nil, err
	}
	if result.ExitCode == 0 || canWrite {
		return result, nil
	}

	// First attempt used no elevation and failed: retry once with sudo -n.
	elevated, err := p.run(ctx, "sudo", append([]string{"-n", p.pythonExecutable}, args...), true)
	if err != nil {
		return nil, err
	}
	if elevated.ExitCode == 1 && strings.Contains(elevated.Stderr, "sudo:") {
		return &port.InstallResult{ExitCode: 2, Stderr: "permission denied while installing language dependencies"}, nil
	}
	return elevated, nil
}

func (p *PipInstaller) canWriteInterpreterDir() bool {
	path, err := exec.LookPath(p.pythonExecutable)
	if err != nil {
		return false
	}
	dir := filepath.Dir(path)
	return canWriteDir(dir)
}

func (p *PipInstaller) run(ctx context.Context, name string, args []string, elevated bool) (*port.InstallResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return &port.InstallResult{ExitCode: 0, Stdout: stdout.String(), Stderr: stderr.String()}, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &port.InstallResult{ExitCode: exitErr.ExitCode(), Stdout: stdout.String(), Stderr: stderr.String()}, nil
	}
	return nil, err
}

// canWriteDir reports whether the current process can write to dir. Uses
// os.Stat as a portable approximation of os.access(path, W_OK|X_OK): a full
// permission-bit check would require syscall.Access, which is Unix-only,
// and this probe only gates which branch run_pip takes, not correctness.
func canWriteDir(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil {
		return false
	}
	mode := info.Mode().Perm()
	return mode&0o200 != 0
}
