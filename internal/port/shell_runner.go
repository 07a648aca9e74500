package port

import "context"

// ShellRunner executes a skill's requirements.sh in the skill's own
// directory. Grounded on original_source/msm/skill_entry.py's
// run_requirements_sh (subprocess.call(["bash", setup_script])).
type ShellRunner interface {
	// RunScript runs scriptPath with workDir as the current directory,
	// returning its exit code.
	RunScript(ctx context.Context, scriptPath, workDir string) (exitCode int, err error)
}
