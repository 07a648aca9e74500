package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for payload-free conditions.
var (
	// ErrSkillNotFound indicates that no catalog or local skill matched a query.
	ErrSkillNotFound = errors.New("skill not found")

	// ErrAlreadyInstalled indicates install was called on a skill already on disk.
	ErrAlreadyInstalled = errors.New("skill already installed")

	// ErrNotInstalled indicates update was called on a skill that is not local.
	ErrNotInstalled = errors.New("skill is not installed")

	// ErrAlreadyRemoved indicates remove was called on a skill that is not local.
	ErrAlreadyRemoved = errors.New("skill already removed")

	// ErrInvalidBranch indicates the catalog's configured branch does not exist.
	ErrInvalidBranch = errors.New("invalid catalog branch")
)

// GitError wraps any underlying git operation failure (clone, fetch, reset,
// checkout, merge, ls-tree).
// Grounded on original_source/msm/exceptions.py's GitException.
type GitError struct {
	Op  string
	Err error
}

func (e *GitError) Error() string {
	return fmt.Sprintf("git %s failed: %v", e.Op, e.Err)
}

func (e *GitError) Unwrap() error { return e.Err }

// CloneError indicates a skill clone to scratch failed during install.
type CloneError struct {
	URL string
	Err error
}

func (e *CloneError) Error() string {
	return fmt.Sprintf("failed to clone %s: %v", e.URL, e.Err)
}

func (e *CloneError) Unwrap() error { return e.Err }

// SkillRequirementsError wraps a failure installing a recursive skill dependency.
type SkillRequirementsError struct {
	Skill string
	Err   error
}

func (e *SkillRequirementsError) Error() string {
	return fmt.Sprintf("skill requirements for %s failed: %v", e.Skill, e.Err)
}

func (e *SkillRequirementsError) Unwrap() error { return e.Err }

// SystemRequirementsError indicates requirements.sh exited non-zero.
type SystemRequirementsError struct {
	Skill string
	Code  int
}

func (e *SystemRequirementsError) Error() string {
	return fmt.Sprintf("requirements.sh for %s exited with code %d", e.Skill, e.Code)
}

// PipRequirementsError indicates the language-package installer exited non-zero.
// Carries the exit code and captured stdout/stderr, as specified in §7.
type PipRequirementsError struct {
	Skill  string
	Code   int
	Stdout string
	Stderr string
}

func (e *PipRequirementsError) Error() string {
	return fmt.Sprintf("language requirements for %s failed (code %d): %s", e.Skill, e.Code, e.Stderr)
}

// SkillModifiedError indicates uncommitted tracked changes blocked an update.
type SkillModifiedError struct {
	Skill  string
	Status string
}

func (e *SkillModifiedError) Error() string {
	return fmt.Sprintf("skill %s has uncommitted changes:\n%s", e.Skill, e.Status)
}

// RemoveError indicates a filesystem failure while deleting a skill directory.
type RemoveError struct {
	Skill string
	Err   error
}

func (e *RemoveError) Error() string {
	return fmt.Sprintf("failed to remove %s: %v", e.Skill, e.Err)
}

func (e *RemoveError) Unwrap() error { return e.Err }

// MultipleSkillMatchesError indicates the resolver found more than one
// candidate within the ambiguity band (§4.E).
type MultipleSkillMatchesError struct {
	Query      string
	Candidates []*Descriptor
}

func (e *MultipleSkillMatchesError) Error() string {
	names := make([]string, 0, len(e.Candidates))
	for _, c := range e.Candidates {
		names = append(names, c.ID())
	}
	return fmt.Sprintf("multiple skills match %q: %v", e.Query, names)
}

// errorClassName returns the unqualified Go type name of a structured error,
// for the exit-code formula in §6 (grounded on msm/__main__.py's
// get_error_code, which sums the bytes of the exception class name).
func errorClassName(err error) string {
	switch err.(type) {
	case *GitError:
		return "GitError"
	case *CloneError:
		return "CloneError"
	case *SkillRequirementsError:
		return "SkillRequirementsError"
	case *SystemRequirementsError:
		return "SystemRequirementsError"
	case *PipRequirementsError:
		return "PipRequirementsError"
	case *SkillModifiedError:
		return "SkillModifiedError"
	case *RemoveError:
		return "RemoveError"
	case *MultipleSkillMatchesError:
		return "MultipleSkillMatchesError"
	}
	switch {
	case errors.Is(err, ErrSkillNotFound):
		return "SkillNotFoundError"
	case errors.Is(err, ErrAlreadyInstalled):
		return "AlreadyInstalledError"
	case errors.Is(err, ErrNotInstalled):
		return "NotInstalledError"
	case errors.Is(err, ErrAlreadyRemoved):
		return "AlreadyRemovedError"
	case errors.Is(err, ErrInvalidBranch):
		return "InvalidBranchError"
	default:
		return "Error"
	}
}

// ExitCode computes the process exit code for a completed operation,
// per SPEC_FULL.md §6: 0 on success, 1 on a false/no-op result, otherwise
// 1 + (sum of the error class name's bytes mod 255).
func ExitCode(ok bool, err error) int {
	if err == nil {
		if ok {
			return 0
		}
		return 1
	}

	name := errorClassName(err)
	var sum int
	for _, b := range []byte(name) {
		sum += int(b)
	}
	return 1 + (sum % 255)
}
