package artifact

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrToolchainUnavailable = errors.New("toolchain unavailable")
	ErrCompile              = errors.New("compile failed")
	ErrArtifactMissing      = errors.New("artifact missing")
	ErrMerge                = errors.New("merge failed")
)

// BuildError reports which step of a build failed. Kind is one of the Err*
// sentinels; Output is the tool's diagnostic, passed through unmodified.
type BuildError struct {
	Kind   error
	Target string
	Output string
	Hint   string
	Err    error
}

func (e *BuildError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Target != "" {
		fmt.Fprintf(&b, " (%s)", e.Target)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		b.WriteString("\n")
		b.WriteString(out)
	}
	if e.Hint != "" {
		b.WriteString("\nhint: ")
		b.WriteString(e.Hint)
	}
	return b.String()
}

func (e *BuildError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}
