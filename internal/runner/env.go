package runner

import (
	"os"
	"os/exec"
	"strings"
)

// applyEnv sets the environment and working directory on an exec.Cmd.
// With no extra variables the child inherits the parent environment.
func applyEnv(cmd *exec.Cmd, c Command) {
	if len(c.Env) > 0 {
		cmd.Env = MergeEnv(os.Environ(), c.Env)
	}
	if c.Dir != "" {
		cmd.Dir = c.Dir
	}
}

// MergeEnv returns base with every KEY=VALUE in overrides applied. Keys
// already present in base are replaced in place; new keys are appended in
// the order given.
func MergeEnv(base, overrides []string) []string {
	index := make(map[string]int, len(base))
	result := make([]string, 0, len(base)+len(overrides))

	for _, e := range base {
		key := envKey(e)
		if i, ok := index[key]; ok {
			result[i] = e
			continue
		}
		index[key] = len(result)
		result = append(result, e)
	}

	for _, e := range overrides {
		key := envKey(e)
		if key == "" {
			continue
		}
		if i, ok := index[key]; ok {
			result[i] = e
			continue
		}
		index[key] = len(result)
		result = append(result, e)
	}

	return result
}

func envKey(e string) string {
	if i := strings.IndexByte(e, '='); i >= 0 {
		return e[:i]
	}
	return e
}
