package artifact

import (
	"context"
	"strings"

	"github.com/buckleypaul/sideload/internal/runner"
)

// Lipo merges and inspects fat libraries with xcrun lipo.
type Lipo struct {
	Runner runner.Runner
}

func (l Lipo) Merge(ctx context.Context, out string, inputs []string) error {
	args := append([]string{"lipo", "-create", "-output", out}, inputs...)
	res := l.Runner.Run(ctx, runner.Command{Name: "xcrun", Args: args})
	if res.Cancelled() {
		return res.Err
	}
	if !res.OK() {
		return &BuildError{Kind: ErrMerge, Output: res.Output, Err: res.Err}
	}
	return nil
}

func (l Lipo) Archs(ctx context.Context, path string) ([]string, error) {
	res := l.Runner.Run(ctx, runner.Command{Name: "xcrun", Args: []string{"lipo", "-archs", path}})
	if res.Cancelled() {
		return nil, res.Err
	}
	if !res.OK() {
		return nil, &BuildError{Kind: ErrMerge, Output: res.Output, Err: res.Err}
	}
	return strings.Fields(res.Output), nil
}
