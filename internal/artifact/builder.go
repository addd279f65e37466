// Package artifact builds the native library for each required target,
// assembles it into one artifact, and packages the app bundle around it.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Compiler produces the static library for one target.
type Compiler interface {
	// Check fails with ErrToolchainUnavailable when a target cannot be built.
	Check(ctx context.Context, targets []Target) error
	// Compile builds t and returns the path the output should appear at.
	Compile(ctx context.Context, t Target, profile Profile, env []string) (string, error)
}

// Merger joins per-architecture libraries into one fat library.
type Merger interface {
	Merge(ctx context.Context, out string, inputs []string) error
	Archs(ctx context.Context, path string) ([]string, error)
}

// Builder compiles every target and assembles a single library.
type Builder struct {
	Compiler Compiler
	Merger   Merger
	OutDir   string // assembled output goes to OutDir/<profile>/<file>
	Logger   *zap.Logger
}

// Build compiles targets concurrently and assembles the result. Any compile
// failure aborts the build; nothing is merged from a partial set. env is
// passed to every compile.
func (b *Builder) Build(ctx context.Context, targets []Target, profile Profile, env []string) (Descriptor, error) {
	logger := b.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(targets) == 0 {
		return Descriptor{}, errors.New("no build targets")
	}
	if err := b.Compiler.Check(ctx, targets); err != nil {
		return Descriptor{}, err
	}

	outputs := make([]string, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range targets {
		g.Go(func() error {
			logger.Info("compiling", zap.Stringer("target", t), zap.String("profile", string(profile)))
			path, err := b.Compiler.Compile(gctx, t, profile, env)
			if err != nil {
				return err
			}
			if _, err := verifyOutput(path, t.String()); err != nil {
				return err
			}
			outputs[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// A sibling failure cancels gctx; report the caller's cancellation
		// only when it actually happened.
		if ctx.Err() != nil {
			return Descriptor{}, ctx.Err()
		}
		return Descriptor{}, err
	}

	out := filepath.Join(b.OutDir, string(profile), filepath.Base(outputs[0]))
	desc := Descriptor{Path: out, Targets: targets, Profile: profile}

	if len(targets) == 1 {
		if err := copyFile(outputs[0], out); err != nil {
			return Descriptor{}, fmt.Errorf("copy %s: %w", outputs[0], err)
		}
		desc.Archs = []string{targets[0].Arch}
	} else {
		archs, err := b.merge(ctx, out, targets, outputs)
		if err != nil {
			return Descriptor{}, err
		}
		desc.Archs = archs
	}

	size, err := verifyOutput(out, desc.TargetNames())
	if err != nil {
		return Descriptor{}, err
	}
	desc.Size = size
	logger.Info("library assembled", zap.String("path", out), zap.Strings("archs", desc.Archs), zap.Int64("bytes", size))
	return desc, nil
}

func (b *Builder) merge(ctx context.Context, out string, targets []Target, inputs []string) ([]string, error) {
	if b.Merger == nil {
		return nil, &BuildError{Kind: ErrMerge, Err: errors.New("no merger configured")}
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return nil, &BuildError{Kind: ErrMerge, Err: err}
	}
	// A stale fat library would satisfy verification even if lipo wrote nothing.
	_ = os.Remove(out)
	if err := b.Merger.Merge(ctx, out, inputs); err != nil {
		return nil, err
	}
	archs, err := b.Merger.Archs(ctx, out)
	if err != nil {
		return nil, err
	}
	for _, t := range targets {
		if !slices.Contains(archs, t.Arch) {
			return nil, &BuildError{Kind: ErrMerge, Target: t.String(),
				Err: fmt.Errorf("merged library has archs %v, missing %s", archs, t.Arch)}
		}
	}
	return archs, nil
}
