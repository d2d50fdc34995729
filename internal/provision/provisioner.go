// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/phylorun/phylorun/internal/container"

	"github.com/charmbracelet/log"
	"github.com/gofrs/flock"
)

const (
	// LabelTemplateDigest records the Dockerfile digest an image was built from.
	LabelTemplateDigest = "org.phylorun.template-digest"
	// LabelEngine records the catalog key an image was built for.
	LabelEngine = "org.phylorun.engine"
	// LabelVersion records the engine release baked into an image.
	LabelVersion = "org.phylorun.version"

	lockRetryDelay = 250 * time.Millisecond
)

type (
	// Provisioner makes sure an engine image exists before a run.
	Provisioner interface {
		// EnsureImage builds img if no image with its reference exists.
		// An existing image is never rebuilt.
		EnsureImage(ctx context.Context, img Image) error
	}

	// Option configures an ImageProvisioner.
	Option func(*ImageProvisioner)

	// ImageProvisioner implements Provisioner on a container.Engine.
	ImageProvisioner struct {
		engine      container.Engine
		logger      *log.Logger
		platform    string
		buildLock   bool
		lockDir     string
		buildOutput io.Writer
	}
)

// Compile-time interface check
var _ Provisioner = (*ImageProvisioner)(nil)

// WithPlatform sets the platform images are built for.
func WithPlatform(platform string) Option {
	return func(p *ImageProvisioner) {
		p.platform = platform
	}
}

// WithBuildLock enables or disables the cross-process build lock.
func WithBuildLock(enabled bool) Option {
	return func(p *ImageProvisioner) {
		p.buildLock = enabled
	}
}

// WithLockDir sets the directory holding build lock files.
func WithLockDir(dir string) Option {
	return func(p *ImageProvisioner) {
		p.lockDir = dir
	}
}

// WithBuildOutput sets where build progress is written.
func WithBuildOutput(w io.Writer) Option {
	return func(p *ImageProvisioner) {
		p.buildOutput = w
	}
}

// NewImageProvisioner creates a provisioner. By default builds are locked
// through files under the user cache directory and progress goes to stderr.
func NewImageProvisioner(engine container.Engine, logger *log.Logger, opts ...Option) *ImageProvisioner {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	p := &ImageProvisioner{
		engine:      engine,
		logger:      logger,
		platform:    container.DefaultPlatform,
		buildLock:   true,
		lockDir:     defaultLockDir(),
		buildOutput: os.Stderr,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// EnsureImage builds img unless it already exists. With the build lock
// enabled, concurrent phylorun processes build a given reference once:
// the image check is repeated after the lock is acquired.
func (p *ImageProvisioner) EnsureImage(ctx context.Context, img Image) error {
	present, err := p.present(ctx, img)
	if err != nil || present {
		return err
	}

	if p.buildLock {
		unlock, err := p.lock(ctx, img)
		if err != nil {
			return err
		}
		defer unlock()

		present, err := p.present(ctx, img)
		if err != nil || present {
			return err
		}
	}

	p.logger.Info("Setting up container image. This might take a while, but only has to be done once.", "image", img.Ref)

	return p.engine.Build(ctx, container.BuildOptions{
		Dockerfile: img.Dockerfile,
		Tag:        img.Ref,
		Labels: map[string]string{
			LabelTemplateDigest: img.Digest,
			LabelEngine:         string(img.Key),
			LabelVersion:        img.Version,
		},
		Platform: p.platform,
		Stdout:   p.buildOutput,
		Stderr:   p.buildOutput,
	})
}

// present reports whether the image exists, warning when it was built from
// a different template.
func (p *ImageProvisioner) present(ctx context.Context, img Image) (bool, error) {
	info, err := p.engine.InspectImage(ctx, img.Ref)
	if errors.Is(err, container.ErrImageNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if digest := info.Labels[LabelTemplateDigest]; digest != img.Digest {
		p.logger.Warn("Container image is stale: it was built from a different template. Remove it to rebuild.",
			"image", img.Ref,
			"remove", container.EngineType(p.engine.Name()).Command()+" image rm "+string(img.Ref))
	}
	return true, nil
}

// lock acquires the build lock for img, polling until ctx is done.
func (p *ImageProvisioner) lock(ctx context.Context, img Image) (func(), error) {
	if err := os.MkdirAll(p.lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("create build lock directory: %w", err)
	}

	fl := flock.New(filepath.Join(p.lockDir, lockFileName(img.Ref)))

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire build lock %s: %w", fl.Path(), err)
	}
	if !locked {
		p.logger.Info("Waiting for another phylorun process to finish building the image", "image", img.Ref)
		locked, err = fl.TryLockContext(ctx, lockRetryDelay)
		if err != nil {
			return nil, fmt.Errorf("acquire build lock %s: %w", fl.Path(), err)
		}
		if !locked {
			return nil, fmt.Errorf("acquire build lock %s: lock not acquired", fl.Path())
		}
	}

	p.logger.Debug("Acquired build lock", "path", fl.Path())
	return func() { _ = fl.Unlock() }, nil
}

func lockFileName(ref container.ImageRef) string {
	return strings.NewReplacer("/", "_", ":", "_", "@", "_").Replace(string(ref)) + ".lock"
}

func defaultLockDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "phylorun", "locks")
	}
	return filepath.Join(os.TempDir(), "phylorun-locks")
}
