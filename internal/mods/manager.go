// SPDX-License-Identifier: MPL-2.0

package mods

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/semaphore"

	"github.com/modctl/modctl/internal/device"
	"github.com/modctl/modctl/internal/eventbus"
	"github.com/modctl/modctl/internal/oplock"
	"github.com/modctl/modctl/pkg/modmanifest"
)

const (
	// Added is published after a successful install.
	Added ChangeKind = iota + 1
	// Removed is published once a mod has left the registry.
	Removed
)

type (
	// ChangeKind says what happened to the registry.
	ChangeKind int

	// Change is a registry event.
	Change struct {
		Kind     ChangeKind
		Manifest *modmanifest.Manifest
	}

	// Config holds everything a Manager needs besides the port.
	Config struct {
		// Target is the application id every installed mod must declare as gameId.
		Target string
		// Layout is where mods live on the device. Placeholders are expanded
		// with Target.
		Layout Layout
		// ScratchDir is the local extraction directory, reused by every install.
		ScratchDir string
		// Extractor unpacks archives.
		Extractor Extractor
		// LockPath enables cross-process serialization through a flock on
		// this file. Empty disables it.
		LockPath string
		// Reporter receives progress lines. nil discards them.
		Reporter Reporter
		// Logger receives diagnostics. nil uses the default charm logger.
		Logger *log.Logger
	}

	// Manager owns the registry and runs install, uninstall and discovery one
	// at a time, in arrival order.
	Manager struct {
		registry  *Registry
		layout    Layout
		target    string
		discovery *Discovery
		deployer  *Deployer
		remover   *Remover
		queue     *semaphore.Weighted
		lockPath  string
		events    *eventbus.Bus[Change]
		reporter  Reporter
		logger    *log.Logger
	}
)

// String returns "added" or "removed".
func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// NewManager validates cfg and wires the engines around one registry.
func NewManager(port device.Port, cfg Config) (*Manager, error) {
	if port == nil {
		return nil, errors.New("mods: nil device port")
	}
	if cfg.Target == "" {
		return nil, errors.New("mods: target application id is required")
	}
	if cfg.Extractor == nil {
		return nil, errors.New("mods: extractor is required")
	}
	if cfg.ScratchDir == "" {
		return nil, errors.New("mods: scratch directory is required")
	}
	scratch, err := filepath.Abs(cfg.ScratchDir)
	if err != nil {
		return nil, fmt.Errorf("mods: resolve scratch directory: %w", err)
	}

	layout := cfg.Layout.Expand(cfg.Target)
	if err := layout.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default().WithPrefix("mods")
	}
	reporter := cfg.Reporter
	if reporter == nil {
		reporter = nopReporter{}
	}

	registry := NewRegistry()
	return &Manager{
		registry:  registry,
		layout:    layout,
		target:    cfg.Target,
		discovery: NewDiscovery(port, layout, logger),
		deployer:  NewDeployer(port, registry, layout, cfg.Target, scratch, cfg.Extractor, logger),
		remover:   NewRemover(port, registry, layout, logger),
		queue:     semaphore.NewWeighted(1),
		lockPath:  cfg.LockPath,
		events:    eventbus.New[Change](),
		reporter:  reporter,
		logger:    logger,
	}, nil
}

// Load runs Discovery and replaces the registry contents with what the
// device holds. Skipped manifests are returned as *DiscoveryParseError values.
func (m *Manager) Load(ctx context.Context) (parseErrs []error, err error) {
	err = m.exclusive(ctx, false, false, func(ctx context.Context) error {
		parseErrs, err = m.reload(ctx)
		return err
	})
	return parseErrs, err
}

// reload rebuilds the registry from the device in one swap. The caller
// holds the queue.
func (m *Manager) reload(ctx context.Context) ([]error, error) {
	res, err := m.discovery.Discover(ctx)
	if err != nil {
		return nil, err
	}
	m.registry.Replace(res.Manifests)
	m.logger.Debug("registry loaded", "mods", m.registry.Len(), "skipped", len(res.ParseErrors))
	return res.ParseErrors, nil
}

// Install waits for its turn, then installs archivePath.
func (m *Manager) Install(ctx context.Context, archivePath string) (*modmanifest.Manifest, error) {
	return m.install(ctx, archivePath, false)
}

// TryInstall installs archivePath, or fails with ErrBusy when another
// operation of this manager is running or queued.
func (m *Manager) TryInstall(ctx context.Context, archivePath string) (*modmanifest.Manifest, error) {
	return m.install(ctx, archivePath, true)
}

// Uninstall waits for its turn, then uninstalls id.
func (m *Manager) Uninstall(ctx context.Context, id string) (*modmanifest.Manifest, error) {
	return m.uninstall(ctx, id, false)
}

// TryUninstall uninstalls id, or fails with ErrBusy when another operation
// of this manager is running or queued.
func (m *Manager) TryUninstall(ctx context.Context, id string) (*modmanifest.Manifest, error) {
	return m.uninstall(ctx, id, true)
}

func (m *Manager) install(ctx context.Context, archivePath string, try bool) (*modmanifest.Manifest, error) {
	var installed *modmanifest.Manifest
	err := m.exclusive(ctx, try, true, func(ctx context.Context) error {
		mf, err := m.deployer.Install(ctx, archivePath, m.reporter)
		if err != nil {
			return err
		}
		installed = mf
		m.reporter.Progress("Done!")
		m.events.Publish(Change{Kind: Added, Manifest: mf})
		return nil
	})
	return installed, err
}

func (m *Manager) uninstall(ctx context.Context, id string, try bool) (*modmanifest.Manifest, error) {
	var removed *modmanifest.Manifest
	err := m.exclusive(ctx, try, true, func(ctx context.Context) error {
		mf, err := m.remover.Uninstall(ctx, id, m.reporter)
		if mf != nil {
			removed = mf
			m.events.Publish(Change{Kind: Removed, Manifest: mf})
		}
		if err != nil {
			return err
		}
		m.reporter.Progress("Done!")
		return nil
	})
	return removed, err
}

// exclusive runs fn while holding the in-process queue and, when
// configured, the cross-process device lock. With resync set and the device
// lock held, the registry is first rebuilt from the device, since another
// process may have installed or removed mods since the last Load.
func (m *Manager) exclusive(ctx context.Context, try, resync bool, fn func(context.Context) error) error {
	if try {
		if !m.queue.TryAcquire(1) {
			return ErrBusy
		}
	} else if err := m.queue.Acquire(ctx, 1); err != nil {
		return err
	}
	defer m.queue.Release(1)

	if err := ctx.Err(); err != nil {
		return err
	}

	if m.lockPath != "" {
		lock, err := oplock.Acquire(ctx, m.lockPath)
		switch {
		case errors.Is(err, oplock.ErrUnavailable):
			m.logger.Debug("cross-process lock unavailable; relying on the in-process queue")
		case err != nil:
			return err
		default:
			defer lock.Release()
			if resync {
				parseErrs, err := m.reload(ctx)
				if err != nil {
					return err
				}
				for _, perr := range parseErrs {
					m.logger.Warn("skipping unreadable manifest", "err", perr)
				}
			}
		}
	}

	return fn(ctx)
}

// Subscribe registers h for registry changes and returns its unsubscribe func.
func (m *Manager) Subscribe(h eventbus.Handler[Change]) func() {
	return m.events.Subscribe(h)
}

// Installed returns a snapshot of the registry, sorted by id.
func (m *Manager) Installed() []*modmanifest.Manifest {
	return m.registry.All()
}

// Get returns the installed manifest for id.
func (m *Manager) Get(id string) (*modmanifest.Manifest, bool) {
	return m.registry.Get(id)
}

// Registry exposes the registry for read-only queries.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Layout returns the expanded remote layout.
func (m *Manager) Layout() Layout {
	return m.layout
}

// Target returns the configured application id.
func (m *Manager) Target() string {
	return m.target
}
