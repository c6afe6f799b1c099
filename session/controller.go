package session

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/richinex/chatline/view"
)

// ErrNoSession is returned by operations that need a current session when none is selected.
var ErrNoSession = errors.New("no current session")

// RemoteDeleter removes a session on the backend.
type RemoteDeleter interface {
	DeleteSession(ctx context.Context, sessionID string) error
}

// Controller owns the current-session pointer and coordinates the registry,
// the render surface and backend deletions. One controller per client.
type Controller struct {
	registry *Registry
	remote   RemoteDeleter
	renderer view.Renderer
	logger   log.FieldLogger
}

// NewController wires a controller. remote may be nil for an offline client.
func NewController(registry *Registry, remote RemoteDeleter, renderer view.Renderer, logger log.FieldLogger) *Controller {
	if renderer == nil {
		renderer = view.Nop{}
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Controller{
		registry: registry,
		remote:   remote,
		renderer: renderer,
		logger:   logger,
	}
}

// Registry returns the underlying registry.
func (c *Controller) Registry() *Registry {
	return c.registry
}

// Renderer returns the render surface.
func (c *Controller) Renderer() view.Renderer {
	return c.renderer
}

// Current returns the current session id, or "" when none is selected.
func (c *Controller) Current() string {
	return c.registry.Current()
}

// SwitchTo makes id the current session and renders its history.
// An unknown id is a UI/state desync: it is logged, the pointer is cleared and
// an empty history is rendered. The registry is left untouched.
func (c *Controller) SwitchTo(ctx context.Context, id string) error {
	if !c.registry.Exists(id) {
		c.logger.WithField("session_id", id).Warn("switch to unknown session")
		if err := c.registry.SetCurrent(ctx, ""); err != nil {
			return err
		}
		c.renderer.Render("", nil)
		return nil
	}

	if err := c.registry.SetCurrent(ctx, id); err != nil {
		return err
	}
	c.renderer.Render(id, c.registry.Get(id))
	return nil
}

// CreateAndSwitch starts a new empty session and selects it.
func (c *Controller) CreateAndSwitch(ctx context.Context) (string, error) {
	id, err := c.registry.Create(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	if err := c.registry.SetCurrent(ctx, id); err != nil {
		return id, err
	}
	c.renderer.Clear()
	c.logger.WithField("session_id", id).Debug("session created")
	return id, nil
}

// EnsureCurrent selects a session for first use, creating one when nothing is selected.
func (c *Controller) EnsureCurrent(ctx context.Context) (string, error) {
	if id := c.registry.Current(); id != "" {
		c.renderer.Render(id, c.registry.Get(id))
		return id, nil
	}
	return c.CreateAndSwitch(ctx)
}

// DeleteCurrent deletes the current session. Confirmation is the caller's job.
func (c *Controller) DeleteCurrent(ctx context.Context) (string, error) {
	id := c.registry.Current()
	if id == "" {
		return "", ErrNoSession
	}
	return id, c.Delete(ctx, id)
}

// Delete removes a session locally and, best effort, on the backend.
// A backend failure is logged and never blocks the local removal.
func (c *Controller) Delete(ctx context.Context, id string) error {
	logger := c.logger.WithField("session_id", id)

	if !c.registry.Exists(id) {
		logger.Warn("delete of unknown session")
	}

	if c.remote != nil {
		if err := c.remote.DeleteSession(ctx, id); err != nil {
			logger.WithError(err).Warn("remote delete failed, removing locally")
		}
	}

	wasCurrent := c.registry.Current() == id
	if err := c.registry.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if wasCurrent {
		c.renderer.Clear()
	}
	return nil
}

// Adopt applies the backend's verdict on a provisional session id. An empty or
// identical confirmed id accepts the provisional one as is.
func (c *Controller) Adopt(ctx context.Context, provisional, confirmed string) (string, error) {
	if confirmed == "" || confirmed == provisional {
		return provisional, nil
	}
	c.logger.WithFields(log.Fields{
		"session_id":  confirmed,
		"provisional": provisional,
	}).Info("backend reassigned session id")

	if err := c.registry.Rename(ctx, provisional, confirmed); err != nil {
		return confirmed, fmt.Errorf("failed to adopt session id: %w", err)
	}
	return confirmed, nil
}
