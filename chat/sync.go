package chat

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/richinex/chatline/model"
)

// SyncReport summarizes a Sync run.
type SyncReport struct {
	Imported []string         // sessions created locally from the backend
	Extended []string         // local sessions that were a strict prefix of the backend copy
	Skipped  []string         // local copy kept as is
	Failed   map[string]error // history fetch failures, by session id
}

// Sync imports the backend's sessions into the registry. Local state stays
// authoritative: a local history is only replaced when it is a strict prefix of
// the remote one. A failure on one session never aborts the others.
func (e *Exchange) Sync(ctx context.Context) (SyncReport, error) {
	remote, err := e.backend.Sessions(ctx)
	if err != nil {
		return SyncReport{}, e.fail(fmt.Errorf("sync: %w", err))
	}

	histories := make([][]model.Message, len(remote))
	report := SyncReport{Failed: make(map[string]error)}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(e.syncWorkers)
	for i, info := range remote {
		g.Go(func() error {
			history, err := e.backend.History(ctx, info.ID)
			if err != nil {
				mu.Lock()
				report.Failed[info.ID] = err
				mu.Unlock()
				return nil
			}
			histories[i] = history
			return nil
		})
	}
	_ = g.Wait()

	registry := e.ctrl.Registry()
	for i, info := range remote {
		if _, failed := report.Failed[info.ID]; failed {
			continue
		}
		logger := e.logger.WithField("session_id", info.ID)

		unlock := e.lock(info.ID)
		local := registry.Get(info.ID)
		exists := registry.Exists(info.ID)
		switch {
		case !exists:
			err = registry.Replace(ctx, info.ID, histories[i])
			report.Imported = append(report.Imported, info.ID)
		case isStrictPrefix(local, histories[i]):
			err = registry.Replace(ctx, info.ID, histories[i])
			report.Extended = append(report.Extended, info.ID)
		default:
			err = nil
			report.Skipped = append(report.Skipped, info.ID)
		}
		unlock()

		if err != nil {
			return report, e.fail(fmt.Errorf("sync %s: %w", info.ID, err))
		}
		logger.Debug("session synced")
	}

	for id, err := range report.Failed {
		e.logger.WithField("session_id", id).WithError(err).Warn("sync: history fetch failed")
	}
	return report, nil
}

// isStrictPrefix reports whether local is a proper prefix of remote, comparing
// role and content only.
func isStrictPrefix(local, remote []model.Message) bool {
	if len(local) >= len(remote) {
		return false
	}
	for i := range local {
		if local[i].Role != remote[i].Role || local[i].Content != remote[i].Content {
			return false
		}
	}
	return true
}
