package worker

import (
	"context"
	"time"

	"todone/internal/domain"
	"todone/internal/state"

	"github.com/rs/zerolog"
)

// ConnectivityWatcher probes the remote health endpoint and flips the
// offline flag on the state store. A failed probe means offline; the sync
// loop skips drain passes until the next successful probe.
type ConnectivityWatcher struct {
	remote   domain.RemoteAPI
	state    *state.Store
	interval time.Duration
	logger   zerolog.Logger
}

func NewConnectivityWatcher(remoteAPI domain.RemoteAPI, stateStore *state.Store, interval time.Duration, logger *zerolog.Logger) *ConnectivityWatcher {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	var log zerolog.Logger
	if logger != nil {
		log = logger.With().Str("component", "connectivity").Logger()
	}
	return &ConnectivityWatcher{
		remote:   remoteAPI,
		state:    stateStore,
		interval: interval,
		logger:   log,
	}
}

// Start probes immediately, then on every tick until ctx is done.
func (w *ConnectivityWatcher) Start(ctx context.Context) {
	w.probe(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.probe(ctx)
		}
	}
}

func (w *ConnectivityWatcher) probe(ctx context.Context) {
	wasOffline := w.state.Snapshot().IsOffline
	err := w.remote.Health(ctx)
	offline := err != nil

	if offline != wasOffline {
		if offline {
			w.logger.Warn().Err(err).Msg("remote unreachable, going offline")
		} else {
			w.logger.Info().Msg("remote reachable again, back online")
		}
	}
	w.state.SetOffline(offline)
}
