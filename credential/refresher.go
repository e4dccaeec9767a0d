package credential

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nexacrm/coordinator/telemetry"
)

// RefreshWindow is how far ahead of expiry the Refresher proactively
// refreshes a credential.
const RefreshWindow = 5 * time.Minute

// Refresher wraps a Store and Exchanger to provide proactive and reactive
// refresh with single-flight de-duplication: concurrent mutations against
// the same session that all observe an expiring credential trigger exactly
// one refresh call, not one per mutation.
type Refresher struct {
	store     Store
	exchanger Exchanger
	logger    telemetry.Logger
	group     singleflight.Group
	now       func() time.Time
}

// NewRefresher builds a Refresher. logger may be nil, in which case a no-op
// logger is used.
func NewRefresher(store Store, exchanger Exchanger, logger telemetry.Logger) *Refresher {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Refresher{store: store, exchanger: exchanger, logger: logger, now: time.Now}
}

// Get returns a usable credential for sessionID, refreshing it first if it
// is within RefreshWindow of expiry.
func (r *Refresher) Get(ctx context.Context, sessionID string) (Credential, error) {
	cred, err := r.store.Get(ctx, sessionID)
	if err != nil {
		return Credential{}, err
	}
	if !cred.ExpiresWithin(r.now(), RefreshWindow) {
		return cred, nil
	}
	return r.refresh(ctx, sessionID)
}

// ForceRefresh refreshes sessionID's credential unconditionally. Called
// reactively after a CRM call returns 401, since the proactive window may
// have missed a credential the CRM revoked early.
func (r *Refresher) ForceRefresh(ctx context.Context, sessionID string) (Credential, error) {
	return r.refresh(ctx, sessionID)
}

func (r *Refresher) refresh(ctx context.Context, sessionID string) (Credential, error) {
	v, err, _ := r.group.Do(sessionID, func() (any, error) {
		cred, err := r.store.Get(ctx, sessionID)
		if err != nil {
			return Credential{}, err
		}
		refreshed, err := r.exchanger.Refresh(ctx, cred)
		if err != nil {
			r.logger.Error(ctx, "[CREDENTIAL:refresh] exchange failed", "session_id", sessionID, "err", err)
			return Credential{}, err
		}
		refreshed.UpdatedAt = r.now().UTC()
		if err := r.store.Put(ctx, refreshed); err != nil {
			return Credential{}, err
		}
		r.logger.Info(ctx, "[CREDENTIAL:refresh] refreshed", "session_id", sessionID)
		return refreshed, nil
	})
	if err != nil {
		return Credential{}, err
	}
	return v.(Credential), nil
}
