package netio

import (
	"time"

	"github.com/mooproxy/mooproxy/internal/domain/world"
)

// Reconnect backoff schedule: linear with caps. ReconnectStableWindow
// is not given a reference value; 60s was chosen as a reasonable
// "has this connection settled down" horizon (see DESIGN.md).
const (
	ReconnectInitialDelay = 5 * time.Second
	ReconnectStep         = 5 * time.Second
	ReconnectMaxDelay     = 180 * time.Second
	ReconnectStableWindow = 60 * time.Second
)

// ScheduleReconnect arms wld for a reconnect attempt after its current
// backoff delay has elapsed, then grows the delay by one step (capped
// at ReconnectMaxDelay) ready for the next failure. Called once a
// connect attempt has exhausted every resolved address.
func ScheduleReconnect(wld *world.World, now time.Time) {
	if !wld.ReconnectEnabled {
		wld.ServerStatus = world.ServerDisconnected
		return
	}

	if wld.ReconnectDelay == 0 {
		wld.ReconnectDelay = ReconnectInitialDelay
	}
	wld.ReconnectAt = now.Add(wld.ReconnectDelay)
	wld.ServerStatus = world.ServerReconnectWait

	wld.ReconnectDelay += ReconnectStep
	if wld.ReconnectDelay > ReconnectMaxDelay {
		wld.ReconnectDelay = ReconnectMaxDelay
	}
}

// DecreaseReconnectDelay lowers the backoff delay by one step, floored
// at ReconnectInitialDelay. Called after ReconnectStableWindow has
// passed since a connection was established without dropping.
func DecreaseReconnectDelay(wld *world.World) {
	wld.ReconnectDelay -= ReconnectStep
	if wld.ReconnectDelay < ReconnectInitialDelay {
		wld.ReconnectDelay = ReconnectInitialDelay
	}
}

// DueForReconnect reports whether wld is waiting to reconnect and its
// scheduled time has arrived.
func DueForReconnect(wld *world.World, now time.Time) bool {
	return wld.ServerStatus == world.ServerReconnectWait && !now.Before(wld.ReconnectAt)
}

// StableLongEnough reports whether wld has been continuously connected
// for at least ReconnectStableWindow as of now, the trigger for
// DecreaseReconnectDelay.
func StableLongEnough(wld *world.World, now time.Time) bool {
	return wld.ServerStatus == world.ServerConnected &&
		!wld.ConnectedSince.IsZero() &&
		now.Sub(wld.ConnectedSince) >= ReconnectStableWindow
}
