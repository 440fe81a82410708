package ports

import "github.com/XITRIX/iTorrent-v2/internal/domain"

// AudioSession keeps the process alive by holding a silent audio session
// open. No OS permission gates it.
type AudioSession interface {
	Activate() error
	Deactivate()
}

// LocationProvider wraps the OS location services used by the location
// keep-alive strategy. The authorization handler may be invoked multiple
// times for a single request; the OS guarantees at least one delivery after
// RequestAuthorization.
type LocationProvider interface {
	AuthorizationStatus() domain.PermissionStatus
	RequestAuthorization()
	SetAuthorizationHandler(fn func(domain.PermissionStatus))
	// StartUpdates enables continuous low-accuracy location updates.
	StartUpdates() error
	StopUpdates()
}
