package domain

type BackgroundMode string

const (
	BackgroundAudio    BackgroundMode = "audio"
	BackgroundLocation BackgroundMode = "location"
)

func (m BackgroundMode) Valid() bool {
	return m == BackgroundAudio || m == BackgroundLocation
}

// PermissionStatus mirrors the OS authorization states for a background
// capability.
type PermissionStatus string

const (
	PermissionNotDetermined PermissionStatus = "notDetermined"
	PermissionDenied        PermissionStatus = "denied"
	PermissionRestricted    PermissionStatus = "restricted"
	PermissionAllowed       PermissionStatus = "allowed"
)

// Determined reports whether the user has already answered the permission
// prompt.
func (s PermissionStatus) Determined() bool {
	return s != PermissionNotDetermined
}

// Usable reports whether the capability may run: anything except an explicit
// denial or restriction.
func (s PermissionStatus) Usable() bool {
	return s != PermissionDenied && s != PermissionRestricted
}
