package domain

import "errors"

var ErrNotFound = errors.New("not found")

// Torrent registry errors.
var ErrDuplicateTorrent = errors.New("torrent already exists")

// Storage scope errors.
var (
	ErrScopeLimitExceeded    = errors.New("storage scope limit exceeded")
	ErrScopeAlreadyExists    = errors.New("storage scope already exists")
	ErrScopeResolutionFailed = errors.New("storage scope resolution failed")
)

// Background execution errors.
var ErrPermissionDenied = errors.New("permission denied")
