package domain

import "github.com/google/uuid"

type EncryptionPolicy string

const (
	EncryptionEnabled  EncryptionPolicy = "enabled"
	EncryptionForced   EncryptionPolicy = "forced"
	EncryptionDisabled EncryptionPolicy = "disabled"
)

// Preferences holds every durable user setting the session core depends on.
type Preferences struct {
	MaxActiveTorrents      int              `json:"maxActiveTorrents"`
	MaxDownloadingTorrents int              `json:"maxDownloadingTorrents"`
	MaxUploadingTorrents   int              `json:"maxUploadingTorrents"`
	MaxDownloadSpeed       int64            `json:"maxDownloadSpeed"` // bytes/sec, 0 = unlimited
	MaxUploadSpeed         int64            `json:"maxUploadSpeed"`   // bytes/sec, 0 = unlimited
	DHTEnabled             bool             `json:"dhtEnabled"`
	LSDEnabled             bool             `json:"lsdEnabled"`
	UTPEnabled             bool             `json:"utpEnabled"`
	UPnPEnabled            bool             `json:"upnpEnabled"`
	NATPMPEnabled          bool             `json:"natPmpEnabled"`
	EncryptionPolicy       EncryptionPolicy `json:"encryptionPolicy"`
	DownloadNotifications  bool             `json:"downloadNotifications"`
	StopSeedingOnFinish    bool             `json:"stopSeedingOnFinish"`
	BackgroundMode         BackgroundMode   `json:"backgroundMode"`
	DefaultStorage         uuid.UUID        `json:"defaultStorage"` // uuid.Nil = sandbox default
}

func DefaultPreferences() Preferences {
	return Preferences{
		MaxActiveTorrents:      4,
		MaxDownloadingTorrents: 3,
		MaxUploadingTorrents:   3,
		DHTEnabled:             true,
		LSDEnabled:             true,
		UTPEnabled:             true,
		UPnPEnabled:            true,
		NATPMPEnabled:          true,
		EncryptionPolicy:       EncryptionEnabled,
		DownloadNotifications:  true,
		BackgroundMode:         BackgroundAudio,
	}
}

// SessionSettings is the single combined settings object handed to the
// engine. It is recomputed as a whole whenever any constituent preference,
// the network-interface list, or the storage-scope map changes.
type SessionSettings struct {
	MaxActiveTorrents      int
	MaxDownloadingTorrents int
	MaxUploadingTorrents   int
	MaxDownloadSpeed       int64
	MaxUploadSpeed         int64
	DHTEnabled             bool
	LSDEnabled             bool
	UTPEnabled             bool
	UPnPEnabled            bool
	NATPMPEnabled          bool
	EncryptionPolicy       EncryptionPolicy
	Interfaces             []string
	Storages               map[uuid.UUID]string
}

// SessionSettings combines the preferences with the live interface list and
// resolved storage roots into one engine-ready object.
func (p Preferences) SessionSettings(interfaces []string, storages map[uuid.UUID]string) SessionSettings {
	return SessionSettings{
		MaxActiveTorrents:      p.MaxActiveTorrents,
		MaxDownloadingTorrents: p.MaxDownloadingTorrents,
		MaxUploadingTorrents:   p.MaxUploadingTorrents,
		MaxDownloadSpeed:       p.MaxDownloadSpeed,
		MaxUploadSpeed:         p.MaxUploadSpeed,
		DHTEnabled:             p.DHTEnabled,
		LSDEnabled:             p.LSDEnabled,
		UTPEnabled:             p.UTPEnabled,
		UPnPEnabled:            p.UPnPEnabled,
		NATPMPEnabled:          p.NATPMPEnabled,
		EncryptionPolicy:       p.EncryptionPolicy,
		Interfaces:             interfaces,
		Storages:               storages,
	}
}
