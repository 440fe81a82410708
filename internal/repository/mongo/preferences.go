package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/XITRIX/iTorrent-v2/internal/domain"
)

const preferencesID = "preferences"

type preferencesDoc struct {
	ID                     string `bson:"_id"`
	MaxActiveTorrents      int    `bson:"maxActiveTorrents"`
	MaxDownloadingTorrents int    `bson:"maxDownloadingTorrents"`
	MaxUploadingTorrents   int    `bson:"maxUploadingTorrents"`
	MaxDownloadSpeed       int64  `bson:"maxDownloadSpeed"`
	MaxUploadSpeed         int64  `bson:"maxUploadSpeed"`
	DHTEnabled             bool   `bson:"dhtEnabled"`
	LSDEnabled             bool   `bson:"lsdEnabled"`
	UTPEnabled             bool   `bson:"utpEnabled"`
	UPnPEnabled            bool   `bson:"upnpEnabled"`
	NATPMPEnabled          bool   `bson:"natPmpEnabled"`
	EncryptionPolicy       string `bson:"encryptionPolicy"`
	DownloadNotifications  bool   `bson:"downloadNotifications"`
	StopSeedingOnFinish    bool   `bson:"stopSeedingOnFinish"`
	BackgroundMode         string `bson:"backgroundMode"`
	DefaultStorage         string `bson:"defaultStorage"`
	UpdatedAt              int64  `bson:"updatedAt"`
}

type PreferencesRepository struct {
	collection *mongo.Collection
}

func NewPreferencesRepository(client *mongo.Client, dbName string) *PreferencesRepository {
	return &PreferencesRepository{collection: client.Database(dbName).Collection("settings")}
}

func toPreferencesDoc(prefs domain.Preferences) preferencesDoc {
	defaultStorage := ""
	if prefs.DefaultStorage != uuid.Nil {
		defaultStorage = prefs.DefaultStorage.String()
	}
	return preferencesDoc{
		ID:                     preferencesID,
		MaxActiveTorrents:      prefs.MaxActiveTorrents,
		MaxDownloadingTorrents: prefs.MaxDownloadingTorrents,
		MaxUploadingTorrents:   prefs.MaxUploadingTorrents,
		MaxDownloadSpeed:       prefs.MaxDownloadSpeed,
		MaxUploadSpeed:         prefs.MaxUploadSpeed,
		DHTEnabled:             prefs.DHTEnabled,
		LSDEnabled:             prefs.LSDEnabled,
		UTPEnabled:             prefs.UTPEnabled,
		UPnPEnabled:            prefs.UPnPEnabled,
		NATPMPEnabled:          prefs.NATPMPEnabled,
		EncryptionPolicy:       string(prefs.EncryptionPolicy),
		DownloadNotifications:  prefs.DownloadNotifications,
		StopSeedingOnFinish:    prefs.StopSeedingOnFinish,
		BackgroundMode:         string(prefs.BackgroundMode),
		DefaultStorage:         defaultStorage,
		UpdatedAt:              time.Now().Unix(),
	}
}

func fromPreferencesDoc(doc preferencesDoc) domain.Preferences {
	defaultStorage := uuid.Nil
	if doc.DefaultStorage != "" {
		if parsed, err := uuid.Parse(doc.DefaultStorage); err == nil {
			defaultStorage = parsed
		}
	}
	return domain.Preferences{
		MaxActiveTorrents:      doc.MaxActiveTorrents,
		MaxDownloadingTorrents: doc.MaxDownloadingTorrents,
		MaxUploadingTorrents:   doc.MaxUploadingTorrents,
		MaxDownloadSpeed:       doc.MaxDownloadSpeed,
		MaxUploadSpeed:         doc.MaxUploadSpeed,
		DHTEnabled:             doc.DHTEnabled,
		LSDEnabled:             doc.LSDEnabled,
		UTPEnabled:             doc.UTPEnabled,
		UPnPEnabled:            doc.UPnPEnabled,
		NATPMPEnabled:          doc.NATPMPEnabled,
		EncryptionPolicy:       domain.EncryptionPolicy(doc.EncryptionPolicy),
		DownloadNotifications:  doc.DownloadNotifications,
		StopSeedingOnFinish:    doc.StopSeedingOnFinish,
		BackgroundMode:         domain.BackgroundMode(doc.BackgroundMode),
		DefaultStorage:         defaultStorage,
	}
}

func (r *PreferencesRepository) GetPreferences(ctx context.Context) (domain.Preferences, bool, error) {
	var doc preferencesDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": preferencesID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Preferences{}, false, nil
		}
		return domain.Preferences{}, false, err
	}
	return fromPreferencesDoc(doc), true, nil
}

func (r *PreferencesRepository) SetPreferences(ctx context.Context, prefs domain.Preferences) error {
	_, err := r.collection.ReplaceOne(
		ctx,
		bson.M{"_id": preferencesID},
		toPreferencesDoc(prefs),
		options.Replace().SetUpsert(true),
	)
	return err
}
