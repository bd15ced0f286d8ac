package state

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/go-semantic-release/source-resolver/pkg/manifest"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var CollectionPrefix = "dev"

type fsInstalledVersion struct {
	*manifest.InstalledVersion
	UpdatedAt time.Time `firestore:",serverTimestamp"`
}

type FirestoreStore struct {
	db *firestore.Client
}

func NewFirestoreStore(db *firestore.Client) *FirestoreStore {
	return &FirestoreStore{db: db}
}

func (s *FirestoreStore) getDocRef(sourceName string, platform manifest.Platform) *firestore.DocumentRef {
	return s.db.Collection(CollectionPrefix + "-installed").Doc(key(sourceName, platform))
}

func (s *FirestoreStore) InstalledVersion(ctx context.Context, sourceName string, platform manifest.Platform) (string, error) {
	res, err := s.getDocRef(sourceName, platform).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	data := fsInstalledVersion{InstalledVersion: &manifest.InstalledVersion{}}
	if dErr := res.DataTo(&data); dErr != nil {
		return "", dErr
	}
	return data.Version, nil
}

func (s *FirestoreStore) RecordInstalled(ctx context.Context, sourceName string, platform manifest.Platform, version string) error {
	_, err := s.getDocRef(sourceName, platform).Set(ctx, &fsInstalledVersion{
		InstalledVersion: &manifest.InstalledVersion{
			Source:   sourceName,
			Platform: platform.String(),
			Version:  version,
		},
	})
	return err
}
