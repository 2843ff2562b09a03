// Package downloads gates access to paid assets and mints short-lived
// retrieval links. This is the authorization boundary in front of object
// storage: no entitlement, no URL.
package downloads

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/open-rails/purchasekit/catalog"
	"github.com/open-rails/purchasekit/entitlements"
)

var (
	// ErrNotEntitled refuses a download for an unpurchased item.
	ErrNotEntitled = errors.New("downloads: not entitled")
	// ErrItemNotFound means the item id resolves to nothing in the catalog.
	ErrItemNotFound = errors.New("downloads: item not found")
)

// DefaultExpiry is the signed URL lifetime.
const DefaultExpiry = time.Hour

// ObjectSigner mints time-bounded retrieval URLs for stored objects.
type ObjectSigner interface {
	SignedGetURL(ctx context.Context, objectKey, filename string, expiry time.Duration) (string, error)
}

// ItemReader is the slice of the catalog the service needs.
type ItemReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (catalog.Item, bool, error)
}

// Grant is a freshly minted download authorization. The URL carries its own
// expiry; Grants are never cached or re-issued from a cached value.
type Grant struct {
	URL              string `json:"url"`
	Filename         string `json:"filename"`
	ExpiresInSeconds int    `json:"expires_in_seconds"`
}

// Service authorizes downloads against the entitlement store.
type Service struct {
	store  entitlements.Store
	items  ItemReader
	signer ObjectSigner
	expiry time.Duration
	log    *logrus.Logger
}

func NewService(store entitlements.Store, items ItemReader, signer ObjectSigner, expiry time.Duration, log *logrus.Logger) *Service {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{store: store, items: items, signer: signer, expiry: expiry, log: log}
}

// Authorize checks the entitlement and, if present, re-derives a fresh
// signed URL for the item's asset. Read-only with respect to the store.
func (s *Service) Authorize(ctx context.Context, accountID, itemID uuid.UUID) (Grant, error) {
	entitled, err := s.store.Exists(ctx, accountID, itemID)
	if err != nil {
		return Grant{}, fmt.Errorf("downloads: entitlement lookup: %w", err)
	}
	if !entitled {
		return Grant{}, ErrNotEntitled
	}

	item, ok, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return Grant{}, fmt.Errorf("downloads: load item: %w", err)
	}
	if !ok {
		return Grant{}, ErrItemNotFound
	}

	key := ObjectKey(item.AssetURL)
	filename := downloadFilename(item.Title, key)
	url, err := s.signer.SignedGetURL(ctx, key, filename, s.expiry)
	if err != nil {
		return Grant{}, fmt.Errorf("downloads: sign url: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"account_id": accountID,
		"item_id":    itemID,
	}).Info("download link issued")
	return Grant{URL: url, Filename: filename, ExpiresInSeconds: int(s.expiry / time.Second)}, nil
}

// ObjectKey resolves the storage key from the catalog's asset pointer. The
// catalog stores either a bare key or a full URL with the bucket in the
// path; everything after the bucket segment is the key.
func ObjectKey(assetURL string) string {
	trimmed := strings.TrimSpace(assetURL)
	if !strings.Contains(trimmed, "://") {
		return strings.TrimPrefix(trimmed, "/")
	}
	_, rest, ok := strings.Cut(trimmed, "://")
	if !ok {
		return trimmed
	}
	// host / bucket / key...
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) == 3 {
		return parts[2]
	}
	return parts[len(parts)-1]
}

func downloadFilename(title, key string) string {
	t := strings.TrimSpace(title)
	if t == "" {
		return path.Base(key)
	}
	ext := path.Ext(key)
	if ext == "" {
		ext = ".mp3"
	}
	return t + ext
}
