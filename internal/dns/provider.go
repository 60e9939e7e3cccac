package dns

import (
	"context"
	"time"
)

// Session carries the bearer token obtained for one synchronization run.
// A zero Session is valid and sends an empty bearer token.
type Session struct {
	AccessToken string
}

// DestinationList is a named list of destinations held by the remote service.
type DestinationList struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Access       string `json:"access"`
	BundleTypeID int    `json:"bundleTypeId"`
	IsGlobal     bool   `json:"isGlobal"`
}

// ListSpec describes a destination list to create.
type ListSpec struct {
	Name         string
	Access       string // "block" or "allow"
	BundleTypeID int
	IsGlobal     bool
}

// Provider is the interface that destination-list backends must implement.
type Provider interface {
	Authenticate(ctx context.Context) (Session, error)
	ListDestinationLists(ctx context.Context, s Session) ([]DestinationList, error)
	DeleteDestinationList(ctx context.Context, s Session, id int64) error
	CreateDestinationList(ctx context.Context, s Session, spec ListSpec) (DestinationList, error)
	AddDestinations(ctx context.Context, s Session, id int64, hostnames []string) error
}

// RequestObserver receives one call per API request a provider makes.
// code is 0 when no response was received.
type RequestObserver interface {
	ObserveRequest(endpoint, method string, code int, d time.Duration)
}

// Observable is implemented by providers that can report their API requests.
type Observable interface {
	SetObserver(o RequestObserver)
}
