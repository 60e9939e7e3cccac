// Package memory provides an in-process destination list store. It backs
// dry runs and tests; nothing is sent over the network.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-blocklist-sync/internal/dns"
)

func init() {
	dns.Register("memory", func(log logr.Logger, _ map[string]string) (dns.Provider, error) {
		return New(log), nil
	})
}

// Provider implements dns.Provider on top of a map.
type Provider struct {
	mu     sync.Mutex
	lists  map[int64]*list
	nextID int64
	log    logr.Logger
}

type list struct {
	meta         dns.DestinationList
	destinations []string
}

// New creates an empty store.
func New(log logr.Logger) *Provider {
	return &Provider{lists: make(map[int64]*list), log: log}
}

// Seed adds an existing list, as if it had been created by an earlier run.
func (p *Provider) Seed(spec dns.ListSpec, destinations ...string) dns.DestinationList {
	p.mu.Lock()
	defer p.mu.Unlock()
	l := p.add(spec)
	l.destinations = append(l.destinations, destinations...)
	return l.meta
}

func (p *Provider) add(spec dns.ListSpec) *list {
	p.nextID++
	l := &list{meta: dns.DestinationList{
		ID:           p.nextID,
		Name:         spec.Name,
		Access:       spec.Access,
		BundleTypeID: spec.BundleTypeID,
		IsGlobal:     spec.IsGlobal,
	}}
	p.lists[l.meta.ID] = l
	return l
}

// Destinations returns a copy of the destinations of list id.
func (p *Provider) Destinations(id int64) ([]string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.lists[id]
	if !ok {
		return nil, false
	}
	return append([]string(nil), l.destinations...), true
}

// Authenticate always succeeds with a fixed token.
func (p *Provider) Authenticate(_ context.Context) (dns.Session, error) {
	return dns.Session{AccessToken: "memory"}, nil
}

// ListDestinationLists returns all lists ordered by id.
func (p *Provider) ListDestinationLists(_ context.Context, _ dns.Session) ([]dns.DestinationList, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]dns.DestinationList, 0, len(p.lists))
	for id := int64(1); id <= p.nextID; id++ {
		if l, ok := p.lists[id]; ok {
			out = append(out, l.meta)
		}
	}
	return out, nil
}

// DeleteDestinationList removes list id.
func (p *Provider) DeleteDestinationList(_ context.Context, _ dns.Session, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.lists[id]; !ok {
		return &dns.HTTPError{Method: "DELETE", Path: fmt.Sprintf("memory/%d", id), StatusCode: 404}
	}
	delete(p.lists, id)
	p.log.Info("deleted destination list", "id", id)
	return nil
}

// CreateDestinationList stores a new empty list.
func (p *Provider) CreateDestinationList(_ context.Context, _ dns.Session, spec dns.ListSpec) (dns.DestinationList, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	l := p.add(spec)
	p.log.Info("created destination list", "id", l.meta.ID, "name", spec.Name)
	return l.meta, nil
}

// AddDestinations appends hostnames to list id.
func (p *Provider) AddDestinations(_ context.Context, _ dns.Session, id int64, hostnames []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.lists[id]
	if !ok {
		return &dns.HTTPError{Method: "POST", Path: fmt.Sprintf("memory/%d/destinations", id), StatusCode: 404}
	}
	l.destinations = append(l.destinations, hostnames...)
	p.log.V(1).Info("added destinations", "id", id, "count", len(hostnames))
	return nil
}
