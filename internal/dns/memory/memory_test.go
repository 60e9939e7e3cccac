package memory

import (
	"context"
	"testing"

	logrtesting "github.com/go-logr/logr/testing"
	"github.com/google/go-cmp/cmp"

	"github.com/yuriy-kovalchuk/yk-blocklist-sync/internal/dns"
)

func TestLifecycle(t *testing.T) {
	p := New(logrtesting.NewTestLogger(t))
	ctx := context.Background()

	s, err := p.Authenticate(ctx)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	old := p.Seed(dns.ListSpec{Name: "blocklist", Access: "block"}, "old.example")

	if err := p.DeleteDestinationList(ctx, s, old.ID); err != nil {
		t.Fatalf("DeleteDestinationList: %v", err)
	}
	if err := p.DeleteDestinationList(ctx, s, old.ID); err == nil {
		t.Fatal("expected error deleting an already deleted list")
	}

	created, err := p.CreateDestinationList(ctx, s, dns.ListSpec{Name: "blocklist", Access: "block", BundleTypeID: 1})
	if err != nil {
		t.Fatalf("CreateDestinationList: %v", err)
	}
	if created.ID == old.ID {
		t.Errorf("expected a new id, got the old one %d", created.ID)
	}

	if err := p.AddDestinations(ctx, s, created.ID, []string{"a.example", "b.example"}); err != nil {
		t.Fatalf("AddDestinations: %v", err)
	}
	got, ok := p.Destinations(created.ID)
	if !ok {
		t.Fatal("expected created list to exist")
	}
	if diff := cmp.Diff([]string{"a.example", "b.example"}, got); diff != "" {
		t.Errorf("destinations mismatch (-want +got):\n%s", diff)
	}

	lists, err := p.ListDestinationLists(ctx, s)
	if err != nil {
		t.Fatalf("ListDestinationLists: %v", err)
	}
	if len(lists) != 1 || lists[0].Name != "blocklist" {
		t.Errorf("unexpected lists: %+v", lists)
	}
}

func TestAddToMissingList(t *testing.T) {
	p := New(logrtesting.NewTestLogger(t))
	err := p.AddDestinations(context.Background(), dns.Session{}, 42, []string{"a.example"})
	if err == nil {
		t.Fatal("expected error adding to a missing list")
	}
}
