package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"agora/internal/protocol"
	"agora/internal/store"
)

func openTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	return st
}

func publishTestService(t *testing.T, st store.Store, agentID, name string, price float64, tags ...string) *protocol.ServiceListing {
	t.Helper()
	listing, err := Publish(context.Background(), st, &protocol.ServiceListing{
		AgentID: agentID,
		Name:    name,
		Price:   price,
		Tags:    tags,
	})
	if err != nil {
		t.Fatalf("publish %s: %v", name, err)
	}
	return listing
}

func TestPublishAssignsIDAndTimestamp(t *testing.T) {
	st := openTestStore(t)
	listing := publishTestService(t, st, "alice", "Code Review", 0.10, "review")

	if listing.ServiceID == "" {
		t.Fatal("service_id not assigned")
	}
	if listing.CreatedAt == "" {
		t.Fatal("created_at not stamped")
	}
	if listing.Withdrawn {
		t.Fatal("fresh listing marked withdrawn")
	}

	got, err := GetService(context.Background(), st, listing.ServiceID)
	if err != nil {
		t.Fatalf("get service: %v", err)
	}
	if got.Name != "Code Review" || got.AgentID != "alice" {
		t.Fatalf("unexpected stored listing: %+v", got)
	}
}

func TestPublishValidation(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	cases := []struct {
		name    string
		listing *protocol.ServiceListing
	}{
		{"empty name", &protocol.ServiceListing{AgentID: "alice", Name: "  "}},
		{"negative price", &protocol.ServiceListing{AgentID: "alice", Name: "x", Price: -0.01}},
		{"empty agent", &protocol.ServiceListing{Name: "x"}},
	}
	for _, tc := range cases {
		if _, err := Publish(ctx, st, tc.listing); !errors.Is(err, protocol.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestListServicesFiltersAndOrder(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	first := publishTestService(t, st, "alice", "Code Review", 0.10, "review", "security")
	time.Sleep(time.Millisecond)
	second := publishTestService(t, st, "bob", "Summaries", 0.50, "writing")
	time.Sleep(time.Millisecond)
	third := publishTestService(t, st, "alice", "Threat Model", 2.00, "security")

	all, err := ListServices(ctx, st, ListServicesParams{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 listings, got %d", len(all))
	}
	if all[0].ServiceID != third.ServiceID || all[2].ServiceID != first.ServiceID {
		t.Fatal("listings not newest first")
	}

	maxPrice := 0.60
	cheap, err := ListServices(ctx, st, ListServicesParams{MaxPrice: &maxPrice})
	if err != nil {
		t.Fatalf("list cheap: %v", err)
	}
	if len(cheap) != 2 {
		t.Fatalf("expected 2 listings under %v, got %d", maxPrice, len(cheap))
	}

	tagged, err := ListServices(ctx, st, ListServicesParams{Tags: []string{"security", "missing"}})
	if err != nil {
		t.Fatalf("list tagged: %v", err)
	}
	if len(tagged) != 2 {
		t.Fatalf("expected 2 security listings (any-tag match), got %d", len(tagged))
	}

	mine, err := ListServices(ctx, st, ListServicesParams{AgentID: "bob"})
	if err != nil {
		t.Fatalf("list bob: %v", err)
	}
	if len(mine) != 1 || mine[0].ServiceID != second.ServiceID {
		t.Fatalf("unexpected bob listings: %+v", mine)
	}
}

func TestWithdrawHidesListing(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	listing := publishTestService(t, st, "alice", "Code Review", 0.10)

	if _, err := Withdraw(ctx, st, "mallory", listing.ServiceID); !errors.Is(err, protocol.ErrPermission) {
		t.Fatalf("non-owner withdraw: expected permission error, got %v", err)
	}

	if _, err := Withdraw(ctx, st, "alice", listing.ServiceID); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	visible, err := ListServices(ctx, st, ListServicesParams{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(visible) != 0 {
		t.Fatalf("withdrawn listing still visible: %+v", visible)
	}

	// Owner accounting still sees it.
	all, err := ListServices(ctx, st, ListServicesParams{AgentID: "alice", IncludeWithdrawn: true})
	if err != nil {
		t.Fatalf("list with withdrawn: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected withdrawn listing to count for its owner, got %d", len(all))
	}

	// Withdrawn listings stay addressable by id.
	got, err := GetService(ctx, st, listing.ServiceID)
	if err != nil {
		t.Fatalf("get withdrawn: %v", err)
	}
	if !got.Withdrawn {
		t.Fatal("withdrawal flag not persisted")
	}

	// Idempotent for the owner.
	if _, err := Withdraw(ctx, st, "alice", listing.ServiceID); err != nil {
		t.Fatalf("second withdraw: %v", err)
	}
}
