// Package market holds service listings published by agents and the orders
// placed against them. Listings are immutable after publication except for
// their withdrawal flag; orders move through a small state machine driven by
// the owning seller and by buyer cancellation.
package market

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/google/uuid"

	"agora/internal/protocol"
	"agora/internal/store"
)

const servicePrefix = "services/"

func serviceKey(serviceID string) string {
	return servicePrefix + serviceID
}

// ListServicesParams filters ListServices. IncludeWithdrawn is for owner
// accounting; market browsing leaves it false.
type ListServicesParams struct {
	Tags             []string
	MaxPrice         *float64
	AgentID          string
	IncludeWithdrawn bool
}

// Publish validates the listing, assigns a service_id, and persists it. The
// stored listing is returned.
func Publish(ctx context.Context, st store.Store, listing *protocol.ServiceListing) (*protocol.ServiceListing, error) {
	if listing == nil {
		return nil, protocol.Validationf("nil listing")
	}
	if listing.AgentID == "" {
		return nil, protocol.Validationf("listing has empty agent_id")
	}
	if strings.TrimSpace(listing.Name) == "" {
		return nil, protocol.Validationf("listing has empty name")
	}
	if listing.Price < 0 {
		return nil, protocol.Validationf("listing %q has negative price %v", listing.Name, listing.Price)
	}

	stored := *listing
	stored.ServiceID = uuid.NewString()
	stored.CreatedAt = protocol.Now()
	stored.Withdrawn = false

	b, err := json.Marshal(&stored)
	if err != nil {
		return nil, protocol.Storagef("encode listing %s: %v", stored.ServiceID, err)
	}
	if err := st.Put(ctx, serviceKey(stored.ServiceID), b); err != nil {
		return nil, err
	}
	return &stored, nil
}

// GetService returns a listing by id, withdrawn or not.
func GetService(ctx context.Context, st store.Store, serviceID string) (*protocol.ServiceListing, error) {
	if serviceID == "" {
		return nil, protocol.Validationf("empty service_id")
	}
	b, err := st.Get(ctx, serviceKey(serviceID))
	if err != nil {
		return nil, err
	}
	var listing protocol.ServiceListing
	if err := json.Unmarshal(b, &listing); err != nil {
		return nil, protocol.Storagef("decode %s: %v", serviceKey(serviceID), err)
	}
	return &listing, nil
}

// ListServices returns listings matching the filters, newest first.
// Withdrawn listings are excluded unless IncludeWithdrawn is set.
func ListServices(ctx context.Context, st store.Store, p ListServicesParams) ([]*protocol.ServiceListing, error) {
	records, err := st.List(ctx, servicePrefix)
	if err != nil {
		return nil, err
	}

	out := make([]*protocol.ServiceListing, 0, len(records))
	for key, b := range records {
		var listing protocol.ServiceListing
		if err := json.Unmarshal(b, &listing); err != nil {
			return nil, protocol.Storagef("decode %s: %v", key, err)
		}
		if listing.Withdrawn && !p.IncludeWithdrawn {
			continue
		}
		if p.AgentID != "" && listing.AgentID != p.AgentID {
			continue
		}
		if p.MaxPrice != nil && listing.Price > *p.MaxPrice {
			continue
		}
		if len(p.Tags) > 0 && !anyTag(p.Tags, listing.Tags) {
			continue
		}
		out = append(out, &listing)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ServiceID < out[j].ServiceID
	})
	return out, nil
}

// Withdraw flips the withdrawal flag on a listing. Only the owning agent may
// withdraw; withdrawing an already withdrawn listing is a no-op.
func Withdraw(ctx context.Context, st store.Store, actor, serviceID string) (*protocol.ServiceListing, error) {
	listing, err := GetService(ctx, st, serviceID)
	if err != nil {
		return nil, err
	}
	if listing.AgentID != actor {
		return nil, protocol.Permissionf("agent %s does not own service %s", actor, serviceID)
	}
	if listing.Withdrawn {
		return listing, nil
	}
	listing.Withdrawn = true
	b, err := json.Marshal(listing)
	if err != nil {
		return nil, protocol.Storagef("encode listing %s: %v", serviceID, err)
	}
	if err := st.Put(ctx, serviceKey(serviceID), b); err != nil {
		return nil, err
	}
	return listing, nil
}

// anyTag reports whether the requested and present tag sets intersect.
func anyTag(requested, present []string) bool {
	for _, want := range requested {
		for _, have := range present {
			if want == have {
				return true
			}
		}
	}
	return false
}
