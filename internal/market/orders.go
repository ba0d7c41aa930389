package market

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/google/uuid"

	"agora/internal/protocol"
	"agora/internal/store"
)

const orderPrefix = "orders/"

func orderKey(orderID string) string {
	return orderPrefix + orderID
}

// ListOrdersParams filters ListOrders. SellerAgentID is resolved through the
// owning agent of each order's listing.
type ListOrdersParams struct {
	BuyerAgentID  string
	SellerAgentID string
	Status        protocol.OrderStatus
}

// CreateOrder places an order against a listing. The order starts pending.
// Unknown and withdrawn services both fail with a not-found error.
func CreateOrder(ctx context.Context, st store.Store, buyerAgentID, serviceID string, params protocol.Params) (*protocol.Order, error) {
	if buyerAgentID == "" {
		return nil, protocol.Validationf("empty buyer agent_id")
	}
	listing, err := GetService(ctx, st, serviceID)
	if err != nil {
		return nil, err
	}
	if listing.Withdrawn {
		return nil, protocol.NotFoundf("service %s is withdrawn", serviceID)
	}

	now := protocol.Now()
	order := &protocol.Order{
		OrderID:      uuid.NewString(),
		ServiceID:    serviceID,
		BuyerAgentID: buyerAgentID,
		Params:       params,
		Status:       protocol.OrderPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	b, err := json.Marshal(order)
	if err != nil {
		return nil, protocol.Storagef("encode order %s: %v", order.OrderID, err)
	}
	if err := st.Put(ctx, orderKey(order.OrderID), b); err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrder returns an order by id.
func GetOrder(ctx context.Context, st store.Store, orderID string) (*protocol.Order, error) {
	if orderID == "" {
		return nil, protocol.Validationf("empty order_id")
	}
	b, err := st.Get(ctx, orderKey(orderID))
	if err != nil {
		return nil, err
	}
	var order protocol.Order
	if err := json.Unmarshal(b, &order); err != nil {
		return nil, protocol.Storagef("decode %s: %v", orderKey(orderID), err)
	}
	return &order, nil
}

// AcceptOrder moves a pending order to accepted. Seller only.
func AcceptOrder(ctx context.Context, st store.Store, actor, orderID string) (*protocol.Order, error) {
	return transition(ctx, st, actor, orderID, true, protocol.OrderAccepted, protocol.OrderPending)
}

// RejectOrder moves a pending order to rejected. Seller only.
func RejectOrder(ctx context.Context, st store.Store, actor, orderID string) (*protocol.Order, error) {
	return transition(ctx, st, actor, orderID, true, protocol.OrderRejected, protocol.OrderPending)
}

// FulfillOrder moves an accepted order to fulfilled. Seller only.
func FulfillOrder(ctx context.Context, st store.Store, actor, orderID string) (*protocol.Order, error) {
	return transition(ctx, st, actor, orderID, true, protocol.OrderFulfilled, protocol.OrderAccepted)
}

// CancelOrder moves a pending or accepted order to cancelled. Buyer only.
func CancelOrder(ctx context.Context, st store.Store, actor, orderID string) (*protocol.Order, error) {
	return transition(ctx, st, actor, orderID, false, protocol.OrderCancelled, protocol.OrderPending, protocol.OrderAccepted)
}

// ListOrders returns orders matching the filters, newest first.
func ListOrders(ctx context.Context, st store.Store, p ListOrdersParams) ([]*protocol.Order, error) {
	records, err := st.List(ctx, orderPrefix)
	if err != nil {
		return nil, err
	}

	var ownerByService map[string]string
	if p.SellerAgentID != "" {
		serviceRecords, err := st.List(ctx, servicePrefix)
		if err != nil {
			return nil, err
		}
		ownerByService = make(map[string]string, len(serviceRecords))
		for key, b := range serviceRecords {
			var listing protocol.ServiceListing
			if err := json.Unmarshal(b, &listing); err != nil {
				return nil, protocol.Storagef("decode %s: %v", key, err)
			}
			ownerByService[listing.ServiceID] = listing.AgentID
		}
	}

	out := make([]*protocol.Order, 0, len(records))
	for key, b := range records {
		var order protocol.Order
		if err := json.Unmarshal(b, &order); err != nil {
			return nil, protocol.Storagef("decode %s: %v", key, err)
		}
		if p.BuyerAgentID != "" && order.BuyerAgentID != p.BuyerAgentID {
			continue
		}
		if p.SellerAgentID != "" && ownerByService[order.ServiceID] != p.SellerAgentID {
			continue
		}
		if p.Status != "" && order.Status != p.Status {
			continue
		}
		out = append(out, &order)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].OrderID < out[j].OrderID
	})
	return out, nil
}

// transition applies one state-machine edge. Permission is checked before
// state so an outsider probing a terminal order still gets a permission
// error, not a state leak.
func transition(ctx context.Context, st store.Store, actor, orderID string, bySeller bool, to protocol.OrderStatus, from ...protocol.OrderStatus) (*protocol.Order, error) {
	if actor == "" {
		return nil, protocol.Validationf("empty actor agent_id")
	}
	order, err := GetOrder(ctx, st, orderID)
	if err != nil {
		return nil, err
	}

	if bySeller {
		listing, err := GetService(ctx, st, order.ServiceID)
		if err != nil {
			return nil, err
		}
		if listing.AgentID != actor {
			return nil, protocol.Permissionf("agent %s does not own service %s for order %s", actor, order.ServiceID, orderID)
		}
	} else if order.BuyerAgentID != actor {
		return nil, protocol.Permissionf("agent %s is not the buyer of order %s", actor, orderID)
	}

	allowed := false
	for _, f := range from {
		if order.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, protocol.InvalidStatef("order %s is %s, cannot move to %s", orderID, order.Status, to)
	}

	order.Status = to
	order.UpdatedAt = protocol.Now()
	b, err := json.Marshal(order)
	if err != nil {
		return nil, protocol.Storagef("encode order %s: %v", orderID, err)
	}
	if err := st.Put(ctx, orderKey(orderID), b); err != nil {
		return nil, err
	}
	return order, nil
}
