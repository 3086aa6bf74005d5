package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rl1809/storefront/internal/core/domain"
)

func seedOrder(repo *mockOrderRepo, id string, status domain.OrderStatus) {
	repo.orders[id] = domain.Order{
		ID:           id,
		ContactEmail: "ansel@example.com",
		LineItems: []domain.LineItem{
			{ProductRef: "print-1", ProductName: "Aurora Print", Quantity: 2, UnitPrice: dec("50"), LineTotal: dec("100")},
		},
		Subtotal:  dec("100"),
		Discount:  dec("0"),
		Total:     dec("100"),
		Status:    status,
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestTransition_Accepted(t *testing.T) {
	repo := newMockOrderRepo()
	seedOrder(repo, "o1", domain.OrderStatusProcessing)
	svc := NewOrderService(repo, nil)

	order, err := svc.Transition(context.Background(), "o1", "Delivered")
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if order.Status != domain.OrderStatusDelivered {
		t.Errorf("expected Delivered, got %s", order.Status)
	}
	if repo.orders["o1"].Status != domain.OrderStatusDelivered {
		t.Errorf("expected stored status Delivered, got %s", repo.orders["o1"].Status)
	}
	if !repo.orders["o1"].Total.Equal(dec("100")) {
		t.Errorf("transition must not touch amounts")
	}
}

func TestTransition_SkipRejected(t *testing.T) {
	repo := newMockOrderRepo()
	seedOrder(repo, "o1", domain.OrderStatusPlaced)
	svc := NewOrderService(repo, nil)

	_, err := svc.Transition(context.Background(), "o1", "Delivered")

	var terr *TransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransitionError, got: %v", err)
	}
	if terr.Current != domain.OrderStatusPlaced || terr.Requested != domain.OrderStatusDelivered {
		t.Errorf("expected Placed -> Delivered, got %s -> %s", terr.Current, terr.Requested)
	}
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition")
	}
	if errors.Is(err, ErrConcurrentModification) {
		t.Errorf("a plain rejection is not a concurrent modification")
	}
	if repo.orders["o1"].Status != domain.OrderStatusPlaced {
		t.Errorf("order must be unchanged, got %s", repo.orders["o1"].Status)
	}
}

func TestTransition_Table(t *testing.T) {
	requests := []string{"Placed", "Processing", "Delivered", "Cancelled", ""}

	for _, from := range domain.OrderStatuses() {
		for _, to := range requests {
			t.Run(fmt.Sprintf("%s->%s", from, to), func(t *testing.T) {
				repo := newMockOrderRepo()
				seedOrder(repo, "o1", from)
				svc := NewOrderService(repo, nil)

				_, err := svc.Transition(context.Background(), "o1", to)

				legal := (from == domain.OrderStatusPlaced && to == "Processing") ||
					(from == domain.OrderStatusProcessing && to == "Delivered")
				if legal && err != nil {
					t.Errorf("expected success, got: %v", err)
				}
				if !legal && !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("expected ErrInvalidTransition, got: %v", err)
				}
			})
		}
	}
}

func TestTransition_CaseInsensitiveStatus(t *testing.T) {
	repo := newMockOrderRepo()
	seedOrder(repo, "o1", domain.OrderStatusPlaced)
	svc := NewOrderService(repo, nil)

	order, err := svc.Transition(context.Background(), "o1", " processing ")
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if order.Status != domain.OrderStatusProcessing {
		t.Errorf("expected Processing, got %s", order.Status)
	}
}

func TestTransition_NotFound(t *testing.T) {
	svc := NewOrderService(newMockOrderRepo(), nil)

	_, err := svc.Transition(context.Background(), "missing", "Processing")
	if !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got: %v", err)
	}
}

func TestTransition_StoreFailure(t *testing.T) {
	repo := newMockOrderRepo()
	seedOrder(repo, "o1", domain.OrderStatusPlaced)
	repo.updateErr = errors.New("deadlock found")
	svc := NewOrderService(repo, nil)

	_, err := svc.Transition(context.Background(), "o1", "Processing")
	if !errors.Is(err, ErrPersistence) {
		t.Errorf("expected ErrPersistence, got: %v", err)
	}
}

func TestTransition_Concurrent(t *testing.T) {
	const workers = 10

	repo := newMockOrderRepo()
	seedOrder(repo, "o1", domain.OrderStatusPlaced)
	// Every worker reads Placed before any write lands.
	repo.barrier = newReadBarrier(workers)
	svc := NewOrderService(repo, nil)

	var successCount atomic.Int32
	var conflictCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Transition(context.Background(), "o1", "Processing")
			if err == nil {
				successCount.Add(1)
				return
			}

			var terr *TransitionError
			if errors.As(err, &terr) && terr.Conflict && terr.Current == domain.OrderStatusProcessing {
				conflictCount.Add(1)
				return
			}
			t.Errorf("unexpected error: %v", err)
		}()
	}

	wg.Wait()

	if successCount.Load() != 1 {
		t.Errorf("expected exactly 1 success, got %d", successCount.Load())
	}
	if conflictCount.Load() != workers-1 {
		t.Errorf("expected %d conflicts, got %d", workers-1, conflictCount.Load())
	}
	if repo.orders["o1"].Status != domain.OrderStatusProcessing {
		t.Errorf("expected Processing, got %s", repo.orders["o1"].Status)
	}
}

func TestTransition_ConflictMatchesBothSentinels(t *testing.T) {
	err := error(&TransitionError{Current: domain.OrderStatusProcessing, Requested: domain.OrderStatusProcessing, Conflict: true})

	if !errors.Is(err, ErrConcurrentModification) {
		t.Errorf("expected ErrConcurrentModification")
	}
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition")
	}
}

func TestListByContactEmail(t *testing.T) {
	repo := newMockOrderRepo()
	seedOrder(repo, "old", domain.OrderStatusDelivered)
	seedOrder(repo, "new", domain.OrderStatusPlaced)
	newer := repo.orders["new"]
	newer.CreatedAt = newer.CreatedAt.Add(time.Hour)
	repo.orders["new"] = newer
	seedOrder(repo, "other", domain.OrderStatusPlaced)
	other := repo.orders["other"]
	other.ContactEmail = "someone@example.com"
	repo.orders["other"] = other

	svc := NewOrderService(repo, nil)

	orders, err := svc.ListByContactEmail(context.Background(), " ANSEL@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	if orders[0].ID != "new" {
		t.Errorf("expected newest first, got %s", orders[0].ID)
	}

	if _, err := svc.ListByContactEmail(context.Background(), ""); !errors.Is(err, ErrMissingContactInfo) {
		t.Errorf("expected ErrMissingContactInfo, got: %v", err)
	}
}
