package services

import (
	"context"
	"testing"
)

func TestFavoriteAddIsIdempotent(t *testing.T) {
	h := newListingHarness()
	ctx := context.Background()
	svc := NewFavoriteService(h.favorites, h.listings)
	l := h.create(t, ownerID, "X")

	first, err := svc.Add(ctx, strangerID, l.ID)
	if err != nil || !first.OK() || !first.Data {
		t.Fatalf("first add: %v %+v", err, first)
	}
	second, err := svc.Add(ctx, strangerID, l.ID)
	if err != nil || !second.OK() {
		t.Fatalf("second add: %v %+v", err, second)
	}
	if second.Data {
		t.Fatalf("second add should report an existing favorite")
	}
	if n := h.favorites.count(strangerID, l.ID); n != 1 {
		t.Fatalf("expected exactly one favorite, got %d", n)
	}
}

func TestFavoriteAddMissingListing(t *testing.T) {
	h := newListingHarness()
	svc := NewFavoriteService(h.favorites, h.listings)

	res, err := svc.Add(context.Background(), strangerID, 42)
	if err != nil || res.Kind != KindNotFound {
		t.Fatalf("expected not found, got %v %+v", err, res)
	}
}

func TestFavoriteRemoveIsIdempotent(t *testing.T) {
	h := newListingHarness()
	ctx := context.Background()
	svc := NewFavoriteService(h.favorites, h.listings)
	l := h.create(t, ownerID, "X")

	if removed, err := svc.Remove(ctx, strangerID, l.ID); err != nil || removed {
		t.Fatalf("removing a missing favorite: %v %v", err, removed)
	}
	if _, err := svc.Add(ctx, strangerID, l.ID); err != nil {
		t.Fatalf("add: %v", err)
	}
	if removed, err := svc.Remove(ctx, strangerID, l.ID); err != nil || !removed {
		t.Fatalf("remove: %v %v", err, removed)
	}
}

func TestFavoriteListJoinsCurrentListings(t *testing.T) {
	h := newListingHarness()
	ctx := context.Background()
	svc := NewFavoriteService(h.favorites, h.listings)
	kept := h.create(t, ownerID, "kept")
	dropped := h.create(t, ownerID, "dropped")

	for _, id := range []int{kept.ID, dropped.ID} {
		if _, err := svc.Add(ctx, strangerID, id); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if _, err := h.svc.Update(ctx, kept.ID, ownerID, newTitle("kept, renamed")); err != nil {
		t.Fatalf("update: %v", err)
	}
	if res, err := h.svc.Delete(ctx, dropped.ID, ownerID, false); err != nil || !res.OK() {
		t.Fatalf("delete: %v %+v", err, res)
	}

	items, err := svc.List(ctx, strangerID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one favorite, got %d", len(items))
	}
	if items[0].Listing.Title != "kept, renamed" {
		t.Fatalf("favorite does not carry current listing data: %+v", items[0].Listing)
	}
}
