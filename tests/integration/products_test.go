package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/adhamel/storefront/internal/store"
)

func primaryImageCount(t *testing.T, db *sql.DB, productID uuid.UUID) int {
	t.Helper()
	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM product_images WHERE product_id = $1 AND is_primary`,
		productID).Scan(&count)
	if err != nil {
		t.Fatalf("Count primary images: %v", err)
	}
	return count
}

func TestPrimaryImageInvariant(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	admin := createTestAdmin(t, db, "admin@example.com")
	product := createTestProduct(t, db, admin.ID, "poster", "9.00")

	// First image becomes primary on its own.
	img1, err := store.AddProductImage(ctx, db, nil, admin.ID, product.ID, "https://img.test.local/1.jpg", 0)
	if err != nil {
		t.Fatalf("Add image 1: %v", err)
	}
	if !img1.IsPrimary {
		t.Error("First image should be primary")
	}

	img2, err := store.AddProductImage(ctx, db, nil, admin.ID, product.ID, "https://img.test.local/2.jpg", 1)
	if err != nil {
		t.Fatalf("Add image 2: %v", err)
	}
	if img2.IsPrimary {
		t.Error("Second image should not be primary")
	}
	if got := primaryImageCount(t, db, product.ID); got != 1 {
		t.Fatalf("Expected 1 primary image, got %d", got)
	}

	// Swap the primary back and forth. Repeated swaps revisit rows the
	// previous swap just rewrote, which is where a demote/promote ordering
	// bug would trip the partial unique index.
	swaps := []uuid.UUID{img2.ID, img1.ID, img2.ID, img1.ID}
	for i, want := range swaps {
		if err := store.SetPrimaryImage(ctx, db, nil, admin.ID, product.ID, want); err != nil {
			t.Fatalf("Set primary (swap %d): %v", i+1, err)
		}
		if got := primaryImageCount(t, db, product.ID); got != 1 {
			t.Fatalf("Expected 1 primary image after swap %d, got %d", i+1, got)
		}

		images, err := store.ListProductImages(ctx, db, product.ID)
		if err != nil {
			t.Fatalf("List images: %v", err)
		}
		for _, img := range images {
			if img.IsPrimary != (img.ID == want) {
				t.Errorf("Swap %d: image %s primary=%v, want %v", i+1, img.ID, img.IsPrimary, img.ID == want)
			}
		}
	}

	// Unknown image id changes nothing.
	err = store.SetPrimaryImage(ctx, db, nil, admin.ID, product.ID, uuid.New())
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
	if got := primaryImageCount(t, db, product.ID); got != 1 {
		t.Errorf("Expected primary untouched, got %d", got)
	}
}

func TestConcurrentFirstImageAdds(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	admin := createTestAdmin(t, db, "admin@example.com")
	product := createTestProduct(t, db, admin.ID, "raced", "3.00")

	// Both inserts see an empty gallery; only one may win the primary slot.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			url := fmt.Sprintf("https://img.test.local/race-%d.jpg", n)
			_, errs[n] = store.AddProductImage(ctx, db, nil, admin.ID, product.ID, url, n)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Add image %d: %v", i, err)
		}
	}
	if got := primaryImageCount(t, db, product.ID); got != 1 {
		t.Errorf("Expected exactly 1 primary image, got %d", got)
	}

	images, err := store.ListProductImages(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("List images: %v", err)
	}
	if len(images) != 2 {
		t.Errorf("Expected 2 images, got %d", len(images))
	}
}

func TestCreateProductFreshensListing(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	c, cacheCleanup := setupTestCache(t)
	defer cacheCleanup()

	ctx := context.Background()
	admin := createTestAdmin(t, db, "admin@example.com")
	createTestProduct(t, db, admin.ID, "old stock", "4.00")

	// Warm the cached first page of the active listing.
	page, err := store.ListProducts(ctx, db, c, 1, 20, true)
	if err != nil {
		t.Fatalf("List products: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("Expected 1 product before create, got %d", page.Total)
	}

	_, err = store.CreateProduct(ctx, db, c, admin.ID, store.ProductInput{
		Title:    "new stock",
		Price:    mustDecimal(t, "5.00"),
		IsActive: true,
	})
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	// The warmed page must not be served back; the new product shows up
	// immediately rather than after the cache TTL.
	page, err = store.ListProducts(ctx, db, c, 1, 20, true)
	if err != nil {
		t.Fatalf("List products after create: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("Expected 2 products after create, got %d", page.Total)
	}
}

func TestCatalogWritesRequireAdmin(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "user@example.com")

	_, err := store.CreateProduct(ctx, db, nil, user.ID, store.ProductInput{
		Title:    "nope",
		Price:    mustDecimal(t, "1.00"),
		IsActive: true,
	})
	if !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("Expected forbidden, got %v", err)
	}
}

func TestCreateProductRejectsNegativePrice(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	admin := createTestAdmin(t, db, "admin@example.com")

	_, err := store.CreateProduct(ctx, db, nil, admin.ID, store.ProductInput{
		Title:    "bad",
		Price:    mustDecimal(t, "-1.00"),
		IsActive: true,
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("Expected validation error, got %v", err)
	}
}

func TestDeleteProductBlockedBySnapshots(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	admin := createTestAdmin(t, db, "admin@example.com")
	buyer := createTestUser(t, db, "buyer@example.com")
	product := createTestProduct(t, db, admin.ID, "referenced", "7.00")

	_, err := store.SubmitOrder(ctx, db, store.SubmitOrderRequest{
		UserID:            buyer.ID,
		Items:             []store.OrderItemRequest{{ProductID: product.ID, Quantity: 1}},
		ContactMethod:     "email",
		PaymentMethodDesc: "cash",
	})
	if err != nil {
		t.Fatalf("Submit order: %v", err)
	}

	err = store.DeleteProduct(ctx, db, nil, admin.ID, product.ID)
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("Expected validation error deleting referenced product, got %v", err)
	}

	// Unreferenced products delete cleanly, taking their images along.
	other := createTestProduct(t, db, admin.ID, "unreferenced", "7.00")
	if _, err := store.AddProductImage(ctx, db, nil, admin.ID, other.ID, "https://img.test.local/x.jpg", 0); err != nil {
		t.Fatalf("Add image: %v", err)
	}
	if err := store.DeleteProduct(ctx, db, nil, admin.ID, other.ID); err != nil {
		t.Fatalf("Delete product: %v", err)
	}
	var imgCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM product_images WHERE product_id = $1`, other.ID).Scan(&imgCount); err != nil {
		t.Fatalf("Count images: %v", err)
	}
	if imgCount != 0 {
		t.Errorf("Expected images cascaded, found %d", imgCount)
	}
}
