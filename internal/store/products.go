package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/adhamel/storefront/internal/cache"
	"github.com/adhamel/storefront/internal/database"
	"github.com/adhamel/storefront/internal/models"
)

const productListCacheKey = "products:active:first"

func productCacheKey(id uuid.UUID) string {
	return "product:" + id.String()
}

type ProductInput struct {
	Title       string
	Description string
	Price       decimal.Decimal
	Category    string
	Tags        []string
	AssetURL    string
	IsActive    bool
}

func (in ProductInput) validate() error {
	if in.Title == "" {
		return validationErr("product title is required")
	}
	if in.Price.IsNegative() {
		return validationErr("product price must be non-negative, got %s", in.Price)
	}
	return nil
}

// CreateProduct adds a catalog entry. Admin only: catalog writes are an
// administrative capability, checked here rather than assumed of the caller.
func CreateProduct(ctx context.Context, db *sql.DB, c *cache.Cache, actorID uuid.UUID, in ProductInput) (*models.Product, error) {
	if err := requireAdmin(ctx, db, actorID); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	product := &models.Product{}
	err := db.QueryRowContext(ctx,
		`INSERT INTO products (title, description, price, category, tags, asset_url, is_active, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		 RETURNING id, title, description, price, category, tags, asset_url, is_active, created_by, created_at, updated_at`,
		in.Title, in.Description, in.Price, in.Category, pq.Array(in.Tags), in.AssetURL, in.IsActive, actorID).Scan(
		&product.ID,
		&product.Title,
		&product.Description,
		&product.Price,
		&product.Category,
		pq.Array(&product.Tags),
		&product.AssetURL,
		&product.IsActive,
		&product.CreatedBy,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	// The cached listing page predates this product.
	c.Delete(ctx, productListCacheKey)
	return product, nil
}

func scanProduct(row *sql.Row, product *models.Product) error {
	return row.Scan(
		&product.ID,
		&product.Title,
		&product.Description,
		&product.Price,
		&product.Category,
		pq.Array(&product.Tags),
		&product.AssetURL,
		&product.IsActive,
		&product.CreatedBy,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
}

// GetProduct reads through the cache. The cache may serve a product a few
// minutes stale; order submission never uses it, price snapshots always come
// from a transactional read.
func GetProduct(ctx context.Context, db *sql.DB, c *cache.Cache, id uuid.UUID) (*models.Product, error) {
	product := &models.Product{}
	if c.Get(ctx, productCacheKey(id), product) {
		return product, nil
	}

	row := db.QueryRowContext(ctx,
		`SELECT id, title, description, price, category, tags, asset_url, is_active, created_by, created_at, updated_at
		 FROM products
		 WHERE id = $1`,
		id)
	if err := scanProduct(row, product); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	images, err := ListProductImages(ctx, db, id)
	if err != nil {
		return nil, err
	}
	product.Images = images

	c.Set(ctx, productCacheKey(id), product)
	return product, nil
}

// UpdateProduct replaces the catalog entry. Historical order items keep
// their price snapshots; nothing here touches order_items.
func UpdateProduct(ctx context.Context, db *sql.DB, c *cache.Cache, actorID, id uuid.UUID, in ProductInput) (*models.Product, error) {
	if err := requireAdmin(ctx, db, actorID); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	product := &models.Product{}
	row := db.QueryRowContext(ctx,
		`UPDATE products
		 SET title = $2, description = $3, price = $4, category = $5, tags = $6, asset_url = $7, is_active = $8, updated_at = NOW()
		 WHERE id = $1
		 RETURNING id, title, description, price, category, tags, asset_url, is_active, created_by, created_at, updated_at`,
		id, in.Title, in.Description, in.Price, in.Category, pq.Array(in.Tags), in.AssetURL, in.IsActive)
	if err := scanProduct(row, product); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("update product: %w", err)
	}

	c.Delete(ctx, productCacheKey(id), productListCacheKey)
	return product, nil
}

// SetProductActive toggles storefront visibility without editing the entry.
func SetProductActive(ctx context.Context, db *sql.DB, c *cache.Cache, actorID, id uuid.UUID, active bool) error {
	if err := requireAdmin(ctx, db, actorID); err != nil {
		return err
	}

	result, err := db.ExecContext(ctx,
		`UPDATE products SET is_active = $2, updated_at = NOW() WHERE id = $1`,
		id, active)
	if err != nil {
		return fmt.Errorf("set product active: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	c.Delete(ctx, productCacheKey(id), productListCacheKey)
	return nil
}

// DeleteProduct removes a catalog entry and its images. It fails while any
// order item still references the product, so snapshots stay resolvable.
func DeleteProduct(ctx context.Context, db *sql.DB, c *cache.Cache, actorID, id uuid.UUID) error {
	if err := requireAdmin(ctx, db, actorID); err != nil {
		return err
	}

	result, err := db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return ErrProductInUse
		}
		return fmt.Errorf("delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	c.Delete(ctx, productCacheKey(id), productListCacheKey)
	return nil
}

// ListProducts pages the catalog. The first page of the active listing is
// the storefront's hot path and is served from cache when possible.
func ListProducts(ctx context.Context, db *sql.DB, c *cache.Cache, page, pageSize int, onlyActive bool) (*OffsetPage, error) {
	cacheable := onlyActive && page == 1
	if cacheable {
		cached := &OffsetPage{}
		if c.Get(ctx, productListCacheKey, cached) {
			return cached, nil
		}
	}

	where := ""
	if onlyActive {
		where = "WHERE is_active"
	}

	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products `+where).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `
		SELECT id, title, description, price, category, tags, asset_url, is_active, created_by, created_at, updated_at
		FROM products ` + where + `
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := db.QueryContext(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var product models.Product
		err := rows.Scan(
			&product.ID,
			&product.Title,
			&product.Description,
			&product.Price,
			&product.Category,
			pq.Array(&product.Tags),
			&product.AssetURL,
			&product.IsActive,
			&product.CreatedBy,
			&product.CreatedAt,
			&product.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	result := NewOffsetPage(products, total, page, pageSize)
	if cacheable {
		c.Set(ctx, productListCacheKey, result)
	}

	return result, nil
}
