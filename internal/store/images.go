package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/adhamel/storefront/internal/cache"
	"github.com/adhamel/storefront/internal/database"
	"github.com/adhamel/storefront/internal/models"
)

// AddProductImage attaches an image to a product. The first image of a
// product becomes primary automatically so the storefront always has a card
// image to show. The product row is locked so two concurrent first inserts
// cannot both claim the primary slot.
func AddProductImage(ctx context.Context, db *sql.DB, c *cache.Cache, actorID, productID uuid.UUID, imageURL string, sortOrder int) (*models.ProductImage, error) {
	if err := requireAdmin(ctx, db, actorID); err != nil {
		return nil, err
	}
	if imageURL == "" {
		return nil, validationErr("image url is required")
	}

	image := &models.ProductImage{}
	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var lockedID uuid.UUID
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM products WHERE id = $1 FOR UPDATE`,
			productID).Scan(&lockedID)
		if err != nil {
			if err == sql.ErrNoRows {
				return ErrProductNotFound
			}
			return fmt.Errorf("lock product: %w", err)
		}

		err = tx.QueryRowContext(ctx,
			`INSERT INTO product_images (product_id, image_url, is_primary, sort_order, created_at)
			 VALUES ($1, $2,
			         NOT EXISTS(SELECT 1 FROM product_images WHERE product_id = $1 AND is_primary),
			         $3, NOW())
			 RETURNING id, product_id, image_url, is_primary, sort_order, created_at`,
			productID, imageURL, sortOrder).Scan(
			&image.ID,
			&image.ProductID,
			&image.ImageURL,
			&image.IsPrimary,
			&image.SortOrder,
			&image.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("add product image: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	c.Delete(ctx, productCacheKey(productID))
	return image, nil
}

// SetPrimaryImage promotes one image and demotes the current primary of the
// same product. The demote runs first: the partial unique index is checked
// per row during an update, so a single statement flipping both rows can
// collide with itself when it reaches the promoted row before the old
// primary. The transaction commits both steps atomically, so readers still
// never observe zero or two primaries.
func SetPrimaryImage(ctx context.Context, db *sql.DB, c *cache.Cache, actorID, productID, imageID uuid.UUID) error {
	if err := requireAdmin(ctx, db, actorID); err != nil {
		return err
	}

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE product_images
			 SET is_primary = FALSE
			 WHERE product_id = $1 AND is_primary AND id <> $2`,
			productID, imageID)
		if err != nil {
			return fmt.Errorf("demote primary image: %w", err)
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE product_images
			 SET is_primary = TRUE
			 WHERE id = $2 AND product_id = $1`,
			productID, imageID)
		if err != nil {
			return fmt.Errorf("promote primary image: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			// Rolls back the demote, leaving the old primary in place.
			return ErrImageNotFound
		}

		return nil
	})
	if err != nil {
		return err
	}

	c.Delete(ctx, productCacheKey(productID))
	return nil
}

func RemoveProductImage(ctx context.Context, db *sql.DB, c *cache.Cache, actorID, imageID uuid.UUID) error {
	if err := requireAdmin(ctx, db, actorID); err != nil {
		return err
	}

	var productID uuid.UUID
	err := db.QueryRowContext(ctx,
		`DELETE FROM product_images WHERE id = $1 RETURNING product_id`,
		imageID).Scan(&productID)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrImageNotFound
		}
		return fmt.Errorf("remove product image: %w", err)
	}

	c.Delete(ctx, productCacheKey(productID))
	return nil
}

func ListProductImages(ctx context.Context, db *sql.DB, productID uuid.UUID) ([]models.ProductImage, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, product_id, image_url, is_primary, sort_order, created_at
		 FROM product_images
		 WHERE product_id = $1
		 ORDER BY sort_order, created_at`,
		productID)
	if err != nil {
		return nil, fmt.Errorf("list product images: %w", err)
	}
	defer rows.Close()

	var images []models.ProductImage
	for rows.Next() {
		var image models.ProductImage
		err := rows.Scan(
			&image.ID,
			&image.ProductID,
			&image.ImageURL,
			&image.IsPrimary,
			&image.SortOrder,
			&image.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan product image: %w", err)
		}
		images = append(images, image)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return images, nil
}
