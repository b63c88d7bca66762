package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adhamel/storefront/internal/config"
	"github.com/adhamel/storefront/internal/database"
	"github.com/adhamel/storefront/internal/models"
)

type SubmitOrderRequest struct {
	UserID            uuid.UUID
	Items             []OrderItemRequest
	ContactMethod     string
	PaymentMethodDesc string
	PaymentProofURL   string
	Notes             string
}

type OrderItemRequest struct {
	ProductID uuid.UUID
	Quantity  int
}

func (req SubmitOrderRequest) validate() error {
	if len(req.Items) == 0 {
		return validationErr("order must contain at least one item")
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return validationErr("quantity must be positive, got %d for product %s", item.Quantity, item.ProductID)
		}
	}
	if req.ContactMethod == "" {
		return validationErr("contact method is required")
	}
	if req.PaymentMethodDesc == "" {
		return validationErr("payment method description is required")
	}
	return nil
}

// SubmitOrder creates a pending order. Prices are snapshotted from the
// catalog inside the same serializable transaction that writes the order and
// its items, so a concurrent price update or deactivation cannot split the
// order's view of the catalog.
func SubmitOrder(ctx context.Context, db *sql.DB, req SubmitOrderRequest) (*models.Order, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var order *models.Order

	err := database.WithRetry(ctx, db, database.SerializableTxOptions(), func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`,
			req.UserID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check user exists: %w", err)
		}
		if !exists {
			return ErrUserNotFound
		}

		totalAmount := decimal.Zero
		productPrices := make(map[uuid.UUID]decimal.Decimal)

		for _, item := range req.Items {
			var price decimal.Decimal
			var active bool

			err := tx.QueryRowContext(ctx,
				`SELECT price, is_active
				 FROM products
				 WHERE id = $1
				 FOR SHARE`,
				item.ProductID).Scan(&price, &active)
			if err != nil {
				if err == sql.ErrNoRows {
					return ErrProductNotFound
				}
				return fmt.Errorf("read product %s: %w", item.ProductID, err)
			}
			if !active {
				return validationErr("product %s is not active", item.ProductID)
			}

			productPrices[item.ProductID] = price
			totalAmount = totalAmount.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}

		order = &models.Order{}
		err = tx.QueryRowContext(ctx,
			`INSERT INTO orders (user_id, status, contact_method, payment_method_description, payment_proof_url, notes, total_amount, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
			 RETURNING id, user_id, status, contact_method, payment_method_description, payment_proof_url, notes, total_amount, created_at, updated_at`,
			req.UserID, models.OrderStatusPending, req.ContactMethod, req.PaymentMethodDesc, req.PaymentProofURL, req.Notes, totalAmount).Scan(
			&order.ID,
			&order.UserID,
			&order.Status,
			&order.ContactMethod,
			&order.PaymentMethodDesc,
			&order.PaymentProofURL,
			&order.Notes,
			&order.TotalAmount,
			&order.CreatedAt,
			&order.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, line := range req.Items {
			unitPrice := productPrices[line.ProductID]
			totalPrice := unitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))

			var item models.OrderItem
			err = tx.QueryRowContext(ctx,
				`INSERT INTO order_items (order_id, product_id, quantity, unit_price, total_price, created_at)
				 VALUES ($1, $2, $3, $4, $5, NOW())
				 RETURNING id, order_id, product_id, quantity, unit_price, total_price, created_at`,
				order.ID, line.ProductID, line.Quantity, unitPrice, totalPrice).Scan(
				&item.ID,
				&item.OrderID,
				&item.ProductID,
				&item.Quantity,
				&item.UnitPrice,
				&item.TotalPrice,
				&item.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
			order.Items = append(order.Items, item)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// lockOrderStatus reads the order's current status under a row lock, so the
// transition check and the transition itself see the same row version.
func lockOrderStatus(ctx context.Context, tx *sql.Tx, orderID uuid.UUID) (models.OrderStatus, error) {
	var status models.OrderStatus
	err := tx.QueryRowContext(ctx,
		`SELECT status FROM orders WHERE id = $1 FOR UPDATE`,
		orderID).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrOrderNotFound
		}
		return "", fmt.Errorf("lock order: %w", err)
	}
	return status, nil
}

// ApproveOrder moves a pending order to approved and issues a download
// entitlement on every item, all in one transaction. Approval happens
// exactly once: a second approve (or an approve racing a reject) finds the
// order already terminal and fails, it never re-stamps expiry.
func ApproveOrder(ctx context.Context, db *sql.DB, cfg *config.Config, adminID, orderID uuid.UUID) (*models.Order, error) {
	if err := requireAdmin(ctx, db, adminID); err != nil {
		return nil, err
	}

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		status, err := lockOrderStatus(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if status != models.OrderStatusPending {
			return fmt.Errorf("%w: order is already %s", ErrInvalidTransition, status)
		}

		var approvedAt time.Time
		err = tx.QueryRowContext(ctx,
			`UPDATE orders
			 SET status = $2, approved_by = $3, approved_at = NOW(), updated_at = NOW()
			 WHERE id = $1
			 RETURNING approved_at`,
			orderID, models.OrderStatusApproved, adminID).Scan(&approvedAt)
		if err != nil {
			return fmt.Errorf("approve order: %w", err)
		}

		expiresAt := approvedAt.Add(cfg.Approval.DownloadTTL)

		rows, err := tx.QueryContext(ctx,
			`SELECT id FROM order_items WHERE order_id = $1`,
			orderID)
		if err != nil {
			return fmt.Errorf("list order items: %w", err)
		}
		var itemIDs []uuid.UUID
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scan order item id: %w", err)
			}
			itemIDs = append(itemIDs, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}

		for _, itemID := range itemIDs {
			_, err := tx.ExecContext(ctx,
				`UPDATE order_items
				 SET download_url = $2, download_expires_at = $3
				 WHERE id = $1`,
				itemID, MintDownloadURL(cfg.Storage.DownloadBaseURL, itemID), expiresAt)
			if err != nil {
				return fmt.Errorf("issue entitlement for item %s: %w", itemID, err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return getOrder(ctx, db, orderID)
}

// RejectOrder moves a pending order to rejected. No entitlements are issued
// and none can appear later: rejected is terminal.
func RejectOrder(ctx context.Context, db *sql.DB, adminID, orderID uuid.UUID, note string) (*models.Order, error) {
	if err := requireAdmin(ctx, db, adminID); err != nil {
		return nil, err
	}

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		status, err := lockOrderStatus(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if status != models.OrderStatusPending {
			return fmt.Errorf("%w: order is already %s", ErrInvalidTransition, status)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE orders
			 SET status = $2,
			     notes = CASE WHEN $3 <> '' THEN $3 ELSE notes END,
			     updated_at = NOW()
			 WHERE id = $1`,
			orderID, models.OrderStatusRejected, note)
		if err != nil {
			return fmt.Errorf("reject order: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return getOrder(ctx, db, orderID)
}

// GetOrder returns the order with items. Owner or admin only.
func GetOrder(ctx context.Context, db *sql.DB, actorID, orderID uuid.UUID) (*models.Order, error) {
	order, err := getOrder(ctx, db, orderID)
	if err != nil {
		return nil, err
	}

	if order.UserID != actorID {
		admin, err := IsAdmin(ctx, db, actorID)
		if err != nil {
			return nil, err
		}
		if !admin {
			return nil, fmt.Errorf("%w: not the order owner", ErrForbidden)
		}
	}

	return order, nil
}

func getOrder(ctx context.Context, db *sql.DB, orderID uuid.UUID) (*models.Order, error) {
	order := &models.Order{}

	err := db.QueryRowContext(ctx,
		`SELECT id, user_id, status, contact_method, payment_method_description, payment_proof_url, notes, approved_by, approved_at, total_amount, created_at, updated_at
		 FROM orders
		 WHERE id = $1`,
		orderID).Scan(
		&order.ID,
		&order.UserID,
		&order.Status,
		&order.ContactMethod,
		&order.PaymentMethodDesc,
		&order.PaymentProofURL,
		&order.Notes,
		&order.ApprovedBy,
		&order.ApprovedAt,
		&order.TotalAmount,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, order_id, product_id, quantity, unit_price, total_price, download_url, download_expires_at, created_at
		 FROM order_items
		 WHERE order_id = $1
		 ORDER BY created_at, id`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Quantity,
			&item.UnitPrice,
			&item.TotalPrice,
			&item.DownloadURL,
			&item.DownloadExpiresAt,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return order, nil
}

// GetDownload resolves an order item's download reference for the caller.
// Rules apply in fixed precedence: ownership, then approval, then expiry.
func GetDownload(ctx context.Context, db *sql.DB, actorID, orderItemID uuid.UUID) (*models.DownloadRef, error) {
	var (
		ownerID     uuid.UUID
		status      models.OrderStatus
		downloadURL *string
		expiresAt   *time.Time
	)

	err := db.QueryRowContext(ctx,
		`SELECT o.user_id, o.status, i.download_url, i.download_expires_at
		 FROM order_items i
		 JOIN orders o ON o.id = i.order_id
		 WHERE i.id = $1`,
		orderItemID).Scan(&ownerID, &status, &downloadURL, &expiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderItemNotFound
		}
		return nil, fmt.Errorf("get order item: %w", err)
	}

	admin, err := IsAdmin(ctx, db, actorID)
	if err != nil {
		return nil, err
	}

	if err := CheckDownloadAccess(ownerID, actorID, admin, status, expiresAt, time.Now()); err != nil {
		return nil, err
	}

	return &models.DownloadRef{URL: *downloadURL, ExpiresAt: *expiresAt}, nil
}

// ListOrders pages a user's own orders, newest first.
func ListOrders(ctx context.Context, db *sql.DB, userID uuid.UUID, cursor string, limit int) (*CursorPage, error) {
	pos, hasCursor, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `
		SELECT id, user_id, status, contact_method, payment_method_description, payment_proof_url, notes, approved_by, approved_at, total_amount, created_at, updated_at
		FROM orders
		WHERE user_id = $1`
	args := []interface{}{userID}
	if hasCursor {
		query += ` AND (created_at, id) < ($2, $3)`
		args = append(args, pos.CreatedAt, pos.ID)
	}
	query += fmt.Sprintf(`
		ORDER BY created_at DESC, id DESC
		LIMIT $%d`, len(args)+1)
	args = append(args, limit+1)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.Status,
			&order.ContactMethod,
			&order.PaymentMethodDesc,
			&order.PaymentProofURL,
			&order.Notes,
			&order.ApprovedBy,
			&order.ApprovedAt,
			&order.TotalAmount,
			&order.CreatedAt,
			&order.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// ListPendingOrders is the admin review queue, oldest submission first.
func ListPendingOrders(ctx context.Context, db *sql.DB, adminID uuid.UUID, limit int) ([]models.Order, error) {
	if err := requireAdmin(ctx, db, adminID); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, status, contact_method, payment_method_description, payment_proof_url, notes, approved_by, approved_at, total_amount, created_at, updated_at
		 FROM orders
		 WHERE status = $1
		 ORDER BY created_at
		 LIMIT $2`,
		models.OrderStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.Status,
			&order.ContactMethod,
			&order.PaymentMethodDesc,
			&order.PaymentProofURL,
			&order.Notes,
			&order.ApprovedBy,
			&order.ApprovedAt,
			&order.TotalAmount,
			&order.CreatedAt,
			&order.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}
