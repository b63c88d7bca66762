package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/adhamel/storefront/internal/models"
)

// MintDownloadURL builds the opaque download reference stamped onto an order
// item at approval. The token is the only secret; the item id keys the
// storage-side lookup.
func MintDownloadURL(baseURL string, orderItemID uuid.UUID) string {
	return fmt.Sprintf("%s/%s/%s", baseURL, orderItemID, uuid.NewString())
}

// CheckDownloadAccess applies the access rules for an order item's download,
// in fixed precedence: ownership first, then order status, then expiry. At
// most one of the three errors comes back, so a denied caller learns exactly
// the first rule they failed.
func CheckDownloadAccess(ownerID, actorID uuid.UUID, actorIsAdmin bool, status models.OrderStatus, expiresAt *time.Time, now time.Time) error {
	if actorID != ownerID && !actorIsAdmin {
		return fmt.Errorf("%w: not the order owner", ErrForbidden)
	}
	if status != models.OrderStatusApproved {
		return fmt.Errorf("%w: order status is %s", ErrNotApproved, status)
	}
	if expiresAt == nil || !now.Before(*expiresAt) {
		return ErrExpired
	}
	return nil
}
