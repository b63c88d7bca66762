package store

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adhamel/storefront/internal/models"
)

func TestCheckDownloadAccess(t *testing.T) {
	owner := uuid.New()
	stranger := uuid.New()
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name      string
		actor     uuid.UUID
		admin     bool
		status    models.OrderStatus
		expiresAt *time.Time
		wantErr   error
	}{
		{"owner approved unexpired", owner, false, models.OrderStatusApproved, &future, nil},
		{"admin non-owner approved unexpired", stranger, true, models.OrderStatusApproved, &future, nil},
		{"stranger denied before status considered", stranger, false, models.OrderStatusPending, nil, ErrForbidden},
		{"stranger denied even when approved", stranger, false, models.OrderStatusApproved, &future, ErrForbidden},
		{"owner pending", owner, false, models.OrderStatusPending, nil, ErrNotApproved},
		{"owner rejected", owner, false, models.OrderStatusRejected, nil, ErrNotApproved},
		{"owner approved expired", owner, false, models.OrderStatusApproved, &past, ErrExpired},
		{"owner approved expiring exactly now", owner, false, models.OrderStatusApproved, &now, ErrExpired},
		// Status outranks expiry: a pending order with a stale stamp (repair
		// scenario) still reads as not approved, not expired.
		{"pending outranks expiry", owner, false, models.OrderStatusPending, &past, ErrNotApproved},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckDownloadAccess(owner, tc.actor, tc.admin, tc.status, tc.expiresAt, now)
			if tc.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.wantErr)

			// Exactly one kind applies.
			for _, other := range []error{ErrForbidden, ErrNotApproved, ErrExpired} {
				if other != tc.wantErr {
					assert.NotErrorIs(t, err, other)
				}
			}
		})
	}
}

func TestMintDownloadURL(t *testing.T) {
	itemID := uuid.New()

	url := MintDownloadURL("https://assets.example.com/dl", itemID)
	require.True(t, strings.HasPrefix(url, "https://assets.example.com/dl/"+itemID.String()+"/"))

	// The trailing token is the secret and must differ per mint.
	assert.NotEqual(t, url, MintDownloadURL("https://assets.example.com/dl", itemID))
}
