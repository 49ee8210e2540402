package session

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"fleamarket/infrastructure/checkout"
	"fleamarket/infrastructure/rbac"
	"fleamarket/infrastructure/sqlite"
	"fleamarket/models"
)

const CookieName = "X-Clerk-Session"

const DefaultTTL = 12 * time.Hour

func SessionCookie(value string, maxAge int, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	}
}

// New builds an unsaved session for clerk working at counterID.
func New(clerk models.Clerk, counterID int64, ttl time.Duration) models.ClerkSession {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now()
	return models.ClerkSession{
		ID:        uuid.NewString(),
		ClerkID:   clerk.ID,
		Clerk:     clerk,
		CounterID: counterID,
		EventID:   clerk.EventID,
		UserRoles: []string{clerk.Role},
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func Insert(ctx context.Context, db *sqlite.DB, s models.ClerkSession) error {
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&s).Exec(ctx)
		return err
	})
}

// Load returns the session behind token. Expired sessions are deleted and
// reported as sql.ErrNoRows.
func Load(ctx context.Context, db *sqlite.DB, token string) (models.ClerkSession, error) {
	var s models.ClerkSession
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().
			Model(&s).
			Relation("Clerk").
			Where("cs.id = ?", token).
			Limit(1).
			Scan(ctx)
	})
	if err != nil {
		return models.ClerkSession{}, err
	}
	if s.Expired() {
		_ = Delete(ctx, db, token)
		return models.ClerkSession{}, sql.ErrNoRows
	}
	s.UserRoles = []string{s.Clerk.Role}
	return s, nil
}

func Delete(ctx context.Context, db *sqlite.DB, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().Model((*models.ClerkSession)(nil)).Where("id = ?", token).Exec(ctx)
		return err
	})
}

// SaveSlots persists the open receipt slots of s.
func SaveSlots(ctx context.Context, db *sqlite.DB, s models.ClerkSession) error {
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewUpdate().
			Model((*models.ClerkSession)(nil)).
			Set("receipt_id = ?", s.ReceiptID).
			Set("compensation_receipt_id = ?", s.CompensationReceiptID).
			Set("compensation_vendor_id = ?", s.CompensationVendorID).
			Set("updated_at = ?", time.Now()).
			Where("id = ?", s.ID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("save session slots: %w", err)
		}
		return nil
	})
}

// Caller converts s into the caller context of the checkout core.
func Caller(s models.ClerkSession, remoteAddr string) *checkout.Caller {
	c := &checkout.Caller{
		ClerkID:   s.ClerkID,
		CounterID: s.CounterID,
		EventID:   s.EventID,
		ReceiptID: s.ReceiptID,
		Overseer:  s.Clerk.Role == rbac.RoleOverseer,
		Peer:      fmt.Sprintf("%s/%d", s.Clerk.Name, s.ClerkID),
		Address:   remoteAddr,
	}
	if s.CompensationReceiptID != nil && s.CompensationVendorID != nil {
		c.Compensation = &checkout.Compensation{
			ReceiptID: *s.CompensationReceiptID,
			VendorID:  *s.CompensationVendorID,
		}
	}
	return c
}

// ApplySlots copies the slots of c back into s and reports whether any changed.
func ApplySlots(s *models.ClerkSession, c *checkout.Caller) bool {
	var compReceipt, compVendor *int64
	if c.Compensation != nil {
		r, v := c.Compensation.ReceiptID, c.Compensation.VendorID
		compReceipt, compVendor = &r, &v
	}
	changed := !sameID(s.ReceiptID, c.ReceiptID) ||
		!sameID(s.CompensationReceiptID, compReceipt) ||
		!sameID(s.CompensationVendorID, compVendor)
	s.ReceiptID = c.ReceiptID
	s.CompensationReceiptID = compReceipt
	s.CompensationVendorID = compVendor
	return changed
}

func sameID(a, b *int64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}
