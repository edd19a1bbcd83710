package store

import (
	"context"
	"fmt"

	"marketplace-service/internal/models"
	"marketplace-service/internal/repository"

	"github.com/jmoiron/sqlx"
)

// CreateOrder inserts an order with its fee breakdown. An order carrying a
// promo code redeems one use in the same transaction; a code with no uses
// left fails the order with ErrPromoExhausted.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if order.PromoCodeID != nil {
		if err := redeemPromo(ctx, tx, *order.PromoCodeID); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO orders (buyer_id, seller_id, listing_id, quantity, unit_price_cents, currency,
		                    subtotal_cents, platform_fee_cents, discount_cents, tax_cents, total_cents,
		                    seller_payout_cents, promo_code_id, status)
		VALUES (:buyer_id, :seller_id, :listing_id, :quantity, :unit_price_cents, :currency,
		        :subtotal_cents, :platform_fee_cents, :discount_cents, :tax_cents, :total_cents,
		        :seller_payout_cents, :promo_code_id, :status)
		RETURNING id, created_at`

	rows, err := sqlx.NamedQueryContext(ctx, tx, query, order)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	if rows.Next() {
		if err := rows.Scan(&order.ID, &order.CreatedAt); err != nil {
			rows.Close()
			return err
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	return tx.Commit()
}

// redeemPromo takes one use of a promo code. The usage check and the
// increment are one statement, so concurrent orders cannot over-redeem.
func redeemPromo(ctx context.Context, tx *sqlx.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE promo_codes SET uses_count = uses_count + 1
		WHERE id::text = $1 AND (max_uses IS NULL OR uses_count < max_uses)`, id)
	if err != nil {
		return fmt.Errorf("failed to redeem promo code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrPromoExhausted
	}
	return nil
}

// GetOrder retrieves an order by ID
func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id::text = $1", id)
	if err != nil {
		return nil, notFound(err, "order "+id)
	}
	return &order, nil
}

// FindPromoByCode retrieves a promo code by its normalised code
func (s *Store) FindPromoByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	var promo models.PromoCode
	err := s.db.GetContext(ctx, &promo, "SELECT * FROM promo_codes WHERE UPPER(code) = $1", code)
	if err != nil {
		return nil, notFound(err, "promo code "+code)
	}
	return &promo, nil
}

// CreatePayout records a payout, ignoring a second payout for the same order
func (s *Store) CreatePayout(ctx context.Context, payout *models.Payout) error {
	query := `
		INSERT INTO seller_payouts (seller_id, order_id, amount_cents, currency, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_id) DO NOTHING
		RETURNING id, created_at`

	rows, err := s.db.QueryxContext(ctx, query,
		payout.SellerID, payout.OrderID, payout.AmountCents, payout.Currency, payout.Status)
	if err != nil {
		return fmt.Errorf("failed to insert payout: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&payout.ID, &payout.CreatedAt); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ListPayoutsBySeller retrieves payouts for a seller, newest first
func (s *Store) ListPayoutsBySeller(ctx context.Context, sellerID string) ([]models.Payout, error) {
	var payouts []models.Payout
	err := s.db.SelectContext(ctx, &payouts,
		"SELECT * FROM seller_payouts WHERE seller_id = $1 ORDER BY created_at DESC", sellerID)
	return payouts, err
}

// ListPaymentMethods retrieves a user's saved payment methods
func (s *Store) ListPaymentMethods(ctx context.Context, userID string) ([]models.PaymentMethod, error) {
	var methods []models.PaymentMethod
	err := s.db.SelectContext(ctx, &methods,
		"SELECT * FROM user_payment_methods WHERE user_id = $1 ORDER BY is_default DESC, created_at", userID)
	return methods, err
}

// ListKYCDocuments retrieves a user's submitted KYC documents
func (s *Store) ListKYCDocuments(ctx context.Context, userID string) ([]models.KYCDocument, error) {
	var docs []models.KYCDocument
	err := s.db.SelectContext(ctx, &docs,
		"SELECT * FROM user_kyc_documents WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return docs, err
}
