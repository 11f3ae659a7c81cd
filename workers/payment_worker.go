package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"firefight-arena/models"
	"firefight-arena/services"
	"firefight-arena/utils"
	"gorm.io/gorm"
)

// PaymentStatusResult is one transaction outcome reported by the provider.
type PaymentStatusResult struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"` // "completed" | "failed" | "pending"
}

// PaymentWorker reconciles pending wallet transactions against the payment
// provider. Callbacks are the primary settlement path; this poller catches
// the ones that never arrive, and expires deposits the provider forgot about.
type PaymentWorker struct {
	BaseURL      string
	Token        string
	HTTPClient   *http.Client
	DB           *gorm.DB
	Wallet       *services.WalletService
	PollInterval time.Duration
	ExpireAfter  time.Duration
}

func NewPaymentWorker(db *gorm.DB, wallet *services.WalletService, baseURL, token string, pollInterval, expireAfter time.Duration) *PaymentWorker {
	return &PaymentWorker{
		BaseURL:      baseURL,
		Token:        token,
		HTTPClient:   utils.HTTPClient,
		DB:           db,
		Wallet:       wallet,
		PollInterval: pollInterval,
		ExpireAfter:  expireAfter,
	}
}

func (w *PaymentWorker) Start(ctx context.Context) {
	if w.BaseURL == "" {
		log.Println("⚠️ Payment worker disabled: no provider URL configured, relying on callbacks only")
		go w.runExpiryOnly(ctx)
		return
	}
	log.Println("🔁 Starting payment reconciliation worker...")
	go w.run(ctx)
}

func (w *PaymentWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("⏹️ Payment worker stopped")
			return
		case <-ticker.C:
			if err := w.reconcile(ctx); err != nil {
				log.Printf("❌ Payment reconciliation failed: %v", err)
			}
			w.expireStale()
		}
	}
}

// runExpiryOnly still times out abandoned pendings when no provider is wired.
func (w *PaymentWorker) runExpiryOnly(ctx context.Context) {
	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("⏹️ Payment expiry worker stopped")
			return
		case <-ticker.C:
			w.expireStale()
		}
	}
}

// reconcile asks the provider for the current status of every pending deposit
// and settles the ones that reached a terminal state.
func (w *PaymentWorker) reconcile(ctx context.Context) error {
	var pending []models.WalletTransaction
	if err := w.DB.
		Where("status = ? AND type IN ?", models.TxStatusPending, []string{models.TxTypeDeposit, models.TxTypeEntryFee}).
		Order("created_at ASC").
		Limit(100).
		Find(&pending).Error; err != nil {
		return fmt.Errorf("failed to load pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	results, err := w.fetchStatuses(ctx, pending)
	if err != nil {
		return err
	}

	var confirmed, failed int
	for _, r := range results {
		switch r.Status {
		case "completed":
			if _, err := w.Wallet.ConfirmPayment(r.TransactionID); err != nil {
				log.Printf("⚠️ Failed to confirm payment %s: %v", r.TransactionID, err)
				continue
			}
			confirmed++
		case "failed":
			if _, err := w.Wallet.FailPayment(r.TransactionID); err != nil {
				log.Printf("⚠️ Failed to mark payment %s failed: %v", r.TransactionID, err)
				continue
			}
			failed++
		}
	}
	if confirmed > 0 || failed > 0 {
		log.Printf("✅ Payment reconciliation: %d confirmed, %d failed (of %d pending)", confirmed, failed, len(pending))
	}
	return nil
}

func (w *PaymentWorker) fetchStatuses(ctx context.Context, pending []models.WalletTransaction) ([]PaymentStatusResult, error) {
	u, err := url.Parse(fmt.Sprintf("%s/api/v1/payments/statuses", w.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid payment provider URL %q: %w", w.BaseURL, err)
	}

	ids := make([]string, 0, len(pending))
	for _, txn := range pending {
		ids = append(ids, txn.ID)
	}
	payload, err := json.Marshal(map[string][]string{"transaction_ids": ids})
	if err != nil {
		return nil, fmt.Errorf("failed to encode status request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", u.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create status request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", w.Token)

	resp, err := w.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payment provider request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("payment provider returned %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Results []PaymentStatusResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode payment provider response: %w", err)
	}
	return response.Results, nil
}

// expireStale fails pending deposits and entry fees older than the expiry
// window. Failing the transaction also releases the participant slot.
func (w *PaymentWorker) expireStale() {
	cutoff := time.Now().UTC().Add(-w.ExpireAfter)

	var stale []models.WalletTransaction
	if err := w.DB.
		Where("status = ? AND type IN ? AND created_at < ?",
			models.TxStatusPending, []string{models.TxTypeDeposit, models.TxTypeEntryFee}, cutoff).
		Limit(100).
		Find(&stale).Error; err != nil {
		log.Printf("⚠️ Failed to load stale transactions: %v", err)
		return
	}

	for _, txn := range stale {
		if _, err := w.Wallet.FailPayment(txn.ID); err != nil {
			log.Printf("⚠️ Failed to expire transaction %s: %v", txn.ID, err)
			continue
		}
		log.Printf("⌛ Expired pending %s transaction %s (created %s)", txn.Type, txn.ID, txn.CreatedAt.Format(time.RFC3339))
	}
}
