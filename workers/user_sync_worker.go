package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"firefight-arena/models"
	"firefight-arena/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileChangesResponse is the top-level payload from the profile service.
type ProfileChangesResponse struct {
	Profiles []models.RemoteProfile `json:"profiles"`
}

// UserSyncWorker mirrors identity-provider profiles into the local users
// table so display names and avatars stay fresh without a per-request fetch.
// Users are also lazily created on first request, so this sync is additive.
type UserSyncWorker struct {
	db         *gorm.DB
	baseURL    string
	token      string
	interval   time.Duration
	httpClient *http.Client
}

func NewUserSyncWorker(db *gorm.DB, baseURL, token string) *UserSyncWorker {
	return &UserSyncWorker{
		db:         db,
		baseURL:    baseURL,
		token:      token,
		interval:   1 * time.Minute,
		httpClient: utils.HTTPClient,
	}
}

func (w *UserSyncWorker) Start(ctx context.Context) {
	if w.baseURL == "" {
		log.Println("⚠️ User sync worker disabled: no profile service URL configured")
		return
	}
	log.Println("🔁 Starting user profile sync worker...")
	go w.run(ctx)
}

func (w *UserSyncWorker) run(ctx context.Context) {
	// Backfill from the beginning of time on startup.
	if err := w.syncBatch(ctx, time.Time{}); err != nil {
		log.Printf("⚠️ Initial profile sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("⏹️ User sync worker stopped")
			return
		case <-ticker.C:
			if err := w.syncBatch(ctx, w.lastSyncTime()); err != nil {
				log.Printf("❌ Profile sync batch failed: %v", err)
			}
		}
	}
}

// lastSyncTime is the most recent updated_at we have locally. Profiles whose
// remote updated_at is older than this were already mirrored.
func (w *UserSyncWorker) lastSyncTime() time.Time {
	var lastTime time.Time
	err := w.db.Raw("SELECT MAX(updated_at) FROM users WHERE deleted_at IS NULL").Scan(&lastTime).Error
	if err != nil || lastTime.IsZero() {
		return time.Unix(0, 0)
	}
	return lastTime
}

func (w *UserSyncWorker) syncBatch(ctx context.Context, since time.Time) error {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("invalid profile service URL %q: %w", w.baseURL, err)
	}
	endpoint := base.JoinPath("/api/v1/public/profiles")

	q := endpoint.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create profile request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.token)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("profile service request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("profile service returned %d: %s", resp.StatusCode, string(body))
	}

	var response ProfileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return fmt.Errorf("failed to decode profile service response: %w", err)
	}
	if len(response.Profiles) == 0 {
		return nil
	}

	var upserted, errored int
	for _, remote := range response.Profiles {
		local := models.User{
			ID:        remote.ExternalID,
			Username:  remote.Username,
			Email:     remote.Email,
			AvatarURL: remote.AvatarURL,
			UpdatedAt: remote.UpdatedAt,
		}
		if remote.DeletedAt != nil {
			local.DeletedAt = gorm.DeletedAt{Time: *remote.DeletedAt, Valid: true}
		}

		if err := w.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"username", "email", "avatar_url", "updated_at", "deleted_at"}),
		}).Create(&local).Error; err != nil {
			errored++
			log.Printf("⚠️ Failed to upsert user %q (%s): %v", remote.Username, remote.ExternalID, err)
			continue
		}
		upserted++
	}

	log.Printf("✅ Profile sync: %d upserted, %d errors", upserted, errored)
	return nil
}
