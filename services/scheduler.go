// services/scheduler.go
package services

import (
	"log"
	"time"

	"firefight-arena/models"

	"github.com/go-co-op/gocron/v2"
)

// StartLifecycleScheduler moves tournaments along their time window:
// upcoming → live at start time, live → completed at end time.
func (s *TournamentService) StartLifecycleScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			now := time.Now()

			var due []models.Tournament
			if err := s.DB.Where("status = ? AND start_time <= ?", models.TournamentStatusUpcoming, now).
				Find(&due).Error; err != nil {
				log.Printf("[Scheduler] DB error: %v", err)
				return
			}
			for _, t := range due {
				if err := s.MarkLive(t.ID); err != nil {
					log.Printf("[Scheduler] Failed to start tournament %s: %v", t.ID, err)
				} else {
					log.Printf("✅ Tournament live: %s", t.Name)
				}
			}

			var over []models.Tournament
			if err := s.DB.Where("status = ? AND end_time IS NOT NULL AND end_time <= ?", models.TournamentStatusLive, now).
				Find(&over).Error; err != nil {
				log.Printf("[Scheduler] DB error: %v", err)
				return
			}
			for _, t := range over {
				if err := s.MarkCompleted(t.ID); err != nil {
					log.Printf("[Scheduler] Failed to complete tournament %s: %v", t.ID, err)
				} else {
					log.Printf("✅ Tournament completed: %s", t.Name)
				}
			}
		}),
	)
}
