package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/dentalhub/clinic-booking/internal/config"
	"github.com/dentalhub/clinic-booking/internal/db"
	"github.com/dentalhub/clinic-booking/internal/negotiation"
	"github.com/dentalhub/clinic-booking/internal/notify"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("reminder-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running reminder worker in env=%s interval=%s window=%s", cfg.Env, cfg.WorkerInterval, cfg.ReminderWindow)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	repo := negotiation.NewPgRepository(pgPool)
	devices := notify.NewPgDeviceStore(pgPool)

	var gateway negotiation.NotificationGateway
	if cfg.NotifyDriver == "expo" {
		gateway = notify.NewExpoGateway(devices)
	} else {
		gateway = notify.NewLogGateway()
	}

	// Run once at startup
	runOnce(rootCtx, repo, gateway, cfg.ReminderWindow)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Println("shutdown signal received, stopping reminder worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, repo, gateway, cfg.ReminderWindow)
		}
	}
}

// runOnce reminds both parties of every confirmed appointment that starts
// inside the window. Reminders are best effort and never touch the status
// machine: the canonical transition table has no system-actor rows.
func runOnce(ctx context.Context, repo *negotiation.PgRepository, gateway negotiation.NotificationGateway, window time.Duration) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	upcoming, err := repo.FindConfirmedBetween(runCtx, start, start.Add(window))
	if err != nil {
		log.Printf("reminder run error: %v", err)
		return
	}

	for _, record := range upcoming {
		payload := map[string]string{
			"reminder":   "upcoming-appointment",
			"final_time": record.ConfirmedDetails.FinalTime,
		}
		if err := gateway.Notify(runCtx, negotiation.ActorPatient, record.PatientID, record.ID, record.Status, payload); err != nil {
			log.Printf("remind patient %s about appointment %s: %v", record.PatientID, record.ID, err)
		}
		if err := gateway.Notify(runCtx, negotiation.ActorClinic, record.ClinicID, record.ID, record.Status, payload); err != nil {
			log.Printf("remind clinic %s about appointment %s: %v", record.ClinicID, record.ID, err)
		}
	}

	log.Printf("reminder run complete: %d upcoming in %s", len(upcoming), time.Since(start))
}
