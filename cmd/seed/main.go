package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentalhub/clinic-booking/internal/db"
	"github.com/dentalhub/clinic-booking/internal/negotiation"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	clinicIDs, err := seedClinics(context.Background(), pool, 25)
	if err != nil {
		log.Fatalf("seed clinics: %v", err)
	}
	patientIDs, err := seedPatients(context.Background(), pool, 2000)
	if err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedRequests(context.Background(), pool, patientIDs, clinicIDs, 500); err != nil {
		log.Fatalf("seed appointment requests: %v", err)
	}

	log.Println("seed complete")
}

func seedClinics(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d clinics", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Company() + " Dental"
		address := gofakeit.Street() + ", " + gofakeit.City()
		phone := gofakeit.Phone()

		_, err := tx.Exec(ctx, `
			INSERT INTO clinics (id, name, address, phone, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, name, address, phone)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("clinics seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d patients", count)

	const batchSize = 500
	ids := make([]uuid.UUID, 0, count)

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return nil, err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, name, email)
			if err != nil {
				_ = tx.Rollback(ctx)
				return nil, err
			}
			ids = append(ids, id)
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return ids, nil
}

// seedRequests opens pending negotiation threads through the repository so
// the simulator has live records to drive.
func seedRequests(ctx context.Context, pool *pgxpool.Pool, patients, clinics []uuid.UUID, count int) error {
	log.Printf("seeding %d appointment requests", count)

	repo := negotiation.NewPgRepository(pool)
	visitTypes := []negotiation.VisitType{
		negotiation.VisitConsultation,
		negotiation.VisitCleaning,
		negotiation.VisitProcedure,
		negotiation.VisitEmergency,
		negotiation.VisitFollowUp,
	}
	durations := []int{15, 30, 45, 60, 90}

	now := time.Now()
	for i := 0; i < count; i++ {
		record := &negotiation.AppointmentRecord{
			ID:        uuid.New(),
			PatientID: patients[gofakeit.Number(0, len(patients)-1)],
			ClinicID:  clinics[gofakeit.Number(0, len(clinics)-1)],
			Status:    negotiation.StatusPending,
			OriginalRequest: negotiation.OriginalRequest{
				RequestedDate: now.AddDate(0, 0, gofakeit.Number(1, 30)).Truncate(24 * time.Hour),
				RequestedTime: gofakeit.RandomString([]string{"09:00", "10:30", "13:00", "14:30", "16:00"}),
				Duration:      durations[gofakeit.Number(0, len(durations)-1)],
				VisitType:     visitTypes[gofakeit.Number(0, len(visitTypes)-1)],
				Reason:        gofakeit.Sentence(6),
				RequestedAt:   now,
			},
			CreatedAt:      now,
			LastActivityAt: now,
			UpdatedAt:      now,
		}

		if err := repo.Save(ctx, record); err != nil {
			return err
		}
	}

	log.Println("appointment requests seeded")
	return nil
}
