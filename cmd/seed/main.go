package main

import (
	"context"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/carelane/hospital-scheduling/internal/db"
	"github.com/carelane/hospital-scheduling/internal/identity"
	"github.com/carelane/hospital-scheduling/internal/schedule"
)

var departments = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	log.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	doctors, err := seedActors(context.Background(), pool, identity.RoleDoctor, 50)
	if err != nil {
		log.Fatal().Err(err).Msg("seed doctors")
	}
	patients, err := seedActors(context.Background(), pool, identity.RolePatient, 2000)
	if err != nil {
		log.Fatal().Err(err).Msg("seed patients")
	}
	for _, role := range []identity.Role{identity.RoleAdmin, identity.RoleNurse, identity.RoleReceptionist} {
		if _, err := seedActors(context.Background(), pool, role, 5); err != nil {
			log.Fatal().Err(err).Str("role", string(role)).Msg("seed staff")
		}
	}
	log.Info().Int("doctors", len(doctors)).Int("patients", len(patients)).Msg("actors seeded")

	if err := seedAppointments(context.Background(), pool, doctors, patients, 5000); err != nil {
		log.Fatal().Err(err).Msg("seed appointments")
	}

	log.Info().Msg("seed complete")
}

func seedActors(ctx context.Context, pool *pgxpool.Pool, role identity.Role, count int) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		if role == identity.RoleDoctor {
			name = "Dr. " + name
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO actors (id, role, display_name, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, role, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

// seedAppointments books conflict-free appointments by walking each
// doctor's day slot by slot, so the seeded data already satisfies the
// no-overlap invariant.
func seedAppointments(ctx context.Context, pool *pgxpool.Pool, doctors, patients []uuid.UUID, count int) error {
	const batchSize = 500

	workStart, _ := schedule.ParseTimeOfDay("09:00")
	workEnd, _ := schedule.ParseTimeOfDay("17:00")
	slots := schedule.Slots(workStart, workEnd, 30)

	statuses := []schedule.Status{
		schedule.StatusScheduled,
		schedule.StatusConfirmed,
		schedule.StatusCompleted,
		schedule.StatusCancelled,
	}

	type doctorDay struct {
		doctor uuid.UUID
		day    time.Time
	}
	nextSlot := make(map[doctorDay]int)

	inserted := 0
	for inserted < count {
		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		end := inserted + batchSize
		if end > count {
			end = count
		}

		for inserted < end {
			doctor := doctors[gofakeit.Number(0, len(doctors)-1)]
			day := time.Now().AddDate(0, 0, gofakeit.Number(-30, 30)).Truncate(24 * time.Hour)

			key := doctorDay{doctor: doctor, day: day}
			idx := nextSlot[key]
			if idx >= len(slots) {
				continue // day full, pick another doctor/day
			}
			nextSlot[key] = idx + 1

			status := statuses[gofakeit.Number(0, len(statuses)-1)]
			patient := patients[gofakeit.Number(0, len(patients)-1)]

			_, err := tx.Exec(ctx, `
				INSERT INTO appointments
					(id, patient_id, doctor_id, date, start_minutes, duration_minutes,
					 status, appt_type, priority, department, notes, follow_up_required,
					 created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
			`, uuid.New(), patient, doctor, day, int(slots[idx]), 30,
				status, "consultation", "routine",
				departments[gofakeit.Number(0, len(departments)-1)],
				gofakeit.Sentence(8),
				status == schedule.StatusCompleted && gofakeit.Bool())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
			inserted++
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}
	}

	return nil
}
