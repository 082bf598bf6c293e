package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/carelane/hospital-scheduling/internal/api"
	"github.com/carelane/hospital-scheduling/internal/config"
	"github.com/carelane/hospital-scheduling/internal/db"
	"github.com/carelane/hospital-scheduling/internal/identity"
	"github.com/carelane/hospital-scheduling/internal/schedule"
)

// simulate hammers a single doctor's day with concurrent booking attempts
// from many patients. Most attempts target the same few slots, so the run
// exercises the distributed lock under contention. At the end it queries
// Postgres directly and fails loudly if any two booked appointments for
// that doctor-day overlap.
func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:8080", "api server base url")
		workers  = flag.Int("workers", 50, "concurrent booking workers")
		attempts = flag.Int("attempts", 500, "total booking attempts")
		hotSlots = flag.Int("hot-slots", 4, "number of contested slots")
	)
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pool.Close()

	doctor, err := pickActor(pool, identity.RoleDoctor)
	if err != nil {
		log.Fatal().Err(err).Msg("no seeded doctor found, run cmd/seed first")
	}
	patients, err := pickActors(pool, identity.RolePatient, *workers)
	if err != nil {
		log.Fatal().Err(err).Msg("no seeded patients found, run cmd/seed first")
	}

	// Book on a far-future day so the seeded data cannot interfere.
	day := time.Now().AddDate(0, 2, 0).Format(schedule.DateLayout)

	workStart, _ := schedule.ParseTimeOfDay(cfg.WorkDayStart)
	workEnd, _ := schedule.ParseTimeOfDay(cfg.WorkDayEnd)
	slots := schedule.Slots(workStart, workEnd, cfg.SlotMinutes)
	if *hotSlots > len(slots) {
		*hotSlots = len(slots)
	}

	log.Info().
		Str("doctor", doctor.String()).
		Str("date", day).
		Int("workers", *workers).
		Int("attempts", *attempts).
		Int("hot_slots", *hotSlots).
		Msg("starting booking storm")

	var booked, conflicted, busy, failed int64

	client := &http.Client{Timeout: 10 * time.Second}
	jobs := make(chan int)
	var wg sync.WaitGroup

	start := time.Now()
	for w := 0; w < *workers; w++ {
		patient := patients[w%len(patients)]
		token, err := api.NewToken(cfg.JWTSecret, patient, identity.RolePatient, time.Hour)
		if err != nil {
			log.Fatal().Err(err).Msg("sign token")
		}

		wg.Add(1)
		go func(patient uuid.UUID, token string) {
			defer wg.Done()
			for i := range jobs {
				slot := slots[i%*hotSlots]
				status, err := book(client, *baseURL, token, api.CreateAppointmentRequest{
					PatientID:       patient.String(),
					DoctorID:        doctor.String(),
					Date:            day,
					StartTime:       slot.String(),
					DurationMinutes: cfg.SlotMinutes,
					Type:            "consultation",
					Priority:        "routine",
				})
				switch {
				case err != nil:
					atomic.AddInt64(&failed, 1)
				case status == http.StatusCreated:
					atomic.AddInt64(&booked, 1)
				case status == http.StatusBadRequest:
					atomic.AddInt64(&conflicted, 1)
				case status == http.StatusConflict:
					atomic.AddInt64(&busy, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}
			}
		}(patient, token)
	}

	for i := 0; i < *attempts; i++ {
		jobs <- rand.Intn(*hotSlots)
	}
	close(jobs)
	wg.Wait()

	log.Info().
		Int64("booked", booked).
		Int64("conflicted", conflicted).
		Int64("lock_busy", busy).
		Int64("failed", failed).
		Dur("took", time.Since(start)).
		Msg("booking storm finished")

	overlaps, err := countOverlaps(pool, doctor, day)
	if err != nil {
		log.Fatal().Err(err).Msg("overlap check query failed")
	}
	if overlaps > 0 {
		log.Fatal().Int("overlaps", overlaps).Msg("OVERLAPPING APPOINTMENTS FOUND, double booking occurred")
	}
	if booked > int64(*hotSlots) {
		log.Fatal().Int64("booked", booked).Int("hot_slots", *hotSlots).Msg("more bookings accepted than contested slots")
	}
	log.Info().Msg("no double bookings, schedule is consistent")
}

func book(client *http.Client, baseURL, token string, req api.CreateAppointmentRequest) (int, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return 0, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/appointments", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(httpReq)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

func pickActor(pool *pgxpool.Pool, role identity.Role) (uuid.UUID, error) {
	ids, err := pickActors(pool, role, 1)
	if err != nil {
		return uuid.Nil, err
	}
	return ids[0], nil
}

func pickActors(pool *pgxpool.Pool, role identity.Role, limit int) ([]uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := pool.Query(ctx, `SELECT id FROM actors WHERE role = $1 LIMIT $2`, role, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no actors with role %s", role)
	}
	return ids, nil
}

// countOverlaps checks the no-overlap invariant straight against the
// table, self-joining blocking appointments on the contested doctor-day.
func countOverlaps(pool *pgxpool.Pool, doctor uuid.UUID, day string) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var n int
	err := pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM appointments a
		JOIN appointments b
		  ON a.doctor_id = b.doctor_id
		 AND a.date = b.date
		 AND a.id < b.id
		 AND a.start_minutes < b.start_minutes + b.duration_minutes
		 AND b.start_minutes < a.start_minutes + a.duration_minutes
		WHERE a.doctor_id = $1
		  AND a.date = $2
		  AND a.status IN ('scheduled', 'confirmed')
		  AND b.status IN ('scheduled', 'confirmed')
	`, doctor, day).Scan(&n)
	return n, err
}
