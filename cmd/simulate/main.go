package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentalhub/clinic-booking/internal/config"
	"github.com/dentalhub/clinic-booking/internal/db"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	RequestRatio float64 // open a new negotiation
	RespondRatio float64 // clinic or patient response / cancel
	ReadRatio    float64 // reads
	PatientLimit int
	ClinicLimit  int
	PostgresDSN  string
}

type DataPool struct {
	Patients []uuid.UUID
	Clinics  []uuid.UUID

	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total    int64
	Success  int64
	Conflict int64
	Error    int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

type latencySummary struct {
	Avg, P50, P95, Max time.Duration
}

func (om *OperationMetrics) Summary() latencySummary {
	om.mu.Lock()
	sorted := make([]time.Duration, len(om.latencies))
	copy(sorted, om.latencies)
	om.mu.Unlock()

	if len(sorted) == 0 {
		return latencySummary{}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}

	return latencySummary{
		Avg: sum / time.Duration(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		Max: sorted[len(sorted)-1],
	}
}

func percentile(sorted []time.Duration, p int) time.Duration {
	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

type Metrics struct {
	Request        OperationMetrics
	ClinicRespond  OperationMetrics
	PatientRespond OperationMetrics
	Cancel         OperationMetrics
	ReadByID       OperationMetrics
	Actions        OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d request=%.2f respond=%.2f read=%.2f",
		cfg.Duration, cfg.Workers, cfg.RequestRatio, cfg.RespondRatio, cfg.ReadRatio)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}

	log.Printf("loaded: %d patients, %d clinics", len(dataPool.Patients), len(dataPool.Clinics))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		RequestRatio: getFloat("SIM_REQUEST_RATIO", 0.3),
		RespondRatio: getFloat("SIM_RESPOND_RATIO", 0.4),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 2000),
		ClinicLimit:  getInt("SIM_CLINIC_LIMIT", 100),
		PostgresDSN:  baseCfg.PostgresDSN,
	}

	// Normalize ratios
	total := cfg.RequestRatio + cfg.RespondRatio + cfg.ReadRatio
	if total > 0 {
		cfg.RequestRatio /= total
		cfg.RespondRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `
		SELECT id FROM patients LIMIT $1
	`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Patients = append(dataPool.Patients, id)
	}

	rows, err = pool.Query(ctx, `
		SELECT id FROM clinics LIMIT $1
	`, cfg.ClinicLimit)
	if err != nil {
		return nil, fmt.Errorf("load clinics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Clinics = append(dataPool.Clinics, id)
	}

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}
	if len(dataPool.Clinics) == 0 {
		return nil, fmt.Errorf("no clinics loaded")
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			if r < s.config.RequestRatio {
				s.doRequest(ctx, rng)
			} else if r < s.config.RequestRatio+s.config.RespondRatio {
				// Responses push negotiations forward; some are expected to
				// hit invalid-transition conflicts, that is the point.
				switch rng.Intn(3) {
				case 0:
					s.doClinicRespond(ctx, rng)
				case 1:
					s.doPatientRespond(ctx, rng)
				case 2:
					s.doCancel(ctx, rng)
				}
			} else {
				if rng.Intn(2) == 0 {
					s.doReadByID(ctx, rng)
				} else {
					s.doActions(ctx, rng)
				}
			}
		}
	}
}

func (s *Simulator) doRequest(ctx context.Context, rng *rand.Rand) {
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	clinicID := s.pool.Clinics[rng.Intn(len(s.pool.Clinics))]

	visitTypes := []string{"consultation", "cleaning", "procedure", "emergency", "follow-up"}
	times := []string{"09:00", "10:30", "13:00", "14:30", "16:00"}

	reqBody := map[string]any{
		"patient_id":       patientID.String(),
		"clinic_id":        clinicID.String(),
		"requested_date":   time.Now().AddDate(0, 0, 1+rng.Intn(30)).Format("2006-01-02"),
		"requested_time":   times[rng.Intn(len(times))],
		"duration_minutes": 15 * (1 + rng.Intn(4)),
		"visit_type":       visitTypes[rng.Intn(len(visitTypes))],
	}
	body, _ := json.Marshal(reqBody)

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, "POST", s.config.APIBaseURL+"/appointments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusCreated {
			success = true
			var created struct {
				ID uuid.UUID `json:"id"`
			}
			bodyBytes, _ := io.ReadAll(resp.Body)
			if len(bodyBytes) > 0 {
				json.Unmarshal(bodyBytes, &created)
				if created.ID != uuid.Nil {
					s.pool.AddAppointment(created.ID)
				}
			}
		} else if resp.StatusCode == http.StatusConflict {
			conflict = true
		}
	}

	s.metrics.Request.Record(latency, success, conflict)
}

func (s *Simulator) doClinicRespond(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	clinicUser := s.pool.Clinics[rng.Intn(len(s.pool.Clinics))]

	reqBody := map[string]any{
		"responded_by": clinicUser.String(),
	}
	switch rng.Intn(3) {
	case 0:
		reqBody["response_type"] = "confirmation"
		reqBody["message"] = "Confirmed"
	case 1:
		reqBody["response_type"] = "counter-offer"
		reqBody["proposed_date"] = time.Now().AddDate(0, 0, 1+rng.Intn(30)).UTC().Format(time.RFC3339)
		reqBody["proposed_time"] = "11:00"
		reqBody["proposed_duration"] = 30
		reqBody["message"] = "Alternative time"
	case 2:
		reqBody["response_type"] = "rejection"
		reqBody["message"] = "Fully booked"
	}
	body, _ := json.Marshal(reqBody)

	s.post(ctx, fmt.Sprintf("/appointments/%s/clinic-response", apptID), body, &s.metrics.ClinicRespond)
}

func (s *Simulator) doPatientRespond(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	responses := []string{"accept", "reject", "counter"}
	reqBody := map[string]any{
		"response_type": responses[rng.Intn(len(responses))],
	}
	body, _ := json.Marshal(reqBody)

	s.post(ctx, fmt.Sprintf("/appointments/%s/patient-response", apptID), body, &s.metrics.PatientRespond)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	actors := []string{"patient", "clinic"}
	reqBody := map[string]any{
		"actor":  actors[rng.Intn(len(actors))],
		"reason": "simulated cancellation",
	}
	body, _ := json.Marshal(reqBody)

	s.post(ctx, fmt.Sprintf("/appointments/%s/cancel", apptID), body, &s.metrics.Cancel)
}

func (s *Simulator) post(ctx context.Context, path string, body []byte, om *OperationMetrics) {
	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "POST", s.config.APIBaseURL+path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false
	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			success = true
		} else if resp.StatusCode == http.StatusConflict {
			conflict = true
		}
	}

	om.Record(latency, success, conflict)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/appointments/%s", s.config.APIBaseURL, apptID), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.ReadByID.Record(latency, success, false)
}

func (s *Simulator) doActions(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	actors := []string{"patient", "clinic"}
	actor := actors[rng.Intn(len(actors))]

	start := time.Now()

	req, _ := http.NewRequestWithContext(ctx, "GET",
		fmt.Sprintf("%s/appointments/%s/actions?actor=%s", s.config.APIBaseURL, apptID, actor), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.Actions.Record(latency, success, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Request", &s.metrics.Request)
	printOperationReport("Clinic respond", &s.metrics.ClinicRespond)
	printOperationReport("Patient respond", &s.metrics.PatientRespond)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("Valid actions", &s.metrics.Actions)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	errCount := atomic.LoadInt64(&om.Error)

	s := om.Summary()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  total=%d success=%d (%.1f%%)", total, success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf(" conflict=%d", conflict)
	}
	if errCount > 0 {
		fmt.Printf(" error=%d", errCount)
	}
	fmt.Println()
	fmt.Printf("  latency avg=%s p50=%s p95=%s max=%s\n\n",
		s.Avg.Round(time.Millisecond), s.P50.Round(time.Millisecond),
		s.P95.Round(time.Millisecond), s.Max.Round(time.Millisecond))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return def
	}
	return d
}

func getInt(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return n
}

func getFloat(key string, def float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return def
	}
	return f
}
