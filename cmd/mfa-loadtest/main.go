package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goAccess "github.com/MrEthical07/goAccess"
	"github.com/MrEthical07/goAccess/internal/limiters"
	"github.com/MrEthical07/goAccess/memstore"
	"github.com/MrEthical07/goAccess/permission"
	"github.com/alicebob/miniredis/v2"
	"github.com/joho/godotenv"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"
)

// Hammers VerifyMFAAtLogin with wrong codes from many goroutines and checks
// that every user ends locked with exactly the configured number of attempts.
func main() {
	_ = godotenv.Load()

	var (
		users       = flag.Int("users", 50, "number of MFA-enabled users to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		attempts    = flag.Int("attempts", 40, "wrong codes submitted per user")
		backend     = flag.String("backend", envOr("LOCKOUT_BACKEND", "store"), "lockout backend: store or redis")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *attempts <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and attempts must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()
	cfg := goAccess.DefaultConfig()
	cfg.Audit.Enabled = false
	cfg.Lockout.Backend = goAccess.LockoutBackend(*backend)

	store := memstore.New()
	builder := goAccess.New().
		WithConfig(cfg).
		WithStore(store).
		WithLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true)

	var client redis.UniversalClient
	if cfg.Lockout.Backend == goAccess.LockoutBackendRedis {
		var cleanup func()
		client, cleanup = openRedis(*redisAddr)
		defer cleanup()
		builder = builder.WithRedis(client)
	}

	engine, err := builder.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("seeding %d users...\n", *users)
	org := store.PutOrganization(goAccess.Organization{Name: "loadtest", IsActive: true})
	ids := make([]string, 0, *users)
	wrong := make(map[string]string, *users)
	for i := 0; i < *users; i++ {
		u := store.PutUser(goAccess.User{
			Email:          fmt.Sprintf("admin%d@loadtest.local", i),
			Role:           permission.RoleAdmin,
			IsActive:       true,
			OrganizationID: org.ID,
		})
		code, err := enroll(ctx, engine, u.ID, cfg.TOTP)
		if err != nil {
			fmt.Fprintf(os.Stderr, "enroll %s: %v\n", u.ID, err)
			os.Exit(1)
		}
		ids = append(ids, u.ID)
		wrong[u.ID] = flipDigit(code)
	}

	stats := runLockoutPhase(ctx, engine, ids, wrong, *attempts, *concurrency)

	var lim *limiters.LockoutLimiter
	if client != nil {
		lim = limiters.NewLockoutLimiter(client, limiters.LockoutConfig{
			Prefix:    cfg.Lockout.RedisPrefix,
			Threshold: cfg.Lockout.Threshold,
			Duration:  cfg.Lockout.Duration,
		})
	}

	mismatches := 0
	for _, id := range ids {
		got, err := failedAttempts(ctx, store, lim, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read state %s: %v\n", id, err)
			os.Exit(1)
		}
		if got != cfg.Lockout.Threshold {
			mismatches++
			fmt.Fprintf(os.Stderr, "user %s: attempts=%d want %d\n", id, got, cfg.Lockout.Threshold)
		}
	}

	fmt.Println("---- results ----")
	printStats("verify", stats)
	snap := engine.MetricsSnapshot()
	fmt.Printf("failures=%d lockouts=%d locked_rejections=%d\n",
		snap.Counters[goAccess.MetricMFAVerifyFailure],
		snap.Counters[goAccess.MetricMFALockout],
		snap.Counters[goAccess.MetricMFALockedOutRejected],
	)
	if mismatches > 0 {
		fmt.Fprintf(os.Stderr, "%d users ended with a wrong attempt count\n", mismatches)
		os.Exit(1)
	}
	fmt.Println("all users locked at threshold")
}

func openRedis(addr string) (redis.UniversalClient, func()) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		fmt.Printf("using miniredis at %s\n", mr.Addr())
		return client, func() {
			_ = client.Close()
			mr.Close()
		}
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	fmt.Printf("using redis at %s\n", addr)
	return client, func() { _ = client.Close() }
}

func enroll(ctx context.Context, engine *goAccess.Engine, userID string, cfg goAccess.TOTPConfig) (string, error) {
	enrollment, err := engine.BeginMFAEnrollment(ctx, userID)
	if err != nil {
		return "", err
	}
	code, err := totp.GenerateCodeCustom(enrollment.Secret, time.Now(), totp.ValidateOpts{
		Period:    uint(cfg.Period),
		Skew:      uint(cfg.Skew),
		Digits:    otp.Digits(cfg.Digits),
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", err
	}
	return code, engine.ConfirmMFAEnrollment(ctx, userID, code)
}

// flipDigit returns a code of the same length that differs from code in
// every digit.
func flipDigit(code string) string {
	out := []byte(code)
	for i := range out {
		out[i] = '0' + (out[i]-'0'+5)%10
	}
	return string(out)
}

func failedAttempts(ctx context.Context, store *memstore.Store, lim *limiters.LockoutLimiter, userID string) (int, error) {
	if lim != nil {
		state, err := lim.State(ctx, userID)
		return state.Attempts, err
	}
	u, err := store.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return u.MFAFailedAttempts, nil
}

type phaseStats struct {
	total     time.Duration
	ops       int
	invalid   int64
	lockedOut int64
	other     int64
	p50       time.Duration
	p95       time.Duration
	p99       time.Duration
	opsPerS   float64
}

func runLockoutPhase(ctx context.Context, engine *goAccess.Engine, ids []string, wrong map[string]string, perUser, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		invalid   int64
		lockedOut int64
		other     int64
		ops       = len(ids) * perUser
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				id := ids[i%len(ids)]
				t0 := time.Now()
				_, err := engine.VerifyMFAAtLogin(ctx, id, wrong[id])
				d := time.Since(t0)
				switch {
				case errors.Is(err, goAccess.ErrMFALockedOut):
					atomic.AddInt64(&lockedOut, 1)
				case errors.Is(err, goAccess.ErrInvalidMFACode):
					atomic.AddInt64(&invalid, 1)
				default:
					atomic.AddInt64(&other, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s := computeStats(time.Since(start), latencies)
	s.invalid, s.lockedOut, s.other = invalid, lockedOut, other
	return s
}

func computeStats(total time.Duration, samples []time.Duration) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:   total,
		ops:     len(samples),
		p50:     percentile(samples, 50),
		p95:     percentile(samples, 95),
		p99:     percentile(samples, 99),
		opsPerS: float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d invalid=%d locked_out=%d other=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.invalid,
		s.lockedOut,
		s.other,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
