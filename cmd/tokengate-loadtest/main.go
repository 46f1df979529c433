// Command tokengate-loadtest measures session validation, refresh
// rotation and access-token verification under concurrency.
//
// Without --redis-addr (or REDIS_ADDR) it runs against miniredis.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/tokengate"
	"github.com/MrEthical07/tokengate/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type options struct {
	sessions    int
	concurrency int
	ops         int
	redisAddr   string
	prefix      string
}

// sessionState is one seeded session whose handle changes on rotation.
type sessionState struct {
	mu     sync.Mutex
	handle string
	access string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:          "tokengate-loadtest",
		Short:        "Load test the session store and refresh rotation",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.sessions, "sessions", 10000, "number of sessions to seed")
	f.IntVar(&opts.concurrency, "concurrency", 256, "number of concurrent workers")
	f.IntVar(&opts.ops, "ops", 100000, "operations per phase")
	f.StringVar(&opts.redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	f.StringVar(&opts.prefix, "prefix", "lt", "session key prefix")
	return cmd
}

type noUsers struct{}

func (noUsers) GetUserByUsername(context.Context, string) (tokengate.UserRecord, error) {
	return tokengate.UserRecord{}, tokengate.ErrUserNotFound
}

func run(ctx context.Context, opts options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.sessions <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
		return fmt.Errorf("sessions, concurrency, and ops must be > 0")
	}

	addr := opts.redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("failed to start miniredis: %w", err)
		}
		defer mr.Close()
		addr = mr.Addr()
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		fmt.Printf("using redis at %s\n", addr)
	}

	client := redis.NewClient(&redis.Options{Addr: addr, PoolSize: opts.concurrency})
	defer client.Close()

	cfg := tokengate.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("loadtest-signing-key-0123456789abcdef")
	cfg.Session.RedisPrefix = opts.prefix
	cfg.Security.EnableUserAgentBinding = false
	cfg.Security.EnableRefreshThrottle = false

	engine, err := tokengate.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserProvider(noUsers{}).
		WithLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()
	store := engine.SessionStore()

	states := make([]sessionState, opts.sessions)
	fmt.Printf("seeding %d sessions...\n", opts.sessions)
	startSeed := time.Now()
	for i := range states {
		id := session.Identity{UserID: fmt.Sprintf("u-%d", i%1000), DisplayName: "load", Roles: []string{"USER"}}
		handle, err := store.Issue(ctx, id, cfg.Session.TTL, nil)
		if err != nil {
			return fmt.Errorf("issue failed: %w", err)
		}
		states[i].handle = handle
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validateStats := runPhase(opts, 7919, func(r *rand.Rand) error {
		st := &states[r.Intn(len(states))]
		st.mu.Lock()
		handle := st.handle
		st.mu.Unlock()
		_, err := store.Validate(ctx, handle, nil)
		return err
	})

	refreshStats := runPhase(opts, 6151, func(r *rand.Rand) error {
		st := &states[r.Intn(len(states))]
		st.mu.Lock()
		defer st.mu.Unlock()
		res, err := engine.Refresh(ctx, st.handle)
		if err != nil {
			return err
		}
		st.handle = res.RefreshHandle
		st.access = res.AccessToken
		return nil
	})

	accessStats := runPhase(opts, 4099, func(r *rand.Rand) error {
		st := &states[r.Intn(len(states))]
		st.mu.Lock()
		token := st.access
		st.mu.Unlock()
		if token == "" {
			return nil
		}
		_, err := engine.ValidateAccess(ctx, token)
		return err
	})

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("refresh", refreshStats)
	printStats("access", accessStats)
	return nil
}

// runPhase runs opts.ops calls of op over opts.concurrency workers.
func runPhase(opts options, seedMul int64, op func(r *rand.Rand) error) phaseStats {
	var (
		cursor    atomic.Int64
		failures  atomic.Int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, opts.ops)
		g         errgroup.Group
	)

	start := time.Now()
	for w := 0; w < opts.concurrency; w++ {
		worker := int64(w)
		g.Go(func() error {
			r := rand.New(rand.NewSource(time.Now().UnixNano() + worker*seedMul))
			for {
				if cursor.Add(1) > int64(opts.ops) {
					return nil
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					failures.Add(1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		})
	}
	_ = g.Wait()
	return computeStats(time.Since(start), latencies, failures.Load())
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
