package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MrEthical07/jwtauth/session"
)

type options struct {
	Sessions    int
	Concurrency int
	Ops         int
	Racers      int
	RedisAddr   string
	Prefix      string
}

var errRaceViolation = errors.New("rotation race produced more than one winner")

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:          "jwtauth-loadtest",
		Short:        "Measure session IsLive/Rotate throughput and check single-winner rotation",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := options{
				Sessions:    v.GetInt("sessions"),
				Concurrency: v.GetInt("concurrency"),
				Ops:         v.GetInt("ops"),
				Racers:      v.GetInt("racers"),
				RedisAddr:   v.GetString("redis_addr"),
				Prefix:      v.GetString("prefix"),
			}
			return run(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.Int("sessions", 100000, "number of sessions to seed")
	flags.Int("concurrency", 256, "number of concurrent workers")
	flags.Int("ops", 200000, "operations per phase (islive + rotate)")
	flags.Int("racers", 64, "goroutines rotating the same session in the race phase")
	flags.String("redis_addr", "", "redis address; if empty, REDIS_ADDR or an embedded miniredis is used")
	flags.String("prefix", "lt", "session key prefix")
	_ = v.BindPFlags(flags)
	_ = v.BindEnv("redis_addr", "REDIS_ADDR")

	return cmd
}

func run(ctx context.Context, opts options, out io.Writer) error {
	if opts.Sessions <= 0 || opts.Concurrency <= 0 || opts.Ops <= 0 || opts.Racers <= 0 {
		return errors.New("sessions, concurrency, ops and racers must be > 0")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var client redis.UniversalClient
	if opts.RedisAddr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		opts.RedisAddr = mr.Addr()
		fmt.Fprintf(out, "using miniredis at %s\n", opts.RedisAddr)
	} else {
		fmt.Fprintf(out, "using redis at %s\n", opts.RedisAddr)
	}
	client = redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:                 []string{opts.RedisAddr},
		ContextTimeoutEnabled: true,
	})
	defer func() { _ = client.Close() }()

	store := session.NewStore(client, session.Config{
		Prefix:  opts.Prefix,
		Timeout: 2 * time.Second,
		TTL:     24 * time.Hour,
	})

	fmt.Fprintf(out, "seeding %d sessions...\n", opts.Sessions)
	startSeed := time.Now()
	slots := make([]slot, opts.Sessions)
	for i := range slots {
		rec, err := store.Create(ctx, session.Subject{Principal: fmt.Sprintf("user-%d", i%1000), Role: "member"}, 24*time.Hour)
		if err != nil {
			return fmt.Errorf("create failed: %w", err)
		}
		slots[i].principal = rec.Principal
		slots[i].sid = rec.SessionID
	}
	fmt.Fprintf(out, "seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	liveStats := runIsLivePhase(ctx, store, slots, opts.Ops, opts.Concurrency)
	rotateStats := runRotatePhase(ctx, store, slots, opts.Ops, opts.Concurrency)
	winners, err := runRacePhase(ctx, store, opts.Racers)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "islive", liveStats)
	printStats(out, "rotate", rotateStats)
	fmt.Fprintf(out, "race: racers=%d winners=%d\n", opts.Racers, winners)
	if winners != 1 {
		return fmt.Errorf("%w: %d", errRaceViolation, winners)
	}
	return nil
}

// slot tracks the current session id of one rotation chain.
type slot struct {
	mu        sync.Mutex
	principal string
	sid       string
}

type sampler struct {
	mu        sync.Mutex
	latencies []time.Duration
	failures  atomic.Int64
}

func (s *sampler) add(d time.Duration, err error) {
	if err != nil {
		s.failures.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.mu.Unlock()
}

func runWorkers(ops, concurrency int, seed int64, work func(r *rand.Rand)) time.Duration {
	var (
		wg     sync.WaitGroup
		cursor atomic.Int64
	)
	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for cursor.Add(1) <= int64(ops) {
				work(r)
			}
		}(w)
	}
	wg.Wait()
	return time.Since(start)
}

func runIsLivePhase(ctx context.Context, store *session.Store, slots []slot, ops, concurrency int) phaseStats {
	s := &sampler{latencies: make([]time.Duration, 0, ops)}
	total := runWorkers(ops, concurrency, 7919, func(r *rand.Rand) {
		sl := &slots[r.Intn(len(slots))]
		sl.mu.Lock()
		sid := sl.sid
		sl.mu.Unlock()

		t0 := time.Now()
		live, err := store.IsLive(ctx, sl.principal, sid)
		if err == nil && !live {
			err = session.ErrSessionRevoked
		}
		s.add(time.Since(t0), err)
	})
	return computeStats(total, s.latencies, s.failures.Load())
}

func runRotatePhase(ctx context.Context, store *session.Store, slots []slot, ops, concurrency int) phaseStats {
	s := &sampler{latencies: make([]time.Duration, 0, ops)}
	total := runWorkers(ops, concurrency, 6151, func(r *rand.Rand) {
		sl := &slots[r.Intn(len(slots))]
		sl.mu.Lock()
		defer sl.mu.Unlock()

		t0 := time.Now()
		next, err := store.Rotate(ctx, sl.principal, sl.sid)
		s.add(time.Since(t0), err)
		if err == nil {
			sl.sid = next.SessionID
		}
	})
	return computeStats(total, s.latencies, s.failures.Load())
}

// runRacePhase rotates one session from racers goroutines at once and
// returns how many of them succeeded.
func runRacePhase(ctx context.Context, store *session.Store, racers int) (int, error) {
	rec, err := store.Create(ctx, session.Subject{Principal: "racer"}, time.Hour)
	if err != nil {
		return 0, fmt.Errorf("create race session: %w", err)
	}

	var (
		wg       sync.WaitGroup
		winners  atomic.Int64
		mu       sync.Mutex
		otherErr error
		start    = make(chan struct{})
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := store.Rotate(ctx, rec.Principal, rec.SessionID)
			switch {
			case err == nil:
				winners.Add(1)
			case errors.Is(err, session.ErrSessionRevoked):
			default:
				mu.Lock()
				otherErr = err
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	if otherErr != nil {
		return int(winners.Load()), fmt.Errorf("race rotate: %w", otherErr)
	}
	return int(winners.Load()), nil
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
	return samples[(len(samples)-1)*p/100]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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
