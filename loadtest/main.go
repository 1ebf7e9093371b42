package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"condoadmin/client"
	"condoadmin/client/credential"
	"condoadmin/client/session"
	"condoadmin/internal/metrics"
	"condoadmin/pkg/logger"
)

// Configuration
var (
	apiURL      = flag.String("url", client.DefaultBaseURL, "API base URL (devapi or real backend)")
	username    = flag.String("user", "admin", "Login username")
	password    = flag.String("pass", "admin123", "Login password")
	path        = flag.String("path", "unidades/", "Collection to hammer")
	concurrency = flag.Int("c", 200, "Concurrent workers sharing one session")
	duration    = flag.Duration("d", 30*time.Second, "Test duration")
	expireEvery = flag.Duration("expire", 2*time.Second, "Replace the access token with a dead one this often (0 disables)")
)

// Metrics
var (
	requests   int64
	failures   int64
	latencySum int64 // microseconds
	renewals   int64
	shared     int64
	skipped    int64
	replays    int64
	renewFails int64
)

// counter is the loadtest's ClientObserver.
type counter struct{}

func (counter) ObserveRequest(_ string, _ int, d time.Duration) {
	atomic.AddInt64(&latencySum, d.Microseconds())
}

func (counter) RecordRenewal(outcome string) {
	switch outcome {
	case metrics.RenewalSuccess:
		atomic.AddInt64(&renewals, 1)
	case metrics.RenewalShared:
		atomic.AddInt64(&shared, 1)
	case metrics.RenewalSkipped:
		atomic.AddInt64(&skipped, 1)
	case metrics.RenewalFailure:
		atomic.AddInt64(&renewFails, 1)
	}
}

func (counter) RecordReplay() { atomic.AddInt64(&replays, 1) }

func main() {
	flag.Parse()
	logger.InitLogger("test")

	fmt.Printf("🚀 Starting Renewal Load Test\n")
	fmt.Printf("   Target: %s%s\n", *apiURL, *path)
	fmt.Printf("   Workers: %d\n", *concurrency)
	fmt.Printf("   Expire every: %v\n", *expireEvery)

	http.DefaultTransport.(*http.Transport).MaxIdleConnsPerHost = *concurrency

	store := credential.NewMemoryStore()
	c, err := client.New(*apiURL, store, client.WithObserver(counter{}))
	if err != nil {
		fmt.Printf("bad url: %v\n", err)
		os.Exit(1)
	}
	mgr := session.NewManager(c)
	defer mgr.Dispose()

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	if _, err := mgr.Login(ctx, *username, *password); err != nil {
		fmt.Printf("login failed: %v\n", err)
		os.Exit(1)
	}

	// Metric Reporter
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		var last int64
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				total := atomic.LoadInt64(&requests)
				fmt.Printf("[%s] Req/s: %d | Errors: %d | Renewals: %d (shared %d, skipped %d) | Replays: %d\n",
					time.Now().Format("15:04:05"), total-last, atomic.LoadInt64(&failures),
					atomic.LoadInt64(&renewals), atomic.LoadInt64(&shared), atomic.LoadInt64(&skipped),
					atomic.LoadInt64(&replays))
				last = total
			}
		}
	}()

	// Expirer: forces every in-flight worker onto the renewal path at once.
	if *expireEvery > 0 {
		go func() {
			ticker := time.NewTicker(*expireEvery)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					pair, err := store.Get(ctx)
					if err != nil || pair == nil {
						continue
					}
					_ = store.Set(ctx, credential.Pair{Access: fmt.Sprintf("expired-%d", time.Now().UnixNano()), Refresh: pair.Refresh})
				}
			}
		}()
	}

	var wg sync.WaitGroup
	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				_, err := c.Get(ctx, *path)
				atomic.AddInt64(&requests, 1)
				if err != nil && ctx.Err() == nil {
					if atomic.AddInt64(&failures, 1) == 1 {
						fmt.Printf("first error: %v\n", err)
					}
					if client.IsRenewal(err) {
						return
					}
				}
			}
		}()
	}
	wg.Wait()

	total := atomic.LoadInt64(&requests)
	avg := float64(0)
	if total > 0 {
		avg = float64(atomic.LoadInt64(&latencySum)) / float64(total) / 1000
	}
	fmt.Println("✅ Done")
	fmt.Printf("   Requests: %d | Errors: %d | Avg latency: %.2f ms\n", total, atomic.LoadInt64(&failures), avg)
	fmt.Printf("   Refresh calls: %d | Shared waits: %d | Skipped: %d | Failed: %d | Replays: %d\n",
		atomic.LoadInt64(&renewals), atomic.LoadInt64(&shared), atomic.LoadInt64(&skipped),
		atomic.LoadInt64(&renewFails), atomic.LoadInt64(&replays))
	fmt.Printf("   Still signed in: %v\n", mgr.IsAuthenticated())
}
