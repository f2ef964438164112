package main

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log"
	mrand "math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pterm/pterm"

	"blackjack-table/server/engine"
	"blackjack-table/server/ledger"
	"blackjack-table/server/metrics"
	"blackjack-table/server/store"
	"blackjack-table/server/table"
	"blackjack-table/server/wallet"
)

var debugState bool

//
// ===== bootstrap =====
//

func mustEnv(keys ...string) {
	for _, k := range keys {
		if os.Getenv(k) == "" {
			log.Fatalf("Missing required env var %s. Put it in .env (dev) or set it on the host (prod).", k)
		}
	}
}
func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func atoiDef(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
func asBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	_ = godotenv.Load()

	if os.Getenv("NO_COLOR") != "" {
		pterm.DisableColor()
	}
	debugState = asBool(os.Getenv("DEBUG"))

	var migrate, play bool
	for _, a := range os.Args[1:] {
		switch a {
		case "--migrate":
			migrate = true
		case "--play":
			play = true
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watchSignals(cancel)

	if migrate {
		mustEnv("DATABASE_URL")
		db, err := store.Open(getenv("DATABASE_URL", ""))
		if err != nil {
			log.Fatal(err)
		}
		defer db.Close(context.Background())
		if err := store.Migrate(ctx, db); err != nil {
			log.Fatal(err)
		}
		log.Println("migrated")
		return
	}

	cfg := engine.DefaultConfig()
	cfg.InitialBalance = int64(atoiDef(os.Getenv("INITIAL_BALANCE"), int(cfg.InitialBalance)))
	seeds := newSeedStream(deckSeedFromEnvOrCrypto())
	eng, err := engine.New(cfg, mrand.New(mrand.NewSource(int64(seeds.next()))).Intn)
	if err != nil {
		log.Fatalf("engine config: %v", err)
	}

	// Optional DB: without it the ledger lives in memory and rounds are not persisted.
	opts := table.Options{
		Engine:       eng,
		Signer:       ledger.NewSigner(os.Getenv("HOUSE_KEY_SEED")),
		AdviceTrials: atoiDef(os.Getenv("ADVICE_TRIALS"), 2000),
		Intn:         mrand.New(mrand.NewSource(int64(seeds.next()))).Intn,
	}
	if dsn := getenv("DATABASE_URL", ""); dsn != "" {
		db, err := store.Open(dsn)
		if err != nil {
			log.Printf("DB disabled (open failed): %v", err)
		} else {
			defer db.Close(context.Background())
			ok := true
			if asBool(os.Getenv("AUTO_MIGRATE")) {
				if err := store.Migrate(ctx, db); err != nil {
					log.Printf("migrate failed (continuing without DB): %v", err)
					ok = false
				}
			}
			if ok {
				opts.Ledger = db
				opts.History = db
			}
		}
	}

	wcfg, err := wallet.ConfigFromEnv()
	switch {
	case err == nil:
		q := wallet.NewQueue(wallet.NewRPCClient(wcfg), wcfg.ConfirmRetries, wcfg.ConfirmDelay, 64)
		q.Start(ctx, 2)
		opts.Wallet = q
	case errors.Is(err, wallet.ErrNotConfigured):
		log.Printf("deposits disabled: %v", err)
	default:
		log.Fatalf("wallet config: %v", err)
	}

	tb, err := table.New(opts)
	if err != nil {
		log.Fatal(err)
	}
	go tb.Run(ctx)
	if ttl := atoiDef(os.Getenv("SESSION_IDLE_MINUTES"), 30); ttl > 0 {
		go tb.Janitor(ctx, time.Duration(ttl)*time.Minute, time.Minute)
	}

	if play {
		if err := runPlay(ctx, tb); err != nil {
			log.Fatal(err)
		}
		return
	}

	port := getenv("PORT", "8080")
	r := Router(tb, metrics.Registry())
	srv := &http.Server{Addr: ":" + port, Handler: r, ReadTimeout: 15 * time.Second, WriteTimeout: 15 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		_ = srv.Shutdown(sctx)
	}()
	log.Printf("listening on http://localhost:%s (Ctrl+C to stop)", port)
	if pk := tb.PublicKey(); pk != "" && debugState {
		log.Printf("house key %s", pk)
	}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func watchSignals(cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c
	cancel()
}

//
// ===== randomness =====
//

type seedStream struct{ state uint64 }

func newSeedStream(base uint64) seedStream { return seedStream{state: base} }
func (s *seedStream) next() uint64 {
	s.state += 0x9E3779B97F4A7C15
	z := s.state
	z ^= z >> 30
	z *= 0xBF58476D1CE4E5B9
	z ^= z >> 27
	z *= 0x94D049BB133111EB
	z ^= z >> 31
	return z
}
func secureBaseSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err == nil {
		return binary.LittleEndian.Uint64(b[:]) ^ uint64(time.Now().UnixNano()) ^ uint64(os.Getpid())
	}
	return uint64(time.Now().UnixNano()) ^ 0xA5A5A5A5A5A5A5A5
}
func deckSeedFromEnvOrCrypto() uint64 {
	if s := os.Getenv("DECK_SEED"); s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return uint64(v)
		}
	}
	return secureBaseSeed()
}
