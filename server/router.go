package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"blackjack-table/server/agent"
	"blackjack-table/server/engine"
	"blackjack-table/server/metrics"
	"blackjack-table/server/table"
	"blackjack-table/server/wallet"
)

type sessionView struct {
	ID string `json:"id"`
	agent.Observation
}

type amountIn struct {
	Amount int64 `json:"amount"`
}

func Router(tb *table.Table, reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health
	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true})
	})

	r.Get("/api/tiers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, engine.BettingTiers)
	})

	// Key that verifies ledger entry signatures.
	r.Get("/api/house-key", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"public_key": tb.PublicKey(), "suite": "Ed25519"})
	})

	if reg != nil {
		r.Handle("/metrics", metrics.Handler(reg))
	}

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			id, gs := tb.Create(r.Context())
			writeJSONStatus(w, http.StatusCreated, sessionView{ID: id, Observation: agent.BuildObservation(gs)})
		})

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				id := chi.URLParam(r, "id")
				gs, err := tb.State(id)
				if err != nil {
					writeErr(w, err)
					return
				}
				writeJSON(w, sessionView{ID: id, Observation: agent.BuildObservation(gs)})
			})
			r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
				id := chi.URLParam(r, "id")
				gs, err := tb.Close(r.Context(), id)
				respondState(w, id, gs, err)
			})
			r.Post("/resume", func(w http.ResponseWriter, r *http.Request) {
				id := chi.URLParam(r, "id")
				gs, err := tb.Resume(r.Context(), id)
				respondState(w, id, gs, err)
			})

			r.Post("/bet", func(w http.ResponseWriter, r *http.Request) {
				var in amountIn
				if !decode(w, r, &in) {
					return
				}
				id := chi.URLParam(r, "id")
				gs, err := tb.Bet(r.Context(), id, in.Amount)
				respondState(w, id, gs, err)
			})
			r.Post("/hit", func(w http.ResponseWriter, r *http.Request) {
				id := chi.URLParam(r, "id")
				gs, err := tb.Hit(r.Context(), id)
				respondState(w, id, gs, err)
			})
			r.Post("/stand", func(w http.ResponseWriter, r *http.Request) {
				id := chi.URLParam(r, "id")
				gs, err := tb.Stand(r.Context(), id)
				respondState(w, id, gs, err)
			})
			r.Post("/new-game", func(w http.ResponseWriter, r *http.Request) {
				id := chi.URLParam(r, "id")
				gs, err := tb.NewGame(r.Context(), id)
				respondState(w, id, gs, err)
			})

			// Generic form: {"action":"bet","amount":100}
			r.Post("/action", func(w http.ResponseWriter, r *http.Request) {
				var in agent.ActionIn
				if !decode(w, r, &in) {
					return
				}
				id := chi.URLParam(r, "id")
				cur, err := tb.State(id)
				if err != nil {
					writeErr(w, err)
					return
				}
				if err := agent.Validate(agent.BuildObservation(cur), in); err != nil {
					http.Error(w, err.Error(), http.StatusConflict)
					return
				}
				var gs engine.GameState
				switch engine.ActionKind(in.Action) {
				case engine.Bet:
					gs, err = tb.Bet(r.Context(), id, *in.Amount)
				case engine.Hit:
					gs, err = tb.Hit(r.Context(), id)
				case engine.Stand:
					gs, err = tb.Stand(r.Context(), id)
				default:
					gs, err = tb.NewGame(r.Context(), id)
				}
				respondState(w, id, gs, err)
			})

			r.Post("/deposit", func(w http.ResponseWriter, r *http.Request) {
				var in amountIn
				if !decode(w, r, &in) {
					return
				}
				tr, err := tb.Deposit(r.Context(), chi.URLParam(r, "id"), in.Amount)
				if err != nil {
					writeErr(w, err)
					return
				}
				writeJSONStatus(w, http.StatusAccepted, tr)
			})
			r.Post("/withdraw", func(w http.ResponseWriter, r *http.Request) {
				var in amountIn
				if !decode(w, r, &in) {
					return
				}
				id := chi.URLParam(r, "id")
				tr, gs, err := tb.Withdraw(r.Context(), id, in.Amount)
				if err != nil {
					writeErr(w, err)
					return
				}
				writeJSONStatus(w, http.StatusAccepted, map[string]any{
					"transfer": tr,
					"session":  sessionView{ID: id, Observation: agent.BuildObservation(gs)},
				})
			})
			r.Get("/transfers", func(w http.ResponseWriter, r *http.Request) {
				trs, err := tb.Transfers(chi.URLParam(r, "id"))
				if err != nil {
					writeErr(w, err)
					return
				}
				writeJSON(w, trs)
			})

			r.Get("/ledger", func(w http.ResponseWriter, r *http.Request) {
				ctx, cancel := withTimeout(r.Context(), 5*time.Second)
				defer cancel()
				entries, err := tb.Ledger(ctx, chi.URLParam(r, "id"))
				if err != nil {
					writeErr(w, err)
					return
				}
				writeJSON(w, entries)
			})
			r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
				ctx, cancel := withTimeout(r.Context(), 5*time.Second)
				defer cancel()
				st, err := tb.Stats(ctx, chi.URLParam(r, "id"))
				if err != nil {
					writeErr(w, err)
					return
				}
				writeJSON(w, st)
			})
			r.Get("/advice", func(w http.ResponseWriter, r *http.Request) {
				ctx, cancel := withTimeout(r.Context(), 10*time.Second)
				defer cancel()
				a, err := tb.Advice(ctx, chi.URLParam(r, "id"))
				if err != nil {
					writeErr(w, err)
					return
				}
				writeJSON(w, a)
			})
		})
	})

	return r
}

func respondState(w http.ResponseWriter, id string, gs engine.GameState, err error) {
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, sessionView{ID: id, Observation: agent.BuildObservation(gs)})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, table.ErrUnknownSession):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, engine.ErrRejected), errors.Is(err, engine.ErrInvalidTransition),
		errors.Is(err, table.ErrPending):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, table.ErrWalletDisabled), errors.Is(err, wallet.ErrQueueFull):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, context.DeadlineExceeded):
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any) { writeJSONStatus(w, http.StatusOK, v) }

func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}
