package main

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"blackjack-table/server/agent"
	"blackjack-table/server/engine"
	"blackjack-table/server/table"
)

const optQuit = "quit"

// runPlay is the terminal table: one session, driven by interactive prompts.
func runPlay(ctx context.Context, tb *table.Table) error {
	if debugState {
		pterm.DefaultLogger.Level = pterm.LogLevelDebug
	}
	logger := slog.New(pterm.NewSlogHandler(&pterm.DefaultLogger))

	pterm.DefaultHeader.WithFullWidth().Println("Blackjack")
	id, gs := tb.Create(ctx)
	logger.Debug("session created", "id", id, "balance", gs.Player.Balance)

	for ctx.Err() == nil {
		obs := agent.BuildObservation(gs)
		printTable(obs)

		options := append([]string{}, obs.Legal...)
		options = append(options, "stats", optQuit)
		choice, err := pterm.DefaultInteractiveSelect.WithDefaultText("Select your next action").WithOptions(options).Show()
		if err != nil {
			return err
		}

		var next engine.GameState
		switch choice {
		case optQuit:
			printStats(ctx, tb, id)
			pterm.Println("Thank you for playing...")
			return nil
		case "stats":
			printStats(ctx, tb, id)
			continue
		case string(engine.Bet):
			amount, ok := askBet(obs.Balance)
			if !ok {
				continue
			}
			next, err = tb.Bet(ctx, id, amount)
		case string(engine.Hit):
			next, err = tb.Hit(ctx, id)
		case string(engine.Stand):
			next, err = tb.Stand(ctx, id)
		case string(engine.NewGame):
			next, err = tb.NewGame(ctx, id)
		default:
			continue
		}
		if err != nil {
			logger.Warn(err.Error())
			continue
		}
		gs = next
		if st, ok := gs.Settlement(); ok {
			printOutcome(st)
		}
		if gs.Status == engine.StatusGameOver && gs.Player.Balance == 0 {
			pterm.Error.Println("You are out of chips, better luck next time!")
			printStats(ctx, tb, id)
			return nil
		}
	}
	return ctx.Err()
}

// askBet offers the tier amounts the player can afford plus a custom amount.
func askBet(balance int64) (int64, bool) {
	var amounts []int64
	for _, tier := range engine.BettingTiers {
		for _, a := range tier {
			if a <= balance {
				amounts = append(amounts, a)
			}
		}
	}
	sort.Slice(amounts, func(i, j int) bool { return amounts[i] < amounts[j] })
	options := make([]string, 0, len(amounts)+1)
	for _, a := range amounts {
		options = append(options, strconv.FormatInt(a, 10))
	}
	options = append(options, "custom")

	choice, err := pterm.DefaultInteractiveSelect.WithDefaultText("Bet amount").WithOptions(options).Show()
	if err != nil {
		return 0, false
	}
	if choice == "custom" {
		choice, err = pterm.DefaultInteractiveTextInput.WithDefaultText("Enter the amount to bet").Show()
		if err != nil {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(strings.TrimSpace(choice), 10, 64)
	if err != nil {
		pterm.Error.Printfln("Invalid amount: %s", choice)
		return 0, false
	}
	return n, true
}

func handLine(h agent.HandView) string {
	labels := make([]string, len(h.Cards))
	for i, c := range h.Cards {
		labels[i] = c.Label
	}
	score := "?"
	if h.Score != nil {
		score = strconv.Itoa(*h.Score)
		if h.Soft {
			score += " soft"
		}
		if h.Busted {
			score += " " + pterm.LightRed("BUST")
		}
	}
	return fmt.Sprintf("%s  (%s)", strings.Join(labels, " "), score)
}

func printTable(o agent.Observation) {
	data := pterm.TableData{
		{"", "Hand"},
		{pterm.LightCyan("Dealer"), handLine(o.Dealer)},
		{pterm.LightCyan("You"), handLine(o.Player)},
	}
	body, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		body = err.Error()
	}
	title := fmt.Sprintf("|%s| balance %d  bet %d  deck %d", strings.ToUpper(o.Status), o.Balance, o.Bet, o.DeckRemaining)
	pterm.DefaultBox.WithTitle(pterm.LightYellow(title)).WithTitleTopCenter().Println(body)
}

func printOutcome(st engine.Settlement) {
	switch st.Winner {
	case engine.WinnerPlayer:
		pterm.Success.Printfln("You win %d", st.Net)
	case engine.WinnerDealer:
		pterm.Error.Printfln("Dealer wins, you lose %d", st.Bet)
	case engine.WinnerPush:
		pterm.Info.Println("Push, bet returned")
	}
}

func printStats(ctx context.Context, tb *table.Table, id string) {
	st, err := tb.Stats(ctx, id)
	if err != nil {
		pterm.Error.Println(err.Error())
		return
	}
	pterm.Info.Printfln("hands %d  wins %d  losses %d  pushes %d  busts %d  net %+d  win rate 95%% CI [%.2f, %.2f]",
		st.Hands, st.Wins, st.Losses, st.Pushes, st.Busts, st.NetChips, st.WinRateLow, st.WinRateHigh)
}
