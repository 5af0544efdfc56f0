// tradectl — консольный клиент приёмки работ: запрос приёмки, осмотр,
// устранение дефектов, счёт и архив.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"trade-closeout/internal/acceptance"
	"trade-closeout/internal/apiclient"
	"trade-closeout/internal/logger"
	"trade-closeout/internal/models"
	"trade-closeout/internal/tradestate"

	"github.com/spf13/cobra"
)

var (
	profilePath string
	serverURL   string
	logLevel    string

	profile *Profile
)

var rootCmd = &cobra.Command{
	Use:           "tradectl",
	Short:         "Trade completion and acceptance from the command line",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.Init(logger.Config{Level: logLevel, Output: os.Stderr})

		p, err := loadProfile(profilePath)
		if err != nil {
			return err
		}
		if serverURL != "" {
			p.BaseURL = serverURL
		}
		profile = p
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&profilePath, "config", defaultProfilePath(), "profile file")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "API base URL (overrides profile)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "debug, info, warn, error")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Ошибка:", describe(err))
		os.Exit(1)
	}
}

// describe — сообщение для пользователя и техническая причина.
func describe(err error) string {
	msg := acceptance.UserMessage(err)
	if msg == acceptance.DefaultMessage || errors.Is(err, ErrNotLoggedIn) {
		return err.Error()
	}
	return fmt.Sprintf("%s (%v)", msg, err)
}

var ErrNotLoggedIn = errors.New("not logged in, run: tradectl login <username>")

// session — клиент API и роль из профиля.
func session() (*apiclient.Client, models.UserRole, error) {
	if profile.Token == "" || profile.Role == "" {
		return nil, "", ErrNotLoggedIn
	}
	return apiclient.New(profile.BaseURL, profile.Token), profile.Role, nil
}

// loadState читает трейд и его реестр дефектов и счёт.
func loadState(ctx context.Context, api *apiclient.Client, tradeID uint) (*tradestate.State, error) {
	trade, err := api.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	state := tradestate.New(*trade)
	if err := tradestate.Refresh(ctx, state, api); err != nil {
		return nil, err
	}
	return state, nil
}

func parseTradeID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid trade id %q", raw)
	}
	return uint(id), nil
}
