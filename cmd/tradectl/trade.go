package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"trade-closeout/internal/acceptance"
	"trade-closeout/internal/apiclient"
	"trade-closeout/internal/archive"
	"trade-closeout/internal/completion"
	"trade-closeout/internal/models"
	"trade-closeout/internal/tradestate"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Log in and store the token in the profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			password = os.Getenv("TRADECTL_PASSWORD")
		}
		if password == "" {
			fmt.Fprint(cmd.OutOrStdout(), "Пароль: ")
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && err != io.EOF {
				return err
			}
			password = strings.TrimSpace(line)
		}

		api := apiclient.New(profile.BaseURL, "")
		resp, err := api.Login(cmd.Context(), args[0], password)
		if err != nil {
			return err
		}

		profile.Token = resp.Token
		profile.Username = resp.User.Username
		profile.Role = resp.User.Role
		if err := saveProfile(profilePath, profile); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Вход выполнен: %s (%s), токен до %s\n",
			resp.User.Username, resp.User.Role, resp.ExpiresAt.Local().Format("02.01.2006 15:04"))
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <trade-id>",
	Short: "Show trade status, defects, invoice and available actions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, role, err := session()
		if err != nil {
			return err
		}
		id, err := parseTradeID(args[0])
		if err != nil {
			return err
		}
		state, err := loadState(cmd.Context(), api, id)
		if err != nil {
			return err
		}
		printState(cmd.OutOrStdout(), state.Snapshot(), role)
		return nil
	},
}

var progressCmd = &cobra.Command{
	Use:   "progress <trade-id> <percent>",
	Short: "Report work progress (contractor)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, role, err := session()
		if err != nil {
			return err
		}
		id, err := parseTradeID(args[0])
		if err != nil {
			return err
		}
		pct, err := strconv.Atoi(strings.TrimSuffix(args[1], "%"))
		if err != nil {
			return fmt.Errorf("invalid percent %q", args[1])
		}
		state, err := loadState(cmd.Context(), api, id)
		if err != nil {
			return err
		}

		if err := acceptance.NewCoordinator(state, api, role).UpdateProgress(cmd.Context(), pct); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Прогресс: %d%%\n", state.Snapshot().Trade.Progress)
		return nil
	},
}

var requestCompletionCmd = &cobra.Command{
	Use:   "request-completion <trade-id>",
	Short: "Ask the client to accept the work (contractor, progress 100%)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, role, err := session()
		if err != nil {
			return err
		}
		id, err := parseTradeID(args[0])
		if err != nil {
			return err
		}
		message, _ := cmd.Flags().GetString("message")
		state, err := loadState(cmd.Context(), api, id)
		if err != nil {
			return err
		}

		if err := acceptance.NewCoordinator(state, api, role).RequestCompletion(cmd.Context(), message); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Статус: %s\n", completion.Label(state.Status()))
		return nil
	},
}

var archiveCmd = &cobra.Command{
	Use:   "archive <trade-id>",
	Short: "Move a completed and paid trade to the archive (client)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, role, err := session()
		if err != nil {
			return err
		}
		id, err := parseTradeID(args[0])
		if err != nil {
			return err
		}
		yes, _ := cmd.Flags().GetBool("yes")
		state, err := loadState(cmd.Context(), api, id)
		if err != nil {
			return err
		}

		done, err := archive.NewArchiver(state, api, role).Archive(cmd.Context(), yes)
		if err != nil {
			return err
		}
		if !done {
			fmt.Fprintln(cmd.OutOrStdout(), "Архивировать нельзя: трейд должен быть принят, а счёт оплачен.")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Трейд перенесён в архив.")
		return nil
	},
}

var archivedCmd = &cobra.Command{
	Use:   "archived",
	Short: "List archived trades",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		api, _, err := session()
		if err != nil {
			return err
		}
		list, err := api.ListArchived(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(list) == 0 {
			fmt.Fprintln(out, "Архив пуст.")
		}
		for _, t := range list {
			at := ""
			if t.ArchivedAt != nil {
				at = t.ArchivedAt.Local().Format("02.01.2006")
			}
			fmt.Fprintf(out, "#%d\t%s\t%s\n", t.ID, t.Title, at)
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <trade-id>",
	Short: "Show the audit trail of a trade",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, _, err := session()
		if err != nil {
			return err
		}
		id, err := parseTradeID(args[0])
		if err != nil {
			return err
		}
		logs, err := api.History(cmd.Context(), id)
		if err != nil {
			return err
		}
		for _, l := range logs {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n",
				l.CreatedAt.Local().Format("02.01.2006 15:04"), l.Username, l.Action, l.Details)
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().String("password", "", "password (or TRADECTL_PASSWORD)")
	requestCompletionCmd.Flags().StringP("message", "m", "", "note for the client")
	archiveCmd.Flags().Bool("yes", false, "confirm archiving, it cannot be undone")

	rootCmd.AddCommand(loginCmd, showCmd, progressCmd, requestCompletionCmd, archiveCmd, archivedCmd, historyCmd)
}

// printState — карточка трейда.
func printState(w io.Writer, snap tradestate.Snapshot, role models.UserRole) {
	t := snap.Trade

	fmt.Fprintf(w, "#%d %s\n", t.ID, t.Title)
	fmt.Fprintf(w, "Статус:   %s %s\n", completion.Label(t.CompletionStatus), snap.Urgency)
	fmt.Fprintf(w, "Прогресс: %d%%\n", t.Progress)

	if len(snap.Defects) > 0 {
		fmt.Fprintln(w, "Дефекты:")
		for _, d := range snap.Defects {
			mark := "[ ]"
			if d.Resolved {
				mark = "[x]"
			}
			fmt.Fprintf(w, "  %s #%d %s (%s)\n", mark, d.ID, d.Title, d.Severity)
		}
	}

	if snap.Invoice != nil {
		printInvoice(w, snap.Invoice, time.Now())
	}

	events := completion.Events(t.CompletionStatus, role)
	if len(events) > 0 {
		names := make([]string, 0, len(events))
		for _, ev := range events {
			to, _ := completion.Target(ev)
			names = append(names, fmt.Sprintf("%s (→ %s)", ev, completion.Label(to)))
		}
		fmt.Fprintf(w, "Действия: %s\n", strings.Join(names, ", "))
		return
	}

	// ход за другой стороной
	for _, other := range []models.UserRole{models.RoleClient, models.RoleContractor} {
		if other == role {
			continue
		}
		for _, ev := range completion.Events(t.CompletionStatus, other) {
			actor, _ := completion.Actor(ev)
			fmt.Fprintf(w, "Ожидается: %s (%s)\n", ev, actor)
		}
	}
}
