package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"trade-closeout/internal/apiclient"
	"trade-closeout/internal/invoice"
	"trade-closeout/internal/models"

	"github.com/spf13/cobra"
)

var invoiceCmd = &cobra.Command{
	Use:   "invoice <trade-id>",
	Short: "Show the trade invoice; --open marks it viewed, --download saves it",
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
		open, _ := cmd.Flags().GetBool("open")
		target, _ := cmd.Flags().GetString("download")

		raw, err := api.GetInvoice(cmd.Context(), id)
		if err != nil {
			return err
		}
		inv := invoice.Visible(raw)
		out := cmd.OutOrStdout()
		if inv == nil {
			fmt.Fprintln(out, "Счёт ещё не выставлен.")
			return nil
		}

		actions := invoice.NewActions(api, role)
		if open {
			if inv, err = actions.Open(cmd.Context(), inv); err != nil {
				return err
			}
		}
		printInvoice(out, inv, time.Now())

		if target != "" {
			doc, err := actions.Download(cmd.Context(), inv)
			if err != nil {
				return err
			}
			if err := os.WriteFile(target, doc, 0o644); err != nil {
				return fmt.Errorf("save invoice: %w", err)
			}
			fmt.Fprintf(out, "Сохранено: %s\n", target)
		}
		return nil
	},
}

var sendInvoiceCmd = &cobra.Command{
	Use:   "send-invoice <trade-id>",
	Short: "Issue the draft invoice to the client (contractor)",
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
		raw, err := api.GetInvoice(cmd.Context(), id)
		if err != nil {
			return err
		}
		if raw == nil {
			return fmt.Errorf("trade %d has no invoice", id)
		}
		sent, err := api.SendInvoice(cmd.Context(), raw.ID)
		if err != nil {
			return err
		}
		printInvoice(cmd.OutOrStdout(), sent, time.Now())
		return nil
	},
}

var payCmd = &cobra.Command{
	Use:   "pay <trade-id>",
	Short: "Mark the trade invoice as paid (client)",
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
		raw, err := api.GetInvoice(cmd.Context(), id)
		if err != nil {
			return err
		}
		paid, err := invoice.NewActions(api, role).MarkPaid(cmd.Context(), invoice.Visible(raw))
		if errors.Is(err, invoice.ErrNotVisible) {
			return fmt.Errorf("trade %d: %w", id, err)
		}
		if err != nil {
			return err
		}
		printInvoice(cmd.OutOrStdout(), paid, time.Now())
		return nil
	},
}

var watchInvoiceCmd = &cobra.Command{
	Use:   "watch-invoice <trade-id>",
	Short: "Poll the invoice of a completed trade until it is paid (client)",
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
		interval, _ := cmd.Flags().GetDuration("interval")
		if interval <= 0 {
			interval = profile.PollInterval
		}

		state, err := loadState(cmd.Context(), api, id)
		if err != nil {
			return err
		}
		if !invoice.ShouldPoll(role, state.Status()) {
			return fmt.Errorf("invoice is watched by the client once the trade is completed")
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		out := cmd.OutOrStdout()
		var last invoice.Status
		poller := invoice.NewPoller(api, state, role, interval)
		poller.Stop = func(err error) bool { return errors.Is(err, apiclient.ErrStaleCredential) }
		poller.OnUpdate = func(inv *models.Invoice) {
			status := invoice.StatusOf(inv)
			if status != last {
				last = status
				if inv == nil {
					fmt.Fprintln(out, "Счёт ещё не выставлен.")
				} else {
					printInvoice(out, inv, time.Now())
				}
			}
			if invoice.IsPaid(inv) {
				cancel()
			}
		}

		err = poller.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	invoiceCmd.Flags().Bool("open", false, "mark a sent invoice as viewed")
	invoiceCmd.Flags().String("download", "", "save the invoice document to this file")
	watchInvoiceCmd.Flags().Duration("interval", 0, "poll interval (default from profile)")

	rootCmd.AddCommand(invoiceCmd, sendInvoiceCmd, payCmd, watchInvoiceCmd)
}

func printInvoice(w io.Writer, inv *models.Invoice, now time.Time) {
	fmt.Fprintf(w, "Счёт %s: %.2f %s, %s\n", inv.InvoiceNumber, inv.Amount, inv.Currency, invoice.StatusOf(inv))
	switch {
	case invoice.IsPaid(inv):
		if inv.PaidAt != nil {
			fmt.Fprintf(w, "  оплачен %s\n", inv.PaidAt.Local().Format("02.01.2006"))
		}
	case invoice.IsOverdue(inv, now):
		days, _ := invoice.DaysUntilDue(inv, now)
		fmt.Fprintf(w, "  просрочен на %d дн.\n", -days)
	default:
		if days, ok := invoice.DaysUntilDue(inv, now); ok {
			fmt.Fprintf(w, "  оплатить через %d дн.\n", days)
		}
	}
}
