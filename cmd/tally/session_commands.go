package main

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/evanschultz/tally/internal/app"
	"github.com/evanschultz/tally/internal/domain"
	"github.com/evanschultz/tally/internal/report"
	"github.com/spf13/cobra"
)

func newSessionCommand(withEnv envRunner) *cobra.Command {
	cmd := &cobra.Command{Use: "session", Short: "Create and drive count sessions"}

	var in app.CreateSessionInput
	var kind string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a draft count session seeded from current stock",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv("session create", func(ctx context.Context, cmd *cobra.Command, env *runtimeEnv, args []string) error {
			in.Name = args[0]
			in.Kind = domain.CountKind(kind)
			session, err := env.svc.CreateSession(ctx, in)
			if err != nil {
				return err
			}
			newOutputStyles(cmd.OutOrStdout()).done(
				cmd.OutOrStdout(),
				fmt.Sprintf("created %s session %q with %d item(s)", session.Kind, session.Name, session.TotalItems),
				session.ID,
			)
			return nil
		}),
	}
	create.Flags().StringVar(&in.LocationID, "location", "", "location id to count")
	create.Flags().StringVar(&kind, "kind", "", "full | partial (default from config)")
	create.Flags().StringSliceVar(&in.ProductIDs, "product", nil, "product id to include in a partial count (repeatable)")
	create.Flags().StringVar(&in.Description, "description", "", "session description")
	create.Flags().StringVar(&in.Notes, "notes", "", "session notes")
	create.Flags().StringVar(&in.CreatedBy, "actor", "", "who created the session")

	var status, locationID string
	list := &cobra.Command{
		Use:   "list",
		Short: "List count sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: withEnv("session list", func(ctx context.Context, cmd *cobra.Command, env *runtimeEnv, _ []string) error {
			filter := app.CountSessionFilter{LocationID: locationID}
			if strings.TrimSpace(status) != "" {
				parsed, err := domain.ParseSessionStatus(status)
				if err != nil {
					return fmt.Errorf("status %q: %w", status, err)
				}
				filter.Status = parsed
			}
			sessions, err := env.svc.ListSessions(ctx, filter)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(sessions))
			for _, session := range sessions {
				rows = append(rows, []string{
					session.ID,
					session.Name,
					string(session.Kind),
					string(session.Status),
					session.LocationID,
					strconv.Itoa(session.TotalItems),
					session.CreatedAt.Format(time.DateOnly),
				})
			}
			out := cmd.OutOrStdout()
			newOutputStyles(out).printTable(out, "no sessions", []string{"ID", "Name", "Kind", "Status", "Location", "Items", "Created"}, rows)
			return nil
		}),
	}
	list.Flags().StringVar(&status, "status", "", "filter by status")
	list.Flags().StringVar(&locationID, "location", "", "filter by location id")

	var width int
	var style string
	show := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Render the session variance report",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv("session show", func(ctx context.Context, cmd *cobra.Command, env *runtimeEnv, args []string) error {
			r, err := report.Load(ctx, env.svc, args[0], time.Now())
			if err != nil {
				return err
			}
			rendered, err := report.RenderTerminal(report.Markdown(r), width, style)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return nil
		}),
	}
	show.Flags().IntVar(&width, "width", 100, "word wrap width")
	show.Flags().StringVar(&style, "style", "dark", "glamour style (dark, light, notty, ascii)")

	transition := func(use, short string, fn func(*app.Service, context.Context, string) (domain.CountSession, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <session-id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: withEnv("session "+use, func(ctx context.Context, cmd *cobra.Command, env *runtimeEnv, args []string) error {
				session, err := fn(env.svc, ctx, args[0])
				if err != nil {
					return err
				}
				newOutputStyles(cmd.OutOrStdout()).done(cmd.OutOrStdout(), fmt.Sprintf("session %q is %s", session.Name, session.Status), session.ID)
				return nil
			}),
		}
	}

	remove := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a draft or cancelled session",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv("session delete", func(ctx context.Context, cmd *cobra.Command, env *runtimeEnv, args []string) error {
			if err := env.svc.DeleteSession(ctx, args[0]); err != nil {
				return err
			}
			newOutputStyles(cmd.OutOrStdout()).done(cmd.OutOrStdout(), "deleted session", args[0])
			return nil
		}),
	}

	cmd.AddCommand(
		create,
		list,
		show,
		transition("start", "Start counting a draft session", (*app.Service).StartSession),
		transition("reopen", "Reopen a completed session for recounts", (*app.Service).ReopenSession),
		transition("cancel", "Cancel a session", (*app.Service).CancelSession),
		remove,
	)
	return cmd
}

func newItemsCommand(withEnv envRunner) *cobra.Command {
	var statuses []string
	var variance string
	cmd := &cobra.Command{
		Use:   "items <session-id>",
		Short: "List the items of a count session",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv("items", func(ctx context.Context, cmd *cobra.Command, env *runtimeEnv, args []string) error {
			parsed, err := parseItemStatusFlags(statuses)
			if err != nil {
				return err
			}
			items, err := env.svc.ListItems(ctx, app.ListItemsFilter{
				SessionID: args[0],
				Statuses:  parsed,
				Variance:  app.VarianceFilter(strings.ToLower(strings.TrimSpace(variance))),
			})
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(items))
			for _, item := range items {
				rows = append(rows, []string{
					strconv.Itoa(item.Position + 1),
					item.ID,
					item.ProductID,
					strconv.Itoa(item.SystemQuantity),
					optionalInt(item.CountedQuantity),
					signedInt(item.Variance),
					string(item.Status),
				})
			}
			out := cmd.OutOrStdout()
			newOutputStyles(out).printTable(out, "no items", []string{"#", "Item", "Product", "System", "Counted", "Variance", "Status"}, rows)
			return nil
		}),
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "filter by item status (pending, counted, verified)")
	cmd.Flags().StringVar(&variance, "variance", "", "with | without")
	return cmd
}

var itemStatuses = []domain.ItemStatus{
	domain.ItemStatusPending,
	domain.ItemStatusCounted,
	domain.ItemStatusVerified,
}

func parseItemStatusFlags(raw []string) ([]domain.ItemStatus, error) {
	out := make([]domain.ItemStatus, 0, len(raw))
	for _, value := range raw {
		status := domain.ItemStatus(strings.ToLower(strings.TrimSpace(value)))
		if status == "" {
			continue
		}
		if !slices.Contains(itemStatuses, status) {
			return nil, fmt.Errorf("unsupported item status %q", value)
		}
		out = append(out, status)
	}
	return out, nil
}

func newCountCommand(withEnv envRunner) *cobra.Command {
	var actor, notes string
	cmd := &cobra.Command{
		Use:   "count <item-id> <quantity>",
		Short: "Record a physical count for one item",
		Args:  cobra.ExactArgs(2),
		RunE: withEnv("count", func(ctx context.Context, cmd *cobra.Command, env *runtimeEnv, args []string) error {
			quantity, err := app.ParseQuantity(args[1])
			if err != nil {
				return err
			}
			item, err := env.svc.RecordCount(ctx, app.RecordCountInput{
				ItemID:   args[0],
				Quantity: quantity,
				Actor:    actor,
				Notes:    notes,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			styles := newOutputStyles(out)
			styles.done(out, fmt.Sprintf("counted %d (system %d)", quantity, item.SystemQuantity), "variance "+signedInt(item.Variance))

			progress, err := env.svc.GetSessionProgress(ctx, item.SessionID)
			if err != nil {
				return err
			}
			if progress.Complete() {
				styles.done(out, "every item counted", item.SessionID)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&actor, "actor", "", "who counted")
	cmd.Flags().StringVar(&notes, "notes", "", "count notes")
	return cmd
}

func newReconcileCommand(withEnv envRunner) *cobra.Command {
	var policy, notes, actor string
	var itemIDs []string
	var quantity int
	cmd := &cobra.Command{
		Use:   "reconcile <session-id>",
		Short: "Resolve counted variances under one policy",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv("reconcile", func(ctx context.Context, cmd *cobra.Command, env *runtimeEnv, args []string) error {
			in := app.ReconcileInput{
				SessionID: args[0],
				ItemIDs:   itemIDs,
				Policy:    domain.ReconcilePolicy(policy),
				Notes:     notes,
				Actor:     actor,
			}
			if cmd.Flags().Changed("quantity") {
				in.ManualQuantity = &quantity
			}
			summary, err := env.svc.Reconcile(ctx, in)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			styles := newOutputStyles(out)
			styles.done(out, summary.Message(), string(summary.Policy))
			for _, failure := range summary.Failures {
				styles.warning(out, failure.Error())
			}
			if len(summary.Failures) > 0 {
				return fmt.Errorf("%d of %d item(s) failed to reconcile", len(summary.Failures), summary.Processed)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&policy, "policy", string(domain.PolicyAcceptCount), "accept_count | keep_system | manual_adjust")
	cmd.Flags().StringSliceVar(&itemIDs, "item", nil, "item id to reconcile (repeatable, default all)")
	cmd.Flags().IntVar(&quantity, "quantity", 0, "manual quantity for manual_adjust")
	cmd.Flags().StringVar(&notes, "notes", "", "reconciliation notes")
	cmd.Flags().StringVar(&actor, "actor", "", "who reconciled")
	return cmd
}
