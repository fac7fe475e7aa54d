package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/and161185/coursemart/internal/model"
	"github.com/spf13/cobra"
)

type opener func(cmd *cobra.Command) (*app, error)

type staleOrders interface {
	ListStale(ctx context.Context, before time.Time) ([]model.Order, error)
	Expire(ctx context.Context, order model.Order) (bool, error)
}

type ratingRecomputer interface {
	RecomputeRating(ctx context.Context, id int64) (float64, int, error)
	RecomputeAll(ctx context.Context) (int, error)
}

type statsSource interface {
	Stats(ctx context.Context) (model.PlatformStats, error)
}

type roleSetter interface {
	SetUserRole(ctx context.Context, email string, role model.Role) (model.User, error)
}

func ordersCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Inspect and settle payment orders",
	}

	var olderThan time.Duration
	expire := &cobra.Command{
		Use:   "expire",
		Short: "Fail PENDING orders older than the given age unless the provider reports them paid",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if olderThan <= 0 {
				olderThan = a.cfg.OrderTTL
			}
			_, err = expireStale(cmd.Context(), cmd.OutOrStdout(), a.ledger, time.Now().Add(-olderThan))
			return err
		},
	}
	expire.Flags().DurationVar(&olderThan, "older-than", 0, "Order age, defaults to ORDER_TTL")

	cmd.AddCommand(expire)
	return cmd
}

// expireStale walks every stale order once. Per-order failures are reported
// and counted, they do not stop the walk.
func expireStale(ctx context.Context, out io.Writer, orders staleOrders, before time.Time) (int, error) {
	stale, err := orders.ListStale(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("list stale orders: %w", err)
	}

	expired, failed := 0, 0
	for _, order := range stale {
		ok, err := orders.Expire(ctx, order)
		switch {
		case err != nil:
			failed++
			fmt.Fprintf(out, "%s: %v\n", order.ProviderOrderRef, err)
		case ok:
			expired++
			fmt.Fprintf(out, "%s: expired\n", order.ProviderOrderRef)
		default:
			fmt.Fprintf(out, "%s: kept\n", order.ProviderOrderRef)
		}
	}

	fmt.Fprintf(out, "stale: %d, expired: %d, errors: %d\n", len(stale), expired, failed)
	if failed > 0 {
		return expired, fmt.Errorf("%d orders could not be expired", failed)
	}
	return expired, nil
}

func ratingsCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratings",
		Short: "Course rating aggregates",
	}

	recompute := &cobra.Command{
		Use:   "recompute [course-id]",
		Short: "Recompute rating aggregates for one course or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var courseID int64
			if len(args) == 1 {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil || id <= 0 {
					return fmt.Errorf("invalid course id %q", args[0])
				}
				courseID = id
			}

			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			return recomputeRatings(cmd.Context(), cmd.OutOrStdout(), a.catalog, courseID)
		},
	}

	cmd.AddCommand(recompute)
	return cmd
}

// recomputeRatings refreshes courseID, or every course when it is zero.
func recomputeRatings(ctx context.Context, out io.Writer, r ratingRecomputer, courseID int64) error {
	if courseID == 0 {
		n, err := r.RecomputeAll(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "recomputed %d courses\n", n)
		return nil
	}

	avg, count, err := r.RecomputeRating(ctx, courseID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "course %d: rating %.2f from %d reviews\n", courseID, avg, count)
	return nil
}

func statsCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print platform statistics as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			return printStats(cmd.Context(), cmd.OutOrStdout(), a.catalog)
		},
	}
}

func printStats(ctx context.Context, out io.Writer, s statsSource) error {
	stats, err := s.Stats(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}

func usersCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "User administration",
	}

	var role string
	promote := &cobra.Command{
		Use:   "promote <email>",
		Short: "Change a user's role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			return promoteUser(cmd.Context(), cmd.OutOrStdout(), a.store, args[0], model.Role(role))
		},
	}
	promote.Flags().StringVar(&role, "role", string(model.RoleInstructor), "student, instructor or admin")

	cmd.AddCommand(promote)
	return cmd
}

var errUnknownRole = errors.New("unknown role")

func promoteUser(ctx context.Context, out io.Writer, users roleSetter, email string, role model.Role) error {
	switch role {
	case model.RoleStudent, model.RoleInstructor, model.RoleAdmin:
	default:
		return fmt.Errorf("%w %q", errUnknownRole, role)
	}

	user, err := users.SetUserRole(ctx, email, role)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "user %d (%s) is now %s\n", user.ID, user.Email, user.Role)
	return nil
}
