package main

import (
	"context"
	"strconv"

	"github.com/evanschultz/tally/internal/app"
	"github.com/spf13/cobra"
)

func newLocationCommand(withEnv envRunner) *cobra.Command {
	cmd := &cobra.Command{Use: "location", Short: "Manage stock locations"}

	var primary bool
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a location",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv("location add", func(ctx context.Context, cmd *cobra.Command, env *runtimeEnv, args []string) error {
			location, err := env.svc.CreateLocation(ctx, args[0], primary)
			if err != nil {
				return err
			}
			newOutputStyles(cmd.OutOrStdout()).done(cmd.OutOrStdout(), "created location "+location.Name, location.ID)
			return nil
		}),
	}
	add.Flags().BoolVar(&primary, "primary", false, "mark as the primary location that drives master quantities")

	list := &cobra.Command{
		Use:   "list",
		Short: "List locations",
		Args:  cobra.NoArgs,
		RunE: withEnv("location list", func(ctx context.Context, cmd *cobra.Command, env *runtimeEnv, _ []string) error {
			locations, err := env.svc.ListLocations(ctx)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(locations))
			for _, location := range locations {
				primary := ""
				if location.Primary {
					primary = "yes"
				}
				rows = append(rows, []string{location.ID, location.Name, primary})
			}
			out := cmd.OutOrStdout()
			newOutputStyles(out).printTable(out, "no locations", []string{"ID", "Name", "Primary"}, rows)
			return nil
		}),
	}

	cmd.AddCommand(add, list)
	return cmd
}

func newProductCommand(withEnv envRunner) *cobra.Command {
	cmd := &cobra.Command{Use: "product", Short: "Manage the product catalog"}

	var minStock int
	add := &cobra.Command{
		Use:   "add <sku> <name>",
		Short: "Create a product",
		Args:  cobra.ExactArgs(2),
		RunE: withEnv("product add", func(ctx context.Context, cmd *cobra.Command, env *runtimeEnv, args []string) error {
			product, err := env.svc.CreateProduct(ctx, app.CreateProductInput{
				SKU:      args[0],
				Name:     args[1],
				MinStock: minStock,
			})
			if err != nil {
				return err
			}
			newOutputStyles(cmd.OutOrStdout()).done(cmd.OutOrStdout(), "created product "+product.SKU, product.ID)
			return nil
		}),
	}
	add.Flags().IntVar(&minStock, "min-stock", 0, "reorder threshold")

	var includeInactive bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List products",
		Args:  cobra.NoArgs,
		RunE: withEnv("product list", func(ctx context.Context, cmd *cobra.Command, env *runtimeEnv, _ []string) error {
			products, err := env.svc.ListProducts(ctx, includeInactive)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(products))
			for _, product := range products {
				active := "yes"
				if !product.Active {
					active = "no"
				}
				rows = append(rows, []string{
					product.ID,
					product.SKU,
					product.Name,
					strconv.Itoa(product.Quantity),
					strconv.Itoa(product.MinStock),
					active,
				})
			}
			out := cmd.OutOrStdout()
			newOutputStyles(out).printTable(out, "no products", []string{"ID", "SKU", "Name", "Qty", "Min", "Active"}, rows)
			return nil
		}),
	}
	list.Flags().BoolVar(&includeInactive, "include-inactive", false, "include deactivated products")

	setActive := func(use string, active bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <product-id>",
			Short: use + " a product",
			Args:  cobra.ExactArgs(1),
			RunE: withEnv("product "+use, func(ctx context.Context, cmd *cobra.Command, env *runtimeEnv, args []string) error {
				product, err := env.svc.SetProductActive(ctx, args[0], active)
				if err != nil {
					return err
				}
				newOutputStyles(cmd.OutOrStdout()).done(cmd.OutOrStdout(), use+"d product "+product.SKU, product.ID)
				return nil
			}),
		}
	}

	cmd.AddCommand(add, list, setActive("activate", true), setActive("deactivate", false))
	return cmd
}

func newStockCommand(withEnv envRunner) *cobra.Command {
	cmd := &cobra.Command{Use: "stock", Short: "Inspect and adjust stock levels"}

	var reason, actor string
	set := &cobra.Command{
		Use:   "set <product-id> <location-id> <quantity>",
		Short: "Set the on-hand quantity of a product at a location",
		Args:  cobra.ExactArgs(3),
		RunE: withEnv("stock set", func(ctx context.Context, cmd *cobra.Command, env *runtimeEnv, args []string) error {
			quantity, err := app.ParseQuantity(args[2])
			if err != nil {
				return err
			}
			adjustment, err := env.svc.SetStockQuantity(ctx, app.SetStockInput{
				ProductID:  args[0],
				LocationID: args[1],
				Quantity:   quantity,
				Reason:     reason,
				Actor:      actor,
			})
			if err != nil {
				return err
			}
			newOutputStyles(cmd.OutOrStdout()).done(
				cmd.OutOrStdout(),
				"stock set to "+strconv.Itoa(adjustment.NewQuantity),
				"(was "+strconv.Itoa(adjustment.PreviousQuantity)+")",
			)
			return nil
		}),
	}
	set.Flags().StringVar(&reason, "reason", "", "audit reason for the change")
	set.Flags().StringVar(&actor, "actor", "", "who made the change")

	list := &cobra.Command{
		Use:   "list <location-id>",
		Short: "List stock records at a location",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv("stock list", func(ctx context.Context, cmd *cobra.Command, env *runtimeEnv, args []string) error {
			records, err := env.svc.ListStockRecords(ctx, args[0])
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(records))
			for _, record := range records {
				rows = append(rows, []string{record.ProductID, strconv.Itoa(record.Quantity)})
			}
			out := cmd.OutOrStdout()
			newOutputStyles(out).printTable(out, "no stock records", []string{"Product", "Qty"}, rows)
			return nil
		}),
	}

	var productID, locationID string
	var limit int
	history := &cobra.Command{
		Use:   "history",
		Short: "Show the stock adjustment audit trail",
		Args:  cobra.NoArgs,
		RunE: withEnv("stock history", func(ctx context.Context, cmd *cobra.Command, env *runtimeEnv, _ []string) error {
			adjustments, err := env.svc.ListStockAdjustments(ctx, productID, locationID, limit)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(adjustments))
			for _, adj := range adjustments {
				delta := adj.Delta()
				rows = append(rows, []string{
					adj.CreatedAt.Format("2006-01-02 15:04"),
					adj.ProductID,
					adj.LocationID,
					strconv.Itoa(adj.PreviousQuantity),
					strconv.Itoa(adj.NewQuantity),
					signedInt(&delta),
					adj.Reason,
				})
			}
			out := cmd.OutOrStdout()
			newOutputStyles(out).printTable(out, "no adjustments", []string{"When", "Product", "Location", "From", "To", "Delta", "Reason"}, rows)
			return nil
		}),
	}
	history.Flags().StringVar(&productID, "product", "", "filter by product id")
	history.Flags().StringVar(&locationID, "location", "", "filter by location id")
	history.Flags().IntVar(&limit, "limit", 50, "maximum entries to show")

	cmd.AddCommand(set, list, history)
	return cmd
}
