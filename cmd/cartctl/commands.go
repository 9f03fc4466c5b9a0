package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/angelmondragon/storefront-cart/internal/cartstate"
	"github.com/angelmondragon/storefront-cart/internal/notifications"
)

type openFunc func(ctx context.Context, session string, sink notifications.Sink) (*cartstate.Provider, func() error, error)

type cliApp struct {
	session string
	jsonOut bool
	open    openFunc
}

func newRootCmd(app *cliApp) *cobra.Command {
	root := &cobra.Command{
		Use:   "cartctl",
		Short: "Inspect and edit stored carts",
		Long: `cartctl drives a cart session against the configured storage
(STOREFRONT_CART_STORAGE). Every command prints the resulting cart; mutating
commands also print the notification a shopper would see.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&app.session, "session", "s", "", "cart session id (required)")
	root.PersistentFlags().BoolVar(&app.jsonOut, "json", false, "print the cart as JSON")
	_ = root.MarkPersistentFlagRequired("session")

	root.AddCommand(
		newShowCmd(app),
		newAddCmd(app),
		newUpdateCmd(app),
		newRemoveCmd(app),
		newClearCmd(app),
		newRefreshCmd(app),
	)
	return root
}

func newShowCmd(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withProvider(cmd, func(ctx context.Context, p *cartstate.Provider) (cartstate.Outcome, error) {
				return cartstate.Outcome{Snapshot: p.Snapshot()}, nil
			})
		},
	}
}

func newAddCmd(app *cliApp) *cobra.Command {
	var (
		product  cart.Product
		quantity int
	)
	cmd := &cobra.Command{
		Use:   "add <productId>",
		Short: "Add a product to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			product.ProductID = args[0]
			return app.withProvider(cmd, func(ctx context.Context, p *cartstate.Provider) (cartstate.Outcome, error) {
				return p.AddToCart(ctx, product, quantity), nil
			})
		},
	}
	cmd.Flags().StringVar(&product.Title, "title", "", "product title")
	cmd.Flags().Float64Var(&product.Price, "price", 0, "unit price")
	cmd.Flags().StringVar(&product.Image, "image", "", "image reference")
	cmd.Flags().IntVar(&product.Stock, "stock", 0, "available stock")
	cmd.Flags().IntVarP(&quantity, "quantity", "q", 1, "units to add")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("price")
	_ = cmd.MarkFlagRequired("stock")
	return cmd
}

func newUpdateCmd(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "update <productId> <quantity>",
		Short: "Set the quantity of a cart line (0 removes it)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("quantity must be an integer: %w", err)
			}
			return app.withProvider(cmd, func(ctx context.Context, p *cartstate.Provider) (cartstate.Outcome, error) {
				return p.UpdateQuantity(ctx, args[0], quantity), nil
			})
		},
	}
}

func newRemoveCmd(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <productId>",
		Short: "Remove a cart line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withProvider(cmd, func(ctx context.Context, p *cartstate.Provider) (cartstate.Outcome, error) {
				return p.RemoveFromCart(ctx, args[0]), nil
			})
		},
	}
}

func newClearCmd(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withProvider(cmd, func(ctx context.Context, p *cartstate.Provider) (cartstate.Outcome, error) {
				return p.ClearCart(ctx), nil
			})
		},
	}
}

func newRefreshCmd(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Re-read the stored cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withProvider(cmd, func(ctx context.Context, p *cartstate.Provider) (cartstate.Outcome, error) {
				return p.RefreshCart(ctx), nil
			})
		},
	}
}

// withProvider opens the session, runs fn, prints the resulting cart and
// returns the command error so cobra exits non-zero on failure.
func (a *cliApp) withProvider(cmd *cobra.Command, fn func(context.Context, *cartstate.Provider) (cartstate.Outcome, error)) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	sink := notifications.NewWriterSink(cmd.ErrOrStderr())
	provider, closeFn, err := a.open(ctx, a.session, sink)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer func() { err = multierr.Append(err, closeFn()) }()
	}

	out, err := fn(ctx, provider)
	if err != nil {
		return err
	}
	if err := a.printCart(cmd.OutOrStdout(), out.Snapshot.Cart); err != nil {
		return err
	}
	return out.Err
}

func (a *cliApp) printCart(w io.Writer, c cart.Cart) error {
	if a.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tTITLE\tPRICE\tQTY\tSTOCK")
	for _, item := range c.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n",
			item.ProductID, item.Title, strconv.FormatFloat(item.Price, 'f', -1, 64), item.Quantity, item.Stock)
	}
	fmt.Fprintf(tw, "\t\t\t%d items\ttotal %s\n", c.ItemCount, strconv.FormatFloat(c.TotalAmount, 'f', -1, 64))
	return tw.Flush()
}
