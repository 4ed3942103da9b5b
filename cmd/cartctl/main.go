// Command cartctl drives a cart from the terminal. The active cart id is kept
// in a local state file, so consecutive invocations work on the same cart.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/rs/zerolog"

	"storefront/internal/bootstrap"
	"storefront/internal/cartid"
	"storefront/internal/config"
	"storefront/internal/docstore"
	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/logging"
	"storefront/internal/service/cart"
	ordersvc "storefront/internal/service/order"
)

const usage = `usage: cartctl [-state file] [-user id] <command> [args]

commands:
  show                       print the active cart
  set <productId> <count>    set a product's quantity, 0 removes it
  add <productId> <delta>    change a product's quantity
  empty                      remove every item
  order -name .. -address .. -zip .. -city .. -state ..
                             place an order for the active cart (needs -user)
  login <userId>             bind the cart to a user
  logout                     leave a user's cart
  watch                      print the cart on every change until interrupted
`

func main() {
	os.Exit(cartctl())
}

// cartctl runs one command and returns the process exit code. Deferred
// cleanups run before main exits.
func cartctl() int {
	cfg, err := config.FromEnv()
	logger := logging.New(os.Stderr, cfg.LogLevel, "console").With().Str("component", "cartctl").Logger()
	if err != nil {
		logger.Error().Err(err).Msg("load config")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := bootstrap.OpenStore(ctx, cfg, bootstrap.StoreOptions{}, logger)
	if err != nil {
		logger.Error().Err(err).Msg("open store")
		return 1
	}
	defer store.Close()

	bus, err := bootstrap.OpenBus(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("open event bus")
		return 1
	}
	defer bus.Close()

	productRepo, closeCache := bootstrap.Products(cfg, store, logger)
	defer closeCache()

	a := &app{
		store:     store,
		bus:       bus,
		products:  productRepo,
		stateFile: cfg.CartctlStateFile,
		out:       os.Stdout,
		logger:    logger,
	}
	return exitCode(a.run(ctx, os.Args[1:]), os.Stderr)
}

// exitCode reports err on w and maps it to an exit status.
func exitCode(err error, w io.Writer) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 2
	}
	fmt.Fprintln(w, "cartctl:", err)
	return 1
}

type productLookup interface {
	Get(ctx context.Context, id string) (*domain.Product, error)
}

type app struct {
	store     docstore.Ops
	bus       events.Bus
	products  productLookup
	stateFile string
	out       io.Writer
	logger    zerolog.Logger
}

func (a *app) run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("cartctl", flag.ContinueOnError)
	fs.SetOutput(a.out)
	fs.Usage = func() { fmt.Fprint(a.out, usage) }
	stateFile := fs.String("state", a.stateFile, "file holding the active cart id")
	userID := fs.String("user", "", "signed-in user id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return flag.ErrHelp
	}

	engine := cart.NewEngine(a.store, a.bus, nil, a.logger)
	resolver := cartid.NewResolver(cartid.NewFileStorage(*stateFile))
	session, err := cart.Open(ctx, engine, cart.NewProjector(a.store, a.products), resolver, a.bus, a.logger)
	if err != nil {
		return err
	}
	defer session.Close()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "show":
		return a.print(session.Snapshot())
	case "set", "add":
		if len(rest) != 2 {
			return fmt.Errorf("%s needs <productId> <n>", cmd)
		}
		n, err := strconv.Atoi(rest[1])
		if err != nil {
			return fmt.Errorf("invalid number %q", rest[1])
		}
		if err := a.bind(ctx, session, *userID); err != nil {
			return err
		}
		if cmd == "set" {
			err = session.SetQuantity(ctx, rest[0], n)
		} else {
			err = session.Add(ctx, rest[0], n)
		}
		if err != nil {
			return err
		}
		return a.print(session.Snapshot())
	case "empty":
		return session.Empty(ctx)
	case "order":
		return a.order(ctx, session, *userID, rest)
	case "login":
		if len(rest) != 1 {
			return errors.New("login needs <userId>")
		}
		if err := session.BindUser(ctx, rest[0]); err != nil {
			return err
		}
		return a.print(session.Snapshot())
	case "logout":
		if err := session.UnbindUser(ctx); err != nil {
			return err
		}
		return a.print(session.Snapshot())
	case "watch":
		return a.watch(ctx, session)
	}
	fs.Usage()
	return fmt.Errorf("unknown command %q", cmd)
}

// bind stamps userID on carts the command creates.
func (a *app) bind(ctx context.Context, session *cart.Session, userID string) error {
	if userID == "" {
		return nil
	}
	return session.BindUser(ctx, userID)
}

func (a *app) order(ctx context.Context, session *cart.Session, userID string, args []string) error {
	fs := flag.NewFlagSet("order", flag.ContinueOnError)
	fs.SetOutput(a.out)
	var s domain.Shipping
	fs.StringVar(&s.Name, "name", "", "recipient name")
	fs.StringVar(&s.Address, "address", "", "street address")
	fs.StringVar(&s.ZipCode, "zip", "", "zip code")
	fs.StringVar(&s.City, "city", "", "city")
	fs.StringVar(&s.State, "state", "", "state")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.bind(ctx, session, userID); err != nil {
		return err
	}

	orders := ordersvc.New(a.store, a.bus, nil, a.logger)
	if err := session.Refresh(ctx); err != nil {
		return err
	}
	o, err := orders.PlaceOrder(ctx, userID, session.CartID(), s, session.Snapshot())
	if err != nil {
		return err
	}
	if err := session.Rotate(ctx); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "order %s placed: %d products, total %.2f\n", o.ID, len(o.Products), o.TotalPrice)
	return nil
}

func (a *app) watch(ctx context.Context, session *cart.Session) error {
	updates, cancel := session.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-updates:
			if !ok {
				return nil
			}
			if err := a.print(c); err != nil {
				return err
			}
		}
	}
}

func (a *app) print(c domain.ResolvedCart) error {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "cart %s\n", c.CartID)
	if c.IsEmpty() {
		fmt.Fprintln(tw, "(empty)")
		return tw.Flush()
	}
	fmt.Fprintln(tw, "PRODUCT\tNAME\tPRICE\tCOUNT\tTOTAL")
	for _, it := range c.Items {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%d\t%.2f\n", it.ProductID, it.Name, it.Price, it.Count, it.TotalPrice)
	}
	fmt.Fprintf(tw, "\t\t\t%d\t%.2f\n", c.TotalQuantity, c.TotalPrice)
	return tw.Flush()
}
