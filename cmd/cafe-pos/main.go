package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cafe-pos/internal/api"
	"cafe-pos/internal/cart"
	"cafe-pos/internal/catalog"
	"cafe-pos/internal/checkout"
	"cafe-pos/internal/config"
	"cafe-pos/internal/realtime/display"
	"cafe-pos/internal/realtime/notify"
	"cafe-pos/internal/realtime/ordertrack"
	"cafe-pos/internal/realtime/store"
	"cafe-pos/internal/realtime/transport"
	"cafe-pos/internal/stock"
	"cafe-pos/pkg/logger"

	"golang.org/x/sync/errgroup"
)

func main() {
	mylog := logger.New("cafe-pos")

	if err := run(context.Background(), mylog, os.Args[1:]); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			mylog.Action("startup_failed").Error("Service exited with error", err)
			os.Exit(1)
		}
	}
}

func run(ctx context.Context, mylog logger.Logger, args []string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fs := flag.NewFlagSet("cafe-pos", flag.ContinueOnError)
	configPath := fs.String("config-path", "", "path to config yaml; env/.env is used when empty")
	port := fs.Int("port", 0, "override the HTTP port")
	station := fs.String("station", "staff-pos", "station id of this process")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var cfg *config.Config
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	} else {
		cfg = config.LoadDotEnv()
	}
	if *port != 0 {
		cfg.HTTP.Port = *port
	}

	// Durable mirror backend.
	var mirror store.Store
	var pgStore *store.PGStore
	switch cfg.Store.Backend {
	case "postgres":
		pg, err := store.NewPGStore(ctx, cfg.Store, mylog)
		if err != nil {
			return fmt.Errorf("postgres store: %w", err)
		}
		mirror = pg
		pgStore = pg
	default:
		fileStore, err := store.NewFileStore(cfg.Store.Dir, mylog)
		if err != nil {
			return fmt.Errorf("file store: %w", err)
		}
		mirror = fileStore
	}
	defer mirror.Close()

	// Broadcast transport: in-process bus, bridged over AMQP when a broker
	// is configured. Broker failure falls back to the local bus.
	var tr transport.Transport = transport.NewBus(mylog)
	if cfg.Broker.Enabled {
		amqpTr, err := transport.ConnectAMQP(cfg.Broker, mylog)
		if err != nil {
			mylog.Action("amqp_unavailable").Warn(err.Error())
		} else {
			tr = amqpTr
			defer amqpTr.Close()
		}
	}

	notifier := notify.New(mylog)

	displaySvc := display.NewService(*station, tr, mirror, notifier,
		cfg.Sync.DisplayPollInterval, mylog)
	orderSvc := ordertrack.NewService(*station, tr, mirror, notifier,
		cfg.Sync.OrderPollInterval, cfg.Sync.CompletedRetention, mylog)
	defer displaySvc.Close()
	defer orderSvc.Close()

	cat, err := loadCatalog(ctx, pgStore, mylog)
	if err != nil {
		return err
	}

	tracker := stock.NewTracker(*station, notifier, seedStock(), mylog)
	producer := checkout.NewProducer(displaySvc, orderSvc, ordertrack.CreatorStaff, "Register", mylog)
	posCart := cart.New(producer)
	checkoutSvc := checkout.NewService(producer, posCart, tracker, mylog)

	server := api.NewServer(cfg.HTTP.Port, cat, checkoutSvc, displaySvc, orderSvc, mylog)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		return server.Stop(context.Background())
	})

	return g.Wait()
}

func loadCatalog(ctx context.Context, pgStore *store.PGStore, mylog logger.Logger) (*catalog.Catalog, error) {
	if pgStore == nil {
		return catalog.New(seedMenu()), nil
	}

	repo, err := catalog.NewRepo(ctx, pgStore.Pool(), mylog)
	if err != nil {
		return nil, fmt.Errorf("catalog repo: %w", err)
	}
	products, err := repo.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load menu: %w", err)
	}
	if len(products) == 0 {
		products = seedMenu()
		for _, p := range products {
			if err := repo.Save(ctx, p); err != nil {
				mylog.Action("menu_seed_failed").With("product_id", p.ID).Warn(err.Error())
			}
		}
	}
	return catalog.New(products), nil
}

func seedMenu() []catalog.Product {
	sizes := []cart.SizeOption{
		{Name: "M", Extra: 0},
		{Name: "L", Extra: 5000},
	}
	milkAddOns := []cart.AddOn{
		{Name: "Extra shot", Extra: 10000},
		{Name: "Oat milk", Extra: 8000},
	}
	return []catalog.Product{
		{ID: "ca-phe-den", Name: "Cà phê đen", Category: "coffee", BasePrice: 25000, Sizes: sizes, AddOns: milkAddOns, Available: true},
		{ID: "ca-phe-sua", Name: "Cà phê sữa", Category: "coffee", BasePrice: 30000, Sizes: sizes, AddOns: milkAddOns, Available: true},
		{ID: "bac-xiu", Name: "Bạc xỉu", Category: "coffee", BasePrice: 32000, Sizes: sizes, Available: true},
		{ID: "tra-dao", Name: "Trà đào", Category: "tea", BasePrice: 35000, Sizes: sizes, Available: true},
		{ID: "tra-sen", Name: "Trà sen", Category: "tea", BasePrice: 35000, Sizes: sizes, Available: true},
		{ID: "banh-mi", Name: "Bánh mì", Category: "food", BasePrice: 25000, Available: true},
		{ID: "banh-flan", Name: "Bánh flan", Category: "food", BasePrice: 20000, Available: true},
	}
}

func seedStock() []stock.Item {
	return []stock.Item{
		{ID: "ca-phe-den", Name: "Cà phê đen", Kind: stock.KindProduct, Quantity: 100, Threshold: 10},
		{ID: "ca-phe-sua", Name: "Cà phê sữa", Kind: stock.KindProduct, Quantity: 100, Threshold: 10},
		{ID: "bac-xiu", Name: "Bạc xỉu", Kind: stock.KindProduct, Quantity: 80, Threshold: 10},
		{ID: "tra-dao", Name: "Trà đào", Kind: stock.KindProduct, Quantity: 80, Threshold: 10},
		{ID: "tra-sen", Name: "Trà sen", Kind: stock.KindProduct, Quantity: 80, Threshold: 10},
		{ID: "banh-mi", Name: "Bánh mì", Kind: stock.KindProduct, Quantity: 40, Threshold: 5},
		{ID: "banh-flan", Name: "Bánh flan", Kind: stock.KindProduct, Quantity: 40, Threshold: 5},
		{ID: "robusta-beans", Name: "Robusta beans", Kind: stock.KindIngredient, Unit: "g", Quantity: 5000, Threshold: 500},
		{ID: "condensed-milk", Name: "Condensed milk", Kind: stock.KindIngredient, Unit: "ml", Quantity: 3000, Threshold: 400},
	}
}
