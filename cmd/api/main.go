package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/infra/commerce"
	"storefront/internal/infra/logger"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/notify"
	"storefront/internal/server"
	"storefront/internal/usecase"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

func main() {
	// .env は無くてもよい（本番は環境変数）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.NewForEnvironment(cfg.IsProduction(), cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	//KVストア
	kv, closeKV, err := infraRepo.OpenKVStore(cfg)
	if err != nil {
		log.Fatal("kv store open failed", zap.String("driver", cfg.KVDriver), zap.Error(err))
	}
	defer func() { _ = closeKV() }()

	//コマースAPI
	api := commerce.NewClient(cfg.CommerceAPIURL, cfg.CommerceAPITimeout)

	//usecaseに渡す部品
	idGen := &uuidGenerator{}
	clock := &realClock{}
	channel := notify.NewChannel(log.Named("notify"))
	defer channel.Close()

	storage := usecase.NewCartStorage(kv, clock)
	sessions := usecase.NewSessionRegistry(storage, clock, cfg.SessionIdleTTL, log.Named("session"))
	sessions.Start()
	defer sessions.Close()

	lookup := usecase.NewProductLookup(api.Products(), log.Named("product"))
	gateway := usecase.NewMutationGateway(api.Carts(), lookup, storage, channel, idGen, log.Named("cart"))
	gateway.SerializeLineMutations(cfg.SerializeLineMutations)
	selections := usecase.NewSelectionTracker(storage, gateway, log.Named("selection"))
	reconciler := usecase.NewReconciliationEngine(api.Carts(), storage, channel, log.Named("reconcile"))

	//Usecase生成
	cartUC := usecase.NewCartUsecase(sessions, gateway, selections, reconciler, api.Carts(), storage, log.Named("cart"))
	orderUC := usecase.NewOrderUsecase(sessions, selections, api.Orders(), idGen, log.Named("order"))

	//Handler生成
	e := server.New(cfg, log, server.Handlers{
		Cart:      handler.NewCartHandler(cartUC),
		Selection: handler.NewSelectionHandler(cartUC),
		Order:     handler.NewOrderHandler(orderUC, cartUC),
		Session:   handler.NewSessionHandler(cartUC, cfg.JWTSecret),
		Badge:     handler.NewBadgeHandler(cartUC, channel, log.Named("badge")),
	})

	//Server起動
	addr := cfg.Port
	if addr == "" || addr[0] != ':' {
		addr = ":" + addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("storefront api listening", zap.String("addr", addr), zap.String("kv_driver", cfg.KVDriver))
	if err := server.Start(ctx, e, addr); err != nil {
		log.Error("server stopped", zap.Error(err))
	}
}
