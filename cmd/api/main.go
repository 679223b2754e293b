package main

import (
	"context"
	"log"
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/handler"
	"app/internal/infra/catalog"
	"app/internal/infra/db"
	"app/internal/infra/eventbus"
	payinfra "app/internal/infra/payment"
	infraRepo "app/internal/infra/repository"
	"app/internal/server"
	"app/internal/usecase"

	"github.com/joho/godotenv"
)

func main() {
	//.envは無ければ環境変数だけで動く
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if err := gormDB.AutoMigrate(
		&model.Cart{},
		&model.CartItem{},
		&model.Order{},
		&model.OrderItem{},
		&model.Payment{},
	); err != nil {
		log.Fatal(err)
	}

	//Repository（GORM実装）生成
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	cartItemRepo := infraRepo.NewCartItemGormRepository(gormDB)
	tx := infraRepo.NewTxManagerGorm(gormDB)

	//外部カタログとイベント配信
	catalogGW := catalog.NewClient(cfg.CatalogBaseURL)
	pub := eventbus.NewKafkaPublisher(cfg.KafkaBrokers)
	defer pub.Close()

	//決済スタンドイン
	intents := payinfra.NewSimulatedIntentCreator(cfg.CheckoutBase)
	providers := payinfra.DefaultProviders()

	//Usecase生成
	cartTTL := time.Duration(cfg.CartTTLMinutes) * time.Minute
	cartUC := usecase.NewCartUsecase(cartRepo, cartItemRepo, catalogGW, cartTTL)
	orderUC := usecase.NewOrderUsecase(tx, catalogGW, pub, cfg.DeliveryFee)
	paymentUC := usecase.NewPaymentUsecase(tx, intents, pub, cfg.PaymentWebhookSecret)
	settlementUC := usecase.NewSettlementUsecase(tx, providers, pub)

	//processingで固まった決済の回収
	settleTimeout := time.Duration(cfg.SettleTimeoutSec) * time.Second
	go func() {
		ticker := time.NewTicker(settleTimeout)
		defer ticker.Stop()
		for range ticker.C {
			if _, err := settlementUC.FailStuck(context.Background(), settleTimeout); err != nil {
				log.Printf("settlement sweeper: %v", err)
			}
		}
	}()

	//Handler生成
	cartH := handler.NewCartHandler(cartUC)
	orderH := handler.NewOrderHandler(orderUC, paymentUC)
	paymentH := handler.NewPaymentHandler(settlementUC)

	//Server起動
	e := server.New(cfg, cartH, orderH, paymentH)

	addr := cfg.Port
	if addr[0] != ':' {
		addr = ":" + addr
	}

	if err := server.Start(e, addr); err != nil {
		log.Fatal(err)
	}
}
