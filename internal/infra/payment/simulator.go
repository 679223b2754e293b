package payment

import (
	"context"
	"fmt"
	"math/rand"

	"app/internal/domain/model"
	"app/internal/usecase"

	"github.com/google/uuid"
)

// 実ゲートウェイのスタンドイン。intentを即時発行する。
type SimulatedIntentCreator struct {
	checkoutBase string
}

func NewSimulatedIntentCreator(checkoutBase string) *SimulatedIntentCreator {
	return &SimulatedIntentCreator{checkoutBase: checkoutBase}
}

func (c *SimulatedIntentCreator) CreateIntent(ctx context.Context, orderID string, amount int64, method string) (usecase.PaymentIntent, error) {
	id := uuid.NewString()
	return usecase.PaymentIntent{
		PaymentID:   id,
		Provider:    method,
		CheckoutURL: fmt.Sprintf("%s/checkout/%s", c.checkoutBase, id),
		QRData:      fmt.Sprintf("%s|%s|%d", method, orderID, amount),
	}, nil
}

// 固定成功率のプロバイダ。乱数源は注入で差し替えられる。
type SimulatedProvider struct {
	successRate float64
	rnd         func() float64
}

func NewSimulatedProvider(successRate float64, rnd func() float64) *SimulatedProvider {
	if rnd == nil {
		rnd = rand.Float64
	}
	return &SimulatedProvider{successRate: successRate, rnd: rnd}
}

func (p *SimulatedProvider) Process(ctx context.Context, pay model.Payment) usecase.ProviderResult {
	if p.rnd() < p.successRate {
		return usecase.ProviderResult{
			Success:       true,
			TransactionID: "txn_" + uuid.NewString(),
		}
	}
	return usecase.ProviderResult{Err: "declined by provider"}
}

// 実際の手段ごとの概算decline率を載せたデフォルト構成
func DefaultProviders() map[string]usecase.PaymentProvider {
	return map[string]usecase.PaymentProvider{
		model.PaymentMethodCOD:   NewSimulatedProvider(1.00, nil),
		model.PaymentMethodVNPay: NewSimulatedProvider(0.95, nil),
		model.PaymentMethodMomo:  NewSimulatedProvider(0.92, nil),
		model.PaymentMethodCard:  NewSimulatedProvider(0.85, nil),
	}
}
