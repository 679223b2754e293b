package usecase

import (
	"context"
	"log"
	"net/http"
	"time"

	"app/internal/domain/event"
	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/google/uuid"
)

// 決済手段ごとのプロバイダ。成功率込みのシミュレーションは注入で差し替える。
type ProviderResult struct {
	Success       bool
	TransactionID string
	Err           string
}

type PaymentProvider interface {
	Process(ctx context.Context, p model.Payment) ProviderResult
}

// SettlementUsecase はプロバイダ側のPaymentレコードを管理する。
// 注文側とはorder_idでしか繋がらず、注文の存在を前提にしない。
type SettlementUsecase struct {
	tx        repo.TransactionManager
	providers map[string]PaymentProvider
	pub       event.Publisher

	// settleの起動方法。テストでは同期実行に差し替える。
	runAsync func(fn func())
}

func NewSettlementUsecase(
	tx repo.TransactionManager,
	providers map[string]PaymentProvider,
	pub event.Publisher,
) *SettlementUsecase {
	return &SettlementUsecase{
		tx:        tx,
		providers: providers,
		pub:       pub,
		runAsync:  func(fn func()) { go fn() },
	}
}

type InitiatePaymentInput struct {
	OrderID  string
	Amount   int64
	Currency string
	Method   string
}

// Initiate は決済を作成し、非同期で決済処理を走らせる。
// 非failedの決済が既にある注文は409。
func (u *SettlementUsecase) Initiate(ctx context.Context, pr model.Principal, in InitiatePaymentInput) (model.Payment, error) {
	if pr.ID == "" {
		return model.Payment{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.OrderID == "" {
		return model.Payment{}, NewHTTPError(http.StatusBadRequest, "invalid order_id")
	}
	if in.Amount <= 0 {
		return model.Payment{}, NewHTTPError(http.StatusBadRequest, "invalid amount")
	}
	if !model.ValidPaymentMethod(in.Method) {
		return model.Payment{}, NewHTTPError(http.StatusBadRequest, "invalid method")
	}

	currency := in.Currency
	if currency == "" {
		currency = "VND"
	}

	var p model.Payment

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 行ロック付きチェック。全attemptがfailedのときだけ再試行できる。
		_, found, err := r.Payments().FindLiveByOrderID(ctx, in.OrderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if found {
			return NewHTTPError(http.StatusConflict, "payment already exists for order")
		}

		now := time.Now()
		p = model.Payment{
			ID:        uuid.NewString(),
			OrderID:   in.OrderID,
			UserID:    pr.ID,
			Amount:    in.Amount,
			Currency:  currency,
			Method:    in.Method,
			Status:    model.SettlementPending,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := r.Payments().Create(ctx, p); err != nil {
			return NewHTTPError(http.StatusConflict, "payment already exists for order")
		}
		return nil
	})

	if err != nil {
		return model.Payment{}, err
	}

	publishAll(ctx, u.pub, []event.Event{paymentEvent(p, event.TypePaymentInitiated)})

	// HTTP応答からは切り離して決済を進める。キャンセルは無い。
	payment := p
	u.runAsync(func() {
		u.settle(context.Background(), payment)
	})

	return p, nil
}

// settle は pending -> processing -> completed/failed。
// プロバイダの例外はfailedに変換し、processingのまま放置しない。
func (u *SettlementUsecase) settle(ctx context.Context, p model.Payment) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("settlement panic: payment=%s %v", p.ID, rec)
			u.finishSettle(ctx, p.ID, ProviderResult{Err: "internal settlement error"})
		}
	}()

	if err := u.updateStatus(ctx, p.ID, model.SettlementProcessing); err != nil {
		log.Printf("settlement: mark processing failed: payment=%s err=%v", p.ID, err)
		return
	}

	provider, ok := u.providers[p.Method]
	if !ok {
		u.finishSettle(ctx, p.ID, ProviderResult{Err: "unsupported payment method"})
		return
	}

	u.finishSettle(ctx, p.ID, provider.Process(ctx, p))
}

func (u *SettlementUsecase) updateStatus(ctx context.Context, paymentID string, status model.PaymentStatus) error {
	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Payments().FindByIDForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		p.Status = status
		return r.Payments().Save(ctx, p)
	})
}

func (u *SettlementUsecase) finishSettle(ctx context.Context, paymentID string, res ProviderResult) {
	var p model.Payment

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		p, err = r.Payments().FindByIDForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		// sweeper等で既に終端なら触らない
		if p.Status.Terminal() {
			return nil
		}

		now := time.Now()
		if res.Success {
			p.Status = model.SettlementCompleted
			p.TransactionID = res.TransactionID
			p.CompletedAt = &now
		} else {
			p.Status = model.SettlementFailed
			p.FailureReason = res.Err
		}
		return r.Payments().Save(ctx, p)
	})

	if err != nil {
		log.Printf("settlement: finish failed: payment=%s err=%v", paymentID, err)
		return
	}

	switch p.Status {
	case model.SettlementCompleted:
		publishAll(ctx, u.pub, []event.Event{paymentEvent(p, event.TypePaymentCompleted)})
	case model.SettlementFailed:
		publishAll(ctx, u.pub, []event.Event{paymentEvent(p, event.TypePaymentFailed)})
	}
}

// Refund は completed からのみ有効。
func (u *SettlementUsecase) Refund(ctx context.Context, pr model.Principal, paymentID string) (model.Payment, error) {
	if pr.ID == "" {
		return model.Payment{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if paymentID == "" {
		return model.Payment{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var p model.Payment

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		p, err = r.Payments().FindByIDForUpdate(ctx, paymentID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if !pr.IsAdmin() && p.UserID != pr.ID {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if p.Status != model.SettlementCompleted {
			return NewHTTPError(http.StatusBadRequest, "only completed payments can be refunded")
		}

		p.Status = model.SettlementRefunded
		return r.Payments().Save(ctx, p)
	})

	if err != nil {
		return model.Payment{}, err
	}

	publishAll(ctx, u.pub, []event.Event{paymentEvent(p, event.TypePaymentRefunded)})
	return p, nil
}

func (u *SettlementUsecase) Get(ctx context.Context, pr model.Principal, paymentID string) (model.Payment, error) {
	if pr.ID == "" {
		return model.Payment{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if paymentID == "" {
		return model.Payment{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var p model.Payment

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		p, err = r.Payments().FindByID(ctx, paymentID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !pr.IsAdmin() && p.UserID != pr.ID {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		return nil
	})

	if err != nil {
		return model.Payment{}, err
	}
	return p, nil
}

func (u *SettlementUsecase) List(ctx context.Context, pr model.Principal) ([]model.Payment, error) {
	if pr.ID == "" {
		return []model.Payment{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var items []model.Payment

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		if pr.IsAdmin() {
			items, err = r.Payments().ListAll(ctx)
		} else {
			items, err = r.Payments().ListByUserID(ctx, pr.ID)
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return nil
	})

	if err != nil {
		return []model.Payment{}, err
	}
	return items, nil
}

// FailStuck はprocessingのまま残った決済をfailedへ倒す。
// クラッシュで孤児になったprocessingの回収用。cmd側でticker起動する。
func (u *SettlementUsecase) FailStuck(ctx context.Context, timeout time.Duration) (int64, error) {
	var n int64

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		n, err = r.Payments().FailStuckProcessing(ctx, time.Now().Add(-timeout), "settlement timed out")
		return err
	})

	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("settlement: forced %d stuck payments to failed", n)
	}
	return n, nil
}

func paymentEvent(p model.Payment, name string) event.Event {
	return event.Event{
		Topic: event.CustomerTopic(p.UserID),
		Name:  name,
		Payload: event.PaymentUpdate{
			PaymentID:     p.ID,
			OrderID:       p.OrderID,
			Status:        string(p.Status),
			Amount:        p.Amount,
			Method:        p.Method,
			TransactionID: p.TransactionID,
			FailureReason: p.FailureReason,
			Timestamp:     time.Now(),
		},
	}
}
