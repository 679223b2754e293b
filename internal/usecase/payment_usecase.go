package usecase

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"app/internal/domain/event"
	"app/internal/domain/model"
	repo "app/internal/repository"
)

// 外部決済ゲートウェイのintent作成。実装はinfra側のスタンドイン。
type PaymentIntent struct {
	PaymentID   string `json:"payment_id"`
	Provider    string `json:"provider"`
	CheckoutURL string `json:"checkout_url"`
	QRData      string `json:"qr_data"`
}

type PaymentIntentCreator interface {
	CreateIntent(ctx context.Context, orderID string, amount int64, method string) (PaymentIntent, error)
}

type PaymentUsecase struct {
	tx            repo.TransactionManager
	intents       PaymentIntentCreator
	pub           event.Publisher
	webhookSecret string
}

func NewPaymentUsecase(
	tx repo.TransactionManager,
	intents PaymentIntentCreator,
	pub event.Publisher,
	webhookSecret string,
) *PaymentUsecase {
	return &PaymentUsecase{tx: tx, intents: intents, pub: pub, webhookSecret: webhookSecret}
}

// CreateIntent は注文の支払いintentを作り、参照をOrder.meta.paymentへ保存する。
// 注文status自体はここでは変えない。
func (u *PaymentUsecase) CreateIntent(ctx context.Context, pr model.Principal, orderID string) (PaymentIntent, error) {
	if pr.ID == "" {
		return PaymentIntent{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID == "" {
		return PaymentIntent{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var intent PaymentIntent

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if !authorize(pr, ActionPay, o) {
			return NewHTTPError(http.StatusForbidden, "forbidden")
		}

		intent, err = u.intents.CreateIntent(ctx, o.ID, o.TotalAmount, o.PaymentMethod)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "payment provider error")
		}

		now := time.Now()
		o.Payment = model.PaymentRef{
			PaymentID:     intent.PaymentID,
			Provider:      intent.Provider,
			LastStatus:    "Pending",
			CheckoutURL:   intent.CheckoutURL,
			QRData:        intent.QRData,
			LastUpdatedAt: &now,
		}

		if err := r.Orders().Save(ctx, o); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		return nil
	})

	if err != nil {
		return PaymentIntent{}, err
	}
	return intent, nil
}

// プロバイダからのwebhook本体。signatureはHMAC検証用でHMAC対象外。
type WebhookInput struct {
	OrderID   string `json:"orderId"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

type WebhookResult struct {
	OrderID  string `json:"order_id"`
	Status   string `json:"status"`
	Replayed bool   `json:"replayed"`
}

// SignWebhook は signature を除いた本体のHMAC-SHA256（hex）。
// フィールド順は orderId, status, amount, paymentId 固定。プロバイダ互換。
func SignWebhook(secret string, in WebhookInput) string {
	body := struct {
		OrderID   string `json:"orderId"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"`
		PaymentID string `json:"paymentId"`
	}{in.OrderID, in.Status, in.Amount, in.PaymentID}

	data, _ := json.Marshal(body)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

// HandleWebhook は決済コールバックを注文状態へ反映する。
//  1. secret未設定・signature欠落・不一致は401
//  2. 同じstatusの再送は成功を返して何も変えない（冪等ゲート）
//  3. Successは遷移表に従ってprocessingへ、不可なら409
//  4. Failedは遷移表を無視して必ずcancelledへ（submittedで固まらせない）
//
// 冪等チェックと反映は注文行のFOR UPDATEロック内で行うので、
// 同一webhookの同時配送が二重適用されることはない。
func (u *PaymentUsecase) HandleWebhook(ctx context.Context, in WebhookInput) (WebhookResult, error) {
	if u.webhookSecret == "" {
		return WebhookResult{}, NewHTTPError(http.StatusUnauthorized, "webhook secret not configured")
	}
	if in.Signature == "" {
		return WebhookResult{}, NewHTTPError(http.StatusUnauthorized, "missing signature")
	}

	expected := SignWebhook(u.webhookSecret, in)
	if !hmac.Equal([]byte(expected), []byte(in.Signature)) {
		return WebhookResult{}, NewHTTPError(http.StatusUnauthorized, "invalid signature")
	}

	if in.Status != "Success" && in.Status != "Failed" {
		return WebhookResult{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}
	if in.OrderID == "" {
		return WebhookResult{}, NewHTTPError(http.StatusBadRequest, "invalid orderId")
	}

	var result WebhookResult
	var events []event.Event

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, in.OrderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		// 冪等ゲート：同じstatusの再送は適用済み
		if o.Payment.LastStatus == in.Status {
			result = WebhookResult{OrderID: o.ID, Status: string(o.Status), Replayed: true}
			return nil
		}

		now := time.Now()

		switch in.Status {
		case "Success":
			if !model.CanTransition(o.Status, model.OrderStatusProcessing) {
				return NewHTTPError(http.StatusConflict, "invalid transition")
			}
			o.Status = model.OrderStatusProcessing
			o.PaymentStatus = model.PaymentStatusPaid
		case "Failed":
			// 失敗は常に勝つ。注文をsubmittedのまま残さない。
			o.Status = model.OrderStatusCancelled
			o.PaymentStatus = model.PaymentStatusFailed
			o.Cancellation = model.Cancellation{
				Reason: "payment failed",
				Actor:  "payment_provider",
				At:     &now,
			}
		}

		// 次回の冪等チェックのためlast_statusは反映と同時に保存する
		o.Payment.LastStatus = in.Status
		o.Payment.PaymentID = in.PaymentID
		o.Payment.LastUpdatedAt = &now

		if err := r.Orders().Save(ctx, o); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		result = WebhookResult{OrderID: o.ID, Status: string(o.Status)}
		events = orderEvents(o)
		return nil
	})

	if err != nil {
		return WebhookResult{}, err
	}

	publishAll(ctx, u.pub, events)
	return result, nil
}
