package repository

import (
	"context"
	"time"

	"app/internal/domain/model"
)

type PaymentRepository interface {
	Create(ctx context.Context, p model.Payment) error
	FindByID(ctx context.Context, paymentID string) (model.Payment, error)
	// 行ロック付き取得。トランザクション内でのみ使う。
	FindByIDForUpdate(ctx context.Context, paymentID string) (model.Payment, error)
	// 非failedの決済を行ロック付きで探す（1注文に非failedは最大1件）
	FindLiveByOrderID(ctx context.Context, orderID string) (model.Payment, bool, error)
	Save(ctx context.Context, p model.Payment) error
	ListByUserID(ctx context.Context, userID string) ([]model.Payment, error)
	ListAll(ctx context.Context) ([]model.Payment, error)
	// processingのまま残った決済をfailedへ倒す。件数を返す。
	FailStuckProcessing(ctx context.Context, olderThan time.Time, reason string) (int64, error)
}
