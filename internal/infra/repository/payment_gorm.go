package repository

import (
	"context"
	"errors"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentGormRepository struct {
	db *gorm.DB
}

func NewPaymentGormRepository(db *gorm.DB) *PaymentGormRepository {
	return &PaymentGormRepository{db: db}
}

func (r *PaymentGormRepository) Create(ctx context.Context, p model.Payment) error {
	return r.db.WithContext(ctx).Create(&p).Error
}

func (r *PaymentGormRepository) FindByID(ctx context.Context, paymentID string) (model.Payment, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).Where("id = ?", paymentID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Payment{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Payment{}, err
	}
	return p, nil
}

func (r *PaymentGormRepository) FindByIDForUpdate(ctx context.Context, paymentID string) (model.Payment, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", paymentID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Payment{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Payment{}, err
	}
	return p, nil
}

// 注文に紐づく非failedの決済をFOR UPDATEで探す
func (r *PaymentGormRepository) FindLiveByOrderID(ctx context.Context, orderID string) (model.Payment, bool, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ? AND status <> ?", orderID, model.SettlementFailed).
		Order("created_at desc").
		First(&p).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Payment{}, false, nil
	}
	if err != nil {
		return model.Payment{}, false, err
	}
	return p, true, nil
}

func (r *PaymentGormRepository) Save(ctx context.Context, p model.Payment) error {
	res := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ?", p.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(&p)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *PaymentGormRepository) ListByUserID(ctx context.Context, userID string) ([]model.Payment, error) {
	var items []model.Payment
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&items).Error; err != nil {
		return []model.Payment{}, err
	}
	return items, nil
}

func (r *PaymentGormRepository) ListAll(ctx context.Context) ([]model.Payment, error) {
	var items []model.Payment
	if err := r.db.WithContext(ctx).
		Order("created_at desc").
		Find(&items).Error; err != nil {
		return []model.Payment{}, err
	}
	return items, nil
}

// クラッシュ等でprocessingのまま残った決済を期限切れ扱いでfailedへ
func (r *PaymentGormRepository) FailStuckProcessing(ctx context.Context, olderThan time.Time, reason string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("status = ? AND updated_at < ?", model.SettlementProcessing, olderThan).
		Updates(map[string]any{
			"status":         model.SettlementFailed,
			"failure_reason": reason,
		})

	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
