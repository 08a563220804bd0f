package workflow

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/hrflow-gin/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger 额度台账
// 四个调整操作(reserve/finalize/release/unwind)是台账唯一的修改入口,
// 全部在调用方事务内对单条记录做加锁读-改-写,
// 每次调整直接维护 available = allocated - used - pending
type Ledger struct{}

// NewLedger 创建额度台账
func NewLedger() *Ledger {
	return &Ledger{}
}

// lockRecord 在事务内加行锁读取台账记录
// SQLite 写入天然串行,不支持 FOR UPDATE,只对 PostgreSQL 加锁
func (l *Ledger) lockRecord(tx *gorm.DB, tenantID, subject, resourceType, period string) (*model.BalanceRecordModel, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var rec model.BalanceRecordModel
	err := q.Where("tenant_id = ? AND subject = ? AND resource_type = ? AND period = ?",
		tenantID, subject, resourceType, period).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundf("balance record for subject %q resource %q period %q not found", subject, resourceType, period)
		}
		return nil, err
	}
	return &rec, nil
}

// save 校验不变式后写回四元组
func (l *Ledger) save(tx *gorm.DB, rec *model.BalanceRecordModel) error {
	if err := rec.CheckInvariant(); err != nil {
		return err
	}
	return tx.Model(&model.BalanceRecordModel{}).Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"allocated":  rec.Allocated,
			"used":       rec.Used,
			"pending":    rec.Pending,
			"available":  rec.Available,
			"updated_at": time.Now(),
		}).Error
}

// Reserve 提交单据时冻结额度: pending += qty, available -= qty
func (l *Ledger) Reserve(tx *gorm.DB, tenantID, subject, resourceType, period string, qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return Validationf("reserve quantity must be positive")
	}
	rec, err := l.lockRecord(tx, tenantID, subject, resourceType, period)
	if err != nil {
		return err
	}
	if rec.Available.LessThan(qty) {
		return Conflictf("insufficient balance: available %s, requested %s", rec.Available, qty)
	}
	rec.Pending = rec.Pending.Add(qty)
	rec.Available = rec.Available.Sub(qty)
	return l.save(tx, rec)
}

// Finalize 终审通过时落账,支持部分批准:
// pending -= requested, used += approved, available += requested - approved
func (l *Ledger) Finalize(tx *gorm.DB, tenantID, subject, resourceType, period string, requested, approved decimal.Decimal) error {
	if !requested.IsPositive() {
		return Validationf("finalize requested quantity must be positive")
	}
	if approved.IsNegative() || approved.GreaterThan(requested) {
		return Validationf("approved quantity must be between 0 and the requested quantity")
	}
	rec, err := l.lockRecord(tx, tenantID, subject, resourceType, period)
	if err != nil {
		return err
	}
	if rec.Pending.LessThan(requested) {
		return Conflictf("pending balance %s is less than requested %s", rec.Pending, requested)
	}
	rec.Pending = rec.Pending.Sub(requested)
	rec.Used = rec.Used.Add(approved)
	rec.Available = rec.Available.Add(requested.Sub(approved))
	return l.save(tx, rec)
}

// Release 拒绝/退回/审批中取消时解冻额度: pending -= qty, available += qty
func (l *Ledger) Release(tx *gorm.DB, tenantID, subject, resourceType, period string, qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return Validationf("release quantity must be positive")
	}
	rec, err := l.lockRecord(tx, tenantID, subject, resourceType, period)
	if err != nil {
		return err
	}
	if rec.Pending.LessThan(qty) {
		return Conflictf("pending balance %s is less than release quantity %s", rec.Pending, qty)
	}
	rec.Pending = rec.Pending.Sub(qty)
	rec.Available = rec.Available.Add(qty)
	return l.save(tx, rec)
}

// Unwind 已落账后的冲销: used -= qty, available += qty
func (l *Ledger) Unwind(tx *gorm.DB, tenantID, subject, resourceType, period string, qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return Validationf("unwind quantity must be positive")
	}
	rec, err := l.lockRecord(tx, tenantID, subject, resourceType, period)
	if err != nil {
		return err
	}
	if rec.Used.LessThan(qty) {
		return Conflictf("used balance %s is less than unwind quantity %s", rec.Used, qty)
	}
	rec.Used = rec.Used.Sub(qty)
	rec.Available = rec.Available.Add(qty)
	return l.save(tx, rec)
}

// Allocate 设置分配额度,首次调用创建记录,后续调整追加额度历史
// 调整只改 allocated 与 available,used/pending 不受影响
func (l *Ledger) Allocate(tx *gorm.DB, tenantID, subject, resourceType, period string, allocated decimal.Decimal, reason, actor string) (*model.BalanceRecordModel, error) {
	if allocated.IsNegative() {
		return nil, Validationf("allocated quantity must not be negative")
	}
	rec, err := l.lockRecord(tx, tenantID, subject, resourceType, period)
	if err != nil {
		if !IsKind(err, KindNotFound) {
			return nil, err
		}
		rec = &model.BalanceRecordModel{
			ID:           uuid.New().String(),
			TenantID:     tenantID,
			Subject:      subject,
			ResourceType: resourceType,
			Period:       period,
			Allocated:    allocated,
			Available:    allocated,
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		}
		if err := rec.CheckInvariant(); err != nil {
			return nil, err
		}
		if err := tx.Create(rec).Error; err != nil {
			return nil, err
		}
		if err := l.appendHistory(tx, rec.ID, decimal.Zero, allocated, reason, actor); err != nil {
			return nil, err
		}
		return rec, nil
	}

	old := rec.Allocated
	delta := allocated.Sub(old)
	rec.Allocated = allocated
	rec.Available = rec.Available.Add(delta)
	if err := l.save(tx, rec); err != nil {
		return nil, err
	}
	if err := l.appendHistory(tx, rec.ID, old, allocated, reason, actor); err != nil {
		return nil, err
	}
	return rec, nil
}

// appendHistory 追加一条额度调整历史
func (l *Ledger) appendHistory(tx *gorm.DB, balanceID string, old, next decimal.Decimal, reason, actor string) error {
	entry := &model.AllocationHistoryModel{
		ID:           uuid.New().String(),
		BalanceID:    balanceID,
		OldAllocated: old,
		NewAllocated: next,
		Reason:       reason,
		Actor:        actor,
		CreatedAt:    time.Now(),
	}
	return tx.Create(entry).Error
}

// Get 读取台账记录,不加锁
func (l *Ledger) Get(db *gorm.DB, tenantID, subject, resourceType, period string) (*model.BalanceRecordModel, error) {
	var rec model.BalanceRecordModel
	err := db.Where("tenant_id = ? AND subject = ? AND resource_type = ? AND period = ?",
		tenantID, subject, resourceType, period).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundf("balance record for subject %q resource %q period %q not found", subject, resourceType, period)
		}
		return nil, err
	}
	return &rec, nil
}
