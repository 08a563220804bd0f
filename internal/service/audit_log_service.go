package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/hrflow-gin/internal/model"
	"github.com/mautops/hrflow-gin/internal/repository"
)

// AuditLogService 审计日志服务
type AuditLogService interface {
	RecordAction(ctx context.Context, actorID string, action string, entityType string, entityID string, changes interface{}) error
}

// auditLogService 审计日志服务实现
type auditLogService struct {
	auditRepo repository.AuditLogRepository
}

// NewAuditLogService 创建审计日志服务
func NewAuditLogService(auditRepo repository.AuditLogRepository) AuditLogService {
	return &auditLogService{
		auditRepo: auditRepo,
	}
}

// RecordAction 记录操作审计日志
func (s *auditLogService) RecordAction(
	ctx context.Context,
	actorID string,
	action string,
	entityType string,
	entityID string,
	changes interface{},
) error {
	changesJSON, err := json.Marshal(changes)
	if err != nil {
		return err
	}

	requestID := ""
	if v := ctx.Value("request_id"); v != nil {
		requestID = v.(string)
	}

	ip := ""
	if v := ctx.Value("ip"); v != nil {
		ip = v.(string)
	}

	auditLog := &model.AuditLogModel{
		ID:         uuid.New().String(),
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		RequestID:  requestID,
		IP:         ip,
		Changes:    changesJSON,
		CreatedAt:  time.Now(),
	}

	return s.auditRepo.Save(auditLog)
}

// getUserIDFromContext 从 context 获取当前用户 ID,认证中间件写入
func getUserIDFromContext(ctx context.Context) string {
	if v := ctx.Value("user_id"); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
