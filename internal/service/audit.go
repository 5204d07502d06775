package service

import (
	"context"

	"go.uber.org/zap"
)

// recordAudit writes an audit row. Failures are logged and never fail the caller's operation.
func recordAudit(ctx context.Context, audit AuditStore, logger *zap.Logger, bedNumber string, action, details string) {
	if audit == nil {
		return
	}
	var bedRef *string
	if bedNumber != "" {
		bedRef = &bedNumber
	}
	if err := audit.CreateAuditLog(ctx, bedRef, action, details); err != nil {
		logger.Warn("Failed to write audit log",
			zap.String("action", action),
			zap.String("bed_number", bedNumber),
			zap.Error(err),
		)
	}
}
