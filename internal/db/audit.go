package db

import (
	"context"
	"time"

	"github.com/orrn/printdesk/internal/model"
)

func (q *queries) CreateAuditLog(ctx context.Context, l *model.AuditLog) error {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	result, err := q.q.ExecContext(ctx, InsertAuditLog,
		l.Action, l.EntityType, l.EntityID, l.Actor, l.Details, l.CreatedAt)
	if err != nil {
		return persistErr(err, "create audit log")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return persistErr(err, "get audit log id")
	}
	l.ID = id
	return nil
}

func (q *queries) ListAuditLogs(ctx context.Context, entityType string, entityID int64) ([]*model.AuditLog, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	rows, err := q.q.QueryContext(ctx, ListAuditLogByEntity, entityType, entityID)
	if err != nil {
		return nil, persistErr(err, "list audit logs")
	}
	defer rows.Close()

	logs := make([]*model.AuditLog, 0)
	for rows.Next() {
		l := &model.AuditLog{}
		if err := rows.Scan(&l.ID, &l.Action, &l.EntityType, &l.EntityID, &l.Actor, &l.Details, &l.CreatedAt); err != nil {
			return nil, persistErr(err, "scan audit log")
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr(err, "list audit logs")
	}
	return logs, nil
}
