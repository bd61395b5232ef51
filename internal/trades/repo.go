package trades

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/tradevouch/pkg/db/models"
	"github.com/angelmondragon/tradevouch/pkg/enums"
	"github.com/angelmondragon/tradevouch/pkg/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	actorColumnOpener  = "opener_id"
	actorColumnPartner = "partner_id"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a trade ticket repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Insert reports false when the id is already taken.
func (r *repository) Insert(ctx context.Context, ticket *models.TradeTicket) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(ticket)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) FindByID(ctx context.Context, id string) (*models.TradeTicket, error) {
	var ticket models.TradeTicket
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&ticket).Error; err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *repository) guarded(ctx context.Context, id string, guard Guard) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.TradeTicket{}).Where("id = ?", id)
	if guard.CommunityID != "" {
		q = q.Where("community_id = ?", guard.CommunityID)
	}
	if len(guard.Statuses) > 0 {
		q = q.Where("status IN ?", guard.Statuses)
	}
	switch guard.ActorColumn {
	case actorColumnOpener:
		q = q.Where("opener_id = ?", guard.ActorID)
	case actorColumnPartner:
		q = q.Where("partner_id = ?", guard.ActorID)
	}
	if guard.CreatedBefore != nil {
		q = q.Where("created_at <= ?", guard.CreatedBefore.UTC())
	}
	return q
}

func (r *repository) Transition(ctx context.Context, id string, guard Guard, updates map[string]any) (int64, error) {
	res := r.guarded(ctx, id, guard).Updates(updates)
	return res.RowsAffected, res.Error
}

// Confirm sets one side's flag and, when the other side already confirmed, completes the
// ticket in the same statement. SET expressions read the pre-update row.
func (r *repository) Confirm(ctx context.Context, id string, guard Guard, side enums.ConfirmSide, now time.Time) (int64, error) {
	own, other := "opener_confirmed", "partner_confirmed"
	if side == enums.ConfirmSidePartner {
		own, other = other, own
	}
	now = now.UTC()
	updates := map[string]any{
		own:          true,
		"status":     gorm.Expr(fmt.Sprintf("CASE WHEN %s THEN ? ELSE status END", other), enums.TicketStatusCompleted),
		"closed_at":  gorm.Expr(fmt.Sprintf("CASE WHEN %s THEN ? ELSE closed_at END", other), now),
		"updated_at": now,
	}
	res := r.guarded(ctx, id, guard).Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repository) ListForMember(ctx context.Context, communityID, memberID string, params pagination.Params) (*TicketList, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	q := r.db.WithContext(ctx).
		Where("community_id = ?", communityID).
		Where("(opener_id = ? OR partner_id = ?)", memberID, memberID)
	if cursor != nil {
		q = q.Where("(created_at < ? OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.TradeTicket
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, err
	}

	list := &TicketList{Tickets: rows}
	if len(rows) > limit {
		last := rows[limit-1]
		list.Tickets = rows[:limit]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return list, nil
}

func (r *repository) CountByStatus(ctx context.Context, communityID, memberID string) (map[enums.TicketStatus]int64, error) {
	var rows []struct {
		Status enums.TicketStatus
		Total  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.TradeTicket{}).
		Select("status, COUNT(*) AS total").
		Where("community_id = ?", communityID).
		Where("(opener_id = ? OR partner_id = ?)", memberID, memberID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[enums.TicketStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

// ListExpiryCandidates returns rendered, non-terminal tickets created at or before the cutoff,
// oldest first, resuming after query.After.
func (r *repository) ListExpiryCandidates(ctx context.Context, query ExpiryQuery) ([]models.TradeTicket, error) {
	q := r.db.WithContext(ctx).
		Where("status IN ?", enums.NonTerminalTicketStatuses).
		Where("external_ref IS NOT NULL").
		Where("created_at <= ?", query.CreatedBefore.UTC())
	if query.After != nil {
		after := query.After.CreatedAt.UTC()
		q = q.Where("(created_at > ? OR (created_at = ? AND id > ?))", after, after, query.After.ID)
	}
	q = q.Order("created_at ASC").Order("id ASC")
	if query.Limit > 0 {
		q = q.Limit(query.Limit)
	}
	var rows []models.TradeTicket
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
