package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"flash_promo/internal/geo"
	"flash_promo/internal/model"

	"gorm.io/gorm/clause"
)

// GetProfileByUser 用户没有画像时返回 ErrProfileMissing（区别于不满足条件）。
func (s *Store) GetProfileByUser(ctx context.Context, userID int64) (model.Profile, error) {
	var p model.Profile
	if err := s.conn(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return model.Profile{}, notFound(err, model.ErrProfileMissing)
	}
	return p, nil
}

// SaveProfile 按 user_id upsert 画像。
func (s *Store) SaveProfile(ctx context.Context, p *model.Profile) error {
	err := s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"lat", "lon", "is_new_user", "is_frequent", "updated_at"}),
	}).Create(p).Error
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// AudienceCandidates 推送候选人：行为标签满足、坐标落在 box 内，
// 且当天还没有该活动的 NotificationLog。精确距离由调用方再过滤一遍。
func (s *Store) AudienceCandidates(ctx context.Context, promoID uint, date string, box geo.Box) ([]model.Profile, error) {
	notified := s.conn(ctx).
		Model(&model.NotificationLog{}).
		Select("user_id").
		Where("promo_id = ? AND sent_date = ?", promoID, date)

	var list []model.Profile
	err := s.conn(ctx).
		Where("is_new_user = ? OR is_frequent = ?", true, true).
		Where("lat IS NOT NULL AND lon IS NOT NULL").
		Where("lat BETWEEN ? AND ?", box.MinLat, box.MaxLat).
		Where("lon BETWEEN ? AND ?", box.MinLon, box.MaxLon).
		Where("user_id NOT IN (?)", notified).
		Order("user_id").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("audience candidates: %w", err)
	}
	return list, nil
}

const claimChunk = 500

// ClaimNotifications 为 userIDs 写入当天的防重记录，返回本次真正写入（抢到）的用户，按 user_id 升序。
// 已有记录的用户被 ON CONFLICT DO NOTHING 跳过且不出现在 RETURNING 中，
// 因此并发的两次调用对同一用户只有一次能拿到它。
func (s *Store) ClaimNotifications(ctx context.Context, promoID uint, sentAt time.Time, userIDs []int64) ([]int64, error) {
	ids := uniqueIDs(userIDs)
	if len(ids) == 0 {
		return nil, nil
	}
	date := model.DateKey(sentAt)
	table := model.NotificationLog{}.TableName()

	claimed := make([]int64, 0, len(ids))
	for start := 0; start < len(ids); start += claimChunk {
		chunk := ids[start:min(start+claimChunk, len(ids))]

		var sb strings.Builder
		sb.WriteString("INSERT INTO " + table + " (user_id, promo_id, sent_date, sent_at) VALUES ")
		args := make([]interface{}, 0, len(chunk)*4)
		for i, uid := range chunk {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(?, ?, ?, ?)")
			args = append(args, uid, promoID, date, sentAt.UTC())
		}
		sb.WriteString(" ON CONFLICT DO NOTHING RETURNING user_id")

		var got []int64
		if err := s.conn(ctx).Raw(sb.String(), args...).Scan(&got).Error; err != nil {
			return nil, fmt.Errorf("claim notifications: %w", err)
		}
		claimed = append(claimed, got...)
	}
	sort.Slice(claimed, func(i, j int) bool { return claimed[i] < claimed[j] })
	return claimed, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// CountNotificationLogs 某活动某日已记录的推送数。
func (s *Store) CountNotificationLogs(ctx context.Context, promoID uint, date string) (int64, error) {
	var n int64
	err := s.conn(ctx).
		Model(&model.NotificationLog{}).
		Where("promo_id = ? AND sent_date = ?", promoID, date).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count notification logs: %w", err)
	}
	return n, nil
}
