// Package dedupe remembers which overdue notifications were already sent.
package dedupe

import (
	"context"
	"fmt"
	"time"

	"task-board-sync/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Deduper records (task, recipient) pairs.
type Deduper interface {
	// Claim records the pair and reports whether it was new.
	Claim(ctx context.Context, taskID, recipientID string) (bool, error)
	// Release forgets one pair, e.g. when storing the notification failed.
	Release(ctx context.Context, taskID, recipientID string) error
	// ClearTask forgets every pair of the task.
	ClearTask(ctx context.Context, taskID string) error
}

func key(taskID, recipientID string) string {
	return fmt.Sprintf("overdue:%s:%s", taskID, recipientID)
}

// RedisDeduper keeps the pairs in Redis so every server instance sees them.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper using the provided Redis client and TTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) Claim(ctx context.Context, taskID, recipientID string) (bool, error) {
	return r.client.SetNX(ctx, key(taskID, recipientID), 1, r.ttl).Result()
}

func (r *RedisDeduper) Release(ctx context.Context, taskID, recipientID string) error {
	return r.client.Del(ctx, key(taskID, recipientID)).Err()
}

func (r *RedisDeduper) ClearTask(ctx context.Context, taskID string) error {
	var keys []string
	iter := r.client.Scan(ctx, 0, fmt.Sprintf("overdue:%s:*", taskID), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// DBDeduper keeps the pairs in the store's own database.
type DBDeduper struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewDBDeduper creates a deduper on db; ttl <= 0 never expires records.
func NewDBDeduper(db *gorm.DB, ttl time.Duration) *DBDeduper {
	return &DBDeduper{db: db, ttl: ttl, now: time.Now}
}

func (d *DBDeduper) Claim(ctx context.Context, taskID, recipientID string) (bool, error) {
	k := key(taskID, recipientID)
	now := d.now()
	rec := models.DedupeRecord{Key: k, TaskID: taskID, CreatedAt: now}
	if d.ttl > 0 {
		exp := now.Add(d.ttl)
		rec.ExpiresAt = &exp
	}

	var claimed bool
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("dedupe_key = ? AND expires_at IS NOT NULL AND expires_at < ?", k, now).
			Delete(&models.DedupeRecord{}).Error; err != nil {
			return err
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
		if res.Error != nil {
			return res.Error
		}
		claimed = res.RowsAffected == 1
		return nil
	})
	return claimed, err
}

func (d *DBDeduper) Release(ctx context.Context, taskID, recipientID string) error {
	return d.db.WithContext(ctx).Where("dedupe_key = ?", key(taskID, recipientID)).Delete(&models.DedupeRecord{}).Error
}

func (d *DBDeduper) ClearTask(ctx context.Context, taskID string) error {
	return d.db.WithContext(ctx).Where("task_id = ?", taskID).Delete(&models.DedupeRecord{}).Error
}
