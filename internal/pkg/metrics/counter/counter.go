package counter

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const webhookDeliveriesKey = "verification:counters:webhooks"

// Counter batches high-frequency increments in Redis hashes and flushes
// them to the database in a single CASE-WHEN update per table. Keeps the
// hot path off MySQL when the provider fires bursts of notifications.
type Counter struct {
	rdb *redis.Client
	db  *gorm.DB
}

func New(rdb *redis.Client, db *gorm.DB) *Counter {
	return &Counter{rdb: rdb, db: db}
}

// AddWebhookDelivery increments the pending notification tally for a
// verification attempt in Redis.
func (c *Counter) AddWebhookDelivery(attemptID uint) error {
	ctx := context.Background()
	field := strconv.FormatUint(uint64(attemptID), 10)
	return c.rdb.HIncrBy(ctx, webhookDeliveriesKey, field, 1).Err()
}

// FlushAll flushes all pending counters to the database
func (c *Counter) FlushAll() error {
	return c.flushHashToTable(webhookDeliveriesKey, "verification_attempts", "webhook_count")
}

// flushHashToTable drains a Redis hash atomically and applies batched increments.
// Uses RENAME to a temporary key for atomic drain without losing in-flight increments.
func (c *Counter) flushHashToTable(redisKey, table, column string) error {
	ctx := context.Background()

	// Atomically move the hash to a temp key for draining
	tmpKey := fmt.Sprintf("%s:tmp:%d", redisKey, time.Now().UnixNano())
	if err := c.rdb.Do(ctx, "RENAME", redisKey, tmpKey).Err(); err != nil {
		// If key does not exist, nothing to flush
		if strings.Contains(strings.ToLower(err.Error()), "no such key") {
			return nil
		}
		if err == redis.Nil {
			return nil
		}
		return err
	}

	// Ensure cleanup of tmpKey even if later steps fail
	defer c.rdb.Del(ctx, tmpKey)

	data, err := c.rdb.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	// Collect ids and increments; sort ids for stable SQL
	type pair struct {
		id  uint64
		inc int64
	}
	pairs := make([]pair, 0, len(data))
	for k, v := range data {
		id, perr := strconv.ParseUint(k, 10, 64)
		if perr != nil {
			continue
		}
		inc, ierr := strconv.ParseInt(v, 10, 64)
		if ierr != nil || inc == 0 {
			continue
		}
		pairs = append(pairs, pair{id: id, inc: inc})
	}
	if len(pairs) == 0 {
		return nil
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].id < pairs[j].id })

	// UPDATE <table> SET <column> = <column> + CASE id WHEN ? THEN ? ... END WHERE id IN ( ... )
	var builder strings.Builder
	args := make([]interface{}, 0, len(pairs)*3)
	builder.WriteString("UPDATE ")
	builder.WriteString(table)
	builder.WriteString(" SET ")
	builder.WriteString(column)
	builder.WriteString(" = ")
	builder.WriteString(column)
	builder.WriteString(" + CASE id ")
	for _, p := range pairs {
		builder.WriteString(" WHEN ? THEN ?")
		args = append(args, p.id, p.inc)
	}
	builder.WriteString(" END WHERE id IN (")
	for i, p := range pairs {
		if i > 0 {
			builder.WriteString(",")
		}
		builder.WriteString("?")
		args = append(args, p.id)
	}
	builder.WriteString(")")

	return c.db.Exec(builder.String(), args...).Error
}
