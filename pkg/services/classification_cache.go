package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pharmaflow/pharmaflow-engine/pkg/models"
)

const classificationCachePrefix = "pharmaflow:classification:"

// ClassificationCache memoizes oracle verdicts keyed by the uploaded column
// set. Identical sheets arrive repeatedly (monthly re-exports of the same
// template), and an oracle round trip is the expensive part of a batch.
type ClassificationCache interface {
	// Get returns the cached verdict for the column set, or nil on miss.
	// Cache failures degrade to a miss; they must never fail a batch.
	Get(ctx context.Context, columns []string) *models.TableClassification
	Put(ctx context.Context, columns []string, classification *models.TableClassification)
}

type redisClassificationCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewClassificationCache creates a Redis-backed cache. A nil client yields a
// no-op cache so callers need no nil checks.
func NewClassificationCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) ClassificationCache {
	if client == nil {
		return noopClassificationCache{}
	}
	return &redisClassificationCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("classification-cache"),
	}
}

var _ ClassificationCache = (*redisClassificationCache)(nil)

func (c *redisClassificationCache) Get(ctx context.Context, columns []string) *models.TableClassification {
	raw, err := c.client.Get(ctx, cacheKey(columns)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", zap.Error(err))
		}
		return nil
	}

	var classification models.TableClassification
	if err := json.Unmarshal(raw, &classification); err != nil {
		c.logger.Warn("cache entry corrupt", zap.Error(err))
		return nil
	}

	c.logger.Debug("classification cache hit",
		zap.String("target", string(classification.TargetTable)))
	return &classification
}

func (c *redisClassificationCache) Put(ctx context.Context, columns []string, classification *models.TableClassification) {
	raw, err := json.Marshal(classification)
	if err != nil {
		c.logger.Warn("cache marshal failed", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, cacheKey(columns), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.Error(err))
	}
}

// cacheKey hashes the sorted column set, so column order and row content do
// not fragment the cache.
func cacheKey(columns []string) string {
	sorted := make([]string, len(columns))
	for i, col := range columns {
		sorted[i] = strings.TrimSpace(col)
	}
	sort.Strings(sorted)

	sum := sha256.Sum256([]byte(strings.Join(sorted, "\x1f")))
	return fmt.Sprintf("%s%s", classificationCachePrefix, hex.EncodeToString(sum[:]))
}

type noopClassificationCache struct{}

func (noopClassificationCache) Get(context.Context, []string) *models.TableClassification { return nil }
func (noopClassificationCache) Put(context.Context, []string, *models.TableClassification) {
}
