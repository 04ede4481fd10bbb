package lexicon

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the hash holding word frequencies.
const DefaultRedisKey = "ocr:lexicon"

// RedisLexicon looks word frequencies up in a Redis hash, so that workers on
// several machines share one lexicon.
type RedisLexicon struct {
	client     redis.UniversalClient
	key        string
	normalizer *Normalizer
}

// NewRedisLexicon creates a lexicon reading the hash at key.
func NewRedisLexicon(client redis.UniversalClient, key string, n *Normalizer) *RedisLexicon {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisLexicon{client: client, key: key, normalizer: n}
}

// DialRedisLexicon connects to the Redis server at url and checks the
// connection.
func DialRedisLexicon(ctx context.Context, url, key string, n *Normalizer) (*RedisLexicon, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisLexicon(client, key, n), nil
}

// Frequency returns how often word occurs, 0 if unknown.
func (l *RedisLexicon) Frequency(ctx context.Context, word string) (int, error) {
	f, err := l.client.HGet(ctx, l.key, l.normalizer.Normalize(word)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up %q: %w", word, err)
	}
	return f, nil
}

// Load adds the frequencies of words to the hash.
func (l *RedisLexicon) Load(ctx context.Context, words map[string]int) error {
	if len(words) == 0 {
		return nil
	}
	_, err := l.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for w, f := range words {
			p.HIncrBy(ctx, l.key, l.normalizer.Normalize(w), int64(f))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to load lexicon: %w", err)
	}
	return nil
}

// Len returns the number of words in the hash.
func (l *RedisLexicon) Len(ctx context.Context) (int64, error) {
	return l.client.HLen(ctx, l.key).Result()
}

// Close closes the Redis client.
func (l *RedisLexicon) Close() error {
	return l.client.Close()
}
