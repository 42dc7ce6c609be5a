package redis

import (
	"context"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const onlineKey = "acakata:online"

// Presence mirrors the room's online set into a Redis set so other processes
// (dashboards, a second instance) can see who is connected. The key expires
// if the server stops refreshing it.
type Presence struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPresence(client *redis.Client, ttl time.Duration) *Presence {
	return &Presence{client: client, ttl: ttl}
}

// Joined implements app.PresenceMirror.
func (p *Presence) Joined(ctx context.Context, player string) error {
	pipe := p.client.TxPipeline()
	pipe.SAdd(ctx, onlineKey, player)
	if p.ttl > 0 {
		pipe.Expire(ctx, onlineKey, p.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Left implements app.PresenceMirror.
func (p *Presence) Left(ctx context.Context, player string) error {
	return p.client.SRem(ctx, onlineKey, player).Err()
}

// Reset clears names left behind by a previous run.
func (p *Presence) Reset(ctx context.Context) error {
	return p.client.Del(ctx, onlineKey).Err()
}

func (p *Presence) Members(ctx context.Context) ([]string, error) {
	names, err := p.client.SMembers(ctx, onlineKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}
