package cache

import (
	"context"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type PresenceMember struct {
	UserID   uint64
	Username string
}

// PresenceCache 跨实例共享的房间在线状态与光标缓存
type PresenceCache interface {
	AddMember(ctx context.Context, room string, userID uint64, username string, ttl time.Duration) error
	RemoveMember(ctx context.Context, room string, userID uint64) error
	GetAliveMembers(ctx context.Context, room string) ([]PresenceMember, error)
	SetCursor(ctx context.Context, room string, userID uint64, jsonData []byte, ttl time.Duration) error
	GetCursor(ctx context.Context, room string, userID uint64) ([]byte, error)
}

type redisPresence struct {
	rdb redis.UniversalClient
}

func NewRedisPresence(rdb redis.UniversalClient) PresenceCache {
	return &redisPresence{rdb: rdb}
}

func (p *redisPresence) AddMember(ctx context.Context, room string, userID uint64, username string, ttl time.Duration) error {
	// 刷新 TTL 也直接调用 AddMember
	tx := p.rdb.TxPipeline()
	// ZSET score 使用 expireAt（Unix 秒），表达"逻辑 TTL"
	expireAt := time.Now().Add(ttl).Unix()
	tx.ZAdd(ctx, roomKey(room), redis.Z{Score: float64(expireAt), Member: userID})
	tx.HSet(ctx, namesKey(room), userID, username)
	_, err := tx.Exec(ctx)
	return err
}

func (p *redisPresence) RemoveMember(ctx context.Context, room string, userID uint64) error {
	tx := p.rdb.TxPipeline()
	tx.ZRem(ctx, roomKey(room), userID)
	tx.HDel(ctx, namesKey(room), strconv.FormatUint(userID, 10))
	_, err := tx.Exec(ctx)
	return err
}

func (p *redisPresence) GetAliveMembers(ctx context.Context, room string) ([]PresenceMember, error) {
	// step1: 清理过期成员。约定 score=expireAt，expireAt <= now 视为过期
	now := time.Now().Unix()
	luaScript := `
	-- KEYS[1] = roomKey(room)
	-- KEYS[2] = namesKey(room)
	-- ARGV[1] = now (unix seconds)

	local expired = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
	if #expired > 0 then
		redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
		redis.call("HDEL", KEYS[2], unpack(expired))
	end
	return #expired
	`
	script := redis.NewScript(luaScript)
	if _, err := script.Run(ctx, p.rdb, []string{roomKey(room), namesKey(room)}, now).Int(); err != nil && err != redis.Nil {
		return nil, err
	}

	// step2: 查询在线成员
	aliveIDs, err := p.rdb.ZRangeByScore(ctx, roomKey(room), &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(now, 10),
		Max: "+inf",
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	if len(aliveIDs) == 0 {
		return nil, nil
	}
	ids := make([]uint64, 0, len(aliveIDs))
	for _, raw := range aliveIDs {
		uid, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, uid)
	}

	// step3: 批量取名字
	names, err := p.rdb.HMGet(ctx, namesKey(room), aliveIDs...).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	members := make([]PresenceMember, 0, len(ids))
	for i, v := range names {
		name := ""
		if v != nil {
			name, _ = v.(string)
		}
		members = append(members, PresenceMember{UserID: ids[i], Username: name})
	}
	return members, nil
}

func (p *redisPresence) SetCursor(ctx context.Context, room string, userID uint64, jsonData []byte, ttl time.Duration) error {
	return p.rdb.Set(ctx, cursorKey(room, userID), jsonData, ttl).Err()
}

func (p *redisPresence) GetCursor(ctx context.Context, room string, userID uint64) ([]byte, error) {
	return p.rdb.Get(ctx, cursorKey(room, userID)).Bytes()
}
