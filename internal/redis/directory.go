package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mossy-p/burner-signaling/internal/models"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("redis: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("redis: CBOR decoder initialization failed: " + err.Error())
	}
}

// Directory mirrors room summaries into Redis. Each summary lives under
// room:<id> with the room's remaining lifetime as TTL, and a sorted set
// indexes live ids by expiry.
type Directory struct {
	rdb    redis.Cmdable
	prefix string
}

func NewDirectory(rdb redis.Cmdable, prefix string) *Directory {
	if prefix == "" {
		prefix = "signaling:"
	}
	return &Directory{rdb: rdb, prefix: prefix}
}

func (d *Directory) roomKey(id string) string { return d.prefix + "room:" + id }

func (d *Directory) indexKey() string { return d.prefix + "rooms" }

// Put stores s for ttl.
func (d *Directory) Put(ctx context.Context, s models.RoomSummary, ttl time.Duration) error {
	data, err := encMode.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode room %s: %w", s.RoomID, err)
	}
	expireAt := time.Now().Add(ttl)

	pipe := d.rdb.TxPipeline()
	pipe.Set(ctx, d.roomKey(s.RoomID), data, ttl)
	pipe.ZAdd(ctx, d.indexKey(), redis.Z{Score: float64(expireAt.UnixMilli()), Member: s.RoomID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store room %s: %w", s.RoomID, err)
	}
	return nil
}

// Delete removes a room.
func (d *Directory) Delete(ctx context.Context, roomID string) error {
	pipe := d.rdb.TxPipeline()
	pipe.Del(ctx, d.roomKey(roomID))
	pipe.ZRem(ctx, d.indexKey(), roomID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete room %s: %w", roomID, err)
	}
	return nil
}

// Get returns the mirrored summary of roomID.
func (d *Directory) Get(ctx context.Context, roomID string) (models.RoomSummary, bool, error) {
	data, err := d.rdb.Get(ctx, d.roomKey(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.RoomSummary{}, false, nil
	}
	if err != nil {
		return models.RoomSummary{}, false, fmt.Errorf("load room %s: %w", roomID, err)
	}
	var s models.RoomSummary
	if err := decMode.Unmarshal(data, &s); err != nil {
		return models.RoomSummary{}, false, fmt.Errorf("decode room %s: %w", roomID, err)
	}
	return s, true, nil
}

// List returns every mirrored room that has not expired, soonest expiry
// first. Index entries whose summary is gone are pruned.
func (d *Directory) List(ctx context.Context) ([]models.RoomSummary, error) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if err := d.rdb.ZRemRangeByScore(ctx, d.indexKey(), "-inf", now).Err(); err != nil {
		return nil, fmt.Errorf("prune room index: %w", err)
	}
	ids, err := d.rdb.ZRange(ctx, d.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read room index: %w", err)
	}

	out := make([]models.RoomSummary, 0, len(ids))
	for _, id := range ids {
		s, ok, err := d.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			d.rdb.ZRem(ctx, d.indexKey(), id)
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
