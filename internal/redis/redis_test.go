package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mossy-p/burner-signaling/internal/admission"
	"github.com/mossy-p/burner-signaling/internal/models"
)

func newTestClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return rdb, mr
}

func TestBucketStore_FollowsAdmissionRules(t *testing.T) {
	rdb, _ := newTestClient(t)
	store := NewBucketStore(rdb, "")
	ctx := context.Background()
	p := admission.Policy{Points: 2, Window: time.Minute, Block: 5 * time.Minute}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		d, err := store.Take(ctx, "identity:fp", p, now)
		if err != nil {
			t.Fatalf("take %d: %v", i+1, err)
		}
		if !d.Allowed || d.Remaining != 1-i {
			t.Fatalf("take %d = %+v", i+1, d)
		}
	}

	d, err := store.Take(ctx, "identity:fp", p, now)
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed || d.RetryAfter != 5*time.Minute {
		t.Fatalf("third take = %+v, want denied for 5m", d)
	}

	// A denial while blocked pushes the block out by one window.
	d, _ = store.Take(ctx, "identity:fp", p, now.Add(time.Minute))
	if d.Allowed || d.RetryAfter != 5*time.Minute {
		t.Fatalf("take while blocked = %+v, want retry 5m", d)
	}

	d, _ = store.Take(ctx, "identity:fp", p, now.Add(7*time.Minute))
	if !d.Allowed {
		t.Fatalf("take after block = %+v, want allowed", d)
	}

	d, _ = store.Take(ctx, "identity:other", p, now)
	if !d.Allowed {
		t.Fatal("other key should be independent")
	}
}

func TestBucketStore_WithLimiter(t *testing.T) {
	rdb, _ := newTestClient(t)
	l := admission.NewLimiter(nil, NewBucketStore(rdb, "test:"), nil, nil, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if !l.TryConsume(ctx, admission.ClassIdentity, "fp").Allowed {
			t.Fatalf("request %d denied", i+1)
		}
	}
	d := l.TryConsume(ctx, admission.ClassIdentity, "fp")
	if d.Allowed || d.RetryAfter <= 0 {
		t.Fatalf("6th request = %+v, want denied with retry", d)
	}
}

func TestBucketStore_FailsWhenRedisIsDown(t *testing.T) {
	rdb, mr := newTestClient(t)
	store := NewBucketStore(rdb, "")
	mr.Close()

	_, err := store.Take(context.Background(), "k", admission.Policy{Points: 1, Window: time.Second}, time.Now())
	if err == nil {
		t.Fatal("expected error from closed server")
	}
}

func TestDirectory_PutGetListDelete(t *testing.T) {
	rdb, mr := newTestClient(t)
	dir := NewDirectory(rdb, "")
	ctx := context.Background()

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	settings := models.DefaultMeetingSettings()
	s := models.RoomSummary{
		RoomID:           "room-1",
		Kind:             "meeting",
		Status:           "active",
		ParticipantCount: 3,
		MaxParticipants:  10,
		PasscodeRequired: true,
		CreatedAt:        created,
		ExpiresAt:        created.Add(4 * time.Hour),
		Host:             "calm-otter-1234",
		Settings:         &settings,
	}
	if err := dir.Put(ctx, s, time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ttl := mr.TTL("signaling:room:room-1"); ttl != time.Hour {
		t.Fatalf("ttl = %s, want 1h", ttl)
	}

	got, ok, err := dir.Get(ctx, "room-1")
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if got.Host != s.Host || got.ParticipantCount != 3 || !got.CreatedAt.Equal(created) || got.Settings == nil || !got.Settings.AllowChat {
		t.Fatalf("Get = %+v", got)
	}

	list, err := dir.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("List = %v, %v", list, err)
	}

	if err := dir.Delete(ctx, "room-1"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := dir.Get(ctx, "room-1"); ok {
		t.Fatal("room still present after Delete")
	}
	list, err = dir.List(ctx)
	if err != nil || len(list) != 0 {
		t.Fatalf("List after delete = %v, %v", list, err)
	}
}

func TestDirectory_ListPrunesVanishedEntries(t *testing.T) {
	rdb, mr := newTestClient(t)
	dir := NewDirectory(rdb, "")
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if err := dir.Put(ctx, models.RoomSummary{RoomID: id, Kind: "text"}, time.Hour); err != nil {
			t.Fatal(err)
		}
	}
	mr.Del("signaling:room:a")

	list, err := dir.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].RoomID != "b" {
		t.Fatalf("List = %+v, want only b", list)
	}
	members, _ := rdb.ZRange(ctx, "signaling:rooms", 0, -1).Result()
	if len(members) != 1 {
		t.Fatalf("index = %v, want pruned to one entry", members)
	}
}
