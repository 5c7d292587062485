package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
)

func TestAllow_FirstHitSetsExpiry(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := New(db, 2, time.Minute)

	mock.ExpectIncr("storefront:rl:1.2.3.4").SetVal(1)
	mock.ExpectExpire("storefront:rl:1.2.3.4", time.Minute).SetVal(true)
	mock.ExpectIncr("storefront:rl:1.2.3.4").SetVal(2)
	mock.ExpectIncr("storefront:rl:1.2.3.4").SetVal(3)

	ctx := context.Background()
	for i, want := range []bool{true, true, false} {
		ok, err := l.Allow(ctx, "1.2.3.4")
		if err != nil {
			t.Fatalf("hit %d: %v", i, err)
		}
		if ok != want {
			t.Fatalf("hit %d: allowed=%v want %v", i, ok, want)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestAllow_FailsOpen(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := New(db, 1, time.Minute)
	mock.ExpectIncr("storefront:rl:k").SetErr(errors.New("conn refused"))

	ok, err := l.Allow(context.Background(), "k")
	if err == nil || !ok {
		t.Fatalf("redis errors must allow the request and report, got %v %v", ok, err)
	}
}

func TestAllow_NoClient(t *testing.T) {
	var l *Limiter
	if ok, _ := l.Allow(context.Background(), "x"); !ok {
		t.Fatalf("nil limiter must allow")
	}
	if ok, _ := New(nil, 5, 0).Allow(context.Background(), "x"); !ok {
		t.Fatalf("limiter without client must allow")
	}
}
