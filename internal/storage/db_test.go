package storage

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func TestReleaseAdvisoryLock_NotHeld(t *testing.T) {
	db := &DB{lockConns: make(map[int64]*pgxpool.Conn)}

	// Session locks are bound to their acquiring connection; releasing
	// one this client never acquired must fail instead of issuing an
	// unlock on an arbitrary pooled connection.
	if err := db.ReleaseAdvisoryLock(context.Background(), 7); err == nil {
		t.Fatal("expected error releasing a lock that was never acquired")
	}
}

func TestTextConverters(t *testing.T) {
	if got := toText(""); got.Valid {
		t.Error("empty string should map to NULL")
	}

	got := toText("value")
	if !got.Valid || got.String != "value" {
		t.Errorf("toText = %+v", got)
	}

	if fromText(toText("round")) != "round" {
		t.Error("round-trip lost the value")
	}

	if fromText(toText("")) != "" {
		t.Error("NULL should read back as empty string")
	}
}

func TestToTimestamptz(t *testing.T) {
	if got := toTimestamptz(time.Time{}); got.Valid {
		t.Error("zero time should map to NULL")
	}

	now := time.Unix(1717000000, 0)
	got := toTimestamptz(now)

	if !got.Valid || !got.Time.Equal(now) {
		t.Errorf("toTimestamptz = %+v", got)
	}
}
