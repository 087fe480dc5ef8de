package store

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/novaclub/club-sync/catalog"
)

var clock struct {
	sync.Mutex
	last time.Time
	// writes holds the timestamps of record writes whose transaction has
	// not finished yet.
	writes map[time.Time]struct{}
}

// Now is the store clock. Timestamps are kept with microsecond precision,
// which is what postgres stores, and never repeat within the process so
// that two writes are always ordered by updated_at.
func Now() time.Time {
	clock.Lock()
	defer clock.Unlock()
	return tick()
}

func tick() time.Time {
	now := time.Now().UTC().Truncate(time.Microsecond)
	if !now.After(clock.last) {
		now = clock.last.Add(time.Microsecond)
	}
	clock.last = now
	return now
}

// BeginWrite reserves the updated_at of a record write. The returned
// release func must be called once the write's transaction has committed
// or rolled back.
func BeginWrite() (time.Time, func()) {
	clock.Lock()
	defer clock.Unlock()
	now := tick()
	if clock.writes == nil {
		clock.writes = make(map[time.Time]struct{})
	}
	clock.writes[now] = struct{}{}
	var once sync.Once
	return now, func() {
		once.Do(func() {
			clock.Lock()
			delete(clock.writes, now)
			clock.Unlock()
		})
	}
}

// SyncPoint returns the instant up to which every record write of this
// process has finished. A row committed later always has an updated_at
// after it, so it is safe to hand out as a pull watermark even when other
// transactions are still open.
func SyncPoint() time.Time {
	clock.Lock()
	defer clock.Unlock()
	point := tick()
	for started := range clock.writes {
		if !started.After(point) {
			point = started.Add(-time.Microsecond)
		}
	}
	return point
}

func NewID() string {
	return uuid.New().String()
}

// nextUpdatedAt keeps updated_at strictly increasing per record even when
// the wall clock does not move between two writes.
func nextUpdatedAt(prev, now time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Microsecond)
}

// BuildRow computes the full row written for a create (existing == nil) or
// an update of id within clubID. id, club_id and created_at of an existing
// record never change.
func BuildRow(kind catalog.Kind, existing *Record, clubID, id string, fields catalog.Fields, now time.Time) (catalog.Fields, Action, error) {
	schema := kind.Schema()
	var row catalog.Fields
	action := ActionCreated
	if existing == nil {
		row = schema.Defaults()
		for k, v := range fields {
			row[k] = v
		}
		row[catalog.ColCreatedAt] = now
		row[catalog.ColUpdatedAt] = now
		row[catalog.ColSyncVersion] = int64(1)
	} else {
		action = ActionUpdated
		row = existing.Fields.Clone()
		for k, v := range fields {
			if k == catalog.ColID || k == catalog.ColCreatedAt {
				continue
			}
			row[k] = v
		}
		row[catalog.ColUpdatedAt] = nextUpdatedAt(existing.UpdatedAt(), now)
		row[catalog.ColSyncVersion] = existing.Fields.Int(catalog.ColSyncVersion) + 1
	}
	row[catalog.ColID] = id
	row[catalog.ColClubID] = clubID
	if err := schema.Validate(row); err != nil {
		return nil, "", err
	}
	return row, action, nil
}
