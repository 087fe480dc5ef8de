package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/novaclub/club-sync/catalog"
	"github.com/novaclub/club-sync/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pulledRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clubsync_pulled_records_total",
		Help: "Records returned by pull, per entity.",
	}, []string{"entity"})
	pushOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clubsync_push_outcomes_total",
		Help: "Pushed records per entity and outcome.",
	}, []string{"entity", "outcome"})
)

type ChangeRecord struct {
	ID        string         `json:"id"`
	Data      map[string]any `json:"data"`
	UpdatedAt string         `json:"updated_at"`
}

type PushRecord struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

// Outcome reports what happened to one pushed record. Action is set on
// success, Error on failure.
type Outcome struct {
	Entity string `json:"entity"`
	ID     string `json:"id"`
	Action string `json:"action,omitempty"`
	Error  string `json:"error,omitempty"`
}

type Results struct {
	Success []Outcome `json:"success"`
	Errors  []Outcome `json:"errors"`
}

type PullResult struct {
	Changes       map[string][]ChangeRecord `json:"changes"`
	SyncTimestamp string                    `json:"sync_timestamp"`
}

type PushResult struct {
	Results       Results `json:"results"`
	SyncTimestamp string  `json:"sync_timestamp"`
}

// Applied describes a record written by a push.
type Applied struct {
	Kind      catalog.Kind
	ID        string
	Action    store.Action
	UpdatedAt time.Time
}

type Syncer struct {
	storage   store.SyncStorage
	onApplied func(clubID string, applied Applied)
}

func New(storage store.SyncStorage) *Syncer {
	return &Syncer{storage: storage}
}

// OnApplied registers fn to be called after every record a push commits.
func (s *Syncer) OnApplied(fn func(clubID string, applied Applied)) {
	s.onApplied = fn
}

// Pull returns, for every registered entity, the club's records changed
// after the entity's watermark. A missing or unparsable watermark selects
// every record of the entity.
func (s *Syncer) Pull(ctx context.Context, clubID string, watermarks map[string]*string) (*PullResult, error) {
	if clubID == "" {
		return nil, ErrNoTenant
	}
	syncTime := store.SyncPoint()
	result := &PullResult{
		Changes:       make(map[string][]ChangeRecord, len(catalog.Kinds())),
		SyncTimestamp: catalog.FormatTimestamp(syncTime),
	}
	for _, kind := range catalog.Kinds() {
		since := watermark(watermarks, kind.Name())
		records, err := s.storage.ListChanges(ctx, kind, clubID, since)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s changes: %w", kind, err)
		}
		schema := kind.Schema()
		changes := make([]ChangeRecord, len(records))
		for i, r := range records {
			changes[i] = ChangeRecord{
				ID:        r.ID,
				Data:      schema.Encode(r.Fields),
				UpdatedAt: catalog.FormatTimestamp(r.UpdatedAt()),
			}
		}
		result.Changes[kind.Name()] = changes
		pulledRecords.WithLabelValues(kind.Name()).Add(float64(len(changes)))
	}
	return result, nil
}

func watermark(watermarks map[string]*string, name string) *time.Time {
	raw, ok := watermarks[name]
	if !ok || raw == nil {
		return nil
	}
	t, ok := catalog.ParseTimestamp(*raw)
	if !ok {
		return nil
	}
	return &t
}

// Push applies every record of every recognized entity group, each in its
// own transaction. A failing record is reported in the errors outcome and
// does not affect the others. Only a store failure aborts the request.
func (s *Syncer) Push(ctx context.Context, clubID string, changes map[string][]PushRecord) (*PushResult, error) {
	if clubID == "" {
		return nil, ErrNoTenant
	}
	syncTime := store.SyncPoint()
	result := &PushResult{
		Results: Results{
			Success: make([]Outcome, 0),
			Errors:  make([]Outcome, 0),
		},
		SyncTimestamp: catalog.FormatTimestamp(syncTime),
	}
	for name := range changes {
		if _, ok := catalog.Resolve(name); !ok {
			log.Printf("push: skipping unknown entity %q (%v records)", name, len(changes[name]))
		}
	}
	for _, kind := range catalog.Kinds() {
		records, ok := changes[kind.Name()]
		if !ok {
			continue
		}
		for _, r := range records {
			applied, err := s.apply(ctx, kind, clubID, r)
			if errors.Is(err, store.ErrUnavailable) {
				return nil, err
			}
			if err != nil {
				result.Results.Errors = append(result.Results.Errors, Outcome{
					Entity: kind.Name(),
					ID:     r.ID,
					Error:  err.Error(),
				})
				pushOutcomes.WithLabelValues(kind.Name(), "error").Inc()
				continue
			}
			result.Results.Success = append(result.Results.Success, Outcome{
				Entity: kind.Name(),
				ID:     r.ID,
				Action: string(applied.Action),
			})
			pushOutcomes.WithLabelValues(kind.Name(), string(applied.Action)).Inc()
			if s.onApplied != nil {
				s.onApplied(clubID, *applied)
			}
		}
	}
	return result, nil
}

func (s *Syncer) apply(ctx context.Context, kind catalog.Kind, clubID string, r PushRecord) (*Applied, error) {
	if r.ID == "" {
		return nil, ErrMissingID
	}
	fields, err := kind.Schema().Coerce(r.Data)
	if err != nil {
		return nil, err
	}
	// the caller's club always wins over whatever the client sent
	fields[catalog.ColClubID] = clubID
	record, action, err := s.storage.SetRecord(ctx, kind, clubID, r.ID, fields, store.Upsert)
	if err != nil {
		return nil, err
	}
	return &Applied{Kind: kind, ID: record.ID, Action: action, UpdatedAt: record.UpdatedAt()}, nil
}
