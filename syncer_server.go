package main

import (
	"context"
	"errors"
	"log"
	"sync/atomic"

	"github.com/novaclub/club-sync/catalog"
	"github.com/novaclub/club-sync/middleware"
	"github.com/novaclub/club-sync/proto"
	"github.com/novaclub/club-sync/store"
	"github.com/novaclub/club-sync/syncer"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const subscriptionBuffer = 64

type changeRecordEvent struct {
	clubID string
	notice *proto.ChangeNotice
}

type PersistentSyncerServer struct {
	proto.UnimplementedSyncerServer
	syncer        *syncer.Syncer
	eventsManager *eventsManager
}

func NewPersistentSyncerServer(storage store.SyncStorage) *PersistentSyncerServer {
	s := &PersistentSyncerServer{
		syncer:        syncer.New(storage),
		eventsManager: newEventsManager(),
	}
	s.syncer.OnApplied(s.NotifyChange)
	return s
}

func (s *PersistentSyncerServer) Start(quitChan chan struct{}) {
	s.eventsManager.start(quitChan)
}

func (s *PersistentSyncerServer) Syncer() *syncer.Syncer {
	return s.syncer
}

// NotifyChange forwards a written record to the club's TrackChanges streams.
func (s *PersistentSyncerServer) NotifyChange(clubID string, applied syncer.Applied) {
	s.eventsManager.notifyChange(clubID, &proto.ChangeNotice{
		Entity:    applied.Kind.Name(),
		Id:        applied.ID,
		Action:    string(applied.Action),
		UpdatedAt: catalog.FormatTimestamp(applied.UpdatedAt),
	})
}

func clubFromContext(ctx context.Context) (string, error) {
	principal, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, middleware.ErrMissingToken.Error())
	}
	return principal.ClubID, nil
}

func toStatus(err error) error {
	if errors.Is(err, syncer.ErrNoTenant) {
		return status.Error(codes.Unauthenticated, err.Error())
	}
	log.Printf("sync request failed: %v", err)
	return status.Error(codes.Internal, err.Error())
}

func (s *PersistentSyncerServer) Pull(ctx context.Context, msg *proto.PullRequest) (*proto.PullReply, error) {
	clubID, err := clubFromContext(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.syncer.Pull(ctx, clubID, msg.GetWatermarks())
	if err != nil {
		return nil, toStatus(err)
	}
	reply := &proto.PullReply{
		Changes:       make(map[string][]*proto.Change, len(res.Changes)),
		SyncTimestamp: res.SyncTimestamp,
	}
	for entity, changes := range res.Changes {
		records := make([]*proto.Change, len(changes))
		for i, c := range changes {
			records[i] = &proto.Change{
				Id:        c.ID,
				Data:      c.Data,
				UpdatedAt: c.UpdatedAt,
			}
		}
		reply.Changes[entity] = records
	}
	return reply, nil
}

func (s *PersistentSyncerServer) Push(ctx context.Context, msg *proto.PushRequest) (*proto.PushReply, error) {
	clubID, err := clubFromContext(ctx)
	if err != nil {
		return nil, err
	}
	changes := make(map[string][]syncer.PushRecord, len(msg.GetChanges()))
	for entity, records := range msg.GetChanges() {
		list := make([]syncer.PushRecord, len(records))
		for i, r := range records {
			// a null entry still counts as a submitted record and fails on
			// its missing id
			if r != nil {
				list[i] = syncer.PushRecord{ID: r.Id, Data: r.Data}
			}
		}
		changes[entity] = list
	}
	res, err := s.syncer.Push(ctx, clubID, changes)
	if err != nil {
		return nil, toStatus(err)
	}
	return &proto.PushReply{
		Results: &proto.PushResults{
			Success: toOutcomes(res.Results.Success),
			Errors:  toOutcomes(res.Results.Errors),
		},
		SyncTimestamp: res.SyncTimestamp,
	}, nil
}

func toOutcomes(outcomes []syncer.Outcome) []*proto.Outcome {
	out := make([]*proto.Outcome, len(outcomes))
	for i, o := range outcomes {
		out[i] = &proto.Outcome{Entity: o.Entity, Id: o.ID, Action: o.Action, Error: o.Error}
	}
	return out
}

func (s *PersistentSyncerServer) TrackChanges(request *proto.TrackChangesRequest, stream proto.Syncer_TrackChangesServer) error {
	context := stream.Context()
	clubID, err := clubFromContext(context)
	if err != nil {
		return err
	}

	subscription := s.eventsManager.subscribe(clubID)
	defer s.eventsManager.unsubscribe(clubID, subscription.id)
	for {
		select {
		case event, ok := <-subscription.eventsChan:
			if !ok {
				return nil
			}

			if err := stream.Send(event.notice); err != nil {
				return err
			}

		case <-context.Done():
			return nil
		}
	}
}

type notifyChange struct {
	clubID string
	notice *proto.ChangeNotice
}

type unsubscribe struct {
	clubID string
	id     int64
}

type subscription struct {
	id         int64
	clubID     string
	eventsChan chan *changeRecordEvent
}

// eventsManager fans change notices out to the subscriptions of a club. All
// state is owned by the goroutine started in start.
type eventsManager struct {
	globalIDs atomic.Int64
	streams   map[string][]*subscription
	msgChan   chan interface{}
	quitChan  chan struct{}
}

func newEventsManager() *eventsManager {
	return &eventsManager{
		streams: make(map[string][]*subscription),
		msgChan: make(chan interface{}),
	}
}

func (c *eventsManager) start(quitChan chan struct{}) {
	c.quitChan = quitChan
	go func() {
		for {
			select {
			case msg := <-c.msgChan:
				switch s := msg.(type) {
				case *subscription:
					c.streams[s.clubID] = append(c.streams[s.clubID], s)
				case *unsubscribe:
					var newSubs []*subscription
					for _, sub := range c.streams[s.clubID] {
						if sub.id != s.id {
							newSubs = append(newSubs, sub)
							continue
						}
						close(sub.eventsChan)
					}
					delete(c.streams, s.clubID)
					if len(newSubs) > 0 {
						c.streams[s.clubID] = newSubs
					}
				case *notifyChange:
					for _, sub := range c.streams[s.clubID] {
						select {
						case sub.eventsChan <- &changeRecordEvent{clubID: s.clubID, notice: s.notice}:
						default:
							log.Printf("dropping change notice for subscription %v of club %v", sub.id, s.clubID)
						}
					}
				}

			case <-quitChan:
				return
			}
		}
	}()
}

// send hands msg to the manager goroutine unless it has been stopped.
func (c *eventsManager) send(msg interface{}) {
	select {
	case c.msgChan <- msg:
	case <-c.quitChan:
	}
}

func (c *eventsManager) notifyChange(clubID string, notice *proto.ChangeNotice) {
	c.send(&notifyChange{clubID: clubID, notice: notice})
}

func (c *eventsManager) subscribe(clubID string) *subscription {
	eventsChan := make(chan *changeRecordEvent, subscriptionBuffer)
	s := &subscription{clubID: clubID, eventsChan: eventsChan, id: c.globalIDs.Add(1)}
	c.send(s)
	return s
}

func (c *eventsManager) unsubscribe(clubID string, id int64) {
	c.send(&unsubscribe{clubID: clubID, id: id})
}
