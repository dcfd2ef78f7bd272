package firestore

import (
	"context"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/seabird-lab/beacon/pkg/domain/interfaces"
	"github.com/seabird-lab/beacon/pkg/domain/model"
	"github.com/seabird-lab/beacon/pkg/domain/types"
	"github.com/seabird-lab/beacon/pkg/utils/logging"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const attentionCollection = "attention_events"

type attentionRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.AttentionRepository = &attentionRepository{}

func newAttentionRepository(client *firestore.Client) *attentionRepository {
	return &attentionRepository{client: client}
}

// attentionDoc is the Firestore persistence model
type attentionDoc struct {
	ID         string    `firestore:"id"`
	SenderID   string    `firestore:"sender_id"`
	ReceiverID string    `firestore:"receiver_id"`
	Message    string    `firestore:"message"`
	CreatedAt  time.Time `firestore:"created_at"`
}

func (r *attentionRepository) collection() *firestore.CollectionRef {
	if r.collectionPrefix != "" {
		return r.client.Collection(r.collectionPrefix + "_" + attentionCollection)
	}
	return r.client.Collection(attentionCollection)
}

func toAttentionDoc(ev *model.AttentionEvent) *attentionDoc {
	return &attentionDoc{
		ID:         string(ev.ID),
		SenderID:   string(ev.SenderID),
		ReceiverID: string(ev.ReceiverID),
		Message:    ev.Message,
		CreatedAt:  ev.CreatedAt,
	}
}

func fromAttentionDoc(doc *attentionDoc) model.AttentionEvent {
	return model.AttentionEvent{
		ID:         types.EventID(doc.ID),
		SenderID:   types.UserID(doc.SenderID),
		ReceiverID: types.UserID(doc.ReceiverID),
		Message:    doc.Message,
		CreatedAt:  doc.CreatedAt,
	}
}

// Create persists the event. Create (not Set) so an ID collision fails loudly
// instead of silently overwriting a delivered event.
func (r *attentionRepository) Create(ctx context.Context, ev *model.AttentionEvent) (*model.AttentionEvent, error) {
	if err := ev.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid attention event")
	}

	if _, err := r.collection().Doc(string(ev.ID)).Create(ctx, toAttentionDoc(ev)); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return nil, goerr.New("attention event already exists", goerr.V("id", ev.ID))
		}
		return nil, goerr.Wrap(types.ErrRemote, "failed to create attention event",
			goerr.V("id", ev.ID), goerr.V("cause", err.Error()))
	}

	stored := *ev
	return &stored, nil
}

// PurgeBefore deletes events created before cutoff, in query-limited batches.
func (r *attentionRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	const batchSize = 500
	purged := 0

	for {
		query := r.collection().Where("created_at", "<", cutoff).Limit(batchSize)

		it := query.Documents(ctx)
		bulkWriter := r.client.BulkWriter(ctx)
		count := 0

		for {
			doc, err := it.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				it.Stop()
				bulkWriter.End()
				return purged, goerr.Wrap(types.ErrRemote, "failed to list expired attention events",
					goerr.V("cause", err.Error()))
			}

			if _, err := bulkWriter.Delete(doc.Ref); err != nil {
				it.Stop()
				bulkWriter.End()
				return purged, goerr.Wrap(types.ErrRemote, "failed to delete expired attention event",
					goerr.V("cause", err.Error()))
			}
			count++
		}
		it.Stop()
		bulkWriter.End()

		purged += count
		if count < batchSize {
			return purged, nil
		}
	}
}

// Subscribe listens for events addressed to the receiver that are created
// after the subscription starts. The created_at lower bound keeps old events
// from replaying into a fresh session.
func (r *attentionRepository) Subscribe(ctx context.Context, receiverID types.UserID) (interfaces.AttentionSubscription, error) {
	if err := receiverID.Validate(); err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := &eventSubscription{
		ch:     make(chan model.AttentionEvent, subscriptionBuffer),
		cancel: cancel,
	}

	query := r.collection().
		Where("receiver_id", "==", string(receiverID)).
		Where("created_at", ">", time.Now())

	go func() {
		defer sub.finish()

		it := query.Snapshots(subCtx)
		defer it.Stop()

		for {
			snap, err := it.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled {
					logging.Default().Warn("attention subscription lost",
						"receiver_id", receiverID,
						"error", goerr.Wrap(types.ErrSubscriptionLost, err.Error()).Error())
				}
				return
			}

			for _, change := range snap.Changes {
				if change.Kind != firestore.DocumentAdded {
					continue
				}

				var ad attentionDoc
				if err := change.Doc.DataTo(&ad); err != nil {
					logging.Default().Warn("skipping malformed attention document",
						"doc_id", change.Doc.Ref.ID, "error", err.Error())
					continue
				}
				sub.deliver(fromAttentionDoc(&ad))
			}
		}
	}()

	return sub, nil
}

type eventSubscription struct {
	mu     sync.Mutex
	closed bool
	done   bool
	ch     chan model.AttentionEvent
	cancel context.CancelFunc
}

func (s *eventSubscription) Events() <-chan model.AttentionEvent {
	return s.ch
}

func (s *eventSubscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
}

func (s *eventSubscription) deliver(ev model.AttentionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.done {
		return
	}
	select {
	case s.ch <- ev:
	default:
		logging.Default().Warn("attention subscription buffer full, dropping event",
			"event_id", ev.ID, "receiver_id", ev.ReceiverID)
	}
}

func (s *eventSubscription) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	close(s.ch)
}
