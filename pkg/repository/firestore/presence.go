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
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	presenceCollection = "presence"

	// Firestore limits: GetAll document references and "in" query operands
	// are both capped at 30 values, so bulk reads and watches are chunked.
	firestoreBatchLimit = 30

	subscriptionBuffer = 64
)

type presenceRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.PresenceRepository = &presenceRepository{}

func newPresenceRepository(client *firestore.Client) *presenceRepository {
	return &presenceRepository{client: client}
}

// presenceDoc is the Firestore persistence model
type presenceDoc struct {
	ID       string    `firestore:"id"`
	Status   string    `firestore:"status"`
	LastSeen time.Time `firestore:"last_seen"`
}

func (r *presenceRepository) collection() *firestore.CollectionRef {
	if r.collectionPrefix != "" {
		return r.client.Collection(r.collectionPrefix + "_" + presenceCollection)
	}
	return r.client.Collection(presenceCollection)
}

func toPresenceDoc(rec *model.PresenceRecord) *presenceDoc {
	return &presenceDoc{
		ID:       string(rec.UserID),
		Status:   string(rec.Status),
		LastSeen: rec.LastSeen,
	}
}

func fromPresenceDoc(doc *presenceDoc) model.PresenceRecord {
	return model.PresenceRecord{
		UserID:   types.UserID(doc.ID),
		Status:   types.PresenceStatus(doc.Status),
		LastSeen: doc.LastSeen,
	}
}

// Report upserts the caller's presence document. The document ID is the user
// ID, so repeated reports overwrite in place.
func (r *presenceRepository) Report(ctx context.Context, rec *model.PresenceRecord) error {
	if err := rec.UserID.Validate(); err != nil {
		return err
	}

	if _, err := r.collection().Doc(string(rec.UserID)).Set(ctx, toPresenceDoc(rec)); err != nil {
		return goerr.Wrap(types.ErrRemote, "failed to report presence",
			goerr.V("user_id", rec.UserID), goerr.V("cause", err.Error()))
	}
	return nil
}

// GetMany batch-reads presence documents, chunked to the GetAll limit.
// Missing documents read as offline.
func (r *presenceRepository) GetMany(ctx context.Context, ids []types.UserID) (map[types.UserID]model.PresenceRecord, error) {
	result := make(map[types.UserID]model.PresenceRecord, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	for i := 0; i < len(ids); i += firestoreBatchLimit {
		end := i + firestoreBatchLimit
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[i:end]

		refs := make([]*firestore.DocumentRef, len(batch))
		for j, id := range batch {
			refs[j] = r.collection().Doc(string(id))
		}

		docs, err := r.client.GetAll(ctx, refs)
		if err != nil {
			return nil, goerr.Wrap(types.ErrRemote, "failed to batch get presence",
				goerr.V("count", len(batch)), goerr.V("cause", err.Error()))
		}

		for idx, doc := range docs {
			if !doc.Exists() {
				result[batch[idx]] = model.Offline(batch[idx])
				continue
			}

			var pd presenceDoc
			if err := doc.DataTo(&pd); err != nil {
				return nil, goerr.Wrap(err, "failed to unmarshal presence record", goerr.V("id", batch[idx]))
			}
			result[batch[idx]] = fromPresenceDoc(&pd)
		}
	}

	return result, nil
}

// Watch runs one snapshot listener per chunk of watched IDs and merges their
// change streams into a single subscription.
func (r *presenceRepository) Watch(ctx context.Context, ids []types.UserID) (interfaces.PresenceSubscription, error) {
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := &watchSubscription{
		ch:     make(chan model.PresenceRecord, subscriptionBuffer),
		cancel: cancel,
	}

	eg, egCtx := errgroup.WithContext(watchCtx)
	for i := 0; i < len(ids); i += firestoreBatchLimit {
		end := i + firestoreBatchLimit
		if end > len(ids) {
			end = len(ids)
		}
		chunk := make([]string, 0, end-i)
		for _, id := range ids[i:end] {
			chunk = append(chunk, string(id))
		}

		query := r.collection().Where("id", "in", chunk)
		eg.Go(func() error {
			return r.listen(egCtx, query, sub)
		})
	}

	go func() {
		if err := eg.Wait(); err != nil && status.Code(err) != codes.Canceled {
			// The transport gave up. Not surfaced as an error: readers
			// degrade to TTL staleness and recover on the next watch.
			logging.Default().Warn("presence watch lost",
				"error", goerr.Wrap(types.ErrSubscriptionLost, err.Error()).Error())
		}
		sub.finish()
	}()

	return sub, nil
}

func (r *presenceRepository) listen(ctx context.Context, query firestore.Query, sub *watchSubscription) error {
	it := query.Snapshots(ctx)
	defer it.Stop()

	for {
		snap, err := it.Next()
		if err != nil {
			return err
		}

		for _, change := range snap.Changes {
			if change.Kind != firestore.DocumentAdded && change.Kind != firestore.DocumentModified {
				continue
			}

			var pd presenceDoc
			if err := change.Doc.DataTo(&pd); err != nil {
				logging.Default().Warn("skipping malformed presence document",
					"doc_id", change.Doc.Ref.ID, "error", err.Error())
				continue
			}
			sub.deliver(fromPresenceDoc(&pd))
		}
	}
}

// watchSubscription fans in chunked snapshot listeners. Close cancels the
// listener context; deliveries racing with Close are dropped.
type watchSubscription struct {
	mu     sync.Mutex
	closed bool
	done   bool
	ch     chan model.PresenceRecord
	cancel context.CancelFunc
}

func (s *watchSubscription) Updates() <-chan model.PresenceRecord {
	return s.ch
}

func (s *watchSubscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
}

func (s *watchSubscription) deliver(rec model.PresenceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.done {
		return
	}
	select {
	case s.ch <- rec:
	default:
		logging.Default().Warn("presence subscription buffer full, dropping update",
			"user_id", rec.UserID)
	}
}

func (s *watchSubscription) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	close(s.ch)
}
