package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/presence/internal/adapters/mq/queue"
	worker "github.com/okian/presence/internal/adapters/mq/worker"
	model "github.com/okian/presence/internal/domain/model"
	logging "github.com/okian/presence/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing.
type mockQueue struct {
	eventChan chan queue.Event
}

func newMockQueue() *mockQueue {
	return &mockQueue{eventChan: make(chan queue.Event, 10)}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan queue.Event {
	return mq.eventChan
}

func (mq *mockQueue) Close() error {
	close(mq.eventChan)
	return nil
}

func (mq *mockQueue) addEvent(event queue.Event) { //nolint:gocritic // hugeParam: Event must be passed by value for channel semantics
	mq.eventChan <- event
}

type mockSource struct {
	mu      sync.Mutex
	records []model.AttendanceRecord
	err     error
	calls   int
	tokens  []string
}

func (ms *mockSource) AttendanceRecords(_ context.Context, token string) ([]model.AttendanceRecord, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.calls++
	ms.tokens = append(ms.tokens, token)
	return ms.records, ms.err
}

func (ms *mockSource) callCount() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.calls
}

type mockStore struct {
	mu   sync.Mutex
	puts map[string][]model.AttendanceRecord
}

func newMockStore() *mockStore {
	return &mockStore{puts: make(map[string][]model.AttendanceRecord)}
}

func (ms *mockStore) Put(_ context.Context, userID string, records []model.AttendanceRecord) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.puts[userID] = records
	return nil
}

func (ms *mockStore) get(userID string) ([]model.AttendanceRecord, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	r, ok := ms.puts[userID]
	return r, ok
}

type staticToken string

func (t staticToken) Token(context.Context) string { return string(t) }

func recognized(eventID, userID string) queue.Event {
	return model.OutcomeEvent{
		EventID: eventID,
		Outcome: model.Recognized(model.Recognition{UserID: userID, Name: "Ada", Similarity: 0.9}),
		TS:      time.Now(),
	}
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return false
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a new InMemoryWorker", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		source := &mockSource{records: []model.AttendanceRecord{
			{UserID: "u1", Status: "present"},
			{UserID: "u2", Status: "present"},
			{UserID: "u1", Status: "present"},
		}}
		store := newMockStore()

		convey.Convey("When creating a worker with custom options", func() {
			w := worker.NewInMemoryWorker(q, source, store, worker.WithName("records"), worker.WithLogger(logging.Nop()))

			convey.Convey("Then it should be created successfully", func() {
				convey.So(w, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When running a worker", func() {
			w := worker.NewInMemoryWorker(q, source, store, worker.WithTokenSource(staticToken("tok")))
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go w.Run(ctx)

			convey.Convey("And a recognized outcome arrives", func() {
				q.addEvent(recognized("event-1", "u1"))

				convey.Convey("Then the user's records are refreshed", func() {
					convey.So(eventually(func() bool { _, ok := store.get("u1"); return ok }), convey.ShouldBeTrue)
					recs, _ := store.get("u1")
					convey.So(recs, convey.ShouldHaveLength, 2)
					_, other := store.get("u2")
					convey.So(other, convey.ShouldBeFalse)
					convey.So(source.tokens[0], convey.ShouldEqual, "tok")
				})
			})

			convey.Convey("And only failures arrive", func() {
				q.addEvent(model.OutcomeEvent{EventID: "event-2", Outcome: model.Failed(model.FailureNetworkError, "")})
				q.addEvent(model.OutcomeEvent{EventID: "event-3", Outcome: model.NotRecognized()})
				q.addEvent(recognized("event-4", "u2"))

				convey.Convey("Then records are fetched once, for the recognized user", func() {
					convey.So(eventually(func() bool { _, ok := store.get("u2"); return ok }), convey.ShouldBeTrue)
					convey.So(source.callCount(), convey.ShouldEqual, 1)
				})
			})

			convey.Convey("And the records fetch fails", func() {
				source.mu.Lock()
				source.err = errors.New("backend down")
				source.mu.Unlock()
				q.addEvent(recognized("event-5", "u1"))
				q.addEvent(recognized("event-6", "u1"))

				convey.Convey("Then the worker keeps consuming", func() {
					convey.So(eventually(func() bool { return source.callCount() == 2 }), convey.ShouldBeTrue)
					_, ok := store.get("u1")
					convey.So(ok, convey.ShouldBeFalse)
				})
			})

			convey.Convey("And the worker is shut down", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
				defer shutdownCancel()

				convey.Convey("Then it stops cleanly", func() {
					convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
				})
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool over a real queue", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		source := &mockSource{records: []model.AttendanceRecord{{UserID: "u3"}}}
		store := newMockStore()
		pool := worker.NewPool(2, q, source, store)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.Convey("When an event is enqueued and the pool shut down", func() {
			convey.So(q.Enqueue(ctx, recognized("event-7", "u3")), convey.ShouldBeTrue)
			convey.So(eventually(func() bool { _, ok := store.get("u3"); return ok }), convey.ShouldBeTrue)
			convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)

			convey.Convey("Then the queue is closed", func() {
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})
}
