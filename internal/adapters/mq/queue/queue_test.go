package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/courtside/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func task(id string) Task {
	return model.GameTask{GameID: id, Raw: model.RawGame{GameID: id}}
}

func TestInMemoryQueueBasics(t *testing.T) {
	ctx := context.Background()

	Convey("Given a queue with capacity two", t, func() {
		q := NewInMemoryQueue(WithCapacity(2))
		So(q.Len(ctx), ShouldEqual, 0)

		Convey("When a game is enqueued and dequeued", func() {
			So(q.Enqueue(ctx, task("g1")), ShouldBeTrue)
			So(q.Len(ctx), ShouldEqual, 1)

			got := <-q.Dequeue(ctx)

			Convey("Then it arrives stamped with its enqueue time", func() {
				So(got.GameID, ShouldEqual, "g1")
				So(got.Enqueued.IsZero(), ShouldBeFalse)
				So(q.Len(ctx), ShouldEqual, 0)
			})
		})

		Convey("When the queue is full", func() {
			So(q.Enqueue(ctx, task("g1")), ShouldBeTrue)
			So(q.Enqueue(ctx, task("g2")), ShouldBeTrue)

			Convey("Then Enqueue refuses more games", func() {
				So(q.Enqueue(ctx, task("g3")), ShouldBeFalse)
				So(q.Len(ctx), ShouldEqual, 2)
			})

			Convey("Then EnqueueWait gives up when ctx ends", func() {
				wctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
				defer cancel()
				err := q.EnqueueWait(wctx, task("g3"))
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			})

			Convey("Then EnqueueWait succeeds once a slot frees up", func() {
				go func() {
					time.Sleep(10 * time.Millisecond)
					<-q.tasks
				}()
				So(q.EnqueueWait(ctx, task("g3")), ShouldBeNil)
			})
		})
	})
}

func TestInMemoryQueueConcurrentAccess(t *testing.T) {
	Convey("Given many producers and consumers", t, func() {
		ctx := context.Background()
		q := NewInMemoryQueue(WithCapacity(16))
		const producers, perProducer = 8, 50

		var wg sync.WaitGroup
		for i := 0; i < producers; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				for j := 0; j < perProducer; j++ {
					_ = q.EnqueueWait(ctx, task(fmt.Sprintf("g%d-%d", id, j)))
				}
			}(i)
		}

		seen := make(chan string, producers*perProducer)
		var consumers sync.WaitGroup
		for i := 0; i < 4; i++ {
			consumers.Add(1)
			go func() {
				defer consumers.Done()
				for t := range q.Dequeue(ctx) {
					seen <- t.GameID
				}
			}()
		}

		wg.Wait()
		So(q.Close(), ShouldBeNil)
		consumers.Wait()
		close(seen)

		Convey("Then every game is delivered exactly once", func() {
			ids := make(map[string]int)
			for id := range seen {
				ids[id]++
			}
			So(ids, ShouldHaveLength, producers*perProducer)
			for _, n := range ids {
				So(n, ShouldEqual, 1)
			}
		})
	})
}

func TestInMemoryQueueClose(t *testing.T) {
	Convey("Given a queue holding games", t, func() {
		ctx := context.Background()
		q := NewInMemoryQueue(WithCapacity(10))
		So(q.Enqueue(ctx, task("g1")), ShouldBeTrue)
		So(q.Enqueue(ctx, task("g2")), ShouldBeTrue)
		So(q.IsClosed(), ShouldBeFalse)

		So(q.Close(), ShouldBeNil)

		Convey("Then new games are refused", func() {
			So(q.IsClosed(), ShouldBeTrue)
			So(q.Enqueue(ctx, task("g3")), ShouldBeFalse)
			So(errors.Is(q.EnqueueWait(ctx, task("g3")), ErrClosed), ShouldBeTrue)
		})

		Convey("Then queued games drain before the channel closes", func() {
			var ids []string
			for t := range q.Dequeue(ctx) {
				ids = append(ids, t.GameID)
			}
			So(ids, ShouldResemble, []string{"g1", "g2"})
		})

		Convey("Then closing twice is harmless", func() {
			So(q.Close(), ShouldBeNil)
		})
	})
}
