package notify

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"

	"flash_promo/internal/clock"
	"flash_promo/internal/eligibility"
	"flash_promo/internal/model"
	"flash_promo/internal/store"
	"flash_promo/internal/tasks"
	"flash_promo/internal/testutil"
)

type recordingDispatcher struct {
	mu    sync.Mutex
	calls [][]int64
	err   error
	delay time.Duration
}

func (d *recordingDispatcher) Dispatch(_ context.Context, _ uint, userIDs []int64) error {
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, append([]int64(nil), userIDs...))
	return d.err
}

func (d *recordingDispatcher) users() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []int64
	for _, c := range d.calls {
		out = append(out, c...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type fullQueue struct{}

func (fullQueue) Enqueue(context.Context, tasks.Job) error { return tasks.ErrQueueFull }

var t0 = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store *store.Store
	clock *clock.Manual
	promo model.FlashPromo
	disp  *recordingDispatcher
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	s := testutil.NewStore(t)
	sp := testutil.InsertStoreProduct(t, ctx, s, 10, "3.50")
	promo := testutil.InsertPromo(t, ctx, s, sp.ID, model.PromoActive, t0.Add(-time.Minute), t0.Add(48*time.Hour))

	testutil.InsertProfile(t, ctx, s, 1, testutil.NearLat, testutil.NearLon, true, false)
	testutil.InsertProfile(t, ctx, s, 2, testutil.NearLat, testutil.NearLon, false, true)
	testutil.InsertProfile(t, ctx, s, 3, testutil.NearLat, testutil.NearLon, false, false)
	testutil.InsertProfile(t, ctx, s, 4, testutil.FarLat, testutil.FarLon, true, true)
	testutil.InsertProfile(t, ctx, s, 5, testutil.StoreLat, testutil.StoreLon, true, true)

	return fixture{store: s, clock: clock.NewManual(t0), promo: promo, disp: &recordingDispatcher{}}
}

func (fx fixture) fanOut(batchSize int) *FanOut {
	reg := tasks.NewRegistry()
	f := NewFanOut(fx.store, eligibility.NewFilter(fx.store, fx.clock, 0), fx.disp, tasks.NewInline(reg), fx.clock, batchSize)
	reg.Register(tasks.JobSendPushBatch, func(ctx context.Context, job tasks.Job) error {
		var p tasks.SendPushBatchPayload
		if err := job.Decode(&p); err != nil {
			return err
		}
		return f.SendPushBatch(ctx, p.PromoID, p.UserIDs)
	})
	return f
}

func TestFanOut_NotifyPromoIsIdempotentPerDay(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	f := fx.fanOut(2)

	n, err := f.NotifyPromo(ctx, fx.promo.ID)
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 eligible users, got %d", n)
	}
	if len(fx.disp.calls) != 2 {
		t.Fatalf("expected 2 batches of size <= 2, got %d", len(fx.disp.calls))
	}

	n, err = f.NotifyPromo(ctx, fx.promo.ID)
	if err != nil {
		t.Fatalf("second notify: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected nobody left to notify, got %d", n)
	}
	if got := fx.disp.users(); !reflect.DeepEqual(got, []int64{1, 2, 5}) {
		t.Fatalf("expected users [1 2 5] pushed exactly once, got %v", got)
	}

	date := model.DateKey(t0)
	logs, err := fx.store.CountNotificationLogs(ctx, fx.promo.ID, date)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if logs != 3 {
		t.Fatalf("expected 3 notification logs, got %d", logs)
	}

	// next UTC day everybody is eligible again
	fx.clock.Advance(24 * time.Hour)
	n, err = f.NotifyActivePromos(ctx)
	if err != nil {
		t.Fatalf("notify active: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 users the next day, got %d", n)
	}
}

func TestFanOut_SkipsInactivePromo(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	sp := fx.promo.StoreProduct
	scheduled := testutil.InsertPromo(t, ctx, fx.store, sp.ID, model.PromoScheduled, t0.Add(time.Hour), t0.Add(2*time.Hour))

	n, err := fx.fanOut(0).NotifyPromo(ctx, scheduled.ID)
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if n != 0 || len(fx.disp.calls) != 0 {
		t.Fatalf("expected no dispatch for SCHEDULED promo, got n=%d calls=%d", n, len(fx.disp.calls))
	}

	if _, err := fx.fanOut(0).NotifyPromo(ctx, 999); !errors.Is(err, model.ErrPromoNotFound) {
		t.Fatalf("expected ErrPromoNotFound, got %v", err)
	}
}

func TestFanOut_DispatchFailureStillLogs(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.disp.err = errors.New("push gateway down")

	if err := fx.fanOut(0).SendPushBatch(ctx, fx.promo.ID, []int64{1, 2}); err != nil {
		t.Fatalf("send batch: %v", err)
	}
	n, _ := fx.store.CountNotificationLogs(ctx, fx.promo.ID, model.DateKey(t0))
	if n != 2 {
		t.Fatalf("expected logs written despite dispatch error, got %d", n)
	}

	// redelivered batch skips users already logged today
	fx.disp.err = nil
	if err := fx.fanOut(0).SendPushBatch(ctx, fx.promo.ID, []int64{1, 2, 5}); err != nil {
		t.Fatalf("resend batch: %v", err)
	}
	last := fx.disp.calls[len(fx.disp.calls)-1]
	if !reflect.DeepEqual(last, []int64{5}) {
		t.Fatalf("expected only user 5 resent, got %v", last)
	}
}

func TestFanOut_ConcurrentRunsSendOnce(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.disp.delay = 50 * time.Millisecond
	f := fx.fanOut(2)

	audience := []int64{1, 2, 5}
	var wg sync.WaitGroup
	errs := make(chan error, 4)
	run := func(fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- fn()
		}()
	}
	run(func() error { return f.SendPushBatch(ctx, fx.promo.ID, audience) })
	run(func() error { return f.SendPushBatch(ctx, fx.promo.ID, audience) })
	run(func() error {
		_, err := f.NotifyPromo(ctx, fx.promo.ID)
		return err
	})
	run(func() error {
		_, err := f.NotifyActivePromos(ctx)
		return err
	})
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("fan-out: %v", err)
		}
	}

	if got := fx.disp.users(); !reflect.DeepEqual(got, audience) {
		t.Fatalf("expected each of %v pushed exactly once, got %v", audience, got)
	}
	n, err := fx.store.CountNotificationLogs(ctx, fx.promo.ID, model.DateKey(t0))
	if err != nil || n != 3 {
		t.Fatalf("expected 3 logs, got n=%d err=%v", n, err)
	}
}

func TestFanOut_QueueFullSendsDirectly(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	f := NewFanOut(fx.store, eligibility.NewFilter(fx.store, fx.clock, 0), fx.disp, fullQueue{}, fx.clock, 1)

	n, err := f.NotifyPromo(ctx, fx.promo.ID)
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 users, got %d", n)
	}
	if got := fx.disp.users(); !reflect.DeepEqual(got, []int64{1, 2, 5}) {
		t.Fatalf("expected direct sends to cover [1 2 5], got %v", got)
	}
}

func TestBatches(t *testing.T) {
	ids := []int64{1, 2, 3, 4, 5}
	got := Batches(ids, 2)
	want := [][]int64{{1, 2}, {3, 4}, {5}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if len(Batches(nil, 2)) != 0 {
		t.Fatalf("expected no batches for empty input")
	}
	if len(Batches(make([]int64, 2500), 0)) != 3 {
		t.Fatalf("expected default batch size of 1000")
	}
}
