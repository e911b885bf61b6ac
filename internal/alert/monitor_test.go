package alert

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"stock-target-bot/internal/marketdata"
	"stock-target-bot/internal/price"
	"stock-target-bot/internal/registry"
	"stock-target-bot/internal/types"
)

type noopStore struct{}

func (noopStore) LoadTargets() ([]types.Target, error) { return nil, nil }
func (noopStore) UpsertTarget(types.Target) error      { return nil }
func (noopStore) DeleteTarget(int64, string) error     { return nil }
func (noopStore) SaveAlertStates([]types.Target) error { return nil }

type scriptedProvider struct {
	mu         sync.Mutex
	prices     map[string]float64
	priceCalls map[string]int
}

func newScriptedProvider() *scriptedProvider {
	return &scriptedProvider{
		prices:     make(map[string]float64),
		priceCalls: make(map[string]int),
	}
}

func (p *scriptedProvider) CurrentPrice(_ context.Context, symbol string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.priceCalls[symbol]++
	v, ok := p.prices[symbol]
	if !ok {
		return 0, errors.Wrapf(marketdata.ErrUnavailable, "no price scripted for %s", symbol)
	}
	return v, nil
}

func (p *scriptedProvider) HistoricalBars(_ context.Context, symbol string, _ int) ([]types.Bar, error) {
	return nil, errors.Wrapf(marketdata.ErrUnavailable, "no history scripted for %s", symbol)
}

type sentMessage struct {
	ChatID int64
	Text   string
	Ref    types.MessageRef
}

type fakeNotifier struct {
	mu      sync.Mutex
	sends   []sentMessage
	deletes []types.MessageRef
	failing map[int64]bool
	nextID  int
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{failing: make(map[int64]bool)}
}

func (n *fakeNotifier) Send(chatID int64, text string) (types.MessageRef, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.failing[chatID] {
		return types.MessageRef{}, errors.Errorf("chat %d unreachable", chatID)
	}
	n.nextID++
	ref := types.MessageRef{ChatID: chatID, MessageID: n.nextID}
	n.sends = append(n.sends, sentMessage{ChatID: chatID, Text: text, Ref: ref})
	return ref, nil
}

func (n *fakeNotifier) Delete(ref types.MessageRef) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.deletes = append(n.deletes, ref)
	return nil
}

func (n *fakeNotifier) sentCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sends)
}

func newTestService(provider marketdata.Provider, notifier Notifier) (*Service, *registry.Registry) {
	reg := registry.New(noopStore{})
	// Zero TTL so every cycle observes the freshly scripted price.
	cache := price.NewCache(0)
	svc := NewService(Config{Interval: time.Minute}, reg, cache, provider, notifier)
	return svc, reg
}

func TestCycleApproachThenFire(t *testing.T) {
	provider := newScriptedProvider()
	notifier := newFakeNotifier()
	svc, reg := newTestService(provider, notifier)

	reg.Upsert(types.Target{
		OwnerID:     1,
		Symbol:      "AAPL",
		TargetPrice: 100,
		Condition:   types.AtOrBelow,
		ApproachPct: 5,
		Delivery:    types.DeliverDirect,
		CreatedAt:   time.Now().UTC(),
	})

	ctx := context.Background()

	// Price drifts down toward the target across three cycles.
	provider.prices["AAPL"] = 105
	svc.RunCycle(ctx)
	if len(notifier.sends) != 1 {
		t.Fatalf("expected 1 approach warning at 105, got %d sends", len(notifier.sends))
	}
	approachRef := notifier.sends[0].Ref

	provider.prices["AAPL"] = 102
	svc.RunCycle(ctx)
	if len(notifier.sends) != 1 {
		t.Fatalf("expected no second warning inside the band, got %d sends", len(notifier.sends))
	}

	provider.prices["AAPL"] = 100
	svc.RunCycle(ctx)
	if len(notifier.sends) != 2 {
		t.Fatalf("expected alert at 100, got %d sends", len(notifier.sends))
	}

	if len(notifier.deletes) != 1 || notifier.deletes[0] != approachRef {
		t.Errorf("expected the approach warning to be replaced, deletes: %v", notifier.deletes)
	}

	got, _ := reg.Get(1, "AAPL")
	if got.LiveMessage != notifier.sends[1].Ref {
		t.Errorf("live message should be the alert, got %+v", got.LiveMessage)
	}
}

func TestRepeatFiringKeepsOneLiveMessage(t *testing.T) {
	provider := newScriptedProvider()
	notifier := newFakeNotifier()
	svc, reg := newTestService(provider, notifier)

	reg.Upsert(types.Target{
		OwnerID:     1,
		Symbol:      "TSLA",
		TargetPrice: 200,
		Condition:   types.AtOrBelow,
		Delivery:    types.DeliverDirect,
		CreatedAt:   time.Now().UTC(),
	})

	ctx := context.Background()
	for _, p := range []float64{199, 195, 190} {
		provider.prices["TSLA"] = p
		svc.RunCycle(ctx)
	}

	if len(notifier.sends) != 3 {
		t.Fatalf("expected an alert per firing cycle, got %d sends", len(notifier.sends))
	}
	if len(notifier.deletes) != 2 {
		t.Fatalf("expected each refire to delete its predecessor, got %d deletes", len(notifier.deletes))
	}
	for i, ref := range notifier.deletes {
		if ref != notifier.sends[i].Ref {
			t.Errorf("delete %d removed %+v, want %+v", i, ref, notifier.sends[i].Ref)
		}
	}

	got, _ := reg.Get(1, "TSLA")
	if got.LiveMessage != notifier.sends[2].Ref {
		t.Errorf("expected the newest alert to be live, got %+v", got.LiveMessage)
	}
}

func TestSharedSymbolFetchedOnce(t *testing.T) {
	provider := newScriptedProvider()
	provider.prices["NVDA"] = 95
	notifier := newFakeNotifier()
	svc, reg := newTestService(provider, notifier)

	for _, owner := range []int64{1, 2} {
		reg.Upsert(types.Target{
			OwnerID:     owner,
			Symbol:      "NVDA",
			TargetPrice: 100,
			Condition:   types.AtOrBelow,
			Delivery:    types.DeliverDirect,
			CreatedAt:   time.Now().UTC(),
		})
	}

	svc.RunCycle(context.Background())

	if provider.priceCalls["NVDA"] != 1 {
		t.Errorf("expected one price fetch for the shared symbol, got %d", provider.priceCalls["NVDA"])
	}
	if len(notifier.sends) != 2 {
		t.Fatalf("expected both owners alerted, got %d sends", len(notifier.sends))
	}

	chats := map[int64]bool{}
	for _, s := range notifier.sends {
		chats[s.ChatID] = true
	}
	if !chats[1] || !chats[2] {
		t.Errorf("expected alerts in chats 1 and 2, got %v", chats)
	}
}

func TestDirectDeliveryFallsBackToBroadcast(t *testing.T) {
	provider := newScriptedProvider()
	provider.prices["AAPL"] = 99
	notifier := newFakeNotifier()
	notifier.failing[1] = true
	svc, reg := newTestService(provider, notifier)

	reg.Upsert(types.Target{
		OwnerID:         1,
		Symbol:          "AAPL",
		TargetPrice:     100,
		Condition:       types.AtOrBelow,
		Delivery:        types.DeliverDirect,
		BroadcastChatID: 777,
		CreatedAt:       time.Now().UTC(),
	})

	svc.RunCycle(context.Background())

	if len(notifier.sends) != 1 {
		t.Fatalf("expected one delivered alert, got %d", len(notifier.sends))
	}
	if notifier.sends[0].ChatID != 777 {
		t.Errorf("expected fallback delivery to chat 777, got %d", notifier.sends[0].ChatID)
	}

	got, _ := reg.Get(1, "AAPL")
	if got.LiveMessage.ChatID != 777 {
		t.Errorf("live message must record the fallback chat, got %+v", got.LiveMessage)
	}
}

func TestDeliveryFailureRetriedNextCycle(t *testing.T) {
	provider := newScriptedProvider()
	provider.prices["MSFT"] = 390
	notifier := newFakeNotifier()
	notifier.failing[1] = true
	svc, reg := newTestService(provider, notifier)

	reg.Upsert(types.Target{
		OwnerID:     1,
		Symbol:      "MSFT",
		TargetPrice: 400,
		Condition:   types.AtOrBelow,
		Delivery:    types.DeliverDirect,
		CreatedAt:   time.Now().UTC(),
	})

	svc.RunCycle(context.Background())

	if len(notifier.sends) != 0 {
		t.Fatalf("expected no delivery while the chat is unreachable, got %d", len(notifier.sends))
	}
	got, _ := reg.Get(1, "MSFT")
	if !got.LiveMessage.IsZero() {
		t.Errorf("failed delivery must leave the alert state untouched, got %+v", got.LiveMessage)
	}

	notifier.failing[1] = false
	svc.RunCycle(context.Background())

	if len(notifier.sends) != 1 {
		t.Fatalf("expected the alert on the next cycle, got %d sends", len(notifier.sends))
	}
	got, _ = reg.Get(1, "MSFT")
	if got.LiveMessage != notifier.sends[0].Ref {
		t.Errorf("expected the retried alert to become live, got %+v", got.LiveMessage)
	}
}

func TestStartEvaluatesImmediately(t *testing.T) {
	provider := newScriptedProvider()
	provider.prices["AAPL"] = 99
	notifier := newFakeNotifier()
	svc, reg := newTestService(provider, notifier)

	reg.Upsert(types.Target{
		OwnerID:     1,
		Symbol:      "AAPL",
		TargetPrice: 100,
		Condition:   types.AtOrBelow,
		Delivery:    types.DeliverDirect,
		CreatedAt:   time.Now().UTC(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Interval is one minute; only an immediate first cycle can deliver
	// within the deadline.
	svc.Start(ctx)

	deadline := time.After(2 * time.Second)
	for notifier.sentCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected an alert from the startup cycle")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestUnavailablePriceSkipsTarget(t *testing.T) {
	provider := newScriptedProvider()
	notifier := newFakeNotifier()
	svc, reg := newTestService(provider, notifier)

	reg.Upsert(types.Target{
		OwnerID:     1,
		Symbol:      "GONE",
		TargetPrice: 10,
		Condition:   types.AtOrBelow,
		Delivery:    types.DeliverDirect,
		CreatedAt:   time.Now().UTC(),
	})

	svc.RunCycle(context.Background())

	if len(notifier.sends) != 0 || len(notifier.deletes) != 0 {
		t.Errorf("expected no notifications without a price, got %d sends %d deletes",
			len(notifier.sends), len(notifier.deletes))
	}
	got, _ := reg.Get(1, "GONE")
	if !got.LiveMessage.IsZero() || got.ApproachSent {
		t.Errorf("skipped target must stay untouched, got %+v", got)
	}
}
