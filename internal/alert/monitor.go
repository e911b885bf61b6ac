// Package alert runs the recurring evaluation of price targets: fetch
// prices, walk the per-target state machine and manage the lifecycle of
// sent notifications (at most one live message per target).
package alert

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"stock-target-bot/internal/levels"
	"stock-target-bot/internal/marketdata"
	"stock-target-bot/internal/price"
	"stock-target-bot/internal/registry"
	"stock-target-bot/internal/types"
)

// Notifier is the delivery collaborator. Send returns a handle that a
// later cycle can Delete; Delete on an already-removed message must
// return nil.
type Notifier interface {
	Send(chatID int64, text string) (types.MessageRef, error)
	Delete(ref types.MessageRef) error
}

type Config struct {
	Interval             time.Duration
	HistoryDays          int
	FibLookback          int
	MaxConcurrentFetches int
	RequestTimeout       time.Duration
}

type Service struct {
	cfg      Config
	registry *registry.Registry
	prices   *price.Cache
	provider marketdata.Provider
	notifier Notifier

	// Serializes cycles so a slow one is never overlapped by the next.
	cycleMutex sync.Mutex
}

func NewService(cfg Config, reg *registry.Registry, prices *price.Cache,
	provider marketdata.Provider, notifier Notifier) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = 90
	}
	if cfg.MaxConcurrentFetches <= 0 {
		cfg.MaxConcurrentFetches = 4
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	return &Service{
		cfg:      cfg,
		registry: reg,
		prices:   prices,
		provider: provider,
		notifier: notifier,
	}
}

// Start launches the monitoring loop. The first evaluation runs right
// away so a restart never delays alerts by a full interval; the loop
// stops when ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		s.RunCycle(ctx)

		for {
			select {
			case <-ctx.Done():
				log.Debug("monitoring loop stopped")
				return
			case <-ticker.C:
				s.RunCycle(ctx)
			}
		}
	}()
	log.Infof("🚀 Monitoring loop started, checking every %s", s.cfg.Interval)
}

// RunCycle evaluates every registered target once. Failures inside one
// target never abort the cycle; everything transient is retried on the
// next cadence.
func (s *Service) RunCycle(ctx context.Context) {
	s.cycleMutex.Lock()
	defer s.cycleMutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("🔥 Panic recovered in monitoring cycle: %v", r)
		}
	}()

	snapshot := s.registry.Snapshot()
	TargetsRegistered.Set(float64(len(snapshot)))
	if len(snapshot) == 0 {
		CyclesCompleted.Inc()
		return
	}

	log.Debugf("🔄 Checking %d targets...", len(snapshot))

	prices := s.resolvePrices(ctx, symbolsOf(snapshot))

	var updates []types.Target
	levelsBySymbol := make(map[string]*levels.Levels)

	for _, t := range snapshot {
		p, ok := prices[t.Symbol]
		if !ok {
			// Price unavailable: skip silently, keep the previous live
			// message, retry next cycle.
			continue
		}

		switch Evaluate(t, p) {
		case ActionFire:
			if updated, ok := s.fire(ctx, t, p, levelsBySymbol); ok {
				updates = append(updates, updated)
			}
		case ActionApproach:
			if updated, ok := s.warnApproach(t, p); ok {
				updates = append(updates, updated)
			}
		case ActionApproachReset:
			t.ApproachSent = false
			updates = append(updates, t)
		}
	}

	s.registry.ApplyAlertStates(updates)
	CyclesCompleted.Inc()
	log.Debug("✅ Cycle completed.")
}

// resolvePrices fetches each distinct symbol once, fanning out across a
// bounded worker pool. Every owner sharing a symbol sees the same price
// for this cycle. Unresolvable symbols are absent from the result.
func (s *Service) resolvePrices(ctx context.Context, symbols []string) map[string]float64 {
	results := make(map[string]float64, len(symbols))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.cfg.MaxConcurrentFetches)

	for _, symbol := range symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
			defer cancel()

			p, err := s.prices.Resolve(fetchCtx, s.provider, sym)
			if err != nil {
				ProviderErrors.Inc()
				log.Debugf("⚠️ No price for %s this cycle: %v", sym, err)
				return
			}

			mu.Lock()
			results[sym] = p
			mu.Unlock()
		}(symbol)
	}

	wg.Wait()
	return results
}

// fire replaces the target's live message with a fresh target-reached
// notification. On delivery failure the alert state is left untouched
// so the next cycle retries the whole sequence.
func (s *Service) fire(ctx context.Context, t types.Target, p float64,
	levelsBySymbol map[string]*levels.Levels) (types.Target, bool) {

	lv := s.lazyLevels(ctx, t.Symbol, levelsBySymbol)
	text := FireMessage(t, p, lv)

	if !t.LiveMessage.IsZero() {
		if err := s.notifier.Delete(t.LiveMessage); err != nil {
			// Best effort; the old message may already be gone.
			log.Debugf("could not delete previous message for %s/%d: %v", t.Symbol, t.OwnerID, err)
		}
	}

	ref, err := s.deliver(t, text)
	if err != nil {
		DeliveryFailures.Inc()
		log.Errorf("❌ Failed to deliver alert for %s/%d: %v", t.Symbol, t.OwnerID, err)
		return types.Target{}, false
	}

	AlertsFired.WithLabelValues(t.Symbol).Inc()
	log.Debugf("✅ Alert sent for %s to chat %d", t.Symbol, ref.ChatID)

	t.LiveMessage = ref
	return t, true
}

func (s *Service) warnApproach(t types.Target, p float64) (types.Target, bool) {
	text := ApproachMessage(t, p)

	if !t.LiveMessage.IsZero() {
		if err := s.notifier.Delete(t.LiveMessage); err != nil {
			log.Debugf("could not delete previous message for %s/%d: %v", t.Symbol, t.OwnerID, err)
		}
	}

	ref, err := s.deliver(t, text)
	if err != nil {
		DeliveryFailures.Inc()
		log.Errorf("❌ Failed to deliver approach warning for %s/%d: %v", t.Symbol, t.OwnerID, err)
		return types.Target{}, false
	}

	ApproachWarnings.Inc()

	t.LiveMessage = ref
	t.ApproachSent = true
	return t, true
}

// deliver tries the target's preferred route, then the other route once.
func (s *Service) deliver(t types.Target, text string) (types.MessageRef, error) {
	primary, fallback := routesFor(t)

	ref, err := s.notifier.Send(primary, text)
	if err == nil {
		return ref, nil
	}
	log.Debugf("primary delivery to %d failed: %v", primary, err)

	if fallback == 0 {
		return types.MessageRef{}, err
	}
	return s.notifier.Send(fallback, text)
}

// routesFor maps the delivery preference to chat IDs. DIRECT falls back
// to the recorded broadcast chat when one exists; BROADCAST falls back
// to the owner's private chat.
func routesFor(t types.Target) (primary, fallback int64) {
	if t.Delivery == types.DeliverBroadcast && t.BroadcastChatID != 0 {
		return t.BroadcastChatID, t.OwnerID
	}
	return t.OwnerID, t.BroadcastChatID
}

// lazyLevels fetches history and computes levels only when a
// notification is actually being sent, memoized per symbol per cycle.
// nil means the notification goes out without a levels section.
func (s *Service) lazyLevels(ctx context.Context, symbol string,
	cache map[string]*levels.Levels) *levels.Levels {

	if lv, seen := cache[symbol]; seen {
		return lv
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	var lv *levels.Levels
	bars, err := s.provider.HistoricalBars(fetchCtx, symbol, s.cfg.HistoryDays)
	if err != nil {
		ProviderErrors.Inc()
		log.Debugf("no history for %s, sending alert without levels: %v", symbol, err)
	} else if computed, err := levels.Calculate(bars, s.cfg.FibLookback); err != nil {
		log.Debugf("levels unavailable for %s: %v", symbol, err)
	} else {
		lv = computed
	}

	cache[symbol] = lv
	return lv
}

func symbolsOf(targets []types.Target) []string {
	seen := make(map[string]bool, len(targets))
	var symbols []string
	for _, t := range targets {
		if !seen[t.Symbol] {
			seen[t.Symbol] = true
			symbols = append(symbols, t.Symbol)
		}
	}
	return symbols
}
