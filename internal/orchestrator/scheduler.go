package orchestrator

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/GriffinCanCode/polyglot/internal/cache"
	"github.com/GriffinCanCode/polyglot/internal/config"
	apperrors "github.com/GriffinCanCode/polyglot/internal/errors"
	"github.com/GriffinCanCode/polyglot/internal/orchestrator/activity"
	"github.com/GriffinCanCode/polyglot/internal/orchestrator/region"
	"github.com/GriffinCanCode/polyglot/internal/overlay"
	"github.com/GriffinCanCode/polyglot/internal/screen"
	"github.com/GriffinCanCode/polyglot/internal/signature"
	"github.com/GriffinCanCode/polyglot/internal/syncx"
	"github.com/GriffinCanCode/polyglot/internal/trace"
	"github.com/GriffinCanCode/polyglot/internal/translate"
)

// State is the scheduler's global run state.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// MarshalText renders the state by name in JSON payloads.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// TextExtractor turns a captured region into filtered text.
type TextExtractor interface {
	Extract(ctx context.Context, img image.Image, minConfidence float64) (string, error)
}

// Translator never fails; degradation is reported through Result.Status.
type Translator interface {
	Translate(ctx context.Context, text, target, source string) translate.Result
}

// Deps are the collaborators a Scheduler drives.
type Deps struct {
	Capturer   screen.Capturer
	Extractor  TextExtractor
	Translator Translator
	Cache      *cache.TranslationCache
	Overlays   *overlay.Manager
	Activity   activity.Store // optional, defaults to an in-memory store
}

// Scheduler owns the region registry and the tick loop that walks it.
type Scheduler struct {
	cfg      *config.Config
	capturer screen.Capturer
	extract  TextExtractor
	translr  Translator
	cache    *cache.TranslationCache
	overlays *overlay.Manager
	activity activity.Store
	regions  *region.Registry
	target   *syncx.RWGuard[string]

	ctx    context.Context
	cancel context.CancelFunc
	loops  sync.WaitGroup // tick loop goroutines
	passes sync.WaitGroup // out-of-band passes started by AddRegion

	mu        sync.Mutex
	state     State
	stopCh    chan struct{}
	listeners []func(State)
}

// New creates a stopped scheduler. The initial target language comes from
// cfg.DefaultTargetLang.
func New(cfg *config.Config, deps Deps) (*Scheduler, error) {
	target, err := parseTarget(cfg.DefaultTargetLang)
	if err != nil {
		return nil, err
	}
	if deps.Capturer == nil || deps.Extractor == nil || deps.Translator == nil || deps.Overlays == nil {
		return nil, apperrors.New(apperrors.InvalidArgument, "scheduler requires capturer, extractor, translator and overlays")
	}
	if deps.Cache == nil {
		deps.Cache = cache.New(cfg.CacheSize)
	}
	if deps.Activity == nil {
		deps.Activity = activity.NewStore(ActivityMaxEntries, ActivityEventBuffer)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cfg:      cfg,
		capturer: deps.Capturer,
		extract:  deps.Extractor,
		translr:  deps.Translator,
		cache:    deps.Cache,
		overlays: deps.Overlays,
		activity: deps.Activity,
		regions:  region.NewRegistry(),
		target:   syncx.NewGuard(target),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

func parseTarget(code string) (string, error) {
	t, err := translate.ParseLanguage(code)
	if err != nil {
		return "", err
	}
	if t == translate.SourceAuto {
		return "", apperrors.New(apperrors.InvalidArgument, "target language cannot be auto")
	}
	return t, nil
}

// OnStateChange registers fn to run after every Start/Stop transition.
func (s *Scheduler) OnStateChange(fn func(State)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// State reports whether the tick loop is running.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start begins ticking. It reports false if already running or closed.
func (s *Scheduler) Start() bool {
	s.mu.Lock()
	if s.state == Running || s.ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	s.state = Running
	s.stopCh = make(chan struct{})
	s.loops.Add(1)
	go s.loop(s.stopCh)
	listeners := s.listeners
	s.mu.Unlock()

	trace.Logger(s.ctx).Info("monitoring started", "regions", s.regions.Len(), "interval", s.interval())
	notify(listeners, Running)
	return true
}

// Stop halts future ticks. A tick already in progress finishes.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	if s.state == Stopped {
		s.mu.Unlock()
		return false
	}
	s.state = Stopped
	close(s.stopCh)
	listeners := s.listeners
	s.mu.Unlock()

	trace.Logger(s.ctx).Info("monitoring stopped")
	notify(listeners, Stopped)
	return true
}

func notify(listeners []func(State), st State) {
	for _, fn := range listeners {
		fn(st)
	}
}

// Close stops the loop, waits for in-flight work and releases the capturer.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	s.Stop()
	s.loops.Wait()
	s.passes.Wait()
	s.capturer.Close()
}

func (s *Scheduler) interval() time.Duration {
	if s.cfg.UpdateInterval > 0 {
		return s.cfg.UpdateInterval
	}
	return DefaultUpdateInterval
}

func (s *Scheduler) loop(stopCh <-chan struct{}) {
	defer s.loops.Done()
	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			s.tick(s.ctx)
		}
	}
}

// tick visits a snapshot of the registry in registration order.
func (s *Scheduler) tick(ctx context.Context) {
	ctx, span := trace.StartSpan(ctx, "monitor_tick")
	defer span.End()

	snap := s.regions.Snapshot()
	span.SetAttr("regions", len(snap))
	for _, r := range snap {
		s.process(ctx, r.ID)
	}
}

// AddRegion registers bounds and runs one immediate pass over the new region.
// The scheduler is started if it was stopped and AutoStart is set.
func (s *Scheduler) AddRegion(b region.Bounds) (int, error) {
	reg, err := s.regions.Add(b)
	if err != nil {
		return 0, err
	}
	trace.Logger(s.ctx).Info("region added", "region", reg.ID, "bounds", reg.Bounds.String())

	if s.cfg.AutoStart && s.State() == Stopped {
		s.Start()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() == nil {
		s.passes.Add(1)
		go func() {
			defer s.passes.Done()
			s.process(s.ctx, reg.ID)
		}()
	}
	return reg.ID, nil
}

// RemoveRegion drops a region with its overlay and history. The scheduler stops
// when the last region goes.
func (s *Scheduler) RemoveRegion(id int) error {
	if _, err := s.regions.Remove(id); err != nil {
		return err
	}
	s.overlays.RemoveRegion(id)
	s.activity.Forget(id)
	trace.Logger(s.ctx).Info("region removed", "region", id)

	if s.regions.Len() == 0 {
		s.Stop()
	}
	return nil
}

// ListRegions returns region copies in registration order. Overlays that have
// expired or been cleared are reported as nil.
func (s *Scheduler) ListRegions() []region.Region {
	regs := s.regions.Snapshot()
	for i := range regs {
		if regs[i].Overlay == nil {
			continue
		}
		if h, ok := s.overlays.Active(regs[i].ID); !ok || h.ID != regs[i].Overlay.ID {
			regs[i].Overlay = nil
		}
	}
	return regs
}

// SetTargetLanguage switches the target for subsequent passes. Every region is
// reset so visible text is re-translated on the next tick.
func (s *Scheduler) SetTargetLanguage(code string) error {
	target, err := parseTarget(code)
	if err != nil {
		return err
	}
	if prev := s.target.Swap(target); prev == target {
		return nil
	}
	s.regions.Each(func(r *region.Region) { r.Reset() })
	trace.Logger(s.ctx).Info("target language changed", "target", target)
	return nil
}

// TargetLanguage returns the current normalised target code.
func (s *Scheduler) TargetLanguage() string {
	return s.target.Get()
}

// ClearOverlays removes every visible overlay. Regions stay monitored.
func (s *Scheduler) ClearOverlays() int {
	n := s.overlays.ClearAll()
	s.dropStaleOverlays()
	return n
}

// dropStaleOverlays forgets region handles the manager no longer shows. A
// pass that displayed after ClearAll keeps its fresh handle.
func (s *Scheduler) dropStaleOverlays() {
	s.regions.Each(func(r *region.Region) {
		if r.Overlay == nil {
			return
		}
		if h, ok := s.overlays.Active(r.ID); !ok || h.ID != r.Overlay.ID {
			r.Overlay = nil
		}
	})
}

// Events returns the activity feed channel.
func (s *Scheduler) Events() <-chan activity.Event {
	return s.activity.Events()
}

// RecentActivity returns up to n recent events, oldest first.
func (s *Scheduler) RecentActivity(n int) []activity.Event {
	return s.activity.Recent(n)
}

// RegionActivity returns the stored events of one live region, oldest first.
func (s *Scheduler) RegionActivity(id int) ([]activity.Event, error) {
	if _, ok := s.regions.Get(id); !ok {
		return nil, apperrors.Newf(apperrors.NotFound, "region %d not found", id)
	}
	return s.activity.ForRegion(id), nil
}

// CacheStats reports translation cache counters.
func (s *Scheduler) CacheStats() cache.Stats {
	return s.cache.Stats()
}

func (s *Scheduler) setPhase(id int, p region.Phase) bool {
	return s.regions.Update(id, func(r *region.Region) { r.Phase = p })
}

// process runs one capture → detect → extract → translate → display pass.
// Failures are absorbed here so one region never aborts the others.
func (s *Scheduler) process(ctx context.Context, id int) {
	if !s.regions.Acquire(id) {
		return
	}
	defer s.regions.Release(id)

	reg, ok := s.regions.Get(id)
	if !ok {
		return
	}

	ctx, span := trace.StartSpan(ctx, "region_pass")
	defer span.End()
	span.SetAttr("region", id)
	log := trace.Logger(ctx)

	s.setPhase(id, region.Capturing)
	img, err := s.capturer.Capture(ctx, reg.Bounds.Rect())
	if err != nil {
		span.Fail(err)
		log.Debug("capture failed, retrying next tick", "region", id, "error", err)
		return
	}

	sig, err := signature.Compute(img)
	if err != nil {
		span.Fail(err)
		log.Debug("signature failed", "region", id, "error", err)
		return
	}
	if !signature.Changed(reg.Signature, sig) {
		return
	}
	if !reg.Signature.IsSet() {
		log.Debug("baseline captured", "region", id, "signature", sig.String())
	}
	alive := s.regions.Update(id, func(r *region.Region) {
		r.Signature = sig
		r.Phase = region.Extracting
	})
	if !alive {
		return
	}

	text, err := s.extract.Extract(ctx, img, s.cfg.MinConfidence)
	if err != nil {
		span.Fail(err)
		log.Warn("text extraction failed", "region", id, "error", err)
		s.regions.Update(id, func(r *region.Region) { r.Signature = signature.Unset })
		return
	}
	if text == reg.LastText {
		return
	}
	if text == "" {
		s.regions.Update(id, func(r *region.Region) { r.LastText = "" })
		return
	}

	target := s.target.Get()
	if !s.setPhase(id, region.Translating) {
		return
	}
	res, cached := s.lookup(ctx, text, target)
	span.SetAttr("status", res.Status.String())

	display, commit := s.present(text, res)
	var shown bool
	s.regions.Update(id, func(r *region.Region) {
		// A language switch mid-pass already reset the region.
		if s.target.Get() != target {
			return
		}
		if commit {
			r.LastText = text
		} else {
			r.Signature = signature.Unset
		}
		r.LastTranslation = display
		r.Phase = region.Displaying
		h := s.overlays.Show(id, r.Bounds.Rect(), text, display)
		r.Overlay = &h
		shown = true
	})
	if !shown {
		return
	}

	s.activity.Add(activity.Event{
		RegionID:    id,
		Original:    text,
		Translation: display,
		Target:      target,
		Backend:     res.Backend,
		Status:      res.Status.String(),
		Cached:      cached,
	})
	log.Info("region translated", "region", id, "backend", res.Backend, "status", res.Status.String(), "cached", cached)
}

// lookup consults the cache before the translator and stores cacheable results.
func (s *Scheduler) lookup(ctx context.Context, text, target string) (translate.Result, bool) {
	if hit, ok := s.cache.Get(text, translate.SourceAuto, target); ok {
		return translate.Result{
			Text:    hit,
			Backend: CacheBackend,
			Status:  translate.Translated,
			Source:  translate.SourceAuto,
			Target:  target,
		}, true
	}
	res := s.translr.Translate(ctx, text, target, translate.SourceAuto)
	if res.Cacheable() {
		s.cache.Put(text, res.Text, translate.SourceAuto, target)
	}
	return res, false
}

// present picks the overlay text and whether the extracted text is committed
// as the region's lastText. Fallback results are shown but retried next tick.
func (s *Scheduler) present(original string, res translate.Result) (string, bool) {
	switch res.Status {
	case translate.Translated:
		return res.Text, true
	case translate.Unavailable:
		return s.cfg.UntranslatedMarker + original, true
	case translate.Unsupported:
		return original, true
	default:
		return original, false
	}
}
