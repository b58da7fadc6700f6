package translate

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	apperrors "github.com/GriffinCanCode/polyglot/internal/errors"
	"github.com/GriffinCanCode/polyglot/internal/resilience"
	"github.com/GriffinCanCode/polyglot/internal/trace"
)

// slot is one backend in the chain with its guards and session health.
type slot struct {
	backend  Backend
	rank     int
	breaker  *resilience.Breaker
	limiter  *rate.Limiter
	health   Health
	reason   string
	authWarn sync.Once
	trips    atomic.Int64
}

// Service translates text with the first healthy backend of a fixed chain.
type Service struct {
	maxLen int
	retry  resilience.RetryConfig

	mu     sync.RWMutex
	slots  []*slot
	active *slot
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMaxTextLength sets the rune bound applied before dispatch.
func WithMaxTextLength(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxLen = n
		}
	}
}

// WithProbeRetry overrides retry behaviour for startup probes.
func WithProbeRetry(cfg resilience.RetryConfig) ServiceOption {
	return func(s *Service) { s.retry = cfg }
}

// WithBackend appends a backend to the chain with its own rate limit.
// Call order is precedence order.
func WithBackend(b Backend, limit rate.Limit, burst int) ServiceOption {
	return func(s *Service) {
		sl := &slot{
			backend: b,
			rank:    len(s.slots) + 1,
			limiter: rate.NewLimiter(limit, burst),
		}
		sl.breaker = resilience.New(b.Name(), resilience.BackendConfig(apperrors.IsRetryable)).
			WithHook(func(_ string, _, to resilience.State) {
				if to == resilience.Open {
					sl.trips.Add(1)
				}
			})
		s.slots = append(s.slots, sl)
	}
}

// NewService builds a chain from the options. The identity backend is always
// appended last. Call Init before serving requests.
func NewService(opts ...ServiceOption) *Service {
	s := &Service{
		maxLen: DefaultMaxTextLength,
		retry:  resilience.ProbeRetryConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	WithBackend(Identity{}, rate.Inf, 1)(s)
	s.active = s.slots[len(s.slots)-1]
	return s
}

// Init probes backends in precedence order and activates the first healthy one.
// Any probe failure disables that backend for the session; credential failures
// are additionally reported as a configuration warning.
func (s *Service) Init(ctx context.Context) {
	ctx, span := trace.StartSpan(ctx, "translate.init")
	defer span.End()
	log := trace.Logger(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sl := range s.slots {
		name := sl.backend.Name()
		if name == NameIdentity {
			sl.health = Healthy
			s.active = sl
			log.Warn("no translation backend available, showing original text")
			return
		}

		err := resilience.Retry(ctx, s.retry, func() error {
			pctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
			defer cancel()
			return sl.backend.Probe(pctx)
		})
		if err == nil {
			sl.health = Healthy
			s.active = sl
			span.SetAttr("backend", name)
			log.Info("translation backend active", "backend", name, "rank", sl.rank)
			return
		}

		sl.health = Disabled
		sl.reason = err.Error()
		if apperrors.IsCode(err, apperrors.Unauthorized) {
			s.warnCredentials(ctx, sl, err)
		} else {
			log.Warn("translation backend probe failed, skipping", "backend", name, "error", err)
		}
	}
}

func (s *Service) warnCredentials(ctx context.Context, sl *slot, err error) {
	sl.authWarn.Do(func() {
		trace.Logger(ctx).Warn("translation backend credentials rejected, check configuration",
			"backend", sl.backend.Name(), "error", err)
	})
}

// Active returns the serving backend's name.
func (s *Service) Active() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active.backend.Name()
}

// Backends describes the chain in precedence order.
func (s *Service) Backends() []Descriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Descriptor, 0, len(s.slots))
	for _, sl := range s.slots {
		out = append(out, Descriptor{
			Name:    sl.backend.Name(),
			Rank:    sl.rank,
			Health:  sl.health,
			Active:  sl == s.active,
			Reason:  sl.reason,
			Circuit: sl.breaker.State().String(),
			Trips:   sl.trips.Load(),
		})
	}
	return out
}

// Translate never fails: problems degrade to the original text and are
// reported through Result.Status.
func (s *Service) Translate(ctx context.Context, text, target, source string) Result {
	if source == "" {
		source = SourceAuto
	}
	res := Result{Source: source, Target: target}
	if strings.TrimSpace(text) == "" {
		res.Status = Empty
		return res
	}
	text = truncate(text, s.maxLen)

	s.mu.RLock()
	sl := s.active
	s.mu.RUnlock()

	name := sl.backend.Name()
	res.Backend = name
	res.Text = text

	if name == NameIdentity {
		res.Status = Unavailable
		return res
	}

	ctx, span := trace.StartSpan(ctx, "translate."+name)
	defer span.End()
	log := trace.Logger(ctx)

	if !sl.backend.Supports(target) {
		log.Warn("unsupported language", "backend", name, "target", target)
		res.Status = Unsupported
		return res
	}

	cctx, cancel := context.WithTimeout(ctx, sl.backend.Timeout())
	defer cancel()

	out, err := resilience.ExecuteWithResult(sl.breaker, func() (string, error) {
		if err := sl.limiter.Wait(cctx); err != nil {
			return "", apperrors.Wrap(err, apperrors.Timeout, "rate limit wait")
		}
		return sl.backend.Translate(cctx, text, target, source)
	})
	if err != nil {
		span.Fail(err)
		switch {
		case apperrors.IsCode(err, apperrors.UnsupportedLanguage):
			log.Warn("unsupported language", "backend", name, "target", target)
			res.Status = Unsupported
		case apperrors.IsCode(err, apperrors.Unauthorized):
			s.warnCredentials(ctx, sl, err)
			res.Status = Fallback
		default:
			log.Warn("translation failed, showing original", "backend", name, "code", apperrors.CodeOf(err), "error", err)
			res.Status = Fallback
		}
		return res
	}

	res.Text = out
	res.Status = Translated
	return res
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
