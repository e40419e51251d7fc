package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkers      = 4
	DefaultTaskLimit    = 10
	DefaultHistoryLimit = 3

	runStatusOK     = "ok"
	runStatusError  = "error"
	runStatusLocked = "locked"

	messageProcessed     = "Stochastic nudges processed"
	messageNoSubscribers = "No active subscriptions"
)

// Config tunes a Dispatcher. Zero values fall back to the defaults above.
type Config struct {
	Workers      int
	QuietHours   QuietHours
	TaskLimit    int
	HistoryLimit int
	Now          func() time.Time
}

// DefaultConfig returns the production defaults with the wall clock.
func DefaultConfig() Config {
	return Config{
		Workers:      DefaultWorkers,
		QuietHours:   DefaultQuietHours,
		TaskLimit:    DefaultTaskLimit,
		HistoryLimit: DefaultHistoryLimit,
		Now:          time.Now,
	}
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.QuietHours == (QuietHours{}) {
		c.QuietHours = DefaultQuietHours
	}
	if c.TaskLimit <= 0 {
		c.TaskLimit = DefaultTaskLimit
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = DefaultHistoryLimit
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Dispatcher runs one sweep over all active subscriptions per Dispatch call.
type Dispatcher struct {
	store     Store
	selector  *Selector
	generator *Generator
	deliverer *Deliverer
	cfg       Config

	locker  Locker
	events  *EventEmitter
	alerter Alerter
	metrics Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithLocker serializes runs through l.
func WithLocker(l Locker) Option { return func(d *Dispatcher) { d.locker = l } }

// WithEvents publishes outcome events through e.
func WithEvents(e *EventEmitter) Option { return func(d *Dispatcher) { d.events = e } }

// WithAlerter hands each finished run to a.
func WithAlerter(a Alerter) Option { return func(d *Dispatcher) { d.alerter = a } }

// WithMetrics replaces the Prometheus collectors.
func WithMetrics(m Metrics) Option { return func(d *Dispatcher) { d.metrics = m } }

func WithLogger(l *slog.Logger) Option { return func(d *Dispatcher) { d.logger = l } }

func WithTracer(t trace.Tracer) Option { return func(d *Dispatcher) { d.tracer = t } }

// NewDispatcher wires a dispatcher. A nil selector or generator gets the
// default one; the deliverer must carry the VAPID keys.
func NewDispatcher(store Store, selector *Selector, generator *Generator, deliverer *Deliverer, cfg Config, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:     store,
		selector:  selector,
		generator: generator,
		deliverer: deliverer,
		cfg:       cfg.withDefaults(),
		metrics:   &PrometheusMetrics{},
		logger:    slog.Default(),
		tracer:    otel.Tracer("nudge/dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.selector == nil {
		d.selector = NewSelector(nil, DefaultFunctionalProbability)
	}
	if d.generator == nil {
		d.generator = NewGenerator(nil, 0, d.logger)
	}
	return d
}

// Dispatch performs one full run. It returns an error only for run-level
// failures; per-subscription failures are reported in the summary.
func (d *Dispatcher) Dispatch(ctx context.Context) (*Summary, error) {
	runID := uuid.New().String()
	logger := d.logger.With("run_id", runID)
	summary := &Summary{
		RunID:     runID,
		Results:   []Result{},
		StartedAt: d.cfg.Now().UTC(),
	}

	ctx, span := d.tracer.Start(ctx, "dispatch.run", trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()
	timer := d.metrics.StartTimer()

	err := d.run(ctx, logger, summary)
	summary.FinishedAt = d.cfg.Now().UTC()
	timer.ObserveDuration()

	span.SetAttributes(
		attribute.Int("nudge.sent", summary.Sent),
		attribute.Int("nudge.failed", summary.Failed),
		attribute.Int("nudge.skipped", summary.Skipped),
	)

	if errors.Is(err, ErrRunInProgress) {
		d.metrics.RecordRun(runStatusLocked)
		logger.WarnContext(ctx, "dispatch skipped, another run holds the lock")
		return summary, err
	}

	d.finish(ctx, logger, summary, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return summary, err
	}
	return summary, nil
}

func (d *Dispatcher) run(ctx context.Context, logger *slog.Logger, summary *Summary) error {
	if d.deliverer == nil || !d.deliverer.Keys().Configured() {
		return fmt.Errorf("%w: VAPID public and private keys are required", ErrConfiguration)
	}

	if d.locker != nil {
		if err := d.locker.Acquire(ctx, summary.RunID); err != nil {
			return err
		}
		defer func() {
			// The run context may already be cancelled; the lock must still go.
			if err := d.locker.Release(context.WithoutCancel(ctx), summary.RunID); err != nil {
				logger.WarnContext(ctx, "failed to release run lock", "error", err)
			}
		}()
	}

	subs, err := d.store.ListActiveSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrListSubscriptions, err)
	}

	summary.Total = len(subs)
	if len(subs) == 0 {
		summary.Message = messageNoSubscribers
		logger.InfoContext(ctx, messageNoSubscribers)
		return nil
	}

	logger.InfoContext(ctx, "dispatch started", "subscriptions", len(subs), "workers", d.cfg.Workers)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)
	for _, sub := range subs {
		g.Go(func() error {
			res := d.process(gctx, logger, summary.RunID, sub)
			d.metrics.RecordOutcome(res.Outcome)

			mu.Lock()
			summary.add(res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	summary.Message = messageProcessed
	return nil
}

// process handles one subscription. Any error or panic becomes a failed
// result; nothing escapes to the other items.
func (d *Dispatcher) process(ctx context.Context, logger *slog.Logger, runID string, sub Subscription) (res Result) {
	res = Result{Subscriber: anonymize(sub.UserID)}
	logger = logger.With("subscription_id", sub.ID)

	ctx, span := d.tracer.Start(ctx, "dispatch.item", trace.WithAttributes(attribute.String("subscription_id", sub.ID)))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			res.Outcome = OutcomeFailed
			res.Error = fmt.Sprintf("panic: %v", r)
			logger.ErrorContext(ctx, "subscription processing panicked", "panic", r)
			span.SetStatus(codes.Error, res.Error)
		}
	}()

	tc := ResolveTimeContext(sub.TimezoneName(), d.cfg.Now())
	if d.cfg.QuietHours.Contains(tc.Hour) {
		res.Outcome = OutcomeSkipped
		logger.DebugContext(ctx, "quiet hours, skipping", "local_hour", tc.Hour, "timezone", tc.Location)
		return res
	}

	personaID, tasks, recent, err := d.load(ctx, sub.UserID)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Error = err.Error()
		logger.WarnContext(ctx, "failed to load subscriber context", "error", err, "outcome", res.Outcome)
		span.RecordError(err)
		return res
	}

	persona := LookupPersona(personaID)
	res.Kind = d.selector.Kind(len(tasks))
	res.Style = d.selector.Style()

	content := d.generator.Generate(ctx, GenerationInput{
		Persona: persona,
		Kind:    res.Kind,
		Style:   res.Style,
		Time:    tc,
		Tasks:   firstN(tasks, maxPromptTasks),
		Recent:  firstN(recent, maxRecentHints),
	})
	res.Generated = content.Generated
	d.metrics.RecordContent(content.Generated)

	delivery := d.deliverer.Deliver(ctx, sub, persona, content.Text)
	if !delivery.Delivered {
		res.Outcome = OutcomeFailed
		res.Error = delivery.Err.Error()
		span.RecordError(delivery.Err)
		if delivery.Gone {
			d.deactivate(ctx, logger, runID, sub, &res)
		}
		logger.WarnContext(ctx, "delivery failed", "error", delivery.Err, "outcome", res.Outcome)
		return res
	}

	res.Outcome = OutcomeSent
	d.recordSent(ctx, logger, runID, sub, personaID, content, res)
	logger.InfoContext(ctx, "nudge sent", "outcome", res.Outcome, "nudge_type", res.Kind, "style", res.Style, "generated", res.Generated)
	return res
}

// load issues the three per-subscriber reads concurrently.
func (d *Dispatcher) load(ctx context.Context, userID string) (string, []Task, []string, error) {
	var (
		personaID string
		tasks     []Task
		recent    []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		personaID, err = d.store.GetPersonaID(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		tasks, err = d.store.ListPendingTasks(gctx, userID, d.cfg.TaskLimit)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = d.store.RecentHistory(gctx, userID, d.cfg.HistoryLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", nil, nil, err
	}
	return personaID, tasks, recent, nil
}

// recordSent performs the success writes. The push already reached the
// gateway, so write failures are logged and the item stays sent.
func (d *Dispatcher) recordSent(ctx context.Context, logger *slog.Logger, runID string, sub Subscription, personaID string, content Content, res Result) {
	now := d.cfg.Now().UTC()
	rec := &HistoryRecord{
		UserID:    sub.UserID,
		Content:   content.Text,
		Kind:      res.Kind,
		Style:     res.Style,
		Generated: content.Generated,
		SentAt:    now,
	}
	if personaID != "" {
		rec.PersonaID = &personaID
	}

	if err := d.store.AppendHistory(ctx, rec); err != nil {
		logger.ErrorContext(ctx, "failed to append notification history", "error", err)
	}
	if err := d.store.TouchSubscription(ctx, sub.ID, now); err != nil {
		logger.ErrorContext(ctx, "failed to touch subscription", "error", err)
	}

	d.events.Emit(ctx, runID, sub.UserID, EventNudgeSent, NudgeSentData{
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		PersonaID:      personaID,
		Kind:           res.Kind,
		Style:          res.Style,
		Generated:      content.Generated,
		ContentHash:    ContentHash(content.Text),
	})
}

func (d *Dispatcher) deactivate(ctx context.Context, logger *slog.Logger, runID string, sub Subscription, res *Result) {
	if err := d.store.DeactivateSubscription(ctx, sub.ID); err != nil {
		res.Error = fmt.Sprintf("%s; %v", res.Error, err)
		logger.ErrorContext(ctx, "failed to deactivate subscription", "error", err)
		return
	}
	res.Outcome = OutcomeDeactivated

	d.events.Emit(ctx, runID, sub.UserID, EventSubscriptionDeactivated, SubscriptionDeactivatedData{
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		Reason:         res.Error,
	})
}

func (d *Dispatcher) finish(ctx context.Context, logger *slog.Logger, summary *Summary, runErr error) {
	status := runStatusOK
	data := DispatchCompletedData{
		Sent:       summary.Sent,
		Failed:     summary.Failed,
		Skipped:    summary.Skipped,
		Total:      summary.Total,
		DurationMS: summary.FinishedAt.Sub(summary.StartedAt).Milliseconds(),
	}
	if runErr != nil {
		status = runStatusError
		data.Error = runErr.Error()
		logger.ErrorContext(ctx, "dispatch failed", "error", runErr)
	} else {
		logger.InfoContext(ctx, "dispatch finished",
			"sent", summary.Sent,
			"failed", summary.Failed,
			"skipped", summary.Skipped,
			"total", summary.Total,
		)
	}
	d.metrics.RecordRun(status)

	ctx = context.WithoutCancel(ctx)
	d.events.Emit(ctx, summary.RunID, summary.RunID, EventDispatchCompleted, data)

	if d.alerter != nil {
		if err := d.alerter.Notify(ctx, summary, runErr); err != nil {
			logger.WarnContext(ctx, "failed to send operator alert", "error", err)
		}
	}
}
