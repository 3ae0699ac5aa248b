// Package orchestrator issues certificates.
//
// [Orchestrator.Generate] checks eligibility, reserves a number, renders
// the PDF and PNG artifacts from one composed scene, uploads both and
// finally writes the certificate record. The record write is the commit
// point: a failure before it leaves no record, though uploaded artifacts
// may remain.
//
// Generation is idempotent per (event, user). An existing record is
// returned as a duplicate. Concurrent calls in one process collapse into
// a single generation, and calls from different processes are serialized
// through a claim in the store; the first writer wins.
package orchestrator

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/certforge/pkg/blob"
	"github.com/matzehuels/certforge/pkg/certificate"
	"github.com/matzehuels/certforge/pkg/eligibility"
	"github.com/matzehuels/certforge/pkg/errors"
	"github.com/matzehuels/certforge/pkg/layout"
	"github.com/matzehuels/certforge/pkg/numbering"
	"github.com/matzehuels/certforge/pkg/observability"
	"github.com/matzehuels/certforge/pkg/pipeline"
	"github.com/matzehuels/certforge/pkg/render/scene"
	"github.com/matzehuels/certforge/pkg/store"
)

// ErrNotEligible is wrapped by Generate when the eligibility policy turns
// the participant away. The policy's explanation is preserved.
var ErrNotEligible = errors.New(errors.ErrCodeNotEligible, "participant is not eligible")

// Defaults for [Options].
const (
	DefaultClaimTTL     = 2 * time.Minute
	DefaultWaitTimeout  = 30 * time.Second
	DefaultPollInterval = 250 * time.Millisecond
)

// Request is everything one generation needs.
type Request struct {
	Participant certificate.Participant `json:"participant"`
	Event       certificate.Event       `json:"event"`
	Attestation eligibility.Attestation `json:"attestation"`
	Layout      layout.Model            `json:"-"`
}

// Result is the outcome of a successful Generate.
type Result struct {
	Certificate *certificate.Certificate
	// Duplicate is set when the certificate already existed or another
	// caller generated it.
	Duplicate bool
	State     State
	// Degraded lists asset problems recovered from while rendering. It is
	// empty for duplicates.
	Degraded []error
}

// Options configures an Orchestrator. The zero value is usable.
type Options struct {
	// Policy decides eligibility. Defaults to eligibility.Standard.
	Policy eligibility.Policy
	// Owner identifies this process in generation claims. Defaults to a
	// random UUID.
	Owner string
	// ClaimTTL is how long a claim blocks other processes before it is
	// considered abandoned.
	ClaimTTL time.Duration
	// WaitTimeout bounds how long a call that lost the claim waits for
	// the winner's record.
	WaitTimeout  time.Duration
	PollInterval time.Duration
	// DefaultPrefix numbers certificates whose layout has no prefix.
	// Empty selects derived numbers.
	DefaultPrefix string
	// RasterWidth is the PNG width in pixels; zero renders one pixel per
	// canvas unit.
	RasterWidth int
	Now         func() time.Time
	Logger      *log.Logger
}

// Orchestrator issues certificates. It is safe for concurrent use.
type Orchestrator struct {
	store   store.Store
	blobs   blob.Store
	numbers *numbering.Allocator
	runner  *pipeline.Runner
	opts    Options
	logger  *log.Logger
	group   singleflight.Group
}

// New creates an Orchestrator.
func New(st store.Store, blobs blob.Store, runner *pipeline.Runner, opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Policy == nil {
		opts.Policy = eligibility.Standard
	}
	if opts.Owner == "" {
		opts.Owner = uuid.NewString()
	}
	if opts.ClaimTTL <= 0 {
		opts.ClaimTTL = DefaultClaimTTL
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = DefaultWaitTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if runner == nil {
		runner = pipeline.NewRunner(nil, nil, opts.Logger)
	}
	return &Orchestrator{
		store:   st,
		blobs:   blobs,
		numbers: numbering.NewAllocator(st, opts.Logger),
		runner:  runner,
		opts:    opts,
		logger:  opts.Logger.WithPrefix("orchestrator"),
	}
}

// Generate issues the certificate for req, or returns the existing one.
//
// Errors carry one of the codes NOT_ELIGIBLE, INVALID_INPUT,
// ALLOCATION_CONFLICT, RENDER_FAILURE or UPLOAD_FAILURE. An allocation
// conflict is safe to retry.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Result, error) {
	start := o.opts.Now()
	eventID := req.Event.ID
	hooks := observability.Generation()
	hooks.OnGenerateStart(ctx, eventID)

	res, err := o.generate(ctx, req)
	hooks.OnGenerateComplete(ctx, eventID, Classify(res, err), o.opts.Now().Sub(start))

	logger := o.logger.With("event", eventID, "user", req.Participant.UserID)
	switch {
	case err != nil:
		logger.Warn("generation failed", "code", errors.GetCode(err), "err", err)
	case res.Duplicate:
		logger.Info("certificate already issued", "number", res.Certificate.Number)
	default:
		logger.Info("certificate issued", "number", res.Certificate.Number, "degraded", len(res.Degraded))
	}
	return res, err
}

// Classify labels the result of a Generate call.
func Classify(res *Result, err error) observability.Outcome {
	switch {
	case err == nil && res.Duplicate:
		return observability.OutcomeDuplicate
	case err == nil:
		return observability.OutcomeGenerated
	case errors.Is(err, errors.ErrCodeNotEligible):
		return observability.OutcomeNotEligible
	case errors.Is(err, errors.ErrCodeAllocationConflict):
		return observability.OutcomeConflict
	default:
		return observability.OutcomeFailed
	}
}

func (o *Orchestrator) generate(ctx context.Context, req Request) (*Result, error) {
	if err := errors.ValidateIdentifier("event", req.Event.ID); err != nil {
		return nil, err
	}
	if err := errors.ValidateIdentifier("user", req.Participant.UserID); err != nil {
		return nil, err
	}

	if err := o.opts.Policy.Check(req.Event, req.Attestation); err != nil {
		// The policy's error comes first so its message is what callers
		// show.
		return nil, fmt.Errorf("%w (%w)", err, ErrNotEligible)
	}

	if res, err := o.existing(ctx, req.Event.ID, req.Participant.UserID); res != nil || err != nil {
		return res, err
	}

	key := req.Event.ID + "\x00" + req.Participant.UserID
	leader := false
	v, err, _ := o.group.Do(key, func() (any, error) {
		leader = true
		return o.claimAndRun(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	res := v.(*Result)
	if !leader {
		return &Result{Certificate: res.Certificate, Duplicate: true, State: StateGenerated}, nil
	}
	return res, nil
}

// existing returns the stored certificate as a duplicate result, or nil.
func (o *Orchestrator) existing(ctx context.Context, eventID, userID string) (*Result, error) {
	c, err := o.store.Get(ctx, eventID, userID)
	switch {
	case stderrors.Is(err, store.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "look up certificate")
	}
	return &Result{Certificate: c, Duplicate: true, State: StateGenerated}, nil
}

// claimAndRun takes the cross-process claim for the pair and generates
// under it. Losing the claim means waiting for the winner's record.
func (o *Orchestrator) claimAndRun(ctx context.Context, req Request) (*Result, error) {
	eventID, userID := req.Event.ID, req.Participant.UserID

	err := o.store.Claim(ctx, eventID, userID, o.opts.Owner, o.opts.ClaimTTL)
	if stderrors.Is(err, store.ErrClaimHeld) {
		o.logger.Debug("generation claimed elsewhere, waiting", "event", eventID, "user", userID)
		return o.await(ctx, eventID, userID)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "claim generation")
	}
	defer func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := o.store.Release(rctx, eventID, userID, o.opts.Owner); err != nil {
			o.logger.Warn("release claim", "event", eventID, "user", userID, "err", err)
		}
	}()

	// Someone may have finished between the first check and the claim.
	if res, err := o.existing(ctx, eventID, userID); res != nil || err != nil {
		return res, err
	}
	return o.run(ctx, req)
}

// await polls for the certificate another process is generating.
func (o *Orchestrator) await(ctx context.Context, eventID, userID string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, o.opts.WaitTimeout)
	defer cancel()
	ticker := time.NewTicker(o.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: no certificate after waiting %s for %s/%s",
				numbering.ErrAllocationConflict, o.opts.WaitTimeout, eventID, userID)
		case <-ticker.C:
			res, err := o.existing(ctx, eventID, userID)
			if err != nil && ctx.Err() == nil {
				return nil, err
			}
			if res != nil {
				return res, nil
			}
		}
	}
}

// attempt tracks the state of one run.
type attempt struct {
	state  State
	logger *log.Logger
}

func (a *attempt) enter(s State) {
	if !CanTransition(a.state, s) {
		a.logger.Error("invalid state transition", "from", a.state, "to", s)
	}
	a.logger.Debug("state", "from", a.state, "to", s)
	a.state = s
}

func (a *attempt) fail(err error) (*Result, error) {
	a.enter(StateFailed)
	return nil, err
}

// run allocates, renders, uploads and persists. The caller holds the
// claim.
func (o *Orchestrator) run(ctx context.Context, req Request) (*Result, error) {
	ev, p := req.Event, req.Participant
	a := &attempt{
		state:  StateEligible,
		logger: o.logger.With("event", ev.ID, "user", p.UserID),
	}

	a.enter(StateAllocating)
	prefix := req.Layout.CertificateID.Prefix
	if prefix == "" {
		prefix = o.opts.DefaultPrefix
	}
	num, err := o.numbers.Next(ctx, ev.ID, p.UserID, prefix)
	if err != nil {
		return a.fail(err)
	}

	a.enter(StateRendering)
	out, err := o.runner.Execute(ctx, req.Layout, scene.Data{
		ParticipantName: p.FullName(),
		Number:          num.Value,
		Vars: layout.Vars{
			EventName: ev.Title,
			EventDate: ev.FormattedDate(),
			Venue:     ev.Venue,
		},
	}, pipeline.Options{
		Formats: []string{pipeline.FormatPDF, pipeline.FormatPNG},
		Width:   o.opts.RasterWidth,
		Logger:  a.logger,
	})
	if err != nil {
		if errors.GetCode(err) == "" {
			err = errors.Wrap(errors.ErrCodeRenderFailure, err, "render %s", num.Value)
		}
		return a.fail(err)
	}

	refs := make(map[string]string, 2)
	for _, format := range []string{pipeline.FormatPDF, pipeline.FormatPNG} {
		key := blob.Key(ev.ID, num.Value, format)
		data := out.Artifacts[format]
		err := o.blobs.Put(ctx, key, data, blob.ContentType(key))
		observability.Generation().OnUpload(ctx, format, len(data), err)
		if err != nil {
			return a.fail(errors.Wrap(errors.ErrCodeUploadFailure, err, "upload %s", key))
		}
		refs[format] = key
	}

	a.enter(StatePersisting)
	now := o.opts.Now().UTC()
	completed := ev.StartDate
	if completed.IsZero() {
		completed = now
	}
	c := &certificate.Certificate{
		ID:              certificate.NewID(),
		EventID:         ev.ID,
		UserID:          p.UserID,
		Number:          num.Value,
		Sequence:        num.Sequence,
		ParticipantName: p.FullName(),
		EventTitle:      ev.Title,
		CompletionDate:  completed,
		VectorRef:       refs[pipeline.FormatPDF],
		RasterRef:       refs[pipeline.FormatPNG],
		GeneratedAt:     now,
	}
	switch err := o.store.Insert(ctx, c); {
	case stderrors.Is(err, store.ErrDuplicateCertificate):
		// An abandoned claim was taken over while its owner still
		// finished. Theirs was first.
		res, lookupErr := o.existing(ctx, ev.ID, p.UserID)
		if lookupErr != nil || res == nil {
			return a.fail(errors.Wrap(errors.ErrCodeDuplicateCertificate, err, "insert %s", num.Value))
		}
		a.enter(StateGenerated)
		return res, nil
	case stderrors.Is(err, store.ErrNumberTaken):
		return a.fail(fmt.Errorf("%w: %w", numbering.ErrAllocationConflict, err))
	case err != nil:
		return a.fail(errors.Wrap(errors.ErrCodeInternal, err, "insert %s", num.Value))
	}

	a.enter(StateGenerated)
	return &Result{Certificate: c, State: StateGenerated, Degraded: out.Degraded}, nil
}

// Lookup returns the certificate numbered number within eventID.
func (o *Orchestrator) Lookup(ctx context.Context, eventID, number string) (*certificate.Certificate, error) {
	return o.store.GetByNumber(ctx, eventID, number)
}

// List returns an event's certificates in issuance order.
func (o *Orchestrator) List(ctx context.Context, eventID string) ([]certificate.Certificate, error) {
	return o.store.List(ctx, eventID)
}

// Artifact returns the stored bytes of an artifact reference.
func (o *Orchestrator) Artifact(ctx context.Context, ref string) ([]byte, error) {
	return o.blobs.Get(ctx, ref)
}
