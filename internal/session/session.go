package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/expense-docs/constants"
	"github.com/joseph-ayodele/expense-docs/internal/assembly"
	"github.com/joseph-ayodele/expense-docs/internal/common"
	"github.com/joseph-ayodele/expense-docs/internal/extract"
	"github.com/joseph-ayodele/expense-docs/internal/intake"
)

var (
	// ErrInFlight is returned when an extraction or submission is already running.
	// The session is left untouched.
	ErrInFlight = errors.New("session: operation already in flight")
	// ErrDiscarded is returned to a caller whose response arrived after Cancel.
	ErrDiscarded = errors.New("session: closed before the response arrived")
)

// Selector validates a user's file choice.
type Selector interface {
	SelectFile(c intake.Candidate) (intake.RawFile, error)
}

// Extractor is the remote OCR call.
type Extractor interface {
	Extract(ctx context.Context, raw intake.RawFile, docType constants.DocumentType, solicitudID string) (extract.Result, error)
}

// Outcome is delivered once per Process call.
type Outcome struct {
	State constants.SessionState
	Err   error
	// Discarded is set when the session was cancelled or moved on before the response arrived.
	Discarded bool
}

// Session owns one in-progress submission. Safe for concurrent use; every async
// completion is checked against the generation it started under.
type Session struct {
	selector  Selector
	extractor Extractor
	handoff   assembly.Handoff
	logger    *slog.Logger
	previews  bool

	mu          sync.Mutex
	gen         uint64
	state       constants.SessionState
	file        *intake.RawFile
	docType     constants.DocumentType
	solicitudID string
	extraction  *extract.Result
	manualTotal string
	lastErr     error
	preview     string
	previewTask *intake.PreviewTask
	cancel      context.CancelFunc
	receipt     *assembly.Receipt
}

type Option func(*Session)

func WithDocumentType(dt constants.DocumentType) Option {
	return func(s *Session) {
		if dt.Valid() {
			s.docType = dt
		}
	}
}

func WithSolicitudID(id string) Option {
	return func(s *Session) { s.solicitudID = id }
}

// WithPreviews toggles thumbnail generation (on by default).
func WithPreviews(enabled bool) Option {
	return func(s *Session) { s.previews = enabled }
}

func New(selector Selector, extractor Extractor, handoff assembly.Handoff, logger *slog.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		selector:  selector,
		extractor: extractor,
		handoff:   handoff,
		logger:    logger,
		previews:  true,
		state:     constants.StateIdle,
		docType:   constants.Boleta,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SelectFile replaces the current file. Any previous preview, error, extraction and
// manual total are dropped. A rejected candidate leaves the session as it was apart
// from the recorded error.
func (s *Session) SelectFile(c intake.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Busy() {
		s.logger.Warn("session.select.rejected", "state", s.state, "reason", "in_flight")
		return ErrInFlight
	}

	raw, err := s.selector.SelectFile(c)
	if err != nil {
		s.lastErr = err
		return err
	}

	s.resetLocked()
	s.file = &raw
	s.transitionLocked(constants.StateFileSelected)

	if s.previews && !raw.IsPDF() {
		task := intake.StartPreview(context.Background(), raw, s.logger)
		s.previewTask = task
		go s.awaitPreview(s.gen, task)
	}
	return nil
}

func (s *Session) awaitPreview(gen uint64, task *intake.PreviewTask) {
	<-task.Done()
	url, ok := task.Result()

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.previewTask != task {
		return
	}
	if ok {
		s.preview = url
	}
}

// SetDocumentType changes the declared document type.
func (s *Session) SetDocumentType(dt constants.DocumentType) error {
	if !dt.Valid() {
		return common.NewAppError(common.KindInvalidState, fmt.Sprintf("unknown document type %q", dt), common.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == constants.StateSubmitting {
		return ErrInFlight
	}
	s.docType = dt
	return nil
}

func (s *Session) SetSolicitudID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Busy() {
		return ErrInFlight
	}
	s.solicitudID = id
	return nil
}

// SetManualTotal records the user's total. Validation re-runs on the next Fields or Submit.
func (s *Session) SetManualTotal(total string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == constants.StateSubmitting {
		return ErrInFlight
	}
	s.manualTotal = total
	return nil
}

// Process starts an extraction of the current file. It returns immediately; the
// returned channel yields exactly one Outcome. Calling it while an extraction or
// submission is running returns ErrInFlight and changes nothing.
func (s *Session) Process(ctx context.Context) (<-chan Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Busy() {
		s.logger.Warn("session.process.rejected", "state", s.state, "reason", "in_flight")
		return nil, ErrInFlight
	}
	switch s.state {
	case constants.StateFileSelected, constants.StateAwaitingCorrection, constants.StateFailed:
	default:
		return nil, invalidState("process", s.state)
	}
	if s.file == nil {
		return nil, invalidState("process", s.state)
	}

	raw := *s.file
	docType, solicitudID := s.docType, s.solicitudID
	gen := s.gen

	flightCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.extraction = nil
	s.lastErr = nil
	s.transitionLocked(constants.StateExtracting)

	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		defer cancel()
		start := time.Now()
		res, err := s.extractor.Extract(flightCtx, raw, docType, solicitudID)
		o := s.applyExtraction(gen, res, err)
		s.logger.Info("session.process.done",
			"state", o.State,
			"discarded", o.Discarded,
			"kind", common.KindOf(o.Err),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		out <- o
	}()
	return out, nil
}

func (s *Session) applyExtraction(gen uint64, res extract.Result, err error) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || s.state != constants.StateExtracting {
		s.logger.Info("session.stale_response_discarded", "op", "extract", "started_gen", gen, "gen", s.gen, "state", s.state)
		return Outcome{State: s.state, Err: ErrDiscarded, Discarded: true}
	}
	s.cancel = nil

	switch {
	case err == nil:
		s.extraction = &res
		if res.Empty {
			s.lastErr = common.NewAppError(common.KindEmptyExtraction, common.MsgEmptyExtraction, nil)
		}
		s.transitionLocked(constants.StateAwaitingCorrection)
	case common.KindOf(err) == common.KindServiceError:
		// The service could not read the document: let the user fill the fields in.
		empty := extract.EmptyResult()
		s.extraction = &empty
		s.lastErr = err
		s.transitionLocked(constants.StateAwaitingCorrection)
	default:
		s.lastErr = err
		s.transitionLocked(constants.StateFailed)
	}
	return Outcome{State: s.state, Err: s.lastErr}
}

// Submit assembles the document and hands it off. A missing total sends the session
// back to AwaitingCorrection with MISSING_TOTAL; a handoff failure ends in Failed.
func (s *Session) Submit(ctx context.Context) (assembly.Receipt, error) {
	s.mu.Lock()
	if s.state.Busy() {
		s.mu.Unlock()
		s.logger.Warn("session.submit.rejected", "reason", "in_flight")
		return assembly.Receipt{}, ErrInFlight
	}
	if s.extraction == nil || (s.state != constants.StateAwaitingCorrection && s.state != constants.StateFailed) {
		err := invalidState("submit", s.state)
		s.mu.Unlock()
		return assembly.Receipt{}, err
	}

	s.transitionLocked(constants.StateSubmitting)
	doc, err := assembly.Assemble(assembly.Input{
		File:        s.file,
		Type:        s.docType,
		SolicitudID: s.solicitudID,
		Fields:      extract.Validate(*s.extraction, s.manualTotal),
	})
	if err != nil {
		s.lastErr = err
		s.transitionLocked(constants.StateAwaitingCorrection)
		s.mu.Unlock()
		return assembly.Receipt{}, err
	}

	gen := s.gen
	flightCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancel = cancel
	s.lastErr = nil
	s.mu.Unlock()

	receipt, err := s.handoff.Save(flightCtx, doc)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.state != constants.StateSubmitting {
		s.logger.Info("session.stale_response_discarded", "op", "submit", "started_gen", gen, "gen", s.gen, "state", s.state)
		return assembly.Receipt{}, ErrDiscarded
	}
	s.cancel = nil
	if err != nil {
		s.lastErr = common.NewAppError(common.KindHandoffFailed, common.MessageOf(err), err)
		s.transitionLocked(constants.StateFailed)
		return assembly.Receipt{}, s.lastErr
	}

	s.receipt = &receipt
	s.releaseFileLocked()
	s.transitionLocked(constants.StateCompleted)
	return receipt, nil
}

// Cancel tears the session down to Idle from any state. Responses still in flight
// are discarded when they arrive.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.transitionLocked(constants.StateIdle)
}

// Fields re-runs validation on the current extraction and manual total.
func (s *Session) Fields() extract.Fields {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fieldsLocked()
}

func (s *Session) fieldsLocked() extract.Fields {
	res := extract.Result{}
	if s.extraction != nil {
		res = *s.extraction
	}
	return extract.Validate(res, s.manualTotal)
}

func (s *Session) State() constants.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// resetLocked bumps the generation and drops everything tied to the current file.
func (s *Session) resetLocked() {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.releaseFileLocked()
	s.extraction = nil
	s.manualTotal = ""
	s.lastErr = nil
	s.receipt = nil
}

func (s *Session) releaseFileLocked() {
	if s.previewTask != nil {
		s.previewTask.Cancel()
		s.previewTask = nil
	}
	s.preview = ""
	s.file = nil
}

func (s *Session) transitionLocked(to constants.SessionState) {
	if s.state == to {
		return
	}
	s.logger.Info("session.transition", "from", s.state, "to", to, "gen", s.gen, "solicitud_id", s.solicitudID)
	s.state = to
}

func invalidState(op string, st constants.SessionState) error {
	return common.NewAppError(common.KindInvalidState, fmt.Sprintf("cannot %s while %s", op, st), common.ErrInvalidInput)
}
