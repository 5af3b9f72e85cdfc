package module

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

// Step is the wizard's position: Overview -> Content -> Review.
type Step int

const (
	StepOverview Step = iota + 1
	StepContent
	StepReview
)

func (s Step) String() string {
	switch s {
	case StepOverview:
		return "overview"
	case StepContent:
		return "content"
	case StepReview:
		return "review"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

func (s Step) valid() bool { return s >= StepOverview && s <= StepReview }

// Query parameters carrying the wizard state; the URL is the only
// persisted "session" the wizard has.
const (
	paramModuleID     = "moduleId"
	paramStep         = "step"
	paramPreselCourse = "preselectedCourseId"
)

// WizardState is the resumable position of one authoring session.
// It is derived state: reconstructed from the URL on every load,
// rewritten on every transition, owned by nobody.
type WizardState struct {
	Step                Step   `json:"step"`
	ModuleID            string `json:"module_id,omitempty"`
	PreselectedCourseID string `json:"preselected_course_id,omitempty"`
}

// WizardStateFromQuery rebuilds the state from URL query parameters.
// Unknown or out-of-range steps resolve to Overview, as does a step
// pointing past Overview with no module to resume.
func WizardStateFromQuery(q url.Values) WizardState {
	ws := WizardState{
		Step:                StepOverview,
		ModuleID:            core.CleanString(q.Get(paramModuleID)),
		PreselectedCourseID: core.CleanString(q.Get(paramPreselCourse)),
	}
	if n, err := strconv.Atoi(q.Get(paramStep)); err == nil {
		if s := Step(n); s.valid() {
			ws.Step = s
		}
	}
	if ws.ModuleID == "" && ws.Step > StepOverview {
		ws.Step = StepOverview
	}
	return ws
}

// Query encodes the state back into URL query parameters; a reload of the
// resulting URL reconstructs an identical state.
func (ws WizardState) Query() url.Values {
	q := make(url.Values)
	q.Set(paramStep, strconv.Itoa(int(ws.Step)))
	if ws.ModuleID != "" {
		q.Set(paramModuleID, ws.ModuleID)
	}
	if ws.PreselectedCourseID != "" {
		q.Set(paramPreselCourse, ws.PreselectedCourseID)
	}
	return q
}

func (ws WizardState) Encode() string { return ws.Query().Encode() }

// Flusher is the sub-editor's flush contract: Flush persists any pending
// content edits for the module before returning. Implementations must
// honor ctx cancellation; the wizard only waits so long.
type Flusher interface {
	Flush(ctx context.Context, moduleID string) error
}

// FlusherFunc adapts a function to the Flusher interface.
type FlusherFunc func(ctx context.Context, moduleID string) error

func (f FlusherFunc) Flush(ctx context.Context, moduleID string) error { return f(ctx, moduleID) }

// Wizard drives one authoring session through its three steps.
// Transitions are atomic with respect to persistence: the step only moves
// once the backing store call has succeeded, so a failed submission leaves
// the observable state untouched.
type Wizard struct {
	state        WizardState
	actor        user.User
	svc          ServiceInterface
	flusher      Flusher
	flushTimeout time.Duration
	logger       core.Logger
}

func NewWizard(
	state WizardState,
	actor user.User,
	svc ServiceInterface,
	flusher Flusher,
	conf *core.Config,
	logger core.Logger,
) *Wizard {
	if !state.Step.valid() {
		state.Step = StepOverview
	}
	return &Wizard{
		state:        state,
		actor:        actor,
		svc:          svc,
		flusher:      flusher,
		flushTimeout: conf.Wizard.FlushTimeout,
		logger:       logger,
	}
}

func (w *Wizard) State() WizardState { return w.state }

// Resume loads the draft (and its content items, past Overview) for the
// current state so a page reload lands back where the author left off.
func (w *Wizard) Resume(ctx context.Context) (Module, []ContentItem, error) {
	if w.state.ModuleID == "" {
		return Module{}, nil, nil
	}
	mod, err := w.svc.GetOwned(ctx, w.state.ModuleID, w.actor)
	if err != nil {
		return Module{}, nil, err
	}
	var items []ContentItem
	if w.state.Step > StepOverview {
		if items, err = w.svc.QueryContentItems(ctx, mod.ID); err != nil {
			return Module{}, nil, err
		}
	}
	return mod, items, nil
}

// Advance persists payload for the current step and, only on success,
// moves to the next step. Advancing from Review is the publish transition.
// payload may be nil at Content, where the transition is driven by the
// sub-editor's save completion rather than a form submission.
func (w *Wizard) Advance(ctx context.Context, payload *Draft) (Module, error) {
	switch w.state.Step {
	case StepOverview:
		if payload == nil {
			return Module{}, core.NewValidationError(errors.New("missing module details"))
		}
		mod, err := w.svc.SaveDraft(ctx, w.actor, w.state.ModuleID, *payload)
		if err != nil {
			return Module{}, err
		}
		w.state.ModuleID = mod.ID
		w.state.Step = StepContent
		return mod, nil

	case StepContent:
		mod, err := w.svc.GetOwned(ctx, w.state.ModuleID, w.actor)
		if err != nil {
			return Module{}, err
		}
		w.state.Step = StepReview
		return mod, nil

	case StepReview:
		if payload == nil {
			return Module{}, core.NewValidationError(errors.New("missing module details"))
		}
		return w.svc.Publish(ctx, w.actor, w.state.ModuleID, *payload)
	}

	return Module{}, errors.Errorf("cannot advance from %s", w.state.Step)
}

// GoBack decrements the step. Leaving Content first triggers the
// sub-editor's flush and waits for it up to the configured timeout; on
// timeout or flush failure the transition proceeds anyway and the outcome
// is reported through the returned flag (best effort, by the observed
// contract). flushed is true when no flush was needed or it completed.
func (w *Wizard) GoBack(ctx context.Context) (flushed bool, err error) {
	switch w.state.Step {
	case StepOverview:
		return true, errors.New("cannot go back from the first step")

	case StepContent:
		flushed = w.flushContent(ctx)
		w.state.Step = StepOverview
		return flushed, nil

	case StepReview:
		w.state.Step = StepContent
		return true, nil
	}

	return false, errors.Errorf("cannot go back from %s", w.state.Step)
}

func (w *Wizard) flushContent(ctx context.Context) bool {
	if w.flusher == nil || w.state.ModuleID == "" {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, w.flushTimeout)
	defer cancel()

	if err := w.flusher.Flush(ctx, w.state.ModuleID); err != nil {
		w.logger.Warn(
			fmt.Sprintf("content flush did not complete; leaving step anyway: %v", err),
			err, core.LoggedUser{ID: w.actor.ID, Username: w.actor.Username, Email: w.actor.Email},
		)
		return false
	}
	return true
}
