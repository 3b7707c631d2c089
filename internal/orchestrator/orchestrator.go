// Package orchestrator runs the agent pipeline for one conversation turn and
// streams the result. It owns turn state, per-agent timings, and the
// guarantee that every stream ends with a done event.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopmate-ai/shopmate/internal/agent"
	"github.com/shopmate-ai/shopmate/internal/events"
	"github.com/shopmate-ai/shopmate/internal/guardrail"
	"github.com/shopmate-ai/shopmate/internal/memory"
	"github.com/shopmate-ai/shopmate/internal/metrics"
)

const retrievalErrorMessage = "Something went wrong while searching the catalog. Please try again."

// Planner routes a turn to an intent.
type Planner interface {
	agent.Agent
	Plan(ctx context.Context, turn *agent.Turn) agent.Plan
}

// Retriever searches the catalog for a turn.
type Retriever interface {
	agent.Agent
	Retrieve(ctx context.Context, turn *agent.Turn, plan agent.Plan) (agent.RetrieverResult, error)
}

// CartAgent applies cart operations for a turn.
type CartAgent interface {
	agent.Agent
	Apply(ctx context.Context, turn *agent.Turn, plan agent.Plan) (agent.CartResult, error)
}

// Chatter composes and streams the reply.
type Chatter interface {
	agent.Agent
	Compose(ctx context.Context, in agent.ChatterInput, emit func(string) error) (string, error)
}

// Summarizer keeps persisted context within budget.
type Summarizer interface {
	agent.Agent
	Condense(ctx context.Context, convo string) string
}

// Gate is the safety check applied to inbound queries and outbound replies.
type Gate interface {
	Check(ctx context.Context, userID int, text string, dir guardrail.Direction) guardrail.Verdict
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Planner    Planner
	Retriever  Retriever
	Cart       CartAgent
	Chatter    Chatter
	Summarizer Summarizer
	Gate       Gate
	Store      memory.Store
	Events     *events.Publisher
	Logger     *slog.Logger

	// UnsafeMessage is the reply for a blocked input and the corrective
	// notice appended when the output gate flags a streamed reply.
	UnsafeMessage string
}

// Orchestrator drives the planner → retriever/cart → chatter → summary
// pipeline.
type Orchestrator struct {
	deps Deps
}

// New creates an orchestrator from its collaborators.
func New(deps Deps) *Orchestrator {
	return &Orchestrator{deps: deps}
}

// Handle runs the pipeline for one turn. The returned channel delivers
// events in production order and is closed after the terminal done event.
// Cancelling ctx stops the pipeline; the channel is always closed.
func (o *Orchestrator) Handle(ctx context.Context, turn *agent.Turn) <-chan agent.StreamEvent {
	out := make(chan agent.StreamEvent, 16)
	go func() {
		defer close(out)
		o.run(ctx, turn, out)
	}()
	return out
}

// turnRun bundles the per-turn mutable state threaded through the steps.
type turnRun struct {
	out     chan<- agent.StreamEvent
	timings map[string]float64
	start   time.Time
}

// emit delivers one event unless the client is gone.
func (r *turnRun) emit(ctx context.Context, ev agent.StreamEvent) bool {
	select {
	case r.out <- ev:
		metrics.StreamEventsTotal.WithLabelValues(string(ev.Type)).Inc()
		return true
	case <-ctx.Done():
		return false
	}
}

// timed records the wall time of one pipeline step under the agent's name.
func (r *turnRun) timed(name string, fn func()) {
	start := time.Now()
	fn()
	r.timings[name] = time.Since(start).Seconds()
}

// finish seals the timing map with the total turn duration.
func (r *turnRun) finish() map[string]float64 {
	r.timings["total"] = time.Since(r.start).Seconds()
	return r.timings
}

func (o *Orchestrator) run(ctx context.Context, turn *agent.Turn, out chan<- agent.StreamEvent) {
	d := o.deps
	run := &turnRun{out: out, timings: make(map[string]float64), start: time.Now()}
	log := d.Logger.With("turn_id", turn.ID, "user_id", turn.UserID)

	o.loadSession(ctx, turn, log)

	// Input gate. A blocked turn never reaches the planner.
	if turn.Guardrails && turn.Query != "" {
		var verdict guardrail.Verdict
		run.timed("guardrail_input", func() {
			verdict = d.Gate.Check(ctx, turn.UserID, turn.Query, guardrail.Input)
		})
		if !verdict.Allowed {
			log.Info("input blocked by guardrail", "reason", verdict.Reason)
			d.Events.PublishGuardrailBlocked(ctx, events.GuardrailBlocked{
				TurnID: turn.ID, UserID: turn.UserID,
				Direction: string(guardrail.Input), Timestamp: time.Now().UTC(),
			})
			metrics.TurnsTotal.WithLabelValues("blocked_input").Inc()
			run.emit(ctx, agent.ContentEvent(d.UnsafeMessage))
			run.emit(ctx, agent.DoneEvent(run.finish()))
			return
		}
	}

	var plan agent.Plan
	run.timed(d.Planner.Name(), func() { plan = d.Planner.Plan(ctx, turn) })
	log.Debug("turn planned", "intent", plan.Intent)

	var (
		chatterIn = agent.ChatterInput{Query: turn.Query, Context: turn.Context}
		retrieved agent.RetrievedSet
		cartRes   agent.CartResult
	)

	switch {
	case plan.Intent == agent.IntentSearch:
		var (
			res agent.RetrieverResult
			err error
		)
		run.timed(d.Retriever.Name(), func() { res, err = d.Retriever.Retrieve(ctx, turn, plan) })
		if err != nil {
			log.Error("retrieval failed", "error", err)
			o.failTurn(ctx, run, retrievalErrorMessage)
			return
		}
		retrieved = res.Retrieved
		chatterIn.CatalogBlock = res.ContextBlock

	case plan.Intent.IsCartOp():
		var err error
		run.timed(d.Cart.Name(), func() { cartRes, err = d.Cart.Apply(ctx, turn, plan) })
		if err != nil {
			log.Error("cart operation failed", "intent", plan.Intent, "error", err)
			o.failTurn(ctx, run, "Something went wrong while updating your cart. Please try again.")
			return
		}
		chatterIn.CartBlock = cartRes.Description
		if cartRes.Mutated {
			d.Events.PublishCartMutated(ctx, events.CartMutated{
				TurnID: turn.ID, UserID: turn.UserID,
				Operation: string(cartRes.Operation), ItemID: cartRes.ItemID,
				Quantity: cartRes.Quantity, Timestamp: time.Now().UTC(),
			})
		}
	}

	// Product images go out as soon as retrieval settles, ahead of the reply
	// tokens, so clients can render cards while the text streams.
	if !retrieved.IsEmpty() {
		run.emit(ctx, agent.ImagesEvent(retrieved.ImageMap()))
	}

	// Reply. The cart operation has already completed, so the reply always
	// describes the post-mutation state.
	var (
		reply      string
		chatterErr error
		firstToken time.Time
	)
	run.timed(d.Chatter.Name(), func() {
		reply, chatterErr = d.Chatter.Compose(ctx, chatterIn, func(fragment string) error {
			if firstToken.IsZero() {
				firstToken = time.Now()
				run.timings["first_token"] = firstToken.Sub(run.start).Seconds()
			}
			if !run.emit(ctx, agent.ContentEvent(fragment)) {
				return ctx.Err()
			}
			return nil
		})
	})
	if chatterErr != nil {
		log.Error("reply composition failed", "error", chatterErr)
		// Whatever streamed before the failure is what the user saw; keep the
		// session consistent with it.
		if reply != "" {
			run.timed(d.Summarizer.Name(), func() {
				o.persistContext(ctx, turn, reply, log)
			})
		}
		o.failTurn(ctx, run, "Something went wrong while composing a reply. Please try again.")
		return
	}

	// Output gate: a fired rail flags the turn for audit. The reply already
	// streamed and cannot be retracted, so a corrective notice follows it and
	// the persisted exchange records the notice, not the flagged text.
	policyFlagged := false
	if turn.Guardrails && reply != "" {
		var verdict guardrail.Verdict
		run.timed("guardrail_output", func() {
			verdict = d.Gate.Check(ctx, turn.UserID, reply, guardrail.Output)
		})
		if !verdict.Allowed {
			policyFlagged = true
			log.Warn("reply flagged by output guardrail", "reason", verdict.Reason)
			d.Events.PublishGuardrailBlocked(ctx, events.GuardrailBlocked{
				TurnID: turn.ID, UserID: turn.UserID,
				Direction: string(guardrail.Output), Timestamp: time.Now().UTC(),
			})
			run.emit(ctx, agent.ContentEvent("\n\n"+d.UnsafeMessage))
			reply = d.UnsafeMessage
		}
	}

	run.timed(d.Summarizer.Name(), func() {
		o.persistContext(ctx, turn, reply, log)
	})

	timings := run.finish()
	d.Events.PublishTurnCompleted(ctx, events.TurnCompleted{
		TurnID: turn.ID, UserID: turn.UserID,
		Intent: string(plan.Intent), PolicyFlagged: policyFlagged,
		Timings: timings, Timestamp: time.Now().UTC(),
	})
	metrics.TurnsTotal.WithLabelValues("ok").Inc()
	for name, seconds := range timings {
		metrics.AgentDuration.WithLabelValues(name).Observe(seconds)
	}

	run.emit(ctx, agent.DoneEvent(timings))
	log.Info("turn completed", "intent", plan.Intent, "policy_flagged", policyFlagged,
		"duration_s", timings["total"])
}

// loadSession fills in context and cart from the session store when the
// request did not carry them. Load failures degrade to an empty session.
func (o *Orchestrator) loadSession(ctx context.Context, turn *agent.Turn, log *slog.Logger) {
	if turn.Context == "" {
		stored, err := o.deps.Store.GetContext(ctx, turn.UserID)
		if err != nil {
			log.Warn("loading session context failed", "error", err)
		} else {
			turn.Context = stored
		}
	}
	if turn.Cart.IsEmpty() {
		cart, err := o.deps.Store.GetCart(ctx, turn.UserID)
		if err != nil {
			log.Warn("loading cart failed", "error", err)
		} else {
			turn.Cart = cart
		}
	}
}

// failTurn converts an internal failure into a user-safe error event. The
// stream still terminates with done.
func (o *Orchestrator) failTurn(ctx context.Context, run *turnRun, msg string) {
	metrics.TurnsTotal.WithLabelValues("error").Inc()
	run.emit(ctx, agent.ErrorEvent(msg))
	run.emit(ctx, agent.DoneEvent(nil))
}

// persistContext appends this exchange and condenses when over budget.
func (o *Orchestrator) persistContext(ctx context.Context, turn *agent.Turn, reply string, log *slog.Logger) {
	exchange := fmt.Sprintf("User: %s\nAssistant: %s", turn.Query, reply)
	if turn.Query == "" {
		exchange = fmt.Sprintf("User: [image query]\nAssistant: %s", reply)
	}
	combined := exchange
	if turn.Context != "" {
		combined = turn.Context + "\n" + exchange
	}
	condensed := o.deps.Summarizer.Condense(ctx, combined)
	if err := o.deps.Store.ReplaceContext(ctx, turn.UserID, condensed); err != nil {
		log.Warn("persisting session context failed", "error", err)
	}
}
