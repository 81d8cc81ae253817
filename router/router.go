package router

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/stemchat/agent"
	"github.com/BaSui01/stemchat/internal/metrics"
	"github.com/BaSui01/stemchat/internal/telemetry"
)

// =============================================================================
// 🧭 Router
// =============================================================================

const (
	// DefaultThreshold is the lowest confidence that still goes to an agent.
	DefaultThreshold = 0.3

	// FallbackName is reported as agent_used when no agent claims a message.
	FallbackName = "fallback"

	msgInternalError = "internal agent error"
	msgFallbackError = "I couldn't process that"
	msgTimedOut      = "request timed out"
)

// Result is the routed answer handed back to the chat surface.
type Result struct {
	AgentUsed  string   `json:"agent_used"`
	Confidence float64  `json:"confidence"`
	Success    bool     `json:"success"`
	Message    string   `json:"message"`
	Data       any      `json:"data,omitempty"`
	Actions    []string `json:"actions,omitempty"`
}

// Fallback answers messages no agent is confident about.
type Fallback interface {
	Complete(ctx context.Context, message string, rc agent.RequestContext) (string, error)
}

// Option configures a Router.
type Option func(*Router)

// WithThreshold overrides DefaultThreshold. Values outside (0, 1) are ignored.
func WithThreshold(t float64) Option {
	return func(r *Router) {
		if t > 0 && t < 1 {
			r.threshold = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics records every route on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(r *Router) { r.metrics = c }
}

// WithTracer overrides the global otel tracer.
func WithTracer(t trace.Tracer) Option {
	return func(r *Router) {
		if t != nil {
			r.tracer = t
		}
	}
}

// Router picks the most confident agent for a message. The agent list is
// fixed at construction, so Route is safe for concurrent use.
type Router struct {
	agents    []agent.Agent
	fallback  Fallback
	threshold float64

	logger  *zap.Logger
	metrics *metrics.Collector
	tracer  trace.Tracer
}

// New builds a Router over agents in priority order. Earlier agents win ties.
func New(agents []agent.Agent, fallback Fallback, opts ...Option) (*Router, error) {
	seen := make(map[string]struct{}, len(agents))
	for i, a := range agents {
		if a == nil {
			return nil, fmt.Errorf("agent %d is nil", i)
		}
		if _, dup := seen[a.Name()]; dup {
			return nil, fmt.Errorf("duplicate agent name %q", a.Name())
		}
		seen[a.Name()] = struct{}{}
	}

	r := &Router{
		agents:    append([]agent.Agent(nil), agents...),
		fallback:  fallback,
		threshold: DefaultThreshold,
		logger:    zap.NewNop(),
		tracer:    telemetry.Tracer("router"),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.String("component", "router"))
	return r, nil
}

// Threshold returns the active confidence threshold.
func (r *Router) Threshold() float64 { return r.threshold }

// Agents describes every registered agent in registration order.
func (r *Router) Agents() []agent.Descriptor {
	out := make([]agent.Descriptor, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, agent.Describe(a))
	}
	return out
}

// Route assesses every agent, executes the winner and falls back to the LLM
// below the threshold.
func (r *Router) Route(ctx context.Context, message string, rc agent.RequestContext, store agent.Store) Result {
	ctx, span := r.tracer.Start(ctx, "router.Route")
	defer span.End()

	best, score := r.selectAgent(message, rc)
	span.SetAttributes(attribute.Float64("router.confidence", score))

	if best == nil || score < r.threshold {
		res := r.runFallback(ctx, message, rc, score)
		span.SetAttributes(
			attribute.String("router.agent", FallbackName),
			attribute.Bool("router.success", res.Success),
		)
		if !res.Success {
			span.SetStatus(codes.Error, res.Message)
		}
		return res
	}

	name := best.Name()
	span.SetAttributes(attribute.String("router.agent", name))

	if err := ctx.Err(); err != nil {
		r.metrics.RecordRoute(name, "failure", score)
		span.SetStatus(codes.Error, err.Error())
		return Result{AgentUsed: name, Confidence: score, Message: msgTimedOut}
	}

	start := time.Now()
	res, panicked := r.execute(ctx, best, message, rc, store)
	r.metrics.RecordAgentExecution(name, time.Since(start))

	out := Result{
		AgentUsed:  name,
		Confidence: score,
		Success:    res.Success,
		Message:    res.Message,
		Data:       res.Data,
		Actions:    res.Actions,
	}
	if panicked || (!res.Success && strings.TrimSpace(res.Message) == "") {
		out = Result{AgentUsed: name, Confidence: score, Message: msgInternalError}
	}

	outcome := "success"
	if !out.Success {
		outcome = "failure"
		span.SetStatus(codes.Error, out.Message)
	}
	span.SetAttributes(attribute.Bool("router.success", out.Success))
	r.metrics.RecordRoute(name, outcome, score)

	r.logger.Debug("message routed",
		zap.String("agent", name),
		zap.Float64("confidence", score),
		zap.Bool("success", out.Success),
	)
	return out
}

// selectAgent returns the first agent with the strictly highest score.
func (r *Router) selectAgent(message string, rc agent.RequestContext) (agent.Agent, float64) {
	var (
		best  agent.Agent
		score = -1.0
	)
	for _, a := range r.agents {
		s := r.assess(a, message, rc)
		if s > score {
			best, score = a, s
		}
	}
	if best == nil {
		return nil, 0
	}
	return best, score
}

// assess clamps the score into [0, 1]; a panicking Assess scores 0.
func (r *Router) assess(a agent.Agent, message string, rc agent.RequestContext) (score float64) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("agent assess panicked", zap.String("agent", a.Name()), zap.Any("panic", p))
			score = 0
		}
	}()
	s := a.Assess(message, rc)
	switch {
	case math.IsNaN(s) || s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}

func (r *Router) execute(ctx context.Context, a agent.Agent, message string, rc agent.RequestContext, store agent.Store) (res agent.Result, panicked bool) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("agent execute panicked", zap.String("agent", a.Name()), zap.Any("panic", p))
			res, panicked = agent.Result{}, true
		}
	}()
	return a.Execute(ctx, message, rc, store), false
}

func (r *Router) runFallback(ctx context.Context, message string, rc agent.RequestContext, score float64) Result {
	res := Result{AgentUsed: FallbackName, Confidence: score}
	if r.fallback == nil {
		res.Message = msgFallbackError
		r.metrics.RecordRoute(FallbackName, "fallback_error", score)
		return res
	}

	reply, err := r.fallback.Complete(ctx, message, rc)
	if err != nil || strings.TrimSpace(reply) == "" {
		r.logger.Warn("fallback failed", zap.Error(err))
		res.Message = msgFallbackError
		res.Actions = []string{"error"}
		r.metrics.RecordRoute(FallbackName, "fallback_error", score)
		return res
	}

	res.Success = true
	res.Message = strings.TrimSpace(reply)
	res.Actions = []string{"general_chat"}
	r.metrics.RecordRoute(FallbackName, "fallback", score)
	return res
}
