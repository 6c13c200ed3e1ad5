package transform

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teilomillet/reprompt/errors"
	"github.com/teilomillet/reprompt/metrics"
	"github.com/teilomillet/reprompt/prompt"
	"github.com/teilomillet/reprompt/sonar"
	"github.com/teilomillet/reprompt/stack"
	"github.com/teilomillet/reprompt/tags"
)

// Validation messages shown to the user.
const (
	MsgNoText        = "No text selected."
	MsgNoInstruction = "No instruction found to generate examples for."
	MsgBadCount      = "Enter a number between 1 and 10"
)

// Orchestrator runs transformations, example generation and raw runs
// against a completion API.
//
// Key features:
// - Project stack inference appended to the prompt
// - House rules taken from an explicit snapshot
// - One operation per document at a time; concurrent callers are rejected
// - Themed progress reporting
// - Network and timeout failures rewritten into a friendly message
//
// An Orchestrator is safe for concurrent use.
type Orchestrator struct {
	client   sonar.Completer
	detector stack.StackDetector
	reporter Reporter
	tokens   TokenCounter
	metrics  *metrics.Metrics
	logger   *zap.Logger
	guard    *documentGuard

	root              string
	model             string
	searchContextSize string
	domainFilter      []string
	exampleCount      int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDetector sets the stack detector.
func WithDetector(d stack.StackDetector) Option {
	return func(o *Orchestrator) {
		if d != nil {
			o.detector = d
		}
	}
}

// WithReporter sets the progress reporter.
func WithReporter(r Reporter) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.reporter = r
		}
	}
}

// WithTokenCounter enables token counts in transformation stats.
func WithTokenCounter(tc TokenCounter) Option {
	return func(o *Orchestrator) {
		o.tokens = tc
	}
}

// WithMetrics records operation outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithWorkspaceRoot sets the directory probed for the project stack when a
// request names none.
func WithWorkspaceRoot(root string) Option {
	return func(o *Orchestrator) {
		o.root = root
	}
}

// WithDefaults sets the model and search context size used when a request
// leaves them empty.
func WithDefaults(model, searchContextSize string) Option {
	return func(o *Orchestrator) {
		o.model = model
		o.searchContextSize = searchContextSize
	}
}

// WithSearchDomainFilter restricts web search to domains on every call.
func WithSearchDomainFilter(domains []string) Option {
	return func(o *Orchestrator) {
		o.domainFilter = domains
	}
}

// WithExampleCount sets the number of examples generated when a request
// asks for none.
func WithExampleCount(n int) Option {
	return func(o *Orchestrator) {
		if n >= MinExampleCount && n <= MaxExampleCount {
			o.exampleCount = n
		}
	}
}

// NewOrchestrator creates an orchestrator calling client.
func NewOrchestrator(client sonar.Completer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:       client,
		reporter:     NopReporter{},
		logger:       zap.NewNop(),
		guard:        newDocumentGuard(),
		root:         ".",
		exampleCount: DefaultExampleCount,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.detector == nil {
		o.detector = stack.NewFileSystemDetector(o.logger)
	}
	return o
}

// Busy reports whether an operation is running for document.
func (o *Orchestrator) Busy(document string) bool {
	return document != "" && o.guard.busy(document)
}

func (o *Orchestrator) resolve(model, size string) (string, string) {
	if model == "" {
		model = o.model
	}
	if size == "" {
		size = o.searchContextSize
	}
	return prompt.ResolveModel(model), prompt.ResolveSearchContextSize(size)
}

func (o *Orchestrator) acquire(document, operation, requestID string) (func(), error) {
	release, ok := o.guard.tryAcquire(document)
	if !ok {
		o.metrics.RecordBusy()
		o.metrics.RecordOperation(operation, "busy")
		o.logger.Info("Document busy",
			zap.String("operation", operation),
			zap.String("document", document),
			zap.String("request_id", requestID),
		)
		return nil, errors.NewBusyError(requestID, document)
	}
	return release, nil
}

// fail classifies err, reports it and records the outcome.
func (o *Orchestrator) fail(r *run, operation, requestID string, err error) error {
	err = errors.Classify(requestID, err)

	outcome := "error"
	var re *errors.RepromptError
	if errors.As(err, &re) {
		outcome = string(re.Type)
	} else if ctxErr := r.ctx.Err(); ctxErr != nil {
		outcome = "canceled"
	}
	o.metrics.RecordOperation(operation, outcome)

	r.fail(errors.UserMessage(err))
	o.logger.Warn("Operation failed",
		zap.String("operation", operation),
		zap.String("document", r.document),
		zap.String("request_id", requestID),
		zap.String("outcome", outcome),
		zap.Error(err),
	)
	return err
}

// Transform turns req.Prompt into a structured prompt.
//
// The request is rejected when the prompt is blank or another operation is
// running for the same document. An empty completion returns an
// EmptyResultError and nothing else.
func (o *Orchestrator) Transform(ctx context.Context, req TransformRequest) (*Result, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		o.metrics.RecordOperation(OpTransform, string(errors.ValidationError))
		return nil, errors.NewValidationError(req.RequestID, MsgNoText, map[string]interface{}{
			"field": "prompt",
		})
	}

	release, err := o.acquire(req.Document, OpTransform, req.RequestID)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	r := newRun(ctx, o.reporter, req.Document, OpTransform)
	r.step(StepPreparing)

	var stackBlock string
	if req.InferStack {
		root := req.Root
		if root == "" {
			root = o.root
		}
		stackBlock = o.detector.Detect(root)
		if stackBlock != "" {
			o.logger.Debug("Project stack detected", zap.String("root", root))
		}
	}

	model, size := o.resolve(req.Model, req.SearchContextSize)
	chatReq := &sonar.ChatRequest{
		Model: model,
		Messages: []sonar.Message{
			{Role: sonar.RoleSystem, Content: prompt.BuildOptimizeSystemPrompt(req.Rules.Text())},
			{Role: sonar.RoleUser, Content: req.Prompt + stackBlock},
		},
		WebSearchOptions:   &sonar.WebSearchOptions{SearchContextSize: size},
		SearchDomainFilter: o.domainFilter,
	}

	r.step(StepSending)
	resp, err := o.client.ChatCompletions(ctx, chatReq)
	if err != nil {
		return nil, o.fail(r, OpTransform, req.RequestID, err)
	}

	r.step(StepProcessing)
	text := sonar.ExtractContent(resp)
	if text == "" {
		return nil, o.fail(r, OpTransform, req.RequestID, errors.NewEmptyResultError(req.RequestID, OpTransform))
	}

	r.step(StepApplying)
	stats := ComputeStats(req.Prompt, text, time.Since(start), o.tokens)

	r.step(StepHighlighting)
	regions := tags.HighlightTaggedRegions(text)

	r.step(StepCompleted)
	o.metrics.RecordOperation(OpTransform, "success")
	o.metrics.ObserveExpansion(stats.ExpansionRatio)
	o.logger.Info("Prompt transformed",
		zap.String("document", req.Document),
		zap.String("request_id", req.RequestID),
		zap.String("model", model),
		zap.Bool("rules", req.Rules.Present()),
		zap.Int("expansion_percent", stats.ExpansionPercent),
		zap.Duration("elapsed", stats.Elapsed),
	)

	res := &Result{
		Text:       text,
		Regions:    regions,
		Stats:      stats,
		StackBlock: stackBlock,
		Model:      model,
	}
	if req.Rules.Present() {
		res.RulesSource = req.Rules.Source
	}
	return res, nil
}

// GenerateExamples asks for req.Count examples of the instruction found in
// the selection or the document and upserts them as the document's
// <examples> block.
func (o *Orchestrator) GenerateExamples(ctx context.Context, req ExamplesRequest) (*ExamplesResult, error) {
	count := req.Count
	if count == 0 {
		count = o.exampleCount
	}
	if count < MinExampleCount || count > MaxExampleCount {
		o.metrics.RecordOperation(OpExamples, string(errors.ValidationError))
		return nil, errors.NewValidationError(req.RequestID, MsgBadCount, map[string]interface{}{
			"field": "count",
			"value": count,
		})
	}

	instruction := tags.ExtractInstruction(req.Selection, req.Text)
	if instruction == "" {
		o.metrics.RecordOperation(OpExamples, string(errors.ValidationError))
		return nil, errors.NewValidationError(req.RequestID, MsgNoInstruction, map[string]interface{}{
			"field": "instruction",
		})
	}

	release, err := o.acquire(req.Document, OpExamples, req.RequestID)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	r := newRun(ctx, o.reporter, req.Document, OpExamples)
	r.step(StepPreparing)

	text, err := prompt.BuildExamplesPrompt(count, instruction)
	if err != nil {
		return nil, o.fail(r, OpExamples, req.RequestID, errors.NewInternalError(req.RequestID, err))
	}

	model, size := o.resolve(req.Model, req.SearchContextSize)
	r.step(StepSending)
	resp, err := o.client.ChatCompletions(ctx, &sonar.ChatRequest{
		Model:              model,
		Messages:           []sonar.Message{{Role: sonar.RoleUser, Content: text}},
		WebSearchOptions:   &sonar.WebSearchOptions{SearchContextSize: size},
		SearchDomainFilter: o.domainFilter,
	})
	if err != nil {
		return nil, o.fail(r, OpExamples, req.RequestID, err)
	}

	r.step(StepProcessing)
	content := sonar.ExtractContent(resp)
	if content == "" {
		return nil, o.fail(r, OpExamples, req.RequestID, errors.NewEmptyResultError(req.RequestID, OpExamples))
	}

	r.step(StepApplying)
	block := tags.WrapExamples(content)
	updated := tags.UpsertTaggedBlock(req.Text, tags.Examples, block)

	r.step(StepHighlighting)
	regions := tags.HighlightTaggedRegions(updated)

	r.step(StepCompleted)
	o.metrics.RecordOperation(OpExamples, "success")
	elapsed := time.Since(start)
	o.logger.Info("Examples generated",
		zap.String("document", req.Document),
		zap.String("request_id", req.RequestID),
		zap.Int("count", count),
		zap.Duration("elapsed", elapsed),
	)

	return &ExamplesResult{
		Text:        updated,
		Examples:    block,
		Instruction: instruction,
		Count:       count,
		Regions:     regions,
		Elapsed:     elapsed,
	}, nil
}

// Run sends req.Prompt as a single user message and returns the raw
// response.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		o.metrics.RecordOperation(OpRun, string(errors.ValidationError))
		return nil, errors.NewValidationError(req.RequestID, MsgNoText, map[string]interface{}{
			"field": "prompt",
		})
	}

	start := time.Now()
	r := newRun(ctx, o.reporter, "", OpRun)
	r.step(StepSending)

	model, size := o.resolve(req.Model, req.SearchContextSize)
	resp, err := o.client.ChatCompletions(ctx, &sonar.ChatRequest{
		Model:              model,
		Messages:           []sonar.Message{{Role: sonar.RoleUser, Content: req.Prompt}},
		WebSearchOptions:   &sonar.WebSearchOptions{SearchContextSize: size},
		SearchDomainFilter: o.domainFilter,
	})
	if err != nil {
		return nil, o.fail(r, OpRun, req.RequestID, err)
	}
	elapsed := time.Since(start)

	r.step(StepCompleted)
	o.metrics.RecordOperation(OpRun, "success")
	o.logger.Debug("Prompt run",
		zap.String("request_id", req.RequestID),
		zap.String("model", model),
		zap.Duration("elapsed", elapsed),
	)

	return &RunResult{
		Response:    resp,
		Content:     sonar.ExtractContent(resp),
		Elapsed:     elapsed,
		ElapsedText: FormatElapsed(elapsed),
	}, nil
}

// String renders a run result for display: the content followed by the
// model, elapsed time and number of sources.
func (r *RunResult) String() string {
	content := r.Content
	if content == "" {
		content = "(No response)"
	}

	var meta []string
	if r.Response != nil && r.Response.Model != "" {
		meta = append(meta, r.Response.Model)
	}
	meta = append(meta, r.ElapsedText)
	sources := "No Sources"
	if r.Response != nil && len(r.Response.Citations) > 0 {
		sources = fmt.Sprintf("%d Sources", len(r.Response.Citations))
	}
	meta = append(meta, sources)

	var b strings.Builder
	b.WriteString(content)
	b.WriteString("\n\n")
	b.WriteString(strings.Join(meta, " · "))
	if r.Response != nil {
		for i, c := range r.Response.Citations {
			fmt.Fprintf(&b, "\n[%d] %s", i+1, c)
		}
	}
	return b.String()
}
