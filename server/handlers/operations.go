package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/teilomillet/reprompt/errors"
	"github.com/teilomillet/reprompt/server/validation"
	"github.com/teilomillet/reprompt/tags"
	"github.com/teilomillet/reprompt/transform"
)

// TransformResponse is the body returned by POST /v1/transform.
type TransformResponse struct {
	*transform.Result
	Summary string `json:"summary"`
}

// RunResponse is the body returned by POST /v1/run.
type RunResponse struct {
	*transform.RunResult
	Display string `json:"display"`
}

// ScoreResponse is the body returned by POST /v1/score.
type ScoreResponse struct {
	tags.Score
	Summary string `json:"summary"`
	Low     bool   `json:"low"`
	Report  string `json:"report"`
}

// Transform handles POST /v1/transform.
func (h *Handlers) Transform(w http.ResponseWriter, r *http.Request) {
	var body validation.TransformBody
	if !h.decode(w, r, &body) {
		return
	}

	infer := h.inferStack
	if body.InferStack != nil {
		infer = *body.InferStack
	}

	reqID := requestID(r)
	res, err := h.ops.Transform(r.Context(), transform.TransformRequest{
		Prompt:            body.Prompt,
		Document:          body.Document,
		Root:              h.root,
		InferStack:        infer,
		Rules:             h.snapshot(),
		Model:             body.Model,
		SearchContextSize: body.SearchContextSize,
		RequestID:         reqID,
	})
	if err != nil {
		errors.LogError(h.logger, err, reqID)
		errors.Respond(w, reqID, err)
		return
	}

	writeJSON(w, http.StatusOK, TransformResponse{Result: res, Summary: res.Stats.Summary()})
}

// Examples handles POST /v1/examples.
func (h *Handlers) Examples(w http.ResponseWriter, r *http.Request) {
	var body validation.ExamplesBody
	if !h.decode(w, r, &body) {
		return
	}

	reqID := requestID(r)
	res, err := h.ops.GenerateExamples(r.Context(), transform.ExamplesRequest{
		Text:              body.Text,
		Selection:         body.Selection,
		Count:             body.Count,
		Document:          body.Document,
		Model:             body.Model,
		SearchContextSize: body.SearchContextSize,
		RequestID:         reqID,
	})
	if err != nil {
		errors.LogError(h.logger, err, reqID)
		errors.Respond(w, reqID, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// Run handles POST /v1/run.
func (h *Handlers) Run(w http.ResponseWriter, r *http.Request) {
	var body validation.RunBody
	if !h.decode(w, r, &body) {
		return
	}

	reqID := requestID(r)
	res, err := h.ops.Run(r.Context(), transform.RunRequest{
		Prompt:            body.Prompt,
		Model:             body.Model,
		SearchContextSize: body.SearchContextSize,
		RequestID:         reqID,
	})
	if err != nil {
		errors.LogError(h.logger, err, reqID)
		errors.Respond(w, reqID, err)
		return
	}

	writeJSON(w, http.StatusOK, RunResponse{RunResult: res, Display: res.String()})
}

// Score handles POST /v1/score. Scoring is local and never calls the API.
func (h *Handlers) Score(w http.ResponseWriter, r *http.Request) {
	var body validation.ScoreBody
	if !h.decode(w, r, &body) {
		return
	}

	score, ok := tags.ScorePrompt(body.Text)
	if !ok {
		errors.WriteError(w, errors.NewValidationError(requestID(r), tags.ErrNoPrompt, map[string]interface{}{
			"field": "text",
		}))
		return
	}

	h.logger.Debug("Prompt scored",
		zap.String("request_id", requestID(r)),
		zap.Int("score", score.Score),
	)
	writeJSON(w, http.StatusOK, ScoreResponse{
		Score:   score,
		Summary: score.Summary(),
		Low:     score.Low(),
		Report:  score.String(),
	})
}
