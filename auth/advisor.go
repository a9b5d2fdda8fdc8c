package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// AdvisorTimeout bounds how long a remote advisor may take before its
// result is discarded.
const AdvisorTimeout = 3 * time.Second

// Advisor is an optional, best-effort strength collaborator. A failed or
// slow advisor must never block or fail the caller.
type Advisor interface {
	Score(ctx context.Context, candidate string) (Advice, error)
}

// HTTPAdvisor scores candidates against a local advisory endpoint
// (e.g. a model server on loopback).
type HTTPAdvisor struct {
	URL    string
	Client *http.Client
}

type advisorRequest struct {
	Candidate string `json:"candidate"`
}

// Score posts the candidate to the endpoint and decodes the advice.
func (a *HTTPAdvisor) Score(ctx context.Context, candidate string) (Advice, error) {
	var advice Advice

	body, err := json.Marshal(advisorRequest{Candidate: candidate})
	if err != nil {
		return advice, fmt.Errorf("advisor encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.URL, bytes.NewReader(body))
	if err != nil {
		return advice, fmt.Errorf("advisor request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := a.Client
	if client == nil {
		client = &http.Client{Timeout: AdvisorTimeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		return advice, fmt.Errorf("advisor query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return advice, fmt.Errorf("advisor query: unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(&advice); err != nil {
		return advice, fmt.Errorf("advisor decode: %w", err)
	}
	if advice.Score < 0 || advice.Score > 100 {
		return advice, fmt.Errorf("advisor score %d out of range", advice.Score)
	}
	return advice, nil
}

// Estimate is the current best strength estimate, fed by two independent
// producers. The local result is installed first and a remote result only
// ever supplements it; a failed or timed-out remote call leaves the local
// result in place.
type Estimate struct {
	mu     sync.Mutex
	advice Advice
}

// SetLocal installs the always-available local result.
func (e *Estimate) SetLocal(a Advice) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.advice = a
}

// ApplyRemote merges a successful remote result: the remote score and
// level take effect and remote feedback is appended after the local
// feedback.
func (e *Estimate) ApplyRemote(a Advice) {
	e.mu.Lock()
	defer e.mu.Unlock()
	merged := Advice{
		Score:    a.Score,
		Level:    a.Level,
		Feedback: append(append([]string(nil), e.advice.Feedback...), a.Feedback...),
	}
	if merged.Level == "" {
		merged.Level = levelFor(merged.Score).String()
	}
	e.advice = merged
}

// Current returns the best estimate so far.
func (e *Estimate) Current() Advice {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.advice
}

// Evaluate scores a candidate secret. The local score is computed
// unconditionally; when a remote advisor is configured it runs under
// AdvisorTimeout and, on success, supplements the local result. Advisor
// errors and timeouts fail silently closed.
func Evaluate(ctx context.Context, candidate string, remote Advisor) Advice {
	var est Estimate
	est.SetLocal(LocalScore(candidate))

	if remote == nil {
		return est.Current()
	}

	ctx, cancel := context.WithTimeout(ctx, AdvisorTimeout)
	defer cancel()

	done := make(chan Advice, 1)
	go func() {
		advice, err := remote.Score(ctx, candidate)
		if err != nil {
			return
		}
		done <- advice
	}()

	select {
	case advice := <-done:
		est.ApplyRemote(advice)
	case <-ctx.Done():
	}
	return est.Current()
}
