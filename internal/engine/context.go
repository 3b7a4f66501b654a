package engine

import (
	"encoding/json"
	"fmt"
)

// Context carries one job's payload and the results of its completed steps.
// Step results are held as JSON so a replayed checkpoint and a freshly
// computed result look identical to consumers.
type Context struct {
	JobID   string
	Event   string
	payload json.RawMessage
	results map[string]json.RawMessage
}

func newContext(jobID, event string, payload json.RawMessage) *Context {
	return &Context{
		JobID:   jobID,
		Event:   event,
		payload: payload,
		results: make(map[string]json.RawMessage),
	}
}

// Payload decodes the event payload into dest.
func (c *Context) Payload(dest any) error {
	if len(c.payload) == 0 {
		return fmt.Errorf("job %s has no payload", c.JobID)
	}
	if err := json.Unmarshal(c.payload, dest); err != nil {
		return fmt.Errorf("decode payload for job %s: %w", c.JobID, err)
	}
	return nil
}

// Result decodes the named step's recorded result into dest. The boolean is
// false when the step has not produced a result (not yet run, or skipped).
func (c *Context) Result(name string, dest any) (bool, error) {
	raw, ok := c.results[name]
	if !ok {
		return false, nil
	}
	if dest == nil {
		return true, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode result of step %q: %w", name, err)
	}
	return true, nil
}

func (c *Context) setResult(name string, raw json.RawMessage) {
	c.results[name] = raw
}
