package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// CompleteJSON asks c for a JSON answer, validates it against schema and
// decodes it into T. Invalid answers are re-prompted with the validation error
// appended. Service failures are not retried here.
func CompleteJSON[T any](ctx context.Context, c Completer, schema *Schema, system, user string, opts Options) (T, error) {
	var zero T
	if c == nil {
		return zero, &ExternalServiceError{Service: "completion service", Err: errors.New("not configured")}
	}

	opts.JSON = true
	prompt := user
	attempts := opts.schemaRetries() + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, opts.timeout())
		raw, err := c.Complete(callCtx, system, prompt, opts)
		cancel()
		if err != nil {
			return zero, &ExternalServiceError{Service: serviceName(c), Attempts: attempt, Err: err}
		}

		doc := []byte(CleanJSON(raw))
		if err := schema.Validate(doc); err != nil {
			lastErr = err
			prompt = reprompt(user, err)
			continue
		}

		var out T
		if err := json.Unmarshal(doc, &out); err != nil {
			lastErr = fmt.Errorf("decode %s: %w", schema.Name(), err)
			prompt = reprompt(user, lastErr)
			continue
		}
		return out, nil
	}

	return zero, &ExternalServiceError{Service: serviceName(c), Attempts: attempts, Err: lastErr}
}

func reprompt(user string, err error) string {
	return user + "\n\nYour previous answer was rejected: " + err.Error() +
		"\nReply again with only a JSON document that satisfies the required schema."
}

// CleanJSON strips markdown code fences and any prose around the outermost
// JSON object or array.
func CleanJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.TrimSpace(strings.Trim(raw, "`"))

	start := strings.IndexAny(raw, "{[")
	if start < 0 {
		return raw
	}
	closer := "}"
	if raw[start] == '[' {
		closer = "]"
	}
	if end := strings.LastIndex(raw, closer); end > start {
		return raw[start : end+1]
	}
	return raw
}
