package jobs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// payload is the serialized portion of a job that has no column of its own.
type payload struct {
	Type         string          `json:"type"`
	Dataset      json.RawMessage `json:"dataset,omitempty"`
	History      []string        `json:"history"`
	Output       []string        `json:"output"`
	RetryI       int             `json:"retry_i"`
	MaxRetries   int             `json:"max_retries"`
	TimeEstimate int             `json:"time_estimate"`
}

func encodeDataset(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		if len(raw) == 0 {
			return nil, nil
		}
		if !json.Valid(raw) {
			return nil, fmt.Errorf("%w: dataset is not valid JSON", ErrInvalidPayload)
		}
		return append(json.RawMessage(nil), raw...), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal dataset: %v", ErrInvalidPayload, err)
	}
	if bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	return data, nil
}

func (j *Job) toRecord() (*Record, error) {
	data, err := json.Marshal(payload{
		Type:         j.typeName,
		Dataset:      j.dataset,
		History:      nonNil(j.history),
		Output:       nonNil(j.output),
		RetryI:       j.retryI,
		MaxRetries:   j.maxRetries,
		TimeEstimate: j.timeEstimate,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal job payload: %w", err)
	}
	return &Record{
		ID:       j.id,
		ParentID: j.parentID,
		Title:    j.label,
		Status:   j.status,
		Queue:    j.queue,
		WorkerID: j.workerID,
		Payload:  string(data),
	}, nil
}

// decodePayload parses a stored payload over the fixed field set. Unknown
// fields and trailing data are rejected rather than silently dropped.
func decodePayload(raw string) (payload, error) {
	var p payload
	if strings.TrimSpace(raw) == "" {
		return p, fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return p, fmt.Errorf("%w: trailing data after payload", ErrInvalidPayload)
	}
	switch {
	case strings.TrimSpace(p.Type) == "":
		return p, fmt.Errorf("%w: missing type", ErrInvalidPayload)
	case p.RetryI < 0:
		return p, fmt.Errorf("%w: negative retry_i", ErrInvalidPayload)
	case p.MaxRetries < 0:
		return p, fmt.Errorf("%w: negative max_retries", ErrInvalidPayload)
	case p.TimeEstimate < 0:
		return p, fmt.Errorf("%w: negative time_estimate", ErrInvalidPayload)
	}
	return p, nil
}

func nonNil(lines []string) []string {
	if lines == nil {
		return []string{}
	}
	return lines
}
