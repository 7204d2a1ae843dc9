package jobtypes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bgjob/internal/jobs"
)

const (
	Echo  = "echo"
	Sleep = "sleep"
	Fail  = "fail"
	Spawn = "spawn"
)

// maxSpawnCount bounds how many children a single spawn job may create.
const maxSpawnCount = 1000

// ErrRequestedFailure is returned by the fail job type.
var ErrRequestedFailure = errors.New("job requested failure")

// Register adds the built-in job types to reg.
func Register(reg *jobs.Registry) {
	reg.Register(Echo, func() jobs.Runner { return jobs.RunnerFunc(runEcho) })
	reg.Register(Sleep, func() jobs.Runner { return jobs.RunnerFunc(runSleep) })
	reg.Register(Fail, func() jobs.Runner { return jobs.RunnerFunc(runFail) })
	reg.Register(Spawn, func() jobs.Runner { return jobs.RunnerFunc(runSpawn) })
}

// EchoData is the dataset of an echo job.
type EchoData struct {
	Message string `json:"message"`
}

func runEcho(_ context.Context, job *jobs.Job) error {
	var data EchoData
	if err := job.DecodeDataset(&data); err != nil {
		return err
	}
	msg := data.Message
	if msg == "" {
		msg = job.Label()
	}
	job.LogOutput(msg)
	return nil
}

// SleepData is the dataset of a sleep job. Duration uses time.ParseDuration
// syntax; Seconds is used when Duration is empty.
type SleepData struct {
	Duration string  `json:"duration,omitempty"`
	Seconds  float64 `json:"seconds,omitempty"`
}

func (d SleepData) wait() (time.Duration, error) {
	if d.Duration != "" {
		wait, err := time.ParseDuration(d.Duration)
		if err != nil {
			return 0, fmt.Errorf("sleep duration: %w", err)
		}
		if wait < 0 {
			return 0, fmt.Errorf("sleep duration %s is negative", d.Duration)
		}
		return wait, nil
	}
	if d.Seconds < 0 {
		return 0, fmt.Errorf("sleep seconds %v is negative", d.Seconds)
	}
	return time.Duration(d.Seconds * float64(time.Second)), nil
}

func runSleep(ctx context.Context, job *jobs.Job) error {
	var data SleepData
	if err := job.DecodeDataset(&data); err != nil {
		return err
	}
	wait, err := data.wait()
	if err != nil {
		return err
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		job.LogOutput(fmt.Sprintf("slept %s", wait))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sleep interrupted: %w", ctx.Err())
	}
}

// FailData is the dataset of a fail job.
type FailData struct {
	Message string `json:"message"`
}

func runFail(_ context.Context, job *jobs.Job) error {
	var data FailData
	if err := job.DecodeDataset(&data); err != nil {
		return err
	}
	if data.Message == "" {
		return ErrRequestedFailure
	}
	return fmt.Errorf("%w: %s", ErrRequestedFailure, data.Message)
}

// SpawnData is the dataset of a spawn job. Count children of Type are saved
// into the parent's queue, each with Dataset. Spawned counts the children
// already saved; a retried spawn job continues after them.
type SpawnData struct {
	Count   int             `json:"count"`
	Type    string          `json:"type"`
	Dataset json.RawMessage `json:"dataset,omitempty"`
	Spawned int             `json:"spawned,omitempty"`
}

func runSpawn(ctx context.Context, job *jobs.Job) error {
	var data SpawnData
	if err := job.DecodeDataset(&data); err != nil {
		return err
	}
	if data.Count <= 0 || data.Count > maxSpawnCount {
		return fmt.Errorf("spawn count %d out of range 1..%d", data.Count, maxSpawnCount)
	}
	if data.Spawned < 0 || data.Spawned > data.Count {
		return fmt.Errorf("spawned %d out of range 0..%d", data.Spawned, data.Count)
	}
	if data.Type == "" {
		data.Type = Echo
	}
	// Progress lives in the dataset, which the worker persists with the
	// job's outcome.
	for i := data.Spawned + 1; i <= data.Count; i++ {
		label := fmt.Sprintf("%s / %d", job.Label(), i)
		child, err := job.Spawn(label, data.Type, data.Dataset)
		if err != nil {
			return err
		}
		if err := child.Save(ctx, job.Queue(), ""); err != nil {
			return err
		}
		data.Spawned = i
		if err := job.SetDataset(data); err != nil {
			return err
		}
		job.LogOutput(fmt.Sprintf("spawned job #%d", child.ID()))
	}
	return nil
}
