package domain

import (
	"fmt"
	"time"
)

type FaultKind string

const (
	FaultNone            FaultKind = ""
	FaultTransfer        FaultKind = "transfer"
	FaultConversion      FaultKind = "conversion"
	FaultRecognition     FaultKind = "recognition"
	FaultEmptyTranscript FaultKind = "empty_transcript"
	FaultGeneration      FaultKind = "generation"
	FaultSynthesis       FaultKind = "synthesis"
	FaultDelivery        FaultKind = "delivery"
	// FaultInternal covers panics recovered inside a handler.
	FaultInternal FaultKind = "internal"
)

// PipelineError tags a handler failure with the stage that produced it.
type PipelineError struct {
	Kind FaultKind
	Err  error
}

func Fault(kind FaultKind, err error) *PipelineError {
	return &PipelineError{Kind: kind, Err: err}
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s fault: %v", e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Outcome summarizes one handler invocation.
type Outcome struct {
	MessageID    string        `json:"message_id"`
	Conversation string        `json:"conversation"`
	Platform     string        `json:"platform"`
	Fault        FaultKind     `json:"fault,omitempty"`
	Transcript   string        `json:"transcript,omitempty"`
	Reply        string        `json:"reply,omitempty"`
	Duration     time.Duration `json:"duration"`
	At           time.Time     `json:"at"`
}

// Status is "ok" for a delivered voice reply, otherwise the fault kind.
func (o Outcome) Status() string {
	if o.Fault == FaultNone {
		return "ok"
	}
	return string(o.Fault)
}
