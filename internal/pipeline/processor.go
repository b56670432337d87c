// Package pipeline implements the Pipeline Engine: a fixed ordered set of
// phases, a name-keyed processor registry, and the dispatcher that runs a
// configured processor sequence against a packet for one phase at a time
// (/).
package pipeline

import (
	"context"

	"github.com/memochater/core/internal/convpacket"
)

// Phase is one of the fixed pipeline phases a turn passes through.
type Phase string

const (
	PhaseOnUserMessage     Phase = "on_user_message"
	PhaseBeforeAICall      Phase = "before_ai_call"
	PhaseOnStreamStart     Phase = "on_stream_start"
	PhaseOnStreamChunk     Phase = "on_stream_chunk"
	PhaseAfterAIResponse   Phase = "after_ai_response"
	PhaseBackgroundProcess Phase = "background_process"
)

// Processor is the unit of pipeline work. Process may suspend on AI,
// filesystem, or vector-store calls; it mutates packet in place and returns a
// kind-tagged error or nil.
type Processor interface {
	// Name is stable, used for pipeline-config references and as the
	// processor-state dictionary key.
	Name() string
	// RequiresMemory reports whether this processor should be skipped for
	// topics that are not memory-enabled.
	RequiresMemory() bool
	Process(ctx context.Context, packet *convpacket.Packet, pctx *Context) error
}

// Entry is one configured step within a phase's processor sequence.
type Entry struct {
	Name        string
	Description string
}

// Config maps each phase to its ordered processor-entry sequence.
type Config map[Phase][]Entry
