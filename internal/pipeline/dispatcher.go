package pipeline

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/memochater/core/internal/convpacket"
	"github.com/memochater/core/internal/kind"
	"github.com/memochater/core/internal/observability"
)

var tracer = otel.Tracer("internal/pipeline")

// Dispatcher holds the name→processor registry consulted by Dispatch.
type Dispatcher struct {
	registry map[string]Processor
}

// NewDispatcher returns an empty dispatcher; use Register to populate it.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{registry: make(map[string]Processor)}
}

// Register adds p to the registry, keyed by p.Name().
func (d *Dispatcher) Register(p Processor) {
	d.registry[p.Name()] = p
}

// Dispatch runs phase's configured processor sequence against packet.
// Unknown processor names and memory-gated skips are logged and do not
// interrupt the sequence; a processor error is isolated the same way.
// Dispatch always runs the full configured sequence.
func (d *Dispatcher) Dispatch(ctx context.Context, phase Phase, packet *convpacket.Packet, cfg Config, pctx *Context) {
	entries := cfg[phase]
	if len(entries) == 0 {
		return
	}

	ctx, span := tracer.Start(ctx, "pipeline.dispatch")
	span.SetAttributes(
		attribute.String("pipeline.phase", string(phase)),
		attribute.Int("pipeline.processor_count", len(entries)),
	)
	defer span.End()

	log := observability.LoggerWithTrace(ctx)

	for _, entry := range entries {
		proc, ok := d.registry[entry.Name]
		if !ok {
			log.Warn().Str("phase", string(phase)).Str("processor", entry.Name).Msg("pipeline_processor_not_found")
			continue
		}
		if proc.RequiresMemory() && !pctx.MemoryEnabled {
			log.Debug().Str("phase", string(phase)).Str("processor", entry.Name).Msg("pipeline_processor_skipped_memory_disabled")
			continue
		}

		if err := runProcessor(ctx, proc, packet, pctx); err != nil {
			log.Error().Err(err).
				Str("phase", string(phase)).
				Str("processor", entry.Name).
				Str("kind", string(kind.Of(err))).
				Msg("pipeline_processor_error")
			continue
		}
		packet.StampLastProcessor(proc.Name())
	}
}

func runProcessor(ctx context.Context, proc Processor, packet *convpacket.Packet, pctx *Context) error {
	ctx, span := tracer.Start(ctx, "pipeline.processor."+proc.Name())
	defer span.End()
	return proc.Process(ctx, packet, pctx)
}
