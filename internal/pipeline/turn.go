package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/memochater/core/internal/aiprovider"
	"github.com/memochater/core/internal/convpacket"
	"github.com/memochater/core/internal/observability"
)

// TurnRunner performs the turn orchestration: it is the "conversational
// front" that drives the dispatcher, the AI provider, and the packet store
// across one user turn, honoring the per-topic serialization and
// background-process detachment rules.
type TurnRunner struct {
	dispatcher *Dispatcher
	store      *PacketStore
	factory    ContextFactory
	config     Config
	locks      topicLocks
}

// NewTurnRunner wires a dispatcher, packet store, context factory, and
// pipeline configuration into a runner.
func NewTurnRunner(dispatcher *Dispatcher, store *PacketStore, factory ContextFactory, cfg Config) *TurnRunner {
	return &TurnRunner{dispatcher: dispatcher, store: store, factory: factory, config: cfg}
}

// RunTurn executes the full seven-step turn sequence for one incoming user
// message, streaming visible (thinking-tag-stripped) chunks to onChunk as
// they arrive.
func (r *TurnRunner) RunTurn(ctx context.Context, assistantID, topicID, systemPrompt, userMessage string, onChunk func(string)) (*convpacket.Packet, error) {
	lock := r.locks.get(assistantID, topicID)
	lock.Lock()
	defer lock.Unlock()

	pctx, err := r.factory.Build(ctx, assistantID, topicID)
	if err != nil {
		return nil, err
	}

	packet, err := r.store.Load(assistantID, topicID, systemPrompt)
	if err != nil {
		return nil, err
	}
	packet.AppendUserMessage(userMessage)

	r.dispatcher.Dispatch(ctx, PhaseOnUserMessage, packet, r.config, pctx)
	r.dispatcher.Dispatch(ctx, PhaseBeforeAICall, packet, r.config, pctx)

	packet.SnapshotMessages()
	if err := r.store.Save(assistantID, topicID, packet); err != nil {
		return nil, err
	}

	finalText := r.callAI(ctx, packet, pctx, onChunk)

	packet.AppendAssistantMessage(finalText)
	packet.SaveConversationTurn()

	r.dispatcher.Dispatch(ctx, PhaseAfterAIResponse, packet, r.config, pctx)

	snapshot := clonePacketJSON(packet)
	turnsAtDispatch := len(packet.ConversationTurns)

	packet.EndTurn()
	if err := r.store.Save(assistantID, topicID, packet); err != nil {
		return nil, err
	}
	_ = r.store.AppendHistory(assistantID, topicID,
		ChatHistoryMessage{Role: convpacket.RoleUser, Content: userMessage},
		ChatHistoryMessage{Role: convpacket.RoleAssistant, Content: finalText},
	)

	go r.runBackgroundDetached(assistantID, topicID, pctx, snapshot, turnsAtDispatch)

	return packet, nil
}

// callAI invokes the external chat provider over the streaming surface,
// stripping thinking-tag spans as chunks arrive.
func (r *TurnRunner) callAI(ctx context.Context, packet *convpacket.Packet, pctx *Context, onChunk func(string)) string {
	log := observability.LoggerWithTrace(ctx)
	messages := toProviderMessages(packet.Messages)

	var assembled strings.Builder
	filter := &aiprovider.ThinkingTagFilter{}
	err := pctx.AI.ChatStream(ctx, messages, pctx.MainModel, func(chunk string) {
		visible := filter.Feed(chunk)
		if visible == "" {
			return
		}
		assembled.WriteString(visible)
		if onChunk != nil {
			onChunk(visible)
		}
	})
	if err != nil {
		log.Error().Err(err).Str("assistant_id", packet.AssistantID).Str("topic_id", packet.TopicID).Msg("pipeline_ai_call_failed")
		return "[错误] " + err.Error()
	}
	if tail := filter.Flush(); tail != "" {
		assembled.WriteString(tail)
		if onChunk != nil {
			onChunk(tail)
		}
	}
	return assembled.String()
}

func toProviderMessages(msgs []convpacket.Message) []aiprovider.Message {
	out := make([]aiprovider.Message, len(msgs))
	for i, m := range msgs {
		out[i] = aiprovider.Message{Role: string(m.Role), Content: m.Content}
	}
	return out
}

func shortTermMemoryIDs(ms []convpacket.ShortTermMemory) map[string]bool {
	ids := make(map[string]bool, len(ms))
	for _, m := range ms {
		ids[m.ID] = true
	}
	return ids
}

func clonePacketJSON(packet *convpacket.Packet) []byte {
	raw, err := json.Marshal(packet)
	if err != nil {
		return nil
	}
	return raw
}

// runBackgroundDetached runs background_process against a snapshot taken at
// the end of after_ai_response, releasing the topic's writer lock first and
// reacquiring it only around the final compare-and-merge save: if
// conversation_turns on disk has advanced past turnsAtDispatch, only the
// short-term memory and processor-state entries that background_process
// itself added are folded in; a newer conversation_turns is never
// overwritten.
func (r *TurnRunner) runBackgroundDetached(assistantID, topicID string, pctx *Context, snapshotJSON []byte, turnsAtDispatch int) {
	ctx := context.Background()
	log := observability.LoggerWithTrace(ctx)
	if snapshotJSON == nil {
		return
	}

	packet := &convpacket.Packet{}
	if err := json.Unmarshal(snapshotJSON, packet); err != nil {
		log.Error().Err(err).Msg("pipeline_background_snapshot_decode_failed")
		return
	}
	preDispatchIDs := shortTermMemoryIDs(packet.GetShortTermMemory())

	r.dispatcher.Dispatch(ctx, PhaseBackgroundProcess, packet, r.config, pctx)

	lock := r.locks.get(assistantID, topicID)
	lock.Lock()
	defer lock.Unlock()

	current, err := r.store.Load(assistantID, topicID, "")
	if err != nil {
		log.Error().Err(err).Msg("pipeline_background_reload_failed")
		return
	}

	if len(current.ConversationTurns) != turnsAtDispatch {
		// current has advanced past the snapshot; only fold in what
		// background_process itself added, not the whole pre-existing pool,
		// which current already has its own copy of.
		existingIDs := shortTermMemoryIDs(current.GetShortTermMemory())
		var added []convpacket.ShortTermMemory
		for _, m := range packet.GetShortTermMemory() {
			if preDispatchIDs[m.ID] || existingIDs[m.ID] {
				continue
			}
			added = append(added, m)
		}
		current.AddShortTermMemories(added)
		current.MergeCurrentStates(packet.CurrentStatesSnapshot())
		if err := r.store.Save(assistantID, topicID, current); err != nil {
			log.Error().Err(err).Msg("pipeline_background_merge_save_failed")
		}
		return
	}

	if err := r.store.Save(assistantID, topicID, packet); err != nil {
		log.Error().Err(err).Msg("pipeline_background_save_failed")
	}
}
