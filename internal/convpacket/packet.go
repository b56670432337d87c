package convpacket

import (
	"encoding/json"
	"sort"
	"sync"
	"time"
)

const maxHistoryStates = 2

// Packet is the unit of conversational state, uniquely identified by
// (AssistantID, TopicID). All mutator methods are safe for concurrent use,
// though the pipeline's per-topic turn lock (see package pipeline) is what
// actually serializes a turn end-to-end.
type Packet struct {
	mu sync.Mutex

	AssistantID   string `json:"assistant_id"`
	TopicID       string `json:"topic_id"`
	UserID        string `json:"user_id,omitempty"`
	UserName      string `json:"user_name,omitempty"`
	AssistantName string `json:"assistant_name,omitempty"`

	Messages            []Message `json:"messages"`
	UserInput           string    `json:"user_input"`
	AIResponse          string    `json:"ai_response"`
	LastRequestMessages []Message `json:"last_request_messages,omitempty"`

	ThinkingPool     []ThinkingEntry   `json:"thinking_pool"`
	ShortTermMemory  []ShortTermMemory `json:"short_term_memory"`

	// states is the current turn's processor-state bag, keyed by processor name.
	states        map[string]json.RawMessage
	HistoryStates []map[string]json.RawMessage `json:"history_states"`

	ConversationTurns []ConversationTurn `json:"conversation_turns"`

	MainModel      string `json:"main_model,omitempty"`
	ProcessorModel string `json:"processor_model,omitempty"`
	EmbeddingModel string `json:"embedding_model,omitempty"`

	// LastProcessor records the name of the most recently successful processor,
	// stamped by the dispatcher; purely observational.
	LastProcessor string `json:"last_processor,omitempty"`
}

// New creates a packet seeded with a system message (from assistant config).
func New(assistantID, topicID, systemPrompt string) *Packet {
	p := &Packet{
		AssistantID: assistantID,
		TopicID:     topicID,
		states:      make(map[string]json.RawMessage),
	}
	if systemPrompt != "" {
		p.Messages = append(p.Messages, Message{Role: RoleSystem, Content: systemPrompt})
	}
	return p
}

// --- messages ---

// AppendUserMessage appends a user-role message and sets UserInput.
func (p *Packet) AppendUserMessage(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Messages = append(p.Messages, Message{Role: RoleUser, Content: text})
	p.UserInput = text
}

// AppendAssistantMessage appends an assistant-role message and sets AIResponse.
func (p *Packet) AppendAssistantMessage(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Messages = append(p.Messages, Message{Role: RoleAssistant, Content: text})
	p.AIResponse = text
}

// SetSystemMessage replaces the system-role message at index 0, inserting one
// if none exists.
func (p *Packet) SetSystemMessage(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Messages) > 0 && p.Messages[0].Role == RoleSystem {
		p.Messages[0].Content = text
		return
	}
	p.Messages = append([]Message{{Role: RoleSystem, Content: text}}, p.Messages...)
}

// ReplaceMessages swaps the entire message slice (used by processors that
// rebuild the outgoing context, e.g. ShortTermAssembler, ContentChunker).
func (p *Packet) ReplaceMessages(msgs []Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Messages = msgs
}

// SnapshotMessages copies the current Messages slice into LastRequestMessages.
func (p *Packet) SnapshotMessages() {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := make([]Message, len(p.Messages))
	copy(snap, p.Messages)
	p.LastRequestMessages = snap
}

// SaveConversationTurn pushes a new turn record if both UserInput and
// AIResponse are present.
func (p *Packet) SaveConversationTurn() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.UserInput == "" || p.AIResponse == "" {
		return
	}
	p.ConversationTurns = append(p.ConversationTurns, ConversationTurn{
		UserMessage:      p.UserInput,
		AssistantMessage: p.AIResponse,
		Timestamp:        time.Now().UTC(),
	})
}

// --- thinking pool ---

func (p *Packet) AddThinking(content string, source ThinkingSource) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ThinkingPool = append(p.ThinkingPool, ThinkingEntry{
		Content:   content,
		Source:    source.Normalize(),
		Timestamp: time.Now().UTC(),
	})
}

func (p *Packet) ClearThinking() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ThinkingPool = nil
}

func (p *Packet) GetThinking() []ThinkingEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ThinkingEntry, len(p.ThinkingPool))
	copy(out, p.ThinkingPool)
	return out
}

// --- short-term memory ---

func (p *Packet) AddShortTermMemory(m ShortTermMemory) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m.MemoryType = m.MemoryType.Normalize()
	m.Source = m.Source.Normalize()
	p.ShortTermMemory = append(p.ShortTermMemory, m)
}

func (p *Packet) AddShortTermMemories(ms []ShortTermMemory) {
	for _, m := range ms {
		p.AddShortTermMemory(m)
	}
}

func (p *Packet) ClearShortTermMemory() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ShortTermMemory = nil
}

func (p *Packet) GetShortTermMemory() []ShortTermMemory {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ShortTermMemory, len(p.ShortTermMemory))
	copy(out, p.ShortTermMemory)
	return out
}

// GetShortTermMemorySorted returns the pool sorted by relevance descending.
func (p *Packet) GetShortTermMemorySorted() []ShortTermMemory {
	out := p.GetShortTermMemory()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Relevance > out[j].Relevance })
	return out
}

// DecayShortTermMemory multiplies every entry's relevance by f and drops
// entries whose relevance falls to <= 0.1.
func (p *Packet) DecayShortTermMemory(f float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	kept := p.ShortTermMemory[:0]
	for _, m := range p.ShortTermMemory {
		m.Relevance = decay(m.Relevance, f)
		if m.Relevance > 0.1 {
			kept = append(kept, m)
		}
	}
	p.ShortTermMemory = kept
}

// --- processor state ---

// SetProcessorState stores an opaque JSON blob under the processor's name in
// the current turn's state bag.
func (p *Packet) SetProcessorState(name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.states == nil {
		p.states = make(map[string]json.RawMessage)
	}
	p.states[name] = raw
	return nil
}

// GetCurrentState returns the current turn's raw state for name, if any.
func (p *Packet) GetCurrentState(name string) (json.RawMessage, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.states[name]
	return v, ok
}

// GetPreviousState looks at the most recent frame in HistoryStates for name.
func (p *Packet) GetPreviousState(name string) (json.RawMessage, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.HistoryStates) == 0 {
		return nil, false
	}
	v, ok := p.HistoryStates[0][name]
	return v, ok
}

// CurrentStatesSnapshot copies the current turn's processor-state bag.
func (p *Packet) CurrentStatesSnapshot() map[string]json.RawMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]json.RawMessage, len(p.states))
	for k, v := range p.states {
		out[k] = v
	}
	return out
}

// MergeCurrentStates copies entries from states into the current turn's
// state bag without disturbing entries not present in states. Used by the
// background-process merge path to fold a detached task's processor
// state into a packet that has already advanced past it.
func (p *Packet) MergeCurrentStates(states map[string]json.RawMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.states == nil {
		p.states = make(map[string]json.RawMessage)
	}
	for k, v := range states {
		p.states[k] = v
	}
}

// StampLastProcessor records the name of a successfully-run processor.
func (p *Packet) StampLastProcessor(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.LastProcessor = name
}

// --- turn lifecycle ---

// EndTurn rotates CurrentStates to the front of HistoryStates (evicting the
// oldest once length would exceed 2), empties CurrentStates, and clears
// UserInput/AIResponse. ThinkingPool, ShortTermMemory, and ConversationTurns
// are preserved.
func (p *Packet) EndTurn() {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame := p.states
	if frame == nil {
		frame = make(map[string]json.RawMessage)
	}
	p.HistoryStates = append([]map[string]json.RawMessage{frame}, p.HistoryStates...)
	if len(p.HistoryStates) > maxHistoryStates {
		p.HistoryStates = p.HistoryStates[:maxHistoryStates]
	}
	p.states = make(map[string]json.RawMessage)
	p.UserInput = ""
	p.AIResponse = ""
}

// --- JSON round-trip ---

// packetWire mirrors Packet's exported JSON surface, adding the current
// states bag under its wire name since Packet.states is unexported.
type packetWire struct {
	AssistantID   string `json:"assistant_id"`
	TopicID       string `json:"topic_id"`
	UserID        string `json:"user_id,omitempty"`
	UserName      string `json:"user_name,omitempty"`
	AssistantName string `json:"assistant_name,omitempty"`

	Messages            []Message `json:"messages"`
	UserInput           string    `json:"user_input"`
	AIResponse          string    `json:"ai_response"`
	LastRequestMessages []Message `json:"last_request_messages,omitempty"`

	ThinkingPool    []ThinkingEntry   `json:"thinking_pool"`
	ShortTermMemory []ShortTermMemory `json:"short_term_memory"`

	CurrentStates map[string]json.RawMessage   `json:"current_states"`
	HistoryStates []map[string]json.RawMessage `json:"history_states"`

	ConversationTurns []ConversationTurn `json:"conversation_turns"`

	MainModel      string `json:"main_model,omitempty"`
	ProcessorModel string `json:"processor_model,omitempty"`
	EmbeddingModel string `json:"embedding_model,omitempty"`

	LastProcessor string `json:"last_processor,omitempty"`
}

// MarshalJSON serializes the packet per the persisted ConversationPacket schema.
func (p *Packet) MarshalJSON() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w := packetWire{
		AssistantID:         p.AssistantID,
		TopicID:             p.TopicID,
		UserID:              p.UserID,
		UserName:            p.UserName,
		AssistantName:       p.AssistantName,
		Messages:            p.Messages,
		UserInput:           p.UserInput,
		AIResponse:          p.AIResponse,
		LastRequestMessages: p.LastRequestMessages,
		ThinkingPool:        p.ThinkingPool,
		ShortTermMemory:     p.ShortTermMemory,
		CurrentStates:       p.states,
		HistoryStates:       p.HistoryStates,
		ConversationTurns:   p.ConversationTurns,
		MainModel:           p.MainModel,
		ProcessorModel:      p.ProcessorModel,
		EmbeddingModel:      p.EmbeddingModel,
		LastProcessor:       p.LastProcessor,
	}
	return json.Marshal(w)
}

// UnmarshalJSON deserializes a packet per the persisted ConversationPacket schema.
func (p *Packet) UnmarshalJSON(data []byte) error {
	var w packetWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.AssistantID = w.AssistantID
	p.TopicID = w.TopicID
	p.UserID = w.UserID
	p.UserName = w.UserName
	p.AssistantName = w.AssistantName
	p.Messages = w.Messages
	p.UserInput = w.UserInput
	p.AIResponse = w.AIResponse
	p.LastRequestMessages = w.LastRequestMessages
	p.ThinkingPool = w.ThinkingPool
	p.ShortTermMemory = w.ShortTermMemory
	p.states = w.CurrentStates
	if p.states == nil {
		p.states = make(map[string]json.RawMessage)
	}
	p.HistoryStates = w.HistoryStates
	p.ConversationTurns = w.ConversationTurns
	p.MainModel = w.MainModel
	p.ProcessorModel = w.ProcessorModel
	p.EmbeddingModel = w.EmbeddingModel
	p.LastProcessor = w.LastProcessor
	return nil
}
