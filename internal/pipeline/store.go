package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/memochater/core/internal/convpacket"
	"github.com/memochater/core/internal/kind"
)

// PacketStore persists ConversationPacket and committed-turn history under
// the standard layout (data_dir/assistants/<a>/topics/<t>/{conversation_state,history}.json),
// atomically (write-temp-then-rename), the same technique used by
// memsubstrate's ShortTermFileRepository.
type PacketStore struct {
	dataDir string
}

// NewPacketStore roots the store at dataDir.
func NewPacketStore(dataDir string) *PacketStore {
	return &PacketStore{dataDir: dataDir}
}

func (s *PacketStore) topicDir(assistantID, topicID string) string {
	return filepath.Join(s.dataDir, "assistants", assistantID, "topics", topicID)
}

func (s *PacketStore) packetPath(assistantID, topicID string) string {
	return filepath.Join(s.topicDir(assistantID, topicID), "conversation_state.json")
}

func (s *PacketStore) historyPath(assistantID, topicID string) string {
	return filepath.Join(s.topicDir(assistantID, topicID), "history.json")
}

func writeAtomic(path string, raw []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads the topic's packet, or creates a fresh one (with systemPrompt)
// if none exists yet.
func (s *PacketStore) Load(assistantID, topicID, systemPrompt string) (*convpacket.Packet, error) {
	raw, err := os.ReadFile(s.packetPath(assistantID, topicID))
	if err != nil {
		if os.IsNotExist(err) {
			return convpacket.New(assistantID, topicID, systemPrompt), nil
		}
		return nil, kind.New(kind.Memory, "Load", err)
	}
	packet := &convpacket.Packet{}
	if err := json.Unmarshal(raw, packet); err != nil {
		return nil, kind.New(kind.Memory, "Load", err)
	}
	return packet, nil
}

// Save atomically rewrites the topic's conversation_state.json.
func (s *PacketStore) Save(assistantID, topicID string, packet *convpacket.Packet) error {
	raw, err := json.MarshalIndent(packet, "", "  ")
	if err != nil {
		return kind.New(kind.Memory, "Save", err)
	}
	if err := writeAtomic(s.packetPath(assistantID, topicID), raw); err != nil {
		return kind.New(kind.Memory, "Save", err)
	}
	return nil
}

// ChatHistoryMessage is one entry in a topic's committed message history.
type ChatHistoryMessage struct {
	Role    convpacket.Role `json:"role"`
	Content string          `json:"content"`
}

// AppendHistory appends msgs to the topic's history.json, creating it if
// absent.
func (s *PacketStore) AppendHistory(assistantID, topicID string, msgs ...ChatHistoryMessage) error {
	path := s.historyPath(assistantID, topicID)
	var existing []ChatHistoryMessage
	if raw, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(raw, &existing)
	} else if !os.IsNotExist(err) {
		return kind.New(kind.Memory, "AppendHistory", err)
	}
	existing = append(existing, msgs...)
	raw, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return kind.New(kind.Memory, "AppendHistory", err)
	}
	if err := writeAtomic(path, raw); err != nil {
		return kind.New(kind.Memory, "AppendHistory", err)
	}
	return nil
}
