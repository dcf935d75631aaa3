package turn

import (
	"sync"

	"github.com/cadenza-ai/cadenza/pkg/types"
)

// Conversation is the append-only transcript of one session plus the set of
// attached material descriptors supplied by the upload collaborator.
//
// Messages are appended only with their full text known, and existing entries
// are never deleted or reordered. The material set is replaced wholesale by
// SetMaterials; individual descriptors are never mutated.
//
// Conversation is safe for concurrent use.
type Conversation struct {
	mu        sync.Mutex
	messages  []types.Message
	materials []types.MaterialDescriptor
}

// NewConversation returns an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{}
}

// Append adds msg to the end of the transcript.
func (c *Conversation) Append(msg types.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

// Messages returns a snapshot copy of the transcript in append order.
func (c *Conversation) Messages() []types.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages in the transcript.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// SetMaterials replaces the attached material descriptor set.
func (c *Conversation) SetMaterials(materials []types.MaterialDescriptor) {
	cp := make([]types.MaterialDescriptor, len(materials))
	copy(cp, materials)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.materials = cp
}

// Materials returns a snapshot copy of the attached material descriptors.
func (c *Conversation) Materials() []types.MaterialDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.MaterialDescriptor, len(c.materials))
	copy(out, c.materials)
	return out
}
