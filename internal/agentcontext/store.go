// Package agentcontext is the append-only conversation log an agent loop
// reads from and writes to: messages persisted as JSON lines, checkpoints
// marking restore points for D-Mail reverts, and token estimation used to
// decide when pruning or compaction is needed.
package agentcontext

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/reagent-go/reagent/pkg/models"
)

// record is the on-disk JSONL shape: either a Message (role set) or a
// control line (Type set to "checkpoint" or "usage").
type record struct {
	Type         string        `json:"_type,omitempty"`
	CheckpointID int           `json:"id,omitempty"`
	TokenCount   int           `json:"token_count,omitempty"`
	Role         models.Role   `json:"role,omitempty"`
	Parts        []models.Part `json:"parts,omitempty"`
	CreatedAt    time.Time     `json:"created_at,omitempty"`
}

// Context is the conversation history for one agent run: an in-memory
// message list mirrored to a JSONL file, with checkpoint/revert support
// for the D-Mail control-flow signal.
type Context struct {
	mu sync.Mutex

	path           string
	messages       []*models.Message
	checkpoints    map[int]int // checkpoint id -> message index at time of checkpoint
	nextCheckpoint int
	tokenCount     int
}

// New creates an empty Context backed by a JSONL file at path. The parent
// directory is created if necessary.
func New(path string) (*Context, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("agentcontext: create dir for %q: %w", path, err)
	}
	return &Context{path: path, checkpoints: make(map[int]int)}, nil
}

// Restore rebuilds a Context by replaying the JSONL file at path. A
// missing file yields an empty Context rather than an error, matching the
// append-only log's "new run" starting state.
func Restore(path string) (*Context, error) {
	c := &Context{path: path, checkpoints: make(map[int]int)}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("agentcontext: open %q: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			// Malformed lines are skipped rather than treated as fatal;
			// the log is append-only and a torn write at the tail should
			// not prevent restoring everything before it.
			continue
		}
		switch {
		case rec.Type == "checkpoint":
			c.checkpoints[rec.CheckpointID] = len(c.messages)
			if rec.CheckpointID+1 > c.nextCheckpoint {
				c.nextCheckpoint = rec.CheckpointID + 1
			}
		case rec.Type == "usage":
			c.tokenCount = rec.TokenCount
		case rec.Role != "":
			c.messages = append(c.messages, &models.Message{Role: rec.Role, Parts: rec.Parts, CreatedAt: rec.CreatedAt})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("agentcontext: read %q: %w", path, err)
	}
	return c, nil
}

// Messages returns the current message list. The returned slice must not
// be mutated by the caller; use Rewrite after in-place edits performed by
// the context-management pass.
func (c *Context) Messages() []*models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*models.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// SetMessages replaces the in-memory message list (used by compaction)
// without touching the on-disk log; call Rewrite to persist.
func (c *Context) SetMessages(msgs []*models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = msgs
}

// Append adds a message to the in-memory log and persists it as one JSON
// line.
func (c *Context) Append(msg *models.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	return c.appendLineLocked(messageRecord(msg))
}

// AppendSystem is a convenience wrapper that appends a system message.
func (c *Context) AppendSystem(text string) error {
	return c.Append(models.NewMessage(models.RoleSystem, models.TextPart(text)))
}

// Grow appends an assistant message followed by its tool result messages,
// as one logical step of the agent loop.
func (c *Context) Grow(assistant *models.Message, toolResults []*models.Message) error {
	if err := c.Append(assistant); err != nil {
		return err
	}
	for _, tr := range toolResults {
		if err := c.Append(tr); err != nil {
			return err
		}
	}
	return nil
}

// Checkpoint records a restore point at the current message count and
// returns its ID.
func (c *Context) Checkpoint() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextCheckpoint
	c.nextCheckpoint++
	c.checkpoints[id] = len(c.messages)
	if err := c.appendLineLocked(record{Type: "checkpoint", CheckpointID: id}); err != nil {
		return 0, err
	}
	return id, nil
}

// RevertTo truncates the message list back to the state at checkpointID,
// drops any checkpoints recorded after it, rotates the on-disk log to a
// timestamped backup, and rewrites it from the truncated state.
func (c *Context) RevertTo(checkpointID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, ok := c.checkpoints[checkpointID]
	if !ok {
		return fmt.Errorf("agentcontext: unknown checkpoint %d", checkpointID)
	}

	c.messages = c.messages[:idx]
	for id := range c.checkpoints {
		if id > checkpointID {
			delete(c.checkpoints, id)
		}
	}

	if _, err := os.Stat(c.path); err == nil {
		backup := fmt.Sprintf("%s.%d.bak", c.path, time.Now().Unix())
		if err := os.Rename(c.path, backup); err != nil {
			return fmt.Errorf("agentcontext: rotate %q: %w", c.path, err)
		}
	}

	return c.rewriteLocked()
}

// EstimateTokens returns a rough token count for the current message list,
// approximated as serialized-byte-count / 4.
func (c *Context) EstimateTokens() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, m := range c.messages {
		data, err := json.Marshal(messageRecord(m))
		if err != nil {
			continue
		}
		total += len(data)
	}
	return total / 4
}

// Rewrite persists the current in-memory message list and checkpoints,
// overwriting the on-disk log. Intended for callers (like compaction) that
// mutate messages in place via SetMessages.
func (c *Context) Rewrite() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rewriteLocked()
}

// rewriteLocked persists messages and checkpoint markers interleaved at
// each checkpoint's recorded message index, so Restore's replay-order
// derivation (c.checkpoints[id] = len(c.messages) at the marker line)
// reconstructs the same index the checkpoint actually had. Writing every
// message first and all markers afterward, as a naive dump would, loses
// that position and reassigns every checkpoint the final message count.
func (c *Context) rewriteLocked() error {
	f, err := os.Create(c.path)
	if err != nil {
		return fmt.Errorf("agentcontext: rewrite %q: %w", c.path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	byIndex := make(map[int][]int)
	for id, idx := range c.checkpoints {
		byIndex[idx] = append(byIndex[idx], id)
	}
	writeCheckpointsAt := func(idx int) error {
		ids := byIndex[idx]
		sort.Ints(ids)
		for _, id := range ids {
			if err := writeRecord(w, record{Type: "checkpoint", CheckpointID: id}); err != nil {
				return err
			}
		}
		return nil
	}

	if err := writeCheckpointsAt(0); err != nil {
		return err
	}
	for i, m := range c.messages {
		if err := writeRecord(w, messageRecord(m)); err != nil {
			return err
		}
		if err := writeCheckpointsAt(i + 1); err != nil {
			return err
		}
	}
	return w.Flush()
}

func (c *Context) appendLineLocked(rec record) error {
	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("agentcontext: open %q: %w", c.path, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if err := writeRecord(w, rec); err != nil {
		return err
	}
	return w.Flush()
}

func writeRecord(w *bufio.Writer, rec record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("agentcontext: marshal record: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	return w.WriteByte('\n')
}

func messageRecord(m *models.Message) record {
	return record{Role: m.Role, Parts: m.Parts, CreatedAt: m.CreatedAt}
}
