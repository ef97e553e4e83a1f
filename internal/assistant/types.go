package assistant

// RunStatus mirrors the lifecycle states reported by the provider for a run.
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCancelling     RunStatus = "cancelling"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusIncomplete     RunStatus = "incomplete"
	RunStatusExpired        RunStatus = "expired"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	ContentTypeText = "text"

	ToolFileSearch = "file_search"
)

type Thread struct {
	ID string `json:"id"`
}

type Run struct {
	ID          string    `json:"id"`
	ThreadID    string    `json:"thread_id"`
	AssistantID string    `json:"assistant_id"`
	Status      RunStatus `json:"status"`
	LastError   *RunError `json:"last_error,omitempty"`
}

type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Message struct {
	ID       string         `json:"id"`
	ThreadID string         `json:"thread_id"`
	Role     string         `json:"role"`
	Content  []ContentBlock `json:"content"`
}

type ContentBlock struct {
	Type string       `json:"type"`
	Text *TextContent `json:"text,omitempty"`
}

type TextContent struct {
	Value string `json:"value"`
}

// MessageInput is the payload for appending a message to a thread.
type MessageInput struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type RunParams struct {
	AssistantID     string
	ForceFileSearch bool
}

// FirstText returns the value of the first text block, if any.
func (m Message) FirstText() (string, bool) {
	for _, block := range m.Content {
		if block.Type == ContentTypeText && block.Text != nil {
			return block.Text.Value, true
		}
	}
	return "", false
}
