package client

import (
	"context"
	"sync"
	"time"

	"study-service/internal/chatstream"
	"study-service/internal/domain"
)

// Conversation sends chat messages for one study. Sends to the same chat
// context run one after another; the two contexts are independent.
type Conversation struct {
	ws  *Workspace
	now func() time.Time

	mu    sync.Mutex
	locks map[domain.ChatContext]*sync.Mutex
}

func NewConversation(ws *Workspace) *Conversation {
	return &Conversation{ws: ws, now: time.Now, locks: make(map[domain.ChatContext]*sync.Mutex)}
}

func (c *Conversation) lockFor(chat domain.ChatContext) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[chat]
	if !ok {
		l = &sync.Mutex{}
		c.locks[chat] = l
	}
	return l
}

// Send appends the user message and an empty assistant message to the chat,
// then grows the assistant message as the reply streams in. If the stream
// fails the assistant message becomes chatstream.FailureMessage. It returns
// the final assistant text.
func (c *Conversation) Send(ctx context.Context, chat domain.ChatContext, message string, quiz *domain.QuizChatContext) (string, error) {
	if _, err := domain.ParseChatContext(string(chat)); err != nil {
		return "", err
	}
	l := c.lockFor(chat)
	l.Lock()
	defer l.Unlock()

	store := c.ws.store
	sent := c.now()
	store.Dispatch(ChatMessageAppended{Context: chat, Message: domain.ChatMessage{Role: domain.RoleUser, Content: message, Timestamp: &sent}})
	store.Dispatch(ChatMessageAppended{Context: chat, Message: domain.ChatMessage{Role: domain.RoleAssistant}})

	fail := func(err error) (string, error) {
		store.Dispatch(ChatLastMessageReplaced{Context: chat, Message: domain.ChatMessage{Role: domain.RoleAssistant, Content: chatstream.FailureMessage}})
		return chatstream.FailureMessage, err
	}

	if chat != domain.ChatQuiz {
		quiz = nil
	}
	body, err := c.ws.client.StreamChat(ctx, c.ws.studyID, chat, message, quiz)
	if err != nil {
		return fail(err)
	}
	defer body.Close()

	var r chatstream.Reassembler
	reply, err := r.Consume(ctx, body, func(content string) {
		store.Dispatch(ChatLastMessageReplaced{Context: chat, Message: domain.ChatMessage{Role: domain.RoleAssistant, Content: content}})
	})
	if err != nil {
		return fail(err)
	}
	done := c.now()
	store.Dispatch(ChatLastMessageReplaced{Context: chat, Message: domain.ChatMessage{Role: domain.RoleAssistant, Content: reply, Timestamp: &done}})
	return reply, nil
}

// LoadHistory replaces one chat in the store with the server's copy.
func (c *Conversation) LoadHistory(ctx context.Context, chat domain.ChatContext) ([]domain.ChatMessage, error) {
	l := c.lockFor(chat)
	l.Lock()
	defer l.Unlock()

	msgs, err := c.ws.client.ChatHistory(ctx, c.ws.studyID, chat)
	if err != nil {
		return nil, err
	}
	c.ws.store.Dispatch(ChatCleared{Context: chat})
	for _, m := range msgs {
		c.ws.store.Dispatch(ChatMessageAppended{Context: chat, Message: m})
	}
	return msgs, nil
}
