package emailsvc

import (
	"sync"

	"github.com/trezcool/darasa/core"
)

// MockService records outgoing emails instead of sending them. For tests.
type MockService struct {
	mu           sync.Mutex
	SentMessages []core.EmailMessage
}

var _ core.EmailService = (*MockService)(nil)

func NewMockService() *MockService {
	return &MockService{SentMessages: make([]core.EmailMessage, 0)}
}

func (svc *MockService) SendMessages(messages ...*core.EmailMessage) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	for _, msg := range messages {
		if msg.HasRecipients() && (msg.HasContent() || msg.HasAttachments()) {
			svc.SentMessages = append(svc.SentMessages, *msg)
		}
	}
}

func (svc *MockService) Clear() {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.SentMessages = svc.SentMessages[:0]
}
