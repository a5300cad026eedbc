package notifysvc

import (
	"fmt"
	"strings"
	"sync"

	"github.com/invasionlatina/backend/core"
)

// ConsoleService logs the notifications instead of delivering them. It keeps them when recording.
type ConsoleService struct {
	logger    core.Logger
	recording bool

	mu       sync.Mutex
	pushes   []core.PushMessage
	whatsapp []string
}

var (
	_ core.PushService     = (*ConsoleService)(nil)
	_ core.WhatsAppService = (*ConsoleService)(nil)
)

func NewConsoleService(logger core.Logger) *ConsoleService {
	return &ConsoleService{logger: logger}
}

// NewConsoleServiceMock returns a silent ConsoleService recording everything it is given.
func NewConsoleServiceMock() *ConsoleService {
	return &ConsoleService{recording: true}
}

func (svc *ConsoleService) Push(messages ...*core.PushMessage) {
	for _, msg := range messages {
		if !msg.HasRecipients() {
			continue
		}
		if svc.recording {
			svc.mu.Lock()
			svc.pushes = append(svc.pushes, *msg)
			svc.mu.Unlock()
			continue
		}
		svc.logger.Info(fmt.Sprintf("push to %s: %s - %s", strings.Join(msg.To, ", "), msg.Title, msg.Body))
	}
}

func (svc *ConsoleService) Send(text string) {
	if svc.recording {
		svc.mu.Lock()
		svc.whatsapp = append(svc.whatsapp, text)
		svc.mu.Unlock()
		return
	}
	svc.logger.Info("whatsapp:\n" + text)
}

func (svc *ConsoleService) Pushes() []core.PushMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]core.PushMessage(nil), svc.pushes...)
}

func (svc *ConsoleService) WhatsAppMessages() []string {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]string(nil), svc.whatsapp...)
}

func (svc *ConsoleService) Reset() {
	svc.mu.Lock()
	svc.pushes, svc.whatsapp = nil, nil
	svc.mu.Unlock()
}
