package widget

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// InstallState обозначает стадию предложения установки приложения.
type InstallState string

const (
	InstallHidden    InstallState = "hidden"
	InstallAvailable InstallState = "available"
	InstallPrompted  InstallState = "prompted"
	InstallDone      InstallState = "done"
	InstallInstalled InstallState = "installed"
)

// События браузера.
const (
	EventPromptCaptured = "beforeinstallprompt"
	EventClick          = "click"
	EventAccepted       = "accepted"
	EventDismissed      = "dismissed"
	EventInstalled      = "appinstalled"
)

var (
	ErrUnknownEvent      = errors.New("unknown install event")
	ErrInvalidTransition = errors.New("invalid install transition")
)

// InstallPrompt хранит состояние кнопки установки одного клиента.
type InstallPrompt struct {
	mu      sync.Mutex
	state   InstallState
	outcome string
}

// NewInstallPrompt создаёт скрытое предложение.
func NewInstallPrompt() *InstallPrompt {
	return &InstallPrompt{state: InstallHidden}
}

// State возвращает стадию.
func (p *InstallPrompt) State() InstallState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Outcome возвращает ответ пользователя: accepted или dismissed.
func (p *InstallPrompt) Outcome() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outcome
}

// ButtonVisible сообщает, показывать ли кнопку установки.
func (p *InstallPrompt) ButtonVisible() bool {
	return p.State() == InstallAvailable
}

// Installed скрывает кнопку в любой стадии.
func (p *InstallPrompt) Installed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = InstallInstalled
}

// Apply применяет событие браузера.
func (p *InstallPrompt) Apply(event string) (InstallState, error) {
	if event == EventInstalled {
		p.Installed()
		return InstallInstalled, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch event {
	case EventPromptCaptured:
		if p.state == InstallInstalled {
			return p.state, nil
		}
		p.state = InstallAvailable
		p.outcome = ""
	case EventClick:
		if p.state != InstallAvailable {
			return p.state, fmt.Errorf("%w: click in %s", ErrInvalidTransition, p.state)
		}
		p.state = InstallPrompted
	case EventAccepted, EventDismissed:
		if p.state != InstallPrompted {
			return p.state, fmt.Errorf("%w: %s in %s", ErrInvalidTransition, event, p.state)
		}
		p.state = InstallDone
		p.outcome = event
	default:
		return p.state, fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	return p.state, nil
}

type promptEntry struct {
	prompt   *InstallPrompt
	lastSeen time.Time
}

// PromptRegistry хранит предложения установки по идентификатору клиента.
type PromptRegistry struct {
	mu      sync.Mutex
	prompts map[string]*promptEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewPromptRegistry создаёт пустой реестр; при ttl > 0 Prune удаляет клиентов, не обращавшихся дольше ttl.
func NewPromptRegistry(ttl time.Duration) *PromptRegistry {
	return &PromptRegistry{
		prompts: make(map[string]*promptEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get возвращает предложение клиента, создавая его при первом обращении.
func (r *PromptRegistry) Get(clientID string) *InstallPrompt {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.prompts[clientID]
	if !ok {
		e = &promptEntry{prompt: NewInstallPrompt()}
		r.prompts[clientID] = e
	}
	e.lastSeen = r.now()
	return e.prompt
}

// Prune удаляет устаревшие предложения и возвращает их количество.
func (r *PromptRegistry) Prune() int {
	if r.ttl <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.ttl)
	removed := 0
	for id, e := range r.prompts {
		if e.lastSeen.Before(cutoff) {
			delete(r.prompts, id)
			removed++
		}
	}
	return removed
}

// Len возвращает число известных клиентов.
func (r *PromptRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.prompts)
}
