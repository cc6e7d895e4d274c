// Package content загружает настройки сайта, каталог игр и слайды карусели
// и строит из них модели представления страниц.
package content

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/luckyspin/internal/metrics"
	"github.com/mmeshcher/luckyspin/internal/model"
)

// Source описывает источник содержимого сайта.
type Source interface {
	GetSiteSettings(ctx context.Context) (*model.SiteSettings, error)
	ListActiveGames(ctx context.Context) ([]model.Game, error)
	ListCarouselItems(ctx context.Context) ([]model.CarouselItem, error)
}

// State хранит последнее загруженное содержимое сайта. Безопасен для конкурентного чтения.
type State struct {
	mu       sync.RWMutex
	settings *model.SiteSettings
	games    []model.Game
	carousel []model.CarouselItem
	loadedAt time.Time

	listeners []func(slides int)
}

// NewState создаёт пустое состояние.
func NewState() *State {
	return &State{}
}

// Settings возвращает настройки сайта или nil, если они ещё не загружены.
func (s *State) Settings() *model.SiteSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings == nil {
		return nil
	}
	cp := *s.settings
	return &cp
}

// Games возвращает копию списка активных игр.
func (s *State) Games() []model.Game {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Game(nil), s.games...)
}

// Carousel возвращает копию списка слайдов.
func (s *State) Carousel() []model.CarouselItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.CarouselItem(nil), s.carousel...)
}

// LoadedAt возвращает время последней успешной загрузки любого раздела.
func (s *State) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// OnCarouselChange регистрирует обработчик замены слайдов карусели.
func (s *State) OnCarouselChange(fn func(slides int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *State) setSettings(v *model.SiteSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = v
	s.loadedAt = time.Now()
}

func (s *State) setGames(v []model.Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games = v
	s.loadedAt = time.Now()
}

func (s *State) setCarousel(v []model.CarouselItem) {
	s.mu.Lock()
	s.carousel = v
	s.loadedAt = time.Now()
	listeners := append([]func(int){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(len(v))
	}
}

// Renderer загружает содержимое сайта в State.
type Renderer struct {
	source  Source
	state   *State
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewRenderer создаёт загрузчик содержимого.
func NewRenderer(source Source, state *State, logger *zap.Logger) *Renderer {
	if state == nil {
		state = NewState()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{
		source: source,
		state:  state,
		logger: logger,
	}
}

// SetMetrics подключает счётчики загрузок.
func (r *Renderer) SetMetrics(m *metrics.Metrics) {
	r.metrics = m
}

// State возвращает состояние, которое заполняет загрузчик.
func (r *Renderer) State() *State {
	return r.state
}

// Load параллельно загружает настройки, игры и карусель. Ошибка одного раздела
// логируется и не прерывает загрузку остальных; возвращается объединение ошибок.
func (r *Renderer) Load(ctx context.Context) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)

	run := func(section string, fn func() error) {
		g.Go(func() error {
			if err := fn(); err != nil {
				r.logger.Error("content load error", zap.String("section", section), zap.Error(err))
				r.metrics.ObserveContentLoad(section, metrics.OutcomeError)
				mu.Lock()
				errs = append(errs, fmt.Errorf("load %s: %w", section, err))
				mu.Unlock()
				return nil
			}
			r.metrics.ObserveContentLoad(section, metrics.OutcomeSuccess)
			return nil
		})
	}

	run("settings", func() error {
		s, err := r.source.GetSiteSettings(ctx)
		if err != nil {
			return err
		}
		r.state.setSettings(s)
		return nil
	})

	run("games", func() error {
		g, err := r.source.ListActiveGames(ctx)
		if err != nil {
			return err
		}
		r.state.setGames(g)
		return nil
	})

	run("carousel", func() error {
		items, err := r.source.ListCarouselItems(ctx)
		if err != nil {
			return err
		}
		// Пустой ответ оставляет прежние слайды.
		if len(items) > 0 {
			r.state.setCarousel(items)
		}
		return nil
	})

	_ = g.Wait()
	return errors.Join(errs...)
}

// StartRefresh периодически перезагружает содержимое до отмены контекста.
func (r *Renderer) StartRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = r.Load(ctx)
		}
	}
}
