// Package widget содержит состояние временных элементов интерфейса: карусели,
// таймера акции для новых игроков и предложения установки приложения.
package widget

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultCarouselInterval задаёт период смены слайдов.
const DefaultCarouselInterval = 5 * time.Second

// ErrSlideOutOfRange возвращается при выборе несуществующего слайда.
var ErrSlideOutOfRange = errors.New("slide index out of range")

// Carousel переключает слайды по таймеру. Выбор слайда вручную перезапускает интервал.
type Carousel struct {
	mu       sync.Mutex
	slides   int
	index    int
	interval time.Duration
	reset    chan struct{}
	onChange []func(index int)
}

// NewCarousel создаёт карусель без слайдов.
func NewCarousel(interval time.Duration) *Carousel {
	if interval <= 0 {
		interval = DefaultCarouselInterval
	}
	return &Carousel{
		interval: interval,
		reset:    make(chan struct{}, 1),
	}
}

// OnChange регистрирует обработчик смены активного слайда.
func (c *Carousel) OnChange(fn func(index int)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = append(c.onChange, fn)
}

// SetSlides заменяет набор слайдов; активным становится первый.
func (c *Carousel) SetSlides(n int) {
	if n < 0 {
		n = 0
	}
	c.mu.Lock()
	c.slides = n
	c.index = 0
	c.mu.Unlock()

	c.restart()
	if n > 0 {
		c.notify(0)
	}
}

// Index возвращает активный слайд и число слайдов.
func (c *Carousel) Index() (index, slides int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index, c.slides
}

// Next переходит к следующему слайду по кругу. Без слайдов ничего не делает.
func (c *Carousel) Next() int {
	c.mu.Lock()
	if c.slides == 0 {
		c.mu.Unlock()
		return 0
	}
	c.index = (c.index + 1) % c.slides
	idx := c.index
	c.mu.Unlock()

	c.notify(idx)
	return idx
}

// Select делает активным слайд i и перезапускает интервал.
func (c *Carousel) Select(i int) error {
	c.mu.Lock()
	if i < 0 || i >= c.slides {
		c.mu.Unlock()
		return ErrSlideOutOfRange
	}
	c.index = i
	c.mu.Unlock()

	c.restart()
	c.notify(i)
	return nil
}

func (c *Carousel) restart() {
	select {
	case c.reset <- struct{}{}:
	default:
	}
}

func (c *Carousel) notify(idx int) {
	c.mu.Lock()
	fns := make([]func(int), len(c.onChange))
	copy(fns, c.onChange)
	c.mu.Unlock()

	for _, fn := range fns {
		fn(idx)
	}
}

// Run переключает слайды, пока не отменён контекст.
func (c *Carousel) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.reset:
			ticker.Reset(c.interval)
		case <-ticker.C:
			c.Next()
		}
	}
}
