// Package prefs manages theme and accessibility preferences.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
)

// ErrInvalidPreference is returned for an unknown theme or font size.
var ErrInvalidPreference = errors.New("invalid preference")

const (
	keyTheme         = "learning-portal-theme"
	keyFontSize      = "learning-portal-font-size"
	keyReducedMotion = "learning-portal-reduced-motion"
	keyHighContrast  = "learning-portal-high-contrast"
)

const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"
)

const (
	FontSmall  = "small"
	FontMedium = "medium"
	FontLarge  = "large"
	FontXLarge = "xlarge"
)

var (
	themes    = []string{ThemeLight, ThemeDark, ThemeSystem}
	fontSizes = []string{FontSmall, FontMedium, FontLarge, FontXLarge}
)

// Preferences is the full set of user-interface preferences.
type Preferences struct {
	Theme         string `json:"theme"`
	FontSize      string `json:"font_size"`
	ReducedMotion bool   `json:"reduced_motion"`
	HighContrast  bool   `json:"high_contrast"`
}

// Defaults are the preferences applied on first run and by Reset.
var Defaults = Preferences{
	Theme:    ThemeLight,
	FontSize: FontMedium,
}

// Service reads and writes preferences through a KV.
type Service struct {
	kv KV
	mu sync.Mutex
}

func NewService(kv KV) *Service {
	if kv == nil {
		kv = NewMemoryKV()
	}
	return &Service{kv: kv}
}

// Get returns the saved preferences. Missing or unrecognized entries fall
// back to Defaults.
func (s *Service) Get(ctx context.Context) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Service) SetTheme(ctx context.Context, theme string) (Preferences, error) {
	if indexOf(themes, theme) < 0 {
		return Preferences{}, fmt.Errorf("%w: theme %q", ErrInvalidPreference, theme)
	}
	return s.update(ctx, func(p *Preferences) { p.Theme = theme })
}

// ToggleTheme advances light -> dark -> system -> light.
func (s *Service) ToggleTheme(ctx context.Context) (Preferences, error) {
	return s.update(ctx, func(p *Preferences) {
		i := indexOf(themes, p.Theme)
		p.Theme = themes[(i+1)%len(themes)]
	})
}

func (s *Service) SetFontSize(ctx context.Context, size string) (Preferences, error) {
	if indexOf(fontSizes, size) < 0 {
		return Preferences{}, fmt.Errorf("%w: font size %q", ErrInvalidPreference, size)
	}
	return s.update(ctx, func(p *Preferences) { p.FontSize = size })
}

// IncreaseFontSize steps up one size, stopping at xlarge.
func (s *Service) IncreaseFontSize(ctx context.Context) (Preferences, error) {
	return s.stepFont(ctx, 1)
}

// DecreaseFontSize steps down one size, stopping at small.
func (s *Service) DecreaseFontSize(ctx context.Context) (Preferences, error) {
	return s.stepFont(ctx, -1)
}

func (s *Service) SetReducedMotion(ctx context.Context, on bool) (Preferences, error) {
	return s.update(ctx, func(p *Preferences) { p.ReducedMotion = on })
}

func (s *Service) SetHighContrast(ctx context.Context, on bool) (Preferences, error) {
	return s.update(ctx, func(p *Preferences) { p.HighContrast = on })
}

// ToggleReducedMotion flips the reduced-motion flag.
func (s *Service) ToggleReducedMotion(ctx context.Context) (Preferences, error) {
	return s.update(ctx, func(p *Preferences) { p.ReducedMotion = !p.ReducedMotion })
}

// ToggleHighContrast flips the high-contrast flag.
func (s *Service) ToggleHighContrast(ctx context.Context) (Preferences, error) {
	return s.update(ctx, func(p *Preferences) { p.HighContrast = !p.HighContrast })
}

// Reset restores Defaults.
func (s *Service) Reset(ctx context.Context) (Preferences, error) {
	return s.update(ctx, func(p *Preferences) { *p = Defaults })
}

// Apply validates and saves every field of p.
func (s *Service) Apply(ctx context.Context, p Preferences) (Preferences, error) {
	if indexOf(themes, p.Theme) < 0 {
		return Preferences{}, fmt.Errorf("%w: theme %q", ErrInvalidPreference, p.Theme)
	}
	if indexOf(fontSizes, p.FontSize) < 0 {
		return Preferences{}, fmt.Errorf("%w: font size %q", ErrInvalidPreference, p.FontSize)
	}
	return s.update(ctx, func(cur *Preferences) { *cur = p })
}

func (s *Service) stepFont(ctx context.Context, delta int) (Preferences, error) {
	return s.update(ctx, func(p *Preferences) {
		i := indexOf(fontSizes, p.FontSize) + delta
		i = max(0, min(i, len(fontSizes)-1))
		p.FontSize = fontSizes[i]
	})
}

func (s *Service) update(ctx context.Context, fn func(*Preferences)) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.load(ctx)
	if err != nil {
		return Preferences{}, err
	}
	fn(&p)
	if err := s.save(ctx, p); err != nil {
		return Preferences{}, err
	}
	slog.Debug("preferences saved",
		"theme", p.Theme,
		"font_size", p.FontSize,
	)
	return p, nil
}

func (s *Service) load(ctx context.Context) (Preferences, error) {
	p := Defaults

	if v, ok, err := s.kv.Get(ctx, keyTheme); err != nil {
		return Preferences{}, err
	} else if ok && indexOf(themes, v) >= 0 {
		p.Theme = v
	}
	if v, ok, err := s.kv.Get(ctx, keyFontSize); err != nil {
		return Preferences{}, err
	} else if ok && indexOf(fontSizes, v) >= 0 {
		p.FontSize = v
	}

	var err error
	if p.ReducedMotion, err = s.loadBool(ctx, keyReducedMotion); err != nil {
		return Preferences{}, err
	}
	if p.HighContrast, err = s.loadBool(ctx, keyHighContrast); err != nil {
		return Preferences{}, err
	}
	return p, nil
}

func (s *Service) loadBool(ctx context.Context, key string) (bool, error) {
	v, ok, err := s.kv.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	b, perr := strconv.ParseBool(v)
	if perr != nil {
		return false, nil
	}
	return b, nil
}

func (s *Service) save(ctx context.Context, p Preferences) error {
	entries := []struct{ key, value string }{
		{keyTheme, p.Theme},
		{keyFontSize, p.FontSize},
		{keyReducedMotion, strconv.FormatBool(p.ReducedMotion)},
		{keyHighContrast, strconv.FormatBool(p.HighContrast)},
	}
	for _, e := range entries {
		if err := s.kv.Set(ctx, e.key, e.value); err != nil {
			return fmt.Errorf("saving preferences: %w", err)
		}
	}
	return nil
}

func indexOf(values []string, v string) int {
	for i, x := range values {
		if x == v {
			return i
		}
	}
	return -1
}
