// Package playback drives text-to-speech reading of bot replies.
//
// A Controller owns at most one speech session at a time. Starting a new
// session cancels the previous one and waits for the engine to acknowledge
// the cancellation before the new one begins, so sessions never overlap.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoText    = errors.New("playback: no text to read")
	ErrNotActive = errors.New("playback: trigger has no active session")
	ErrClosed    = errors.New("playback: controller closed")
)

// User-facing alert messages.
const (
	AlertNoText         = "No hay texto para leer."
	AlertPlaybackFailed = "Error al reproducir el audio. Inténtalo de nuevo."
)

// Observer receives affordance updates and user alerts. Callbacks are never
// invoked while the controller holds its lock, so they may call back into it.
type Observer interface {
	AffordanceChanged(a Affordance)
	Alert(message string)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are ignored.
type ObserverFuncs struct {
	OnAffordance func(Affordance)
	OnAlert      func(string)
}

func (o ObserverFuncs) AffordanceChanged(a Affordance) {
	if o.OnAffordance != nil {
		o.OnAffordance(a)
	}
}

func (o ObserverFuncs) Alert(message string) {
	if o.OnAlert != nil {
		o.OnAlert(message)
	}
}

// Option configures a Controller.
type Option func(*Controller)

// WithSettings overrides the voice settings.
func WithSettings(s Settings) Option {
	return func(c *Controller) {
		c.settings = s.withDefaults()
	}
}

// WithLogger sets the controller logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

type session struct {
	trigger     TriggerID
	text        string
	state       State
	started     bool
	intentional bool
	playback    Playback
	cancel      context.CancelFunc
	done        chan struct{}
}

// Controller is the speech state machine for one widget.
type Controller struct {
	engine   Engine
	observer Observer
	settings Settings
	logger   zerolog.Logger

	mu      sync.Mutex
	current *session
	voices  []Voice
	closed  bool
	wg      sync.WaitGroup
}

// NewController returns a Controller speaking through engine. observer may
// be nil.
func NewController(engine Engine, observer Observer, opts ...Option) *Controller {
	if observer == nil {
		observer = ObserverFuncs{}
	}
	c := &Controller{
		engine:   engine,
		observer: observer,
		settings: DefaultSettings(),
		logger:   log.With().Str("component", "playback").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Toggle is the main speak control of trigger. While trigger is playing it
// pauses, while paused it resumes. Otherwise any other session is stopped and
// content is read from the start.
func (c *Controller) Toggle(ctx context.Context, trigger TriggerID, content string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if s := c.current; s != nil && s.trigger == trigger {
		if !s.started {
			c.mu.Unlock()
			return nil
		}
		return c.flipLocked(s)
	}
	c.mu.Unlock()

	if err := c.StopAll(ctx); err != nil {
		return err
	}

	text := Normalize(content)
	if text == "" {
		c.observer.Alert(AlertNoText)
		return ErrNoText
	}
	return c.start(ctx, trigger, text)
}

// flipLocked pauses or resumes s. It releases c.mu.
func (c *Controller) flipLocked(s *session) error {
	var err error
	switch s.state {
	case Playing:
		if err = s.playback.Pause(); err == nil {
			s.state = Paused
		}
	case Paused:
		if err = s.playback.Resume(); err == nil {
			s.state = Playing
		}
	}
	a := AffordanceFor(s.trigger, s.state)
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("toggle speech %s: %w", s.trigger, err)
	}
	c.observer.AffordanceChanged(a)
	return nil
}

// Restart reads the text of trigger's session again from the top.
func (c *Controller) Restart(ctx context.Context, trigger TriggerID) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	s := c.current
	if s == nil || s.trigger != trigger {
		c.mu.Unlock()
		return ErrNotActive
	}
	text := s.text
	c.mu.Unlock()

	return c.start(ctx, trigger, text)
}

// Stop ends trigger's session, if it is the active one, and waits for the
// engine to acknowledge.
func (c *Controller) Stop(ctx context.Context, trigger TriggerID) error {
	c.mu.Lock()
	s := c.current
	if s == nil || s.trigger != trigger {
		c.mu.Unlock()
		return nil
	}
	c.cancelLocked(s)
	c.mu.Unlock()

	c.observer.AffordanceChanged(AffordanceFor(s.trigger, Idle))
	return wait(ctx, s.done)
}

// StopAll ends whatever session is active and waits for the acknowledgment.
func (c *Controller) StopAll(ctx context.Context) error {
	c.mu.Lock()
	s := c.current
	if s == nil {
		c.mu.Unlock()
		return nil
	}
	c.cancelLocked(s)
	c.mu.Unlock()

	c.observer.AffordanceChanged(AffordanceFor(s.trigger, Idle))
	return wait(ctx, s.done)
}

// Active reports the trigger of the current session and its state. State is
// Idle while the engine is still starting.
func (c *Controller) Active() (TriggerID, State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return "", Idle, false
	}
	return c.current.trigger, c.current.state, true
}

// Close stops playback and releases the controller. Further calls fail with
// ErrClosed.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	s := c.current
	if s != nil {
		c.cancelLocked(s)
	}
	c.mu.Unlock()

	if s != nil {
		c.observer.AffordanceChanged(AffordanceFor(s.trigger, Idle))
	}
	c.wg.Wait()
	return nil
}

// start supersedes any active session, waiting for each cancellation to be
// acknowledged, then launches a new one.
func (c *Controller) start(ctx context.Context, trigger TriggerID, text string) error {
	u := c.settings.utterance(trigger, text, c.loadVoices(ctx))

	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return ErrClosed
		}
		prev := c.current
		if prev == nil {
			break
		}
		c.cancelLocked(prev)
		c.mu.Unlock()

		c.observer.AffordanceChanged(AffordanceFor(prev.trigger, Idle))
		if err := wait(ctx, prev.done); err != nil {
			return err
		}
	}

	sessCtx, cancel := context.WithCancel(context.Background())
	s := &session{
		trigger: trigger,
		text:    text,
		state:   Idle,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	c.current = s
	c.wg.Add(1)
	c.mu.Unlock()

	go c.run(sessCtx, s, u)
	return nil
}

func (c *Controller) run(ctx context.Context, s *session, u Utterance) {
	defer c.wg.Done()

	pb, err := c.engine.Speak(ctx, u)
	if err != nil {
		c.finish(s, err)
		return
	}

	c.mu.Lock()
	s.playback = pb
	s.started = true
	notify := c.current == s && !s.intentional
	if notify {
		s.state = Playing
	}
	c.mu.Unlock()

	if notify {
		c.observer.AffordanceChanged(AffordanceFor(s.trigger, Playing))
	}

	<-pb.Done()
	c.finish(s, pb.Err())
}

// finish settles a session whose playback ended. Sessions cancelled on
// purpose were already reset by the caller and stay silent.
func (c *Controller) finish(s *session, err error) {
	defer close(s.done)
	defer s.cancel()

	c.mu.Lock()
	active := c.current == s
	if active {
		c.current = nil
	}
	intentional := s.intentional
	s.state = Idle
	c.mu.Unlock()

	if !active || intentional {
		return
	}

	if err != nil {
		c.logger.Warn().Err(err).Str("trigger", string(s.trigger)).Str("code", string(Code(err))).Msg("speech ended with error")
	}
	c.observer.AffordanceChanged(AffordanceFor(s.trigger, Idle))
	if err != nil && !IsCancellation(err) {
		c.observer.Alert(AlertPlaybackFailed)
	}
}

func (c *Controller) cancelLocked(s *session) {
	s.intentional = true
	s.state = Idle
	s.cancel()
	if c.current == s {
		c.current = nil
	}
}

func (c *Controller) loadVoices(ctx context.Context) []Voice {
	c.mu.Lock()
	cached := c.voices
	c.mu.Unlock()
	if len(cached) > 0 {
		return cached
	}

	voices, err := c.engine.Voices(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("list voices failed, using default locale")
		return nil
	}

	c.mu.Lock()
	c.voices = voices
	c.mu.Unlock()
	return voices
}

func wait(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
