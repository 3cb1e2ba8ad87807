package screens

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultCatalogue []byte

var ErrUnknownScreen = errors.New("unknown screen")

type catalogue struct {
	Instructions  Instructions `yaml:"instructions"`
	InitialScreen Screen       `yaml:"initial_screen"`
	Screens       []Entry      `yaml:"screens"`
}

// Bridge holds the screen catalogue and which screen is current. It is safe
// for concurrent use.
type Bridge struct {
	mu      sync.RWMutex
	current Screen

	instructions Instructions
	order        []Screen
	entries      map[Screen]Entry
}

// Default returns a bridge over the built-in catalogue.
func Default() *Bridge {
	b, err := parse(defaultCatalogue, nil)
	if err != nil {
		panic(fmt.Sprintf("built-in screen catalogue is invalid: %v", err))
	}
	return b
}

// Load reads a YAML catalogue. Screens it names replace the built-in ones
// with the same ID, new IDs are appended, and empty instruction fields keep
// their built-in value.
func Load(r io.Reader) (*Bridge, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read screen catalogue: %w", err)
	}
	return parse(data, Default())
}

func LoadFile(path string) (*Bridge, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open screen catalogue: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func parse(data []byte, base *Bridge) (*Bridge, error) {
	var c catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse screen catalogue: %w", err)
	}

	b := &Bridge{entries: map[Screen]Entry{}}
	if base != nil {
		b.instructions = c.Instructions.merge(base.instructions)
		b.current = base.current
		for _, id := range base.order {
			b.order = append(b.order, id)
			b.entries[id] = base.entries[id]
		}
	} else {
		b.instructions = c.Instructions
	}

	for _, entry := range c.Screens {
		id, err := ParseScreen(string(entry.ID))
		if err != nil {
			return nil, fmt.Errorf("invalid screen entry: %w", err)
		}
		entry.ID = id
		entry.Context = strings.TrimSpace(entry.Context)
		if entry.Title == "" {
			entry.Title = string(id)
		}
		if _, exists := b.entries[id]; !exists {
			b.order = append(b.order, id)
		}
		b.entries[id] = entry
	}

	if c.InitialScreen != "" {
		initial, err := ParseScreen(string(c.InitialScreen))
		if err != nil {
			return nil, fmt.Errorf("invalid initial screen: %w", err)
		}
		b.current = initial
	}
	if b.current == "" && len(b.order) > 0 {
		b.current = b.order[0]
	}
	if _, ok := b.entries[b.current]; !ok {
		return nil, fmt.Errorf("initial screen %q: %w", b.current, ErrUnknownScreen)
	}
	return b, nil
}

// Screens lists the catalogue in declaration order.
func (b *Bridge) Screens() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entries := make([]Entry, 0, len(b.order))
	for _, id := range b.order {
		entries = append(entries, b.entries[id])
	}
	return entries
}

func (b *Bridge) Entry(screen Screen) (Entry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entry, ok := b.entries[screen]
	return entry, ok
}

// Context returns the descriptive text for screen.
func (b *Bridge) Context(screen Screen) (string, bool) {
	entry, ok := b.Entry(screen)
	return entry.Context, ok
}

func (b *Bridge) Current() Screen {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current
}

// SetCurrent switches the current screen and returns its context text.
func (b *Bridge) SetCurrent(screen Screen) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.entries[screen]
	if !ok {
		return "", fmt.Errorf("%q: %w", screen, ErrUnknownScreen)
	}
	b.current = screen
	return entry.Context, nil
}

func (b *Bridge) CurrentContext() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.entries[b.current].Context
}

func (b *Bridge) Instructions() Instructions {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.instructions
}

// SystemInstruction is the base instruction followed by the initial context
// block.
func (b *Bridge) SystemInstruction(context string) string {
	instructions := b.Instructions()
	base := strings.TrimSpace(instructions.Base)
	if context == "" {
		return base
	}
	return base + "\n\n" + instructions.InitialContextHeader + "\n" + context
}

// Greeting is the opening prompt naming the current screen.
func (b *Bridge) Greeting() string {
	instructions := b.Instructions()
	return strings.TrimSpace(instructions.render(instructions.Greeting, b.Current(), b.CurrentContext()))
}

// ContextUpdate wraps context in the update template for the current screen.
func (b *Bridge) ContextUpdate(context string) string {
	instructions := b.Instructions()
	return strings.TrimSpace(instructions.render(instructions.ContextUpdate, b.Current(), context))
}
