package session

import (
	"errors"
	"fmt"
	"sync"
)

// ErrBrokenInvariant — запись нарушила бы правило «Idle ⇔ None».
var ErrBrokenInvariant = errors.New("session: state/mode invariant violated")

type State int

const (
	Idle State = iota
	AwaitingInput
	AwaitingText
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingInput:
		return "await_input"
	case AwaitingText:
		return "await_text"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Mode int

const (
	None Mode = iota
	Solve
	Explain
	Paraphrase
	Shorten
)

func (m Mode) String() string {
	switch m {
	case None:
		return "none"
	case Solve:
		return "solution"
	case Explain:
		return "explanation"
	case Paraphrase:
		return "paraphrase"
	case Shorten:
		return "shorten"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Session — состояние одного чата. Нулевое значение = Idle/None.
type Session struct {
	State State
	Mode  Mode
}

func (s Session) Valid() bool { return (s.State == Idle) == (s.Mode == None) }

// Store хранит сессии в памяти по chat id. Разные чаты не конкурируют:
// каждое значение меняется целиком через CompareAndSwap.
type Store struct {
	m sync.Map // chatID -> Session
}

func NewStore() *Store { return &Store{} }

// Get возвращает сессию чата; отсутствующая запись — Idle/None.
func (s *Store) Get(chatID int64) Session {
	if v, ok := s.m.Load(chatID); ok {
		return v.(Session)
	}
	return Session{}
}

func (s *Store) Snapshot(chatID int64) (State, Mode) {
	cur := s.Get(chatID)
	return cur.State, cur.Mode
}

// Set атомарно записывает state и mode.
func (s *Store) Set(chatID int64, state State, mode Mode) error {
	next := Session{State: state, Mode: mode}
	if !next.Valid() {
		return fmt.Errorf("%w: %s/%s", ErrBrokenInvariant, state, mode)
	}
	if state == Idle {
		s.Clear(chatID)
		return nil
	}
	s.m.Store(chatID, next)
	return nil
}

// SetMode меняет режим, сохраняя состояние. None сбрасывает сессию.
func (s *Store) SetMode(chatID int64, mode Mode) error {
	if mode == None {
		s.Clear(chatID)
		return nil
	}
	return s.update(chatID, func(cur Session) Session {
		cur.Mode = mode
		return cur
	})
}

// SetState меняет состояние, сохраняя режим. Idle сбрасывает сессию.
func (s *Store) SetState(chatID int64, state State) error {
	if state == Idle {
		s.Clear(chatID)
		return nil
	}
	return s.update(chatID, func(cur Session) Session {
		cur.State = state
		return cur
	})
}

// Clear возвращает чат в Idle/None. Повторный вызов ничего не меняет.
func (s *Store) Clear(chatID int64) { s.m.Delete(chatID) }

func (s *Store) update(chatID int64, fn func(Session) Session) error {
	for {
		old, loaded := s.m.Load(chatID)
		var cur Session
		if loaded {
			cur = old.(Session)
		}
		next := fn(cur)
		if !next.Valid() {
			return fmt.Errorf("%w: %s/%s", ErrBrokenInvariant, next.State, next.Mode)
		}
		if !loaded {
			if _, raced := s.m.LoadOrStore(chatID, next); !raced {
				return nil
			}
			continue
		}
		if s.m.CompareAndSwap(chatID, old, next) {
			return nil
		}
	}
}
