package session

import (
	"fmt"

	"github.com/OCAP2/demotimeline/internal/dispatcher"
	"github.com/OCAP2/demotimeline/internal/projectile"
)

// Notification commands accepted in a transcript.
const (
	CmdEntityCreated    = ":ENTITY:CREATED:"
	CmdEntityProperty   = ":ENTITY:PROP:"
	CmdEntityDestroyed  = ":ENTITY:DESTROYED:"
	CmdDetonateStart    = ":DETONATE:START:"
	CmdDetonateEnd      = ":DETONATE:END:"
	CmdPlayer           = ":PLAYER:"
	CmdPlayerDisconnect = ":PLAYER:DISCONNECT:"
)

func (s *Session) registerHandlers(d *dispatcher.Dispatcher) {
	d.Register(CmdPlayer, s.handlePlayer)
	d.Register(CmdPlayerDisconnect, s.handlePlayerDisconnect, dispatcher.Logged())

	d.Register(CmdEntityCreated, s.handleEntityCreated, dispatcher.Logged())
	// every networked entity reports properties, only projectiles are tracked
	d.Register(CmdEntityProperty, s.handleEntityProperty, dispatcher.Tolerate(projectile.ErrUnknownEntity))
	d.Register(CmdEntityDestroyed, s.handleEntityDestroyed, dispatcher.Tolerate(projectile.ErrUnknownEntity), dispatcher.Logged())

	d.Register(CmdDetonateStart, s.handleDetonateStart, dispatcher.Logged())
	d.Register(CmdDetonateEnd, s.handleDetonateEnd, dispatcher.Logged())
}

func (s *Session) handlePlayer(e dispatcher.Event) (any, error) {
	obj, err := s.Parser.ParsePlayer(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse player: %w", err)
	}
	return s.Players.Upsert(obj.Player), nil
}

func (s *Session) handlePlayerDisconnect(e dispatcher.Event) (any, error) {
	obj, err := s.Parser.ParsePlayerDisconnect(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse player disconnect: %w", err)
	}
	return s.Players.Remove(obj.Slot), nil
}

func (s *Session) handleEntityCreated(e dispatcher.Event) (any, error) {
	obj, err := s.Parser.ParseEntityCreated(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse entity creation: %w", err)
	}
	return s.Engine.OnEntityCreated(obj.Class, obj.EntityID), nil
}

func (s *Session) handleEntityProperty(e dispatcher.Event) (any, error) {
	obj, err := s.Parser.ParseEntityProperty(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse entity property: %w", err)
	}
	return nil, s.Engine.OnPropertyChanged(obj.EntityID, obj.Property)
}

func (s *Session) handleEntityDestroyed(e dispatcher.Event) (any, error) {
	obj, err := s.Parser.ParseEntityDestroyed(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse entity destruction: %w", err)
	}
	return nil, s.Engine.OnEntityDestroyed(obj.EntityID, e.Time)
}

func (s *Session) handleDetonateStart(e dispatcher.Event) (any, error) {
	obj, err := s.Parser.ParseDetonationStart(e.Time, e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse detonation start: %w", err)
	}
	s.Engine.OnDetonationStart(obj)
	return nil, nil
}

func (s *Session) handleDetonateEnd(e dispatcher.Event) (any, error) {
	obj, err := s.Parser.ParseDetonationEnd(e.Time, e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse detonation end: %w", err)
	}
	s.Engine.OnDetonationEnd(obj)
	return nil, nil
}
