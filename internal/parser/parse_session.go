package parser

import "math"

// Session is a recording session start.
type Session struct {
	Name  string
	World string
}

// ParseSession parses [name, world].
func (p *Parser) ParseSession(data []string) (Session, error) {
	args, err := clean("session", data, 1)
	if err != nil {
		return Session{}, err
	}
	s := Session{Name: args[0]}
	if s.Name == "" {
		return Session{}, invalid("session: empty name")
	}
	if len(args) > 1 {
		s.World = args[1]
	}
	return s, nil
}

// Tick is one fixed simulation step.
type Tick struct {
	SimTime float64
	DT      float64
}

// ParseTick parses [simTime, dt]. dt must be positive and finite.
func (p *Parser) ParseTick(data []string) (Tick, error) {
	args, err := clean("tick", data, 2)
	if err != nil {
		return Tick{}, err
	}
	var t Tick
	if t.SimTime, err = float("tick", "simTime", args[0]); err != nil {
		return Tick{}, err
	}
	if t.DT, err = float("tick", "dt", args[1]); err != nil {
		return Tick{}, err
	}
	if math.IsNaN(t.SimTime) || math.IsInf(t.SimTime, 0) {
		return Tick{}, invalid("tick: simTime %v", t.SimTime)
	}
	if !(t.DT > 0) || math.IsInf(t.DT, 0) {
		return Tick{}, invalid("tick: dt %v must be positive", t.DT)
	}
	return t, nil
}

// ParseBool parses a single boolean argument.
func (p *Parser) ParseBool(data []string) (bool, error) {
	args, err := clean("bool", data, 1)
	if err != nil {
		return false, err
	}
	return boolean("bool", "value", args[0])
}
