package scenario

func legs(hip, knee float64) []Command {
	return []Command{
		{Actuator: "hip_x_right", Value: hip},
		{Actuator: "hip_x_left", Value: hip},
		{Actuator: "knee_right", Value: knee},
		{Actuator: "knee_left", Value: knee},
	}
}

// BuiltIn returns predefined scripts for the bundled humanoid model.
func BuiltIn() map[string]Scenario {
	return map[string]Scenario{
		"stand": {
			Name:        "Stand",
			Description: "Zero every leg actuator once and hold.",
			Phases: []Phase{
				{Name: "hold", Commands: legs(0, 0)},
			},
		},
		"hip-swing": {
			Name:        "Hip Swing",
			Description: "Swing the right hip back and forth every half second.",
			Phases: []Phase{
				{
					Name:     "forward",
					Commands: []Command{{Actuator: "hip_x_right", Value: 0.5}},
					Triggers: []Trigger{{Event: EventPhaseTime, Value: 0.5, Next: "back"}},
				},
				{
					Name:     "back",
					Commands: []Command{{Actuator: "hip_x_right", Value: -0.5}},
					Triggers: []Trigger{{Event: EventPhaseTime, Value: 0.5, Next: "forward"}},
				},
			},
		},
		"squat": {
			Name:        "Squat",
			Description: "Bend both knees, hold, then stand back up.",
			Phases: []Phase{
				{
					Name:     "setup",
					Commands: legs(0, 0),
					Triggers: []Trigger{{Event: EventPhaseTime, Value: 1, Next: "descend"}},
				},
				{
					Name:     "descend",
					Commands: legs(-0.3, -0.8),
					Triggers: []Trigger{{Event: EventPhaseTime, Value: 2, Next: "rise"}},
				},
				{
					Name:     "rise",
					Commands: legs(0, 0),
				},
			},
		},
	}
}
