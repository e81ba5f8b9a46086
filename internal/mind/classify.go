package mind

// classifySample maps one decoded sample to a state.
//
// MN8 headsets report attention + cognitiveStress; the performance-metric
// schema (EPOC/Insight/Flex) reports eng/attention/str/rel. MN8 is preferred
// when both of its fields are present. In both schemas the stuck check runs
// before the distracted check: stuck is the more specific, actionable state.
func classifySample(s Sample) State {
	switch s.Schema {
	case SchemaMN8:
		att := *s.Attention
		stress := *s.CognitiveStress
		switch {
		case att > 0.5 && stress < 0.5:
			return StateFocused
		case att > 0.4 && stress > 0.5:
			return StateStuck
		case att < 0.4:
			return StateDistracted
		default:
			return StateUnknown
		}

	case SchemaPerf:
		// Attention proxy: attention when reported, engagement otherwise
		att := s.Attention
		if att == nil {
			att = s.Eng
		}
		if att == nil {
			return StateUnknown
		}

		// Focused: high attention, low (or unreported) stress, not collapsed relaxation
		if *att > 0.5 &&
			(s.Stress == nil || *s.Stress < 0.5) &&
			(s.Relaxation == nil || *s.Relaxation >= 0.3) {
			return StateFocused
		}
		// Stuck: high stress with moderate attention (trying but frustrated)
		if s.Stress != nil && *s.Stress > 0.5 && *att > 0.3 {
			return StateStuck
		}
		// Distracted: low attention/engagement
		if *att < 0.35 {
			return StateDistracted
		}
		return StateUnknown

	default:
		return StateUnknown
	}
}

// LabelFromSnapshot is the coarse derivation for layers that only hold a
// single normalized snapshot instead of the sample buffer. It uses wider
// thresholds than the buffer classifier but the same check order (stuck
// before distracted) and the same canonical labels.
func LabelFromSnapshot(s *Snapshot) State {
	if s == nil {
		return StateUnknown
	}
	if s.Engagement != nil && s.Stress != nil && *s.Engagement < 0.4 && *s.Stress > 0.5 {
		return StateStuck
	}
	if s.Focus != nil && *s.Focus < 0.35 {
		return StateDistracted
	}
	return StateFocused
}
