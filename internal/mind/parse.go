package mind

// ParseMet normalizes a raw met-stream payload into a Snapshot. Headset
// firmwares deliver three shapes:
//
//   - a scalar map, with short ("eng", "str", "rel", "int", "exc",
//     "attention") or long field names
//   - the paired array [isActive, eng, isActive, exc, lex, isActive, str,
//     isActive, rel, isActive, int, isActive, attention]
//   - a flat array [eng, interest, relaxation, stress, attention, ...]
//
// The payload may wrap the values as {"met": ..., "time": ...}. Unrecognized
// shapes produce an empty snapshot with Raw preserved.
func ParseMet(raw any) Snapshot {
	snap := Snapshot{Raw: raw}

	met := raw
	if m, ok := raw.(map[string]any); ok {
		if inner, found := m["met"]; found {
			met = inner
		}
	}
	if met == nil {
		return snap
	}

	switch v := met.(type) {
	case map[string]any:
		parseMetMap(v, &snap)
	case []any:
		if len(v) >= 13 {
			parseMetPairs(v, &snap)
		} else {
			parseMetFlat(v, &snap)
		}
	}
	return snap
}

// Short-key aliases used by the raw stream
var metAliases = map[string]string{
	"eng":       "engagement",
	"str":       "stress",
	"rel":       "relaxation",
	"attention": "focus",
	"int":       "interest",
	"exc":       "excitement",
}

func parseMetMap(m map[string]any, snap *Snapshot) {
	for k := range m {
		name, ok := metAliases[k]
		if !ok {
			switch k {
			case "engagement", "stress", "relaxation", "focus", "excitement", "interest":
				name = k
			default:
				continue
			}
		}
		if f := numField(m, k); f != nil {
			setSnapshotField(snap, name, *f)
		}
	}
}

// parseMetPairs reads the (isActive, value) pair layout. Value indices:
// 1=eng, 3=exc, 6=str, 8=rel, 10=int, 12=attention (index 4 is lex, skipped).
func parseMetPairs(arr []any, snap *Snapshot) {
	at := func(i int) *float64 {
		if i >= len(arr) {
			return nil
		}
		if f, ok := arr[i].(float64); ok {
			return &f
		}
		return nil
	}
	snap.Engagement = at(1)
	snap.Excitement = at(3)
	snap.Stress = at(6)
	snap.Relaxation = at(8)
	snap.Interest = at(10)
	snap.Focus = at(12)
}

// parseMetFlat reads the positional layout [eng, interest, relaxation,
// stress, attention, ...], skipping the boolean isActive flags some firmwares
// interleave.
func parseMetFlat(arr []any, snap *Snapshot) {
	var numeric []float64
	for _, v := range arr {
		if f, ok := v.(float64); ok {
			numeric = append(numeric, f)
		}
	}
	fields := []string{"engagement", "interest", "relaxation", "stress", "focus", "focus"}
	for i, name := range fields {
		if i >= len(numeric) {
			break
		}
		f := numeric[i]
		setSnapshotField(snap, name, f)
	}
}

func setSnapshotField(snap *Snapshot, name string, f float64) {
	v := f
	switch name {
	case "engagement":
		snap.Engagement = &v
	case "stress":
		snap.Stress = &v
	case "relaxation":
		snap.Relaxation = &v
	case "focus":
		snap.Focus = &v
	case "excitement":
		snap.Excitement = &v
	case "interest":
		snap.Interest = &v
	}
}
