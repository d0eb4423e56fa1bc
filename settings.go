package mapshine

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"time"
)

// --- settings constants ---

const (
	effectSettingsKey     = "effectSettings"
	effectSettingsVersion = 2

	settingsSaveDebounce    = 1500 * time.Millisecond
	settingsCommitThreshold = 1
)

// ParamKind tells the client UI which control to render for a parameter.
type ParamKind string

const (
	ParamNumber ParamKind = "number"
	ParamToggle ParamKind = "toggle"
	ParamChoice ParamKind = "choice"
	ParamColor  ParamKind = "color"
)

// ParamSpec describes one tunable effect parameter: the control kind, its
// numeric range and step for sliders, the default, and the choice list for
// enumerated parameters. Color values travel as "#rrggbb" strings.
type ParamSpec struct {
	Name    string
	Label   string
	Kind    ParamKind
	Min     float64
	Max     float64
	Step    float64
	Default any
	Choices []string
}

// validate rejects specs a UI could not render.
func (p ParamSpec) validate() error {
	if p.Name == "" {
		return errors.New("empty param name")
	}
	switch p.Kind {
	case ParamNumber:
		if p.Min > p.Max {
			return fmt.Errorf("param %s: min %v above max %v", p.Name, p.Min, p.Max)
		}
	case ParamChoice:
		if len(p.Choices) == 0 {
			return fmt.Errorf("param %s: choice kind with no choices", p.Name)
		}
	case ParamToggle, ParamColor:
	default:
		return fmt.Errorf("param %s: unknown kind %q", p.Name, p.Kind)
	}
	if _, ok := p.normalize(p.Default); !ok {
		return fmt.Errorf("param %s: default %v fails its own constraints", p.Name, p.Default)
	}
	return nil
}

// normalize coerces a candidate value to the param's constraints: numbers
// are clamped to the range and snapped to the step, choices must name a
// listed option, colors must be "#rrggbb". Returns false for values of the
// wrong shape.
func (p ParamSpec) normalize(v any) (any, bool) {
	switch p.Kind {
	case ParamNumber:
		var f float64
		switch n := v.(type) {
		case float64:
			f = n
		case int:
			f = float64(n)
		default:
			return nil, false
		}
		if p.Min < p.Max {
			f = math.Max(p.Min, math.Min(f, p.Max))
		}
		if p.Step > 0 {
			f = p.Min + math.Round((f-p.Min)/p.Step)*p.Step
			if p.Min < p.Max {
				f = math.Max(p.Min, math.Min(f, p.Max))
			}
		}
		return f, true
	case ParamToggle:
		b, ok := v.(bool)
		return b, ok
	case ParamChoice:
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		for _, c := range p.Choices {
			if c == s {
				return s, true
			}
		}
		return nil, false
	case ParamColor:
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		if _, ok := ParseHexColor(s); !ok {
			return nil, false
		}
		return s, true
	}
	return nil, false
}

// ParseHexColor reads a "#rrggbb" string into a Color with full alpha.
func ParseHexColor(s string) (Color, bool) {
	if len(s) != 7 || s[0] != '#' {
		return Color{}, false
	}
	var c [3]float64
	for i := 0; i < 3; i++ {
		hi, ok1 := hexNibble(s[1+2*i])
		lo, ok2 := hexNibble(s[2+2*i])
		if !ok1 || !ok2 {
			return Color{}, false
		}
		c[i] = float64(hi<<4|lo) / 255
	}
	return Color{R: c[0], G: c[1], B: c[2], A: 1}, true
}

// FormatHexColor writes a Color as "#rrggbb", dropping alpha.
func FormatHexColor(c Color) string {
	return fmt.Sprintf("#%02x%02x%02x",
		int(math.Round(clamp01(c.R)*255)),
		int(math.Round(clamp01(c.G)*255)),
		int(math.Round(clamp01(c.B)*255)))
}

func hexNibble(b byte) (int, bool) {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0'), true
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10, true
	case b >= 'A' && b <= 'F':
		return int(b-'A') + 10, true
	}
	return 0, false
}

// EffectSettings keeps per-effect parameter overrides over registered
// schemas, persists them debounced through the host settings store, and
// round-trips whole profiles as JSON. Stored values that no longer fit
// their schema fall back to the default at read time instead of being
// destroyed, so a schema change does not eat user tuning.
type EffectSettings struct {
	host Host

	schemas map[string][]ParamSpec
	order   []string

	values map[string]map[string]any

	save          *SavePipeline
	clock         func() time.Time
	loaded        bool
	reloadPending bool
	saveWarned    bool

	offs []func()
}

// NewEffectSettings builds the store and subscribes to scene rebinds.
func NewEffectSettings(host Host) *EffectSettings {
	s := &EffectSettings{
		host:    host,
		schemas: map[string][]ParamSpec{},
		values:  map[string]map[string]any{},
		clock:   time.Now,
	}
	s.save = NewSavePipeline(settingsSaveDebounce, settingsCommitThreshold, s.persist)
	s.save.SetOnError(s.reportSaveError)
	ev := host.Events()
	s.offs = append(s.offs,
		ev.On(HookCanvasReady, func(any) { s.reloadPending = true }),
		ev.On(HookUpdateScene, func(any) { s.reloadPending = true }),
	)
	return s
}

// RegisterSchema declares the parameter list for an effect, replacing any
// earlier schema under the same id. Invalid specs refuse the whole schema.
func (s *EffectSettings) RegisterSchema(effectID string, specs []ParamSpec) bool {
	if effectID == "" {
		_, _ = fmt.Fprintf(os.Stderr, "[mapshine] settings: empty effect id\n")
		return false
	}
	seen := map[string]bool{}
	for _, p := range specs {
		if err := p.validate(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "[mapshine] settings: schema %s rejected: %v\n", effectID, err)
			return false
		}
		if seen[p.Name] {
			_, _ = fmt.Fprintf(os.Stderr, "[mapshine] settings: schema %s rejected: duplicate param %s\n", effectID, p.Name)
			return false
		}
		seen[p.Name] = true
	}
	if _, exists := s.schemas[effectID]; !exists {
		s.order = append(s.order, effectID)
	}
	s.schemas[effectID] = append([]ParamSpec(nil), specs...)
	return true
}

// Schema returns the registered parameter list for an effect.
func (s *EffectSettings) Schema(effectID string) ([]ParamSpec, bool) {
	specs, ok := s.schemas[effectID]
	if !ok {
		return nil, false
	}
	return append([]ParamSpec(nil), specs...), true
}

// EffectIDs returns the schema ids in registration order.
func (s *EffectSettings) EffectIDs() []string {
	return append([]string(nil), s.order...)
}

// Value resolves one parameter: the stored override when it still fits the
// schema, the declared default otherwise.
func (s *EffectSettings) Value(effectID, name string) (any, bool) {
	spec, ok := s.spec(effectID, name)
	if !ok {
		return nil, false
	}
	if stored, ok := s.values[effectID][name]; ok {
		if v, ok := spec.normalize(stored); ok {
			return v, true
		}
	}
	v, _ := spec.normalize(spec.Default)
	return v, true
}

// Values resolves every parameter of an effect into a fresh map.
func (s *EffectSettings) Values(effectID string) map[string]any {
	specs, ok := s.schemas[effectID]
	if !ok {
		return nil
	}
	out := make(map[string]any, len(specs))
	for _, p := range specs {
		v, _ := s.Value(effectID, p.Name)
		out[p.Name] = v
	}
	return out
}

// SetValue stores one override after normalizing it against the schema.
// Unknown effects or parameters and unfit values refuse with a log line.
func (s *EffectSettings) SetValue(effectID, name string, v any) bool {
	spec, ok := s.spec(effectID, name)
	if !ok {
		_, _ = fmt.Fprintf(os.Stderr, "[mapshine] settings: unknown param %s.%s\n", effectID, name)
		return false
	}
	nv, ok := spec.normalize(v)
	if !ok {
		_, _ = fmt.Fprintf(os.Stderr, "[mapshine] settings: value %v does not fit %s.%s\n", v, effectID, name)
		return false
	}
	if s.values[effectID] == nil {
		s.values[effectID] = map[string]any{}
	}
	s.values[effectID][name] = nv
	s.save.MarkDirty(s.clock())
	return true
}

// ResetEffect drops every override for an effect, falling back to defaults.
func (s *EffectSettings) ResetEffect(effectID string) {
	if _, ok := s.values[effectID]; !ok {
		return
	}
	delete(s.values, effectID)
	s.save.MarkDirty(s.clock())
}

// Poll drives pending reloads and the debounced save. Call once per frame.
func (s *EffectSettings) Poll() {
	if s.reloadPending || !s.loaded {
		s.reloadPending = false
		s.reload()
	}
	s.save.Poll(s.clock())
}

// Flush forces a pending save through immediately.
func (s *EffectSettings) Flush() {
	s.save.Flush(s.clock())
}

// Dispose flushes pending writes and detaches from the host.
func (s *EffectSettings) Dispose() {
	s.save.Flush(s.clock())
	for _, off := range s.offs {
		off()
	}
	s.offs = nil
}

func (s *EffectSettings) spec(effectID, name string) (ParamSpec, bool) {
	for _, p := range s.schemas[effectID] {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// --- profiles ---

// ExportProfile serializes the current overrides as a versioned JSON
// profile, portable across scenes.
func (s *EffectSettings) ExportProfile() (string, error) {
	data, err := json.Marshal(s.fileDoc())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ImportProfile replaces the overrides with a previously exported profile.
// Entries that do not fit a registered schema are skipped with a log line;
// the rest apply and persist.
func (s *EffectSettings) ImportProfile(data string) bool {
	effects, ok := s.decode([]byte(data), "profile")
	if !ok {
		return false
	}
	s.values = map[string]map[string]any{}
	s.applyStored(effects, true)
	s.save.MarkDirty(s.clock())
	return true
}

// --- persistence ---

type effectSettingsFileDoc struct {
	Version int                       `json:"version"`
	Effects map[string]map[string]any `json:"effects"`
}

func (s *EffectSettings) fileDoc() effectSettingsFileDoc {
	return effectSettingsFileDoc{Version: effectSettingsVersion, Effects: s.values}
}

func (s *EffectSettings) persist() error {
	data, err := json.Marshal(s.fileDoc())
	if err != nil {
		return err
	}
	return s.host.Settings().Set(effectSettingsKey, string(data))
}

// reload pulls the persisted overrides for the bound scene, replacing any
// local edits. Values for schemas not yet registered are kept verbatim;
// they resolve once the schema arrives.
func (s *EffectSettings) reload() {
	s.loaded = true
	s.save.Reset()
	s.values = map[string]map[string]any{}
	raw, ok := s.host.Settings().Get(effectSettingsKey)
	if !ok {
		return
	}
	text, ok := raw.(string)
	if !ok || text == "" {
		return
	}
	effects, ok := s.decode([]byte(text), "stored settings")
	if !ok {
		return
	}
	s.applyStored(effects, false)
}

// decode reads a versioned settings payload. A payload older than the
// current version that still carries the bare effects map is migrated in
// place with a log line.
func (s *EffectSettings) decode(data []byte, what string) (map[string]map[string]any, bool) {
	var file effectSettingsFileDoc
	if err := json.Unmarshal(data, &file); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "[mapshine] settings: %s unreadable: %v\n", what, err)
		return nil, false
	}
	if file.Version < effectSettingsVersion && len(file.Effects) == 0 {
		var flat map[string]map[string]any
		if err := json.Unmarshal(data, &flat); err == nil && len(flat) > 0 {
			_, _ = fmt.Fprintf(os.Stderr, "[mapshine] settings: migrating v%d %s to v%d\n",
				max(file.Version, 1), what, effectSettingsVersion)
			return flat, true
		}
	}
	if file.Effects == nil {
		file.Effects = map[string]map[string]any{}
	}
	return file.Effects, true
}

// applyStored copies decoded values in. strict drops entries without a
// matching schema (profile import); loose keeps them for later schemas.
func (s *EffectSettings) applyStored(effects map[string]map[string]any, strict bool) {
	for effectID, params := range effects {
		for name, v := range params {
			spec, known := s.spec(effectID, name)
			if known {
				nv, fits := spec.normalize(v)
				if !fits {
					_, _ = fmt.Fprintf(os.Stderr, "[mapshine] settings: dropping %s.%s: value %v does not fit\n", effectID, name, v)
					continue
				}
				v = nv
			} else if strict {
				_, _ = fmt.Fprintf(os.Stderr, "[mapshine] settings: skipping unknown param %s.%s\n", effectID, name)
				continue
			}
			if s.values[effectID] == nil {
				s.values[effectID] = map[string]any{}
			}
			s.values[effectID][name] = v
		}
	}
}

func (s *EffectSettings) reportSaveError(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "[mapshine] settings: save failed: %v\n", err)
	if s.saveWarned {
		return
	}
	s.saveWarned = true
	if errors.Is(err, ErrPermission) {
		s.host.Notifier().Warn("Effect settings: you lack permission to save tuning.")
	} else {
		s.host.Notifier().Warn("Effect settings could not be saved; will retry.")
	}
}
