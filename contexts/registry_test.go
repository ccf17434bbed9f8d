package contexts

import (
	"errors"
	"reflect"
	"testing"
)

type gameState struct {
	QuestionsAnswered int     `json:"questions_answered"`
	LastAnswer        *string `json:"last_answer,omitempty"`
}

func TestRegistry_RegisterAndLookups(t *testing.T) {
	reg := NewRegistry()
	factory := func() any { return map[string]any{"n": 0} }
	reg.Register("foo", KeepAround(true), WithDefaultFactory(factory))

	if !reg.Has("foo") {
		t.Fatalf("registered name should be present")
	}
	keep, err := reg.ShouldKeepAround("foo")
	if err != nil || !keep {
		t.Fatalf("ShouldKeepAround = %v, %v", keep, err)
	}
	f, err := reg.DefaultFactory("foo")
	if err != nil || f == nil {
		t.Fatalf("DefaultFactory = %v, %v", f, err)
	}
	// Absent serializer is a valid nil, not an error.
	ser, err := reg.Serializer("foo")
	if err != nil || ser != nil {
		t.Fatalf("Serializer = %v, %v", ser, err)
	}
}

func TestRegistry_LookupsErrNotRegistered(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.ShouldKeepAround("nope"); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("ShouldKeepAround error = %v", err)
	}
	if _, err := reg.DefaultFactory("nope"); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("DefaultFactory error = %v", err)
	}
	if _, err := reg.Serializer("nope"); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("Serializer error = %v", err)
	}
	if _, err := reg.Deserializer("nope"); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("Deserializer error = %v", err)
	}
}

func TestRegistry_RepeatedRegisterIsPartialUpdate(t *testing.T) {
	reg := NewRegistry()
	factory := func() any { return &gameState{} }
	reg.Register("foo", KeepAround(true), WithDefaultFactory(factory))
	// Second registration names only the serializer; keep-around and the
	// factory must survive.
	reg.Register("foo", WithSerializer(func(any) (map[string]any, error) {
		return map[string]any{}, nil
	}))

	keep, err := reg.ShouldKeepAround("foo")
	if err != nil || !keep {
		t.Fatalf("keep-around lost on partial update: %v, %v", keep, err)
	}
	f, err := reg.DefaultFactory("foo")
	if err != nil || f == nil {
		t.Fatalf("factory lost on partial update: %v, %v", f, err)
	}
	ser, err := reg.Serializer("foo")
	if err != nil || ser == nil {
		t.Fatalf("serializer not applied: %v, %v", ser, err)
	}
}

func TestRegistry_UnregisterIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	reg.Register("foo")
	reg.Unregister("foo")
	if reg.Has("foo") {
		t.Fatalf("unregistered name still present")
	}
	// Removing an absent name is a no-op.
	reg.Unregister("foo")
}

func TestRegistry_HaveDefaultFactories(t *testing.T) {
	reg := NewRegistry()
	reg.Register("with", WithDefaultFactory(func() any { return nil }))
	reg.Register("without")
	got := reg.HaveDefaultFactories()
	if !reflect.DeepEqual(got, []string{"with"}) {
		t.Fatalf("HaveDefaultFactories = %v", got)
	}
	if !reflect.DeepEqual(reg.Names(), []string{"with", "without"}) {
		t.Fatalf("Names = %v", reg.Names())
	}
}

func TestRegisterType_DerivesCodecAspects(t *testing.T) {
	reg := NewRegistry()
	if err := RegisterType[gameState](reg, "game_state", KeepAround(true)); err != nil {
		t.Fatalf("RegisterType failed: %v", err)
	}

	f, err := reg.DefaultFactory("game_state")
	if err != nil || f == nil {
		t.Fatalf("derived factory missing: %v", err)
	}
	if _, ok := f().(*gameState); !ok {
		t.Fatalf("factory should produce *gameState, got %T", f())
	}

	ser, err := reg.Serializer("game_state")
	if err != nil || ser == nil {
		t.Fatalf("derived serializer missing: %v", err)
	}
	wire, err := ser(&gameState{QuestionsAnswered: 2})
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	if wire["questions_answered"] != float64(2) {
		t.Fatalf("unexpected wire params: %v", wire)
	}
	if _, ok := wire["last_answer"]; ok {
		t.Fatalf("null field should be pruned: %v", wire)
	}

	deser, err := reg.Deserializer("game_state")
	if err != nil || deser == nil {
		t.Fatalf("derived deserializer missing: %v", err)
	}
	back, err := deser(map[string]any{"questions_answered": float64(3), "extra": "ignored"})
	if err != nil {
		t.Fatalf("deserialize failed: %v", err)
	}
	gs, ok := back.(*gameState)
	if !ok || gs.QuestionsAnswered != 3 {
		t.Fatalf("unexpected deserialized value: %#v", back)
	}

	schemas := reg.Schemas()
	if schemas["game_state"] == nil {
		t.Fatalf("schema not exposed for typed registration")
	}
}

func TestRegisterType_ExplicitOptionsOverrideDerived(t *testing.T) {
	reg := NewRegistry()
	sentinel := &gameState{QuestionsAnswered: 41}
	err := RegisterType[gameState](reg, "game_state",
		WithDefaultFactory(func() any { return sentinel }))
	if err != nil {
		t.Fatalf("RegisterType failed: %v", err)
	}
	f, _ := reg.DefaultFactory("game_state")
	if f() != sentinel {
		t.Fatalf("explicit factory should win over the derived one")
	}
}

func TestRegisterType_UnserializableNeedsExplicitPair(t *testing.T) {
	reg := NewRegistry()
	err := RegisterType[int](reg, "counter")
	if !errors.Is(err, ErrNotSerializable) {
		t.Fatalf("expected ErrNotSerializable, got %v", err)
	}
	if reg.Has("counter") {
		t.Fatalf("failed registration must not leave an entry behind")
	}

	err = RegisterType[int](reg, "counter",
		WithSerializer(func(v any) (map[string]any, error) {
			return map[string]any{"n": v}, nil
		}),
		WithDeserializer(func(m map[string]any) (any, error) {
			return m["n"], nil
		}),
	)
	if err != nil {
		t.Fatalf("explicit pair should make the type registrable: %v", err)
	}
	if !reg.Has("counter") {
		t.Fatalf("entry missing after explicit registration")
	}
}

func TestRegisterType_SameTypeReusesCodec(t *testing.T) {
	reg := NewRegistry()
	if err := RegisterType[gameState](reg, "a"); err != nil {
		t.Fatalf("RegisterType failed: %v", err)
	}
	if err := RegisterType[gameState](reg, "b"); err != nil {
		t.Fatalf("RegisterType failed: %v", err)
	}
	sa := reg.Schemas()["a"]
	sb := reg.Schemas()["b"]
	if sa == nil || sa != sb {
		t.Fatalf("same Go type should resolve to one cached codec")
	}
}
