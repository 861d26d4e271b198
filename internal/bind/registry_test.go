package bind

import (
	"reflect"
	"testing"
)

type agreeRec struct {
	A int32
	B string
}

func (r agreeRec) SerialFields() []any { return []any{r.A, r.B} }
func (r *agreeRec) SerialFieldsMut() []any { return []any{&r.A, &r.B} }

type skewRec struct {
	A int32
	B string
}

func (r skewRec) SerialFields() []any     { return []any{r.A, r.B} }
func (r *skewRec) SerialFieldsMut() []any { return []any{&r.A} }

type bothHooks struct {
	N int32
}

func (h *bothHooks) AfterRead() error { return nil }
func (h *bothHooks) AfterReadSimple() {}

func TestRegisterAgreement(t *testing.T) {
	info, err := Register(agreeRec{})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if info.Type != "t2is" {
		t.Fatalf("Type = %q", info.Type)
	}
	cached, ok := Registered(reflect.TypeOf(agreeRec{}))
	if !ok || cached != info {
		t.Fatal("registered info not cached")
	}
	again, err := Register(&agreeRec{})
	if err != nil || again != info {
		t.Fatal("re-registration must return the cached info")
	}
}

func TestRegisterDisagreement(t *testing.T) {
	_, err := Register(skewRec{})
	if err == nil {
		t.Fatal("accessor skew must fail registration")
	}
	if err.Src != "t2is" || err.Dst != "i" {
		t.Fatalf("shapes = %q vs %q", err.Src, err.Dst)
	}
}

func TestRegisterHookExclusivity(t *testing.T) {
	if _, err := Register(bothHooks{}); err == nil {
		t.Fatal("conflicting after-read hooks must fail registration")
	}
}

func TestRegisterRejectsNonRecords(t *testing.T) {
	if _, err := Register(int32(1)); err == nil {
		t.Fatal("non-struct")
	}
	if _, err := Register((*agreeRec)(nil)); err == nil {
		t.Fatal("nil pointer")
	}
}
