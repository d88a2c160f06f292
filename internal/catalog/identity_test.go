package catalog

import (
	"strings"
	"testing"
)

func TestInstrumentIDIsDeterministic(t *testing.T) {
	a := newInstrumentID("NSE", "408065")
	b := newInstrumentID("NSE", "408065")
	if a != b {
		t.Errorf("same pair must yield same id: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, "ins_") {
		t.Errorf("unexpected id format: %s", a)
	}
	if len(a) != len("ins_")+32 {
		t.Errorf("id must be a 32-hex-char uuid, got %s", a)
	}
}

func TestInstrumentIDVariesByPair(t *testing.T) {
	base := newInstrumentID("NSE", "408065")
	if other := newInstrumentID("BSE", "408065"); other == base {
		t.Error("different exchange must yield different id")
	}
	if other := newInstrumentID("NSE", "408066"); other == base {
		t.Error("different token must yield different id")
	}
}

func TestInstrumentIDExchangeCaseInsensitive(t *testing.T) {
	if newInstrumentID("nse", "408065") != newInstrumentID("NSE", "408065") {
		t.Error("exchange casing must not change identity")
	}
}

func TestResolverReusesKnownIDs(t *testing.T) {
	r := &identityResolver{ids: map[string]string{"NSE:408065": "ins_existing"}}
	if got := r.Resolve("nse", "408065"); got != "ins_existing" {
		t.Errorf("preloaded id not reused, got %s", got)
	}

	fresh := r.Resolve("NSE", "500")
	if fresh == "" || fresh == "ins_existing" {
		t.Errorf("unexpected fresh id %q", fresh)
	}
	if again := r.Resolve("NSE", "500"); again != fresh {
		t.Errorf("resolver must remember derived ids: %s vs %s", again, fresh)
	}
}
