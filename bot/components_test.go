package bot

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/onnwee/chanop/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// regexp2 keeps a shared timeout clock alive once a rule with a match timeout has run.
		goleak.IgnoreAnyFunction("github.com/dlclark/regexp2.runClock"),
	)
}

func mustMask(t *testing.T, rule string) *config.Mask {
	t.Helper()
	m, err := config.CompileMask(rule)
	if err != nil {
		t.Fatalf("CompileMask(%q): %v", rule, err)
	}
	return m
}

func TestTrackerOnlySelfChangesMembership(t *testing.T) {
	tr := NewTracker()
	if tr.OnJoin("#a", "alice", "bob") {
		t.Fatal("foreign join reported as self")
	}
	if tr.Has("#a") {
		t.Fatal("foreign join changed membership")
	}
	if !tr.OnJoin("#a", "bob", "bob") || !tr.OnJoin("#b", "bob", "bob") {
		t.Fatal("self join not recorded")
	}
	tr.OnJoin("#a", "bob", "bob")
	if diff := cmp.Diff([]string{"#a", "#b"}, tr.List()); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}

	if tr.OnPart("#a", "alice", "bob") {
		t.Error("foreign part reported")
	}
	if tr.OnPart("#zzz", "bob", "bob") {
		t.Error("part of untracked channel should be a no-op")
	}
	if !tr.OnPart("#a", "bob", "bob") || tr.Has("#a") {
		t.Error("self part not applied")
	}
	tr.Reset()
	if tr.Len() != 0 {
		t.Errorf("Len() after Reset = %d", tr.Len())
	}
}

func TestQueueFIFOAndDedupe(t *testing.T) {
	q := NewQueue()
	if _, ok := q.DrainOne(); ok {
		t.Fatal("empty queue drained an item")
	}
	for _, n := range []string{"alice", "carol", "dave"} {
		if !q.Enqueue(WhoisItem("#a", n)) {
			t.Fatalf("Enqueue(%s) rejected", n)
		}
	}
	if q.Enqueue(WhoisItem("#a", "carol")) {
		t.Error("identical pending item enqueued twice")
	}
	if !q.Enqueue(WhoisItem("#b", "carol")) {
		t.Error("same nick for another channel must be accepted")
	}
	if q.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", q.Len())
	}

	var got []string
	for {
		it, ok := q.DrainOne()
		if !ok {
			break
		}
		got = append(got, it.String())
	}
	want := []string{"WHOIS alice (#a)", "WHOIS carol (#a)", "WHOIS dave (#a)", "WHOIS carol (#b)"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("drain order mismatch (-want +got):\n%s", diff)
	}
	if !q.Enqueue(WhoisItem("#a", "alice")) {
		t.Error("item drained earlier should be accepted again")
	}
}

func TestQueueSnapshotIsCopy(t *testing.T) {
	q := NewQueue()
	q.Enqueue(WhoisItem("#a", "alice"))
	s := q.Snapshot()
	s[0] = WhoisItem("#a", "mallory")
	if q.Len() != 1 {
		t.Fatalf("Len() = %d", q.Len())
	}
	if it, _ := q.DrainOne(); it.Arg(1) != "alice" {
		t.Errorf("snapshot write leaked into queue: %v", it)
	}
}

func TestQueueReset(t *testing.T) {
	q := NewQueue()
	q.Enqueue(WhoisItem("#a", "alice"))
	q.Enqueue(WhoisItem("#a", "carol"))
	q.Reset()
	if q.Len() != 0 {
		t.Fatalf("Len() = %d after Reset", q.Len())
	}
	if _, ok := q.DrainOne(); ok {
		t.Error("DrainOne returned an item after Reset")
	}
	if !q.Enqueue(WhoisItem("#a", "alice")) {
		t.Error("Reset should forget pending items")
	}
}

func TestStripPrefix(t *testing.T) {
	tests := map[string]string{
		"@alice": "alice",
		"+bob":   "bob",
		"@+carl": "carl",
		"~dave":  "dave",
		"%erin":  "erin",
		"&frank": "frank",
		"grace":  "grace",
		"@":      "",
	}
	for in, want := range tests {
		if got := StripPrefix(in); got != want {
			t.Errorf("StripPrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCorrelatorNamesAccumulation(t *testing.T) {
	c := NewCorrelator()
	c.OnNamesLine("#a", []string{"@alice", "bob"})
	c.OnNamesLine("#b", []string{"zed"})
	c.OnNamesLine("#a", []string{"carol", "+alice"})
	if c.PendingNames() != 2 {
		t.Fatalf("PendingNames() = %d, want 2", c.PendingNames())
	}

	got := c.OnNamesEnd("#a", "bob")
	want := []WorkItem{WhoisItem("#a", "alice"), WhoisItem("#a", "carol")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("OnNamesEnd mismatch (-want +got):\n%s", diff)
	}
	if c.PendingNames() != 1 {
		t.Errorf("#a accumulator not cleared")
	}
	if items := c.OnNamesEnd("#a", "bob"); len(items) != 0 {
		t.Errorf("second terminator produced %v", items)
	}
	if items := c.OnNamesEnd("#never", "bob"); len(items) != 0 {
		t.Errorf("terminator without lines produced %v", items)
	}
	if diff := cmp.Diff([]WorkItem{WhoisItem("#b", "zed")}, c.OnNamesEnd("#b", "bob")); diff != "" {
		t.Errorf("#b mismatch:\n%s", diff)
	}
}

func TestCorrelatorWhoisLifecycle(t *testing.T) {
	c := NewCorrelator()
	c.ExpectWhois("alice", "#a")
	c.ExpectWhois("alice", "#b")
	c.ExpectWhois("alice", "#a")
	c.ExpectWhois("carol", "#a")

	fact := UserFact{Nick: "alice", User: "al", Host: "h"}
	if diff := cmp.Diff([]string{"#a", "#b"}, c.OnWhoisUser(fact)); diff != "" {
		t.Errorf("OnWhoisUser channels mismatch:\n%s", diff)
	}
	if chans := c.OnWhoisUser(fact); chans != nil {
		t.Errorf("second reply resolved %v", chans)
	}
	c.ForgetWhois("carol")
	if c.PendingWhois() != 0 {
		t.Errorf("PendingWhois() = %d", c.PendingWhois())
	}
}

func TestReconcile(t *testing.T) {
	desired := map[string]config.ChannelPolicy{
		"#a": {Name: "#a"},
		"#b": {Name: "#b", Password: "x"},
	}
	got := Reconcile(desired, []string{"#a", "#c"})
	want := Plan{Join: []JoinAction{{Channel: "#b", Password: "x"}}, Leave: []string{"#c"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Reconcile mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	desired := map[string]config.ChannelPolicy{"#z": {}, "#a": {}, "#m": {Password: "k"}}
	current := []string{"#q", "#a", "#b"}

	plan := Reconcile(desired, current)
	if diff := cmp.Diff([]JoinAction{{Channel: "#m", Password: "k"}, {Channel: "#z"}}, plan.Join); diff != "" {
		t.Errorf("joins not sorted or wrong:\n%s", diff)
	}
	if diff := cmp.Diff([]string{"#b", "#q"}, plan.Leave); diff != "" {
		t.Errorf("leaves not sorted or wrong:\n%s", diff)
	}

	applied := []string{"#a"}
	for _, j := range plan.Join {
		applied = append(applied, j.Channel)
	}
	if again := Reconcile(desired, applied); !again.Empty() {
		t.Errorf("second pass not empty: %+v", again)
	}
	if !Reconcile(nil, nil).Empty() {
		t.Error("empty inputs should give empty plan")
	}
}

func TestAutoOpEvaluate(t *testing.T) {
	cfg := &config.Config{Channels: map[string]config.ChannelPolicy{
		"#go":    {Name: "#go", Oper: mustMask(t, "*!*@trusted.example")},
		"#plain": {Name: "#plain"},
	}}
	a := AutoOp{Policies: cfg}

	trusted := UserFact{Nick: "alice", User: "al", Host: "trusted.example"}
	mode, ok := a.Evaluate("#go", trusted)
	if !ok || mode != "+o alice" {
		t.Errorf("Evaluate(#go, trusted) = %q,%v", mode, ok)
	}
	if _, ok := a.Evaluate("#go", UserFact{Nick: "eve", User: "e", Host: "evil.example"}); ok {
		t.Error("non-matching origin granted")
	}
	if _, ok := a.Evaluate("#plain", trusted); ok {
		t.Error("channel without rule granted")
	}
	if _, ok := a.Evaluate("#unknown", trusted); ok {
		t.Error("unconfigured channel granted")
	}
	if _, ok := (AutoOp{}).Evaluate("#go", trusted); ok {
		t.Error("nil policies granted")
	}
}

func TestFactFromOrigin(t *testing.T) {
	f := FactFromOrigin(":alice!~al@host.example")
	if f.Nick != "alice" || f.User != "~al" || f.Host != "host.example" {
		t.Errorf("FactFromOrigin = %+v", f)
	}
	if f.Origin() != "alice!~al@host.example" {
		t.Errorf("Origin() = %q", f.Origin())
	}
}

func TestConnStateString(t *testing.T) {
	for s, want := range map[ConnState]string{Disconnected: "disconnected", Connecting: "connecting", Connected: "connected", ConnState(9): "unknown"} {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}
