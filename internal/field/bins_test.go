package field

import (
	"math"
	"testing"
)

// ramp builds a single-member, single-cell field whose value at each
// lead equals the lead value itself.
func ramp(leads []int) *Field {
	f := New(1, leads, 1)
	for i, lead := range leads {
		f.Set(0, i, 0, float64(lead))
	}
	return f
}

func seq(from, to int) []int {
	var out []int
	for v := from; v <= to; v++ {
		out = append(out, v)
	}
	return out
}

func TestLeadBinSpecValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    LeadBinSpec
		wantErr bool
	}{
		{"seasonal", LeadBinSpec{0, 3, 6, 9, 12}, false},
		{"two edges", LeadBinSpec{0, 12}, false},
		{"single edge", LeadBinSpec{0}, true},
		{"not increasing", LeadBinSpec{0, 3, 3, 9}, true},
		{"decreasing", LeadBinSpec{0, 6, 3}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWindowOf(t *testing.T) {
	spec := LeadBinSpec{0, 3, 6, 9, 12}
	tests := []struct {
		lead   int
		window int
		ok     bool
	}{
		{0, 0, false}, // equal to the first edge: outside every interval
		{1, 0, true},
		{3, 0, true}, // right-closed
		{4, 1, true},
		{12, 3, true},
		{13, 0, false},
		{-1, 0, false},
	}
	for _, tt := range tests {
		w, ok := spec.WindowOf(tt.lead)
		if ok != tt.ok || (ok && w != tt.window) {
			t.Errorf("WindowOf(%d) = (%d, %v), want (%d, %v)", tt.lead, w, ok, tt.window, tt.ok)
		}
	}
}

func TestBinLeadsSeasonal(t *testing.T) {
	f := ramp(seq(1, 12))
	binned, err := f.BinLeads(LeadBinSpec{0, 3, 6, 9, 12})
	if err != nil {
		t.Fatalf("BinLeads: %v", err)
	}

	if len(binned.Leads) != 4 {
		t.Fatalf("windows = %d, want 4", len(binned.Leads))
	}
	for i, want := range []int{0, 1, 2, 3} {
		if binned.Leads[i] != want {
			t.Errorf("Leads[%d] = %d, want %d", i, binned.Leads[i], want)
		}
	}

	// Each window is the mean of 3 consecutive leads: (1,2,3], (3,6]...
	want := []float64{2, 5, 8, 11}
	for w := range want {
		if got := binned.At(0, w, 0); got != want[w] {
			t.Errorf("window %d = %v, want %v", w, got, want[w])
		}
	}
}

func TestBinLeadsDropsLeadOnFirstEdge(t *testing.T) {
	// Lead value 0 equals the first edge and belongs to no half-open
	// interval, so it must not leak into window 0.
	f := ramp(seq(0, 11))
	binned, err := f.BinLeads(LeadBinSpec{0, 3, 6, 9, 12})
	if err != nil {
		t.Fatalf("BinLeads: %v", err)
	}

	if got := binned.At(0, 0, 0); got != 2 {
		t.Errorf("window 0 = %v, want 2 (mean of leads 1,2,3)", got)
	}
	// The last window only sees leads 10 and 11.
	if got := binned.At(0, 3, 0); got != 10.5 {
		t.Errorf("window 3 = %v, want 10.5 (mean of leads 10,11)", got)
	}
}

func TestBinLeadsEmptyWindowIsNaN(t *testing.T) {
	f := ramp([]int{1, 2, 3})
	binned, err := f.BinLeads(LeadBinSpec{0, 3, 6})
	if err != nil {
		t.Fatalf("BinLeads: %v", err)
	}
	if got := binned.At(0, 0, 0); got != 2 {
		t.Errorf("window 0 = %v, want 2", got)
	}
	if got := binned.At(0, 1, 0); !math.IsNaN(got) {
		t.Errorf("window 1 = %v, want NaN (no leads in (3,6])", got)
	}
}

func TestBinLeadsPassThrough(t *testing.T) {
	f := ramp(seq(1, 6))
	binned, err := f.BinLeads(nil)
	if err != nil {
		t.Fatalf("BinLeads: %v", err)
	}
	if len(binned.Leads) != 6 {
		t.Fatalf("windows = %d, want 6", len(binned.Leads))
	}
	for i := range binned.Leads {
		if binned.Leads[i] != i {
			t.Errorf("Leads[%d] = %d, want %d (relabel only)", i, binned.Leads[i], i)
		}
		if binned.At(0, i, 0) != f.At(0, i, 0) {
			t.Errorf("value at %d changed in pass-through", i)
		}
	}
}

func TestBinLeadsIdempotent(t *testing.T) {
	// Binning an already-window-labeled axis with edges matching the
	// existing window boundaries is a no-op: every window captures
	// exactly one label, so the mean is the value itself.
	f := ramp(seq(1, 12))
	once, err := f.BinLeads(LeadBinSpec{0, 3, 6, 9, 12})
	if err != nil {
		t.Fatalf("first BinLeads: %v", err)
	}
	twice, err := once.BinLeads(LeadBinSpec{-1, 0, 1, 2, 3})
	if err != nil {
		t.Fatalf("second BinLeads: %v", err)
	}

	if len(twice.Leads) != len(once.Leads) {
		t.Fatalf("windows = %d, want %d", len(twice.Leads), len(once.Leads))
	}
	for w := range once.Leads {
		if twice.At(0, w, 0) != once.At(0, w, 0) {
			t.Errorf("window %d = %v after rebinning, want %v", w, twice.At(0, w, 0), once.At(0, w, 0))
		}
	}
}

func TestBinSeriesMatchesBinLeads(t *testing.T) {
	leads := seq(1, 12)
	data := make([]float64, len(leads))
	for i, lead := range leads {
		data[i] = float64(lead) * 0.5
	}
	labels, out, err := BinSeries(leads, 1, data, LeadBinSpec{0, 3, 6, 9, 12})
	if err != nil {
		t.Fatalf("BinSeries: %v", err)
	}
	if len(labels) != 4 {
		t.Fatalf("windows = %d, want 4", len(labels))
	}
	want := []float64{1, 2.5, 4, 5.5}
	for w := range want {
		if out[w] != want[w] {
			t.Errorf("window %d = %v, want %v", w, out[w], want[w])
		}
	}
}

func TestBinSeriesShapeError(t *testing.T) {
	if _, _, err := BinSeries([]int{1, 2}, 3, []float64{1, 2, 3}, nil); err == nil {
		t.Fatal("BinSeries accepted mismatched shape")
	}
}

func TestFieldValidate(t *testing.T) {
	f := New(2, []int{1, 2}, 3)
	if err := f.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	f.Data = f.Data[:5]
	if err := f.Validate(); err == nil {
		t.Fatal("Validate accepted truncated data")
	}
}
