package flux

import "testing"

func TestNewRecordRevolutions(t *testing.T) {
	r := NewRecord([]float64{100, 200, 300}, []float64{1000, 1000}, 40_000_000)
	if r.Revolutions() != 2 {
		t.Fatalf("Revolutions() = %d, want 2", r.Revolutions())
	}
	if r.SampleFreqHz != 40_000_000 {
		t.Fatalf("SampleFreqHz = %v, want 40000000", r.SampleFreqHz)
	}
}

type constSource struct{ rec Record }

func (c constSource) Flux() Record { return c.rec }

func TestSourceInterface(t *testing.T) {
	rec := NewRecord([]float64{1}, []float64{1}, 1)
	var src Source = constSource{rec}
	got := src.Flux()
	if len(got.Transitions) != 1 {
		t.Fatalf("Flux().Transitions = %v, want length 1", got.Transitions)
	}
}

func TestWriteoutEmbedsRecord(t *testing.T) {
	rec := NewRecord([]float64{5}, []float64{5}, 1)
	w := Writeout{Record: rec, TerminateAtIndex: true}
	if w.Revolutions() != 1 {
		t.Fatalf("Writeout.Revolutions() = %d, want 1", w.Revolutions())
	}
	if !w.TerminateAtIndex {
		t.Fatal("TerminateAtIndex = false, want true")
	}
}
