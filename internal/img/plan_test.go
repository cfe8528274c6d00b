package img

import "testing"

func TestPlanSmartResize(t *testing.T) {
	tuning := DefaultTuning()

	tests := []struct {
		name    string
		src     Dimensions
		enabled bool
		want    Dimensions
		wantOK  bool
	}{
		{"landscape 2:1", Dimensions{1600, 800}, true, Dimensions{400, 200}, true},
		{"portrait 1:2", Dimensions{800, 1600}, true, Dimensions{200, 400}, true},
		{"exact square", Dimensions{1000, 1000}, true, Dimensions{200, 200}, true},
		{"almost square", Dimensions{1000, 1050}, true, Dimensions{200, 200}, true},
		{"4:3 landscape rounds", Dimensions{1200, 900}, true, Dimensions{267, 200}, true},
		{"3:4 portrait rounds", Dimensions{900, 1200}, true, Dimensions{200, 267}, true},
		{"at threshold", Dimensions{800, 600}, true, Dimensions{}, false},
		{"below threshold", Dimensions{640, 480}, true, Dimensions{}, false},
		{"disabled", Dimensions{4000, 3000}, false, Dimensions{}, false},
		{"zero height", Dimensions{4000, 0}, true, Dimensions{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PlanSmartResize(tt.src, tt.enabled, 800, tuning)
			if ok != tt.wantOK {
				t.Fatalf("PlanSmartResize(%s) ok = %v, want %v", tt.src, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Fatalf("PlanSmartResize(%s) = %s, want %s", tt.src, got, tt.want)
			}
		})
	}
}

func TestPlanSmartResizeSquareToleranceBoundary(t *testing.T) {
	tuning := DefaultTuning()

	// ratio 1.1 is outside the tolerance and keeps its aspect ratio
	got, ok := PlanSmartResize(Dimensions{1100, 1000}, true, 800, tuning)
	if !ok {
		t.Fatal("expected smart resize to trigger")
	}
	if got != (Dimensions{220, 200}) {
		t.Fatalf("unexpected target: %s", got)
	}
}

func TestPlanSmartResizeUsesTuningMinor(t *testing.T) {
	tuning := DefaultTuning()
	tuning.SmartMinorDimension = 100

	got, ok := PlanSmartResize(Dimensions{1600, 800}, true, 800, tuning)
	if !ok || got != (Dimensions{200, 100}) {
		t.Fatalf("unexpected plan: %s ok=%v", got, ok)
	}
}
