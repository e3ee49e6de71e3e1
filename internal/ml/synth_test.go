package ml

import "testing"

func TestGenerateSyntheticSize(t *testing.T) {
	for _, n := range []int{30, 100, 1500} {
		ds := GenerateSynthetic(n, 0.05, 42)
		want := 4*n + 3*(n/3)
		if ds.Len() != want {
			t.Errorf("n=%d: got %d samples, want %d", n, ds.Len(), want)
		}
		if len(ds.X) != len(ds.Y) {
			t.Errorf("n=%d: X/Y length mismatch: %d vs %d", n, len(ds.X), len(ds.Y))
		}
	}
}

func TestGenerateSyntheticReproducible(t *testing.T) {
	a := GenerateSynthetic(200, 0.05, 42)
	b := GenerateSynthetic(200, 0.05, 42)

	if a.Len() != b.Len() {
		t.Fatalf("sizes differ: %d vs %d", a.Len(), b.Len())
	}
	for i := range a.Y {
		if a.Y[i] != b.Y[i] {
			t.Fatalf("label %d differs: %v vs %v", i, a.Y[i], b.Y[i])
		}
		for j := range a.X[i] {
			if a.X[i][j] != b.X[i][j] {
				t.Fatalf("sample %d feature %d differs: %v vs %v", i, j, a.X[i][j], b.X[i][j])
			}
		}
	}
}

func TestGenerateSyntheticSeedsDiffer(t *testing.T) {
	a := GenerateSynthetic(100, 0.05, 1)
	b := GenerateSynthetic(100, 0.05, 2)

	same := true
	for i := range a.X {
		if a.X[i][0] != b.X[i][0] {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced identical datasets")
	}
}

func TestGenerateSyntheticProperties(t *testing.T) {
	ds := GenerateSynthetic(300, 0.05, 42)

	counts := make(map[Class]int)
	for i, y := range ds.Y {
		if y < 0 || int(y) >= NumClasses {
			t.Fatalf("sample %d has invalid label %v", i, y)
		}
		counts[y]++
		if len(ds.X[i]) != NumFeatures {
			t.Fatalf("sample %d has %d features", i, len(ds.X[i]))
		}
		for j, v := range ds.X[i] {
			if v < 0 {
				t.Fatalf("sample %d feature %s negative: %v", i, FeatureNames[j], v)
			}
		}
	}

	// Every class must be present; each class gets at least its nPerClass
	// base samples.
	for c := Class(0); c < NumClasses; c++ {
		if counts[c] < 300 {
			t.Errorf("class %v has %d samples, want >= 300", c, counts[c])
		}
	}
}

func TestDatasetAppend(t *testing.T) {
	var ds Dataset
	ds.Append([]float64{1, 2, 3, 4, 5, 6, 7}, Essential)
	if ds.Len() != 1 || ds.Y[0] != Essential {
		t.Errorf("append failed: %+v", ds)
	}
}
