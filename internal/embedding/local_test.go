package embedding

import (
	"context"
	"math"
	"testing"
)

func squaredNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return sum
}

func TestLocalHashEmbeddingUnitNorm(t *testing.T) {
	e := NewLocalHashEmbedding("local", 64)
	embs, err := e.Embed(context.Background(), []string{
		"a sentence with enough content to produce trigrams",
		"another different sentence entirely",
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, emb := range embs {
		if emb == nil {
			t.Fatalf("embedding %d is nil", i)
		}
		if len(emb) != 64 {
			t.Errorf("embedding %d has %d dims", i, len(emb))
		}
		if math.Abs(squaredNorm(emb)-1) > 1e-2 {
			t.Errorf("embedding %d squared norm = %g", i, squaredNorm(emb))
		}
	}
}

func TestLocalHashEmbeddingDeterministic(t *testing.T) {
	e := NewLocalHashEmbedding("local", 32)
	a, _ := e.Embed(context.Background(), []string{"stable input text"})
	b, _ := e.Embed(context.Background(), []string{"stable input text"})
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatalf("dim %d differs across calls", i)
		}
	}
}

func TestLocalHashEmbeddingDegenerateInputIsNil(t *testing.T) {
	e := NewLocalHashEmbedding("local", 32)
	embs, err := e.Embed(context.Background(), []string{"", "ab", "long enough text"})
	if err != nil {
		t.Fatal(err)
	}
	if embs[0] != nil || embs[1] != nil {
		t.Error("degenerate inputs did not yield nil sentinel")
	}
	if embs[2] == nil {
		t.Error("valid input yielded nil")
	}
}

func TestLocalHashEmbeddingSimilarTextsCloserThanUnrelated(t *testing.T) {
	e := NewLocalHashEmbedding("local", 256)
	embs, err := e.Embed(context.Background(), []string{
		"what is my account balance today",
		"what is my account balance right now",
		"the weather forecast calls for heavy rain",
	})
	if err != nil {
		t.Fatal(err)
	}
	simAB := dot(embs[0], embs[1])
	simAC := dot(embs[0], embs[2])
	if simAB <= simAC {
		t.Errorf("similar pair %g not closer than unrelated pair %g", simAB, simAC)
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func TestFactoryModelDispatch(t *testing.T) {
	f := NewFactory()

	svc, err := f.CreateEmbeddingService("local")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := svc.(*LocalHashEmbedding); !ok {
		t.Errorf("local model built %T", svc)
	}

	svc, err = f.CreateEmbeddingService("local:128")
	if err != nil {
		t.Fatal(err)
	}
	if svc.Dimensions() != 128 {
		t.Errorf("dims = %d, want 128", svc.Dimensions())
	}

	svc, err = f.CreateEmbeddingService("text-embedding-3-small")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := svc.(*HTTPEmbedding); !ok {
		t.Errorf("remote model built %T", svc)
	}
}
