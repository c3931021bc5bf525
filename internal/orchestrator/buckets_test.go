package orchestrator

import (
	"testing"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/sample"
	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/scene/scenetest"
)

const (
	shortText  = "Find the cube."
	mediumText = "Find the large red metal cube."
	longText   = "Find the large red metal cube left of the small sphere."
)

func TestWordCount(t *testing.T) {
	words := scenetest.Metadata().AttributeWords()
	cases := map[string]int{
		shortText:                1,
		mediumText:               4,
		longText:                 7,
		"How many red cubes?":    2,
		"How many things?":       0,
		"Are there any spheres?": 1,
	}
	for text, want := range cases {
		if got := WordCount(text, words); got != want {
			t.Errorf("WordCount(%q) = %d, want %d", text, got, want)
		}
	}
}

func TestBucketize_ThreeBuckets(t *testing.T) {
	words := scenetest.Metadata().AttributeWords()
	buckets := Bucketize([]string{mediumText, shortText, longText}, words, 3)

	if len(buckets) != 3 {
		t.Fatalf("expected 3 buckets, got %d", len(buckets))
	}
	want := [][2]int{{1, 3}, {3, 5}, {5, 8}}
	for i, b := range buckets {
		if b.Lower != want[i][0] || b.Upper != want[i][1] {
			t.Errorf("bucket %d = [%d,%d), want [%d,%d)", i, b.Lower, b.Upper, want[i][0], want[i][1])
		}
		if len(b.Texts) != 1 {
			t.Errorf("bucket %d holds %d texts, want 1", i, len(b.Texts))
		}
	}
	if buckets[0].Texts[0] != shortText || buckets[2].Texts[0] != longText {
		t.Errorf("texts landed in the wrong buckets: %+v", buckets)
	}
}

func TestBucketize_NoAttributeWords(t *testing.T) {
	buckets := Bucketize([]string{"How many things?"}, scenetest.Metadata().AttributeWords(), 3)
	if len(buckets) != 1 {
		t.Fatalf("expected a single fallback bucket, got %d", len(buckets))
	}
	if buckets[0].Lower != 0 || buckets[0].Upper != 1 || len(buckets[0].Texts) != 1 {
		t.Errorf("unexpected fallback bucket %+v", buckets[0])
	}
}

func TestBalancedAndSelect(t *testing.T) {
	buckets := Bucketize([]string{shortText, mediumText, longText}, scenetest.Metadata().AttributeWords(), 3)

	if !Balanced(buckets, 3) {
		t.Error("one text per bucket should satisfy a share of 1")
	}
	if Balanced(buckets, 6) {
		t.Error("one text per bucket should not satisfy a share of 2")
	}

	got := Select(sample.New(1, ""), buckets, 3)
	want := []string{longText, mediumText, shortText}
	if len(got) != len(want) {
		t.Fatalf("expected %d texts, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSelect_CapsPerBucket(t *testing.T) {
	words := scenetest.Metadata().AttributeWords()
	texts := []string{"Find the red cube.", "Find the blue cube.", "Find the gray cube.", "Find the cyan cube."}
	buckets := Bucketize(texts, words, 3)

	got := Select(sample.New(7, ""), buckets, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 texts, got %d", len(got))
	}
	if got[0] == got[1] {
		t.Errorf("sampled the same text twice: %q", got[0])
	}
}
