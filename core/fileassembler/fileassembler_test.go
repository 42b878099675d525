package fileassembler

import (
	"reflect"
	"testing"

	"github.com/relaynet/mediaclient/core/node"
)

func TestExtractRefsDocumentOrder(t *testing.T) {
	content := `<html><body><img src="m1"><p>hi</p><img src="m2"></body></html>`
	refs := ExtractRefs(content, "src")
	want := []string{"m1", "m2"}
	if !reflect.DeepEqual(refs, want) {
		t.Fatalf("got %v, want %v", refs, want)
	}
}

func TestExtractRefsMissingAttributeSkipped(t *testing.T) {
	content := `<img alt="no ref here"><img src="m1">`
	refs := ExtractRefs(content, "src")
	want := []string{"m1"}
	if !reflect.DeepEqual(refs, want) {
		t.Fatalf("got %v, want %v", refs, want)
	}
}

func TestExtractRefsConfigurableAttr(t *testing.T) {
	content := `<img media_id="m1"><img src="ignored">`
	refs := ExtractRefs(content, "media_id")
	want := []string{"m1"}
	if !reflect.DeepEqual(refs, want) {
		t.Fatalf("got %v, want %v", refs, want)
	}
}

func TestAddTextFileNoRefsCompletesImmediately(t *testing.T) {
	a := New(Config{})
	refs, bundle := a.AddTextFile(node.ID(1), "a", "<p>no media here</p>")
	if bundle == nil {
		t.Fatalf("expected an immediate bundle for a reference-free file")
	}
	if refs != nil {
		t.Fatalf("expected nil refs, got %v", refs)
	}
	if len(bundle.Media) != 0 {
		t.Fatalf("expected empty media map, got %+v", bundle.Media)
	}
	if a.PendingCount() != 0 {
		t.Fatalf("expected nothing stored, got %d", a.PendingCount())
	}
}

func TestAddTextFileThenMediaCompletesBundle(t *testing.T) {
	a := New(Config{})
	refs, bundle := a.AddTextFile(node.ID(9), "a", "<img src='m1'><img src='m2'>")
	if bundle != nil {
		t.Fatalf("expected no immediate bundle, got %+v", bundle)
	}
	if !reflect.DeepEqual(refs, []string{"m1", "m2"}) {
		t.Fatalf("unexpected refs: %v", refs)
	}

	if bundles := a.AddMediaFile("m1", []byte("b1")); len(bundles) != 0 {
		t.Fatalf("expected no bundle yet, got %+v", bundles)
	}

	bundles := a.AddMediaFile("m2", []byte("b2"))
	if len(bundles) != 1 {
		t.Fatalf("expected one bundle completion after both media arrive, got %d", len(bundles))
	}
	got := bundles[0]
	if got.Source != node.ID(9) || got.FileID != "a" {
		t.Fatalf("unexpected bundle header: %+v", got)
	}
	if string(got.Media["m1"]) != "b1" || string(got.Media["m2"]) != "b2" {
		t.Fatalf("unexpected bundle media: %+v", got.Media)
	}
	if a.PendingCount() != 0 {
		t.Fatalf("expected bundle contents to be consumed, pending=%d", a.PendingCount())
	}
}

func TestAddTextFileAfterMediaCompletesImmediately(t *testing.T) {
	a := New(Config{})
	if bundles := a.AddMediaFile("m1", []byte("b1")); len(bundles) != 0 {
		t.Fatalf("expected no bundle before any text file, got %+v", bundles)
	}

	// Media can legitimately race ahead of the text file naming it;
	// AddTextFile must notice the reference is already satisfied rather
	// than waiting on a future, unrelated AddMediaFile call to scan it.
	refs, bundle := a.AddTextFile(node.ID(3), "f", "<img src='m1'>")
	if bundle == nil {
		t.Fatalf("expected immediate completion, refs=%v", refs)
	}
	if string(bundle.Media["m1"]) != "b1" {
		t.Fatalf("unexpected bundle media: %+v", bundle.Media)
	}
	if a.PendingCount() != 0 {
		t.Fatalf("expected nothing left pending, got %d", a.PendingCount())
	}
}

func TestAddMediaFileSharedMediaGoesToFirstTextFile(t *testing.T) {
	a := New(Config{})
	if _, bundle := a.AddTextFile(node.ID(1), "x", "<img src='shared'>"); bundle != nil {
		t.Fatalf("expected pending entry, got %+v", bundle)
	}
	if _, bundle := a.AddTextFile(node.ID(2), "y", "<img src='shared'>"); bundle != nil {
		t.Fatalf("expected pending entry, got %+v", bundle)
	}

	bundles := a.AddMediaFile("shared", []byte("b1"))
	if len(bundles) != 1 || bundles[0].Source != node.ID(1) {
		t.Fatalf("expected only the first text file to complete and claim the shared media, got %+v", bundles)
	}
	if a.PendingCount() != 1 {
		t.Fatalf("expected the second text file to stay pending, got %d", a.PendingCount())
	}
}

func TestAddMediaFileSameIDKeepsLatestBlob(t *testing.T) {
	a := New(Config{})
	if bundles := a.AddMediaFile("m1", []byte("first")); len(bundles) != 0 {
		t.Fatalf("unexpected bundle")
	}
	if bundles := a.AddMediaFile("m1", []byte("second")); len(bundles) != 0 {
		t.Fatalf("unexpected bundle")
	}

	if _, bundle := a.AddTextFile(node.ID(1), "x", "<img src='m1'>"); bundle == nil {
		t.Fatalf("expected immediate completion since m1 already arrived")
	} else if string(bundle.Media["m1"]) != "second" {
		t.Fatalf("expected the latest stored media blob, got %q", bundle.Media["m1"])
	}
}
