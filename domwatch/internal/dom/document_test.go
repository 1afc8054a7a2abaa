package dom

import (
	"testing"

	"golang.org/x/net/html"
)

const page = `<html><head></head><body><div id="main" class="box"><p>hello</p></div></body></html>`

func mustParse(t *testing.T, s string) *Document {
	t.Helper()
	doc, err := ParseString(s)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	return doc
}

func TestNodeName(t *testing.T) {
	doc := mustParse(t, page)
	div := ByID(doc.Document(), "main")
	if got := NodeName(div); got != "DIV" {
		t.Errorf("element: got %q, want %q", got, "DIV")
	}
	text := ByTag(div, "p").FirstChild
	if got := NodeName(text); got != NameText {
		t.Errorf("text: got %q, want %q", got, NameText)
	}
	if got := NodeName(doc.Document()); got != NameDocument {
		t.Errorf("document: got %q, want %q", got, NameDocument)
	}
	if got := NodeName(doc.AttachShadow(div)); got != NameFragment {
		t.Errorf("shadow root: got %q, want %q", got, NameFragment)
	}
	if got := NodeName(nil); got != "" {
		t.Errorf("nil: got %q, want empty", got)
	}
}

func TestAttributeListSorted(t *testing.T) {
	n := Element("img", "src", "a.png", "alt", "x", "class", "ad")
	got := AttributeList(n)
	want := [][2]string{{"alt", "x"}, {"class", "ad"}, {"src", "a.png"}}
	if len(got) != len(want) {
		t.Fatalf("AttributeList: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("AttributeList[%d]: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFlushDeliversInOrder(t *testing.T) {
	doc := mustParse(t, page)
	var got []Record
	if err := doc.Observe(doc.Document(), AllMutations, func(recs []Record) {
		got = append(got, recs...)
	}); err != nil {
		t.Fatalf("Observe: %v", err)
	}

	div := ByID(doc.Document(), "main")
	span := Element("span")
	doc.AppendChild(div, span)
	doc.SetAttribute(div, "class", "box2")
	if err := doc.SetText(ByTag(div, "p").FirstChild, "bye"); err != nil {
		t.Fatalf("SetText: %v", err)
	}

	if n := doc.Flush(); n != 3 {
		t.Fatalf("Flush: got %d records, want 3", n)
	}
	if len(got) != 3 {
		t.Fatalf("delivered: got %d records, want 3", len(got))
	}
	if got[0].Type != ChildList || got[0].Target != div || got[0].AddedNodes[0] != span {
		t.Errorf("record 0: got %+v", got[0])
	}
	if got[1].Type != Attributes || got[1].AttributeName != "class" || got[1].OldValue == nil || *got[1].OldValue != "box" {
		t.Errorf("record 1: got %+v", got[1])
	}
	if got[2].Type != CharacterData || *got[2].OldValue != "hello" {
		t.Errorf("record 2: got %+v", got[2])
	}
	if doc.Flush() != 0 {
		t.Error("second Flush: want no pending records")
	}
}

func TestSetAttributeNewHasNilOldValue(t *testing.T) {
	doc := mustParse(t, page)
	var got []Record
	doc.Observe(doc.Document(), AllMutations, func(recs []Record) { got = append(got, recs...) })
	doc.SetAttribute(ByID(doc.Document(), "main"), "data-x", "1")
	doc.Flush()
	if len(got) != 1 || got[0].OldValue != nil {
		t.Fatalf("got %+v, want one record with nil OldValue", got)
	}
}

func TestOldValueOmittedWhenNotRequested(t *testing.T) {
	doc := mustParse(t, page)
	var got []Record
	doc.Observe(doc.Document(), ObserveOptions{Attributes: true, Subtree: true}, func(recs []Record) {
		got = append(got, recs...)
	})
	div := ByID(doc.Document(), "main")
	doc.SetAttribute(div, "class", "other")
	doc.AppendChild(div, Element("i"))
	doc.Flush()
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1 (childList not selected)", len(got))
	}
	if got[0].OldValue != nil {
		t.Errorf("OldValue: got %q, want nil", *got[0].OldValue)
	}
}

func TestShadowRootIsolated(t *testing.T) {
	doc := mustParse(t, page)
	div := ByID(doc.Document(), "main")
	sr := doc.AttachShadow(div)
	if doc.ShadowRoot(div) != sr {
		t.Fatal("ShadowRoot: want attached root")
	}
	if doc.AttachShadow(div) != sr {
		t.Error("AttachShadow twice: want same root")
	}

	var docRecs, shadowRecs int
	doc.Observe(doc.Document(), AllMutations, func(recs []Record) { docRecs += len(recs) })
	doc.Observe(sr, AllMutations, func(recs []Record) { shadowRecs += len(recs) })
	doc.AppendChild(sr, Element("b"))
	doc.Flush()
	if docRecs != 0 {
		t.Errorf("document observer: got %d records, want 0", docRecs)
	}
	if shadowRecs != 1 {
		t.Errorf("shadow observer: got %d records, want 1", shadowRecs)
	}
}

func TestAppendChildMovesNode(t *testing.T) {
	doc := mustParse(t, page)
	body := Body(doc.Document())
	div := ByID(doc.Document(), "main")
	p := ByTag(div, "p")

	var got []Record
	doc.Observe(doc.Document(), AllMutations, func(recs []Record) { got = append(got, recs...) })
	doc.AppendChild(body, p)
	doc.Flush()

	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].Target != div || len(got[0].RemovedNodes) != 1 {
		t.Errorf("record 0: want removal from div, got %+v", got[0])
	}
	if got[1].Target != body || got[1].AddedNodes[0] != p {
		t.Errorf("record 1: want addition to body, got %+v", got[1])
	}
}

func TestRemoveChildNotChild(t *testing.T) {
	doc := mustParse(t, page)
	if err := doc.RemoveChild(Body(doc.Document()), Element("div")); err != ErrNotChild {
		t.Errorf("RemoveChild: got %v, want ErrNotChild", err)
	}
}

func TestReplaceChildrenSingleRecord(t *testing.T) {
	doc := mustParse(t, page)
	div := ByID(doc.Document(), "main")
	var got []Record
	doc.Observe(doc.Document(), AllMutations, func(recs []Record) { got = append(got, recs...) })
	doc.ReplaceChildren(div, Text("new"))
	doc.Flush()
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	if len(got[0].AddedNodes) != 1 || len(got[0].RemovedNodes) != 1 {
		t.Errorf("record: got %d added, %d removed, want 1 and 1", len(got[0].AddedNodes), len(got[0].RemovedNodes))
	}
	if div.FirstChild == nil || div.FirstChild.Type != html.TextNode {
		t.Error("div: want text child after replace")
	}
}

func TestObserveRejectsEmptyOptions(t *testing.T) {
	doc := mustParse(t, page)
	if err := doc.Observe(doc.Document(), ObserveOptions{Subtree: true}, func([]Record) {}); err == nil {
		t.Error("Observe: want error for empty options")
	}
}

func TestRecordsOfLaterRemovedNodeDelivered(t *testing.T) {
	doc := mustParse(t, page)
	div := ByID(doc.Document(), "main")
	p := ByTag(div, "p")

	var got []Record
	doc.Observe(doc.Document(), AllMutations, func(recs []Record) { got = append(got, recs...) })
	doc.SetAttribute(p, "class", "gone")
	doc.SetText(p.FirstChild, "bye")
	if err := doc.RemoveChild(div, p); err != nil {
		t.Fatalf("RemoveChild: %v", err)
	}
	doc.Flush()

	want := []RecordType{Attributes, CharacterData, ChildList}
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i, rt := range want {
		if got[i].Type != rt {
			t.Errorf("record %d: got %q, want %q", i, got[i].Type, rt)
		}
	}
}

func TestObserveAfterQueueMissesEarlierRecords(t *testing.T) {
	doc := mustParse(t, page)
	div := ByID(doc.Document(), "main")
	doc.SetAttribute(div, "class", "early")

	var got []Record
	doc.Observe(doc.Document(), AllMutations, func(recs []Record) { got = append(got, recs...) })
	doc.SetAttribute(div, "class", "late")
	if n := doc.Flush(); n != 2 {
		t.Errorf("Flush: got %d queued, want 2", n)
	}
	if len(got) != 1 || *got[0].OldValue != "early" {
		t.Errorf("got %+v, want only the late change", got)
	}
}

func TestChangeChildrenSingleRecord(t *testing.T) {
	doc := mustParse(t, page)
	body := Body(doc.Document())
	div := ByID(doc.Document(), "main")
	span, b := Element("span"), Element("b")

	var got []Record
	doc.Observe(doc.Document(), AllMutations, func(recs []Record) { got = append(got, recs...) })
	if !doc.ChangeChildren(body, []*html.Node{span, b}, []*html.Node{div, Element("i")}, nil) {
		t.Fatal("ChangeChildren: want a change")
	}
	doc.Flush()

	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	r := got[0]
	if r.Target != body || len(r.RemovedNodes) != 1 || r.RemovedNodes[0] != div {
		t.Errorf("removed: got %+v, want div#main only", r.RemovedNodes)
	}
	if len(r.AddedNodes) != 2 || r.AddedNodes[0] != span || r.AddedNodes[1] != b {
		t.Errorf("added: got %+v, want [span b]", r.AddedNodes)
	}
	if body.FirstChild != span || span.NextSibling != b || b.NextSibling != nil {
		t.Error("body children: want [span b]")
	}

	if doc.ChangeChildren(body, nil, []*html.Node{div}, nil) {
		t.Error("ChangeChildren with nothing to do: want false")
	}
}
