package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"

	"sodareplay/internal/assetref"
	"sodareplay/internal/assetstore"
	"sodareplay/internal/cdn"
	"sodareplay/internal/services"
	"sodareplay/internal/testsupport"
)

func raws(values ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(values))
	for i, v := range values {
		out[i] = json.RawMessage(v)
	}
	return out
}

func newResolver(t *testing.T, fake *testsupport.FakeCDN, opts ...Option) (*Resolver, assetref.Layout) {
	t.Helper()
	layout := assetref.NewLayout(filepath.Join(t.TempDir(), "exports"))
	return NewResolver(layout, cdn.NewClient(fake.Template()), nil, append([]Option{WithWorkers(3)}, opts...)...), layout
}

func TestResolveSingleModelThenSkip(t *testing.T) {
	fake := testsupport.NewFakeCDN(t)
	resolver, layout := newResolver(t, fake)
	m := &Manifest{Models: raws(`"1818567076"`)}

	first, err := resolver.Resolve(context.Background(), m)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	want := filepath.Join(layout.Root, "models", "mesh_1818567076.fbx")
	if got := first.Results[0]; got.Outcome != OutcomeFetched || got.Path != want {
		t.Fatalf("first result = %+v", got)
	}
	data, err := os.ReadFile(want)
	if err != nil || string(data) != "asset-1818567076" {
		t.Fatalf("asset content = %q, %v", data, err)
	}

	second, err := resolver.Resolve(context.Background(), m)
	if err != nil {
		t.Fatal(err)
	}
	if got := second.Results[0]; got.Outcome != OutcomeSkipped {
		t.Fatalf("second result = %+v", got)
	}
	if fake.Total() != 1 {
		t.Fatalf("cdn hits = %d, want 1", fake.Total())
	}
	if !reflect.DeepEqual(first.Assets.Index, second.Assets.Index) {
		t.Fatalf("index changed between runs: %v vs %v", first.Assets.Index, second.Assets.Index)
	}
	if first.RunID == "" || first.RunID == second.RunID {
		t.Fatalf("expected distinct run ids, got %q and %q", first.RunID, second.RunID)
	}
}

func TestResolveRoundTripAcrossResolvers(t *testing.T) {
	fake := testsupport.NewFakeCDN(t)
	resolver, layout := newResolver(t, fake)
	m := &Manifest{
		Models:     raws(`"1"`, `"2"`),
		Textures:   raws(`"rbxassetid://3"`),
		Animations: raws(`"4"`),
		GUIImages:  raws(`"5"`),
		Sounds:     raws(`"6"`),
	}
	first, err := resolver.Resolve(context.Background(), m)
	if err != nil {
		t.Fatal(err)
	}
	if first.Summary.Fetched != 6 {
		t.Fatalf("summary = %+v", first.Summary)
	}

	fresh := NewResolver(layout, cdn.NewClient(fake.Template()), nil)
	second, err := fresh.Resolve(context.Background(), m)
	if err != nil {
		t.Fatal(err)
	}
	if second.Summary.Fetched != 0 || second.Summary.Skipped != 6 {
		t.Fatalf("second summary = %+v", second.Summary)
	}
	if fake.Total() != 6 {
		t.Fatalf("cdn hits = %d, want 6", fake.Total())
	}
	if !reflect.DeepEqual(first.Assets.Index, second.Assets.Index) {
		t.Fatal("index differs across resolvers")
	}
}

func TestResolveWritesPrimitiveVerbatim(t *testing.T) {
	fake := testsupport.NewFakeCDN(t)
	resolver, layout := newResolver(t, fake)
	descriptor := `{"primitive":"Part","size":[4,1,2]}`

	report, err := resolver.Resolve(context.Background(), &Manifest{Models: raws(descriptor)})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(layout.Root, "models", "prim_Part_4x1x2.json")
	if got := report.Results[0]; got.Outcome != OutcomeWritten || got.Path != path {
		t.Fatalf("result = %+v", got)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != descriptor {
		t.Fatalf("descriptor = %s", data)
	}
	if fake.Total() != 0 {
		t.Fatal("primitive triggered a fetch")
	}
}

func TestResolvePartialFailureAndRetry(t *testing.T) {
	fake := testsupport.NewFakeCDN(t, "22")
	resolver, _ := newResolver(t, fake)
	m := &Manifest{
		Models:     raws(`"11"`, `"22"`),
		Textures:   raws(`"no digits"`),
		Characters: []Character{{Name: "Bob", Parts: raws(`{"meshId":"22"}`)}},
		Sounds:     raws(`"33"`),
	}

	report, err := resolver.Resolve(context.Background(), m)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if report.OK() {
		t.Fatal("expected problems in report")
	}
	s := report.Summary
	if s.Fetched != 2 || s.Failed != 2 || s.Invalid != 1 {
		t.Fatalf("summary = %+v", s)
	}
	errs := report.Errors()
	if len(errs) != 3 {
		t.Fatalf("errors = %v", errs)
	}
	fetchErrors := 0
	for _, err := range errs {
		if errors.Is(err, services.ErrAssetFetch) {
			fetchErrors++
			var fe *assetstore.FetchError
			if !errors.As(err, &fe) || fe.Key != "mesh_22" {
				t.Fatalf("unexpected fetch error %v", err)
			}
		}
	}
	if fetchErrors != 2 {
		t.Fatalf("fetch errors = %d, want 2", fetchErrors)
	}

	retry := report.RetryManifest()
	if len(retry.Models) != 1 || string(retry.Models[0]) != `"22"` {
		t.Fatalf("retry models = %s", retry.Models)
	}
	if len(retry.Textures) != 0 {
		t.Fatal("invalid references must not be retried")
	}
	if len(retry.Characters) != 1 || retry.Characters[0].Name != "Bob" || len(retry.Characters[0].Parts) != 1 {
		t.Fatalf("retry characters = %+v", retry.Characters)
	}

	fake.Heal("22")
	again, err := resolver.Resolve(context.Background(), retry)
	if err != nil {
		t.Fatal(err)
	}
	if !again.OK() || again.Summary.Fetched != 1 || again.Summary.Reused != 1 {
		t.Fatalf("retry summary = %+v", again.Summary)
	}
}

func TestResolveCharacterPartsShareFetch(t *testing.T) {
	fake := testsupport.NewFakeCDN(t)
	resolver, layout := newResolver(t, fake)
	m := &Manifest{
		Models: raws(`"7"`),
		Characters: []Character{
			{Name: "Alice", Parts: raws(`{"meshId":"rbxassetid://7"}`, `{"primitive":"Ball","size":[1,1,1]}`)},
			{Name: "Bob", Parts: raws(`"7"`)},
		},
	}
	report, err := resolver.Resolve(context.Background(), m)
	if err != nil {
		t.Fatal(err)
	}
	if fake.Hits("7") != 1 {
		t.Fatalf("cdn hits for 7 = %d, want 1", fake.Hits("7"))
	}
	alice := report.Assets.Characters["Alice"]
	wantAlice := []string{
		filepath.Join(layout.Root, "models", "characters", "Alice", "mesh_7.fbx"),
		filepath.Join(layout.Root, "models", "characters", "Alice", "prim_Ball_1x1x1.json"),
	}
	if !reflect.DeepEqual(alice, wantAlice) {
		t.Fatalf("alice parts = %v", alice)
	}
	for _, p := range append(alice, report.Assets.Characters["Bob"]...) {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("missing part %s: %v", p, err)
		}
	}
	if len(report.Assets.Index["mesh_7"]) != 1 {
		t.Fatalf("flat index = %v", report.Assets.Index)
	}
	if len(report.Duplicates) != 1 || report.Duplicates[0].Occurrences != 3 {
		t.Fatalf("duplicates = %+v", report.Duplicates)
	}
}

func TestResolveRejectsUnsafeCharacterName(t *testing.T) {
	fake := testsupport.NewFakeCDN(t)
	resolver, _ := newResolver(t, fake)
	report, err := resolver.Resolve(context.Background(), &Manifest{
		Characters: []Character{{Name: "../escape", Parts: raws(`"1"`)}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if report.Results[0].Outcome != OutcomeInvalid || fake.Total() != 0 {
		t.Fatalf("result = %+v", report.Results[0])
	}
}

func TestResolveOrderIsDeterministic(t *testing.T) {
	fake := testsupport.NewFakeCDN(t)
	resolver, _ := newResolver(t, fake, WithWorkers(8))
	m := &Manifest{
		Sounds:     raws(`"6"`),
		GUIImages:  raws(`"5"`),
		Characters: []Character{{Name: "C", Parts: raws(`"4"`)}},
		Animations: raws(`"3"`),
		Textures:   raws(`"2"`),
		Models:     raws(`"1"`),
	}
	report, err := resolver.Resolve(context.Background(), m)
	if err != nil {
		t.Fatal(err)
	}
	var got []Section
	for _, res := range report.Results {
		got = append(got, res.Section)
	}
	want := []Section{SectionModels, SectionTextures, SectionAnimations, SectionCharacters, SectionGUIImages, SectionSounds}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v", got)
	}
}

func TestResolveCancelledLeavesPartialReport(t *testing.T) {
	layout := assetref.NewLayout(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int64
	fetcher := FetcherFunc(func(ctx context.Context, id string) ([]byte, error) {
		if calls.Add(1) == 1 {
			cancel()
		}
		return []byte(id), nil
	})
	resolver := NewResolver(layout, fetcher, nil, WithWorkers(1))

	report, err := resolver.Resolve(ctx, &Manifest{Models: raws(`"1"`, `"2"`, `"3"`)})
	if err != nil {
		t.Fatal(err)
	}
	if !report.Cancelled {
		t.Fatal("expected cancelled report")
	}
	if report.Results[0].Outcome != OutcomeFetched {
		t.Fatalf("first result = %+v", report.Results[0])
	}
	if report.Summary.Cancelled != 2 {
		t.Fatalf("summary = %+v", report.Summary)
	}
	if len(report.RetryManifest().Models) != 2 {
		t.Fatal("cancelled references should be retryable")
	}
}

func TestResolveObserversSeeReport(t *testing.T) {
	fake := testsupport.NewFakeCDN(t)
	var seen *Report
	resolver, _ := newResolver(t, fake, WithObserver(func(ctx context.Context, r *Report) {
		if id, ok := services.RunIDFromContext(ctx); !ok || id != r.RunID {
			t.Errorf("observer context run id = %q", id)
		}
		seen = r
	}))
	report, err := resolver.Resolve(context.Background(), &Manifest{Models: raws(`"1"`)})
	if err != nil {
		t.Fatal(err)
	}
	if seen != report {
		t.Fatal("observer did not receive the report")
	}
}

func TestDecodeToleratesMissingLists(t *testing.T) {
	m, err := Decode([]byte(`{"models":["1"],"characters":[{"name":"A","parts":[{"primitive":"Part","size":[1,2,3]}]}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if m.Len() != 2 || len(m.Sounds) != 0 {
		t.Fatalf("manifest = %+v", m)
	}
	if _, err := Decode([]byte(`{"models":`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestDuplicatesFlagDistinctPrimitives(t *testing.T) {
	fake := testsupport.NewFakeCDN(t)
	resolver, _ := newResolver(t, fake)
	report, err := resolver.Resolve(context.Background(), &Manifest{Models: raws(
		`{"primitive":"Part","size":[1,1,1]}`,
		`{"primitive":"Part","size":[1,1,1],"color":"red"}`,
	)})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Duplicates) != 1 || !report.Duplicates[0].Distinct {
		t.Fatalf("duplicates = %+v", report.Duplicates)
	}
}

func TestDistinctPrimitivesKeepFirstDescriptor(t *testing.T) {
	first := `{"primitive":"Part","size":[4,1,2],"tag":"first"}`
	second := `{"primitive":"Part","size":[4,1,2],"tag":"second"}`

	for _, workers := range []int{1, 8} {
		fake := testsupport.NewFakeCDN(t)
		resolver, layout := newResolver(t, fake, WithWorkers(workers))
		report, err := resolver.Resolve(context.Background(), &Manifest{
			Models:     raws(first, second),
			Characters: []Character{{Name: "Rig", Parts: raws(second)}},
		})
		if err != nil {
			t.Fatal(err)
		}

		for _, path := range []string{
			filepath.Join(layout.Root, "models", "prim_Part_4x1x2.json"),
			filepath.Join(layout.Root, "models", "characters", "Rig", "prim_Part_4x1x2.json"),
		} {
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("workers=%d: %v", workers, err)
			}
			if string(data) != first {
				t.Fatalf("workers=%d: %s holds %s", workers, path, data)
			}
		}

		if got := report.Results[1].Outcome; got != OutcomeSkipped {
			t.Fatalf("workers=%d: merged outcome = %s", workers, got)
		}
		if report.Summary.Written != 2 || report.Summary.Skipped != 1 {
			t.Fatalf("workers=%d: summary = %+v", workers, report.Summary)
		}
		if paths := report.Assets.Lookup("prim_Part_4x1x2"); len(paths) != 1 {
			t.Fatalf("workers=%d: index = %v", workers, paths)
		}
	}
}
