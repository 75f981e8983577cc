package main

import (
	"testing"
	"time"

	"github.com/entitylist/entitylist/internal/entity"
)

func TestDemoEntriesAreStableAndMixed(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	first := demoEntries(30, now)
	second := demoEntries(30, now.Add(time.Hour))
	if len(first) != 30 {
		t.Fatalf("len = %d, want 30", len(first))
	}

	statuses := map[string]int{}
	for i, e := range first {
		if e.ID() != second[i].ID() {
			t.Fatalf("id %d changed between runs: %q vs %q", i, e.ID(), second[i].ID())
		}
		if e.ContentTypeID() != "post" || e.Sys.Type != entity.TypeEntry {
			t.Fatalf("entry %d has sys %+v", i, e.Sys)
		}
		statuses[e.Status()]++
	}
	for _, status := range []string{"draft", "published", "changed", "archived"} {
		if statuses[status] == 0 {
			t.Fatalf("no %s entries in %v", status, statuses)
		}
	}
}

func TestDemoAssetsFiles(t *testing.T) {
	t.Parallel()

	assets := demoAssets(8, time.Now())
	withFile := 0
	for _, a := range assets {
		if !a.IsAsset() {
			t.Fatalf("asset %q has type %q", a.ID(), a.Sys.Type)
		}
		if a.HasFile() {
			withFile++
		}
	}
	if withFile != 6 {
		t.Fatalf("assets with file = %d, want 6", withFile)
	}
	if assets[0].ID() == demoEntries(1, time.Now())[0].ID() {
		t.Fatal("asset and entry ids collide")
	}
}
