package persistence

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"docassist/pkg/form"
	"docassist/pkg/sections"
)

func createTestDB(t *testing.T) *DatabaseOperations {
	t.Helper()
	db, err := InitializeDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewDatabaseOperations(db)
}

func TestFreshSchemaVersion(t *testing.T) {
	ops := createTestDB(t)
	version, err := GetSchemaVersion(ops.db)
	if err != nil {
		t.Fatal(err)
	}
	if version != CurrentSchemaVersion {
		t.Errorf("schema version = %d, want %d", version, CurrentSchemaVersion)
	}
}

func TestMigrateFromVersion1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := GetSchemaVersion(db); err != nil {
		t.Fatal(err)
	}
	if err := createSchemaV1(db); err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	db, err = InitializeDatabase(path)
	if err != nil {
		t.Fatalf("InitializeDatabase() on v1 database: %v", err)
	}
	defer db.Close()

	version, _ := GetSchemaVersion(db)
	if version != CurrentSchemaVersion {
		t.Errorf("version after migration = %d", version)
	}

	ops := NewDatabaseOperations(db)
	gen := &Generation{Source: SourceForm, Title: "x", Status: StatusFailed, ErrorCategory: "TIMEOUT_ERROR"}
	if err := ops.InsertGeneration(context.Background(), gen); err != nil {
		t.Fatalf("insert after migration: %v", err)
	}
}

func TestGenerations(t *testing.T) {
	ctx := context.Background()
	ops := createTestDB(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	gens := []*Generation{
		{Source: SourceForm, Title: "Atlas", Markdown: "# Atlas", Filename: "README.md", Model: "gpt-4.1-mini",
			PromptTokens: 100, CompletionTokens: 400, CostUSD: 0.01, CreatedAt: base},
		{Source: SourceConversation, Title: "backup cli", Markdown: "# Backup", Model: "gpt-4.1-mini",
			PromptTokens: 50, CompletionTokens: 50, CreatedAt: base.Add(time.Minute)},
		{Source: SourceForm, Title: "Broken", Status: StatusFailed, ErrorCategory: "API_ERROR",
			CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, g := range gens {
		if err := ops.InsertGeneration(ctx, g); err != nil {
			t.Fatalf("InsertGeneration() error = %v", err)
		}
		if g.ID == "" {
			t.Fatal("id not assigned")
		}
	}

	got, err := ops.GetGeneration(ctx, gens[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Markdown != "# Atlas" || got.Status != StatusSucceeded || !got.CreatedAt.Equal(base) {
		t.Errorf("GetGeneration() = %+v", got)
	}

	if _, err := ops.GetGeneration(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing generation error = %v, want ErrNotFound", err)
	}

	all, err := ops.ListGenerations(ctx, GenerationFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].Title != "Broken" || all[2].Title != "Atlas" {
		t.Fatalf("ListGenerations() order wrong: %v", titles(all))
	}
	if all[2].Markdown != "" {
		t.Error("list should omit markdown")
	}

	forms, _ := ops.ListGenerations(ctx, GenerationFilter{Source: SourceForm})
	if len(forms) != 2 {
		t.Errorf("form generations = %v", titles(forms))
	}
	failed, _ := ops.ListGenerations(ctx, GenerationFilter{Status: StatusFailed})
	if len(failed) != 1 || failed[0].ErrorCategory != "API_ERROR" {
		t.Errorf("failed generations = %v", titles(failed))
	}
	limited, _ := ops.ListGenerations(ctx, GenerationFilter{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("limit ignored: %v", titles(limited))
	}

	stats, err := ops.GetGenerationStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 3 || stats.Succeeded != 2 || stats.Failed != 1 || stats.Tokens != 600 {
		t.Errorf("stats = %+v", stats)
	}
}

func titles(gens []*Generation) []string {
	out := make([]string, len(gens))
	for i, g := range gens {
		out[i] = g.Title
	}
	return out
}

func TestFormSessions(t *testing.T) {
	ctx := context.Background()
	ops := createTestDB(t)

	values := form.NewRecord()
	values[sections.FieldProjectName] = "Atlas"
	state := form.State{Config: sections.Default(), Current: 2, Values: values}

	if err := ops.SaveFormSession(ctx, "s1", state); err != nil {
		t.Fatal(err)
	}
	state.Current = 3
	if err := ops.SaveFormSession(ctx, "s1", state); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := ops.SaveFormSession(ctx, "s2", form.State{Config: sections.Basics(), Current: 1, Values: form.NewRecord()}); err != nil {
		t.Fatal(err)
	}

	loaded, err := ops.LoadFormSessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d sessions, want 2", len(loaded))
	}
	if loaded["s1"].Current != 3 || loaded["s1"].Values[sections.FieldProjectName] != "Atlas" {
		t.Errorf("s1 = %+v", loaded["s1"])
	}
	if loaded["s2"].Config.HasOptional() {
		t.Error("s2 config not preserved")
	}

	if err := ops.DeleteFormSession(ctx, "s2"); err != nil {
		t.Fatal(err)
	}
	if err := ops.DeleteFormSession(ctx, "never-existed"); err != nil {
		t.Errorf("deleting a missing session: %v", err)
	}

	ops.now = func() time.Time { return time.Now().Add(time.Hour) }
	n, err := ops.DeleteFormSessionsBefore(ctx, time.Now().Add(30*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("pruned %d sessions, want 1", n)
	}
	loaded, _ = ops.LoadFormSessions(ctx)
	if len(loaded) != 0 {
		t.Errorf("sessions left after prune: %v", loaded)
	}
}

func TestSingleton(t *testing.T) {
	defer func() { _ = Reset() }()

	if IsInitialized() {
		t.Fatal("initialized before Initialize")
	}
	if err := Initialize(filepath.Join(t.TempDir(), "app.db")); err != nil {
		t.Fatal(err)
	}
	if !IsInitialized() {
		t.Fatal("not initialized after Initialize")
	}
	if err := Ops().InsertGeneration(context.Background(), &Generation{Source: SourceForm, Title: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := Reset(); err != nil {
		t.Fatal(err)
	}
	if IsInitialized() {
		t.Error("still initialized after Reset")
	}
}
