package store

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/morgen873/kisson/internal/models"
)

// backendUnderTest runs the shared persistence checks against one backend.
func backendUnderTest(t *testing.T, s Store) {
	t.Helper()

	t.Run("session record round trip", func(t *testing.T) {
		rec := models.SessionRecord{
			SessionID: "s_store",
			Answers:   map[string][]int{"1": {4}, "2": {0, 2}},
			CustomAnswers: map[string]string{
				"1": "the bakery on my street",
			},
			ControlValues: map[string]models.ControlValues{
				"4": {Temperature: 180, Shape: "crescent", Flavor: "sweet", Dietary: map[string]bool{"vegan": true}},
			},
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}
		if err := s.SaveSessionRecord(rec); err != nil {
			t.Fatalf("SaveSessionRecord: %v", err)
		}
		got, err := s.GetSessionRecord("s_store")
		if err != nil {
			t.Fatalf("GetSessionRecord: %v", err)
		}
		if got == nil {
			t.Fatal("GetSessionRecord returned nil for a saved record")
		}
		if !reflect.DeepEqual(got.Answers, rec.Answers) {
			t.Errorf("Answers = %v, want %v", got.Answers, rec.Answers)
		}
		if !reflect.DeepEqual(got.CustomAnswers, rec.CustomAnswers) {
			t.Errorf("CustomAnswers = %v", got.CustomAnswers)
		}
		if !reflect.DeepEqual(got.ControlValues, rec.ControlValues) {
			t.Errorf("ControlValues = %v", got.ControlValues)
		}

		// Saving again replaces.
		rec.Answers["1"] = []int{0}
		if err := s.SaveSessionRecord(rec); err != nil {
			t.Fatalf("SaveSessionRecord replace: %v", err)
		}
		got, _ = s.GetSessionRecord("s_store")
		if !reflect.DeepEqual(got.Answers["1"], []int{0}) {
			t.Errorf("replaced answer = %v, want [0]", got.Answers["1"])
		}

		if err := s.DeleteSessionRecord("s_store"); err != nil {
			t.Fatalf("DeleteSessionRecord: %v", err)
		}
		got, err = s.GetSessionRecord("s_store")
		if err != nil || got != nil {
			t.Errorf("after delete = %v, %v; want nil, nil", got, err)
		}
	})

	t.Run("recipe round trip", func(t *testing.T) {
		r := models.RecipeResult{
			ID:           "rcp_store",
			SessionID:    "s_store",
			Title:        "Bakery Dumpling",
			Description:  "A dumpling that tastes like Tuesday mornings.",
			ImageURL:     "https://img.example/d.png",
			QRData:       "https://kisson.example.com/recipe/rcp_store",
			Ingredients:  []string{"flour", "butter", "a memory"},
			Instructions: []string{"mix", "fold", "steam"},
			ImagePrompt:  "a golden dumpling on a wooden table",
			CreatedAt:    time.Now().UTC(),
		}
		if err := s.SaveRecipe(r); err != nil {
			t.Fatalf("SaveRecipe: %v", err)
		}
		got, err := s.GetRecipe("rcp_store")
		if err != nil {
			t.Fatalf("GetRecipe: %v", err)
		}
		if got == nil {
			t.Fatal("GetRecipe returned nil for a saved recipe")
		}
		if got.Title != r.Title || got.QRData != r.QRData {
			t.Errorf("recipe = %+v", got)
		}
		if !reflect.DeepEqual(got.Ingredients, r.Ingredients) {
			t.Errorf("Ingredients = %v", got.Ingredients)
		}
		if !reflect.DeepEqual(got.Instructions, r.Instructions) {
			t.Errorf("Instructions = %v", got.Instructions)
		}

		missing, err := s.GetRecipe("rcp_nope")
		if err != nil || missing != nil {
			t.Errorf("GetRecipe(miss) = %v, %v; want nil, nil", missing, err)
		}
	})

	t.Run("video job round trip", func(t *testing.T) {
		j := models.VideoJob{
			RecipeID:  "rcp_store",
			Status:    models.VideoStatusPending,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}
		if err := s.SaveVideoJob(j); err != nil {
			t.Fatalf("SaveVideoJob: %v", err)
		}

		j.Status = models.VideoStatusReady
		j.URL = "https://cdn.example/v.mp4"
		if err := s.SaveVideoJob(j); err != nil {
			t.Fatalf("SaveVideoJob update: %v", err)
		}

		got, err := s.GetVideoJob("rcp_store")
		if err != nil {
			t.Fatalf("GetVideoJob: %v", err)
		}
		if got == nil || got.Status != models.VideoStatusReady || got.URL != j.URL {
			t.Errorf("job = %+v", got)
		}

		missing, err := s.GetVideoJob("rcp_nope")
		if err != nil || missing != nil {
			t.Errorf("GetVideoJob(miss) = %v, %v; want nil, nil", missing, err)
		}
	})
}

func TestInMemoryStore(t *testing.T) {
	s := NewInMemoryStore()
	defer s.Close()
	backendUnderTest(t, s)
}

func TestSQLiteStore(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "kisson-test.db")
	s, err := NewSQLiteStore(WithSQLiteDSN(dsn))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	backendUnderTest(t, s)
}

func TestNewStoreSelectsBackend(t *testing.T) {
	s, err := NewStore()
	if err != nil {
		t.Fatalf("NewStore(): %v", err)
	}
	if _, ok := s.(*InMemoryStore); !ok {
		t.Errorf("empty DSN should select the in-memory store, got %T", s)
	}
	s.Close()

	dsn := filepath.Join(t.TempDir(), "select.db")
	s, err = NewStore(WithSQLiteDSN(dsn))
	if err != nil {
		t.Fatalf("NewStore(sqlite): %v", err)
	}
	if _, ok := s.(*SQLiteStore); !ok {
		t.Errorf("file DSN should select SQLite, got %T", s)
	}
	s.Close()
}

func TestDetectDSNType(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@host/db":          "postgres",
		"postgresql://u:p@host/db":        "postgres",
		"host=localhost user=kisson":      "postgres",
		"/var/lib/kisson/kisson.db":       "sqlite",
		"kisson.db":                       "sqlite",
	}
	for dsn, want := range cases {
		if got := DetectDSNType(dsn); got != want {
			t.Errorf("DetectDSNType(%q) = %q, want %q", dsn, got, want)
		}
	}
}
