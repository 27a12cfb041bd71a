package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	mid "github.com/txgnn-explorer/backend/internal/server/middleware"
	"github.com/txgnn-explorer/backend/pkg/cache"
	"github.com/txgnn-explorer/backend/pkg/common"
	"github.com/txgnn-explorer/backend/pkg/graph"
	"github.com/txgnn-explorer/backend/pkg/loader"
	fsloader "github.com/txgnn-explorer/backend/pkg/loader/io"
	"github.com/txgnn-explorer/backend/pkg/store"
	"github.com/txgnn-explorer/backend/pkg/store/file"
)

const testEdges = `x_id,x_type,x_name,relation,y_id,y_type,y_name,layer1_att,layer2_att
R1,drug,Aspirin,rev_indication,D1,disease,Flu,0.25,0.25
D1,disease,Flu,disease_protein,P1,gene/protein,TP53,0.5,0.25
R2,drug,Ibuprofen,drug_protein,P1,gene/protein,TP53,0.25,0.25
`

// countingDB counts pair queries to observe the response cache.
type countingDB struct {
	store.GraphDatabase
	pairs atomic.Int32
}

func (db *countingDB) QueryAttentionPair(ctx context.Context, diseaseID, drugID string) (*common.AttentionPair, error) {
	db.pairs.Add(1)
	return db.GraphDatabase.QueryAttentionPair(ctx, diseaseID, drugID)
}

func newTestApp(t *testing.T) (*mid.App, *countingDB) {
	t.Helper()

	kg, err := graph.LoadEdges(context.Background(), strings.NewReader(testEdges), graph.LoadOptions{})
	if err != nil {
		t.Fatalf("load edges: %v", err)
	}
	p := graph.NewPredictions()
	p.Add("D1", "R1", 0.4)
	p.Add("D1", "R2", 0.8)
	db := &countingDB{GraphDatabase: file.New(graph.NewEngine(kg, p, nil, graph.Settings{}))}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "node_types.json"), []byte(`{"D1":"disease"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "filtered_predictions.csv"), []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}
	fs := fsloader.NewFSDataFileLoader()

	app := &mid.App{
		Graph: db,
		Cache: cache.NewMemoryCache(16),
		Data:  loader.NewCachedReader(),
		DataFile: func(name string) loader.DataFile {
			return loader.NewDataFile(dir, name, fs)
		},
		MasterAPIKey: "master-key",
	}
	return app, db
}

func do(t *testing.T, app *mid.App, method, target, token string) *httptest.ResponseRecorder {
	t.Helper()

	e := NewEcho(app, "")
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	t.Parallel()

	app, _ := newTestApp(t)
	rec := do(t, app, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestGetDiseases(t *testing.T) {
	t.Parallel()

	app, _ := newTestApp(t)
	rec := do(t, app, http.MethodGet, "/api/diseases", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	var got []common.DiseaseStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	found := false
	for _, d := range got {
		if d.ID == "D1" {
			found = true
			if !d.Treatable {
				t.Fatal("D1 has a known indication")
			}
		}
	}
	if !found {
		t.Fatalf("got %v, want D1", got)
	}
}

func TestGetDrugPredictions(t *testing.T) {
	t.Parallel()

	app, _ := newTestApp(t)

	tests := []struct {
		name     string
		target   string
		wantCode int
		wantLen  int
	}{
		{"empty id", "/api/drug_predictions", http.StatusOK, 0},
		{"ranked", "/api/drug_predictions?disease_id=D1", http.StatusOK, 2},
		{"limited", "/api/drug_predictions?disease_id=D1&n=1", http.StatusOK, 1},
		{"negative n", "/api/drug_predictions?disease_id=D1&n=-1", http.StatusBadRequest, -1},
		{"bad n", "/api/drug_predictions?disease_id=D1&n=abc", http.StatusBadRequest, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := do(t, app, http.MethodGet, tt.target, "")
			if rec.Code != tt.wantCode {
				t.Fatalf("got status %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantLen < 0 {
				return
			}
			var got []common.DrugPrediction
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("decode %q: %v", rec.Body.String(), err)
			}
			if got == nil || len(got) != tt.wantLen {
				t.Fatalf("got %v, want %d predictions", got, tt.wantLen)
			}
		})
	}
}

func TestGetAttention(t *testing.T) {
	t.Parallel()

	app, _ := newTestApp(t)

	rec := do(t, app, http.MethodGet, "/api/attention?node=missing", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"paths":[],"tree":null}` {
		t.Fatalf("got %s", got)
	}

	rec = do(t, app, http.MethodGet, "/api/attention?node=D1&type=disease", "")
	var res struct {
		Paths []json.RawMessage     `json:"paths"`
		Tree  *common.AttentionTree `json:"tree"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Paths) == 0 || res.Tree == nil || res.Tree.NodeID != "D1" {
		t.Fatalf("got %s", rec.Body.String())
	}

	rec = do(t, app, http.MethodGet, "/api/attention", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}
}

func TestGetAttentionPair(t *testing.T) {
	t.Parallel()

	app, db := newTestApp(t)

	rec := do(t, app, http.MethodGet, "/api/attention_pair?disease=D1", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}

	for range 2 {
		rec = do(t, app, http.MethodGet, "/api/attention_pair?disease=D1&drug=R2", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
		}
	}
	if n := db.pairs.Load(); n != 1 {
		t.Fatalf("got %d pair queries, want 1", n)
	}

	var pair common.AttentionPair
	if err := json.Unmarshal(rec.Body.Bytes(), &pair); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if pair.Paths == nil || pair.Attention["D1"] == nil {
		t.Fatalf("got %s", rec.Body.String())
	}
}

func TestGetDataFile(t *testing.T) {
	t.Parallel()

	app, _ := newTestApp(t)

	rec := do(t, app, http.MethodGet, "/data/node_types.json", "")
	if rec.Code != http.StatusOK || rec.Body.String() != `{"D1":"disease"}` {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}

	for _, name := range []string{"filtered_predictions.csv", "edge_types.json"} {
		rec = do(t, app, http.MethodGet, "/data/"+name, "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: got status %d, want 404", name, rec.Code)
		}
	}
}

func TestPathJobsDisabled(t *testing.T) {
	t.Parallel()

	app, _ := newTestApp(t)

	rec := do(t, app, http.MethodPost, "/api/path_jobs", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", rec.Code)
	}

	rec = do(t, app, http.MethodPost, "/api/path_jobs", "wrong-key")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", rec.Code)
	}

	rec = do(t, app, http.MethodPost, "/api/path_jobs", "master-key")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("got status %d, want 503", rec.Code)
	}
}
