package queue

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/txgnn-explorer/backend/internal/db"
	"github.com/txgnn-explorer/backend/internal/storage"
	"github.com/txgnn-explorer/backend/pkg/graph"
	"github.com/txgnn-explorer/backend/pkg/pathgen"

	"github.com/rabbitmq/amqp091-go"
)

func TestRetryTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		headers     amqp091.Table
		wantQueue   string
		wantRetries any
	}{
		{"first failure", nil, "paths_queue_retry", int32(1)},
		{"int32 header", amqp091.Table{"x-retries": int32(3)}, "paths_queue_retry", int32(4)},
		{"int64 header", amqp091.Table{"x-retries": int64(9)}, "paths_queue_retry", int32(10)},
		{"exhausted", amqp091.Table{"x-retries": int32(10)}, "paths_queue_dlq", int32(10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			queue, headers := RetryTarget(PathsQueue, tt.headers)
			if queue != tt.wantQueue {
				t.Fatalf("got %q, want %q", queue, tt.wantQueue)
			}
			if headers["x-retries"] != tt.wantRetries {
				t.Fatalf("got %v (%T), want %v", headers["x-retries"], headers["x-retries"], tt.wantRetries)
			}
		})
	}
}

func TestRetryTargetKeepsInput(t *testing.T) {
	t.Parallel()

	in := amqp091.Table{"x-retries": int32(1), "trace": "abc"}
	_, out := RetryTarget(PathsQueue, in)
	if in["x-retries"] != int32(1) {
		t.Fatal("input headers must not change")
	}
	if out["trace"] != "abc" {
		t.Fatalf("got %v, want other headers copied", out)
	}
}

func TestRecoveryMessage(t *testing.T) {
	t.Parallel()

	job := db.PathJob{ID: "job1", Request: []byte(`{"disease_ids":["D1"],"top_n":5,"enrichment":true}`)}
	data, err := RecoveryMessage(job)
	if err != nil {
		t.Fatalf("recovery message: %v", err)
	}
	var msg QueuePathJobMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.JobID != "job1" || msg.Request.TopN != 5 || !msg.Request.Enrichment || len(msg.Request.DiseaseIDs) != 1 {
		t.Fatalf("got %+v", msg)
	}

	if _, err := RecoveryMessage(db.PathJob{ID: "bad", Request: []byte("{")}); err == nil {
		t.Fatal("expected an error for a broken request")
	}
	if _, err := RecoveryMessage(db.PathJob{ID: "empty"}); err != nil {
		t.Fatalf("empty request: %v", err)
	}
}

const jobEdges = `x_id,x_type,x_name,relation,y_id,y_type,y_name,layer1_att,layer2_att
D1,disease,asthma,disease_protein,P1,gene/protein,IL13,0.5,0.25
R1,drug,dupilumab,drug_protein,P1,gene/protein,IL13,0.5,0.5
D1,disease,asthma,disease_protein,P2,gene/protein,CYP2D6,0.9,0.9
R1,drug,dupilumab,drug_protein,P2,gene/protein,CYP2D6,0.9,0.9
R2,drug,aspirin,rev_indication,D1,disease,asthma,0.1,0.1
`

func TestRunPathJob(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kg, err := graph.LoadEdges(ctx, strings.NewReader(jobEdges), graph.LoadOptions{Exclude: pathgen.ExcludeCYP})
	if err != nil {
		t.Fatalf("load edges: %v", err)
	}
	p := graph.NewPredictions()
	p.Add("D1", "R1", 0.8)
	p.Add("D1", "R2", 0.9)

	results := &storage.DirResultStore{Dir: t.TempDir()}
	env := PathJobEnv{Engine: graph.NewEngine(kg, p, nil, graph.Settings{}), Results: results, Workers: 2}

	res, err := RunPathJob(ctx, env, "job1", PathJobRequest{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Key != "results/job1.csv" || res.Pairs != 1 || res.Rows != 1 {
		t.Fatalf("got %+v", res)
	}

	rc, err := results.Open(ctx, res.Key)
	if err != nil {
		t.Fatalf("open result: %v", err)
	}
	defer rc.Close()
	records, err := csv.NewReader(rc).ReadAll()
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want header and one row", len(records))
	}
	row := records[1]
	if row[0] != "D1" || row[1] != "R1" || row[2] != pathgen.LabelPredicted {
		t.Fatalf("got %v", row)
	}
	if row[4] != "asthma -> IL13 -> dupilumab" {
		t.Fatalf("got path %q", row[4])
	}
}
