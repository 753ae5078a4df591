package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type rpcRequest struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

func callTool(t *testing.T, r *Registry, name string, args any) (any, error) {
	t.Helper()
	raw, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	return r.Call(context.Background(), name, raw)
}

func asMap(t *testing.T, v any) map[string]any {
	t.Helper()
	m, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("result is %T, want map", v)
	}
	return m
}

func TestGenerateSongCreatesAndEnqueues(t *testing.T) {
	var rpcReq rpcRequest
	var enqueueBody map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/functions/v1/rpc", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&rpcReq)
		w.Write([]byte(`{"id":"song-1","status":"pending"}`))
	})
	mux.HandleFunc("/functions/v1/enqueue-standard", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&enqueueBody)
		w.Write([]byte(`{"success":true,"enqueued":1,"skipped":0,"total":1,"tier":"standard"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := Build(testDeps(t, srv), []string{GroupGeneration})
	result, err := callTool(t, r, "generate_song", map[string]any{
		"title": "Night Drive",
		"style": "synthwave",
		"junk":  "should never be forwarded",
	})
	if err != nil {
		t.Fatalf("generate_song: %v", err)
	}

	m := asMap(t, result)
	if m["song_id"] != "song-1" || m["enqueued"] != true {
		t.Fatalf("unexpected result %v", m)
	}

	if rpcReq.Method != "createSong" {
		t.Fatalf("rpc method = %q", rpcReq.Method)
	}
	if _, leaked := rpcReq.Params["junk"]; leaked {
		t.Fatal("unlisted field leaked through the sanitizer")
	}
	if rpcReq.Params["style"] != "synthwave" {
		t.Fatalf("params = %v", rpcReq.Params)
	}

	ids, _ := enqueueBody["song_ids"].([]any)
	if len(ids) != 1 || ids[0] != "song-1" {
		t.Fatalf("enqueue body = %v", enqueueBody)
	}
}

func TestGenerateSongReportsPartialSuccessWhenEnqueueFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/functions/v1/rpc", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"song-9"}`))
	})
	mux.HandleFunc("/functions/v1/enqueue-standard", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":"generation quota exhausted","code":"QUOTA_EXCEEDED"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := Build(testDeps(t, srv), []string{GroupGeneration})
	result, err := callTool(t, r, "generate_song", map[string]any{"style": "lofi"})
	if err != nil {
		t.Fatalf("partial success must not surface as an error: %v", err)
	}

	m := asMap(t, result)
	if m["song_id"] != "song-9" {
		t.Fatal("created song id must be reported so it is never orphaned")
	}
	if m["enqueued"] != false {
		t.Fatalf("enqueued = %v", m["enqueued"])
	}
	if m["error_code"] != "QUOTA_EXCEEDED" {
		t.Fatalf("error_code = %v", m["error_code"])
	}
}

func TestCheckSongStatusNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/functions/v1/rpc", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"song not found","code":"NOT_FOUND"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := Build(testDeps(t, srv), []string{GroupGeneration})
	result, err := callTool(t, r, "check_song_status", map[string]any{"song_id": "ghost"})
	if err != nil {
		t.Fatalf("poll of a missing id must answer, not fail: %v", err)
	}

	m := asMap(t, result)
	if m["status"] != "not_found" || m["song_id"] != "ghost" {
		t.Fatalf("unexpected result %v", m)
	}
}

func TestCheckSongStatusBulkSummary(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/songs", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id":"a","status":"complete"},
			{"id":"b","status":"generating"},
			{"id":"c","status":"complete"}
		]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := Build(testDeps(t, srv), []string{GroupGeneration})
	result, err := callTool(t, r, "check_song_status_bulk", map[string]any{
		"song_ids": []string{"a", "b", "c", "d"},
	})
	if err != nil {
		t.Fatalf("bulk status: %v", err)
	}

	m := asMap(t, result)
	if m["total"] != 4 || m["completed"] != 2 {
		t.Fatalf("summary = %v", m)
	}
	if m["all_done"] != false {
		t.Fatal("all_done must be false while songs are pending")
	}
	pending, _ := m["pending"].([]string)
	if len(pending) != 2 {
		t.Fatalf("pending = %v", pending)
	}
}

func TestCheckSongStatusBulkAllDone(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/songs", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"a","status":"complete"},{"id":"b","status":"complete"}]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := Build(testDeps(t, srv), []string{GroupGeneration})
	result, err := callTool(t, r, "check_song_status_bulk", map[string]any{
		"song_ids": []string{"a", "b"},
	})
	if err != nil {
		t.Fatalf("bulk status: %v", err)
	}

	m := asMap(t, result)
	if m["completed"] != 2 || m["all_done"] != true {
		t.Fatalf("summary = %v", m)
	}
}

func TestExtendSongRelaysConfirmation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/functions/v1/rpc", func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Params["confirmation_token"] == "tok-42" {
			w.Write([]byte(`{"id":"song-1","status":"pending","extended_by":30}`))
			return
		}
		w.Write([]byte(`{
			"confirmation_required": true,
			"autonomy_level": "supervised",
			"capability": "extend_song",
			"token": "tok-42",
			"expires_in": 300,
			"message": "Extending uses 1 generation credit."
		}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := Build(testDeps(t, srv), []string{GroupGeneration})

	// Proposed: no token supplied, the demand is relayed with instructions.
	result, err := callTool(t, r, "extend_song", map[string]any{"song_id": "song-1", "duration_seconds": 30})
	if err != nil {
		t.Fatalf("extend_song: %v", err)
	}
	m := asMap(t, result)
	if m["confirmation_required"] != true || m["token"] != "tok-42" {
		t.Fatalf("expected relayed confirmation, got %v", m)
	}
	if m["instruction"] == nil {
		t.Fatal("relayed confirmation must tell the agent which field to resupply")
	}

	// Committed: the token from the first response goes back verbatim.
	result, err = callTool(t, r, "extend_song", map[string]any{
		"song_id":            "song-1",
		"duration_seconds":   30,
		"confirmation_token": "tok-42",
	})
	if err != nil {
		t.Fatalf("extend_song with token: %v", err)
	}
	m = asMap(t, result)
	if m["extended_by"] != float64(30) {
		t.Fatalf("mutation payload expected after confirmation, got %v", m)
	}
}
