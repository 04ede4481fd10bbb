package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/ocr-decoder/internal/config"
	"github.com/ironsheep/ocr-decoder/internal/model"
	"github.com/ironsheep/ocr-decoder/internal/recognizer"
)

// tallIsL reads narrow shapes as "l" and the rest as "o".
var tallIsL = model.DeciderFunc(func(results []model.FeatureResult) ([]model.Decision, error) {
	r, ok := model.Find(results, "AspectRatio")
	if !ok {
		return nil, errors.New("AspectRatio missing")
	}
	if ratio, _ := r.Float(); ratio < 0.6 {
		return []model.Decision{{Outcome: "l", Probability: 0.9}, {Outcome: "i", Probability: 0.1}}, nil
	}
	return []model.Decision{{Outcome: "o", Probability: 0.8}, {Outcome: "c", Probability: 0.2}}, nil
})

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Features = []string{"AspectRatio"}
	rec, err := recognizer.New(cfg, tallIsL)
	if err != nil {
		t.Fatalf("recognizer.New() error = %v", err)
	}
	return New(rec, opts...)
}

// createTestPage writes a page with one row reading "lo l" and returns its
// path.
func createTestPage(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 40, 20))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	for _, r := range []image.Rectangle{
		image.Rect(5, 5, 8, 15),
		image.Rect(11, 7, 19, 15),
		image.Rect(30, 5, 33, 15),
	} {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				img.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

func TestNew(t *testing.T) {
	s := newTestServer(t)
	if s.cache == nil {
		t.Fatal("New() did not take the recognizer's cache")
	}
	if s.version != "dev" {
		t.Errorf("version = %q, want dev", s.version)
	}
}

func TestMCPRequest_Unmarshal(t *testing.T) {
	tests := []struct {
		name       string
		json       string
		wantID     interface{}
		wantMethod string
	}{
		{"string id", `{"jsonrpc":"2.0","id":"test-1","method":"tools/list"}`, "test-1", "tools/list"},
		{"number id", `{"jsonrpc":"2.0","id":42,"method":"ping"}`, float64(42), "ping"},
		{"null id", `{"jsonrpc":"2.0","id":null,"method":"initialize"}`, nil, "initialize"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req MCPRequest
			if err := json.Unmarshal([]byte(tt.json), &req); err != nil {
				t.Fatalf("Failed to unmarshal: %v", err)
			}
			if req.ID != tt.wantID {
				t.Errorf("ID: got %v (%T), want %v (%T)", req.ID, req.ID, tt.wantID, tt.wantID)
			}
			if req.Method != tt.wantMethod {
				t.Errorf("Method: got %s, want %s", req.Method, tt.wantMethod)
			}
		})
	}
}

func TestHandleRequest_Initialize(t *testing.T) {
	s := newTestServer(t, WithVersion("1.2.3"))
	resp := s.handleRequest(context.Background(), &MCPRequest{JSONRPC: "2.0", ID: 1, Method: "initialize"})

	if resp == nil || resp.Error != nil {
		t.Fatalf("handleRequest() = %+v", resp)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	if result["protocolVersion"] != ProtocolVersion {
		t.Errorf("protocolVersion: got %v", result["protocolVersion"])
	}
	info := result["serverInfo"].(map[string]interface{})
	if info["name"] != "ocr-decoder" || info["version"] != "1.2.3" {
		t.Errorf("serverInfo = %v", info)
	}
}

func TestHandleRequest_Routing(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	if resp := s.handleRequest(ctx, &MCPRequest{JSONRPC: "2.0", ID: "ping-1", Method: "ping"}); resp == nil || resp.Error != nil || resp.ID != "ping-1" {
		t.Errorf("ping = %+v", resp)
	}
	if resp := s.handleRequest(ctx, &MCPRequest{JSONRPC: "2.0", Method: "notifications/initialized"}); resp != nil {
		t.Error("notifications/initialized should return nil response")
	}

	resp := s.handleRequest(ctx, &MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/list"})
	tools, ok := resp.Result.(map[string]interface{})["tools"].([]Tool)
	if !ok || len(tools) != len(GetToolDefinitions()) {
		t.Errorf("tools/list returned %v", resp.Result)
	}

	resp = s.handleRequest(ctx, &MCPRequest{JSONRPC: "2.0", ID: 2, Method: "resources/list"})
	if resp.Error == nil || resp.Error.Code != -32601 {
		t.Errorf("unknown method: got %+v, want code -32601", resp.Error)
	}
}

func TestRun(t *testing.T) {
	in := strings.NewReader(strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		``,
		`not json`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"ping"}`,
	}, "\n"))
	var out bytes.Buffer
	s := newTestServer(t, WithIO(in, &out))

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	dec := json.NewDecoder(&out)
	var ids []interface{}
	for dec.More() {
		var resp MCPResponse
		if err := dec.Decode(&resp); err != nil {
			t.Fatalf("invalid response: %v", err)
		}
		ids = append(ids, resp.ID)
	}
	if len(ids) != 2 || ids[0] != float64(1) || ids[1] != float64(2) {
		t.Errorf("response ids = %v, want [1 2]", ids)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newTestServer(t, WithIO(strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`+"\n"), &bytes.Buffer{}))
	if err := s.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}
