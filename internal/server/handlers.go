package server

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ironsheep/ocr-decoder/internal/boundary"
	"github.com/ironsheep/ocr-decoder/internal/detection"
	"github.com/ironsheep/ocr-decoder/internal/imaging"
	"github.com/ironsheep/ocr-decoder/internal/recognizer"
	"github.com/ironsheep/ocr-decoder/internal/shape"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "ocr_detect_shapes").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.WithError(err).WithField("tool", params.Name).Warn("tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "ocr_load_page":
		return s.handleLoadPage(args)
	case "ocr_detect_shapes":
		return s.handleDetectShapes(args)
	case "ocr_render_shape":
		return s.handleRenderShape(args)
	case "ocr_crop":
		return s.handleCrop(args)
	case "ocr_check_merge":
		return s.handleCheckMerge(args)
	case "ocr_decode_image":
		return s.handleDecodeImage(ctx, args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func documentName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

type pathArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleLoadPage(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadPageInfo(s.cache, a.Path)
}

type detectArgs struct {
	Path     string `json:"path"`
	Document string `json:"document"`
	Page     int    `json:"page"`
}

// DetectResult is the output of ocr_detect_shapes.
type DetectResult struct {
	*detection.Page
	Shapes []*shape.Shape `json:"shapes"`
}

func (s *Server) detect(path, document string, page int) (*detection.Page, error) {
	if document == "" {
		document = documentName(path)
	}
	if page <= 0 {
		page = 1
	}
	return s.rec.Detect(path, document, page)
}

func (s *Server) handleDetectShapes(args json.RawMessage) (interface{}, error) {
	var a detectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	p, err := s.detect(a.Path, a.Document, a.Page)
	if err != nil {
		return nil, err
	}
	return &DetectResult{Page: p, Shapes: p.Shapes()}, nil
}

func shapeAt(p *detection.Page, id int) (*shape.Shape, error) {
	s := p.Arena.Get(shape.ID(id))
	if s == nil {
		return nil, fmt.Errorf("no shape %d on page (%d shapes)", id, p.Arena.Len())
	}
	return s, nil
}

type renderShapeArgs struct {
	Path  string  `json:"path"`
	Shape int     `json:"shape"`
	Scale float64 `json:"scale"`
}

func (s *Server) handleRenderShape(args json.RawMessage) (interface{}, error) {
	var a renderShapeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	p, err := s.detect(a.Path, "", 1)
	if err != nil {
		return nil, err
	}
	sh, err := shapeAt(p, a.Shape)
	if err != nil {
		return nil, err
	}
	return imaging.RenderShape(sh, a.Scale)
}

type cropArgs struct {
	Path  string  `json:"path"`
	X1    int     `json:"x1"`
	Y1    int     `json:"y1"`
	X2    int     `json:"x2"`
	Y2    int     `json:"y2"`
	Scale float64 `json:"scale"`
}

func (s *Server) handleCrop(args json.RawMessage) (interface{}, error) {
	var a cropArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.Crop(img, shape.Bounds{X1: a.X1, Y1: a.Y1, X2: a.X2, Y2: a.Y2}, a.Scale)
}

type checkMergeArgs struct {
	Path string `json:"path"`
	A    int    `json:"a"`
	B    int    `json:"b"`
}

// MergeResult is the output of ocr_check_merge.
type MergeResult struct {
	A           shape.Bounds `json:"a"`
	B           shape.Bounds `json:"b"`
	Merged      shape.Bounds `json:"merged"`
	Probability float64      `json:"probability"`
	Threshold   float64      `json:"threshold"`
	WouldMerge  bool         `json:"would_merge"`
}

func (s *Server) handleCheckMerge(args json.RawMessage) (interface{}, error) {
	var a checkMergeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.A == a.B {
		return nil, fmt.Errorf("shapes a and b must differ")
	}
	p, err := s.detect(a.Path, "", 1)
	if err != nil {
		return nil, err
	}
	first, err := shapeAt(p, a.A)
	if err != nil {
		return nil, err
	}
	second, err := shapeAt(p, a.B)
	if err != nil {
		return nil, err
	}

	bc := s.rec.Config().Boundary
	m := &boundary.GapMerger{GapScale: bc.GapScale, MaxWidthRatio: bc.MaxWidthRatio}
	prob := m.CheckMerge(first, second)
	return &MergeResult{
		A:           first.Bounds,
		B:           second.Bounds,
		Merged:      first.Bounds.Union(second.Bounds),
		Probability: prob,
		Threshold:   bc.Threshold,
		WouldMerge:  bc.Enabled && prob >= bc.Threshold,
	}, nil
}

type decodeArgs struct {
	Paths    []string `json:"paths"`
	Document string   `json:"document"`
}

// DecodedWord is one committed word of ocr_decode_image.
type DecodedWord struct {
	Word        string  `json:"word"`
	Truth       string  `json:"truth,omitempty"`
	Probability float64 `json:"probability"`
	Page        int     `json:"page"`
	Row         int     `json:"row"`
	Group       int64   `json:"group"`
}

// DecodeResult is the output of ocr_decode_image.
type DecodeResult struct {
	Document string        `json:"document"`
	Text     string        `json:"text"`
	Words    []DecodedWord `json:"words"`
}

func (s *Server) handleDecodeImage(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a decodeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if len(a.Paths) == 0 {
		return nil, fmt.Errorf("at least one page path is required")
	}
	if a.Document == "" {
		a.Document = documentName(a.Paths[0])
	}
	res, err := s.rec.DecodeDocument(ctx, a.Document, a.Paths)
	if err != nil {
		return nil, err
	}

	out := &DecodeResult{Document: res.Document, Text: recognizer.Summarise(res).Text}
	for _, w := range res.Words {
		g := w.Group()
		out.Words = append(out.Words, DecodedWord{
			Word:        w.GuessedWord(),
			Truth:       w.RealWord(),
			Probability: w.WordProbability(),
			Page:        g.Page,
			Row:         g.Row,
			Group:       g.ID,
		})
	}
	return out, nil
}
