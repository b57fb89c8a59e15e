package server

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/bfqbe/compiler"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "bfqbe-lsp"

// LspServer reports bracket errors and explains optimized runs to an editor.
type LspServer struct {
	opts compiler.Options

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server. opts controls the IR shown on hover.
func NewLSP(opts compiler.Options) *LspServer {
	s := &LspServer{
		opts:    opts.WithDefaults(),
		docs:    make(map[string]string),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	commonlog.NewInfoMessage(0, "bfqbe LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) document(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

// --- Language features ---

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return s.hover(text, params.Position), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	text, ok := s.document(uri)
	if !ok {
		return nil, nil
	}

	target, ok := matchingBracket(text, params.Position)
	if !ok {
		return nil, nil
	}
	return []protocol.Location{{
		URI:   uri,
		Range: operatorRange(text, target.Pos),
	}}, nil
}

// hover describes the optimized run containing the operator under pos.
func (s *LspServer) hover(text string, pos protocol.Position) *protocol.Hover {
	run, ok := runAt(text, pos)
	if !ok {
		return nil
	}

	var b strings.Builder
	sym := string(run.Op.Symbol())
	switch run.Op {
	case compiler.JumpIfZero, compiler.JumpIfNonZero:
		fmt.Fprintf(&b, "**`%s` loop %d**", sym, run.Arg)
	case compiler.Output:
		fmt.Fprintf(&b, "**`%s`**", sym)
	default:
		fmt.Fprintf(&b, "**`%s` ×%d**", sym, run.Arg)
	}
	fmt.Fprintf(&b, " %s\n\n", run.Op)

	if ir, err := compiler.Lower(run, s.opts); err == nil {
		fmt.Fprintf(&b, "```\n%s```\n", ir)
	}

	r := operatorRange(text, run.Pos)
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
		Range: &r,
	}
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnose(text),
	})
}

// diagnose returns the bracket error in text, if any, as a diagnostic
// covering the offending bracket.
func diagnose(text string) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}

	err := compiler.Check(text)
	if err == nil {
		return diagnostics
	}

	var be *compiler.BracketError
	if !errors.As(err, &be) {
		return diagnostics
	}

	severity := protocol.DiagnosticSeverityError
	source := lspName
	return append(diagnostics, protocol.Diagnostic{
		Range:    operatorRange(text, be.Pos),
		Severity: &severity,
		Source:   &source,
		Message:  be.Kind.Error(),
	})
}

// --- Run lookup ---

// collectRuns returns every run the optimizer produces for text, including
// those before a bracket error, and the offset at which optimization
// stopped. The offset is len(text) unless a `]` had no partner.
func collectRuns(text string) ([]compiler.Run, int) {
	runs, err := compiler.CollectRuns(compiler.NewOptimizer(compiler.NewScanner(text)))
	var be *compiler.BracketError
	if errors.As(err, &be) && errors.Is(be, compiler.ErrUnbalancedBracket) {
		return runs, be.Pos.Offset
	}
	return runs, len(text)
}

// runAt finds the run that the operator at pos was merged into.
func runAt(text string, pos protocol.Position) (compiler.Run, bool) {
	off, ok := offsetAt(text, pos)
	if !ok || off >= len(text) {
		return compiler.Run{}, false
	}
	op, ok := compiler.OperationFor(text[off])
	if !ok {
		return compiler.Run{}, false
	}

	runs, stop := collectRuns(text)
	if off >= stop {
		return compiler.Run{}, false
	}
	// last run starting at or before off
	i := sort.Search(len(runs), func(i int) bool { return runs[i].Pos.Offset > off }) - 1
	if i < 0 || runs[i].Op != op {
		return compiler.Run{}, false
	}
	return runs[i], true
}

// matchingBracket returns the run for the bracket paired with the one
// at pos.
func matchingBracket(text string, pos protocol.Position) (compiler.Run, bool) {
	run, ok := runAt(text, pos)
	if !ok {
		return compiler.Run{}, false
	}

	var want compiler.Operation
	switch run.Op {
	case compiler.JumpIfZero:
		want = compiler.JumpIfNonZero
	case compiler.JumpIfNonZero:
		want = compiler.JumpIfZero
	default:
		return compiler.Run{}, false
	}

	runs, _ := collectRuns(text)
	for _, r := range runs {
		if r.Op == want && r.Arg == run.Arg {
			return r, true
		}
	}
	return compiler.Run{}, false
}

// --- Position conversion ---

// offsetAt converts an LSP position (UTF-16 code units) to a byte offset.
func offsetAt(text string, pos protocol.Position) (int, bool) {
	off := 0
	for line := protocol.UInteger(0); line < pos.Line; line++ {
		nl := strings.IndexByte(text[off:], '\n')
		if nl < 0 {
			return 0, false
		}
		off += nl + 1
	}

	var units protocol.UInteger
	for off < len(text) && text[off] != '\n' && units < pos.Character {
		r, size := utf8.DecodeRuneInString(text[off:])
		units += protocol.UInteger(utf16Len(r))
		off += size
	}
	if units != pos.Character {
		return 0, false
	}
	return off, true
}

// lspPosition converts a byte offset to an LSP position.
func lspPosition(text string, offset int) protocol.Position {
	if offset > len(text) {
		offset = len(text)
	}
	lineStart := strings.LastIndexByte(text[:offset], '\n') + 1
	line := strings.Count(text[:lineStart], "\n")

	var units int
	for _, r := range text[lineStart:offset] {
		units += utf16Len(r)
	}
	return protocol.Position{
		Line:      protocol.UInteger(line),
		Character: protocol.UInteger(units),
	}
}

// operatorRange covers the single operator byte at p.
func operatorRange(text string, p compiler.Position) protocol.Range {
	start := lspPosition(text, p.Offset)
	end := start
	if p.Offset < len(text) {
		end.Character++
	}
	return protocol.Range{Start: start, End: end}
}

func utf16Len(r rune) int {
	if r >= 0x10000 {
		return 2
	}
	return 1
}

func boolPtr(b bool) *bool {
	return &b
}
