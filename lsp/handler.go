// Package lsp serves console completions to editors over the Language
// Server Protocol.
package lsp

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"
	"go.uber.org/zap"

	"github.com/teranos/qconsole/complete"
	"github.com/teranos/qconsole/console"
	"github.com/teranos/qconsole/errors"
	"github.com/teranos/qconsole/internal/util"
	"github.com/teranos/qconsole/logger"
	"github.com/teranos/qconsole/version"
)

const (
	// ServerName is reported in InitializeResult.
	ServerName = "qconsole Language Server"

	// maxDocuments bounds the open-document cache; the least recently used
	// document is evicted first.
	maxDocuments = 100
)

// MetadataSource supplies the latest harvested completion state.
// *console.Session satisfies it.
type MetadataSource interface {
	Metadata() console.Metadata
}

type documentEntry struct {
	uri     string
	content string
}

// Handler implements the LSP handlers. Completion runs on a private engine
// per request so the session's own dropdown state is untouched.
type Handler struct {
	source    MetadataSource
	logger    *zap.SugaredLogger
	documents map[string]*list.Element
	lruList   *list.List
	mu        sync.RWMutex
}

// NewHandler creates a handler reading metadata from source.
func NewHandler(source MetadataSource, log *zap.SugaredLogger) *Handler {
	return &Handler{
		source:    source,
		logger:    logger.OrNop(log),
		documents: make(map[string]*list.Element),
		lruList:   list.New(),
	}
}

// ProtocolHandler wires h into a glsp protocol handler.
func (h *Handler) ProtocolHandler() *protocol.Handler {
	return &protocol.Handler{
		Initialize:             h.Initialize,
		Initialized:            h.Initialized,
		Shutdown:               h.Shutdown,
		TextDocumentDidOpen:    h.TextDocumentDidOpen,
		TextDocumentDidChange:  h.TextDocumentDidChange,
		TextDocumentDidClose:   h.TextDocumentDidClose,
		TextDocumentCompletion: h.TextDocumentCompletion,
	}
}

// ServeStdio runs the language server on stdin/stdout until the client
// disconnects.
func ServeStdio(source MetadataSource, log *zap.SugaredLogger) error {
	h := NewHandler(source, log)
	srv := glspserver.NewServer(h.ProtocolHandler(), ServerName, false)
	h.logger.Infow("Serving LSP on stdio")
	if err := srv.RunStdio(); err != nil {
		return errors.Wrap(err, "language server stopped")
	}
	return nil
}

// Initialize handles LSP initialize request
func (h *Handler) Initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	h.logger.Infow("LSP client initializing", "client", params.ClientInfo)

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities := protocol.ServerCapabilities{
		CompletionProvider: &protocol.CompletionOptions{
			TriggerCharacters: []string{".", " "},
		},
		TextDocumentSync: &protocol.TextDocumentSyncOptions{
			OpenClose: util.Ptr(true),
			Change:    &syncKind,
		},
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    ServerName,
			Version: util.Ptr(version.Get().Version),
		},
	}, nil
}

// Initialized is called after client receives InitializeResult
func (h *Handler) Initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	h.logger.Infow("LSP client initialized")
	return nil
}

// Shutdown handles LSP shutdown request
func (h *Handler) Shutdown(ctx *glsp.Context) error {
	h.logger.Infow("LSP client shutting down")
	return nil
}

// TextDocumentDidOpen handles document open notifications
func (h *Handler) TextDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	uri := string(params.TextDocument.URI)
	h.storeLocked(uri, params.TextDocument.Text)
	h.logger.Debugw("Document opened", logger.FieldURI, uri, logger.FieldSize, len(params.TextDocument.Text))
	return nil
}

// TextDocumentDidChange handles document change notifications (full sync)
func (h *Handler) TextDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	uri := string(params.TextDocument.URI)
	for _, change := range params.ContentChanges {
		if whole, ok := change.(protocol.TextDocumentContentChangeEventWhole); ok {
			h.storeLocked(uri, whole.Text)
		}
	}

	h.logger.Debugw("Document changed", logger.FieldURI, uri, "changes", len(params.ContentChanges))
	return nil
}

// TextDocumentDidClose handles document close notifications
func (h *Handler) TextDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	uri := string(params.TextDocument.URI)
	if elem, ok := h.documents[uri]; ok {
		h.lruList.Remove(elem)
		delete(h.documents, uri)
	}

	h.logger.Debugw("Document closed", logger.FieldURI, uri)
	return nil
}

// storeLocked inserts or updates uri, marking it most recently used.
func (h *Handler) storeLocked(uri, content string) {
	if elem, ok := h.documents[uri]; ok {
		elem.Value.(*documentEntry).content = content
		h.lruList.MoveToFront(elem)
		return
	}

	if len(h.documents) >= maxDocuments {
		if oldest := h.lruList.Back(); oldest != nil {
			evicted := oldest.Value.(*documentEntry)
			h.lruList.Remove(oldest)
			delete(h.documents, evicted.uri)
			h.logger.Infow("Document cache full, evicted oldest", logger.FieldURI, evicted.uri)
		}
	}

	h.documents[uri] = h.lruList.PushFront(&documentEntry{uri: uri, content: content})
}

func (h *Handler) document(uri string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	elem, ok := h.documents[uri]
	if !ok {
		return "", false
	}
	return elem.Value.(*documentEntry).content, true
}

// TextDocumentCompletion classifies the cursor, ranks suggestions with the
// latest harvested metadata and returns them in engine order.
func (h *Handler) TextDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Errorw("Panic in completion handler",
				"panic", r,
				logger.FieldURI, params.TextDocument.URI)
			result = []protocol.CompletionItem{}
			err = nil
		}
	}()

	uri := string(params.TextDocument.URI)
	text, ok := h.document(uri)
	if !ok {
		return []protocol.CompletionItem{}, nil
	}

	offset := offsetAt(text, params.Position)
	engine := complete.New(complete.WithLogger(h.logger.Named("complete")))
	h.source.Metadata().Apply(engine)
	word := console.Complete(engine, text, offset)

	if !engine.Visible() {
		return []protocol.CompletionItem{}, nil
	}

	replace := protocol.Range{
		Start: positionAt(text, word.Start),
		End:   positionAt(text, word.Start+len(word.Prefix)),
	}
	items := completionItems(engine.Suggestions(), engine.Tier(), replace)

	h.logger.Debugw("LSP completion",
		logger.FieldURI, uri,
		logger.FieldPrefix, word.Prefix,
		logger.FieldBase, word.Base,
		logger.FieldTier, string(engine.Tier()),
		logger.FieldCount, len(items))

	return items, nil
}

func completionItems(suggestions []string, tier complete.Tier, replace protocol.Range) []protocol.CompletionItem {
	items := make([]protocol.CompletionItem, len(suggestions))
	for i, s := range suggestions {
		items[i] = protocol.CompletionItem{
			Label:    s,
			Kind:     completionKind(s, tier),
			Detail:   util.Ptr(string(tier)),
			SortText: util.Ptr(fmt.Sprintf("%05d", i)),
			TextEdit: protocol.TextEdit{Range: replace, NewText: s},
		}
	}
	if len(items) > 0 {
		items[0].Preselect = util.Ptr(true)
	}
	return items
}

// completionKind maps a suggestion to an LSP item kind
func completionKind(s string, tier complete.Tier) *protocol.CompletionItemKind {
	var k protocol.CompletionItemKind
	switch {
	case tier == complete.TierSQL && complete.IsSQLKeyword(s):
		k = protocol.CompletionItemKindKeyword
	case tier == complete.TierType || tier == complete.TierHeuristic:
		k = protocol.CompletionItemKindMethod
	default:
		k = protocol.CompletionItemKindVariable
	}
	return &k
}
