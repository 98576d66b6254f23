package lsp

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/teranos/qconsole/console"
	"github.com/teranos/qconsole/harvest"
)

type staticSource console.Metadata

func (s staticSource) Metadata() console.Metadata { return console.Metadata(s) }

type panicSource struct{}

func (panicSource) Metadata() console.Metadata { panic("metadata unavailable") }

func testSource() staticSource {
	return staticSource{
		Dynamic: []string{"warehouse", "warehouse.connect", "conn"},
		Relationships: harvest.TypeRelationships{
			ReturnTypes: map[string]string{"warehouse.connect": "Connection"},
			TypeMethods: map[string][]string{"Connection": {"sql", "execute", "close"}},
		},
		SQL: harvest.SQLMetadata{Tables: []string{"events"}, Columns: []string{"events.ts", "ts"}},
	}
}

const docURI = "file:///work/analysis.py"

func open(t *testing.T, h *Handler, uri, text string) {
	t.Helper()
	require.NoError(t, h.TextDocumentDidOpen(nil, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: protocol.DocumentUri(uri), LanguageID: "python", Text: text},
	}))
}

func completeAt(t *testing.T, h *Handler, uri string, line, character int) []protocol.CompletionItem {
	t.Helper()
	res, err := h.TextDocumentCompletion(nil, &protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentUri(uri)},
			Position:     protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(character)},
		},
	})
	require.NoError(t, err)
	items, ok := res.([]protocol.CompletionItem)
	require.True(t, ok)
	return items
}

func labels(items []protocol.CompletionItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Label
	}
	return out
}

func TestInitialize(t *testing.T) {
	h := NewHandler(testSource(), nil)
	res, err := h.Initialize(nil, &protocol.InitializeParams{})
	require.NoError(t, err)

	initResult, ok := res.(protocol.InitializeResult)
	require.True(t, ok)
	require.NotNil(t, initResult.Capabilities.CompletionProvider)
	assert.Contains(t, initResult.Capabilities.CompletionProvider.TriggerCharacters, ".")
	assert.Equal(t, ServerName, initResult.ServerInfo.Name)

	assert.NoError(t, h.Initialized(nil, &protocol.InitializedParams{}))
	assert.NoError(t, h.Shutdown(nil))
}

func TestCompletionFallback(t *testing.T) {
	h := NewHandler(testSource(), nil)
	open(t, h, docURI, "x = 1\nprint(ware")

	items := completeAt(t, h, docURI, 1, 10)
	assert.Equal(t, []string{"warehouse", "warehouse.connect"}, labels(items))

	require.NotNil(t, items[0].Kind)
	assert.Equal(t, protocol.CompletionItemKindVariable, *items[0].Kind)
	require.NotNil(t, items[0].Preselect)
	assert.Nil(t, items[1].Preselect)
	assert.Equal(t, "00000", *items[0].SortText)

	edit, ok := items[1].TextEdit.(protocol.TextEdit)
	require.True(t, ok)
	assert.Equal(t, protocol.Position{Line: 1, Character: 6}, edit.Range.Start)
	assert.Equal(t, protocol.Position{Line: 1, Character: 10}, edit.Range.End)
	assert.Equal(t, "warehouse.connect", edit.NewText)
}

func TestCompletionTypeTier(t *testing.T) {
	h := NewHandler(testSource(), nil)
	text := `c = warehouse.connect("dsn").ex`
	open(t, h, docURI, text)

	items := completeAt(t, h, docURI, 0, len(text))
	require.Equal(t, []string{"execute"}, labels(items))
	assert.Equal(t, protocol.CompletionItemKindMethod, *items[0].Kind)

	edit := items[0].TextEdit.(protocol.TextEdit)
	assert.Equal(t, protocol.UInteger(len(text)-2), edit.Range.Start.Character, "only the text after the dot is replaced")
}

func TestCompletionSQL(t *testing.T) {
	h := NewHandler(testSource(), nil)
	text := `conn.sql("SELECT ts FROM ev`
	open(t, h, docURI, text)

	items := completeAt(t, h, docURI, 0, len(text))
	assert.Equal(t, []string{"events"}, labels(items))
	assert.Equal(t, protocol.CompletionItemKindVariable, *items[0].Kind)

	text = `conn.sql("SEL`
	open(t, h, docURI, text)
	items = completeAt(t, h, docURI, 0, len(text))
	require.Equal(t, []string{"SELECT"}, labels(items))
	assert.Equal(t, protocol.CompletionItemKindKeyword, *items[0].Kind)
}

func TestCompletionInsideStringIsEmpty(t *testing.T) {
	h := NewHandler(testSource(), nil)
	text := `title = "ware`
	open(t, h, docURI, text)

	assert.Empty(t, completeAt(t, h, docURI, 0, len(text)))
}

func TestCompletionUnknownDocument(t *testing.T) {
	h := NewHandler(testSource(), nil)
	assert.Empty(t, completeAt(t, h, "file:///nowhere.py", 0, 0))
}

func TestCompletionRecoversFromPanic(t *testing.T) {
	h := NewHandler(panicSource{}, nil)
	open(t, h, docURI, "ware")
	assert.Empty(t, completeAt(t, h, docURI, 0, 4))
}

func TestDocumentLifecycle(t *testing.T) {
	h := NewHandler(testSource(), nil)
	open(t, h, docURI, "x")

	require.NoError(t, h.TextDocumentDidChange(nil, &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: docURI},
			Version:                2,
		},
		ContentChanges: []any{protocol.TextDocumentContentChangeEventWhole{Text: "conn"}},
	}))
	text, ok := h.document(docURI)
	require.True(t, ok)
	assert.Equal(t, "conn", text)

	require.NoError(t, h.TextDocumentDidClose(nil, &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: docURI},
	}))
	_, ok = h.document(docURI)
	assert.False(t, ok)
}

func TestDocumentCacheEvictsLeastRecentlyUsed(t *testing.T) {
	h := NewHandler(testSource(), nil)
	for i := 0; i < maxDocuments; i++ {
		open(t, h, fmt.Sprintf("file:///doc%d.py", i), "x")
	}

	// Touch doc0 so doc1 becomes the oldest
	open(t, h, "file:///doc0.py", "y")
	open(t, h, "file:///extra.py", "z")

	_, ok := h.document("file:///doc0.py")
	assert.True(t, ok)
	_, ok = h.document("file:///doc1.py")
	assert.False(t, ok)
	assert.Len(t, h.documents, maxDocuments)
}

func TestProtocolHandlerWiring(t *testing.T) {
	ph := NewHandler(testSource(), nil).ProtocolHandler()
	assert.NotNil(t, ph.Initialize)
	assert.NotNil(t, ph.TextDocumentCompletion)
	assert.NotNil(t, ph.TextDocumentDidChange)
}
