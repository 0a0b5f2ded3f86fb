package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/labdesk/pkg/board"
	"github.com/dyluth/labdesk/pkg/chat"
	"github.com/dyluth/labdesk/pkg/section"
)

const sqliteConfig = `version: "1.0"
workspace: test
store:
  backend: sqlite
members:
  - name: PI
    role: admin
  - name: Ana
  - name: Ben
sections:
  todos:
    kind: todo
    columns: [todo, doing, done]
`

// setupWorkspace writes a sqlite-backed labdesk.yml and returns its path.
func setupWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "labdesk.yml")
	require.NoError(t, os.WriteFile(path, []byte(sqliteConfig), 0644))
	return path
}

func runCLI(t *testing.T, args ...string) error {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func readSection(t *testing.T, cfgPath, key string) section.Collection {
	t.Helper()
	store, err := section.OpenSQLiteStore(context.Background(), filepath.Join(filepath.Dir(cfgPath), ".labdesk", "sections.db"))
	require.NoError(t, err)
	defer store.Close()

	coll, err := store.Read(context.Background(), key)
	require.NoError(t, err)
	return coll
}

func TestRootCommand_ShowsHelpWhenNoSubcommand(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "Usage:")
	assert.Contains(t, buf.String(), "labdesk")
}

func TestBoardCommands_SQLite(t *testing.T) {
	cfg := setupWorkspace(t)

	require.NoError(t, runCLI(t, "board", "add", "todos", "order reagents", "-c", cfg))
	require.NoError(t, runCLI(t, "board", "add", "todos", "calibrate scale", "-c", cfg))
	require.NoError(t, runCLI(t, "board", "move", "todos", "2", "doing", "-c", cfg))
	require.NoError(t, runCLI(t, "board", "list", "todos", "-c", cfg))

	coll := readSection(t, cfg, "todos")
	assert.Equal(t, int64(3), coll.Revision)

	items, err := board.DecodeItems(coll.Items, board.KindTodo)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "todo", items[0].ItemStatus())
	assert.Equal(t, "doing", items[1].ItemStatus())
	assert.Equal(t, "calibrate scale", board.TitleOf(items[1]))

	require.NoError(t, runCLI(t, "board", "rm", "todos", "1", "-c", cfg))
	items, err = board.DecodeItems(readSection(t, cfg, "todos").Items, board.KindTodo)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(2), items[0].ItemID())

	assert.Error(t, runCLI(t, "board", "list", "nope", "-c", cfg))
	assert.Error(t, runCLI(t, "board", "move", "todos", "2", "archived", "-c", cfg))
}

func TestChatSend_SQLite(t *testing.T) {
	cfg := setupWorkspace(t)

	require.NoError(t, runCLI(t, "chat", "send", "team:alpha", "gel is ready", "--as", "Ana", "-c", cfg))

	msgs, err := chat.DecodeMessages(readSection(t, cfg, "chat:team:alpha").Items)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Ana", msgs[0].Author)
	assert.Equal(t, "gel is ready", msgs[0].Text)

	// Non-members cannot post.
	assert.Error(t, runCLI(t, "chat", "send", "team:alpha", "hi", "--as", "Zed", "-c", cfg))

	// Typing needs the redis backend.
	assert.Error(t, runCLI(t, "chat", "typing", "team:alpha", "--as", "Ana", "-c", cfg))
}

func TestChatSend_UsesSavedDraft(t *testing.T) {
	cfg := setupWorkspace(t)

	require.NoError(t, runCLI(t, "draft", "save", "team:beta", "from the draft", "-c", cfg))
	require.NoError(t, runCLI(t, "draft", "show", "team:beta", "-c", cfg))
	require.NoError(t, runCLI(t, "chat", "send", "team:beta", "--as", "Ben", "-c", cfg))

	msgs, err := chat.DecodeMessages(readSection(t, cfg, "chat:team:beta").Items)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "from the draft", msgs[0].Text)

	// A successful send clears the draft.
	assert.Error(t, runCLI(t, "draft", "show", "team:beta", "-c", cfg))
	assert.Error(t, runCLI(t, "chat", "send", "team:beta", "--as", "Ben", "-c", cfg))
}

func TestResolveDraftKey(t *testing.T) {
	k, err := resolveDraftKey("team:alpha")
	require.NoError(t, err)
	assert.Equal(t, "thread:chat:team:alpha", k.String())

	k, err = resolveDraftKey("item:todos/3")
	require.NoError(t, err)
	assert.Equal(t, "item:todos/3", k.String())

	_, err = resolveDraftKey("nocolon")
	assert.Error(t, err)
}
