package repositories

import (
	"testing"
	"time"

	"chat-room/domain"

	"github.com/google/uuid"
	db "github.com/mama165/sdk-go/database"
	"github.com/stretchr/testify/require"
)

func indexedMessage(body string) domain.Message {
	now := time.Now().UTC()
	return domain.Message{ID: uuid.New(), Body: body, CreatedAt: now, UpdatedAt: now}
}

func TestSearchIndex_IndexAndSearch(t *testing.T) {
	req := require.New(t)
	ctx, log, badgerDB, blugeWriter, err := db.SetupBenchmark(t.TempDir())
	req.NoError(err)
	defer db.CleanupDB(badgerDB, blugeWriter)

	index := NewSearchIndex(blugeWriter, log)

	// Given two indexed messages
	badgerMsg := indexedMessage("the badger digs at night")
	otherMsg := indexedMessage("completely unrelated topic")
	req.NoError(index.Index(badgerMsg))
	req.NoError(index.Index(otherMsg))
	time.Sleep(50 * time.Millisecond)

	// When searching for a word only one body contains
	ids, err := index.Search(ctx, "badger", 10)
	req.NoError(err)
	req.Equal([]uuid.UUID{badgerMsg.ID}, ids)

	// And an unmatched query yields nothing
	ids, err = index.Search(ctx, "mushroom", 10)
	req.NoError(err)
	req.Empty(ids)
}

func TestSearchIndex_ReindexReplacesDocument(t *testing.T) {
	req := require.New(t)
	ctx, log, badgerDB, blugeWriter, err := db.SetupBenchmark(t.TempDir())
	req.NoError(err)
	defer db.CleanupDB(badgerDB, blugeWriter)

	index := NewSearchIndex(blugeWriter, log)

	m := indexedMessage("first draft")
	req.NoError(index.Index(m))

	m.Body = "final wording"
	req.NoError(index.Index(m))
	time.Sleep(50 * time.Millisecond)

	ids, err := index.Search(ctx, "draft", 10)
	req.NoError(err)
	req.Empty(ids)

	ids, err = index.Search(ctx, "wording", 10)
	req.NoError(err)
	req.Equal([]uuid.UUID{m.ID}, ids)
}

func TestSearchIndex_Deindex(t *testing.T) {
	req := require.New(t)
	ctx, log, badgerDB, blugeWriter, err := db.SetupBenchmark(t.TempDir())
	req.NoError(err)
	defer db.CleanupDB(badgerDB, blugeWriter)

	index := NewSearchIndex(blugeWriter, log)

	m := indexedMessage("soon to vanish")
	req.NoError(index.Index(m))
	req.NoError(index.Deindex(m.ID))
	time.Sleep(50 * time.Millisecond)

	ids, err := index.Search(ctx, "vanish", 10)
	req.NoError(err)
	req.Empty(ids)
}
