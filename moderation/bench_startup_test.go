package moderation

import (
	"fmt"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

// Test_Moderation_StartupBenchmark measures the cold-start cost of the
// moderation pipeline when the dictionary lives in BadgerDB instead of
// an embedded file: load the words, then build the automaton.
func Test_Moderation_StartupBenchmark(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	wordCount := 100_000

	// Phase 1: seed one key per dictionary word
	startSeed := time.Now()
	wb := db.NewWriteBatch()
	for i := 0; i < wordCount; i++ {
		key := []byte(fmt.Sprintf("blacklist:word_%d", i))
		_ = wb.Set(key, nil)
	}
	req.NoError(wb.Flush())
	fmt.Printf("Seeding %d words: %v\n", wordCount, time.Since(startSeed))

	// Phase 2: load them back from the key space only
	startLoad := time.Now()
	var words []string
	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // the words are in the keys
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte("blacklist:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			words = append(words, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	req.NoError(err)
	fmt.Printf("Loading from Badger: %v\n", time.Since(startLoad))

	// Phase 3: build the Aho-Corasick automaton
	startBuild := time.Now()
	_, err = NewModerator(words, '*')
	req.NoError(err)
	fmt.Printf("Building AC automaton: %v\n", time.Since(startBuild))

	fmt.Printf("Total startup time for moderation: %v\n", time.Since(startLoad))
}
